package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// decodeModelJSON unmarshals a model reply into v, tolerating the markdown
// code fences some providers wrap JSON output in.
func decodeModelJSON(content string, v any) error {
	cleaned := strings.TrimSpace(content)
	if cleaned == "" {
		return errors.New("empty model response")
	}
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}
