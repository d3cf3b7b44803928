package exifdata

import (
	"fmt"
	"strconv"
	"strings"
)

var orientationLabels = map[string]string{
	"1": "Normal",
	"2": "Mirrored horizontal",
	"3": "Rotated 180°",
	"4": "Mirrored vertical",
	"5": "Mirrored horizontal, rotated 270° CW",
	"6": "Rotated 90° CW",
	"7": "Mirrored horizontal, rotated 90° CW",
	"8": "Rotated 270° CW",
}

// OrientationLabel maps the raw Orientation tag value to a display label.
func OrientationLabel(raw string) string {
	if label, ok := orientationLabels[strings.TrimSpace(raw)]; ok {
		return label
	}
	return raw
}

// FNumberLabel renders the raw FNumber rational (e.g. "28/10") as "f/2.8".
func FNumberLabel(raw string) string {
	v, ok := parseRational(raw)
	if !ok {
		return raw
	}
	return "f/" + strconv.FormatFloat(v, 'f', -1, 64)
}

// ExposureLabel renders the raw ExposureTime value as a shutter-speed
// string: "1/250" becomes "1/250s", whole seconds become "2s".
func ExposureLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if num, den, ok := splitRational(raw); ok {
		if den == 1 {
			return fmt.Sprintf("%ds", num)
		}
		return fmt.Sprintf("%d/%ds", num, den)
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return raw + "s"
	}
	return raw
}

func splitRational(raw string) (num, den int64, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	num, errN := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	den, errD := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if errN != nil || errD != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

func parseRational(raw string) (float64, bool) {
	if num, den, ok := splitRational(raw); ok {
		return float64(num) / float64(den), true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
