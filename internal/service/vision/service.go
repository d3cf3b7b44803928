package vision

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Service wraps the hosted AI model behind the two collaborator contracts
// the pipeline needs: OCR over a data URI and translate-and-identify over
// extracted text.
type Service struct {
	chatModel model.ToolCallingChatModel
}

// Options selects the model provider. BaseURL is optional and only
// meaningful for openai and claude.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

func NewService(ctx context.Context, opts Options) (*Service, error) {
	var chatModel model.ToolCallingChatModel
	var err error

	switch opts.Provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
			APIKey:  opts.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: opts.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  opts.Model,
		})
	case "claude":
		var baseURLPtr *string
		if opts.BaseURL != "" {
			baseURLPtr = &opts.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    opts.APIKey,
			Model:     opts.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", opts.Provider, err)
	}

	return &Service{chatModel: chatModel}, nil
}

const ocrSystemPrompt = "You are an OCR engine. Read all visible text in the provided image, " +
	"preserving line breaks where they matter. " +
	"Respond with a single JSON object of the form {\"extracted_text\": \"...\"}. " +
	"If the image contains no readable text, use an empty string. " +
	"Do not include any content outside the JSON object."

// ExtractText runs OCR on a base64 image data URI and returns the detected
// text, which may be empty.
func (s *Service) ExtractText(ctx context.Context, photoDataURI string) (string, error) {
	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: ocrSystemPrompt,
		},
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type:     schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{URL: photoDataURI},
				},
				{
					Type: schema.ChatMessagePartTypeText,
					Text: "Extract all visible text from this image.",
				},
			},
		},
	}

	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("ocr generate failed: %w", err)
	}
	var out ocrResponse
	if err := decodeModelJSON(resp.Content, &out); err != nil {
		return "", fmt.Errorf("ocr response: %w", err)
	}
	return out.ExtractedText, nil
}

const translateSystemPrompt = "You are a language expert. Analyze the text the user provides.\n" +
	"1. Identify its original language and report the full language name (e.g. \"Spanish\", \"French\", \"English\"). " +
	"If the language cannot be identified, report \"Unknown\".\n" +
	"2. If the language is NOT English, translate the text to English and put the translation in \"translated_text\".\n" +
	"3. If the language IS English, \"translated_text\" must echo the original text unchanged.\n" +
	"4. Set \"is_translation_needed\" to true only when a translation was performed.\n" +
	"Respond with a single JSON object of the form " +
	"{\"translated_text\": \"...\", \"source_language\": \"...\", \"is_translation_needed\": true|false} " +
	"and nothing else."

// TranslationResult is the translate-and-identify collaborator's response.
type TranslationResult struct {
	TranslatedText      string `json:"translated_text"`
	SourceLanguage      string `json:"source_language"`
	IsTranslationNeeded bool   `json:"is_translation_needed"`
}

// TranslateAndIdentify detects the language of text and translates it to
// English when needed. Callers must short-circuit empty input themselves;
// this always talks to the model.
func (s *Service) TranslateAndIdentify(ctx context.Context, text string) (*TranslationResult, error) {
	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: translateSystemPrompt,
		},
		{
			Role:    schema.User,
			Content: fmt.Sprintf("Text to analyze:\n%s", text),
		},
	}

	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("translate generate failed: %w", err)
	}
	var out TranslationResult
	if err := decodeModelJSON(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("translate response: %w", err)
	}
	return &out, nil
}

type ocrResponse struct {
	ExtractedText string `json:"extracted_text"`
}
