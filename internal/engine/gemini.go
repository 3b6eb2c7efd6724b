package engine

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kalambet/prism/internal/schema"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

// contentGenerator is the part of genai.Models the engine uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEngine calls the Gemini API with a response schema.
type GeminiEngine struct {
	models contentGenerator
	model  string
}

// NewGeminiEngine creates a Gemini client for apiKey.
func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiEngine(client.Models, model), nil
}

func newGeminiEngine(models contentGenerator, model string) *GeminiEngine {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEngine{models: models, model: model}
}

func (e *GeminiEngine) Model() string { return e.model }

// AcceptsBlob reports true for PDFs, which Gemini reads natively.
func (e *GeminiEngine) AcceptsBlob(mimeType string) bool {
	return mimeType == "application/pdf"
}

func (e *GeminiEngine) Generate(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{{Text: req.Instruction}}
	if req.Blob != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			Data:     req.Blob.Data,
			MIMEType: req.Blob.MIMEType,
		}})
	} else {
		parts = append(parts, &genai.Part{Text: req.Text})
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.Schema != nil {
		cfg.ResponseSchema = toGenaiSchema(req.Schema)
	}

	resp, err := e.models.GenerateContent(ctx, e.model, []*genai.Content{{
		Role:  "user",
		Parts: parts,
	}}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// toGenaiSchema converts the result descriptor to Gemini's OpenAPI subset.
func toGenaiSchema(n *schema.Node) *genai.Schema {
	s := &genai.Schema{
		Description: n.Description,
		Enum:        n.Enum,
	}
	switch n.Type {
	case schema.TypeString:
		s.Type = genai.TypeString
	case schema.TypeNumber:
		s.Type = genai.TypeNumber
	case schema.TypeArray:
		s.Type = genai.TypeArray
		s.Items = toGenaiSchema(n.Items)
	case schema.TypeObject:
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(n.Properties))
		for name, p := range n.Properties {
			s.Properties[name] = toGenaiSchema(p)
		}
		s.Required = n.Required
		s.PropertyOrdering = n.Required
	}
	return s
}
