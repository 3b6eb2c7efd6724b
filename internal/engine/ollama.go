package engine

import (
	"context"
	"io"
	"strings"

	"github.com/kalambet/prism/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Generator interface.
// Ollama takes text only; PDFs must be converted before the call.
type OllamaEngine struct {
	client *ollama.Client
	model  string
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL, model string) *OllamaEngine {
	c := ollama.New(baseURL)
	// Documents run up to 60k characters; the default context window would
	// silently cut them.
	c.SetOptions(ollama.Options{Temperature: 0.2, NumCtx: 32768})
	return &OllamaEngine{client: c, model: model}
}

func (e *OllamaEngine) Model() string { return e.model }

func (e *OllamaEngine) Generate(ctx context.Context, req Request) (string, error) {
	msgs := []ollama.Message{
		{Role: "system", Content: req.Instruction},
		{Role: "user", Content: req.Text},
	}
	var format any
	if req.Schema != nil {
		format = req.Schema
	}
	out, err := e.client.Chat(ctx, e.model, msgs, format)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Prepare pulls and warms the model.
func (e *OllamaEngine) Prepare(ctx context.Context, w io.Writer) error {
	return ollama.EnsureReady(ctx, e.client, e.model, w)
}
