// Package analysis turns a document into a validated AnalysisResult with a
// single call to a generative model.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/prism/internal/engine"
	"github.com/kalambet/prism/internal/schema"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 120 * time.Second

const maxLoggedResponse = 500

// ErrNoContent is reported for inputs with neither text nor data. No model
// call is made for them.
var ErrNoContent = errors.New("document has no content")

// Input is a document to analyze: either Text, or Data with its MIMEType.
type Input struct {
	Text     string
	Data     []byte
	MIMEType string
}

// IsBinary reports whether the input carries a binary payload.
func (in Input) IsBinary() bool { return len(in.Data) > 0 }

// TextExtractor converts a binary payload to plain text for generators that
// cannot read it directly.
type TextExtractor func(data []byte, mimeType string) (string, error)

// Client analyzes documents. It never writes history; saving is the caller's
// decision.
type Client struct {
	gen      engine.Generator
	toText   TextExtractor
	timeout  time.Duration
	audience Audience
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTextExtractor sets the converter used for binary inputs the generator
// cannot take.
func WithTextExtractor(f TextExtractor) Option { return func(c *Client) { c.toText = f } }

// WithTimeout bounds each generator call. Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithDefaultAudience sets the audience used when Analyze is given none.
func WithDefaultAudience(a Audience) Option { return func(c *Client) { c.audience = a.orDefault() } }

// WithLogger sets the logger for analysis failures.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a Client on gen.
func NewClient(gen engine.Generator, opts ...Option) *Client {
	c := &Client{
		gen:      gen,
		timeout:  DefaultTimeout,
		audience: AudienceInvestor,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze sends in to the model once and returns the validated result. Any
// failure (transport error, empty or unparsable response, schema violation)
// yields schema.Fallback() instead of an error.
func (c *Client) Analyze(ctx context.Context, in Input, audience Audience) schema.AnalysisResult {
	r, err := c.analyze(ctx, in, audience)
	if err != nil {
		c.logger.Warn("analysis failed, returning fallback", "error", err)
		return schema.Fallback()
	}
	return r
}

// Attempt is like Analyze but also reports why the fallback was used.
func (c *Client) Attempt(ctx context.Context, in Input, audience Audience) (schema.AnalysisResult, error) {
	r, err := c.analyze(ctx, in, audience)
	if err != nil {
		c.logger.Warn("analysis failed, returning fallback", "error", err)
		return schema.Fallback(), err
	}
	return r, nil
}

func (c *Client) analyze(ctx context.Context, in Input, audience Audience) (schema.AnalysisResult, error) {
	if audience == "" {
		audience = c.audience
	}
	req, err := c.buildRequest(in, audience)
	if err != nil {
		return schema.AnalysisResult{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.gen.Generate(ctx, req)
	if err != nil {
		return schema.AnalysisResult{}, fmt.Errorf("generate: %w", err)
	}
	if raw == "" {
		return schema.AnalysisResult{}, engine.ErrEmptyResponse
	}

	r, err := schema.Validate([]byte(raw))
	if err != nil {
		c.logger.Debug("rejected model response", "response", clip(raw, maxLoggedResponse))
		return schema.AnalysisResult{}, err
	}
	c.logger.Debug("analysis complete", "audience", audience.orDefault(), "duration", time.Since(start))
	return r, nil
}

func (c *Client) buildRequest(in Input, audience Audience) (engine.Request, error) {
	req := engine.Request{
		Instruction: BuildInstruction(audience),
		Schema:      schema.Descriptor(),
	}
	switch {
	case in.IsBinary() && engine.AcceptsBlob(c.gen, in.MIMEType):
		req.Blob = &engine.Blob{Data: in.Data, MIMEType: in.MIMEType}
	case in.IsBinary():
		if c.toText == nil {
			return engine.Request{}, fmt.Errorf("generator cannot read %s and no text extractor is configured", in.MIMEType)
		}
		text, err := c.toText(in.Data, in.MIMEType)
		if err != nil {
			return engine.Request{}, fmt.Errorf("extracting text from %s: %w", in.MIMEType, err)
		}
		req.Text = documentText(text)
	case in.Text != "":
		req.Text = documentText(in.Text)
	default:
		return engine.Request{}, ErrNoContent
	}
	return req, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
