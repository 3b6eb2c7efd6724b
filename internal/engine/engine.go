// Package engine hides the generative model behind a single call so the
// analysis client does not depend on any one provider.
package engine

import (
	"context"
	"errors"
	"io"

	"github.com/kalambet/prism/internal/schema"
)

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("empty response from model")

// Blob is a binary document passed to the model as-is.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Request is one structured-generation call.
type Request struct {
	// Instruction is the task preamble sent ahead of the document.
	Instruction string
	// Text is the document body. Ignored when Blob is set.
	Text string
	Blob *Blob
	// Schema constrains the response. The provider is asked for JSON only.
	Schema *schema.Node
}

// Generator sends a Request to a model and returns the raw response text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BlobCapable is implemented by generators that accept binary documents.
// Callers must convert blobs to text for generators that do not.
type BlobCapable interface {
	AcceptsBlob(mimeType string) bool
}

// Preparer is implemented by generators that need setup before the first
// call, such as pulling a local model. Progress is written to w.
type Preparer interface {
	Prepare(ctx context.Context, w io.Writer) error
}

// AcceptsBlob reports whether g can take a blob of the given type.
func AcceptsBlob(g Generator, mimeType string) bool {
	b, ok := g.(BlobCapable)
	return ok && b.AcceptsBlob(mimeType)
}
