// Package document turns uploaded files and fetched pages into analysis
// inputs.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/prism/internal/analysis"
)

const MIMEPDF = "application/pdf"

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrEmpty       = errors.New("document is empty")
)

// Extensions lists the accepted file extensions.
var Extensions = []string{".txt", ".json", ".csv", ".md", ".pdf", ".html", ".htm"}

// FromFile converts an uploaded file into an analysis input based on its
// extension. PDFs stay binary; HTML is reduced to its visible text; the rest
// is read as UTF-8 text.
func FromFile(name string, data []byte) (analysis.Input, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return analysis.Input{}, ErrEmpty
	}
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return analysis.Input{}, fmt.Errorf("%s: not a PDF file", name)
		}
		return analysis.Input{Data: data, MIMEType: MIMEPDF}, nil
	case ".html", ".htm":
		text, err := HTMLText(bytes.NewReader(data))
		if err != nil {
			return analysis.Input{}, fmt.Errorf("%s: %w", name, err)
		}
		if strings.TrimSpace(text) == "" {
			return analysis.Input{}, ErrEmpty
		}
		return analysis.Input{Text: text}, nil
	case ".txt", ".json", ".csv", ".md":
		return analysis.Input{Text: decodeText(data)}, nil
	default:
		return analysis.Input{}, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupported, ext, strings.Join(Extensions, ", "))
	}
}

// ToText is an analysis.TextExtractor for the binary types FromFile produces.
func ToText(data []byte, mimeType string) (string, error) {
	if mimeType != MIMEPDF {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}
	return ExtractPDFText(data)
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
