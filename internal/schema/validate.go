package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidResult is wrapped by every error returned from Validate.
var ErrInvalidResult = errors.New("invalid analysis result")

// ValidationError names the first offending location in a candidate result.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidResult, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidResult, e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidResult }

// Validate checks raw model output against Descriptor and decodes it.
// Markdown code fences and text around the outermost JSON object are
// tolerated because small local models often add them.
func Validate(raw []byte) (AnalysisResult, error) {
	body := extractObject(raw)
	if len(body) == 0 {
		return AnalysisResult{}, &ValidationError{Reason: "no JSON object in response"}
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&doc); err != nil {
		return AnalysisResult{}, &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}

	if err := check(Descriptor(), doc, ""); err != nil {
		return AnalysisResult{}, err
	}

	var r AnalysisResult
	if err := json.Unmarshal(body, &r); err != nil {
		return AnalysisResult{}, &ValidationError{Reason: "decode: " + err.Error()}
	}
	return r.Normalize(), nil
}

func extractObject(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if json.Valid([]byte(s)) {
		return []byte(s)
	}
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.LastIndex(rest, "```"); end != -1 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil
	}
	return []byte(s[start : end+1])
}

func check(n *Node, v any, path string) error {
	switch n.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected string, got " + kind(v)}
		}
		if len(n.Enum) > 0 && !contains(n.Enum, s) {
			return &ValidationError{Path: path, Reason: fmt.Sprintf("%q is not one of %s", s, strings.Join(n.Enum, ", "))}
		}
	case TypeNumber:
		if _, ok := v.(float64); !ok {
			return &ValidationError{Path: path, Reason: "expected number, got " + kind(v)}
		}
	case TypeArray:
		items, ok := v.([]any)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected array, got " + kind(v)}
		}
		for i, item := range items {
			if err := check(n.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected object, got " + kind(v)}
		}
		for _, name := range n.Required {
			child := join(path, name)
			fv, present := m[name]
			if !present {
				return &ValidationError{Path: child, Reason: "missing required field"}
			}
			if err := check(n.Properties[name], fv, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
