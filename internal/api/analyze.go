package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/kalambet/prism/internal/analysis"
	"github.com/kalambet/prism/internal/document"
	"github.com/kalambet/prism/internal/schema"
)

const maxAnalyzeBodySize = 20 << 20 // 20MB

// pastedTextName is recorded for analyses of raw text.
const pastedTextName = "Pasted text"

// AnalyzeRequest is the JSON form of POST /analyze. Exactly one of URL,
// Content or Text is used, in that order of preference.
type AnalyzeRequest struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"` // base64 file bytes
	Text     string `json:"text"`
	URL      string `json:"url"`
	Audience string `json:"audience"`
	Save     *bool  `json:"save"`
}

type AnalyzeResponse struct {
	Result    schema.AnalysisResult `json:"result"`
	Item      *schema.HistoryItem   `json:"item"`
	Fallback  bool                  `json:"fallback"`
	SaveError string                `json:"saveError,omitempty"`
}

// intakeError marks problems with the submitted document, reported as 400.
type intakeError struct{ err error }

func (e intakeError) Error() string { return e.err.Error() }
func (e intakeError) Unwrap() error { return e.err }

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAnalyzeBodySize)
		defer r.Body.Close()

		var (
			name     string
			in       analysis.Input
			audience string
			save     = true
			err      error
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			name, in, audience, save, err = readMultipart(r)
		} else {
			name, in, audience, save, err = readJSON(r, deps)
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			switch {
			case errors.As(err, &maxErr):
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "document exceeds %d bytes", maxAnalyzeBodySize)
			case errors.As(err, new(intakeError)):
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			default:
				httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			}
			return
		}

		var aud analysis.Audience
		if audience != "" {
			a, ok := analysis.ParseAudience(audience)
			if !ok {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown audience %q", audience)
				return
			}
			aud = a
		}

		writeJSON(w, analyzeDocument(r.Context(), deps, name, in, aud, save))
	}
}

// analyzeDocument runs the analysis and, when asked, records it. It never
// fails: a failed save is reported in SaveError.
func analyzeDocument(ctx context.Context, deps AppDeps, name string, in analysis.Input, audience analysis.Audience, save bool) AnalyzeResponse {
	result := deps.Analyzer.Analyze(ctx, in, audience)
	resp := AnalyzeResponse{
		Result:   result,
		Fallback: schema.IsFallback(result),
	}
	if !save {
		return resp
	}
	item, err := deps.History.Save(name, result)
	if err != nil {
		deps.logger().Warn("analysis not saved", "file", name, "error", err)
		resp.SaveError = err.Error()
		return resp
	}
	resp.Item = &item
	return resp
}

func readMultipart(r *http.Request) (string, analysis.Input, string, bool, error) {
	if err := r.ParseMultipartForm(maxAnalyzeBodySize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", analysis.Input{}, "", false, err
		}
		return "", analysis.Input{}, "", false, intakeError{err}
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return "", analysis.Input{}, "", false, intakeError{errors.New("file is required")}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", analysis.Input{}, "", false, intakeError{err}
	}

	in, err := document.FromFile(hdr.Filename, data)
	if err != nil {
		return "", analysis.Input{}, "", false, intakeError{err}
	}
	save, err := parseSave(r.FormValue("save"))
	if err != nil {
		return "", analysis.Input{}, "", false, intakeError{err}
	}
	return hdr.Filename, in, r.FormValue("audience"), save, nil
}

func readJSON(r *http.Request, deps AppDeps) (string, analysis.Input, string, bool, error) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", analysis.Input{}, "", false, err
		}
		return "", analysis.Input{}, "", false, intakeError{errors.New("invalid request body: " + err.Error())}
	}
	save := req.Save == nil || *req.Save

	switch {
	case req.URL != "":
		client := deps.HTTPClient
		if client == nil {
			client = document.NewFetchClient()
		}
		name, in, err := document.Fetch(r.Context(), client, req.URL)
		if err != nil {
			if errors.Is(err, document.ErrUnsupported) || errors.Is(err, document.ErrEmpty) || errors.Is(err, document.ErrInvalidURL) ||
				errors.Is(err, document.ErrBlockedAddress) {
				return "", analysis.Input{}, "", false, intakeError{err}
			}
			return "", analysis.Input{}, "", false, err
		}
		if req.FileName != "" {
			name = req.FileName
		}
		return name, in, req.Audience, save, nil

	case req.Content != "":
		if req.FileName == "" {
			return "", analysis.Input{}, "", false, intakeError{errors.New("fileName is required with content")}
		}
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return "", analysis.Input{}, "", false, intakeError{errors.New("invalid base64 content")}
		}
		in, err := document.FromFile(req.FileName, data)
		if err != nil {
			return "", analysis.Input{}, "", false, intakeError{err}
		}
		return req.FileName, in, req.Audience, save, nil

	case strings.TrimSpace(req.Text) != "":
		name := req.FileName
		if name == "" {
			name = pastedTextName
		}
		return name, analysis.Input{Text: req.Text}, req.Audience, save, nil

	default:
		return "", analysis.Input{}, "", false, intakeError{errors.New("one of url, content or text is required")}
	}
}

func parseSave(s string) (bool, error) {
	if s == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid save value %q", s)
	}
	return v, nil
}
