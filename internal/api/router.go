package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kalambet/prism/internal/analysis"
	"github.com/kalambet/prism/internal/history"
	"github.com/kalambet/prism/internal/prefs"
	"github.com/kalambet/prism/internal/schema"
)

// Analyzer produces a result for every input; failures come back as the
// fallback result.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input, audience analysis.Audience) schema.AnalysisResult
}

// Mailer delivers rendered reports.
type Mailer interface {
	Enabled() bool
	SendReport(ctx context.Context, to string, item schema.HistoryItem) error
}

type AppDeps struct {
	History        *history.Store
	Analyzer       Analyzer
	Prefs          *prefs.Manager
	Mailer         Mailer       // optional; if nil, email returns 503
	HTTPClient     *http.Client // used for url analysis
	Token          string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func (d AppDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// NewAppHandler returns the dashboard API. Everything except /health requires
// the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(deps.Token))

		r.Post("/analyze", handleAnalyze(deps))
		r.Get("/history", handleListHistory(deps))
		r.Delete("/history", handleClearHistory(deps))
		r.Get("/history/{id}", handleGetHistoryItem(deps))
		r.Get("/history/{id}/report", handleReport(deps))
		r.Post("/history/{id}/email", handleEmail(deps))
		r.Get("/theme", handleGetTheme(deps))
		r.Put("/theme", handlePutTheme(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
