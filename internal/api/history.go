package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prism/internal/history"
	"github.com/kalambet/prism/internal/notify"
	"github.com/kalambet/prism/internal/report"
	"github.com/kalambet/prism/internal/schema"
)

const maxRequestBodySize = 1 << 20 // 1MB

func handleListHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.History.List())
	}
}

func handleGetHistoryItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := lookupItem(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, item)
	}
}

func handleClearHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.History.Clear(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear history: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

func handleReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := lookupItem(w, r, deps)
		if !ok {
			return
		}

		switch format := r.URL.Query().Get("format"); format {
		case "", "md", "markdown":
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(report.Markdown(item)))
		case "html":
			page, err := report.HTML(item)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to render report: %v", err)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(page))
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown format %q: use md or html", format)
		}
	}
}

func handleEmail(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Mailer == nil || !deps.Mailer.Enabled() {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "email is not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			To string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		item, ok := lookupItem(w, r, deps)
		if !ok {
			return
		}

		err := deps.Mailer.SendReport(r.Context(), req.To, item)
		switch {
		case errors.Is(err, notify.ErrInvalidRecipient):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, notify.ErrDisabled):
			httpError(w, http.StatusServiceUnavailable, "unavailable", "email is not configured")
			return
		case err != nil:
			httpError(w, http.StatusBadGateway, "api_error", "failed to send email: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "sent"})
	}
}

func lookupItem(w http.ResponseWriter, r *http.Request, deps AppDeps) (schema.HistoryItem, bool) {
	item, err := deps.History.Get(chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "history item not found")
		return schema.HistoryItem{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get history item: %v", err)
		return schema.HistoryItem{}, false
	}
	return item, true
}
