package api

import (
	"encoding/json"
	"net/http"

	"github.com/kalambet/prism/internal/prefs"
)

type themeBody struct {
	Theme string `json:"theme"`
}

func handleGetTheme(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, themeBody{Theme: deps.Prefs.Theme()})
	}
}

func handlePutTheme(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var body themeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !prefs.ValidTheme(body.Theme) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "theme must be %q or %q", prefs.ThemeLight, prefs.ThemeDark)
			return
		}
		if err := deps.Prefs.SetTheme(body.Theme); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, body)
	}
}
