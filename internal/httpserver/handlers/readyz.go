package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz reports ready once the supplier directory is loaded.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Directory.Count() == 0 {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{
				Ready:  false,
				Reason: "supplier directory not loaded",
			})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
