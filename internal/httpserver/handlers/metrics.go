package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/metrics"
)

// Metrics serves the Prometheus registry.
func Metrics(_ deps.Deps) http.Handler {
	return metrics.Handler()
}
