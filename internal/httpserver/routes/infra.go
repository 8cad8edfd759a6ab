package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/mw"
)

func init() { Register(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
	admin.Get("/infra", handlers.Infra(d))
	admin.Method("GET", "/metrics", handlers.Metrics(d))
}
