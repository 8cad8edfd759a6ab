package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/handlers"
)

func init() { Register(registerDGVCLProxy) }

func registerDGVCLProxy(r chi.Router, d deps.Deps) {
	r.Get("/dgvcl-proxy/login", handlers.DGVCLLogin(d))
	r.Get("/dgvcl-proxy/autofill-page", handlers.DGVCLAutofill(d))
}
