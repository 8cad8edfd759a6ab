package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/handlers"
)

func init() { Register(registerSuppliers) }

func registerSuppliers(r chi.Router, d deps.Deps) {
	r.Get("/suppliers", handlers.Suppliers(d))
	r.Get("/suppliers/{category}", handlers.SuppliersByCategory(d))
	r.Get("/go", handlers.Go(d))
}
