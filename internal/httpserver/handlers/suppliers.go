package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
)

// Suppliers returns the whole directory grouped by category.
func Suppliers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Directory.Grouped())
	}
}

// SuppliersByCategory returns the suppliers of one category.
func SuppliersByCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, ok := domain.ParseCategory(chi.URLParam(r, "category"))
		if !ok {
			writeDetail(w, http.StatusNotFound, "Category not found")
			return
		}
		list := d.Directory.ByCategory(cat)
		if list == nil {
			list = []domain.Supplier{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
