package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/mw"
)

func init() { Register(registerRPA) }

func registerRPA(r chi.Router, d deps.Deps) {
	startLimit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.StartBurst,
		RefillPerIPPerMin: d.StartRatePerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
		Now:               d.TimeNow,
	})

	r.Route("/rpa", func(r chi.Router) {
		r.With(startLimit).Post("/start", handlers.RPAStart(d))
		r.Get("/status/{sessionID}", handlers.RPAStatus(d))
		r.Get("/sessions", handlers.RPASessions(d))
		r.Delete("/stop/{sessionID}", handlers.RPAStop(d))
		r.Get("/ws/{sessionID}", handlers.RPAWebSocket(d))
		r.Get("/health", handlers.RPAHealth(d))
	})
}
