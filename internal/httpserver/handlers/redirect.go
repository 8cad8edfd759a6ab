package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/sevasetu/internal/directory"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/metrics"
	redisstore "github.com/MrSnakeDoc/sevasetu/internal/store/redis"
)

// Go redirects to the supplier page best matching ?q= for the requested ?action=.
func Go(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		action := domain.ParseAction(r.URL.Query().Get("action"))

		// Empty query -> redirect to home
		if query == "" {
			d.Logger.Debug("empty query, redirecting to home")
			http.Redirect(w, r, d.HomeURL, http.StatusFound)
			return
		}

		// Special case: internal endpoints (queries starting with /)
		if strings.HasPrefix(query, "/") {
			handleInternalEndpoint(w, r, query, d)
			return
		}

		supplier, ok := cachedSupplier(ctx, query, action, d)
		if !ok {
			supplier, ok = directory.FindBestMatch(directory.ParseQuery(query), d.Directory.All())
			if !ok {
				d.Logger.Info("no matching supplier found", logger.String("query", query))
				http.Redirect(w, r, d.HomeURL, http.StatusFound)
				return
			}
			if d.Store != nil {
				if err := d.Store.CacheResolution(ctx, strings.ToLower(query), string(action), supplier.ID, redisstore.DefaultCacheTTL); err != nil {
					d.Logger.Debug("failed to cache resolution", logger.Error(err))
				}
			}
		}

		target := supplier.URLFor(action)
		if target == "" {
			d.Logger.Info("supplier has no online page",
				logger.String("supplier", supplier.ID),
				logger.String("action", string(action)))
			http.Redirect(w, r, d.HomeURL, http.StatusFound)
			return
		}

		d.Directory.IncrementCounter(supplier.ID)
		if d.Store != nil {
			if err := d.Store.IncrementUsage(ctx, supplier.ID); err != nil {
				d.Logger.Debug("failed to increment usage", logger.Error(err))
			}
		}
		metrics.Redirects.WithLabelValues(string(supplier.Category), string(action)).Inc()

		d.Logger.Info("redirecting to supplier",
			logger.String("query", query),
			logger.String("supplier", supplier.ID),
			logger.String("action", string(action)))
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// cachedSupplier looks up a previous resolution of query in Redis.
func cachedSupplier(ctx context.Context, query string, action domain.Action, d deps.Deps) (domain.Supplier, bool) {
	if d.Store == nil {
		return domain.Supplier{}, false
	}
	id, err := d.Store.GetCachedResolution(ctx, strings.ToLower(query), string(action))
	if err != nil || id == "" {
		return domain.Supplier{}, false
	}
	// the directory may have been reloaded since
	return d.Directory.Get(id)
}

// handleInternalEndpoint handles internal endpoint routing
func handleInternalEndpoint(w http.ResponseWriter, r *http.Request, query string, d deps.Deps) {
	if endpoint := matchInternalEndpoint(query); endpoint != "" {
		d.Logger.Info("internal endpoint redirect",
			logger.String("query", query),
			logger.String("endpoint", endpoint))
		http.Redirect(w, r, endpoint, http.StatusFound)
		return
	}
	d.Logger.Debug("no internal endpoint matched", logger.String("query", query))
	http.Redirect(w, r, d.HomeURL, http.StatusFound)
}

// matchInternalEndpoint returns the endpoint uniquely prefixed by query, or "".
func matchInternalEndpoint(query string) string {
	endpoints := []string{
		"/infra",
		"/healthz",
		"/readyz",
		"/metrics",
		"/suppliers",
		"/rpa/health",
		"/rpa/sessions",
	}

	query = strings.ToLower(query)
	var matches []string
	for _, endpoint := range endpoints {
		if strings.HasPrefix(endpoint, query) {
			matches = append(matches, endpoint)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0]
	case 0:
		return ""
	default:
		// an exact hit wins over longer endpoints sharing the prefix
		for _, m := range matches {
			if m == query {
				return m
			}
		}
		return ""
	}
}

