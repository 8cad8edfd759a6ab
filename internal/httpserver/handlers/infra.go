package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
)

type componentStatus struct {
	OK              bool   `json:"ok"`
	SuppliersLoaded *int   `json:"suppliers_loaded,omitempty"`
	LastReload      string `json:"last_reload,omitempty"`
	Sessions        *int   `json:"sessions,omitempty"`
	Running         *int   `json:"running,omitempty"`
	Connections     *int   `json:"connections,omitempty"`
	Mode            string `json:"mode,omitempty"`
	Impact          string `json:"impact,omitempty"`
	Error           string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		suppliers := d.Directory.Count()
		lastReload := d.Directory.LastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
		}

		sessions := d.Sessions.Len()
		running := d.Orchestrator.Running()
		connections := d.Relay.Connections()

		components := map[string]componentStatus{
			"directory": {
				OK:              suppliers > 0,
				SuppliersLoaded: &suppliers,
				LastReload:      lastReloadStr,
			},
			"redis":      checkRedis(r.Context(), d),
			"automation": checkAutomation(d, sessions, running),
			"relay": {
				OK:          true,
				Connections: &connections,
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if dir, ok := components["directory"]; ok && !dir.OK {
		return "critical" // no suppliers = nothing to serve
	}
	for _, name := range []string{"redis", "automation"} {
		if c, ok := components[name]; ok && !c.OK {
			return "degraded"
		}
	}
	return "operational"
}

func checkAutomation(d deps.Deps, sessions, running int) componentStatus {
	status := componentStatus{OK: true, Mode: "browser", Sessions: &sessions, Running: &running}
	if err := d.Orchestrator.Available(); err != nil {
		status.OK = false
		status.Mode = "disabled"
		status.Impact = "rpa-start-rejected"
		status.Error = err.Error()
	}
	return status
}

func checkRedis(parent context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     true,
			Mode:   "memory-only",
			Impact: "sessions-lost-on-restart",
		}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "session-mirror-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "session-mirror-enabled",
	}
}
