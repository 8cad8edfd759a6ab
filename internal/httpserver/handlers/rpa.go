package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sevasetu/internal/automation"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/orchestrator"
)

const maxStartBody = 1 << 20

// sessionHintRe keeps client-chosen ids usable as a single path segment.
var sessionHintRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

type startRequest struct {
	Provider        string         `json:"provider"`
	ApplicationType string         `json:"application_type"`
	FormData        map[string]any `json:"form_data"`
	UserID          json.Number    `json:"user_id,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
}

type startResponse struct {
	Success      bool   `json:"success"`
	SessionID    string `json:"session_id"`
	Message      string `json:"message"`
	WebsocketURL string `json:"websocket_url"`
}

type stopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sessionsResponse struct {
	ActiveSessions int                        `json:"active_sessions"`
	Sessions       map[string]*domain.Session `json:"sessions"`
}

type rpaHealthResponse struct {
	RPAAvailable         bool   `json:"rpa_available"`
	ActiveSessions       int    `json:"active_sessions"`
	WebsocketConnections int    `json:"websocket_connections"`
	Timestamp            string `json:"timestamp"`
	Error                string `json:"error,omitempty"`
	InstallCommand       string `json:"install_command,omitempty"`
}

// RPAStart validates the request and hands it to the orchestrator.
func RPAStart(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStartBody))
		if err := dec.Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if strings.TrimSpace(req.Provider) == "" || strings.TrimSpace(req.ApplicationType) == "" {
			writeDetail(w, http.StatusBadRequest, "provider and application_type are required")
			return
		}
		if req.SessionID != "" && !sessionHintRe.MatchString(req.SessionID) {
			writeDetail(w, http.StatusBadRequest, "session_id may only contain letters, digits, '.', '_' and '-'")
			return
		}

		started, err := d.Orchestrator.Start(orchestrator.StartRequest{
			Provider:        req.Provider,
			ApplicationType: req.ApplicationType,
			FormData:        automation.FormData(req.FormData),
			Requester:       req.UserID.String(),
			SessionHint:     req.SessionID,
		})
		switch {
		case errors.Is(err, domain.ErrAutomationUnavailable):
			d.Logger.Warn("automation unavailable", logger.Error(err))
			writeDetail(w, http.StatusServiceUnavailable, "RPA bot not available: "+err.Error())
			return
		case errors.Is(err, domain.ErrDuplicateSession):
			writeDetail(w, http.StatusConflict, "Session already exists")
			return
		case err != nil:
			d.Logger.Error("failed to start automation", logger.Error(err))
			writeDetail(w, http.StatusInternalServerError, "failed to start automation")
			return
		}

		writeJSON(w, http.StatusOK, startResponse{
			Success:      true,
			SessionID:    started.SessionID,
			Message:      "RPA automation started",
			WebsocketURL: started.WebsocketURL,
		})
	}
}

// RPAStatus returns the current snapshot of a session.
func RPAStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Session not found")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// RPASessions lists every session held by the registry.
func RPASessions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := d.Sessions.List()
		out := make(map[string]*domain.Session, len(list))
		for _, s := range list {
			out[s.ID] = s
		}
		writeJSON(w, http.StatusOK, sessionsResponse{
			ActiveSessions: len(out),
			Sessions:       out,
		})
	}
}

// RPAStop marks a session stopped and cancels its run.
func RPAStop(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if _, err := d.Orchestrator.Stop(id); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				writeDetail(w, http.StatusNotFound, "Session not found")
				return
			}
			d.Logger.Error("failed to stop automation", logger.String("session_id", id), logger.Error(err))
			writeDetail(w, http.StatusInternalServerError, "failed to stop automation")
			return
		}
		writeJSON(w, http.StatusOK, stopResponse{Success: true, Message: "RPA automation stopped"})
	}
}

// RPAWebSocket upgrades to the status relay channel of a session.
func RPAWebSocket(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Relay.ServeWS(w, r, chi.URLParam(r, "sessionID"))
	}
}

// RPAHealth reports whether automations can run and how busy the service is.
func RPAHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := rpaHealthResponse{
			RPAAvailable:         true,
			ActiveSessions:       d.Sessions.Len(),
			WebsocketConnections: d.Relay.Connections(),
			Timestamp:            d.Now().Format(time.RFC3339),
		}
		if err := d.Orchestrator.Available(); err != nil {
			resp.RPAAvailable = false
			resp.Error = err.Error()
			resp.InstallCommand = automation.InstallHint
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
