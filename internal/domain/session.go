package domain

import (
	"maps"
	"time"
)

// Status is the lifecycle state of an automation session.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusWaiting    Status = "waiting" // bot is blocked on the citizen (OTP, captcha)
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
	StatusStopped    Status = "stopped"
)

// Terminal reports whether no further progress is expected after s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError, StatusStopped:
		return true
	}
	return false
}

// Result is the outcome reported by an automation bot.
type Result struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Message   string         `json:"message,omitempty"`
	Reference string         `json:"reference,omitempty"` // application number issued by the portal
	Data      map[string]any `json:"data,omitempty"`
}

// Session is one run of an automation bot, tracked from start to a terminal state.
type Session struct {
	ID              string `json:"session_id"`
	Provider        string `json:"provider"`
	ApplicationType string `json:"application_type"`
	Requester       string `json:"requester,omitempty"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Step     string `json:"step,omitempty"`
	Message  string `json:"message,omitempty"`

	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// NewSession returns a session in the starting state.
func NewSession(id, provider, applicationType, requester string, now time.Time) *Session {
	return &Session{
		ID:              id,
		Provider:        provider,
		ApplicationType: applicationType,
		Requester:       requester,
		Status:          StatusStarting,
		Progress:        0,
		StartedAt:       now,
		UpdatedAt:       now,
	}
}

// EndedAt returns the time the session reached its terminal state, or zero.
func (s *Session) EndedAt() time.Time {
	for _, t := range []*time.Time{s.CompletedAt, s.FailedAt, s.StoppedAt} {
		if t != nil {
			return *t
		}
	}
	return time.Time{}
}

// Clone returns a deep copy safe to hand outside the registry.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.StoppedAt = cloneTime(s.StoppedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.FailedAt = cloneTime(s.FailedAt)
	if s.Result != nil {
		r := *s.Result
		r.Data = maps.Clone(s.Result.Data)
		c.Result = &r
	}
	return &c
}

// SessionDelta is a partial update merged into a session and pushed to its subscriber.
// Zero-valued fields are left untouched; Progress is a pointer because 0 is meaningful.
type SessionDelta struct {
	SessionID   string     `json:"session_id"`
	Status      Status     `json:"status,omitempty"`
	Step        string     `json:"step,omitempty"`
	Message     string     `json:"message,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// StopDelta is the update recorded when a user stops a session.
func StopDelta(now time.Time) SessionDelta {
	return SessionDelta{
		Status:    StatusStopped,
		Message:   "Automation stopped by user",
		StoppedAt: &now,
		Timestamp: now,
	}
}

// Progress returns a pointer to n for use in SessionDelta.
func Progress(n int) *int { return &n }

// Apply merges d into s.
//
// Terminal states are absorbing: once s is terminal, status, step, message,
// progress and stopped_at are frozen. Only the result, the error text and the
// completion timestamps are still merged.
func (s *Session) Apply(d SessionDelta) {
	frozen := s.Status.Terminal()

	if !frozen {
		if d.Status != "" {
			s.Status = d.Status
		}
		if d.Step != "" {
			s.Step = d.Step
		}
		if d.Message != "" {
			s.Message = d.Message
		}
		if d.Progress != nil {
			s.Progress = *d.Progress
		}
		if d.StoppedAt != nil {
			s.StoppedAt = cloneTime(d.StoppedAt)
		}
	}

	if d.Result != nil {
		s.Result = d.Result
	}
	if d.Error != "" {
		s.Error = d.Error
	}
	if d.CompletedAt != nil {
		s.CompletedAt = cloneTime(d.CompletedAt)
	}
	if d.FailedAt != nil {
		s.FailedAt = cloneTime(d.FailedAt)
	}

	if !d.Timestamp.IsZero() {
		s.UpdatedAt = d.Timestamp
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
