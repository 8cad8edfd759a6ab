// Package automation defines the contract between the orchestrator and the
// provider bots that drive third-party portals.
package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

// FormData is the citizen-supplied payload forwarded to a bot untouched.
type FormData map[string]any

// String returns the value at key as a trimmed string, or "".
func (f FormData) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers, e.g. a mobile number sent unquoted
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// StepUpdate is one progress report from a running bot.
type StepUpdate struct {
	Step    string
	Message string
	// Waiting is set while the bot is blocked on the citizen (OTP, captcha).
	Waiting bool
}

// Reporter receives step updates. It is called synchronously from the bot.
type Reporter func(StepUpdate)

// Bot drives one provider portal. Run must return promptly once ctx is done.
// A returned error means the run broke; a Result with Success=false means the
// portal refused or the flow could not be completed.
type Bot interface {
	Run(ctx context.Context, applicationType string, form FormData, report Reporter) (domain.Result, error)
}

// BotFunc adapts a function to Bot.
type BotFunc func(ctx context.Context, applicationType string, form FormData, report Reporter) (domain.Result, error)

func (f BotFunc) Run(ctx context.Context, applicationType string, form FormData, report Reporter) (domain.Result, error) {
	return f(ctx, applicationType, form, report)
}
