// Package dgvcl automates applications on the GUVNL consumer portal for DGVCL customers.
package dgvcl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/automation"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

const (
	DefaultLoginURL     = "https://portal.guvnl.in/login.php"
	DefaultDiscom       = "DGVCL"
	DefaultLoginTimeout = 5 * time.Minute
	DefaultStepTimeout  = 30 * time.Second
)

// Selectors of the login flow.
const (
	selMobile    = `input[placeholder="Mobile No"]`
	selDiscom    = `#discom`
	selLogin     = `button[type="submit"]`
	selDashboard = `#dashboard`
)

// Form describes one application form on the portal.
type Form struct {
	Path string
	// Fields maps form data keys to input selectors. All are required.
	Fields    map[string]string
	Submit    string
	Reference string
}

// DefaultForms are the application forms the bot knows how to fill.
var DefaultForms = map[string]Form{
	"name_change": {
		Path: "/ltmaster/namechange.php",
		Fields: map[string]string{
			"consumer_number": `input[name="consumer_no"]`,
			"new_name":        `input[name="new_name"]`,
		},
		Submit:    `button[type="submit"]`,
		Reference: `#application_no`,
	},
	"address_change": {
		Path: "/ltmaster/addresschange.php",
		Fields: map[string]string{
			"consumer_number": `input[name="consumer_no"]`,
			"new_address":     `textarea[name="new_address"]`,
		},
		Submit:    `button[type="submit"]`,
		Reference: `#application_no`,
	},
}

// Config configures the bot.
type Config struct {
	LoginURL     string
	LoginTimeout time.Duration
	Forms        map[string]Form
}

// Bot runs the DGVCL flow. It implements automation.Bot.
type Bot struct {
	cfg    Config
	launch Launcher
	log    logger.Logger
}

// New creates a bot. Zero config values take the package defaults.
func New(cfg Config, launch Launcher, log logger.Logger) *Bot {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if cfg.Forms == nil {
		cfg.Forms = DefaultForms
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{cfg: cfg, launch: launch, log: log}
}

// Run opens the portal, waits for the citizen to finish the OTP login, fills
// and submits the application form and returns the portal reference.
func (b *Bot) Run(ctx context.Context, applicationType string, form automation.FormData, report automation.Reporter) (domain.Result, error) {
	target, ok := b.cfg.Forms[applicationType]
	if !ok {
		return b.fail(report, fmt.Sprintf("Application type %s not supported for DGVCL", applicationType)), nil
	}

	mobile := form.String("mobile")
	if mobile == "" {
		return b.fail(report, "Mobile number is required"), nil
	}
	discom := form.String("discom")
	if discom == "" {
		discom = DefaultDiscom
	}
	keys := make([]string, 0, len(target.Fields))
	for key := range target.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		v := form.String(key)
		if v == "" {
			return b.fail(report, fmt.Sprintf("Missing form field %s", key)), nil
		}
		values[key] = v
	}

	report(automation.StepUpdate{Step: domain.Step1, Message: "Opening GUVNL portal"})
	browser, err := b.launch(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			b.log.Debug("browser close failed", logger.Error(err))
		}
	}()

	page, err := browser.Open(ctx, b.cfg.LoginURL)
	if err != nil {
		return b.interrupted(ctx, report, err)
	}
	defer func() { _ = page.Close() }()

	report(automation.StepUpdate{Step: domain.Step2, Message: "Filling mobile number and discom"})
	if err := page.Fill(selMobile, mobile); err != nil {
		return b.interrupted(ctx, report, err)
	}
	if err := page.SelectText(selDiscom, strings.ToUpper(discom)); err != nil {
		return b.interrupted(ctx, report, err)
	}
	if err := page.Click(selLogin); err != nil {
		return b.interrupted(ctx, report, err)
	}

	report(automation.StepUpdate{
		Step:    domain.Step3,
		Message: fmt.Sprintf("Waiting for OTP login for %s", mobile),
		Waiting: true,
	})
	loginCtx, cancel := context.WithTimeout(ctx, b.cfg.LoginTimeout)
	err = page.WaitVisible(loginCtx, selDashboard)
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(loginCtx.Err(), context.DeadlineExceeded) {
			return b.fail(report, fmt.Sprintf("Login not completed within %s", b.cfg.LoginTimeout)), nil
		}
		return b.interrupted(ctx, report, err)
	}

	report(automation.StepUpdate{Step: domain.Step4, Message: "Filling " + strings.ReplaceAll(applicationType, "_", " ") + " form"})
	if err := page.Navigate(portalBase(b.cfg.LoginURL) + target.Path); err != nil {
		return b.interrupted(ctx, report, err)
	}
	for _, key := range keys {
		if err := page.Fill(target.Fields[key], values[key]); err != nil {
			return b.interrupted(ctx, report, err)
		}
	}

	report(automation.StepUpdate{Step: domain.Step5, Message: "Submitting application"})
	if err := page.Click(target.Submit); err != nil {
		return b.interrupted(ctx, report, err)
	}
	ref, err := page.Text(target.Reference)
	if err != nil {
		return b.interrupted(ctx, report, err)
	}
	ref = strings.TrimSpace(ref)

	report(automation.StepUpdate{Step: domain.StepComplete, Message: "Application submitted: " + ref})
	return domain.Result{
		Success:   true,
		Message:   "Application submitted",
		Reference: ref,
		Data: map[string]any{
			"application_type": applicationType,
			"discom":           strings.ToUpper(discom),
		},
	}, nil
}

func (b *Bot) fail(report automation.Reporter, msg string) domain.Result {
	report(automation.StepUpdate{Step: domain.StepError, Message: msg})
	return domain.Result{Success: false, Error: msg}
}

// interrupted turns a page error into a failed result, unless the run was
// cancelled, in which case the context error is returned.
func (b *Bot) interrupted(ctx context.Context, report automation.Reporter, err error) (domain.Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Result{}, ctxErr
	}
	return b.fail(report, err.Error()), nil
}

// portalBase strips the path from the login URL.
func portalBase(loginURL string) string {
	if i := strings.Index(loginURL, "://"); i >= 0 {
		if j := strings.Index(loginURL[i+3:], "/"); j >= 0 {
			return loginURL[:i+3+j]
		}
	}
	return strings.TrimSuffix(loginURL, "/")
}
