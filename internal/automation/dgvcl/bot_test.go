package dgvcl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sevasetu/internal/automation"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

type fakePage struct {
	mu      sync.Mutex
	actions []string

	missing   map[string]bool // selectors that are never found
	blockWait bool            // WaitVisible blocks until ctx is done
	reference string
}

func (p *fakePage) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *fakePage) check(sel string) error {
	if p.missing[sel] {
		return fmt.Errorf("element %s not found", sel)
	}
	return nil
}

func (p *fakePage) Navigate(url string) error { p.record("navigate %s", url); return nil }

func (p *fakePage) Fill(sel, v string) error {
	if err := p.check(sel); err != nil {
		return err
	}
	p.record("fill %s=%s", sel, v)
	return nil
}

func (p *fakePage) SelectText(sel, text string) error {
	p.record("select %s=%s", sel, text)
	return p.check(sel)
}

func (p *fakePage) Click(sel string) error {
	p.record("click %s", sel)
	return p.check(sel)
}

func (p *fakePage) WaitVisible(ctx context.Context, sel string) error {
	p.record("wait %s", sel)
	if p.blockWait {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) Text(sel string) (string, error) {
	if err := p.check(sel); err != nil {
		return "", err
	}
	return p.reference, nil
}

func (p *fakePage) Close() error { return nil }

type fakeBrowser struct {
	page   *fakePage
	opened string
	closed bool
}

func (b *fakeBrowser) Open(_ context.Context, url string) (Page, error) {
	b.opened = url
	return b.page, nil
}

func (b *fakeBrowser) Close() error { b.closed = true; return nil }

func launcherFor(b *fakeBrowser) Launcher {
	return func(context.Context) (Browser, error) { return b, nil }
}

type stepLog struct {
	mu      sync.Mutex
	updates []automation.StepUpdate
}

func (l *stepLog) report(u automation.StepUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *stepLog) steps() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.updates))
	for _, u := range l.updates {
		out = append(out, u.Step)
	}
	return out
}

var nameChangeForm = automation.FormData{
	"mobile":          9876543210.0,
	"consumer_number": "12345",
	"new_name":        "Asha Patel",
}

func TestRunCompletes(t *testing.T) {
	page := &fakePage{reference: " DG/2026/001 "}
	browser := &fakeBrowser{page: page}
	bot := New(Config{}, launcherFor(browser), nil)

	var log stepLog
	res, err := bot.Run(context.Background(), "name_change", nameChangeForm, log.report)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "DG/2026/001", res.Reference)
	assert.Equal(t, "DGVCL", res.Data["discom"])
	assert.Equal(t, []string{domain.Step1, domain.Step2, domain.Step3, domain.Step4, domain.Step5, domain.StepComplete}, log.steps())
	assert.True(t, log.updates[2].Waiting, "STEP 3 waits for the citizen")

	assert.Equal(t, DefaultLoginURL, browser.opened)
	assert.True(t, browser.closed)
	assert.Contains(t, page.actions, `fill input[placeholder="Mobile No"]=9876543210`)
	assert.Contains(t, page.actions, "select #discom=DGVCL")
	assert.Contains(t, page.actions, "navigate https://portal.guvnl.in/ltmaster/namechange.php")
	assert.Contains(t, page.actions, `fill input[name="new_name"]=Asha Patel`)
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name    string
		appType string
		form    automation.FormData
		wantErr string
	}{
		{"unknown application", "new_connection", nameChangeForm, "new_connection not supported"},
		{"no mobile", "name_change", automation.FormData{"consumer_number": "1", "new_name": "x"}, "Mobile number is required"},
		{"missing field", "name_change", automation.FormData{"mobile": "98", "consumer_number": "1"}, "Missing form field new_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launched := false
			bot := New(Config{}, func(context.Context) (Browser, error) {
				launched = true
				return nil, errors.New("should not launch")
			}, nil)

			var log stepLog
			res, err := bot.Run(context.Background(), tt.appType, tt.form, log.report)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
			assert.Equal(t, []string{domain.StepError}, log.steps())
			assert.False(t, launched)
		})
	}
}

func TestRunLoginTimeout(t *testing.T) {
	page := &fakePage{blockWait: true}
	bot := New(Config{LoginTimeout: 20 * time.Millisecond}, launcherFor(&fakeBrowser{page: page}), nil)

	var log stepLog
	res, err := bot.Run(context.Background(), "name_change", nameChangeForm, log.report)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Login not completed")
	assert.Equal(t, domain.StepError, log.steps()[len(log.steps())-1])
}

func TestRunCancelled(t *testing.T) {
	page := &fakePage{blockWait: true}
	bot := New(Config{LoginTimeout: time.Minute}, launcherFor(&fakeBrowser{page: page}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var log stepLog
	_, err := bot.Run(ctx, "name_change", nameChangeForm, log.report)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPortalError(t *testing.T) {
	page := &fakePage{missing: map[string]bool{selDiscom: true}}
	browser := &fakeBrowser{page: page}
	bot := New(Config{}, launcherFor(browser), nil)

	var log stepLog
	res, err := bot.Run(context.Background(), "name_change", nameChangeForm, log.report)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "#discom")
	assert.Equal(t, []string{domain.Step1, domain.Step2, domain.StepError}, log.steps())
	assert.True(t, browser.closed)
}

func TestRunLaunchFailure(t *testing.T) {
	bot := New(Config{}, func(context.Context) (Browser, error) {
		return nil, errors.New("chrome not found")
	}, nil)

	var log stepLog
	_, err := bot.Run(context.Background(), "name_change", nameChangeForm, log.report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestPortalBase(t *testing.T) {
	assert.Equal(t, "https://portal.guvnl.in", portalBase("https://portal.guvnl.in/login.php"))
	assert.Equal(t, "http://localhost:8080", portalBase("http://localhost:8080/"))
	assert.Equal(t, "http://localhost:8080", portalBase("http://localhost:8080"))
}
