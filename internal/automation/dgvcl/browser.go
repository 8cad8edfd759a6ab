package dgvcl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser is the slice of a browser the bot needs.
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
	Close() error
}

// Page is one tab. Element lookups wait for the element to exist until the
// page context is done or the step timeout elapses.
type Page interface {
	Navigate(url string) error
	Fill(selector, value string) error
	SelectText(selector, text string) error
	Click(selector string) error
	WaitVisible(ctx context.Context, selector string) error
	Text(selector string) (string, error)
	Close() error
}

// Launcher starts a browser bound to ctx.
type Launcher func(ctx context.Context) (Browser, error)

// RodLauncher launches Chromium through go-rod. bin may be empty to let the
// launcher find or download a browser.
func RodLauncher(bin string, headless bool, stepTimeout time.Duration) Launcher {
	return func(ctx context.Context) (Browser, error) {
		l := launcher.New().Headless(headless)
		if bin != "" {
			l = l.Bin(bin)
		}

		controlURL, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}

		b := rod.New().ControlURL(controlURL).Context(ctx)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("connect to chrome: %w", err)
		}
		return &rodBrowser{browser: b, launcher: l, stepTimeout: stepTimeout}, nil
	}
}

type rodBrowser struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	stepTimeout time.Duration
}

func (b *rodBrowser) Open(ctx context.Context, url string) (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p := &rodPage{page: page.Context(ctx), stepTimeout: b.stepTimeout}
	if err := p.Navigate(url); err != nil {
		_ = page.Close()
		return nil, err
	}
	return p, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page        *rod.Page
	stepTimeout time.Duration
}

func (p *rodPage) Navigate(url string) error {
	page := p.page.Timeout(p.stepTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) element(selector string) (*rod.Element, error) {
	el, err := p.page.Timeout(p.stepTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el, nil
}

func (p *rodPage) Fill(selector, value string) error {
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (p *rodPage) SelectText(selector, text string) error {
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	if err := el.Select([]string{text}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("select %q in %s: %w", text, selector, err)
	}
	return nil
}

func (p *rodPage) Click(selector string) error {
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return el.WaitVisible()
}

func (p *rodPage) Text(selector string) (string, error) {
	el, err := p.element(selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
