// Package probe checks that supplier URLs answer, with bounded concurrency
// and a global request rate.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/sevasetu/internal/utils"
)

const (
	DefaultConcurrency = 4
	DefaultRPS         = 2.0
	DefaultTimeout     = 10 * time.Second
	userAgent          = "sevactl-probe/1"
)

// Target is one URL to check.
type Target struct {
	SupplierID string
	Kind       string // portal, name_change, ...
	URL        string
}

// Result is the outcome of probing a Target.
type Result struct {
	Target
	Status   int
	Duration time.Duration
	Err      error
}

// OK reports whether the URL answered without a server or transport error.
// 4xx other than 404/410 still means the site is up (login walls, bot filters).
func (r Result) OK() bool {
	if r.Err != nil {
		return false
	}
	return r.Status < 500 && r.Status != http.StatusNotFound && r.Status != http.StatusGone
}

// Options configures Run.
type Options struct {
	Concurrency int
	RPS         float64
	Timeout     time.Duration // per request
	Client      *http.Client
}

func (o *Options) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.RPS <= 0 {
		o.RPS = DefaultRPS
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
}

// Run probes every target and returns results in target order. Individual
// failures are reported in the results; the error is only set when ctx ends.
func Run(ctx context.Context, targets []Target, opts Options) ([]Result, error) {
	opts.defaults()

	limiter := rate.NewLimiter(rate.Limit(opts.RPS), 1)
	results := make([]Result, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, t := range targets {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				results[i] = Result{Target: t, Err: err}
				return err
			}
			results[i] = check(gctx, opts, t)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("probe interrupted: %w", err)
	}
	return results, nil
}

// check sends a HEAD request, retrying with GET when HEAD is refused.
func check(ctx context.Context, opts Options, t Target) Result {
	start := time.Now()
	status, err := do(ctx, opts, http.MethodHead, t.URL)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = do(ctx, opts, http.MethodGet, t.URL)
	}
	return Result{Target: t, Status: status, Duration: time.Since(start), Err: err}
}

func do(ctx context.Context, opts Options, method, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := opts.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer utils.Close(resp.Body)
	return resp.StatusCode, nil
}
