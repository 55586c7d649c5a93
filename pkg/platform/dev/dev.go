// Package dev provides a local test platform that renders its own control console.
// It needs no network access and is used to exercise the orchestration end to end.
package dev

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/playwright-community/playwright-go"
)

// ID is the registry identifier of the test platform.
const ID = "dev"

//go:embed console.html
var consoleHTML string

const (
	consoleSelector = ".top-nav"
	loginSelector   = ".login-form__btn-submit"
)

// ErrListenerStart is the simulated failure of the comment listener.
var ErrListenerStart = errors.New("dev: simulated comment listener failure")

var (
	_ platform.LiveDetector    = (*Platform)(nil)
	_ platform.AccountNamer    = (*Platform)(nil)
	_ platform.CommentListener = (*Platform)(nil)
	_ platform.CommentSender   = (*Platform)(nil)
	_ platform.PopupPerformer  = (*Platform)(nil)
)

// Platform drives the embedded console page.
type Platform struct {
	interval    time.Duration
	failureRate float64

	mu      sync.Mutex
	written bool
	stop    context.CancelFunc
	done    chan struct{}
}

// Option configures the dev platform.
type Option func(*Platform)

// WithMessageInterval sets how often the mock listener emits a message.
func WithMessageInterval(d time.Duration) Option {
	return func(p *Platform) { p.interval = d }
}

// WithListenerFailureRate sets the probability (0..1) that starting the listener fails.
func WithListenerFailureRate(rate float64) Option {
	return func(p *Platform) { p.failureRate = rate }
}

// New creates a dev platform adapter.
func New(opts ...Option) *Platform {
	p := &Platform{
		interval:    time.Second,
		failureRate: 0.1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds the dev platform to reg. It is hidden from listings.
func Register(reg *platform.Registry, opts ...Option) error {
	return reg.Register(platform.Info{
		ID:     ID,
		Name:   "Test platform",
		Hidden: true,
	}, func() platform.Platform { return New(opts...) })
}

func (p *Platform) ID() string { return ID }

// Connect writes the console page once, then waits for either the console or the login form.
func (p *Platform) Connect(ctx context.Context, s *browser.Session) (bool, error) {
	p.mu.Lock()
	written := p.written
	p.mu.Unlock()

	if !written {
		if err := s.Page.SetContent(consoleHTML); err != nil {
			return false, fmt.Errorf("dev: write console: %w", err)
		}
		p.mu.Lock()
		p.written = true
		p.mu.Unlock()
	}

	_, err := s.Page.WaitForSelector(consoleSelector+", "+loginSelector, playwright.PageWaitForSelectorOptions{
		Timeout: waitTimeout(ctx),
	})
	if err != nil {
		return false, fmt.Errorf("dev: wait for console: %w", err)
	}

	return evalBool(s.Page, `() => !!document.querySelector('`+consoleSelector+`')`)
}

// Login waits until the console is shown.
func (p *Platform) Login(ctx context.Context, s *browser.Session) error {
	_, err := s.Page.WaitForSelector(consoleSelector, playwright.PageWaitForSelectorOptions{
		Timeout: waitTimeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("dev: wait for login: %w", err)
	}
	return nil
}

// AccountName reads the profile label.
func (p *Platform) AccountName(ctx context.Context, s *browser.Session) (string, error) {
	v, err := s.Page.Evaluate(`() => document.querySelector('.user-profile span')?.textContent ?? ''`)
	if err != nil {
		return "", fmt.Errorf("dev: read account name: %w", err)
	}
	name, _ := v.(string)
	return name, nil
}

// IsLive checks the status indicator for "On Air".
func (p *Platform) IsLive(ctx context.Context, s *browser.Session) (bool, error) {
	return evalBool(s.Page, `() => (document.querySelector('.status-indicator')?.textContent ?? '').includes('On Air')`)
}

// StartCommentListener emits a mock message every interval until stopped.
func (p *Platform) StartCommentListener(ctx context.Context, s *browser.Session, onMessage func(types.LiveMessage), source string) error {
	if p.failureRate > 0 && rand.Float64() < p.failureRate {
		return ErrListenerStart
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return fmt.Errorf("dev: comment listener already running")
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.stop = cancel
	p.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-listenCtx.Done():
				return
			case <-ticker.C:
				onMessage(mockMessage())
			}
		}
	}()
	return nil
}

// StopCommentListener stops the mock stream and waits for the emitter to exit.
func (p *Platform) StopCommentListener() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return nil
	}
	stop()
	<-done
	return nil
}

// PerformComment types text into the comment box and sends it.
func (p *Platform) PerformComment(ctx context.Context, s *browser.Session, text string) error {
	if err := s.Page.Fill("#comment-input", text); err != nil {
		return fmt.Errorf("dev: fill comment: %w", err)
	}
	if err := click(ctx, s.Page, "#comment-submit", playwright.PageClickOptions{}); err != nil {
		return fmt.Errorf("dev: send comment: %w", err)
	}
	return nil
}

// PerformPopup clicks the explain button of a product.
func (p *Platform) PerformPopup(ctx context.Context, s *browser.Session, productID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	selector := fmt.Sprintf(`.popup-btn[data-id="%d"]`, productID)
	opts := playwright.PageClickOptions{}
	if _, ok := ctx.Deadline(); ok {
		opts.Timeout = waitTimeout(ctx)
	}
	if err := click(ctx, s.Page, selector, opts); err != nil {
		return fmt.Errorf("dev: popup product %d: %w", productID, err)
	}
	return nil
}

// click returns when the click finishes or ctx ends. An abandoned click
// runs on until Playwright's own timeout.
func click(ctx context.Context, page playwright.Page, selector string, opts playwright.PageClickOptions) error {
	done := make(chan error, 1)
	go func() { done <- page.Click(selector, opts) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitTimeout maps a context deadline to a Playwright timeout; no deadline waits indefinitely.
func waitTimeout(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(0)
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

func evalBool(page playwright.Page, expr string) (bool, error) {
	v, err := page.Evaluate(expr)
	if err != nil {
		return false, fmt.Errorf("dev: evaluate: %w", err)
	}
	b, _ := v.(bool)
	return b, nil
}
