package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

// Launcher starts browser processes. playwright.BrowserType satisfies it.
type Launcher interface {
	Launch(options ...playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)
}

// Factory launches one isolated browser session per request.
type Factory struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	launcher    Launcher
	resolve     func() (string, error)
	execPath    string
	initialized bool
	log         *logging.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLauncher uses l instead of a Playwright-managed Chromium.
func WithLauncher(l Launcher) FactoryOption {
	return func(f *Factory) {
		f.launcher = l
		f.initialized = true
	}
}

// WithResolver replaces the executable lookup.
func WithResolver(fn func() (string, error)) FactoryOption {
	return func(f *Factory) {
		f.resolve = fn
	}
}

// WithLogger sets the factory logger.
func WithLogger(l *logging.Logger) FactoryOption {
	return func(f *Factory) {
		f.log = l
	}
}

// NewFactory creates a new session factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		resolve: FindChromium,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Initialize starts the Playwright driver.
// This must be called before creating any sessions unless a launcher was injected.
func (f *Factory) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	// Browsers come from the local install, so only the driver is needed
	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright driver: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.playwright = pw
	f.launcher = pw.Chromium
	f.initialized = true
	return nil
}

// SetExecutablePath overrides the cached Chromium path. An empty path clears
// the override so the next launch resolves again.
func (f *Factory) SetExecutablePath(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execPath = path
}

// ExecutablePath returns the cached Chromium path, resolving it on first use.
func (f *Factory) ExecutablePath() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executablePathLocked()
}

func (f *Factory) executablePathLocked() (string, error) {
	if f.execPath != "" {
		return f.execPath, nil
	}
	path, err := f.resolve()
	if err != nil {
		return "", err
	}
	f.execPath = path
	f.log.Infof("resolved browser executable %s", path)
	return path, nil
}

// CreateSession launches a browser, then opens a context and a page in it.
// Launch failures are returned as *LaunchError. Partially created resources
// are released before returning an error.
func (f *Factory) CreateSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	f.mu.Lock()
	if !f.initialized {
		f.mu.Unlock()
		return nil, fmt.Errorf("browser factory not initialized")
	}
	launcher := f.launcher
	execPath, err := f.executablePathLocked()
	f.mu.Unlock()

	if err != nil {
		return nil, &LaunchError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	f.log.Debugf("launching %s (headless=%t)", execPath, opts.Headless)
	browser, err := launcher.Launch(playwright.BrowserTypeLaunchOptions{
		Headless:       playwright.Bool(opts.Headless),
		ExecutablePath: playwright.String(execPath),
	})
	if err != nil {
		return nil, &LaunchError{ExecPath: execPath, Err: err}
	}

	// A nil viewport lets the page follow the window size
	contextOpts := playwright.BrowserNewContextOptions{
		NoViewport: playwright.Bool(true),
	}
	if opts.StorageStatePath != "" {
		contextOpts.StorageStatePath = playwright.String(opts.StorageStatePath)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close() // Ignore errors, continue cleanup
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()    // Ignore errors, continue cleanup
		_ = browser.Close() // Ignore errors, continue cleanup
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	return &Session{
		Browser:        browser,
		Context:        bctx,
		Page:           page,
		ExecutablePath: execPath,
		Headless:       opts.Headless,
		CreatedAt:      time.Now(),
	}, nil
}

// Shutdown stops the Playwright driver. Sessions must be closed by their owners first.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.playwright != nil {
		if err := f.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		f.playwright = nil
		f.launcher = nil
		f.initialized = false
	}
	return nil
}
