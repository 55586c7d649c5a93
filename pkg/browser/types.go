package browser

import (
	"errors"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Default values for sessions.
const (
	DefaultTimeout = 30000 // milliseconds
)

// Session represents an active browser session with its associated resources.
type Session struct {
	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated cookie jar and storage)
	Context playwright.BrowserContext

	// Page is the control console page
	Page playwright.Page

	// ExecutablePath is the Chromium binary the session was launched from
	ExecutablePath string

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// StorageStatePath points at a Playwright storage state file with saved cookies.
	// Empty starts from a clean profile.
	StorageStatePath string

	// Timeout sets the default timeout for page operations (in milliseconds)
	Timeout float64
}

// LaunchError reports a browser that could not be resolved or started.
type LaunchError struct {
	ExecPath string
	Err      error
}

func (e *LaunchError) Error() string {
	if e.ExecPath == "" {
		return "browser launch failed: " + e.Err.Error()
	}
	return "browser launch failed (" + e.ExecPath + "): " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ErrExecutableNotFound is returned when no Chromium binary can be located.
var ErrExecutableNotFound = errors.New("no chromium executable found; set CHROME_PATH or configure browser.chrome_path")
