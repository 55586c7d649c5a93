package browser

import (
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Close releases the session top-down: page, context, then browser.
// Every handle is closed even if an earlier one fails. Calling Close again
// returns the first result without touching the handles.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.Page != nil {
			if err := s.Page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// OnLost registers fn to run when the page is closed from outside,
// for example when the user closes the browser window.
func (s *Session) OnLost(fn func()) {
	if s.Page == nil || fn == nil {
		return
	}
	s.Page.OnClose(func(playwright.Page) {
		fn()
	})
}

// URL returns the current page URL, or an empty string for a session without a page.
func (s *Session) URL() string {
	if s.Page == nil {
		return ""
	}
	return s.Page.URL()
}
