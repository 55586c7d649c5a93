// Package console renders a live status table of every account in the
// terminal, fed by the orchestration event stream.
package console

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/livecontrol/pkg/types"
)

// Console runs the status table until the user quits or the context ends.
type Console struct {
	title    string
	snapshot SnapshotFunc
	opts     []tea.ProgramOption
}

// Option configures a Console.
type Option func(*Console)

// WithTitle sets the header text.
func WithTitle(title string) Option {
	return func(c *Console) { c.title = title }
}

// WithSnapshot sets the periodic state source.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(c *Console) { c.snapshot = fn }
}

// WithProgramOptions passes options to the bubbletea program.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(c *Console) { c.opts = append(c.opts, opts...) }
}

// New creates a console.
func New(opts ...Option) *Console {
	c := &Console{title: "livecontrol"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks until the user quits, ctx is done or events is closed.
func (c *Console) Run(ctx context.Context, events <-chan *types.Event) error {
	m := newModel(c.title, c.snapshot)
	opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, c.opts...)
	program := tea.NewProgram(m, opts...)

	go func() {
		// Forward orchestration events to the TUI
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					program.Quit()
					return
				}
				program.Send(EventMsg{Event: e})
			}
		}
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run console: %w", err)
	}
	return nil
}
