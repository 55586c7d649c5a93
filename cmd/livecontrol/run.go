package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/livecontrol/pkg/account"
	"github.com/entrhq/livecontrol/pkg/config"
	"github.com/entrhq/livecontrol/pkg/console"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/spf13/cobra"
)

const eventQueue = 256

type runOptions struct {
	start    []string
	tui      bool
	accounts []string

	stdout io.Writer
	stderr io.Writer
}

func newRunCmd(opts *options) *cobra.Command {
	var ro runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect the configured accounts and run their features",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			// Create context with signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					fmt.Fprintln(cmd.ErrOrStderr(), "\nShutting down gracefully...")
					cancel()
				case <-ctx.Done():
				}
			}()

			ro.stdout = cmd.OutOrStdout()
			ro.stderr = cmd.ErrOrStderr()
			return run(ctx, cfg, ro)
		},
	}

	cmd.Flags().StringSliceVar(&ro.start, "start", nil, "features to start once each account is live: reply, speak, popup")
	cmd.Flags().BoolVar(&ro.tui, "tui", false, "show the status console instead of logging events")
	cmd.Flags().StringSliceVar(&ro.accounts, "account", nil, "connect only these account ids")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, ro runOptions) error {
	features, err := parseFeatures(ro.start)
	if err != nil {
		return err
	}
	selected, err := selectAccounts(cfg, ro.accounts)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no accounts configured, run 'livecontrol init' and edit the config")
	}

	log, err := logging.NewLogger("livecontrol")
	if err != nil {
		return err
	}
	defer log.Close()

	events := make(chan *types.Event, eventQueue)
	emit := func(e *types.Event) {
		select {
		case events <- e:
		default:
			log.Warnf("event queue full, dropping %s for %s", e.Type, e.AccountID)
		}
	}

	a, err := wireApp(cfg, log, emit)
	if err != nil {
		return err
	}
	if err := a.factory.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := a.factory.Shutdown(); err != nil {
			log.Warnf("browser driver shutdown: %v", err)
		}
	}()

	ids := make([]string, len(selected))
	for i, acc := range selected {
		ids[i] = acc.ID
		a.accounts.SetAccountName(acc.ID, acc.Name)
	}
	starts := newPendingStarts(a.accounts, log.Scope("start"), ids, features)

	connectAccounts(ctx, a.accounts, cfg.Browser, selected, log, ro.stderr)

	var ui chan *types.Event
	uiDone := make(chan error, 1)
	if ro.tui {
		ui = make(chan *types.Event, eventQueue)
		c := console.New(console.WithSnapshot(a.accounts.Snapshot))
		go func() { uiDone <- c.Run(ctx, ui) }()
	}

	err = dispatch(ctx, events, starts, log, ro.stdout, ui, uiDone)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	closed := make(chan struct{})
	go func() {
		a.accounts.CloseAll()
		close(closed)
	}()
	select {
	case <-closed:
	case <-closeCtx.Done():
		log.Warnf("timed out closing sessions")
	}
	return err
}

// connectAccounts starts a connect for every selected account. A failed
// account is reported on stderr and the rest still connect.
func connectAccounts(ctx context.Context, accounts *account.Registry, browserCfg config.BrowserConfig,
	selected []config.AccountConfig, log *logging.Logger, stderr io.Writer) {
	for _, acc := range selected {
		res := accounts.Connect(ctx, account.ConnectRequest{
			AccountID:        acc.ID,
			Platform:         acc.Platform,
			Headless:         browserCfg.Headless,
			StorageStatePath: acc.StorageState,
			ChromePath:       browserCfg.ChromePath,
		})
		if !res.Success {
			log.Errorf("connect %s: %s", acc.ID, res.Error)
			fmt.Fprintf(stderr, "connect %s: %s\n", acc.ID, res.Error)
		}
	}
}

// dispatch routes events until ctx ends or the console exits.
func dispatch(ctx context.Context, events <-chan *types.Event, starts *pendingStarts, log *logging.Logger,
	out io.Writer, ui chan<- *types.Event, uiDone <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-uiDone:
			return err
		case e := <-events:
			starts.handle(ctx, e)
			logEvent(log, e)
			if ui != nil {
				select {
				case ui <- e:
				default:
				}
			} else {
				printEvent(out, e)
			}
		}
	}
}

func logEvent(log *logging.Logger, e *types.Event) {
	if e.Type == types.EventTypeNewComments {
		log.Debugf("[%s] %d new messages", e.AccountID, len(e.Comments))
		return
	}
	log.Infof("[%s] %s", e.AccountID, describe(e))
}

func printEvent(w io.Writer, e *types.Event) {
	ts := e.Time.Format("15:04:05")
	if e.Type == types.EventTypeNewComments {
		for _, c := range e.Comments {
			if c.IsComment() {
				fmt.Fprintf(w, "%s [%s] %s: %s\n", ts, e.AccountID, c.Nickname, c.Content)
			}
		}
		return
	}
	fmt.Fprintf(w, "%s [%s] %s\n", ts, e.AccountID, describe(e))
}

func describe(e *types.Event) string {
	switch e.Type {
	case types.EventTypeAccountNameResolved:
		return "logged in as " + e.AccountName
	case types.EventTypeConnectStateChanged:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.ConnectStatus, e.Message)
		}
		return string(e.ConnectStatus)
	case types.EventTypeStreamStateChanged:
		return "stream " + string(e.StreamStatus)
	case types.EventTypeDisconnected:
		return "disconnected: " + e.Message
	case types.EventTypeTaskStopped:
		return e.Message
	default:
		return string(e.Type)
	}
}

func selectAccounts(cfg *config.Config, only []string) ([]config.AccountConfig, error) {
	if len(only) == 0 {
		return cfg.Accounts, nil
	}
	out := make([]config.AccountConfig, 0, len(only))
	for _, id := range only {
		acc, ok := cfg.Account(id)
		if !ok {
			return nil, fmt.Errorf("account %q is not in the config", id)
		}
		out = append(out, acc)
	}
	return out, nil
}
