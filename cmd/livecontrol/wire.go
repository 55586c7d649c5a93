package main

import (
	"fmt"

	"github.com/entrhq/livecontrol/pkg/account"
	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/config"
	"github.com/entrhq/livecontrol/pkg/llm/openai"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/platform/dev"
	"github.com/entrhq/livecontrol/pkg/platform/web"
	"github.com/entrhq/livecontrol/pkg/reply"
	"github.com/entrhq/livecontrol/pkg/task"
	"github.com/entrhq/livecontrol/pkg/tasks"
	"github.com/entrhq/livecontrol/pkg/types"
)

type app struct {
	cfg       *config.Config
	log       *logging.Logger
	factory   *browser.Factory
	platforms *platform.Registry
	accounts  *account.Registry
}

func newPlatformRegistry() (*platform.Registry, error) {
	reg := platform.NewRegistry()
	if err := dev.Register(reg); err != nil {
		return nil, fmt.Errorf("register dev platform: %w", err)
	}
	if err := web.Register(reg); err != nil {
		return nil, fmt.Errorf("register web platforms: %w", err)
	}
	return reg, nil
}

func wireApp(cfg *config.Config, log *logging.Logger, emit types.EmitFunc) (*app, error) {
	platforms, err := newPlatformRegistry()
	if err != nil {
		return nil, err
	}
	for _, a := range cfg.Accounts {
		if _, ok := platforms.Lookup(a.Platform); !ok {
			return nil, fmt.Errorf("account %q: unknown platform %q", a.ID, a.Platform)
		}
	}

	taskCfg, err := buildTaskConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	factory := browser.NewFactory(browser.WithLogger(log.Scope("browser")))

	opts := []account.Option{
		account.WithEmitter(emit),
		account.WithLogger(log),
		account.WithTaskBuilder(tasks.Builder(taskCfg)),
	}
	if cfg.AutoStartOnLive {
		opts = append(opts, account.WithAutoStart(autoStartIDs(cfg, taskCfg)...))
	}

	return &app{
		cfg:       cfg,
		log:       log,
		factory:   factory,
		platforms: platforms,
		accounts:  account.NewRegistry(factory, platforms, opts...),
	}, nil
}

// buildTaskConfig turns the config sections into task settings. The reply
// task is always available so comments are shown even without replies.
func buildTaskConfig(cfg *config.Config, log *logging.Logger) (tasks.Config, error) {
	responder, err := buildResponder(cfg.AutoReply, log)
	if err != nil {
		return tasks.Config{}, err
	}

	tc := tasks.Config{
		Reply: &tasks.ReplyConfig{
			Source:    cfg.AutoReply.Source,
			Responder: responder,
		},
	}
	if cfg.AutoReply.Broadcast.Enabled {
		tc.Reply.BroadcastAddr = cfg.AutoReply.Broadcast.Addr
	}

	if s := cfg.AutoSpeak; len(s.Messages) > 0 {
		tc.Speak = &tasks.SpeakConfig{
			Messages:    s.Messages,
			Schedule:    tasks.Schedule{Min: s.Interval, Max: s.MaxInterval},
			Random:      s.Random,
			ExtraSpaces: s.ExtraSpaces,
		}
	}
	if p := cfg.AutoPopup; len(p.ProductIDs) > 0 {
		tc.Popup = &tasks.PopupConfig{
			ProductIDs: p.ProductIDs,
			Schedule:   tasks.Schedule{Min: p.Interval, Max: p.MaxInterval},
			Random:     p.Random,
		}
	}
	return tc, nil
}

// buildResponder returns nil when neither rules nor AI are configured.
func buildResponder(rc config.AutoReplyConfig, log *logging.Logger) (reply.Generator, error) {
	rules := make([]reply.Rule, len(rc.Rules))
	for i, r := range rc.Rules {
		rules[i] = reply.Rule{Pattern: r.Pattern, Reply: r.Reply}
	}
	matcher, err := reply.NewRuleMatcher(rules)
	if err != nil {
		return nil, err
	}

	var ai reply.Generator
	if rc.AI.Enabled {
		provider, err := openai.NewProvider(rc.AI.APIKey,
			openai.WithModel(rc.AI.Model),
			openai.WithBaseURL(rc.AI.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("ai replies: %w", err)
		}
		ai = reply.NewAIGenerator(provider,
			reply.WithSystemPrompt(rc.AI.SystemPrompt),
			reply.WithContextTokens(rc.AI.ContextTokens),
			reply.WithAILogger(log.Scope("ai")))
	}

	responder := reply.NewResponder(matcher, ai)
	if !responder.Enabled() {
		return nil, nil
	}
	return responder, nil
}

// autoStartIDs lists the configured auto start tasks that exist, or every
// available task when none are listed.
func autoStartIDs(cfg *config.Config, tc tasks.Config) []task.ID {
	available := map[task.ID]bool{
		task.CommentReply: tc.Reply != nil,
		task.AutoSpeak:    tc.Speak != nil,
		task.AutoPopup:    tc.Popup != nil,
	}
	var ids []task.ID
	if len(cfg.AutoStartTasks) == 0 {
		for _, id := range []task.ID{task.CommentReply, task.AutoSpeak, task.AutoPopup} {
			if available[id] {
				ids = append(ids, id)
			}
		}
		return ids
	}
	for _, name := range cfg.AutoStartTasks {
		if id := task.ID(name); available[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
