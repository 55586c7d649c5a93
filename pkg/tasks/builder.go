// Package tasks holds the feature tasks run per account: the comment
// listener with replies, scripted auto-speak and the product popup loop.
package tasks

import (
	"github.com/entrhq/livecontrol/pkg/task"
)

// Config selects and configures the feature tasks. A nil section leaves
// that task unregistered.
type Config struct {
	Reply *ReplyConfig
	Speak *SpeakConfig
	Popup *PopupConfig
}

// Builder returns a function creating the configured runners for one account.
func Builder(cfg Config) func(env task.Env) map[task.ID]task.Runner {
	return func(env task.Env) map[task.ID]task.Runner {
		runners := make(map[task.ID]task.Runner, 3)
		if cfg.Reply != nil {
			runners[task.CommentReply] = NewCommentReply(env, *cfg.Reply)
		}
		if cfg.Speak != nil {
			runners[task.AutoSpeak] = NewAutoSpeak(env, *cfg.Speak)
		}
		if cfg.Popup != nil {
			runners[task.AutoPopup] = NewAutoPopup(env, *cfg.Popup)
		}
		return runners
	}
}
