// Package platform defines the adapters that drive a live-commerce control console.
//
// Every adapter implements Platform. Optional features are separate capability
// interfaces checked with a type assertion, so callers can tell an adapter that
// cannot detect live state from one that failed to.
package platform

import (
	"context"
	"errors"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/types"
)

// ErrUnsupported is returned when an adapter lacks a required capability.
var ErrUnsupported = errors.New("operation not supported by platform")

// Platform is the minimal adapter: open the console and log in.
type Platform interface {
	// ID returns the registry identifier, e.g. "douyin".
	ID() string

	// Connect opens the control console in the session page and reports
	// whether the account is already authenticated.
	Connect(ctx context.Context, session *browser.Session) (bool, error)

	// Login blocks until the user has finished logging in.
	Login(ctx context.Context, session *browser.Session) error
}

// LiveDetector reports whether the account is broadcasting.
type LiveDetector interface {
	IsLive(ctx context.Context, session *browser.Session) (bool, error)
}

// AccountNamer reads the display name of the logged-in account.
type AccountNamer interface {
	AccountName(ctx context.Context, session *browser.Session) (string, error)
}

// CommentListener streams inbound live messages.
type CommentListener interface {
	// StartCommentListener delivers messages to onMessage until StopCommentListener.
	// source selects the listening mode (e.g. "control" or "compass"), empty for default.
	StartCommentListener(ctx context.Context, session *browser.Session, onMessage func(types.LiveMessage), source string) error
	StopCommentListener() error
}

// PopupPerformer pins a product in the live room.
type PopupPerformer interface {
	// PerformPopup stops early when ctx is cancelled.
	PerformPopup(ctx context.Context, session *browser.Session, productID int) error
}

// CommentSender posts a comment as the host account.
type CommentSender interface {
	PerformComment(ctx context.Context, session *browser.Session, text string) error
}

// Capabilities lists which optional interfaces p implements.
func Capabilities(p Platform) []string {
	var caps []string
	if _, ok := p.(LiveDetector); ok {
		caps = append(caps, "live")
	}
	if _, ok := p.(AccountNamer); ok {
		caps = append(caps, "name")
	}
	if _, ok := p.(CommentListener); ok {
		caps = append(caps, "comments")
	}
	if _, ok := p.(PopupPerformer); ok {
		caps = append(caps, "popup")
	}
	if _, ok := p.(CommentSender); ok {
		caps = append(caps, "comment")
	}
	return caps
}
