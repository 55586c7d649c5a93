package types

import "time"

// LiveMessageType identifies the kind of platform event carried by a LiveMessage.
type LiveMessageType string

const (
	LiveMessageComment   LiveMessageType = "comment"
	LiveMessageRoomEnter LiveMessageType = "room_enter"
	LiveMessageRoomLike  LiveMessageType = "room_like"
	LiveMessageFollow    LiveMessageType = "room_follow"
	LiveMessageOrder     LiveMessageType = "live_order"
	LiveMessageFansClub  LiveMessageType = "ecom_fansclub_participate"
	LiveMessageBrandVIP  LiveMessageType = "subscribe_merchant_brand_vip"
)

// LiveMessage is one inbound event from a live room (a comment, an entry, an order...).
type LiveMessage struct {
	ID       string          `json:"msg_id"`
	Type     LiveMessageType `json:"msg_type"`
	Nickname string          `json:"nick_name"`
	UserID   string          `json:"user_id,omitempty"`
	Content  string          `json:"content,omitempty"`
	Time     time.Time       `json:"time"`
}

// IsComment reports whether the message carries user-written text.
func (m LiveMessage) IsComment() bool {
	return m.Type == LiveMessageComment && m.Content != ""
}

// MessageRole is the author role of a chat message sent to a language model.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one chat message exchanged with a language model.
type Message struct {
	Role    MessageRole
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}
