package transport

import (
	"context"
	"strconv"
	"strings"
)

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string

	// ReplyTo is set when the message replies to another message.
	// /post_photo uses it to pick up the photo being replied to.
	ReplyTo *ReplyInfo
}

type ReplyInfo struct {
	MessageID int
	// PhotoFileID is the platform file id of the largest photo size attached
	// to the replied-to message. Empty if the message carries no photo.
	PhotoFileID string
	Caption     string
}

// ChatRef addresses a chat: either a numeric id or a public @username.
// The zero value is "no chat".
type ChatRef struct {
	ID       int64
	Username string // without the leading "@"
}

// ParseChatRef accepts "-100123456789" style numeric ids and "@username"
// handles, the two forms Telegram resolves for channels.
func ParseChatRef(s string) ChatRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return ChatRef{}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChatRef{ID: id}
	}
	return ChatRef{Username: strings.TrimPrefix(s, "@")}
}

func (r ChatRef) IsZero() bool { return r.ID == 0 && r.Username == "" }

func (r ChatRef) String() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	if r.ID != 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return ""
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type PhotoRef struct {
	FileID string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the transport collaborator: it connects to the platform,
// delivers inbound command messages, and performs outbound calls.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatRef, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatRef, photo PhotoRef, caption string) (MessageRef, error)
	Pin(ctx context.Context, to ChatRef, messageID int) error
}
