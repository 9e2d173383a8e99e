package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/sigmah735-debug/telegrambot/internal/state"
	"github.com/sigmah735-debug/telegrambot/internal/storage"
	kit "github.com/sigmah735-debug/telegrambot/internal/transport"
	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

// Actor identifies the operator behind an audited action.
type Actor struct {
	ID       int64
	Username string
}

// Publisher performs the state-mutating actions against the managed channel.
//
// The channel reference is re-read from the state store at call time, so a
// scheduled publish created before a /setchannel lands in the channel that is
// configured when it fires (matching the live-config behavior operators
// expect from /status).
type Publisher struct {
	adapter kit.Adapter
	store   *state.Store
	audit   storage.Store // may be nil (storage disabled)
	log     logx.Logger
}

func NewPublisher(adapter kit.Adapter, store *state.Store, audit storage.Store, log logx.Logger) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{adapter: adapter, store: store, audit: audit, log: log}
}

func (p *Publisher) channel() (kit.ChatRef, error) {
	st := p.store.Snapshot()
	ref := kit.ParseChatRef(st.ChannelRef)
	if ref.IsZero() {
		return kit.ChatRef{}, errNoChannel
	}
	return ref, nil
}

// PublishText sends text to the managed channel and records the resulting
// message id. HTML formatting with link previews enabled, as channel posts.
func (p *Publisher) PublishText(ctx context.Context, actor Actor, text string) (int, error) {
	ref, err := p.channel()
	if err != nil {
		return 0, err
	}
	msg, err := p.adapter.SendText(ctx, ref, text, &kit.SendOptions{ParseMode: "HTML"})
	if err != nil {
		p.auditLog(ctx, actor, "post", ref.String(), 0, err)
		return 0, fmt.Errorf("publish text: %w", err)
	}
	p.auditLog(ctx, actor, "post", ref.String(), msg.MessageID, nil)
	if err := p.recordLastMessage(msg.MessageID); err != nil {
		// The message is already in the channel; the record just lags.
		return msg.MessageID, err
	}
	return msg.MessageID, nil
}

// PublishPhoto sends the photo (by platform file id) with an optional caption.
func (p *Publisher) PublishPhoto(ctx context.Context, actor Actor, photo kit.PhotoRef, caption string) (int, error) {
	ref, err := p.channel()
	if err != nil {
		return 0, err
	}
	msg, err := p.adapter.SendPhoto(ctx, ref, photo, caption)
	if err != nil {
		p.auditLog(ctx, actor, "post_photo", ref.String(), 0, err)
		return 0, fmt.Errorf("publish photo: %w", err)
	}
	p.auditLog(ctx, actor, "post_photo", ref.String(), msg.MessageID, nil)
	if err := p.recordLastMessage(msg.MessageID); err != nil {
		return msg.MessageID, err
	}
	return msg.MessageID, nil
}

// PinLast pins the bot's most recently published channel message.
func (p *Publisher) PinLast(ctx context.Context, actor Actor) error {
	st := p.store.Snapshot()
	ref := kit.ParseChatRef(st.ChannelRef)
	if ref.IsZero() || st.LastMessageID == 0 {
		return errNothingToPin
	}
	if err := p.adapter.Pin(ctx, ref, st.LastMessageID); err != nil {
		p.auditLog(ctx, actor, "pin", ref.String(), st.LastMessageID, err)
		return fmt.Errorf("pin message %d: %w", st.LastMessageID, err)
	}
	p.auditLog(ctx, actor, "pin", ref.String(), st.LastMessageID, nil)
	return nil
}

func (p *Publisher) recordLastMessage(id int) error {
	return p.store.Update(func(st *state.State) error {
		st.LastMessageID = id
		return nil
	})
}

func (p *Publisher) auditLog(ctx context.Context, actor Actor, action, target string, messageID int, opErr error) {
	if p.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:            time.Now(),
		ActorID:       actor.ID,
		ActorUsername: actor.Username,
		Action:        action,
		Target:        target,
		MessageID:     messageID,
		OK:            opErr == nil,
	}
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if err := p.audit.AppendAudit(ctx, e); err != nil {
		p.log.Debug("audit append failed", logx.String("action", action), logx.Err(err))
	}
}
