package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sigmah735-debug/telegrambot/internal/services/scheduler"
	"github.com/sigmah735-debug/telegrambot/internal/state"
	"github.com/sigmah735-debug/telegrambot/internal/storage"
	kit "github.com/sigmah735-debug/telegrambot/internal/transport"
	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

// Core holds the command handlers and their collaborators.
type Core struct {
	log   logx.Logger
	store *state.Store
	pub   *Publisher
	sched *scheduler.Service
	audit storage.Store // may be nil
}

func NewCore(log logx.Logger, store *state.Store, pub *Publisher, sched *scheduler.Service, audit storage.Store) *Core {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Core{log: log, store: store, pub: pub, sched: sched, audit: audit}
}

// Commands returns the full command registry (without /help, which the
// Manager injects itself).
func (c *Core) Commands() []Command {
	return []Command{
		{
			Name:        "start",
			Description: "start the bot (first user becomes admin)",
			Usage:       "/start",
			Access:      AccessEveryone,
			Handle:      c.handleStart,
		},
		{
			Name:        "setchannel",
			Description: "connect the managed channel",
			Usage:       "/setchannel <@username or -100...id>",
			Access:      AccessAdmin,
			Handle:      c.handleSetChannel,
		},
		{
			Name:        "status",
			Description: "show current settings",
			Usage:       "/status",
			Access:      AccessEveryone,
			Handle:      c.handleStatus,
		},
		{
			Name:        "addadmin",
			Description: "allow another user to control the bot",
			Usage:       "/addadmin <user_id>",
			Access:      AccessAdmin,
			Handle:      c.handleAddAdmin,
		},
		{
			Name:         "post",
			Description:  "post text to the channel",
			Usage:        "/post <text>",
			Access:       AccessAdmin,
			NeedsChannel: true,
			Handle:       c.handlePost,
		},
		{
			Name:         "post_photo",
			Description:  "post the replied-to photo to the channel",
			Usage:        "/post_photo (reply to a photo)",
			Access:       AccessAdmin,
			NeedsChannel: true,
			Handle:       c.handlePostPhoto,
		},
		{
			Name:         "schedule_in",
			Description:  "schedule a post",
			Usage:        "/schedule_in <minutes> <text>",
			Access:       AccessAdmin,
			NeedsChannel: true,
			Handle:       c.handleScheduleIn,
		},
		{
			Name:         "schedule_daily",
			Description:  "post the same text every day",
			Usage:        "/schedule_daily <HH:MM> <text>",
			Access:       AccessAdmin,
			NeedsChannel: true,
			Handle:       c.handleScheduleDaily,
		},
		{
			Name:         "pin_last",
			Description:  "pin the last message the bot posted",
			Usage:        "/pin_last",
			Access:       AccessAdmin,
			NeedsChannel: true,
			Handle:       c.handlePinLast,
		},
	}
}

// handleStart greets, and on the very first invocation with an empty admin
// set grants admin to the caller. The grant runs inside Store.Update so two
// racing "first" users serialize: the loser observes a non-empty set.
func (c *Core) handleStart(ctx context.Context, req *Request) error {
	granted := false
	err := c.store.Update(func(st *state.State) error {
		if len(st.AdminIDs) != 0 {
			return state.ErrNoChange
		}
		st.AddAdmin(req.FromID)
		granted = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	text := "Hi! I'm your channel manager bot.\nSend /help for the command list."
	if granted {
		req.Logger.Info("first admin bootstrapped", logx.Int64("admin_id", req.FromID))
		c.auditLog(ctx, req.Actor(), "bootstrap_admin", strconv.FormatInt(req.FromID, 10), nil)
		text += "\n\nYou have been made admin (first user)."
	}
	req.Reply(ctx, text)
	return nil
}

func (c *Core) handleSetChannel(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return usagef("/setchannel <@username or -100...id>")
	}
	channel := req.Args[0]
	err := c.store.Update(func(st *state.State) error {
		st.ChannelRef = channel
		return nil
	})
	if err != nil {
		return fmt.Errorf("set channel: %w", err)
	}
	c.auditLog(ctx, req.Actor(), "setchannel", channel, nil)
	req.Reply(ctx, "Channel set: "+channel+"\nDon't forget to make the bot an admin of that channel.")
	return nil
}

func (c *Core) handleStatus(ctx context.Context, req *Request) error {
	st := c.store.Snapshot()

	channel := st.ChannelRef
	if channel == "" {
		channel = "(not set)"
	}
	last := "(none)"
	if st.LastMessageID != 0 {
		last = strconv.Itoa(st.LastMessageID)
	}
	admins := make([]string, 0, len(st.AdminIDs))
	for _, id := range st.AdminIDs {
		admins = append(admins, strconv.FormatInt(id, 10))
	}
	adminList := "(none)"
	if len(admins) > 0 {
		adminList = strings.Join(admins, ", ")
	}

	snap := c.sched.Snapshot()
	req.Reply(ctx, fmt.Sprintf(
		"Channel: %s\nAdmins: %s\nLast channel message: %s\nScheduled: %d pending, %d recurring",
		channel, adminList, last, len(snap.Pending), len(snap.Schedules),
	))
	return nil
}

func (c *Core) handleAddAdmin(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return usagef("/addadmin <user_id>")
	}
	uid, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return usagef("/addadmin <user_id> (user_id must be numeric)")
	}

	// Duplicate add is a no-op, not an error.
	added := false
	err = c.store.Update(func(st *state.State) error {
		if !st.AddAdmin(uid) {
			return state.ErrNoChange
		}
		added = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	if added {
		c.auditLog(ctx, req.Actor(), "addadmin", strconv.FormatInt(uid, 10), nil)
	}
	req.Reply(ctx, "Admin added: "+strconv.FormatInt(uid, 10))
	return nil
}

func (c *Core) handlePost(ctx context.Context, req *Request) error {
	if len(req.Args) < 1 {
		return usagef("/post <text>")
	}
	text := strings.Join(req.Args, " ")
	if _, err := c.pub.PublishText(ctx, req.Actor(), text); err != nil {
		return err
	}
	req.Reply(ctx, "Posted.")
	return nil
}

func (c *Core) handlePostPhoto(ctx context.Context, req *Request) error {
	r := req.Msg.ReplyTo
	if r == nil || r.PhotoFileID == "" {
		return usagef("reply to a photo with /post_photo (caption optional)")
	}
	photo := kit.PhotoRef{FileID: r.PhotoFileID}
	if _, err := c.pub.PublishPhoto(ctx, req.Actor(), photo, r.Caption); err != nil {
		return err
	}
	req.Reply(ctx, "Photo posted.")
	return nil
}

func (c *Core) handleScheduleIn(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return usagef("/schedule_in <minutes> <text>")
	}
	minutes, err := strconv.ParseFloat(req.Args[0], 64)
	if err != nil || minutes < 0 {
		return usagef("/schedule_in <minutes> <text> (minutes must be a number)")
	}
	text := strings.Join(req.Args[1:], " ")

	at := time.Now().Add(time.Duration(minutes * float64(time.Minute)))
	name := "schedule_in:" + req.ReqID
	actor := req.Actor()
	jobLog := req.Logger

	// The job re-reads the channel from the store when it fires, so a
	// /setchannel issued in the meantime redirects the pending post.
	_, err = c.sched.AddOnce(name, at, func(jctx context.Context) error {
		_, perr := c.pub.PublishText(jctx, actor, text)
		if errors.Is(perr, errNoChannel) {
			jobLog.Warn("scheduled post skipped; channel no longer configured")
			return nil
		}
		return perr
	})
	if err != nil {
		return fmt.Errorf("schedule post: %w", err)
	}
	req.Reply(ctx, fmt.Sprintf("Scheduled: posting in %g minute(s).", minutes))
	return nil
}

func (c *Core) handleScheduleDaily(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return usagef("/schedule_daily <HH:MM> <text>")
	}
	atHHMM := req.Args[0]
	if _, _, err := scheduler.ParseHHMM(atHHMM); err != nil {
		return usagef("/schedule_daily <HH:MM> <text> (24h clock)")
	}
	text := strings.Join(req.Args[1:], " ")
	actor := req.Actor()
	jobLog := req.Logger

	// One recurring slot per wall-clock time; re-issuing replaces the text.
	name := "schedule_daily:" + atHHMM
	_, err := c.sched.AddDaily(name, atHHMM, func(jctx context.Context) error {
		_, perr := c.pub.PublishText(jctx, actor, text)
		if errors.Is(perr, errNoChannel) {
			jobLog.Warn("daily post skipped; channel no longer configured")
			return nil
		}
		return perr
	})
	if err != nil {
		return fmt.Errorf("schedule daily post: %w", err)
	}
	req.Reply(ctx, "Scheduled daily at "+atHHMM+".")
	return nil
}

func (c *Core) handlePinLast(ctx context.Context, req *Request) error {
	err := c.pub.PinLast(ctx, req.Actor())
	if err == nil {
		req.Reply(ctx, "Pinned.")
		return nil
	}
	if errors.Is(err, errNothingToPin) {
		return err
	}
	// Usually missing "Pin Messages" permission in the channel; tell the
	// operator instead of failing generically.
	req.Logger.Warn("pin failed", logx.Err(err))
	req.Reply(ctx, "Pin failed. Make sure the bot is allowed to pin messages in the channel.")
	return nil
}

func (c *Core) auditLog(ctx context.Context, actor Actor, action, target string, opErr error) {
	if c.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:            time.Now(),
		ActorID:       actor.ID,
		ActorUsername: actor.Username,
		Action:        action,
		Target:        target,
		OK:            opErr == nil,
	}
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if err := c.audit.AppendAudit(ctx, e); err != nil {
		c.log.Debug("audit append failed", logx.String("action", action), logx.Err(err))
	}
}
