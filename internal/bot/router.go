package bot

import (
	"context"
	"errors"
	"math/rand"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigmah735-debug/telegrambot/internal/state"
	kit "github.com/sigmah735-debug/telegrambot/internal/transport"
	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdmin
)

type Command struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	// NeedsChannel marks commands that require /setchannel to have run.
	NeedsChannel bool
	Timeout      time.Duration // optional per-command override
	Handle       HandlerFunc
}

type Request struct {
	Msg     *kit.Message
	Chat    kit.ChatRef // where replies go (the invoking chat)
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	// State is the record snapshot taken when the handler starts executing.
	// Handlers that mutate must go through the store, not this copy.
	State state.State

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Actor identifies the sending operator for publish and audit calls.
func (r *Request) Actor() Actor {
	return Actor{ID: r.FromID, Username: r.Msg.FromUsername}
}

// Reply sends text back to the invoking chat, best-effort.
func (r *Request) Reply(ctx context.Context, text string) {
	if _, err := r.Adapter.SendText(ctx, r.Chat, text, nil); err != nil {
		r.Logger.Warn("reply failed", logx.Err(err))
	}
}

const defaultCommandTimeout = 30 * time.Second

// Manager routes inbound command messages to handlers.
type Manager struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string // registration order, for /help

	log     logx.Logger
	adapter kit.Adapter
	store   *state.Store

	jobs chan func()
}

func NewManager(log logx.Logger, adapter kit.Adapter, store *state.Store) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		commands: map[string]Command{},
		log:      log,
		adapter:  adapter,
		store:    store,
		jobs:     make(chan func(), 64),
	}
}

// SetRegistry installs the command set. /help is always injected so the
// command list stays in sync with what is actually registered.
func (m *Manager) SetRegistry(cmds []Command) {
	helper := Command{
		Name:        "help",
		Description: "list available commands",
		Usage:       "/help",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			req.Reply(ctx, m.helpText())
			return nil
		},
	}
	cmds = append(cmds, helper)

	commands := make(map[string]Command, len(cmds))
	order := make([]string, 0, len(cmds))
	for _, c := range cmds {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		if _, exists := commands[name]; !exists {
			order = append(order, name)
		}
		commands[name] = c
	}

	m.mu.Lock()
	m.commands = commands
	m.order = order
	m.mu.Unlock()
}

func (m *Manager) helpText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range m.order {
		c := m.commands[name]
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		b.WriteString(usage)
		if c.Description != "" {
			b.WriteString(" - ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// DispatchLoop consumes updates until ctx is done. Handlers run on a small
// worker pool so a slow Bot API call doesn't stall the next command. Commands
// sent back-to-back may therefore execute concurrently and reply out of
// order; every state mutation still funnels through the store's Update, so
// interleaving cannot corrupt the record.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) {
	const workers = 2

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					func() {
						defer func() {
							if r := recover(); r != nil {
								m.log.Error("panic in command job", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		}()
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			m.log.Info("command dispatcher stopped")
			return
		case up, ok := <-updates:
			if !ok {
				wg.Wait()
				m.log.Info("command dispatcher stopped (updates channel closed)")
				return
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *Manager) routeUpdate(root context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	// strip the "@botname" suffix Telegram appends in groups
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]

	m.mu.RLock()
	cmd, ok := m.commands[word]
	m.mu.RUnlock()
	if !ok {
		m.reply(root, kit.ChatRef{ID: msg.ChatID}, "Unknown command. Try /help.")
		return
	}

	rid := newReqID()
	req := &Request{
		Msg:     msg,
		Chat:    kit.ChatRef{ID: msg.ChatID},
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	// The state snapshot is taken when the job runs, not when it is queued,
	// so a command enqueued behind /start sees the bootstrapped admin set.
	// Authorization and channel precondition are checked against the same
	// snapshot the handler sees.
	guard := func(ctx context.Context, req *Request) error {
		req.State = m.store.Snapshot()
		if cmd.Access == AccessAdmin {
			if err := requireAdmin(req.FromID, req.State); err != nil {
				return err
			}
		}
		if cmd.NeedsChannel && kit.ParseChatRef(req.State.ChannelRef).IsZero() {
			return errNoChannel
		}
		return cmd.Handle(ctx, req)
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	final := Chain(
		m.respondingHandler(guard),
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)

	if !m.tryEnqueue(func() { _ = final(root, req) }) {
		m.reply(root, req.Chat, "busy, try again")
	}
}

// respondingHandler turns guidance errors (usage, authorization, missing
// preconditions) into replies and swallows them: they are normal user
// feedback, not failures for the request log. Transport and persistence
// errors propagate after a generic failure reply.
func (m *Manager) respondingHandler(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		err := next(ctx, req)
		if err == nil {
			return nil
		}

		var ue *usageError
		switch {
		case errors.As(err, &ue):
			req.Logger.Debug("invalid arguments", logx.String("reply", ue.msg))
			m.reply(ctx, req.Chat, "Usage: "+ue.msg)
			return nil
		case errors.Is(err, errUnauthorized):
			req.Logger.Debug("unauthorized")
			m.reply(ctx, req.Chat, "This command is for admins only.")
			return nil
		case errors.Is(err, errNoChannel):
			req.Logger.Debug("channel not configured")
			m.reply(ctx, req.Chat, "No channel configured. Run /setchannel first.")
			return nil
		case errors.Is(err, errNothingToPin):
			req.Logger.Debug("nothing to pin")
			m.reply(ctx, req.Chat, "No recent channel message to pin.")
			return nil
		default:
			m.reply(ctx, req.Chat, "Something went wrong, the operation did not complete.")
			return err
		}
	}
}

// reply is best-effort: a failed reply is logged and dropped.
func (m *Manager) reply(ctx context.Context, to kit.ChatRef, text string) {
	if _, err := m.adapter.SendText(ctx, to, text, nil); err != nil {
		m.log.Warn("reply failed", logx.Int64("chat_id", to.ID), logx.Err(err))
	}
}

// tryEnqueue is a panic-safe enqueue helper (handles the jobs channel being closed).
func (m *Manager) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

var ridSeq uint64

func newReqID() string {
	n := atomic.AddUint64(&ridSeq, 1)
	// short-ish: base36 timestamp + seq + 2 random chars
	ts := time.Now().UnixNano()
	return base36(ts) + "-" + base36(int64(n)) + randSuffix(2)
}

func randSuffix(n int) string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alpha[rand.Intn(len(alpha))])
	}
	return b.String()
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [32]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}
