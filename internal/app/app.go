// Package app wires the bot together: settings, state store, transport
// adapter, scheduler, audit storage and the command router.
package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sigmah735-debug/telegrambot/internal/bot"
	"github.com/sigmah735-debug/telegrambot/internal/config"
	"github.com/sigmah735-debug/telegrambot/internal/services/scheduler"
	"github.com/sigmah735-debug/telegrambot/internal/state"
	"github.com/sigmah735-debug/telegrambot/internal/storage"
	kit "github.com/sigmah735-debug/telegrambot/internal/transport"
	"github.com/sigmah735-debug/telegrambot/internal/transport/telegram"
	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

// TokenEnv is the only place the bot token may come from.
const TokenEnv = "TELEGRAM_TOKEN"

type App struct {
	log    logx.Logger
	logSvc *logx.Service

	cfgm    *config.Manager
	store   *state.Store
	adapter *telegram.Adapter
	sched   *scheduler.Service
	audit   storage.Store
	router  *bot.Manager

	updates chan kit.Update

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(settingsPath string) (*App, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnv))
	if token == "" {
		return nil, errors.New("missing " + TokenEnv + " environment variable; export your bot token before running")
	}

	cfgm := config.NewManager(settingsPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetOnReload(func(next *config.Settings) {
		logSvc.Apply(logx.Config{
			Level:   next.Logging.Level,
			Console: next.Logging.Console,
			File:    logx.FileConfig{Enabled: next.Logging.File.Enabled, Path: next.Logging.File.Path},
		})
	})

	pollTimeout, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	statePath := strings.TrimSpace(cfg.StatePath)
	if statePath == "" {
		statePath = "./config.json"
	}
	store, err := state.Open(statePath)
	if err != nil {
		return nil, err
	}

	var audit storage.Store
	if cfg.Storage != nil {
		busy, err := config.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		if err != nil {
			return nil, err
		}
		audit, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	sched := scheduler.New(scheduler.Config{
		Workers:     cfg.Scheduler.Workers,
		HistorySize: cfg.Scheduler.HistorySize,
		Timezone:    cfg.Scheduler.Timezone,
	}, log.With(logx.String("comp", "scheduler")))

	pub := bot.NewPublisher(adapter, store, audit, log.With(logx.String("comp", "publisher")))
	core := bot.NewCore(log.With(logx.String("comp", "core")), store, pub, sched, audit)
	router := bot.NewManager(log.With(logx.String("comp", "router")), adapter, store)
	router.SetRegistry(core.Commands())

	return &App{
		log:     log,
		logSvc:  logSvc,
		cfgm:    cfgm,
		store:   store,
		adapter: adapter,
		sched:   sched,
		audit:   audit,
		router:  router,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.sched.Start(runCtx)

	a.updates = make(chan kit.Update, 128)
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		a.cancel = nil
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.DispatchLoop(runCtx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("settings watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("bot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	_ = a.adapter.Stop(ctx)
	a.sched.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.audit != nil {
		_ = a.audit.Close()
	}
	a.log.Info("bot stopped")
	_ = a.logSvc.Close()
	return nil
}
