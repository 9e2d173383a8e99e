package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

// Manager owns the process settings: it parses the file strictly, keeps the
// committed copy behind a mutex, and (optionally) watches the file so logging
// changes apply without a restart.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Settings

	log logx.Logger

	// onReload is invoked after a changed settings file is committed.
	onReload func(cfg *Settings)

	// lastHash tracks the last successfully committed config content.
	// It avoids redundant reloads when the editor causes multiple write events
	// without content changes.
	lastHash uint64
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetOnReload installs the hook called by Watch() after committing a change.
func (m *Manager) SetOnReload(fn func(cfg *Settings)) { m.onReload = fn }

func (m *Manager) Parse() (*Settings, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, err := settingsJSON(m.path, b)
	if err != nil {
		return nil, err
	}

	var cfg Settings
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid settings: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Load parses and commits the settings file. A missing file is not an error:
// the bot runs on Default() settings and Watch() becomes a no-op.
func (m *Manager) Load() (*Settings, error) {
	cfg, err := m.Parse()
	if os.IsNotExist(err) {
		cfg = Default()
		m.Commit(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Commit(cfg *Settings) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashSettings(cfg)
	m.mu.Unlock()
}

func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func hashSettings(cfg *Settings) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Watch blocks until ctx is done, reloading the settings file on change.
// Reloads are debounced to avoid reading partial writes.
func (m *Manager) Watch(ctx context.Context) error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		if !m.log.IsZero() {
			m.log.Debug("settings file absent; watch disabled", logx.String("path", m.path))
		}
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() { m.reload() })
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if !m.log.IsZero() {
				m.log.Warn("settings watcher error", logx.Err(werr))
			}
		}
	}
}

func (m *Manager) reload() {
	cfg, err := m.Parse()
	if err != nil || cfg == nil {
		if !m.log.IsZero() {
			m.log.Warn("settings reload rejected", logx.String("path", m.path), logx.Err(err))
		}
		return
	}

	// Skip redundant reloads when content is unchanged.
	h := hashSettings(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return
	}

	m.Commit(cfg)
	if m.onReload != nil {
		m.onReload(cfg)
	}
	if !m.log.IsZero() {
		m.log.Info("settings reloaded", logx.String("path", m.path))
	}
}
