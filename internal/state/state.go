// Package state owns the bot's single mutable record: the managed channel,
// the admin set, and the id of the last message the bot published.
//
// The record is persisted as one JSON document. Every mutation goes through
// Store.Update, which holds the store mutex across the whole
// read-modify-persist sequence so concurrent handlers (or a scheduled publish
// landing mid-command) cannot lose updates.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoChange can be returned by an Update fn to abort the mutation: nothing
// is persisted and Update returns nil.
var ErrNoChange = errors.New("state: no change")

// State is the persisted channel-manager record.
//
// The JSON field names are a stable on-disk contract; do not rename them.
type State struct {
	// ChannelRef is the managed channel: a numeric chat id like "-100123..."
	// or a public "@username". Empty until /setchannel.
	ChannelRef string `json:"channel_id"`

	// AdminIDs is the set of user ids allowed to run privileged commands.
	// Empty means no admin has been bootstrapped yet.
	AdminIDs []int64 `json:"admin_ids"`

	// LastMessageID is the id of the most recent message the bot itself
	// published to the channel. 0 means nothing has been published.
	// Only /pin_last reads it; it is never cleared automatically.
	LastMessageID int `json:"last_channel_message_id"`
}

// HasAdmin reports whether id is in the admin set.
func (s *State) HasAdmin(id int64) bool {
	for _, a := range s.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// AddAdmin inserts id with set semantics. It reports whether the set changed.
func (s *State) AddAdmin(id int64) bool {
	if s.HasAdmin(id) {
		return false
	}
	s.AdminIDs = append(s.AdminIDs, id)
	return true
}

func (s *State) clone() State {
	cp := *s
	cp.AdminIDs = append([]int64(nil), s.AdminIDs...)
	return cp
}

// Store persists the State record to a single JSON file.
type Store struct {
	path string

	mu sync.Mutex
	st State
}

// Open loads the record from path. A missing file is not an error: the store
// starts with the zero record (no channel, no admins).
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &s.st); err != nil {
		return nil, fmt.Errorf("state: decode %s: %w", path, err)
	}
	return s, nil
}

// Snapshot returns a copy of the current record for read-only use.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

// Update applies fn to the record and persists the full record atomically.
// The mutex is held across read-modify-persist. If fn returns an error the
// record is left untouched and nothing is written.
func (s *Store) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	if err := s.writeLocked(&next); err != nil {
		return err
	}
	s.st = next
	return nil
}

// writeLocked serializes the full record and swaps it into place with a
// tmp-file rename so a concurrent reader never observes a partial record.
func (s *Store) writeLocked(st *State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: mkdir %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("state: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state: rename %s: %w", tmp, err)
	}
	return nil
}
