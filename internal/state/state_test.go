package state

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	st := s.Snapshot()
	if st.ChannelRef != "" || len(st.AdminIDs) != 0 || st.LastMessageID != 0 {
		t.Fatalf("expected zero record, got %+v", st)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	err = s.Update(func(st *State) error {
		st.ChannelRef = "@mychan"
		st.AddAdmin(42)
		st.AddAdmin(7)
		st.LastMessageID = 99
		return nil
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	re, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	st := re.Snapshot()
	if st.ChannelRef != "@mychan" {
		t.Fatalf("ChannelRef = %q, want @mychan", st.ChannelRef)
	}
	if len(st.AdminIDs) != 2 || st.AdminIDs[0] != 42 || st.AdminIDs[1] != 7 {
		t.Fatalf("AdminIDs = %v", st.AdminIDs)
	}
	if st.LastMessageID != 99 {
		t.Fatalf("LastMessageID = %d, want 99", st.LastMessageID)
	}
}

func TestRoundTripEmptyOptionals(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	// Persist the zero record explicitly (e.g. a failed bootstrap attempt).
	if err := s.Update(func(st *State) error { return nil }); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	re, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	st := re.Snapshot()
	if st.ChannelRef != "" || len(st.AdminIDs) != 0 || st.LastMessageID != 0 {
		t.Fatalf("optional fields did not round-trip as absent: %+v", st)
	}
}

func TestUpdateErrorDoesNotPersist(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	wantErr := os.ErrInvalid
	err = s.Update(func(st *State) error {
		st.ChannelRef = "@nope"
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Update error = %v, want %v", err, wantErr)
	}
	if st := s.Snapshot(); st.ChannelRef != "" {
		t.Fatalf("record mutated despite error: %+v", st)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file written despite error (stat err = %v)", err)
	}
}

func TestUpdateConcurrent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	// Two racing bootstrap attempts: exactly one may grant itself admin.
	var wg sync.WaitGroup
	for _, id := range []int64{1, 2} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = s.Update(func(st *State) error {
				if len(st.AdminIDs) != 0 {
					return ErrNoChange
				}
				st.AddAdmin(id)
				return nil
			})
		}(id)
	}
	wg.Wait()
	if st := s.Snapshot(); len(st.AdminIDs) != 1 {
		t.Fatalf("bootstrap race granted %d admins: %v", len(st.AdminIDs), st.AdminIDs)
	}

	// Concurrent set-inserts must not lose updates.
	const extra = 50
	for i := 0; i < extra; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = s.Update(func(st *State) error {
				st.AddAdmin(id)
				return nil
			})
		}(int64(100 + i))
	}
	wg.Wait()
	if st := s.Snapshot(); len(st.AdminIDs) != extra+1 {
		t.Fatalf("AdminIDs = %d entries, want %d", len(st.AdminIDs), extra+1)
	}

	// The persisted record reflects every insert.
	re, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if st := re.Snapshot(); len(st.AdminIDs) != extra+1 {
		t.Fatalf("persisted AdminIDs = %d entries, want %d", len(st.AdminIDs), extra+1)
	}
}

func TestAddAdminSetSemantics(t *testing.T) {
	t.Parallel()
	var st State
	if !st.AddAdmin(42) {
		t.Fatal("first add should change the set")
	}
	if st.AddAdmin(42) {
		t.Fatal("duplicate add should be a no-op")
	}
	if len(st.AdminIDs) != 1 {
		t.Fatalf("AdminIDs = %v, want one entry", st.AdminIDs)
	}
	if !st.HasAdmin(42) || st.HasAdmin(7) {
		t.Fatal("HasAdmin membership wrong")
	}
}
