package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("23:15")
	if err != nil {
		t.Fatalf("ParseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	for _, bad := range []string{"24:00", "12:60", "noon", "12", ""} {
		if _, _, err := ParseHHMM(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAddOnceFiresImmediately(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	fired := make(chan struct{})
	_, err := s.AddOnce("job", time.Now(), func(ctx context.Context) error {
		close(fired)
		return nil
	})
	if err != nil {
		t.Fatalf("AddOnce error: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestAddOnceUpsertReplacesJob(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	var firstRuns, secondRuns atomic.Int32
	fired := make(chan struct{})

	if _, err := s.AddOnce("job", time.Now().Add(time.Hour), func(ctx context.Context) error {
		firstRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddOnce error: %v", err)
	}
	if _, err := s.AddOnce("job", time.Now(), func(ctx context.Context) error {
		secondRuns.Add(1)
		close(fired)
		return nil
	}); err != nil {
		t.Fatalf("AddOnce (replace) error: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement job did not fire")
	}
	if n := firstRuns.Load(); n != 0 {
		t.Fatalf("replaced job ran %d times", n)
	}
	if n := secondRuns.Load(); n != 1 {
		t.Fatalf("replacement ran %d times, want 1", n)
	}
}

func TestRemovePendingOnce(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	if _, err := s.AddOnce("job", time.Now().Add(time.Hour), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("AddOnce error: %v", err)
	}
	if !s.Remove("job") {
		t.Fatal("Remove should report true for a pending job")
	}
	if s.Remove("job") {
		t.Fatal("second Remove should report false")
	}
	if snap := s.Snapshot(); len(snap.Pending) != 0 {
		t.Fatalf("pending after remove: %+v", snap.Pending)
	}
}

func TestAddDailyRegisters(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	if _, err := s.AddDaily("daily", "09:30", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("AddDaily error: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 {
		t.Fatalf("schedules = %+v, want one", snap.Schedules)
	}
	if snap.Schedules[0].Spec != "30 9 * * *" {
		t.Fatalf("spec = %q", snap.Schedules[0].Spec)
	}
	if snap.Schedules[0].Next.IsZero() {
		t.Fatal("next run not computed")
	}

	if _, err := s.AddDaily("bad", "25:00", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid HH:MM")
	}
}
