package telegram

import (
	"strings"
	"testing"

	logx "github.com/sigmah735-debug/telegrambot/pkg/logx"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %q", got)
	}
}

func TestSplitTextChunksAtLimit(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("a", 25)
	got := splitText(in, 10)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3: %q", len(got), got)
	}
	var total int
	for _, c := range got {
		if len(c) > 10 {
			t.Fatalf("chunk over limit: %q", c)
		}
		total += len(c)
	}
	if total != 25 {
		t.Fatalf("lost content: %d of 25 runes", total)
	}
}

func TestSplitTextPrefersNewlineBoundary(t *testing.T) {
	t.Parallel()
	in := "first line\nsecond line that runs long"
	got := splitText(in, 20)
	if len(got) < 2 {
		t.Fatalf("chunks = %q", got)
	}
	if got[0] != "first line" {
		t.Fatalf("first chunk = %q, want break at the newline", got[0])
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected an error for an empty token")
	}
}
