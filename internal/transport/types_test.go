package transport

import "testing"

func TestParseChatRef(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want ChatRef
	}{
		{"empty", "", ChatRef{}},
		{"whitespace", "  \t", ChatRef{}},
		{"numeric channel id", "-1001234567890", ChatRef{ID: -1001234567890}},
		{"positive id", "12345", ChatRef{ID: 12345}},
		{"handle", "@mychan", ChatRef{Username: "mychan"}},
		{"handle without at", "mychan", ChatRef{Username: "mychan"}},
		{"trimmed handle", " @mychan ", ChatRef{Username: "mychan"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseChatRef(tc.in); got != tc.want {
				t.Fatalf("ParseChatRef(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestChatRefString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ref  ChatRef
		want string
	}{
		{ChatRef{}, ""},
		{ChatRef{ID: -100123}, "-100123"},
		{ChatRef{Username: "mychan"}, "@mychan"},
		{ChatRef{ID: 5, Username: "mychan"}, "@mychan"},
	}
	for _, tc := range cases {
		if got := tc.ref.String(); got != tc.want {
			t.Fatalf("%+v.String() = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestChatRefIsZero(t *testing.T) {
	t.Parallel()
	if !(ChatRef{}).IsZero() {
		t.Fatal("zero value should be zero")
	}
	if (ChatRef{ID: 1}).IsZero() || (ChatRef{Username: "x"}).IsZero() {
		t.Fatal("non-empty refs reported zero")
	}
}
