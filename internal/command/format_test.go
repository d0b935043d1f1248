package command

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/monsters-club/lounge/internal/types"
)

func TestFormatMessage(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	msg := types.Message{
		ID:         "01JABCDEFGHJKMNPQRSTVWXYZ0",
		Text:       "see you there",
		AuthorID:   "u1",
		AuthorName: "Alice",
		CreatedAt:  now.Add(-5 * time.Minute),
		IsEdited:   true,
		ReplyTo:    &types.ReplySnapshot{ID: "m0", Text: "who is coming?", AuthorName: "Bob"},
		Reactions:  types.Reactions{"👍": {"u2", "u3"}},
	}

	output := FormatMessage(msg, 4, now)
	for _, want := range []string{"[xyz0]", "5 minutes ago", "(edited)", "Alice", "see you there", "↪ Bob: who is coming?", "👍 2"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in %q", want, output)
		}
	}
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	if got := formatRelative(time.Time{}, now); got != "--" {
		t.Fatalf("zero time: got %q", got)
	}
	if got := formatRelative(now, now); got != "just now" {
		t.Fatalf("now: got %q", got)
	}
	if got := formatRelative(now.Add(-2*time.Hour), now); got != "2 hours ago" {
		t.Fatalf("two hours: got %q", got)
	}
}

func TestSetPathCreatesNestedObjects(t *testing.T) {
	fields := types.Fields{"name": "Sara"}
	setPath(fields, "social.github", "gh")
	setPath(fields, "social.twitter", "tw")

	social, ok := fields["social"].(map[string]any)
	if !ok || social["github"] != "gh" || social["twitter"] != "tw" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestJoinSummarySkipsBlanks(t *testing.T) {
	if got := joinSummary("Launch", " ", "", "upcoming"); got != "Launch · upcoming" {
		t.Fatalf("got %q", got)
	}
}

func TestStreamWriterReportsChanges(t *testing.T) {
	var out bytes.Buffer
	w := &streamWriter{out: &out, json: true, seen: map[string]types.Message{}}

	first := types.Message{ID: "m1", Text: "hi", AuthorID: "u1", AuthorName: "Alice"}
	w.diff([]types.Message{first})

	edited := first
	edited.Text = "hello"
	edited.IsEdited = true
	second := types.Message{ID: "m2", Text: "yo", AuthorID: "u2", AuthorName: "Bob"}
	w.diff([]types.Message{edited, second})

	reacted := second
	reacted.Reactions = types.Reactions{"🔥": {"u1"}}
	w.diff([]types.Message{reacted})

	var events []string
	dec := json.NewDecoder(&out)
	for dec.More() {
		var ev watchEvent
		if err := dec.Decode(&ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		key := ev.ID
		if ev.Message != nil {
			key = ev.Message.ID
		}
		events = append(events, ev.Event+":"+key)
	}

	want := []string{"message:m1", "edited:m1", "message:m2", "reactions:m2", "deleted:m1"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", events, want)
	}
}
