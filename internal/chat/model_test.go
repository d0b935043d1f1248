package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (*Model, *lounge.Controller, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	store := docstore.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	who := &types.Identity{ID: "u1", DisplayName: "Ada"}
	ctrl, err := lounge.Open(ctx, store, lounge.Static(who), lounge.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("open controller: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close() })
	if err := ctrl.Wait(ctx, func([]types.Message) bool { return true }); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	m := NewModel(ctx, Options{Controller: ctrl, Now: func() time.Time { return testNow.Add(time.Minute) }})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, ctrl, ctx
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func pressRune(m *Model, r rune) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return cmd
}

func waitMessages(t *testing.T, ctx context.Context, m *Model, ctrl *lounge.Controller, pred func([]types.Message) bool) {
	t.Helper()
	if err := ctrl.Wait(ctx, pred); err != nil {
		t.Fatalf("wait: %v", err)
	}
	m.Update(changedMsg{})
}

func TestSendMessage(t *testing.T) {
	m, ctrl, ctx := newTestModel(t)

	typeText(m, "hello lounge")
	if got := m.composer.Draft(); got != "hello lounge" {
		t.Fatalf("draft not synced: %q", got)
	}
	run(t, m, press(m, tea.KeyEnter))
	if m.composer.State() != lounge.ComposerIdle || m.input.Value() != "" {
		t.Fatalf("composer not reset: %v %q", m.composer.State(), m.input.Value())
	}

	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 1 })
	view := m.View()
	if !strings.Contains(view, "hello lounge") || !strings.Contains(view, "Ada") {
		t.Fatalf("message missing from view:\n%s", view)
	}
}

func TestEnterIgnoresBlankDraft(t *testing.T) {
	m, _, _ := newTestModel(t)
	typeText(m, "   ")
	if cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Fatal("blank draft should not submit")
	}
}

func TestUpEditsLastOwnMessage(t *testing.T) {
	m, ctrl, ctx := newTestModel(t)
	if _, err := ctrl.Compose(ctx, "first draft", nil); err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 1 })

	press(m, tea.KeyUp)
	if m.composer.State() != lounge.ComposerEditing || m.input.Value() != "first draft" {
		t.Fatalf("expected edit mode with text, got %v %q", m.composer.State(), m.input.Value())
	}

	m.input.SetValue("")
	typeText(m, "final text")
	run(t, m, press(m, tea.KeyEnter))
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool {
		return len(msgs) == 1 && msgs[0].Text == "final text" && msgs[0].IsEdited
	})
	if !strings.Contains(m.View(), "edited") {
		t.Fatal("expected edited marker in view")
	}
}

func TestEscCancelsEdit(t *testing.T) {
	m, ctrl, ctx := newTestModel(t)
	if _, err := ctrl.Compose(ctx, "keep me", nil); err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 1 })

	press(m, tea.KeyUp)
	press(m, tea.KeyEsc)
	if m.composer.State() != lounge.ComposerIdle || m.input.Value() != "" {
		t.Fatalf("expected idle composer, got %v %q", m.composer.State(), m.input.Value())
	}
	if got := ctrl.Messages()[0]; got.Text != "keep me" || got.IsEdited {
		t.Fatalf("cancel wrote to the store: %+v", got)
	}
}

func TestReactAndReplyFromSelection(t *testing.T) {
	m, ctrl, ctx := newTestModel(t)
	id, err := ctrl.Compose(ctx, "pick me", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 1 })

	press(m, tea.KeyTab)
	if m.focus != focusMessages || m.selectedID != id {
		t.Fatalf("expected message focus, got %v/%q", m.focus, m.selectedID)
	}
	run(t, m, pressRune(m, '1'))
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool {
		return len(msgs) == 1 && msgs[0].Reactions.Has(lounge.QuickReactions[0], "u1")
	})

	pressRune(m, 'r')
	if m.focus != focusInput {
		t.Fatal("reply should return focus to the input")
	}
	if target := m.composer.ReplyTarget(); target == nil || target.ID != id {
		t.Fatalf("unexpected reply target %+v", target)
	}
	if !strings.Contains(m.View(), "replying to Ada") {
		t.Fatal("expected reply context line")
	}
}

func TestSelectionFollowsMessageAcrossSnapshots(t *testing.T) {
	m, ctrl, ctx := newTestModel(t)
	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		id, err := ctrl.Compose(ctx, text, nil)
		if err != nil {
			t.Fatalf("compose %s: %v", text, err)
		}
		ids = append(ids, id)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 3 })

	press(m, tea.KeyTab)
	press(m, tea.KeyUp)
	if target, ok := m.selectedMessage(); !ok || target.ID != ids[1] {
		t.Fatalf("expected second message selected, got %+v", target)
	}

	if err := ctrl.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 2 })

	run(t, m, pressRune(m, '1'))
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool {
		return len(msgs) == 2 && msgs[0].Reactions.Has(lounge.QuickReactions[0], "u1")
	})
	if third, _ := ctrl.Find(ids[2]); third.Reactions.Has(lounge.QuickReactions[0], "u1") {
		t.Fatalf("reaction landed on the wrong message: %+v", third)
	}

	if err := ctrl.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("delete selected: %v", err)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 1 })
	if target, ok := m.selectedMessage(); !ok || target.ID != ids[2] {
		t.Fatalf("expected selection to move to the remaining message, got %+v", target)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, ctrl, ctx := newTestModel(t)
	if _, err := ctrl.Compose(ctx, "doomed", nil); err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 1 })

	press(m, tea.KeyTab)
	if cmd := pressRune(m, 'd'); cmd != nil {
		t.Fatal("first d should only ask for confirmation")
	}
	if cmd := pressRune(m, 'n'); cmd != nil {
		t.Fatal("n should cancel the delete")
	}
	pressRune(m, 'd')
	run(t, m, pressRune(m, 'y'))
	waitMessages(t, ctx, m, ctrl, func(msgs []types.Message) bool { return len(msgs) == 0 })
	if m.focus != focusInput {
		t.Fatal("empty stream should return focus to the input")
	}
}

func TestEmojiPickerAppendsToDraft(t *testing.T) {
	m, _, _ := newTestModel(t)
	typeText(m, "nice")
	press(m, tea.KeyCtrlP)
	if !m.pickerOpen {
		t.Fatal("expected picker open")
	}
	press(m, tea.KeyRight)
	press(m, tea.KeyEnter)
	want := "nice" + lounge.Emojis[1]
	if m.pickerOpen || m.composer.Draft() != want || m.input.Value() != want {
		t.Fatalf("expected draft %q, got %q / %q", want, m.composer.Draft(), m.input.Value())
	}
}

func TestFormatReactions(t *testing.T) {
	reactions := types.Reactions{"👍": {"u1", "u2"}, "🔥": {"u3"}, "😢": {}}
	got := formatReactions(types.Message{ID: "m1", Reactions: reactions}, "u1", nil, 80)
	if !strings.Contains(got, "👍 2") || !strings.Contains(got, "🔥 1") {
		t.Fatalf("unexpected pills %q", got)
	}
	if strings.Contains(got, "😢") {
		t.Fatalf("empty reaction rendered: %q", got)
	}
	if formatReactions(types.Message{ID: "m1"}, "u1", nil, 80) != "" {
		t.Fatal("expected no pills")
	}
}

func TestRenderMessage(t *testing.T) {
	msg := types.Message{
		Text:       "see you there",
		AuthorID:   "u2",
		AuthorName: "Grace",
		CreatedAt:  testNow.Add(-3 * time.Minute),
		IsEdited:   true,
		ReplyTo:    &types.ReplySnapshot{ID: "m1", Text: "who is coming\nto the trip?", AuthorName: "Ada"},
	}
	got := renderMessage(msg, "u1", testNow, 80, nil)
	for _, want := range []string{"Grace", "3 minutes ago", "edited", "↪ Ada: who is coming to the trip?", "see you there"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}

func TestDescribeError(t *testing.T) {
	err := &lounge.AuthorizationError{Op: "delete", MessageID: "m1", Actor: "u1", Author: "u2"}
	if got := describeError("delete", err); got != "you can only delete your own messages" {
		t.Fatalf("unexpected %q", got)
	}
	if got := describeError("post", lounge.ErrSignedOut); !strings.Contains(got, "lounge login") {
		t.Fatalf("unexpected %q", got)
	}
	if got := describeError("post", errors.New("boom")); got != "post failed: boom" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("unexpected %q", got)
	}
}
