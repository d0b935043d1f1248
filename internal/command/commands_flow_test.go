package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/monsters-club/lounge/internal/auth"
)

func TestRegisterPostReactEditRemoveFlow(t *testing.T) {
	p := newTestProject(t)

	var alice sessionResult
	p.mustJSON(&alice, "register", "alice@example.com", "--name", "Alice", "--password", "correct horse")
	if alice.UserID == "" || alice.Email != "alice@example.com" {
		t.Fatalf("unexpected session %+v", alice)
	}

	output := p.mustRun("whoami")
	if !strings.Contains(output, "Alice <alice@example.com>") || !strings.Contains(output, alice.UserID) {
		t.Fatalf("unexpected whoami output %q", output)
	}

	var posted map[string]string
	p.mustJSON(&posted, "post", "hello", "lounge")
	id := posted["id"]
	if id == "" {
		t.Fatalf("expected posted id, got %v", posted)
	}

	var reply map[string]string
	p.mustJSON(&reply, "post", "--reply", id, "welcome back")

	var messages []messageJSON
	p.mustJSON(&messages, "messages")
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Text != "hello lounge" || messages[0].UserName != "Alice" {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if messages[1].ReplyTo == nil || messages[1].ReplyTo.ID != id || messages[1].ReplyTo.Text != "hello lounge" {
		t.Fatalf("expected reply snapshot of %s, got %+v", id, messages[1].ReplyTo)
	}

	output = p.mustRun("react", "like", id)
	if !strings.Contains(output, "Added 👍") {
		t.Fatalf("unexpected react output %q", output)
	}
	p.mustJSON(&messages, "messages")
	if got := messages[0].Reactions["👍"]; len(got) != 1 || got[0] != alice.UserID {
		t.Fatalf("expected alice's like, got %v", messages[0].Reactions)
	}

	output = p.mustRun("react", "like", id)
	if !strings.Contains(output, "Removed 👍") {
		t.Fatalf("unexpected second react output %q", output)
	}

	p.mustRun("edit", id, "hello", "monsters")
	p.mustJSON(&messages, "messages")
	if messages[0].Text != "hello monsters" || !messages[0].IsEdited {
		t.Fatalf("expected edited message, got %+v", messages[0])
	}
	if messages[1].ReplyTo.Text != "hello lounge" {
		t.Fatalf("reply snapshot should keep the original text, got %q", messages[1].ReplyTo.Text)
	}

	output = p.mustRun("rm", id)
	if !strings.Contains(output, "Cancelled") {
		t.Fatalf("expected rm without confirmation to cancel, got %q", output)
	}
	p.mustRun("rm", "--yes", id)

	output = p.mustRun("messages")
	if strings.Contains(output, "hello monsters") || !strings.Contains(output, "welcome back") {
		t.Fatalf("unexpected messages after delete %q", output)
	}
}

func TestOnlyAuthorCanEditOrDelete(t *testing.T) {
	p := newTestProject(t)

	p.mustRun("register", "alice@example.com", "--name", "Alice", "--password", "correct horse")
	var posted map[string]string
	p.mustJSON(&posted, "post", "mine")

	p.mustRun("register", "bob@example.com", "--name", "Bob", "--password", "battery staple")

	output, err := p.run("edit", posted["id"], "not yours")
	if err == nil {
		t.Fatalf("expected edit by another user to fail, got %q", output)
	}
	if _, err := p.run("rm", "--yes", posted["id"]); err == nil {
		t.Fatal("expected delete by another user to fail")
	}

	// Reacting to someone else's message is allowed.
	p.mustRun("react", "fire", posted["id"])
}

func TestSignedOutCommandsHint(t *testing.T) {
	p := newTestProject(t)

	p.mustRun("register", "alice@example.com", "--password", "correct horse")
	p.mustRun("logout")

	output, err := p.run("post", "hello")
	if !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if !strings.Contains(output, "Hint: sign in with: lounge login <email>") {
		t.Fatalf("expected sign-in hint, got %q", output)
	}

	output = p.mustRun("messages")
	if !strings.Contains(output, "No messages yet") {
		t.Fatalf("signed-out reads should work, got %q", output)
	}

	p.mustRun("login", "ALICE@example.com", "--password", "correct horse")
	p.mustRun("post", "back again")

	if _, err := p.run("login", "alice@example.com", "--password", "wrong password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestRegisterTwiceHint(t *testing.T) {
	p := newTestProject(t)

	p.mustRun("register", "alice@example.com", "--password", "correct horse")
	output, err := p.run("register", "alice@example.com", "--password", "correct horse")
	if !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if !strings.Contains(output, "Try: lounge login") {
		t.Fatalf("expected login hint, got %q", output)
	}
}

func TestProfileUpdate(t *testing.T) {
	p := newTestProject(t)

	p.mustRun("register", "alice@example.com", "--name", "Alice", "--password", "correct horse")
	p.mustRun("profile", "--name", "Alice M", "--photo", "https://example.com/a.png")

	output := p.mustRun("whoami")
	if !strings.Contains(output, "Alice M") || !strings.Contains(output, "https://example.com/a.png") {
		t.Fatalf("unexpected whoami output %q", output)
	}

	var posted map[string]string
	p.mustJSON(&posted, "post", "with photo")
	var messages []messageJSON
	p.mustJSON(&messages, "messages")
	if messages[0].UserName != "Alice M" || messages[0].UserPhoto == nil {
		t.Fatalf("expected profile on new message, got %+v", messages[0])
	}
}
