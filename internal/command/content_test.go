package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/monsters-club/lounge/internal/auth"
	"github.com/monsters-club/lounge/internal/cms"
	"github.com/monsters-club/lounge/internal/types"
)

// newAdminProject registers alice and makes her the first admin.
func newAdminProject(t *testing.T) (*testProject, string) {
	t.Helper()
	p := newTestProject(t)

	var alice sessionResult
	p.mustJSON(&alice, "register", "alice@example.com", "--name", "Alice", "--password", "correct horse")
	output := p.mustRun("user", "role", alice.UserID, "admin")
	if !strings.Contains(output, "is now admin") {
		t.Fatalf("unexpected role output %q", output)
	}
	return p, alice.UserID
}

func TestContentRequiresAdmin(t *testing.T) {
	p := newTestProject(t)
	p.mustRun("register", "bob@example.com", "--password", "battery staple")

	output, err := p.run("events", "add", "--title", "Launch", "--date", "2026-11-01", "--status", "upcoming")
	if !errors.Is(err, cms.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if !strings.Contains(output, "Hint: ask an admin") {
		t.Fatalf("expected admin hint, got %q", output)
	}
}

func TestFirstAdminOnlyBootstrapsOnce(t *testing.T) {
	p, aliceID := newAdminProject(t)

	var bob sessionResult
	p.mustJSON(&bob, "register", "bob@example.com", "--password", "battery staple")

	if _, err := p.run("user", "role", bob.UserID, "admin"); !errors.Is(err, cms.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin once an admin exists, got %v", err)
	}
	if _, err := p.run("user", "role", aliceID, "user"); !errors.Is(err, cms.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin demoting alice, got %v", err)
	}

	output := p.mustRun("user", "ls")
	if !strings.Contains(output, "alice@example.com") || !strings.Contains(output, "bob@example.com") {
		t.Fatalf("unexpected user list %q", output)
	}
}

func TestUserShowDisplaysAnotherProfile(t *testing.T) {
	p, aliceID := newAdminProject(t)
	p.mustRun("register", "bob@example.com", "--name", "Bob", "--password", "battery staple")

	var shown map[string]any
	p.mustJSON(&shown, "user", "show", aliceID)
	if shown["uid"] != aliceID || shown["name"] != "Alice" || shown["email"] != "alice@example.com" || shown["role"] != "admin" {
		t.Fatalf("unexpected profile %v", shown)
	}

	if _, err := p.run("user", "show", "no-such-user"); err == nil {
		t.Fatal("expected unknown user error")
	}

	p.mustRun("logout")
	if _, err := p.run("user", "show", aliceID); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected ErrNoSession when signed out, got %v", err)
	}
}

func TestEventsAddUpdateFilterRemove(t *testing.T) {
	p, _ := newAdminProject(t)

	var added map[string]string
	p.mustJSON(&added, "events", "add", "--title", "Launch", "--date", "2026-11-01", "--status", "upcoming", "--location", "Hall A")
	p.mustRun("events", "add", "--title", "Kickoff", "--date", "2026-01-10", "--status", "past")

	if _, err := p.run("events", "add", "--title", "No date", "--status", "upcoming"); err == nil {
		t.Fatal("expected validation error for missing date")
	}

	var events []map[string]any
	p.mustJSON(&events, "events", "ls", "--status", "upcoming")
	if len(events) != 1 || events[0]["title"] != "Launch" || events[0]["id"] != added["id"] {
		t.Fatalf("unexpected upcoming events %v", events)
	}

	p.mustRun("events", "update", added["id"], "--status", "past")
	p.mustJSON(&events, "events", "ls", "--status", "past")
	if len(events) != 2 {
		t.Fatalf("expected 2 past events, got %v", events)
	}
	for _, e := range events {
		if e["title"] == "Launch" && e["location"] != "Hall A" {
			t.Fatalf("update should keep unchanged fields, got %v", e)
		}
	}

	output := p.mustRun("events", "ls", "--status", "upcoming")
	if !strings.Contains(output, "No events yet") {
		t.Fatalf("unexpected empty listing %q", output)
	}

	if _, err := p.run("events", "ls", "--status", "someday"); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	p.mustRun("events", "rm", "--yes", added["id"])
	p.mustJSON(&events, "events", "ls")
	if len(events) != 1 || events[0]["title"] != "Kickoff" {
		t.Fatalf("unexpected events after rm %v", events)
	}
}

func TestTeamSocialFlags(t *testing.T) {
	p, _ := newAdminProject(t)

	var added map[string]string
	p.mustJSON(&added, "team", "add", "--name", "Sara", "--position", "President", "--github", "https://github.com/sara")
	p.mustRun("team", "update", added["id"], "--twitter", "https://twitter.com/sara")

	var team []map[string]any
	p.mustJSON(&team, "team", "ls")
	if len(team) != 1 {
		t.Fatalf("expected one team member, got %v", team)
	}
	social, ok := team[0]["social"].(map[string]any)
	if !ok {
		t.Fatalf("expected social object, got %v", team[0])
	}
	if social["github"] != "https://github.com/sara" || social["twitter"] != "https://twitter.com/sara" {
		t.Fatalf("unexpected social links %v", social)
	}
}

func TestTripGalleryCommands(t *testing.T) {
	p, _ := newAdminProject(t)

	var added map[string]string
	p.mustJSON(&added, "trips", "add",
		"--title", "Dahab", "--date", "2026-04-01", "--location", "Sinai", "--description", "Diving",
		"--image", "a.jpg", "--image", "b.jpg")

	p.mustRun("trips", "add-image", added["id"], "c.jpg")
	p.mustRun("trips", "rm-image", added["id"], "0")
	if _, err := p.run("trips", "rm-image", added["id"], "7"); err == nil {
		t.Fatal("expected out of range index to fail")
	}

	var trips []map[string]any
	p.mustJSON(&trips, "trips", "ls")
	images, _ := trips[0]["images"].([]any)
	if len(images) != 2 || images[0] != "b.jpg" || images[1] != "c.jpg" {
		t.Fatalf("unexpected gallery %v", trips[0]["images"])
	}
}

func TestMembersCommitteeFilter(t *testing.T) {
	p, _ := newAdminProject(t)

	p.mustRun("members", "add", "--name", "Omar", "--committee", string(types.CommitteeMedia))
	p.mustRun("members", "add", "--name", "Lina", "--committee", string(types.CommitteeHR))
	if _, err := p.run("members", "add", "--name", "Nobody", "--committee", "finance"); err == nil {
		t.Fatal("expected unknown committee to fail")
	}

	output := p.mustRun("members", "ls", "--committee", "media")
	if !strings.Contains(output, "Omar") || strings.Contains(output, "Lina") {
		t.Fatalf("unexpected media members %q", output)
	}
}
