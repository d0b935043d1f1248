package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
)

func newTestService(t *testing.T) (*Service, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(store, WithClock(func() time.Time {
		return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	}))
	svc.kdf = kdfParams{Time: 1, Memory: 8 * 1024, Threads: 1}
	return svc, store
}

func TestRegisterCreatesDefaultProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "  Nessie@Loch.Example ", "secret1", "Nessie")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.Email != "nessie@loch.example" || session.UserID == "" || session.Token == "" {
		t.Fatalf("unexpected session: %+v", session)
	}

	profile, err := svc.Profile(ctx, session.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Role != types.RoleUser || profile.Name != "Nessie" || profile.Email != "nessie@loch.example" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if !profile.CreatedAt.Equal(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt: %v", profile.CreatedAt)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "secret1", "X"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, "a@b.example", "12345", "X"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.Register(ctx, "a@b.example", "123456", "X"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "A@B.example", "654321", "Y"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestConcurrentRegisterAdmitsOneAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	sessions := make([]Session, 2)
	errs := make([]error, 2)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = svc.Register(ctx, "dup@example.com", "secret1", "Dup")
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner >= 0 {
				t.Fatalf("both registrations succeeded: %+v", sessions)
			}
			winner = i
		case !errors.Is(err, ErrEmailTaken):
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	}
	if winner < 0 {
		t.Fatalf("no registration succeeded: %v", errs)
	}

	session, err := svc.SignIn(ctx, "dup@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.UserID != sessions[winner].UserID {
		t.Fatalf("account was overwritten: signed in as %s, registered %s", session.UserID, sessions[winner].UserID)
	}
}

func TestSignIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "yeti@peak.example", "snowfall", "Yeti")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := svc.SignIn(ctx, "YETI@peak.example", "snowfall")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.UserID != registered.UserID {
		t.Fatalf("expected uid %s, got %s", registered.UserID, session.UserID)
	}
	if session.Token == registered.Token {
		t.Fatal("expected a fresh session token")
	}

	if _, err := svc.SignIn(ctx, "yeti@peak.example", "wrong!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@peak.example", "snowfall"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestSignInRecreatesMissingProfile(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "kraken@sea.example", "tentacle", "Kraken")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.Delete(ctx, UsersCollection, registered.UserID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if _, err := svc.SignIn(ctx, "kraken@sea.example", "tentacle"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	profile, err := svc.Profile(ctx, registered.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Role != types.RoleUser || profile.Email != "kraken@sea.example" {
		t.Fatalf("unexpected recreated profile: %+v", profile)
	}
}

func TestProfileUpdateAndRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "mothman@wv.example", "wings!", "Moth")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	name, photo := "Mothman", "https://img.example/moth.png"
	profile, err := svc.UpdateProfile(ctx, session.UserID, ProfileUpdate{Name: &name, PhotoURL: &photo})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if profile.Name != "Mothman" || profile.PhotoURL == nil || *profile.PhotoURL != photo {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if err := svc.SetRole(ctx, session.UserID, "root"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := svc.SetRole(ctx, session.UserID, types.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	identity, err := svc.IdentityFor(ctx, session)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if !identity.IsAdmin() || identity.DisplayName != "Mothman" || identity.AvatarURL == nil {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestSessionIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sessions := NewSessionStore(filepath.Join(t.TempDir(), "lounge", "session.json"))
	source := SessionIdentity{Service: svc, Sessions: sessions}

	who, err := source.Current(ctx)
	if err != nil || who != nil {
		t.Fatalf("expected signed out, got %+v %v", who, err)
	}

	session, err := svc.Register(ctx, "bigfoot@woods.example", "footprint", "Bigfoot")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sessions.Save(session); err != nil {
		t.Fatalf("save: %v", err)
	}
	who, err = source.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if who == nil || who.ID != session.UserID || who.DisplayName != "Bigfoot" {
		t.Fatalf("unexpected identity: %+v", who)
	}

	if err := sessions.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := sessions.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := sessions.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestPasswordHashEncodesParams(t *testing.T) {
	params := kdfParams{Time: 2, Memory: 8 * 1024, Threads: 1}
	hash, salt, err := hashPassword("hunter2", params)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := verifyPassword("hunter2", hash, salt)
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	if ok, _ := verifyPassword("hunter3", hash, salt); ok {
		t.Fatal("expected mismatch")
	}
	if _, err := verifyPassword("x", "bcrypt$whatever", salt); err == nil {
		t.Fatal("expected unsupported hash error")
	}
}
