package lounge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/docstore/storetest"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/types"
)

func testClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func user(id, name string) *types.Identity {
	return &types.Identity{ID: id, DisplayName: name, Role: types.RoleUser}
}

func openController(t *testing.T, store docstore.Store, who *types.Identity, opts ...Option) *Controller {
	t.Helper()
	c, err := Open(context.Background(), store, Static(who), opts...)
	if err != nil {
		t.Fatalf("open controller: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Wait(testCtx(t), func([]types.Message) bool { return true }); err != nil {
		t.Fatalf("controller not ready: %v", err)
	}
	return c
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitMessage(t *testing.T, c *Controller, id string, pred func(types.Message) bool) types.Message {
	t.Helper()
	var found types.Message
	err := c.Wait(testCtx(t), func(msgs []types.Message) bool {
		for _, m := range msgs {
			if m.ID == id && pred(m) {
				found = m
				return true
			}
		}
		return false
	})
	if err != nil {
		t.Fatalf("waiting for message %s: %v", id, err)
	}
	return found
}

func TestScenarioComposeEditReactDelete(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	clock := testClock()
	u1 := openController(t, store, user("u1", "U1"), WithClock(clock))
	u2 := openController(t, store, user("u2", "U2"), WithClock(clock))
	ctx := testCtx(t)

	id, err := u1.Compose(ctx, "Hello team", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	msg := waitMessage(t, u1, id, func(types.Message) bool { return true })
	if msg.Text != "Hello team" || msg.IsEdited || len(msg.Reactions) != 0 || msg.AuthorID != "u1" || msg.AuthorName != "U1" {
		t.Fatalf("unexpected composed message: %+v", msg)
	}

	if err := u1.Edit(ctx, id, "Hello team!!"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	msg = waitMessage(t, u1, id, func(m types.Message) bool { return m.IsEdited })
	if msg.Text != "Hello team!!" {
		t.Fatalf("expected edited text, got %q", msg.Text)
	}

	waitMessage(t, u2, id, func(m types.Message) bool { return m.IsEdited })
	if err := u2.ToggleReaction(ctx, id, "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	waitMessage(t, u2, id, func(m types.Message) bool { return m.Reactions.Has("👍", "u2") })
	if err := u2.ToggleReaction(ctx, id, "👍"); err != nil {
		t.Fatalf("react again: %v", err)
	}
	msg = waitMessage(t, u2, id, func(m types.Message) bool { return !m.Reactions.Has("👍", "u2") })
	if msg.Reactions.Count("👍") != 0 {
		t.Fatalf("expected 👍 cleared, got %+v", msg.Reactions)
	}

	err = u2.Delete(ctx, id)
	if !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) || authErr.Author != "u1" || authErr.Actor != "u2" {
		t.Fatalf("unexpected authorization error: %+v", err)
	}
	if got, ok := u2.Find(id); !ok || got.Text != "Hello team!!" {
		t.Fatalf("message changed after rejected delete: %+v", got)
	}

	if err := u1.Delete(ctx, id); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := u1.Wait(ctx, func(msgs []types.Message) bool { return len(msgs) == 0 }); err != nil {
		t.Fatalf("wait delete: %v", err)
	}
}

func TestReplySnapshotSurvivesEdit(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	u1 := openController(t, store, user("u1", "U1"), WithClock(testClock()))
	ctx := testCtx(t)

	m1, err := u1.Compose(ctx, "Hello team!!", nil)
	if err != nil {
		t.Fatalf("compose m1: %v", err)
	}
	waitMessage(t, u1, m1, func(types.Message) bool { return true })

	quote, err := u1.ReplyTo(m1)
	if err != nil {
		t.Fatalf("reply to: %v", err)
	}
	m2, err := u1.Compose(ctx, "replying", quote)
	if err != nil {
		t.Fatalf("compose m2: %v", err)
	}
	waitMessage(t, u1, m2, func(types.Message) bool { return true })

	if err := u1.Edit(ctx, m1, "Goodbye"); err != nil {
		t.Fatalf("edit m1: %v", err)
	}
	waitMessage(t, u1, m1, func(m types.Message) bool { return m.Text == "Goodbye" })

	reply, _ := u1.Find(m2)
	if reply.ReplyTo == nil || reply.ReplyTo.Text != "Hello team!!" || reply.ReplyTo.ID != m1 || reply.ReplyTo.AuthorName != "U1" {
		t.Fatalf("reply snapshot changed: %+v", reply.ReplyTo)
	}
}

func TestMessagesFollowCreatedAtNotInsertOrder(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	offsets := []int{4, 1, 3, 0, 2}
	next := 0
	clock := func() time.Time {
		ts := base.Add(time.Duration(offsets[next]) * time.Second)
		next++
		return ts
	}
	c := openController(t, store, user("u1", "U1"), WithClock(clock))
	ctx := testCtx(t)

	for range offsets {
		if _, err := c.Compose(ctx, "m", nil); err != nil {
			t.Fatalf("compose: %v", err)
		}
	}
	if err := c.Wait(ctx, func(msgs []types.Message) bool { return len(msgs) == len(offsets) }); err != nil {
		t.Fatalf("wait: %v", err)
	}
	msgs := c.Messages()
	for i := 1; i < len(msgs); i++ {
		if !msgs[i-1].CreatedAt.Before(msgs[i].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v then %v", i, msgs[i-1].CreatedAt, msgs[i].CreatedAt)
		}
	}
}

func TestEqualCreatedAtKeepsStoreOrder(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	same := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := openController(t, store, user("u1", "U1"), WithClock(func() time.Time { return same }))
	ctx := testCtx(t)

	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		id, err := c.Compose(ctx, text, nil)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		ids = append(ids, id)
	}
	if err := c.Wait(ctx, func(msgs []types.Message) bool { return len(msgs) == 3 }); err != nil {
		t.Fatalf("wait: %v", err)
	}
	for i, msg := range c.Messages() {
		if msg.ID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], msg.ID)
		}
	}
}

func TestValidationAndAuthorizationNeverReachStore(t *testing.T) {
	faulty := storetest.NewFaulty(docstore.NewMemory())
	defer faulty.Close()
	u1 := openController(t, faulty, user("u1", "U1"), WithClock(testClock()))
	u2 := openController(t, faulty, user("u2", "U2"), WithClock(testClock()))
	ctx := testCtx(t)

	id, err := u1.Compose(ctx, "mine", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessage(t, u2, id, func(types.Message) bool { return true })
	inserts, updates, deletes := faulty.Calls("insert"), faulty.Calls("update"), faulty.Calls("delete")

	if _, err := u1.Compose(ctx, "   \n", nil); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if err := u1.Edit(ctx, id, "  "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText on edit, got %v", err)
	}
	if err := u2.Edit(ctx, id, "hijack"); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if err := u2.Delete(ctx, id); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if err := u1.Edit(ctx, "missing", "x"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
	if err := u1.ToggleReaction(ctx, id, " "); !errors.Is(err, ErrEmptyReaction) {
		t.Fatalf("expected ErrEmptyReaction, got %v", err)
	}

	if faulty.Calls("insert") != inserts || faulty.Calls("update") != updates || faulty.Calls("delete") != deletes {
		t.Fatal("rejected operations reached the store")
	}
	if got, _ := u1.Find(id); got.Text != "mine" || got.IsEdited {
		t.Fatalf("message changed: %+v", got)
	}
}

func TestEditedFlagStaysSet(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	c := openController(t, store, user("u1", "U1"), WithClock(testClock()))
	ctx := testCtx(t)

	id, err := c.Compose(ctx, "v1", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessage(t, c, id, func(types.Message) bool { return true })
	for _, text := range []string{"v2", "v3", "v1"} {
		if err := c.Edit(ctx, id, text); err != nil {
			t.Fatalf("edit: %v", err)
		}
		msg := waitMessage(t, c, id, func(m types.Message) bool { return m.Text == text })
		if !msg.IsEdited {
			t.Fatalf("isEdited cleared after editing to %q", text)
		}
	}
}

func TestSignedOutCannotPost(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	c := openController(t, store, nil)
	if _, err := c.Compose(testCtx(t), "hi", nil); !errors.Is(err, ErrSignedOut) {
		t.Fatalf("expected ErrSignedOut, got %v", err)
	}
	if c.Identity(context.Background()) != nil {
		t.Fatal("expected no identity")
	}
}

func TestAuthorNameFallback(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	c := openController(t, store, user("u9", "  "), WithClock(testClock()))
	named := openController(t, store, user("u8", ""), WithClock(testClock()), WithFallbackName("Guest"))
	ctx := testCtx(t)

	id, err := c.Compose(ctx, "anon", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if msg := waitMessage(t, c, id, func(types.Message) bool { return true }); msg.AuthorName != DefaultFallbackName {
		t.Fatalf("expected %q, got %q", DefaultFallbackName, msg.AuthorName)
	}
	id, err = named.Compose(ctx, "guest", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if msg := waitMessage(t, named, id, func(types.Message) bool { return true }); msg.AuthorName != "Guest" {
		t.Fatalf("expected Guest, got %q", msg.AuthorName)
	}
}

func TestFailedReactionLeavesMirror(t *testing.T) {
	faulty := storetest.NewFaulty(docstore.NewMemory())
	defer faulty.Close()
	c := openController(t, faulty, user("u1", "U1"), WithClock(testClock()))
	ctx := testCtx(t)

	id, err := c.Compose(ctx, "hi", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessage(t, c, id, func(types.Message) bool { return true })

	faulty.Fail("update", errors.New("permission denied"))
	err = c.ToggleReaction(ctx, id, "❤️")
	var mutErr *docstore.MutationError
	if !errors.As(err, &mutErr) {
		t.Fatalf("expected MutationError, got %v", err)
	}
	if got, _ := c.Find(id); len(got.Reactions) != 0 {
		t.Fatalf("mirror changed after failed reaction: %+v", got.Reactions)
	}
}

func TestConcurrentWholeMapTogglesLoseAWrite(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	u1 := openController(t, store, user("u1", "U1"), WithClock(testClock()))
	u2 := openController(t, store, user("u2", "U2"), WithClock(testClock()))
	ctx := testCtx(t)

	id, err := u1.Compose(ctx, "race", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessage(t, u1, id, func(types.Message) bool { return true })
	waitMessage(t, u2, id, func(types.Message) bool { return true })

	// Both toggles are computed from the same mirrored map before either
	// snapshot arrives, so the second write replaces the first.
	m1, _ := u1.Find(id)
	m2, _ := u2.Find(id)
	if err := u1.binding.Update(ctx, id, types.Fields{"reactions": m1.Reactions.Toggle("👍", "u1").ToFields()}); err != nil {
		t.Fatalf("u1 write: %v", err)
	}
	if err := u2.binding.Update(ctx, id, types.Fields{"reactions": m2.Reactions.Toggle("👍", "u2").ToFields()}); err != nil {
		t.Fatalf("u2 write: %v", err)
	}
	msg := waitMessage(t, u1, id, func(m types.Message) bool { return m.Reactions.Has("👍", "u2") })
	if msg.Reactions.Has("👍", "u1") {
		t.Fatal("expected u1's toggle to be overwritten")
	}
}

func TestAtomicReactionsKeepBothToggles(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	u1 := openController(t, store, user("u1", "U1"), WithClock(testClock()), WithAtomicReactions(true))
	u2 := openController(t, store, user("u2", "U2"), WithClock(testClock()), WithAtomicReactions(true))
	ctx := testCtx(t)

	id, err := u1.Compose(ctx, "race", nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	waitMessage(t, u2, id, func(types.Message) bool { return true })

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, c := range []*Controller{u1, u2} {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			errs <- c.ToggleReaction(ctx, id, "👍")
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	msg := waitMessage(t, u1, id, func(m types.Message) bool { return m.Reactions.Count("👍") == 2 })
	if !msg.Reactions.Has("👍", "u1") || !msg.Reactions.Has("👍", "u2") {
		t.Fatalf("expected both users, got %+v", msg.Reactions)
	}
}

func TestControllerStatusFollowsBinding(t *testing.T) {
	faulty := storetest.NewFaulty(docstore.NewMemory())
	defer faulty.Close()
	faulty.Fail("subscribe", errors.New("offline"))

	c, err := Open(context.Background(), faulty, Static(user("u1", "U1")))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	if c.Status() != live.StatusErrored || c.Err() == nil {
		t.Fatalf("expected errored controller, got %s", c.Status())
	}
	faulty.Heal()
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := c.Wait(testCtx(t), func([]types.Message) bool { return true }); err != nil {
		t.Fatalf("ready: %v", err)
	}
}
