package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
)

func connect(t *testing.T) (*mcp.ClientSession, *lounge.Controller, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	store := docstore.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	ctrl, err := lounge.Open(ctx, store, lounge.Static(&types.Identity{ID: "u1", DisplayName: "Ada"}))
	if err != nil {
		t.Fatalf("open controller: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close() })
	if err := ctrl.Wait(ctx, func([]types.Message) bool { return true }); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	server := NewServer(ctrl, "test")
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.sdk.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session, ctrl, ctx
}

func callText(t *testing.T, ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("call %s: empty result", name)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("call %s: unexpected content %T", name, res.Content[0])
	}
	return text.Text, res.IsError
}

func TestListsLoungeTools(t *testing.T) {
	session, _, ctx := connect(t)

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	if got := strings.Join(names, ","); !strings.Contains(got, "lounge_post") || !strings.Contains(got, "lounge_get") || !strings.Contains(got, "lounge_react") {
		t.Fatalf("unexpected tools %v", names)
	}
}

func TestPostGetReact(t *testing.T) {
	session, ctrl, ctx := connect(t)

	if text, _ := callText(t, ctx, session, "lounge_get", map[string]any{}); text != "No messages" {
		t.Fatalf("unexpected empty get %q", text)
	}

	text, isErr := callText(t, ctx, session, "lounge_post", map[string]any{"text": "hello from mcp"})
	if isErr || !strings.HasPrefix(text, "Posted message #") {
		t.Fatalf("unexpected post result %q", text)
	}
	id := strings.TrimPrefix(text, "Posted message #")
	if err := ctrl.Wait(ctx, func(ms []types.Message) bool { return len(ms) == 1 }); err != nil {
		t.Fatalf("wait post: %v", err)
	}

	if _, isErr := callText(t, ctx, session, "lounge_react", map[string]any{"message_id": id, "symbol": "🔥"}); isErr {
		t.Fatal("react failed")
	}
	if err := ctrl.Wait(ctx, func(ms []types.Message) bool { return ms[0].Reactions.Has("🔥", "u1") }); err != nil {
		t.Fatalf("wait react: %v", err)
	}

	text, _ = callText(t, ctx, session, "lounge_get", map[string]any{"limit": 5})
	if !strings.Contains(text, "Ada: hello from mcp") || !strings.Contains(text, "🔥 1") {
		t.Fatalf("unexpected get result %q", text)
	}

	text, _ = callText(t, ctx, session, "lounge_get", map[string]any{"since": id})
	if !strings.HasPrefix(text, "No messages after") {
		t.Fatalf("expected nothing after the last message, got %q", text)
	}
}

func TestPostRejectsBlankText(t *testing.T) {
	session, _, ctx := connect(t)

	text, isErr := callText(t, ctx, session, "lounge_post", map[string]any{"text": "   "})
	if !isErr || !strings.Contains(text, "cannot be empty") {
		t.Fatalf("expected blank post error, got %q (error=%v)", text, isErr)
	}
}
