package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
)

const defaultLimit = 10

type postArgs struct {
	Text    string `json:"text" jsonschema:"Message text"`
	ReplyTo string `json:"reply_to,omitempty" jsonschema:"Id of the message to reply to (full id or short tail)"`
}

type getArgs struct {
	Since string `json:"since,omitempty" jsonschema:"Only messages after this message id (for polling)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of messages to return (default: 10)"`
}

type reactArgs struct {
	MessageID string `json:"message_id" jsonschema:"Id of the message (full id or short tail)"`
	Symbol    string `json:"symbol" jsonschema:"Reaction emoji, e.g. 👍"`
}

func registerTools(server *mcp.Server, ctrl *lounge.Controller) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "lounge_post",
		Description: "Post a message to the lounge, optionally as a reply.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args postArgs) (*mcp.CallToolResult, any, error) {
		return handlePost(ctx, ctrl, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lounge_get",
		Description: "Get recent lounge messages. Use for catching up on conversation.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, args getArgs) (*mcp.CallToolResult, any, error) {
		return handleGet(ctrl, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lounge_react",
		Description: "Toggle a reaction on a message. Reacting again removes it.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args reactArgs) (*mcp.CallToolResult, any, error) {
		return handleReact(ctx, ctrl, args), nil, nil
	})
}

func handlePost(ctx context.Context, ctrl *lounge.Controller, args postArgs) *mcp.CallToolResult {
	var replyTo *types.ReplySnapshot
	if args.ReplyTo != "" {
		target, err := findMessage(ctrl, args.ReplyTo)
		if err != nil {
			return toolError(err.Error())
		}
		quote := target.Quote()
		replyTo = &quote
	}
	id, err := ctrl.Compose(ctx, args.Text, replyTo)
	if errors.Is(err, lounge.ErrEmptyText) {
		return toolError("Error: message text cannot be empty")
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(fmt.Sprintf("Posted message #%s", id))
}

func handleGet(ctrl *lounge.Controller, args getArgs) *mcp.CallToolResult {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	messages := ctrl.Messages()
	if args.Since != "" {
		since, err := findMessage(ctrl, args.Since)
		if err != nil {
			return toolError(err.Error())
		}
		messages = after(messages, since.ID)
	}
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	if len(messages) == 0 {
		if args.Since != "" {
			return toolResult(fmt.Sprintf("No messages after #%s", strings.TrimPrefix(args.Since, "#")))
		}
		return toolResult("No messages")
	}
	header := fmt.Sprintf("Recent messages (%d):", len(messages))
	if args.Since != "" {
		header = fmt.Sprintf("Messages after #%s (%d):", strings.TrimPrefix(args.Since, "#"), len(messages))
	}
	return toolResult(header + "\n\n" + formatMessages(messages))
}

func handleReact(ctx context.Context, ctrl *lounge.Controller, args reactArgs) *mcp.CallToolResult {
	msg, err := findMessage(ctrl, args.MessageID)
	if err != nil {
		return toolError(err.Error())
	}
	if err := ctrl.ToggleReaction(ctx, msg.ID, args.Symbol); err != nil {
		return toolError(err.Error())
	}
	return toolResult(fmt.Sprintf("Toggled %s on #%s", args.Symbol, msg.ID))
}

func findMessage(ctrl *lounge.Controller, ref string) (types.Message, error) {
	messages := ctrl.Messages()
	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}
	id, err := core.ResolveID(ids, ref)
	if err != nil {
		return types.Message{}, err
	}
	msg, ok := ctrl.Find(id)
	if !ok {
		return types.Message{}, lounge.ErrMessageNotFound
	}
	return msg, nil
}

// after returns the messages that follow id in stream order.
func after(messages []types.Message, id string) []types.Message {
	for i, msg := range messages {
		if msg.ID == id {
			return messages[i+1:]
		}
	}
	return nil
}

func formatMessages(messages []types.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		line := fmt.Sprintf("[#%s] %s: %s", msg.ID, msg.AuthorName, msg.Text)
		if msg.ReplyTo != nil {
			line += fmt.Sprintf(" (reply to #%s %s)", msg.ReplyTo.ID, msg.ReplyTo.AuthorName)
		}
		if symbols := msg.Reactions.Symbols(); len(symbols) > 0 {
			counts := make([]string, len(symbols))
			for i, symbol := range symbols {
				counts[i] = fmt.Sprintf("%s %d", symbol, msg.Reactions.Count(symbol))
			}
			line += " [" + strings.Join(counts, ", ") + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func toolResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
