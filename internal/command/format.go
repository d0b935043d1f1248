package command

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/types"
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	boldStyle  = lipgloss.NewStyle().Bold(true)
	quoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

var namePalette = []lipgloss.Color{
	lipgloss.Color("111"),
	lipgloss.Color("157"),
	lipgloss.Color("216"),
	lipgloss.Color("36"),
	lipgloss.Color("183"),
	lipgloss.Color("230"),
}

func nameStyle(userID string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return lipgloss.NewStyle().Bold(true).Foreground(namePalette[int(h.Sum32()%uint32(len(namePalette)))])
}

// FormatMessage formats a message for display.
func FormatMessage(msg types.Message, idLength int, now time.Time) string {
	edited := ""
	if msg.IsEdited {
		edited = " (edited)"
	}
	idBlock := dimStyle.Render(fmt.Sprintf("[%s] %s%s", core.ShortID(msg.ID, idLength), formatRelative(msg.CreatedAt, now), edited))

	var b strings.Builder
	b.WriteString(idBlock)
	b.WriteString(" ")
	b.WriteString(nameStyle(msg.AuthorID).Render(msg.AuthorName))
	b.WriteString(": ")
	b.WriteString(msg.Text)
	if msg.ReplyTo != nil {
		b.WriteString("\n    ")
		b.WriteString(quoteStyle.Render(fmt.Sprintf("↪ %s: %s", msg.ReplyTo.AuthorName, preview(msg.ReplyTo.Text, 60))))
	}
	if summary := formatReactionSummary(msg.Reactions); summary != "" {
		b.WriteString("\n    ")
		b.WriteString(summary)
	}
	return b.String()
}

func formatReactionSummary(reactions types.Reactions) string {
	symbols := reactions.Symbols()
	if len(symbols) == 0 {
		return ""
	}
	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, fmt.Sprintf("%s %d", symbol, reactions.Count(symbol)))
	}
	return strings.Join(parts, "  ")
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// messageJSON is the --json shape of a message.
type messageJSON struct {
	ID        string               `json:"id"`
	Text      string               `json:"text"`
	UserID    string               `json:"user_id"`
	UserName  string               `json:"user_name"`
	UserPhoto *string              `json:"user_photo,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	IsEdited  bool                 `json:"is_edited"`
	ReplyTo   *types.ReplySnapshot `json:"reply_to,omitempty"`
	Reactions types.Reactions      `json:"reactions"`
}

func toMessageJSON(msg types.Message) messageJSON {
	reactions := msg.Reactions.Normalize()
	return messageJSON{
		ID:        msg.ID,
		Text:      msg.Text,
		UserID:    msg.AuthorID,
		UserName:  msg.AuthorName,
		UserPhoto: msg.AuthorAvatar,
		CreatedAt: msg.CreatedAt,
		IsEdited:  msg.IsEdited,
		ReplyTo:   msg.ReplyTo,
		Reactions: reactions,
	}
}

func messageIDLength(messages []types.Message) int {
	return core.DisplayLength(len(messages))
}

func boldLabel(text string) string {
	return boldStyle.Render(text)
}
