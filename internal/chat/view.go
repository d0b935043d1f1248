package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
)

const (
	inputMaxHeight = 6
	inputPadding   = 1
	quoteWidth     = 60
)

func (m *Model) View() string {
	lines := []string{m.viewport.View()}
	if picker := m.renderPicker(); picker != "" {
		lines = append(lines, picker)
	}
	if composing := m.renderComposerContext(); composing != "" {
		lines = append(lines, composing)
	}
	lines = append(lines, m.renderInput(), m.statusLine())
	return m.zones.Scan(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// markFunc wraps s in a clickable zone named id.
type markFunc func(id, s string) string

func messageZone(id string) string          { return "msg:" + id }
func reactionZone(id, symbol string) string { return "react:" + id + ":" + symbol }

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.input.SetWidth(max(m.width-inputPadding, 1))
	m.input.SetHeight(min(max(m.input.LineCount(), 1), inputMaxHeight))

	used := m.input.Height() + 2 + 1 // input block and status line
	if m.pickerOpen {
		used++
	}
	if m.renderComposerContext() != "" {
		used++
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-used, 1)
	m.refreshViewport()
}

// refreshViewport re-renders the stream, keeping the selection visible.
func (m *Model) refreshViewport() {
	content, offsets := m.renderMessages()
	m.viewport.SetContent(content)
	selected := m.selectedIndex()
	switch {
	case m.focus == focusMessages && selected >= 0 && selected < len(offsets):
		top := offsets[selected]
		if top < m.viewport.YOffset || top >= m.viewport.YOffset+m.viewport.Height {
			m.viewport.SetYOffset(top)
		}
	case m.followBottom:
		m.viewport.GotoBottom()
	}
}

// renderMessages returns the stream text and the first line of each
// message.
func (m *Model) renderMessages() (string, []int) {
	switch m.ctrl.Status() {
	case live.StatusLoading:
		return lipgloss.NewStyle().Foreground(metaColor).Render("loading messages…"), nil
	case live.StatusErrored:
		if len(m.ctrl.Messages()) == 0 {
			style := lipgloss.NewStyle().Foreground(errorColor)
			return style.Render(fmt.Sprintf("could not load messages: %v\nctrl+r to retry", m.ctrl.Err())), nil
		}
	}

	messages := m.ctrl.Messages()
	if len(messages) == 0 {
		return lipgloss.NewStyle().Foreground(metaColor).Render("no messages yet. say hi!"), nil
	}

	var viewer string
	if who := m.ctrl.Identity(m.ctx); who != nil {
		viewer = who.ID
	}
	now := m.now()

	var b strings.Builder
	offsets := make([]int, len(messages))
	line := 0
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
			line += 2
		}
		offsets[i] = line
		block := renderMessage(msg, viewer, now, m.width, m.zones.Mark)
		if m.focus == focusMessages && msg.ID == m.selectedID {
			block = markSelected(block)
		}
		b.WriteString(block)
		line += strings.Count(block, "\n") + 1
	}
	return b.String(), offsets
}

func renderMessage(msg types.Message, viewer string, now time.Time, width int, mark markFunc) string {
	if mark == nil {
		mark = func(_, s string) string { return s }
	}
	var lines []string
	lines = append(lines, mark(messageZone(msg.ID), renderByline(msg, now)))
	if msg.ReplyTo != nil {
		quote := fmt.Sprintf("↪ %s: %s", msg.ReplyTo.AuthorName, truncate(msg.ReplyTo.Text, quoteWidth))
		lines = append(lines, lipgloss.NewStyle().Foreground(metaColor).Italic(true).Render(quote))
	}
	body := highlightCodeBlocks(msg.Text)
	if body == msg.Text {
		body = lipgloss.NewStyle().Foreground(textColor).Render(body)
	}
	if width > 4 {
		body = ansi.Wrap(body, width-2, "")
	}
	lines = append(lines, body)
	if reactions := formatReactions(msg, viewer, mark, width); reactions != "" {
		lines = append(lines, reactions)
	}
	return strings.Join(lines, "\n")
}

func renderByline(msg types.Message, now time.Time) string {
	color := colorForAuthor(msg.AuthorID)
	name := lipgloss.NewStyle().Background(color).Foreground(contrastTextColor(color)).Bold(true).Render(" " + msg.AuthorName + " ")
	meta := relativeTime(msg, now)
	if msg.IsEdited {
		meta += " · edited"
	}
	return name + " " + lipgloss.NewStyle().Foreground(metaColor).Render(meta)
}

func relativeTime(msg types.Message, now time.Time) string {
	if msg.CreatedAt.IsZero() {
		return "just now"
	}
	if !msg.CreatedAt.Before(now) {
		return "now"
	}
	return humanize.RelTime(msg.CreatedAt, now, "ago", "from now")
}

// formatReactions renders one pill per symbol. The viewer's own
// reactions are highlighted.
func formatReactions(msg types.Message, viewer string, mark markFunc, width int) string {
	if mark == nil {
		mark = func(_, s string) string { return s }
	}
	reactions := msg.Reactions
	symbols := reactions.Symbols()
	if len(symbols) == 0 {
		return ""
	}
	pills := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		bg := pillBg
		if viewer != "" && reactions.Has(symbol, viewer) {
			bg = ownPillBg
		}
		style := lipgloss.NewStyle().Background(bg).Padding(0, 1)
		pill := style.Render(fmt.Sprintf("%s %d", symbol, reactions.Count(symbol)))
		pills = append(pills, mark(reactionZone(msg.ID, symbol), pill))
	}
	line := strings.Join(pills, " ")
	if width > 4 {
		line = ansi.Wrap(line, width-2, " ")
	}
	return line
}

func markSelected(block string) string {
	bar := lipgloss.NewStyle().Foreground(selectedBar).Render("▌")
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = bar + line
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPicker() string {
	if !m.pickerOpen {
		return ""
	}
	parts := make([]string, len(lounge.Emojis))
	for i, symbol := range lounge.Emojis {
		style := lipgloss.NewStyle().Padding(0, 1)
		if i == m.pickerIndex {
			style = style.Background(ownPillBg)
		}
		parts[i] = style.Render(symbol)
	}
	return strings.Join(parts, "")
}

func (m *Model) renderComposerContext() string {
	style := lipgloss.NewStyle().Foreground(metaColor).Italic(true)
	if m.composer.EditingID() != "" {
		return lipgloss.NewStyle().Foreground(editColor).Italic(true).Render("editing message · esc to cancel")
	}
	if reply := m.composer.ReplyTarget(); reply != nil {
		return style.Render(fmt.Sprintf("↪ replying to %s: %s · esc to cancel", reply.AuthorName, truncate(reply.Text, quoteWidth)))
	}
	return ""
}

func (m *Model) renderInput() string {
	style := lipgloss.NewStyle().Background(inputBg).Padding(0, inputPadding, 0, 0)
	if m.width > 0 {
		style = style.Width(m.width)
	}
	blank := style.Render("")
	return strings.Join([]string{blank, style.Render(m.input.View()), blank}, "\n")
}

func (m *Model) statusLine() string {
	left := m.status
	if left == "" {
		left = m.connectionLabel()
	}
	var right string
	switch {
	case m.pickerOpen:
		right = "←/→ choose · enter pick · esc close"
	case m.focus == focusMessages:
		right = "r reply · e edit · d delete · 1 👍 · 2 ❤️ · + react · tab back"
	default:
		right = "enter send · ↑ edit last · tab select · ctrl+p emoji"
	}
	styled := lipgloss.NewStyle().Foreground(statusColor)
	if m.status != "" || m.ctrl.Status() == live.StatusErrored {
		return alignStatusLine(lipgloss.NewStyle().Foreground(errorColor).Render(left), styled.Render(right), m.width)
	}
	return alignStatusLine(styled.Render(left), styled.Render(right), m.width)
}

func (m *Model) connectionLabel() string {
	label := m.title
	if label == "" {
		label = "lounge"
	}
	switch m.ctrl.Status() {
	case live.StatusLoading:
		return label + " · connecting"
	case live.StatusErrored:
		return label + " · disconnected (ctrl+r to retry)"
	}
	if who := m.ctrl.Identity(m.ctx); who != nil {
		return label + " · " + who.DisplayName
	}
	return label + " · signed out"
}

func alignStatusLine(left, right string, width int) string {
	if width <= 0 || right == "" {
		return left
	}
	leftWidth := ansi.StringWidth(left)
	rightWidth := ansi.StringWidth(right)
	if leftWidth+rightWidth+1 > width {
		return left
	}
	return left + strings.Repeat(" ", width-leftWidth-rightWidth) + right
}

func applyInputStyles(input *textarea.Model, fg, blur lipgloss.Color) {
	input.FocusedStyle.Base = lipgloss.NewStyle().Foreground(fg).Background(inputBg)
	input.FocusedStyle.Text = lipgloss.NewStyle().Foreground(fg).Background(inputBg)
	input.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(caretColor).Background(inputBg)
	input.FocusedStyle.CursorLine = lipgloss.NewStyle().Background(inputBg)
	input.BlurredStyle.Base = lipgloss.NewStyle().Foreground(blur).Background(inputBg)
	input.BlurredStyle.Text = lipgloss.NewStyle().Foreground(blur).Background(inputBg)
	input.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(caretColor).Background(inputBg)
	input.BlurredStyle.CursorLine = lipgloss.NewStyle().Background(inputBg)
}

func truncate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
