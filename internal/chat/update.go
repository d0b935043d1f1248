package chat

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	case changedMsg:
		if msg.closed {
			return m, tea.Quit
		}
		m.clampSelection()
		m.refreshViewport()
		return m, tea.Batch(m.waitForChange(), m.notifyCmd())
	case resultMsg:
		return m.handleResult(msg)
	case tickMsg:
		m.refreshViewport()
		return m, m.tickCmd()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = describeError(msg.op, msg.err)
	} else {
		m.status = ""
		if msg.op == "post" {
			m.followBottom = true
		}
	}
	m.syncInput()
	m.refreshViewport()
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlR && m.ctrl.Status() == live.StatusErrored {
		m.status = "reconnecting…"
		return m, m.retryCmd()
	}
	if m.pickerOpen {
		return m.handlePickerKey(msg)
	}
	if m.focus == focusMessages {
		return m.handleMessagesKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m *Model) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.followBottom = m.viewport.AtBottom()
		return m, cmd
	case msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft:
		return m, nil
	}

	for _, message := range m.ctrl.Messages() {
		for _, symbol := range message.Reactions.Symbols() {
			if m.zones.Get(reactionZone(message.ID, symbol)).InBounds(msg) {
				return m, m.reactCmd(message.ID, symbol)
			}
		}
		if m.zones.Get(messageZone(message.ID)).InBounds(msg) {
			m.focusMessages()
			m.selectedID = message.ID
			m.refreshViewport()
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	submitting := m.composer.State() == lounge.ComposerSubmitting
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.composer.State() != lounge.ComposerIdle || m.input.Value() != "" {
			m.composer.Cancel()
			m.syncInput()
			m.refreshViewport()
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyEsc:
		switch {
		case m.composer.EditingID() != "":
			m.composer.Cancel()
			m.syncInput()
		case m.composer.ReplyTarget() != nil:
			m.composer.ClearReply()
		}
		m.refreshViewport()
		return m, nil
	case tea.KeyEnter:
		if submitting || strings.TrimSpace(m.composer.Draft()) == "" {
			return m, nil
		}
		m.status = "sending…"
		return m, m.submitCmd()
	case tea.KeyUp:
		if m.input.Value() == "" && m.editLastOwnMessage() {
			return m, nil
		}
	case tea.KeyTab:
		m.focusMessages()
		return m, nil
	case tea.KeyCtrlP:
		m.openPicker()
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.followBottom = m.viewport.AtBottom()
		return m, cmd
	}
	if submitting {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != m.lastInputValue {
		m.lastInputValue = value
		m.composer.SetDraft(normalizeNewlines(value))
	}
	m.resize()
	return m, cmd
}

func (m *Model) handleMessagesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	messages := m.ctrl.Messages()
	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if key := msg.String(); key == "y" || key == "d" {
			m.status = "deleting…"
			return m, m.deleteCmd(id)
		}
		m.status = ""
		return m, nil
	}

	switch msg.String() {
	case "tab", "esc":
		m.focusInput()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if i := m.selectedIndex(); i > 0 {
			m.selectedID = messages[i-1].ID
		}
	case "down", "j":
		if i := m.selectedIndex(); i >= 0 && i < len(messages)-1 {
			m.selectedID = messages[i+1].ID
		}
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "r":
		if target, ok := m.selectedMessage(); ok {
			if err := m.composer.StartReply(target.ID); err != nil {
				m.status = describeError("reply", err)
			}
			m.focusInput()
		}
	case "e":
		if target, ok := m.selectedMessage(); ok {
			if err := m.composer.StartEdit(m.ctx, target.ID); err != nil {
				m.status = describeError("edit", err)
				break
			}
			m.syncInput()
			m.focusInput()
		}
	case "d":
		if target, ok := m.selectedMessage(); ok {
			if who := m.ctrl.Identity(m.ctx); who == nil || who.ID != target.AuthorID {
				m.status = describeError("delete", lounge.ErrNotAuthor)
				break
			}
			m.confirmDelete = target.ID
			m.status = "delete this message? y/n"
		}
	case "1", "2":
		if target, ok := m.selectedMessage(); ok {
			symbol := lounge.QuickReactions[0]
			if msg.String() == "2" {
				symbol = lounge.QuickReactions[1]
			}
			return m, m.reactCmd(target.ID, symbol)
		}
	case "+", "ctrl+p":
		if _, ok := m.selectedMessage(); ok {
			m.openPicker()
		}
	}
	m.refreshViewport()
	return m, nil
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+p", "ctrl+c":
		m.pickerOpen = false
	case "left", "h":
		m.pickerIndex = (m.pickerIndex + len(lounge.Emojis) - 1) % len(lounge.Emojis)
	case "right", "l":
		m.pickerIndex = (m.pickerIndex + 1) % len(lounge.Emojis)
	case "enter":
		symbol := lounge.Emojis[m.pickerIndex]
		m.pickerOpen = false
		if m.focus == focusMessages {
			if target, ok := m.selectedMessage(); ok {
				m.resize()
				return m, m.reactCmd(target.ID, symbol)
			}
			break
		}
		m.composer.AppendEmoji(symbol)
		m.syncInput()
	}
	m.resize()
	return m, nil
}

func (m *Model) openPicker() {
	m.pickerOpen = true
	m.pickerIndex = 0
	m.resize()
}

func (m *Model) focusMessages() {
	messages := m.ctrl.Messages()
	if len(messages) == 0 {
		return
	}
	m.focus = focusMessages
	m.selectedID = messages[len(messages)-1].ID
	m.input.Blur()
	m.refreshViewport()
}

func (m *Model) focusInput() {
	m.focus = focusInput
	m.selectedID = ""
	m.confirmDelete = ""
	m.input.Focus()
	m.followBottom = true
	m.resize()
}

// selectedIndex returns the stream position of the selected message, or
// -1 when nothing is selected.
func (m *Model) selectedIndex() int {
	if m.selectedID == "" {
		return -1
	}
	for i, msg := range m.ctrl.Messages() {
		if msg.ID == m.selectedID {
			return i
		}
	}
	return -1
}

func (m *Model) selectedMessage() (types.Message, bool) {
	if m.focus != focusMessages || m.selectedID == "" {
		return types.Message{}, false
	}
	return m.ctrl.Find(m.selectedID)
}

func (m *Model) clampSelection() {
	if m.focus != focusMessages {
		return
	}
	count := len(m.ctrl.Messages())
	if count == 0 {
		m.focusInput()
		return
	}
	// A removed selection moves to the newest message.
	if _, ok := m.ctrl.Find(m.selectedID); !ok {
		m.selectedID = m.ctrl.Messages()[count-1].ID
	}
	if m.confirmDelete != "" {
		if _, ok := m.ctrl.Find(m.confirmDelete); !ok {
			m.confirmDelete = ""
			m.status = ""
		}
	}
}

// editLastOwnMessage loads the newest message by the current user into
// the composer. It reports whether an edit started.
func (m *Model) editLastOwnMessage() bool {
	who := m.ctrl.Identity(m.ctx)
	if who == nil {
		return false
	}
	messages := m.ctrl.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].AuthorID != who.ID {
			continue
		}
		if err := m.composer.StartEdit(m.ctx, messages[i].ID); err != nil {
			m.status = describeError("edit", err)
			return false
		}
		m.syncInput()
		return true
	}
	return false
}

// syncInput copies the composer draft into the text area.
func (m *Model) syncInput() {
	draft := m.composer.Draft()
	if m.input.Value() != draft {
		m.input.SetValue(draft)
		m.input.CursorEnd()
	}
	m.lastInputValue = m.input.Value()
	m.resize()
}

func describeError(op string, err error) string {
	var authErr *lounge.AuthorizationError
	switch {
	case errors.As(err, &authErr):
		return "you can only " + authErr.Op + " your own messages"
	case errors.Is(err, lounge.ErrNotAuthor):
		return "you can only " + op + " your own messages"
	case errors.Is(err, lounge.ErrSignedOut):
		return "sign in to " + op + " (lounge login)"
	case errors.Is(err, lounge.ErrEmptyText):
		return "cannot send an empty message"
	case errors.Is(err, lounge.ErrMessageNotFound):
		return "message no longer exists"
	case errors.Is(err, lounge.ErrBusy):
		return "still sending…"
	default:
		return op + " failed: " + err.Error()
	}
}

func normalizeNewlines(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(value, "\r", "\n")
}
