package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/monsters-club/lounge/internal/live"
)

// changedMsg is sent after the controller applies a snapshot or changes
// status.
type changedMsg struct{ closed bool }

// resultMsg reports the outcome of an asynchronous operation.
type resultMsg struct {
	op  string
	id  string
	err error
}

// tickMsg refreshes relative timestamps.
type tickMsg struct{}

func (m *Model) waitForChange() tea.Cmd {
	changes := m.ctrl.Changes()
	return func() tea.Msg {
		_, ok := <-changes
		return changedMsg{closed: !ok}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) submitCmd() tea.Cmd {
	composer := m.composer
	ctx := m.ctx
	editing := composer.EditingID() != ""
	return func() tea.Msg {
		op := "post"
		if editing {
			op = "edit"
		}
		id, err := composer.Submit(ctx)
		return resultMsg{op: op, id: id, err: err}
	}
}

func (m *Model) reactCmd(id, symbol string) tea.Cmd {
	ctrl := m.ctrl
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{op: "react", id: id, err: ctrl.ToggleReaction(ctx, id, symbol)}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	ctrl := m.ctrl
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{op: "delete", id: id, err: ctrl.Delete(ctx, id)}
	}
}

func (m *Model) retryCmd() tea.Cmd {
	ctrl := m.ctrl
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{op: "retry", err: ctrl.Retry(ctx)}
	}
}

func (m *Model) seedSeen() {
	messages := m.ctrl.Messages()
	m.seen = make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		m.seen[msg.ID] = struct{}{}
	}
}

// notifyCmd notifies about messages from others that arrived since the
// last snapshot.
func (m *Model) notifyCmd() tea.Cmd {
	if !m.notify || m.ctrl.Status() != live.StatusReady {
		return nil
	}
	if m.seen == nil {
		m.seedSeen()
		return nil
	}
	var viewer string
	if who := m.ctrl.Identity(m.ctx); who != nil {
		viewer = who.ID
	}
	fresh := newMessagesFrom(m.ctrl.Messages(), m.seen, viewer)
	if len(fresh) == 0 {
		return nil
	}
	notifier, title := m.notifier, m.title
	return func() tea.Msg {
		for _, msg := range fresh {
			_ = notifier(msg, title)
		}
		return nil
	}
}
