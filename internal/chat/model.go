// Package chat is the terminal lounge: a live message stream with a
// composer, replies, edits and reactions.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/types"
)

// Options configure chat.
type Options struct {
	Controller *lounge.Controller
	Title      string
	// Now is used for relative timestamps. Defaults to time.Now.
	Now func() time.Time
	// Notify raises a desktop notification for messages from others.
	Notify bool
}

// Run starts the chat UI and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if opts.Controller == nil {
		return fmt.Errorf("chat: controller is required")
	}
	title := "lounge"
	if opts.Title != "" {
		title = "lounge · " + opts.Title
	}
	fmt.Printf("\033]0;%s\007", title)

	model := NewModel(ctx, opts)
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx)).Run()
	return err
}

type focus int

const (
	focusInput focus = iota
	focusMessages
)

const pollInterval = 30 * time.Second

// Model implements the chat UI.
type Model struct {
	ctx      context.Context
	ctrl     *lounge.Controller
	composer *lounge.Composer
	now      func() time.Time
	title    string

	viewport viewport.Model
	input    textarea.Model
	zones    *zone.Manager
	width    int
	height   int

	notify   bool
	notifier func(types.Message, string) error
	seen     map[string]struct{}

	focus          focus
	selectedID     string // message under the cursor while focusMessages
	confirmDelete  string
	pickerOpen     bool
	pickerIndex    int
	status         string
	followBottom   bool
	lastInputValue string
}

// NewModel creates a chat model over ctrl.
func NewModel(ctx context.Context, opts Options) *Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Model{
		ctx:          ctx,
		ctrl:         opts.Controller,
		composer:     lounge.NewComposer(opts.Controller),
		now:          now,
		title:        opts.Title,
		viewport:     viewport.New(0, 0),
		input:        newInputModel(),
		zones:        zone.New(),
		notify:       opts.Notify,
		notifier:     Notify,
		followBottom: true,
	}
	if m.notify {
		m.seedSeen()
	}
	return m
}

func newInputModel() textarea.Model {
	input := textarea.New()
	input.Placeholder = "Say something nice"
	input.Prompt = "› "
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(1)
	input.KeyMap.InsertNewline.SetEnabled(false)
	applyInputStyles(&input, textColor, blurText)
	input.Focus()
	return input
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForChange(), m.tickCmd())
}
