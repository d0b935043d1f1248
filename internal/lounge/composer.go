package lounge

import (
	"context"
	"sync"

	"github.com/monsters-club/lounge/internal/types"
)

// ComposerState is the state of a compose surface.
type ComposerState int

const (
	ComposerIdle ComposerState = iota
	ComposerComposing
	ComposerSubmitting
	ComposerEditing
)

func (s ComposerState) String() string {
	switch s {
	case ComposerIdle:
		return "idle"
	case ComposerComposing:
		return "composing"
	case ComposerSubmitting:
		return "submitting"
	case ComposerEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// Composer holds the draft of one compose surface: the text being typed,
// an optional reply target, and the message being edited if any.
type Composer struct {
	ctrl *Controller

	mu      sync.Mutex
	state   ComposerState
	draft   string
	replyTo *types.ReplySnapshot
	editing string
	// resume is the state to return to when a submission fails.
	resume ComposerState
}

// NewComposer creates an idle composer over ctrl.
func NewComposer(ctrl *Controller) *Composer {
	return &Composer{ctrl: ctrl}
}

// State returns the composer state.
func (c *Composer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns the current draft text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// ReplyTarget returns the quoted message, or nil.
func (c *Composer) ReplyTarget() *types.ReplySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replyTo == nil {
		return nil
	}
	quoted := *c.replyTo
	return &quoted
}

// EditingID returns the id of the message being edited, or "".
func (c *Composer) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// SetDraft replaces the draft text.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ComposerSubmitting {
		return
	}
	c.draft = text
	c.settleLocked()
}

// AppendEmoji adds symbol to the end of the draft.
func (c *Composer) AppendEmoji(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ComposerSubmitting {
		return
	}
	c.draft += symbol
	c.settleLocked()
}

func (c *Composer) settleLocked() {
	switch {
	case c.editing != "":
		c.state = ComposerEditing
	case c.draft != "" || c.replyTo != nil:
		c.state = ComposerComposing
	default:
		c.state = ComposerIdle
	}
}

// StartReply quotes the mirrored message id. Any edit in progress is
// abandoned.
func (c *Composer) StartReply(id string) error {
	quote, err := c.ctrl.ReplyTo(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ComposerSubmitting {
		return ErrBusy
	}
	if c.editing != "" {
		c.editing = ""
		c.draft = ""
	}
	c.replyTo = quote
	c.settleLocked()
	return nil
}

// ClearReply drops the reply target.
func (c *Composer) ClearReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyTo = nil
	if c.state != ComposerSubmitting {
		c.settleLocked()
	}
}

// StartEdit loads one of the current user's messages into the draft. The
// reply target is cleared.
func (c *Composer) StartEdit(ctx context.Context, id string) error {
	msg, err := c.ctrl.authorize(ctx, "edit", id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ComposerSubmitting {
		return ErrBusy
	}
	c.editing = msg.ID
	c.draft = msg.Text
	c.replyTo = nil
	c.state = ComposerEditing
	return nil
}

// Cancel discards the draft, reply target and edit without writing
// anything.
func (c *Composer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ComposerSubmitting {
		return
	}
	c.resetLocked()
}

func (c *Composer) resetLocked() {
	c.draft = ""
	c.replyTo = nil
	c.editing = ""
	c.state = ComposerIdle
}

// Submit posts the draft, or saves the edit when editing. On success the
// composer returns to idle and the affected message id is returned. On
// failure the draft is kept and the composer returns to its prior state.
func (c *Composer) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state == ComposerSubmitting {
		c.mu.Unlock()
		return "", ErrBusy
	}
	draft, editing := c.draft, c.editing
	var replyTo *types.ReplySnapshot
	if c.replyTo != nil {
		quoted := *c.replyTo
		replyTo = &quoted
	}
	c.resume = c.state
	c.state = ComposerSubmitting
	c.mu.Unlock()

	var (
		id  string
		err error
	)
	if editing != "" {
		id = editing
		err = c.ctrl.Edit(ctx, editing, draft)
	} else {
		id, err = c.ctrl.Compose(ctx, draft, replyTo)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = c.resume
		if c.state == ComposerIdle && editing == "" {
			c.settleLocked()
		}
		return "", err
	}
	c.resetLocked()
	return id, nil
}
