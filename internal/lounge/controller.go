// Package lounge implements the chat stream: composing, editing, deleting,
// replying to and reacting on messages mirrored from the "messages"
// collection.
package lounge

import (
	"context"
	"strings"
	"time"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/metrics"
	"github.com/monsters-club/lounge/internal/types"
	"go.uber.org/zap"
)

// DefaultFallbackName is the author name used when the identity has none.
const DefaultFallbackName = "Monster"

// QuickReactions are offered on every message.
var QuickReactions = []string{"👍", "❤️"}

// Emojis is the composer's emoji picker.
var Emojis = []string{"👍", "❤️", "😂", "🔥", "🚀", "🎉", "😍", "🙄", "😢", "✨", "👏", "🙌", "💯", "🤔", "😎"}

// MessagesQuery is the stream projection: every message, oldest first.
func MessagesQuery() docstore.Query {
	return docstore.Collection(types.MessagesCollection).OrderBy("createdAt", false)
}

// Controller runs chat operations over one live binding.
type Controller struct {
	binding  *live.Binding[types.Message]
	identity IdentitySource
	logger   *zap.Logger

	now             func() time.Time
	fallbackName    string
	atomicReactions bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithFallbackName sets the author name used when the identity has none.
func WithFallbackName(name string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(name) != "" {
			c.fallbackName = name
		}
	}
}

// WithAtomicReactions toggles reactions with a store-side atomic toggle
// when the store supports one, instead of rewriting the whole map.
func WithAtomicReactions(enabled bool) Option {
	return func(c *Controller) {
		c.atomicReactions = enabled
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open binds to the message stream in store.
func Open(ctx context.Context, store docstore.Store, identity IdentitySource, opts ...Option) (*Controller, error) {
	c := newController(identity, opts)
	binding, err := live.Open(ctx, store, MessagesQuery(), types.MessageCodec, live.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.binding = binding
	return c, nil
}

func newController(identity IdentitySource, opts []Option) *Controller {
	c := &Controller{
		identity:     identity,
		logger:       zap.NewNop(),
		now:          time.Now,
		fallbackName: DefaultFallbackName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) current(ctx context.Context) (*types.Identity, error) {
	if c.identity == nil {
		return nil, ErrSignedOut
	}
	id, err := c.identity.Current(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil || id.ID == "" {
		return nil, ErrSignedOut
	}
	return id, nil
}

func (c *Controller) record(op string, err error) {
	metrics.ChatOpsTotal.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Debug("chat operation failed", zap.String("op", op), zap.Error(err))
	}
}

// Compose posts text as the current user, optionally quoting replyTo.
// The message is visible in Messages only once the store confirms it.
func (c *Controller) Compose(ctx context.Context, text string, replyTo *types.ReplySnapshot) (id string, err error) {
	defer func() { c.record("compose", err) }()

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	who, err := c.current(ctx)
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(who.DisplayName)
	if name == "" {
		name = c.fallbackName
	}
	msg := types.Message{
		Text:         text,
		AuthorID:     who.ID,
		AuthorName:   name,
		AuthorAvatar: who.AvatarURL,
		CreatedAt:    c.now().UTC(),
		Reactions:    types.Reactions{},
	}
	if replyTo != nil {
		quoted := *replyTo
		msg.ReplyTo = &quoted
	}
	return c.binding.Insert(ctx, msg)
}

// authorize returns the mirrored message id when the current user wrote it.
func (c *Controller) authorize(ctx context.Context, op, id string) (types.Message, error) {
	msg, ok := c.binding.Find(id)
	if !ok {
		return types.Message{}, ErrMessageNotFound
	}
	who, err := c.current(ctx)
	if err != nil {
		return types.Message{}, err
	}
	if msg.AuthorID != who.ID {
		return types.Message{}, &AuthorizationError{Op: op, MessageID: id, Actor: who.ID, Author: msg.AuthorID}
	}
	return msg, nil
}

// Edit replaces the text of one of the current user's messages and marks
// it edited.
func (c *Controller) Edit(ctx context.Context, id, text string) (err error) {
	defer func() { c.record("edit", err) }()

	if _, err := c.authorize(ctx, "edit", id); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return c.binding.Update(ctx, id, types.Fields{"text": text, "isEdited": true})
}

// Delete permanently removes one of the current user's messages.
func (c *Controller) Delete(ctx context.Context, id string) (err error) {
	defer func() { c.record("delete", err) }()

	if _, err := c.authorize(ctx, "delete", id); err != nil {
		return err
	}
	return c.binding.Remove(ctx, id)
}

// ToggleReaction adds the current user to symbol's set on the message, or
// removes them if already present. Anyone signed in may react.
func (c *Controller) ToggleReaction(ctx context.Context, id, symbol string) (err error) {
	defer func() { c.record("react", err) }()

	if strings.TrimSpace(symbol) == "" {
		return ErrEmptyReaction
	}
	msg, ok := c.binding.Find(id)
	if !ok {
		return ErrMessageNotFound
	}
	who, err := c.current(ctx)
	if err != nil {
		return err
	}

	if c.atomicReactions && c.binding.CanToggle() {
		return c.binding.Toggle(ctx, id, "reactions", symbol, who.ID)
	}
	// The whole map is written from the mirrored copy, so a concurrent
	// toggle by another user on an unconfirmed snapshot can be lost.
	next := msg.Reactions.Toggle(symbol, who.ID)
	return c.binding.Update(ctx, id, types.Fields{"reactions": next.ToFields()})
}

// ReplyTo captures a quote of the mirrored message for a reply.
func (c *Controller) ReplyTo(id string) (*types.ReplySnapshot, error) {
	msg, ok := c.binding.Find(id)
	if !ok {
		return nil, ErrMessageNotFound
	}
	quote := msg.Quote()
	return &quote, nil
}

// Find returns the mirrored message with id.
func (c *Controller) Find(id string) (types.Message, bool) {
	return c.binding.Find(id)
}

// Messages returns the mirrored stream, oldest first.
func (c *Controller) Messages() []types.Message {
	return c.binding.List()
}

// Identity returns the acting user, or nil when signed out.
func (c *Controller) Identity(ctx context.Context) *types.Identity {
	who, err := c.current(ctx)
	if err != nil {
		return nil
	}
	return who
}

// Status returns the binding status.
func (c *Controller) Status() live.Status { return c.binding.Status() }

// Err returns the subscription error while errored.
func (c *Controller) Err() error { return c.binding.Err() }

// Changes signals after each applied snapshot or status change.
func (c *Controller) Changes() <-chan struct{} { return c.binding.Changes() }

// Wait blocks until pred holds for the stream.
func (c *Controller) Wait(ctx context.Context, pred func([]types.Message) bool) error {
	return c.binding.Wait(ctx, pred)
}

// Retry re-subscribes after a subscription error.
func (c *Controller) Retry(ctx context.Context) error { return c.binding.Retry(ctx) }

// Close releases the binding.
func (c *Controller) Close() error { return c.binding.Close() }
