package types

import (
	"sort"
	"time"
)

// MessagesCollection is the collection holding lounge messages.
const MessagesCollection = "messages"

// Message is a lounge chat message.
type Message struct {
	ID           string         `json:"-"`
	Text         string         `json:"text"`
	AuthorID     string         `json:"userId"`
	AuthorName   string         `json:"userName"`
	AuthorAvatar *string        `json:"userPhoto,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	IsEdited     bool           `json:"isEdited"`
	ReplyTo      *ReplySnapshot `json:"replyTo,omitempty"`
	Reactions    Reactions      `json:"reactions"`
}

func (m Message) Key() string       { return m.ID }
func (m *Message) SetKey(id string) { m.ID = id }

// ReplySnapshot is a copy of the replied-to message taken when the reply
// was composed. It is never refreshed from the original.
type ReplySnapshot struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	AuthorName string `json:"userName"`
}

// Quote captures the reply snapshot for m.
func (m Message) Quote() ReplySnapshot {
	return ReplySnapshot{ID: m.ID, Text: m.Text, AuthorName: m.AuthorName}
}

// Reactions maps a reaction symbol to the users who applied it.
// A missing symbol is the same as an empty set.
type Reactions map[string][]string

// Has reports whether user reacted with symbol.
func (r Reactions) Has(symbol, user string) bool {
	for _, id := range r[symbol] {
		if id == user {
			return true
		}
	}
	return false
}

// Count returns the number of users that reacted with symbol.
func (r Reactions) Count(symbol string) int {
	return len(r[symbol])
}

// Symbols returns the symbols with at least one reaction, sorted.
func (r Reactions) Symbols() []string {
	out := make([]string, 0, len(r))
	for symbol, users := range r {
		if len(users) == 0 {
			continue
		}
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Toggle returns a copy of r with user added to symbol's set, or removed
// when already present. The receiver is not modified. Symbols left with no
// users are dropped.
func (r Reactions) Toggle(symbol, user string) Reactions {
	out := make(Reactions, len(r)+1)
	for key, users := range r {
		if len(users) == 0 {
			continue
		}
		out[key] = append([]string(nil), users...)
	}

	users := out[symbol]
	next := make([]string, 0, len(users)+1)
	found := false
	for _, id := range users {
		if id == user {
			found = true
			continue
		}
		next = append(next, id)
	}
	if !found {
		next = append(next, user)
	}
	if len(next) == 0 {
		delete(out, symbol)
	} else {
		out[symbol] = next
	}
	return out
}

// Normalize drops duplicate and empty user ids so a user appears at most
// once per symbol.
func (r Reactions) Normalize() Reactions {
	out := make(Reactions, len(r))
	for symbol, users := range r {
		if symbol == "" {
			continue
		}
		seen := make(map[string]struct{}, len(users))
		cleaned := make([]string, 0, len(users))
		for _, id := range users {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			cleaned = append(cleaned, id)
		}
		if len(cleaned) > 0 {
			out[symbol] = cleaned
		}
	}
	return out
}

// ToFields converts reactions into the document field form.
func (r Reactions) ToFields() map[string]any {
	out := make(map[string]any, len(r))
	for symbol, users := range r {
		list := make([]any, len(users))
		for i, id := range users {
			list[i] = id
		}
		out[symbol] = list
	}
	return out
}
