package chat

import (
	"github.com/gen2brain/beeep"
	"github.com/monsters-club/lounge/internal/types"
)

const notificationLength = 100

// Notify raises a desktop notification for msg. title names the lounge.
func Notify(msg types.Message, title string) error {
	heading := msg.AuthorName
	if title != "" {
		heading = title + " · " + heading
	}
	return beeep.Notify(heading, truncate(msg.Text, notificationLength), "")
}

// newMessagesFrom returns the messages not in seen that someone other
// than viewer wrote, and records every id in seen.
func newMessagesFrom(messages []types.Message, seen map[string]struct{}, viewer string) []types.Message {
	var fresh []types.Message
	for _, msg := range messages {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		if msg.AuthorID != viewer {
			fresh = append(fresh, msg)
		}
	}
	return fresh
}
