package command

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/monsters-club/lounge/internal/chat"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchEvent is one line of watch --json output.
type watchEvent struct {
	Event   string       `json:"event"`
	Message *messageJSON `json:"message,omitempty"`
	ID      string       `json:"id,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream messages in real-time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			runCtx, stop := signalContext(cmd)
			defer stop()

			ctrl, err := ctx.OpenController(runCtx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctrl.Close()

			last, _ := cmd.Flags().GetInt("last")
			out := cmd.OutOrStdout()
			w := &streamWriter{out: out, json: ctx.JSONMode, seen: map[string]types.Message{}}
			if notify, _ := cmd.Flags().GetBool("notify"); notify {
				title := filepath.Base(ctx.Project.Root)
				var viewer string
				if who, _ := ctx.Identity().Current(runCtx); who != nil {
					viewer = who.ID
				}
				w.notify = func(msg types.Message) {
					if msg.AuthorID == viewer {
						return
					}
					if err := chat.Notify(msg, title); err != nil {
						ctx.Logger.Debug("notify", zap.Error(err))
					}
				}
			}

			initial := ctrl.Messages()
			for _, msg := range initial {
				w.seen[msg.ID] = msg
			}
			for _, msg := range lastN(initial, last) {
				w.emit("message", msg, len(initial))
			}
			if !ctx.JSONMode {
				fmt.Fprintln(out, "--- watching (Ctrl+C to stop) ---")
			}

			status := ctrl.Status()
			for {
				select {
				case <-runCtx.Done():
					return nil
				case _, ok := <-ctrl.Changes():
					if !ok {
						return nil
					}
				}

				if next := ctrl.Status(); next != status {
					status = next
					w.status(status, ctrl.Err())
				}
				w.diff(ctrl.Messages())
			}
		},
	}

	cmd.Flags().Int("last", 10, "show the last N messages before streaming")
	cmd.Flags().Bool("notify", false, "desktop notifications for messages from others")
	return cmd
}

// streamWriter prints the differences between successive snapshots.
type streamWriter struct {
	out    io.Writer
	json   bool
	seen   map[string]types.Message
	notify func(types.Message)
}

func (w *streamWriter) diff(messages []types.Message) {
	current := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		current[msg.ID] = struct{}{}
		prev, ok := w.seen[msg.ID]
		switch {
		case !ok:
			w.emit("message", msg, len(messages))
			if w.notify != nil {
				w.notify(msg)
			}
		case prev.Text != msg.Text || prev.IsEdited != msg.IsEdited:
			w.emit("edited", msg, len(messages))
		case formatReactionSummary(prev.Reactions) != formatReactionSummary(msg.Reactions):
			w.emit("reactions", msg, len(messages))
		}
		w.seen[msg.ID] = msg
	}
	for id := range w.seen {
		if _, ok := current[id]; ok {
			continue
		}
		delete(w.seen, id)
		if w.json {
			_ = json.NewEncoder(w.out).Encode(watchEvent{Event: "deleted", ID: id})
			continue
		}
		fmt.Fprintf(w.out, "%s\n", dimStyle.Render(fmt.Sprintf("[%s] deleted", core.ShortID(id, core.DisplayLength(len(messages))))))
	}
}

func (w *streamWriter) emit(event string, msg types.Message, count int) {
	if w.json {
		payload := toMessageJSON(msg)
		_ = json.NewEncoder(w.out).Encode(watchEvent{Event: event, Message: &payload})
		return
	}
	line := FormatMessage(msg, core.DisplayLength(count), time.Now())
	switch event {
	case "edited":
		line = dimStyle.Render("edited ") + line
	case "reactions":
		line = dimStyle.Render("reacted ") + line
	}
	fmt.Fprintln(w.out, line)
}

func (w *streamWriter) status(status live.Status, err error) {
	if w.json {
		event := watchEvent{Event: status.String()}
		if err != nil {
			event.Error = err.Error()
		}
		_ = json.NewEncoder(w.out).Encode(event)
		return
	}
	if err != nil {
		fmt.Fprintf(w.out, "--- %s: %v ---\n", status, err)
		return
	}
	fmt.Fprintf(w.out, "--- %s ---\n", status)
}
