package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/monsters-club/lounge/internal/cms"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
)

// contentField maps a command flag onto a document field path.
type contentField struct {
	flag  string
	path  string
	usage string
	list  bool
}

// contentGroup describes the commands for one content collection.
type contentGroup[T any] struct {
	use     string
	short   string
	kind    cms.Kind[T]
	fields  []contentField
	summary func(T) string
	// filter narrows ls output from its own flags.
	filter     func(cmd *cobra.Command, items []T) ([]T, error)
	filterArgs func(cmd *cobra.Command)
	extra      func(group contentGroup[T]) []*cobra.Command
}

func contentCommands() []*cobra.Command {
	return []*cobra.Command{
		newContentCmd(contentGroup[types.TeamMember]{
			use:   "team",
			short: "Manage the board members shown on the team page",
			kind:  cms.Team,
			fields: []contentField{
				{flag: "name", path: "name", usage: "member name"},
				{flag: "position", path: "position", usage: "board position"},
				{flag: "image", path: "image", usage: "photo url"},
				{flag: "facebook", path: "social.facebook", usage: "facebook url"},
				{flag: "twitter", path: "social.twitter", usage: "twitter url"},
				{flag: "linkedin", path: "social.linkedin", usage: "linkedin url"},
				{flag: "github", path: "social.github", usage: "github url"},
			},
			summary: func(m types.TeamMember) string {
				return joinSummary(m.Name, m.Position)
			},
		}),
		newContentCmd(contentGroup[types.Event]{
			use:   "events",
			short: "Manage club events",
			kind:  cms.Events,
			fields: []contentField{
				{flag: "title", path: "title", usage: "event title"},
				{flag: "description", path: "description", usage: "event description"},
				{flag: "date", path: "date", usage: "event date"},
				{flag: "location", path: "location", usage: "event location"},
				{flag: "attendees", path: "attendees", usage: "expected attendees"},
				{flag: "image", path: "image", usage: "cover image url"},
				{flag: "status", path: "status", usage: "upcoming or past"},
			},
			summary: func(e types.Event) string {
				return joinSummary(e.Title, e.Date, string(e.Status))
			},
			filterArgs: func(cmd *cobra.Command) {
				cmd.Flags().String("status", "", "only show upcoming or past events")
			},
			filter: func(cmd *cobra.Command, events []types.Event) ([]types.Event, error) {
				status, _ := cmd.Flags().GetString("status")
				switch types.EventStatus(status) {
				case "":
					return events, nil
				case types.EventUpcoming, types.EventPast:
					return cms.ByStatus(events, types.EventStatus(status)), nil
				default:
					return nil, fmt.Errorf("unknown event status %q", status)
				}
			},
		}),
		newContentCmd(contentGroup[types.Competition]{
			use:   "competitions",
			short: "Manage competitions",
			kind:  cms.Competitions,
			fields: []contentField{
				{flag: "title", path: "title", usage: "competition title"},
				{flag: "description", path: "description", usage: "competition description"},
				{flag: "status", path: "status", usage: "free-form status"},
				{flag: "image", path: "image", usage: "image url"},
			},
			summary: func(c types.Competition) string {
				return joinSummary(c.Title, c.Status)
			},
		}),
		newContentCmd(contentGroup[types.Achievement]{
			use:   "achievements",
			short: "Manage achievements",
			kind:  cms.Achievements,
			fields: []contentField{
				{flag: "title", path: "title", usage: "achievement title"},
				{flag: "description", path: "description", usage: "achievement description"},
				{flag: "date", path: "date", usage: "achievement date"},
				{flag: "image", path: "image", usage: "image url"},
			},
			summary: func(a types.Achievement) string {
				return joinSummary(a.Title, a.Date)
			},
		}),
		newContentCmd(contentGroup[types.Trip]{
			use:   "trips",
			short: "Manage trips and their galleries",
			kind:  cms.Trips,
			fields: []contentField{
				{flag: "title", path: "title", usage: "trip title"},
				{flag: "description", path: "description", usage: "trip description"},
				{flag: "date", path: "date", usage: "trip date"},
				{flag: "location", path: "location", usage: "trip location"},
				{flag: "image", path: "images", usage: "gallery image url (repeatable)", list: true},
			},
			summary: func(t types.Trip) string {
				return joinSummary(t.Title, t.Date, t.Location, fmt.Sprintf("%d images", len(t.Images)))
			},
			extra: tripImageCommands,
		}),
		newContentCmd(contentGroup[types.Slide]{
			use:   "carousel",
			short: "Manage home page carousel slides",
			kind:  cms.Carousel,
			fields: []contentField{
				{flag: "image", path: "image", usage: "slide image url"},
				{flag: "title", path: "title", usage: "slide title"},
				{flag: "subtitle", path: "subtitle", usage: "slide subtitle"},
			},
			summary: func(s types.Slide) string {
				if s.Title == "" {
					return s.Image
				}
				return joinSummary(s.Title, s.Subtitle)
			},
		}),
		newContentCmd(contentGroup[types.Member]{
			use:   "members",
			short: "Manage committee members",
			kind:  cms.Members,
			fields: []contentField{
				{flag: "name", path: "name", usage: "member name"},
				{flag: "committee", path: "committee", usage: "hr, pr, creativity, organization, media or activity"},
				{flag: "image", path: "image", usage: "photo url"},
			},
			summary: func(m types.Member) string {
				return joinSummary(m.Name, string(m.Committee))
			},
			filterArgs: func(cmd *cobra.Command) {
				cmd.Flags().String("committee", "", "only show one committee")
			},
			filter: func(cmd *cobra.Command, members []types.Member) ([]types.Member, error) {
				committee, _ := cmd.Flags().GetString("committee")
				if committee == "" {
					return members, nil
				}
				c := types.Committee(committee)
				if !c.Valid() {
					return nil, fmt.Errorf("unknown committee %q", committee)
				}
				return cms.ByCommittee(members, c), nil
			},
		}),
	}
}

func newContentCmd[T any](group contentGroup[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   group.use,
		Short: group.short,
	}
	cmd.AddCommand(
		contentListCmd(group),
		contentAddCmd(group),
		contentUpdateCmd(group),
		contentRemoveCmd(group),
	)
	if group.extra != nil {
		cmd.AddCommand(group.extra(group)...)
	}
	return cmd
}

// openManager binds the collection and waits for its first snapshot.
func openManager[T any](ctx *CommandContext, parent context.Context, kind cms.Kind[T]) (*cms.Manager[T], error) {
	mgr, err := cms.Open(parent, ctx.Store, kind, ctx.Identity(), live.WithLogger(ctx.Logger))
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(parent, readyTimeout)
	defer cancel()
	if err := mgr.Wait(waitCtx, func([]T) bool { return true }); err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("load %s: %w", kind.Collection, err)
	}
	return mgr, nil
}

// resolveItem finds an item by full id or unique suffix.
func resolveItem[T any](mgr *cms.Manager[T], kind cms.Kind[T], ref string) (T, error) {
	items := mgr.List()
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = kind.Codec.ID(item)
	}
	var zero T
	id, err := core.ResolveID(ids, stripHash(ref))
	if err != nil {
		return zero, err
	}
	item, ok := mgr.Find(id)
	if !ok {
		return zero, fmt.Errorf("%s %s not found", kind.Collection, id)
	}
	return item, nil
}

// itemFields returns the encoded item with its id added.
func itemFields[T any](kind cms.Kind[T], item T) (types.Fields, error) {
	fields, err := kind.Codec.Encode(item)
	if err != nil {
		return nil, err
	}
	fields["id"] = kind.Codec.ID(item)
	return fields, nil
}

func contentListCmd[T any](group contentGroup[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List " + group.kind.Collection,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			mgr, err := openManager(ctx, cmd.Context(), group.kind)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer mgr.Close()

			items := mgr.List()
			if group.filter != nil {
				if items, err = group.filter(cmd, items); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			out := cmd.OutOrStdout()
			if ctx.JSONMode {
				payload := make([]types.Fields, 0, len(items))
				for _, item := range items {
					fields, err := itemFields(group.kind, item)
					if err != nil {
						return writeCommandError(cmd, err)
					}
					payload = append(payload, fields)
				}
				return json.NewEncoder(out).Encode(payload)
			}

			if len(items) == 0 {
				fmt.Fprintf(out, "No %s yet\n", group.kind.Collection)
				return nil
			}
			idLength := core.DisplayLength(len(mgr.List()))
			for _, item := range items {
				short := core.ShortID(group.kind.Codec.ID(item), idLength)
				fmt.Fprintf(out, "%s %s\n", dimStyle.Render("["+short+"]"), group.summary(item))
			}
			return nil
		},
	}
	if group.filterArgs != nil {
		group.filterArgs(cmd)
	}
	return cmd
}

func contentAddCmd[T any](group contentGroup[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add to " + group.kind.Collection,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			fields := types.Fields{}
			if err := applyFieldFlags(cmd, group.fields, fields, false); err != nil {
				return writeCommandError(cmd, err)
			}
			value, err := group.kind.Codec.Decode(types.Document{Fields: fields})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			mgr, err := openManager(ctx, cmd.Context(), group.kind)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer mgr.Close()

			id, err := mgr.Add(cmd.Context(), value)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added to %s: %s\n", group.kind.Collection, id)
			return nil
		},
	}
	registerFieldFlags(cmd, group.fields)
	return cmd
}

func contentUpdateCmd[T any](group contentGroup[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an item in " + group.kind.Collection,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			mgr, err := openManager(ctx, cmd.Context(), group.kind)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer mgr.Close()

			existing, err := resolveItem(mgr, group.kind, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			id := group.kind.Codec.ID(existing)
			fields, err := group.kind.Codec.Encode(existing)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := applyFieldFlags(cmd, group.fields, fields, true); err != nil {
				return writeCommandError(cmd, err)
			}
			value, err := group.kind.Codec.Decode(types.Document{ID: id, Fields: fields})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := mgr.Update(cmd.Context(), id, value); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", group.kind.Collection, id)
			return nil
		},
	}
	registerFieldFlags(cmd, group.fields)
	return cmd
}

func contentRemoveCmd[T any](group contentGroup[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an item from " + group.kind.Collection,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			mgr, err := openManager(ctx, cmd.Context(), group.kind)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer mgr.Close()

			item, err := resolveItem(mgr, group.kind, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			id := group.kind.Codec.ID(item)

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Remove %q from %s?", group.summary(item), group.kind.Collection))
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}
			if err := mgr.Remove(cmd.Context(), id); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"id": id, "status": "removed"})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed from %s: %s\n", group.kind.Collection, id)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "skip confirmation")
	return cmd
}

func tripImageCommands(group contentGroup[types.Trip]) []*cobra.Command {
	addImage := &cobra.Command{
		Use:   "add-image <id> <url>",
		Short: "Append an image to a trip gallery",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTrip(cmd, group, args[0], func(trip types.Trip) (types.Trip, error) {
				return cms.AddImage(trip, args[1]), nil
			})
		},
	}
	removeImage := &cobra.Command{
		Use:   "rm-image <id> <index>",
		Short: "Remove a gallery image by its position (from 0)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("invalid image index %q", args[1]))
			}
			return editTrip(cmd, group, args[0], func(trip types.Trip) (types.Trip, error) {
				return cms.RemoveImage(trip, index)
			})
		},
	}
	return []*cobra.Command{addImage, removeImage}
}

func editTrip(cmd *cobra.Command, group contentGroup[types.Trip], ref string, edit func(types.Trip) (types.Trip, error)) error {
	ctx, err := GetContext(cmd)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	defer ctx.Close()

	mgr, err := openManager(ctx, cmd.Context(), group.kind)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	defer mgr.Close()

	trip, err := resolveItem(mgr, group.kind, ref)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	updated, err := edit(trip)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	if err := mgr.Update(cmd.Context(), trip.ID, updated); err != nil {
		return writeCommandError(cmd, err)
	}

	if ctx.JSONMode {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"id": trip.ID, "images": updated.Images})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d images\n", trip.Title, len(updated.Images))
	return nil
}

func registerFieldFlags(cmd *cobra.Command, fields []contentField) {
	for _, field := range fields {
		if field.list {
			cmd.Flags().StringArray(field.flag, nil, field.usage)
			continue
		}
		cmd.Flags().String(field.flag, "", field.usage)
	}
}

// applyFieldFlags writes flag values into fields. With onlyChanged, flags
// the user did not pass leave the existing value alone.
func applyFieldFlags(cmd *cobra.Command, specs []contentField, fields types.Fields, onlyChanged bool) error {
	for _, field := range specs {
		if onlyChanged && !cmd.Flags().Changed(field.flag) {
			continue
		}
		var value any
		if field.list {
			values, err := cmd.Flags().GetStringArray(field.flag)
			if err != nil {
				return err
			}
			list := make([]any, 0, len(values))
			for _, v := range values {
				if v = strings.TrimSpace(v); v != "" {
					list = append(list, v)
				}
			}
			value = list
		} else {
			v, err := cmd.Flags().GetString(field.flag)
			if err != nil {
				return err
			}
			value = strings.TrimSpace(v)
		}
		setPath(fields, field.path, value)
	}
	return nil
}

// setPath assigns value at a dotted path, creating nested objects.
func setPath(fields types.Fields, path string, value any) {
	parts := strings.Split(path, ".")
	current := map[string]any(fields)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func joinSummary(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " · ")
}
