package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/monsters-club/lounge/internal/auth"
	"github.com/monsters-club/lounge/internal/cms"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage lounge users",
	}
	cmd.AddCommand(newUserListCmd(), newUserShowCmd(), newUserRoleCmd())
	return cmd
}

func openUsers(ctx *CommandContext, parent context.Context) (*live.Binding[types.UserProfile], error) {
	users, err := live.Open(parent, ctx.Store, docstore.Collection(auth.UsersCollection), types.ProfileCodec, live.WithLogger(ctx.Logger))
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(parent, readyTimeout)
	defer cancel()
	if err := users.Ready(waitCtx); err != nil {
		_ = users.Close()
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func hasAdmin(users []types.UserProfile) bool {
	for _, u := range users {
		if u.Role == types.RoleAdmin {
			return true
		}
	}
	return false
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			users, err := openUsers(ctx, cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer users.Close()

			list := users.List()
			out := cmd.OutOrStdout()
			if ctx.JSONMode {
				payload := make([]map[string]any, 0, len(list))
				for _, u := range list {
					payload = append(payload, map[string]any{
						"uid":   u.ID,
						"email": u.Email,
						"name":  u.Name,
						"role":  u.Role,
					})
				}
				return json.NewEncoder(out).Encode(payload)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No users yet")
				return nil
			}
			for _, u := range list {
				fmt.Fprintf(out, "%s %s <%s> %s\n", dimStyle.Render(u.ID), displayName(u.Name), u.Email, dimStyle.Render(string(u.Role)))
			}
			return nil
		},
	}
}

func resolveUser(users []types.UserProfile, ref string) (types.UserProfile, error) {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	uid, err := core.ResolveID(ids, ref)
	if err != nil {
		return types.UserProfile{}, err
	}
	for _, u := range users {
		if u.ID == uid {
			return u, nil
		}
	}
	return types.UserProfile{}, fmt.Errorf("user %s: %w", uid, docstore.ErrNotFound)
}

func newUserShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <uid>",
		Short: "Show a user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if _, err := ctx.RequireUser(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			users, err := openUsers(ctx, cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer users.Close()

			profile, err := resolveUser(users.List(), args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return writeProfile(cmd, ctx, profile.ID, profile)
		},
	}
}

func newUserRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <uid> <user|admin>",
		Short: "Change a user's role",
		Long: `Change a user's role. Only admins may change roles, except that the
first admin can be appointed by any signed-in user.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			role := types.Role(args[1])
			if !role.Valid() {
				return writeCommandError(cmd, auth.ErrInvalidRole)
			}

			who, err := ctx.RequireUser(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}

			users, err := openUsers(ctx, cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer users.Close()

			list := users.List()
			bootstrap := !hasAdmin(list)
			if !who.IsAdmin() && !bootstrap {
				return writeCommandError(cmd, cms.ErrNotAdmin)
			}

			target, err := resolveUser(list, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			uid := target.ID
			if err := ctx.Auth.SetRole(cmd.Context(), uid, role); err != nil {
				return writeCommandError(cmd, err)
			}
			ctx.Logger.Info("role changed", zap.String("uid", uid), zap.String("role", string(role)), zap.String("by", who.ID), zap.Bool("bootstrap", bootstrap))

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"uid": uid, "role": role})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", uid, role)
			return nil
		},
	}
}
