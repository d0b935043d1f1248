package command

import (
	"encoding/json"
	"fmt"

	"github.com/monsters-club/lounge/internal/auth"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
)

type sessionResult struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// NewRegisterCmd creates the register command.
func NewRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			name, _ := cmd.Flags().GetString("name")
			password, err := readPassword(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			session, err := ctx.Auth.Register(cmd.Context(), args[0], password, name)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Sessions.Save(session); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(sessionResult{UserID: session.UserID, Email: session.Email, Name: name})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s (%s)\n", session.Email, session.UserID)
			return nil
		},
	}

	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	return cmd
}

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			password, err := readPassword(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			session, err := ctx.Auth.SignIn(cmd.Context(), args[0], password)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Sessions.Save(session); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(sessionResult{UserID: session.UserID, Email: session.Email})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.Email)
			return nil
		},
	}

	cmd.Flags().String("password", "", "password (prompted when omitted)")
	return cmd
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := sessionStore()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := sessions.Clear(); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			session, err := ctx.Sessions.Load()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			profile, err := ctx.Auth.Profile(cmd.Context(), session.UserID)
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("load profile: %w", err))
			}
			return writeProfile(cmd, ctx, session.UserID, profile)
		},
	}
}

func writeProfile(cmd *cobra.Command, ctx *CommandContext, uid string, profile types.UserProfile) error {
	if ctx.JSONMode {
		payload := map[string]any{
			"uid":       uid,
			"email":     profile.Email,
			"name":      profile.Name,
			"photo_url": profile.PhotoURL,
			"role":      profile.Role,
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(payload)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s <%s>\n", boldLabel(displayName(profile.Name)), profile.Email)
	fmt.Fprintf(out, "  uid:   %s\n", uid)
	fmt.Fprintf(out, "  role:  %s\n", profile.Role)
	fmt.Fprintf(out, "  photo: %s\n", optionalString(profile.PhotoURL))
	return nil
}

// NewProfileCmd creates the profile command.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update your display name or photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			session, err := ctx.Sessions.Load()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			var update auth.ProfileUpdate
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				update.Name = &name
			}
			if cmd.Flags().Changed("photo") {
				photo, _ := cmd.Flags().GetString("photo")
				update.PhotoURL = &photo
			}

			profile, err := ctx.Auth.UpdateProfile(cmd.Context(), session.UserID, update)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"uid":       session.UserID,
					"name":      profile.Name,
					"photo_url": profile.PhotoURL,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile: %s (photo %s)\n", displayName(profile.Name), optionalString(profile.PhotoURL))
			return nil
		},
	}

	cmd.Flags().String("name", "", "new display name")
	cmd.Flags().String("photo", "", "photo URL (empty to clear)")
	return cmd
}

func displayName(name string) string {
	if name == "" {
		return "(no name)"
	}
	return name
}
