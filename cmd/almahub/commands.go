package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/almahub/backend/internal/identity"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/session"
)

func resolvedAs(uid string) func(session.Snapshot) bool {
	return func(s session.Snapshot) bool {
		return s.State == session.StateAuthenticatedResolved && s.User != nil && s.User.UID == uid
	}
}

func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func parseFields(raw string) (models.Document, error) {
	if raw == "" {
		return nil, nil
	}
	var fields models.Document
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid --fields JSON: %w", err)
	}
	return fields, nil
}

func printSnapshot(snap session.Snapshot) {
	printStatus("State", "%s", snap.State)
	if snap.User != nil {
		printStatus("Email", "%s", snap.User.Email)
		printStatus("UID", "%s", snap.User.UID)
	}
	if snap.Role != models.RoleUnset {
		printStatus("Role", "%s", snap.Role)
	}
	printStatus("Backend", "%s", snap.Reachability)
}

// --- register ---

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account and its profile",
	Long: `Create an account and its profile.

Examples:
  almahub register jan@example.edu --name "Jan Kowal"
  almahub register prof@example.edu --name "Prof. Nowak" --role teacher --fields '{"teacherId":"T-2024-001"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		name, _ := cmd.Flags().GetString("name")
		roleStr, _ := cmd.Flags().GetString("role")
		fieldsRaw, _ := cmd.Flags().GetString("fields")

		role, err := models.ParseRole(roleStr)
		if err != nil {
			return err
		}
		fields, err := parseFields(fieldsRaw)
		if err != nil {
			return err
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		// Role selection happens before the identity exists; the store picks
		// it up while resolving the new session.
		if err := app.store.StageRegistrationRole(role, fields); err != nil {
			return err
		}

		id, err := app.provider.SignUp(cmd.Context(), email, password, name)
		switch {
		case errors.Is(err, identity.ErrAccountExists):
			return fmt.Errorf("an account with %s already exists", email)
		case errors.Is(err, identity.ErrWeakCredential):
			return fmt.Errorf("password too weak: use at least 6 characters")
		case err != nil:
			return err
		}

		snap, err := app.waitFor(resolvedAs(id.UID))
		if err != nil {
			return err
		}

		printSuccess("Registered %s", email)
		printSnapshot(snap)
		return nil
	},
}

func init() {
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("role", string(models.DefaultRole), "account role (student, teacher, department)")
	registerCmd.Flags().String("fields", "", "extra profile fields as JSON")
	registerCmd.Flags().String("password", "", "password (prompted when omitted)")
}

// --- login ---

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and resolve the profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		id, err := app.provider.SignIn(cmd.Context(), email, password)
		switch {
		case errors.Is(err, identity.ErrNotFound), errors.Is(err, identity.ErrBadCredential):
			return fmt.Errorf("invalid email or password")
		case err != nil:
			return err
		}

		snap, err := app.waitFor(resolvedAs(id.UID))
		if err != nil {
			return err
		}

		printSuccess("Signed in as %s", email)
		printSnapshot(snap)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("password", "", "password (prompted when omitted)")
}

// --- logout ---

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		if app.store.Snapshot().State == session.StateUnauthenticated {
			fmt.Println("No active session.")
			return nil
		}

		if err := app.store.Logout(cmd.Context()); err != nil {
			return err
		}
		printSuccess("Signed out")
		return nil
	},
}

// --- whoami ---

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		snap := app.store.Snapshot()
		if snap.State == session.StateUnauthenticated {
			fmt.Println("Not signed in.")
			return nil
		}
		printSnapshot(snap)
		return nil
	},
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the signed-in profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile document as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		snap := app.store.Snapshot()
		if snap.State != session.StateAuthenticatedResolved {
			return fmt.Errorf("not signed in")
		}

		doc, err := app.store.FetchProfile(cmd.Context(), snap.User.UID)
		if err != nil {
			return err
		}
		if doc == nil {
			fmt.Println("No profile document.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == models.FieldUID || key == models.FieldRole {
			return fmt.Errorf("field %q cannot be set directly", key)
		}

		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		if _, err := app.store.UpdateProfile(cmd.Context(), models.Document{key: value}); err != nil {
			if errors.Is(err, session.ErrNotAuthenticated) {
				return fmt.Errorf("not signed in")
			}
			return err
		}

		printSuccess("Set %s = %s", key, value)
		if app.store.Snapshot().Reachability == session.ReachabilityOffline {
			printWarning("document store unreachable, change saved locally")
		}
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- role ---

var roleCmd = &cobra.Command{
	Use:   "role <role>",
	Short: "Change the account role",
	Long: `Change the account role.

Examples:
  almahub role teacher --fields '{"teacherId":"T-2024-001","department":"CS"}'
  almahub role student`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := models.ParseRole(args[0])
		if err != nil {
			return err
		}
		fieldsRaw, _ := cmd.Flags().GetString("fields")
		fields, err := parseFields(fieldsRaw)
		if err != nil {
			return err
		}

		app, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer app.shutdown()

		if _, err := app.store.UpdateRole(cmd.Context(), role, fields); err != nil {
			if errors.Is(err, session.ErrNotAuthenticated) {
				return fmt.Errorf("not signed in")
			}
			return err
		}

		printSuccess("Role changed to %s", role)
		return nil
	},
}

func init() {
	roleCmd.Flags().String("fields", "", "role-specific profile fields as JSON")
}
