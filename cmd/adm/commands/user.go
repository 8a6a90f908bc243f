// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"

	"github.com/spf13/cobra"
)

// UserCommands returns the operator account management commands
func UserCommands(userService *services.UserService, cfg *config.Config, logger *observability.Logger, databaseURL string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Operator account management commands",
		Long: `Operator account management commands for the feedback backend.

Available commands:
  list           - List all operator accounts
  create         - Create a new operator account
  reset-password - Reset the password for an account
  seed           - Seed default accounts when the users table is empty`,
	}

	userCmd.AddCommand(listCmd(userService, logger, databaseURL))
	userCmd.AddCommand(createCmd(userService, logger))
	userCmd.AddCommand(resetPasswordCmd(userService, logger))
	userCmd.AddCommand(seedCmd(userService, cfg, logger))

	return userCmd
}

// listCmd returns the list command
func listCmd(userService *services.UserService, logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all operator accounts",
		Long:  `List all operator accounts with their role and activation state.`,
		RunE:  runListUsers(userService, logger, databaseURL),
	}
}

// createCmd returns the create command
func createCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	var role string
	var name string

	cmd := &cobra.Command{
		Use:   "create [email]",
		Short: "Create a new operator account",
		Long:  `Create a new operator account. The password is prompted for securely.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runCreateUser(userService, logger, &role, &name),
	}

	cmd.Flags().StringVar(&role, "role", "founder", "Account role (admin, founder or ceo)")
	cmd.Flags().StringVar(&name, "name", "", "Display name shown in the admin console (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// resetPasswordCmd returns the reset-password command
func resetPasswordCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Reset the password for an operator account",
		Long:  `Reset the password for a specific account. If email is not provided, you will be prompted for it.`,
		RunE:  runResetPassword(userService, logger),
	}
}

// seedCmd returns the seed command
func seedCmd(userService *services.UserService, cfg *config.Config, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed default operator accounts",
		Long:  `Create one default account per role when the users table is empty. Does nothing otherwise.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			if err := userService.EnsureDefaultUsers(ctx, cfg.Auth.SeedDomain); err != nil {
				logger.Error(ctx, "Failed to seed default users", err, nil)
				return contextutils.WrapError(err, "failed to seed default users")
			}
			fmt.Println("Default operator accounts are in place")
			return nil
		},
	}
}

// runListUsers returns a function that lists all operator accounts
func runListUsers(userService *services.UserService, logger *observability.Logger, databaseURL string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Admin command diagnostics", map[string]interface{}{"config_file": os.Getenv("FEEDBACK_CONFIG_FILE"), "database_url": maskDatabaseURL(databaseURL)})

		users, err := userService.ListUsers(ctx)
		if err != nil {
			logger.Error(ctx, "Failed to get users", err, map[string]interface{}{})
			return contextutils.WrapError(err, "failed to get users")
		}

		if len(users) == 0 {
			fmt.Println("No operator accounts found")
			return nil
		}

		fmt.Printf("%-5s %-40s %-20s %-10s %-8s %-10s\n", "ID", "Email", "Name", "Role", "Active", "Created")
		fmt.Println(strings.Repeat("-", 100))

		for _, user := range users {
			active := "no"
			if user.IsActive {
				active = "yes"
			}
			fmt.Printf("%-5d %-40s %-20s %-10s %-8s %-10s\n",
				user.ID,
				user.Email,
				user.Name,
				user.Role,
				active,
				user.CreatedAt.Format("2006-01-02"),
			)
		}

		return nil
	}
}

// runCreateUser returns a function that creates an operator account
func runCreateUser(userService *services.UserService, logger *observability.Logger, role, name *string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		email := args[0]

		password, err := promptPassword("Enter password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		user, err := userService.CreateUser(ctx, email, *name, password, *role)
		if err != nil {
			logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"email": email, "role": *role})
			return contextutils.WrapErrorf(err, "failed to create account '%s'", email)
		}

		fmt.Printf("Created %s account '%s' (ID: %d)\n", user.Role, user.Email, user.ID)
		return nil
	}
}

// runResetPassword returns a function that resets an account password
func runResetPassword(userService *services.UserService, logger *observability.Logger) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		var email string
		if len(args) > 0 {
			email = args[0]
		} else {
			fmt.Print("Enter email: ")
			if _, err := fmt.Scanln(&email); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read email: %v", err)
			}
		}
		if email == "" {
			return contextutils.ErrorWithContextf("email is required")
		}

		newPassword, err := promptPassword("Enter new password: ")
		if err != nil {
			return err
		}
		confirmPassword, err := promptPassword("Confirm new password: ")
		if err != nil {
			return err
		}
		if newPassword != confirmPassword {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		user, err := userService.GetUserByEmail(ctx, email)
		if err != nil {
			logger.Error(ctx, "Failed to get user", err, map[string]interface{}{"email": email})
			return contextutils.WrapErrorf(err, "failed to get account '%s'", email)
		}

		if err := userService.UpdateUserPassword(ctx, user.ID, newPassword); err != nil {
			logger.Error(ctx, "Failed to update password", err, map[string]interface{}{"email": email, "user_id": user.ID})
			return contextutils.WrapErrorf(err, "failed to update password for '%s'", email)
		}

		fmt.Printf("Password successfully reset for '%s' (ID: %d)\n", email, user.ID)
		return nil
	}
}

// promptPassword reads a password from the terminal without echoing it
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
	}
	if len(passwordBytes) == 0 {
		return "", contextutils.ErrorWithContextf("password cannot be empty")
	}
	return string(passwordBytes), nil
}
