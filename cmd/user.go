package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
	userZone     string
	userListRole string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user account (ADMIN)",
	Example: `  civic user add --name "Asha" --email asha@example.com --password secret1
  civic user add --name "Admin" --email admin@example.com --password secret1 --role ADMIN`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun()
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts (ADMIN)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)

	userAddCmd.Flags().StringVar(&userName, "name", "", "Full name (required)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Password, at least 6 characters (required)")
	userAddCmd.Flags().StringVar(&userRole, "role", "CITIZEN", "Role: CITIZEN, REGIONAL_ADMIN, ADMIN")
	userAddCmd.Flags().StringVar(&userZone, "zone", "", "Zone for a REGIONAL_ADMIN")

	userListCmd.Flags().StringVar(&userListRole, "role", "", "Filter by role")
}

func userAddRun() error {
	role, err := models.ParseRole(userRole)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create %s user %s", role, userEmail)
		return nil
	}

	u, err := a.accounts.CreateUser(ctx, accounts.UserRequest{
		Name:     userName,
		Email:    userEmail,
		Password: userPassword,
		Role:     role,
		Zone:     models.Zone(userZone),
	}, actor)
	if err != nil {
		return err
	}

	ui.Success("Created %s %s (%s)", u.Role, output.Cyan(u.Email), shortID(u.ID))
	return nil
}

func userListRun() error {
	var role models.Role
	if userListRole != "" {
		r, err := models.ParseRole(userListRole)
		if err != nil {
			return err
		}
		role = r
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	users, err := a.accounts.ListUsers(ctx, role, actor)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Email", "Role", "Zone", "Created"})
	for _, u := range users {
		z := "-"
		if u.Zone != "" {
			z = output.ZoneColor(string(u.Zone))
		}
		_ = table.Append([]string{
			shortID(u.ID),
			u.Name,
			u.Email,
			string(u.Role),
			z,
			u.CreatedAt.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}
