package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var officialCmd = &cobra.Command{
	Use:     "official",
	Aliases: []string{"officials"},
	Short:   "Manage regional officials (ADMIN)",
}

var officialAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create the regional official for a zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		return officialAddRun()
	},
}

var officialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List regional officials with zone issue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return officialListRun()
	},
}

var officialRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove a regional official, unassigning their issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return officialRemoveRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(officialCmd)
	officialCmd.AddCommand(officialAddCmd)
	officialCmd.AddCommand(officialListCmd)
	officialCmd.AddCommand(officialRemoveCmd)

	officialAddCmd.Flags().StringVar(&userName, "name", "", "Full name (required)")
	officialAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	officialAddCmd.Flags().StringVar(&userPassword, "password", "", "Password, at least 6 characters (required)")
	officialAddCmd.Flags().StringVar(&userZone, "zone", "", "Zone: NORTH, SOUTH, EAST, WEST, CENTRAL (required)")
}

func officialAddRun() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	z, err := models.ParseZone(userZone)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create regional official %s for %s", userEmail, z)
		return nil
	}

	o, err := a.accounts.CreateOfficial(ctx, accounts.UserRequest{
		Name:     userName,
		Email:    userEmail,
		Password: userPassword,
		Zone:     z,
	}, actor)
	if err != nil {
		return err
	}

	ui.Success("Created regional official %s for %s", output.Cyan(o.Email), output.ZoneColor(string(o.Zone)))
	ui.Info("%s", o.ZoneDescription)
	return nil
}

func officialListRun() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	officials, err := a.accounts.ListOfficials(ctx, actor)
	if err != nil {
		return err
	}
	if len(officials) == 0 {
		ui.Info("No regional officials.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Email", "Zone", "Total", "Pending", "Resolved"})
	for _, o := range officials {
		_ = table.Append([]string{
			shortID(o.ID),
			o.Name,
			o.Email,
			output.ZoneColor(string(o.Zone)),
			fmt.Sprintf("%d", o.TotalIssues),
			fmt.Sprintf("%d", o.PendingIssues),
			fmt.Sprintf("%d", o.ResolvedIssues),
		})
	}
	_ = table.Render()
	return nil
}

func officialRemoveRun(email string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	u, err := a.accounts.UserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Role != models.RoleRegionalAdmin {
		return apperr.InvalidTarget("%s is %s, not a regional official", u.Email, u.Role)
	}

	if dryRun {
		ui.DryRunMsg("Would remove regional official %s (%s) and unassign their issues", u.Email, u.Zone)
		return nil
	}

	n, err := a.accounts.RemoveOfficial(ctx, u.ID, actor)
	if err != nil {
		return err
	}

	ui.Success("Removed regional official %s", output.Cyan(u.Email))
	ui.Info("Unassigned %d issue(s); their zones are unchanged", n)
	return nil
}
