package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/output"
)

var notificationCmd = &cobra.Command{
	Use:     "notification",
	Aliases: []string{"notifications", "inbox"},
	Short:   "Read the acting user's notifications",
}

var notificationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return notificationListRun()
	},
}

var notificationReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return notificationReadRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(notificationCmd)
	notificationCmd.AddCommand(notificationListCmd)
	notificationCmd.AddCommand(notificationReadCmd)
}

func notificationListRun() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	list, err := a.issues.Notifications(ctx, actor)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("No notifications.")
		return nil
	}

	table := ui.Table([]string{"ID", "", "Message", "Received"})
	for _, n := range list {
		mark := output.Yellow("*")
		if n.Read {
			mark = ""
		}
		_ = table.Append([]string{
			n.ID,
			mark,
			n.Message,
			n.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}

func notificationReadRun(id string) error {
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
		ui.DryRunMsg("Would mark notification %s as read", id)
		return nil
	}

	if err := a.issues.MarkNotificationRead(ctx, id, actor); err != nil {
		return err
	}
	ui.Success("Marked %s as read", output.Cyan(shortID(id)))
	return nil
}
