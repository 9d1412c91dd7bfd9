package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/authz"
	"github.com/joescharf/civic/internal/issues"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/store"
	"github.com/joescharf/civic/internal/zone"
)

// Flag variables for issue commands
var (
	issueTitle      string
	issueDesc       string
	issueCategory   string
	issueImage      string
	issueLat        float64
	issueLng        float64
	issueZone       string
	issueStatus     string
	issueUnassigned bool
	issueMine       bool
	issueJSON       bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Report and manage civic issues",
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Report a new issue",
	Long: `Report a new issue as the user selected with --as.

The zone is classified from --lat/--lng and the issue is routed to the
regional official for that zone. When --category is omitted a category is
suggested from the title and description.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var lat, lng *float64
		if cmd.Flags().Changed("lat") {
			lat = &issueLat
		}
		if cmd.Flags().Changed("lng") {
			lng = &issueLng
		}
		return issueAddRun(lat, lng)
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show issue details and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <id> <PENDING|IN_PROGRESS|RESOLVED>",
	Short: "Change the status of an issue and notify its reporter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueStatusRun(args[0], args[1])
	},
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign <id> <official-email>",
	Short: "Reassign an issue to a regional official (ADMIN)",
	Long: `Reassign an issue to a regional official. The issue's zone is
overwritten with the official's zone.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAssignRun(args[0], args[1])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an issue and its comments (ADMIN)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

var issueCommentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Add a comment to an issue",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCommentRun(args[0], strings.Join(args[1:], " "))
	},
}

var issueSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest a category for an issue title and description",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSuggestRun()
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueStatusCmd)
	issueCmd.AddCommand(issueAssignCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueCommentCmd)
	issueCmd.AddCommand(issueSuggestCmd)

	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description (required)")
	issueAddCmd.Flags().StringVar(&issueCategory, "category", "", "Category (suggested when empty)")
	issueAddCmd.Flags().StringVar(&issueImage, "image", "", "Image URL")
	issueAddCmd.Flags().Float64Var(&issueLat, "lat", 0, "Latitude")
	issueAddCmd.Flags().Float64Var(&issueLng, "lng", 0, "Longitude")

	issueListCmd.Flags().StringVar(&issueZone, "zone", "", "Filter by zone")
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status")
	issueListCmd.Flags().BoolVar(&issueUnassigned, "unassigned", false, "Only issues with no official")
	issueListCmd.Flags().BoolVar(&issueMine, "mine", false, "Only issues reported by the acting user")
	issueListCmd.Flags().BoolVar(&issueJSON, "json", false, "Output as JSON")

	issueShowCmd.Flags().BoolVar(&issueJSON, "json", false, "Output as JSON")

	issueSuggestCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title")
	issueSuggestCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
}

func issueAddRun(lat, lng *float64) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	req := issues.CreateRequest{
		Title:       issueTitle,
		Description: issueDesc,
		Category:    issueCategory,
		ImageURL:    issueImage,
		Latitude:    lat,
		Longitude:   lng,
	}

	if req.Category == "" && (req.Title != "" || req.Description != "") {
		s := a.suggester.Suggest(ctx, req.Title, req.Description)
		req.Category = s.Category
		ui.VerboseLog("Suggested category %q (%s)", s.Category, s.Source)
	}

	if dryRun {
		ui.DryRunMsg("Would report %q in %s", req.Title, zone.Classify(req.Latitude, req.Longitude))
		return nil
	}

	issue, err := a.issues.Create(ctx, req, actor)
	if err != nil {
		return err
	}

	ui.Success("Reported issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	ui.Info("Zone: %s  Assigned: %s", output.ZoneColor(string(issue.Zone)), output.Assignee(issue.AssignedTo))
	return nil
}

func issueListRun() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	list, err := listIssues(ctx, a, actor)
	if err != nil {
		return err
	}

	if issueJSON {
		return ui.JSON(list)
	}

	if len(list) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Category", "Zone", "Status", "Assigned", "Created"})
	for _, issue := range list {
		_ = table.Append([]string{
			shortID(issue.ID),
			issue.Title,
			issue.Category,
			output.ZoneColor(string(issue.Zone)),
			output.StatusColor(string(issue.Status)),
			output.Assignee(issue.AssignedTo),
			issue.CreatedAt.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}

// listIssues applies the list flags for the acting user. Filters other than
// --mine are only available to officials and administrators.
func listIssues(ctx context.Context, a *app, actor models.Actor) ([]*models.Issue, error) {
	if issueMine {
		return a.issues.ListMine(ctx, actor)
	}

	if issueZone == "" && issueStatus == "" && !issueUnassigned {
		return a.issues.List(ctx)
	}

	var (
		filter store.IssueListFilter
		v      apperr.Validator
		err    error
	)
	if issueZone != "" {
		filter.Zone, err = models.ParseZone(issueZone)
		v.Check(err == nil, "zone", "unknown zone")
	}
	if issueStatus != "" {
		filter.Status, err = models.ParseIssueStatus(issueStatus)
		v.Check(err == nil, "status", "unknown status")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	filter.Unassigned = issueUnassigned

	return a.issues.Find(ctx, filter, actor)
}

func issueShowRun(ref string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, a, ref)
	if err != nil {
		return err
	}

	if issueJSON {
		return ui.JSON(issue)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Category:   %s\n", issue.Category)
	fmt.Fprintf(ui.Out, "  Zone:       %s (%s)\n", output.ZoneColor(string(issue.Zone)), zone.Describe(issue.Zone))
	fmt.Fprintf(ui.Out, "  Assigned:   %s\n", output.Assignee(issue.AssignedTo))
	if issue.Latitude != nil && issue.Longitude != nil {
		fmt.Fprintf(ui.Out, "  Location:   %.5f, %.5f\n", *issue.Latitude, *issue.Longitude)
	}
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", issue.Description)
	if issue.ImageURL != "" {
		fmt.Fprintf(ui.Out, "  Image:      %s\n", issue.ImageURL)
	}
	fmt.Fprintf(ui.Out, "  Reporter:   %s\n", issue.CreatedBy)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", issue.ID)

	if len(issue.Comments) > 0 {
		fmt.Fprintf(ui.Out, "\n  Comments:\n")
		for _, c := range issue.Comments {
			fmt.Fprintf(ui.Out, "    [%s] %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.AuthorID, c.Text)
		}
	}
	return nil
}

func issueStatusRun(ref, statusArg string) error {
	status, err := models.ParseIssueStatus(statusArg)
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
	issue, err := findIssue(ctx, a, ref)
	if err != nil {
		return err
	}

	if dryRun {
		if err := authz.CheckUpdateStatus(actor, issue); err != nil {
			return err
		}
		ui.DryRunMsg("Would set %s from %s to %s", shortID(issue.ID), issue.Status, status)
		return nil
	}

	updated, err := a.issues.UpdateStatus(ctx, issue.ID, status, actor)
	if err != nil {
		return err
	}
	ui.Success("Issue %s is now %s", output.Cyan(shortID(updated.ID)), output.StatusColor(string(updated.Status)))
	return nil
}

func issueAssignRun(ref, officialEmail string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, a, ref)
	if err != nil {
		return err
	}
	official, err := a.accounts.UserByEmail(ctx, officialEmail)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would assign %s to %s (%s)", shortID(issue.ID), official.Email, official.Zone)
		return nil
	}

	updated, err := a.issues.Assign(ctx, issue.ID, official.ID, actor)
	if err != nil {
		return err
	}
	ui.Success("Assigned %s to %s in %s", output.Cyan(shortID(updated.ID)), official.Name, output.ZoneColor(string(updated.Zone)))
	return nil
}

func issueDeleteRun(ref string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	issue, err := findIssue(ctx, a, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s: %s (%d comments)", shortID(issue.ID), issue.Title, len(issue.Comments))
		return nil
	}

	if err := a.issues.Delete(ctx, issue.ID, actor); err != nil {
		return err
	}
	ui.Success("Deleted issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueCommentRun(ref, text string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, a, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would comment on %s: %s", shortID(issue.ID), text)
		return nil
	}

	c, err := a.issues.AddComment(ctx, issue.ID, text, actor)
	if err != nil {
		return err
	}
	ui.Success("Added comment %s to %s", output.Cyan(shortID(c.ID)), output.Cyan(shortID(issue.ID)))
	return nil
}

func issueSuggestRun() error {
	if issueTitle == "" && issueDesc == "" {
		return fmt.Errorf("--title or --desc is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	s := a.suggester.Suggest(context.Background(), issueTitle, issueDesc)
	ui.Success("Category: %s", output.Cyan(s.Category))
	if s.Reason != "" {
		ui.Info("Reason: %s", s.Reason)
	}
	ui.VerboseLog("Source: %s", s.Source)
	return nil
}

// findIssue finds an issue by full ID or unique prefix.
func findIssue(ctx context.Context, a *app, ref string) (*models.Issue, error) {
	issue, err := a.issues.Get(ctx, ref)
	if err == nil {
		return issue, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	all, err := a.issues.List(ctx)
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(ref)
	var matches []*models.Issue
	for _, i := range all {
		if strings.HasPrefix(i.ID, upper) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return nil, apperr.NotFound("issue", ref)
	case 1:
		// Re-fetch to load comments
		return a.issues.Get(ctx, matches[0].ID)
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", ref, len(matches))
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
