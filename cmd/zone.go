package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/zone"
)

var (
	zoneLat float64
	zoneLng float64
)

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Coimbatore District zones",
}

var zoneClassifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a GPS coordinate into a zone",
	Example: `  civic zone classify --lat 11.10 --lng 76.90
  civic zone classify --lat 11.00 --lng 77.00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var lat, lng *float64
		if cmd.Flags().Changed("lat") {
			lat = &zoneLat
		}
		if cmd.Flags().Changed("lng") {
			lng = &zoneLng
		}
		return zoneClassifyRun(lat, lng)
	},
}

var zoneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List zones with issue counts (ADMIN)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return zoneListRun()
	},
}

func init() {
	rootCmd.AddCommand(zoneCmd)
	zoneCmd.AddCommand(zoneClassifyCmd)
	zoneCmd.AddCommand(zoneListCmd)

	zoneClassifyCmd.Flags().Float64Var(&zoneLat, "lat", 0, "Latitude")
	zoneClassifyCmd.Flags().Float64Var(&zoneLng, "lng", 0, "Longitude")
}

// zoneClassifyRun needs no store: classification is a pure function.
func zoneClassifyRun(lat, lng *float64) error {
	z := zone.Classify(lat, lng)
	fmt.Fprintf(ui.Out, "%s  %s\n", output.ZoneColor(string(z)), zone.Describe(z))
	return nil
}

func zoneListRun() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := a.actor(ctx)
	if err != nil {
		return err
	}

	stats, err := a.issues.StatsByZone(ctx, actor)
	if err != nil {
		return err
	}

	officials, err := a.accounts.ListOfficials(ctx, actor)
	if err != nil {
		return err
	}
	byZone := make(map[models.Zone]string, len(officials))
	for _, o := range officials {
		byZone[o.Zone] = o.Name
	}

	table := ui.Table([]string{"Zone", "Description", "Official", "Total", "Pending", "In Progress", "Resolved"})
	for _, st := range stats {
		official := byZone[models.Zone(st.Zone)]
		if official == "" {
			official = "-"
		}
		_ = table.Append([]string{
			output.ZoneColor(st.Zone),
			st.Description,
			official,
			fmt.Sprintf("%d", st.Total),
			fmt.Sprintf("%d", st.Pending),
			fmt.Sprintf("%d", st.InProgress),
			fmt.Sprintf("%d", st.Resolved),
		})
	}
	_ = table.Render()
	return nil
}
