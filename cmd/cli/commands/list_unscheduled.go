package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/retailworks/field-scheduler/pkg/core/services"
)

// ListUnscheduledCmd creates the listUnscheduled command
func ListUnscheduledCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listUnscheduled",
		Short: "List unscheduled events in scheduling order",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			window, err := parseWindow(fromStr, toStr)
			if err != nil {
				return err
			}

			events, err := services.ListUnscheduled(app.Ctx, app.Database, window)
			if err != nil {
				return fmt.Errorf("failed to list unscheduled events: %w", err)
			}

			if len(events) == 0 {
				fmt.Printf("No unscheduled events in %s.\n", window)
				return nil
			}

			fmt.Printf("\n📋 Unscheduled Events (%d) in %s\n\n", len(events), window)
			for i, ev := range events {
				fmt.Printf("%3d. [%-15s] %-40s due %s\n",
					i+1,
					ev.Kind,
					ev.Name,
					ev.DueDate.Format(time.DateOnly))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("from", "", "Window start date (YYYY-MM-DD, default today)")
	cmd.Flags().String("to", "", "Window end date (YYYY-MM-DD, default from+13 days)")

	return cmd
}
