package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/retailworks/field-scheduler/pkg/core/services"
)

// TraceAssignmentCmd creates the traceAssignment command
func TraceAssignmentCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traceAssignment <assignment-id>",
		Short: "Walk an assignment's bump provenance chain",
		Long:  "Show why an event ended up on its current slot by following bump-origin references back through displaced assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid assignment id: %w", err)
			}

			hops, err := services.TraceAssignment(app.Ctx, app.Database, id)
			if err != nil {
				return fmt.Errorf("trace failed: %w", err)
			}

			fmt.Printf("\n🔎 Bump Provenance (%d hops)\n\n", len(hops))
			for i, hop := range hops {
				prefix := "   "
				if i == 0 {
					prefix = "→ "
				}
				fmt.Printf("%s%s  %s / %s on %s at %02d:%02d [%s]\n",
					prefix,
					hop.Assignment.ID,
					hop.Event.Name,
					hop.Employee.Name,
					hop.Assignment.Day.Format(time.DateOnly),
					hop.Assignment.StartMinute/60,
					hop.Assignment.StartMinute%60,
					hop.Assignment.State)
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}
