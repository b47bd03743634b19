package commands

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
	"github.com/retailworks/field-scheduler/pkg/core/services"
	"github.com/retailworks/field-scheduler/pkg/metrics"
)

// RunSchedulerCmd creates the runScheduler command
func RunSchedulerCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runScheduler",
		Short: "Run the auto-scheduler over a date range",
		Long:  "Place unscheduled events in priority order, bumping lower-priority pending assignments when necessary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			window, err := parseWindow(fromStr, toStr)
			if err != nil {
				return err
			}

			app.Logger.Debug("runScheduler command", zap.String("window", window.String()))

			if app.Cfg.MetricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", metrics.Handler())
					if err := http.ListenAndServe(app.Cfg.MetricsAddr, mux); err != nil {
						app.Logger.Warn("metrics server stopped", zap.Error(err))
					}
				}()
			}

			result, err := services.RunScheduler(app.Ctx, app.Database, app.Scorer, app.Cfg, app.Logger, window)
			if errors.Is(err, scheduler.ErrRunLocked) {
				return fmt.Errorf("another run holds the lock for %s - try again later", window)
			}
			if err != nil {
				return fmt.Errorf("scheduler run failed: %w", err)
			}

			printReport(result)
			return nil
		},
	}

	cmd.Flags().String("from", "", "Window start date (YYYY-MM-DD, default today)")
	cmd.Flags().String("to", "", "Window end date (YYYY-MM-DD, default from+13 days)")

	return cmd
}

func parseWindow(fromStr, toStr string) (model.DateRange, error) {
	from := model.DayOf(time.Now())
	if fromStr != "" {
		parsed, err := time.Parse(time.DateOnly, fromStr)
		if err != nil {
			return model.DateRange{}, fmt.Errorf("invalid --from date: %w", err)
		}
		from = model.DayOf(parsed)
	}

	to := from.AddDate(0, 0, 13)
	if toStr != "" {
		parsed, err := time.Parse(time.DateOnly, toStr)
		if err != nil {
			return model.DateRange{}, fmt.Errorf("invalid --to date: %w", err)
		}
		to = model.DayOf(parsed)
	}

	if to.Before(from) {
		return model.DateRange{}, fmt.Errorf("--to (%s) is before --from (%s)", toStr, fromStr)
	}

	return model.DateRange{From: from, To: to}, nil
}

func printReport(result *services.RunSchedulerResult) {
	report := result.Report

	fmt.Printf("\n🗓  Auto-Scheduler Run Report\n\n")
	fmt.Printf("Window:            %s\n", report.Window)
	fmt.Printf("Events considered: %d\n", report.Considered)
	fmt.Printf("Placed:            %d\n", report.Placed)
	fmt.Printf("Placed via backup: %d\n", report.PlacedViaBackup)
	fmt.Printf("Placed via bump:   %d\n", report.PlacedViaBump)
	fmt.Printf("Unsatisfied:       %d\n", len(report.Unsatisfied))
	fmt.Printf("Scorer fallbacks:  %d\n", report.ScorerFallbacks)
	fmt.Printf("Duration:          %s\n", result.Duration.Round(time.Millisecond))
	fmt.Println()

	if len(report.Unsatisfied) > 0 {
		fmt.Printf("⚠️  Unsatisfied Events:\n")
		for _, u := range report.Unsatisfied {
			fmt.Printf("  • %s (%s): %s\n", u.Name, u.EventID, u.Reason)
		}
		fmt.Println()
	}

	for _, r := range report.Results {
		if r.Outcome == scheduler.OutcomeUnsatisfied || r.Assignment == nil {
			continue
		}
		marker := "✅"
		if r.Outcome == scheduler.OutcomePlacedViaBump {
			marker = "↪️"
		}
		fmt.Printf("%s %-18s %s → %s\n",
			marker,
			r.Outcome,
			r.Event.Name,
			r.Assignment.Day.Format(time.DateOnly))
	}
	fmt.Println()

	if report.Satisfied() {
		fmt.Println("✅ All considered events were placed.")
	} else {
		fmt.Println("⚠️  Some events could not be placed - see the list above.")
	}
}
