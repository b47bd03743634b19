package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/cmd/cli/commands"
	"github.com/retailworks/field-scheduler/internal/config"
	"github.com/retailworks/field-scheduler/pkg/clients/scorerclient"
	"github.com/retailworks/field-scheduler/pkg/postgres"
	"github.com/retailworks/field-scheduler/pkg/utils/logging"
)

var (
	env string
	app *commands.AppContext
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Field Scheduler CLI - Auto-schedule field staff onto events",
		Long:  `A CLI tool for running the auto-scheduler engine, inspecting unscheduled work, and auditing bump provenance.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.Logger != nil {
					app.Logger.Sync()
				}
				if app.Database != nil {
					app.Database.Close()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.RunSchedulerCmd(appRef()))
	rootCmd.AddCommand(commands.ListUnscheduledCmd(appRef()))
	rootCmd.AddCommand(commands.TraceAssignmentCmd(appRef()))
	rootCmd.AddCommand(commands.MigrateCmd(appRef()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appRef returns the shared AppContext pointer; it is populated by
// initApp before any subcommand runs.
func appRef() *commands.AppContext {
	if app == nil {
		app = &commands.AppContext{}
	}
	return app
}

// initApp sets up logger, config, database, and the optional scorer client
func initApp() error {
	a := appRef()
	a.Ctx = context.Background()

	var err error
	a.Logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.Logger.Info("Starting application", zap.String("environment", env))

	a.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.Logger.Debug("Configuration loaded successfully")

	a.Database, err = postgres.NewDB(a.Ctx, a.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Logger.Debug("Database connection established")

	if a.Cfg.Scorer.Enabled {
		timeout := time.Duration(a.Cfg.Scorer.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		a.Scorer = scorerclient.NewClient(a.Cfg.Scorer.URL, timeout)
		a.Logger.Info("External scorer enabled", zap.String("url", a.Cfg.Scorer.URL))
	}

	return nil
}
