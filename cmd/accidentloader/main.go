package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"AccidentLoader/internal/app"
	"AccidentLoader/internal/config"
	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "accidentloader",
		Short:         "Load ARIA and EPICEA industrial accident reports into Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configPath != "" {
				return os.Setenv("ACCIDENT_LOADER_CONFIG", configPath)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.AddCommand(newAriaCommand())
	cmd.AddCommand(newEpiceaCommand())
	cmd.AddCommand(newScheduleCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newAriaCommand() *cobra.Command {
	var opts app.RunOptions
	cmd := &cobra.Command{
		Use:   "aria",
		Short: "Load the ARIA CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd.Context(), domain.SourceARIA, opts)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of rows to load (0 = all)")
	return cmd
}

func newEpiceaCommand() *cobra.Command {
	var opts app.RunOptions
	cmd := &cobra.Command{
		Use:   "epicea",
		Short: "Load saved EPICEA dossier pages, extracting fields from their summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd.Context(), domain.SourceEPICEA, opts)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of dossiers to load (0 = all)")
	cmd.Flags().IntVar(&opts.FromID, "from", 0, "Skip dossiers numbered below this value")
	cmd.Flags().BoolVar(&opts.ForceRefresh, "force-refresh", false, "Ignore cached extraction answers")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "Do not resume after the last stored dossier")
	return cmd
}

func newScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Rerun the EPICEA load on the configured cron expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(application *app.Application) error {
				return application.Schedule(cmd.Context())
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the accident tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(application *app.Application) error {
				return application.Migrate(cmd.Context())
			})
		},
	}
}

func runLoad(ctx context.Context, sourceName string, opts app.RunOptions) error {
	return withApp(func(application *app.Application) error {
		report, err := application.Run(ctx, sourceName, opts)
		if err != nil {
			return err
		}
		if report.DryRun {
			fmt.Printf("%s: fetched %d, normalized %d, not saved (no database configured) in %s\n", report.Source, report.Fetched, report.Normalized, report.Duration)
			return nil
		}
		fmt.Printf("%s: fetched %d, saved %d in %s\n", report.Source, report.Fetched, report.Saved, report.Duration)
		return nil
	})
}

func withApp(fn func(*app.Application) error) (err error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			logger.Error("shutdown", "error", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}()

	return fn(application)
}
