package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-payments/cmd/paymentsctl/cli"
	"github.com/odyssey-erp/odyssey-payments/internal/app"
	"github.com/odyssey-erp/odyssey-payments/internal/countries"
	"github.com/odyssey-erp/odyssey-payments/internal/evidence"
	"github.com/odyssey-erp/odyssey-payments/internal/payments"
	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/db"
)

// exitError carries a command exit code through cobra.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Operational commands for the payments service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(importCmd(), jobsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if exit, ok := err.(exitError); ok {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a CSV or XLSX file directly into the payments store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)

			pool, err := db.New(ctx, cfg.PGDSN, cfg.Pool())
			if err != nil {
				return err
			}
			defer pool.Close()

			redisClient, err := cache.New(ctx, cfg.Redis())
			if err != nil {
				logger.Warn("redis ping, country cache disabled", slog.Any("error", err))
				_ = redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
			}

			evidenceStore, err := evidence.NewStore(cfg.UploadDir)
			if err != nil {
				return err
			}
			service := payments.NewService(payments.NewRepository(pool), evidenceStore, logger)
			lookup := countries.NewLookup(
				countries.NewClient(cfg.CountryAPIURL, cfg.CountryFetchTimeout),
				redisClient,
				cfg.CountryCacheTTL,
				logger,
			)
			importCLI, err := cli.NewImportCLI(importer.New(service.Validator(), service, lookup, nil, logger))
			if err != nil {
				return err
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			maxListed, _ := cmd.Flags().GetInt("max-listed")
			code := importCLI.ImportCommand(ctx, cli.ImportOptions{
				Path:       args[0],
				JSONOutput: jsonOutput,
				MaxListed:  maxListed,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
			if code != cli.ExitOK {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
	cmd.Flags().IntP("max-listed", "n", 20, "Maximum invalid rows to print")
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "trigger [name]",
			Short: "Enqueue a maintenance job (countries:warmup, idempotency:cleanup)",
			Args:  cobra.ExactArgs(1),
			RunE: withJobsCLI(func(cmd *cobra.Command, jobsCLI *cli.JobsCLI, args []string) error {
				info, err := jobsCLI.Trigger(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", info.Type, info.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "enqueue-import [file]",
			Short: "Queue an import of a file readable by the worker",
			Args:  cobra.ExactArgs(1),
			RunE: withJobsCLI(func(cmd *cobra.Command, jobsCLI *cli.JobsCLI, args []string) error {
				info, err := jobsCLI.EnqueueImport(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", info.Type, info.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "queue",
			Short: "Show default queue statistics",
			RunE: withJobsCLI(func(cmd *cobra.Command, jobsCLI *cli.JobsCLI, args []string) error {
				stats, err := jobsCLI.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}),
		},
	)
	return cmd
}

func withJobsCLI(run func(cmd *cobra.Command, jobsCLI *cli.JobsCLI, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		jobsCLI, err := cli.NewJobsCLI(cfg.Redis().Asynq())
		if err != nil {
			return err
		}
		defer func() {
			_ = jobsCLI.Close()
		}()
		return run(cmd, jobsCLI, args)
	}
}
