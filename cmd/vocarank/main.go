package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"vocarank/internal/di"
	"vocarank/internal/structures"

	"github.com/spf13/cobra"
)

var flags structures.CliFlags

var rootCmd = &cobra.Command{
	Use:           "vocarank",
	Short:         "Daily view rankings for Vocaloid songs and artists",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rankings API and run the scheduled views refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := di.InitApp(&flags)
		return err
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch today's views for every song and write a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := di.InitRefreshJob(&flags)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		summary, err := job.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s for %s: %d refreshed, %d carried forward, %d marked dormant, %d skipped in %s\n",
			summary.RunID, summary.Day.Format("2006-01-02"), summary.Refreshed, summary.CarriedForward,
			summary.MarkedDormant, summary.Skipped, summary.Duration)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := di.InitMigrateJob(&flags)
		if err != nil {
			return err
		}
		return job.Run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&flags.DebugMode, "debug", "d", false, "log queries and mirror logs to stdout")
	rootCmd.AddCommand(serveCmd, refreshCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
