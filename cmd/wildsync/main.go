// Package main provides the wildsync binary entry point.
// Wildsync runs the scheduled data jobs for the BC wildlife monitoring
// programs: syncing badger sighting reports from CHEFS into ArcGIS Online,
// backing layers up to S3 object storage, maintaining culvert and camera
// survey status fields, and packaging culvert assessment data requests.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "wildsync"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "wildsync",
		Short: "BC wildlife monitoring data pipelines",
		Long: `Wildsync runs the data pipelines behind the BC badger and fisher
monitoring programs.

It syncs public badger sighting reports from CHEFS into ArcGIS Online,
appends raw sightings to the editing layer, archives photos and layer
backups to S3 object storage, maintains survey status fields on the
culvert, camera check and hair snag layers, and packages culvert
assessment data requests for download.

Pipelines run once from the command line or on cron schedules from
configuration.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	var confirm bool
	runCmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a single pipeline once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath, logLevel, confirm)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.runOnce(ctx, args[0])
		},
	}
	runCmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm pipelines that overwrite live data")
	cmd.AddCommand(runCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Run pipelines on their configured cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath, logLevel, false)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.runScheduler(ctx, configPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPipelines(cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// listPipelines prints the pipeline names and descriptions without needing
// credentials or a config file.
func listPipelines(out io.Writer) error {
	registry, err := buildRegistry(emptyDeps(), false)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, p := range registry.All() {
		fmt.Fprintf(w, "%s\t%s\n", p.Name(), p.Description())
	}
	return w.Flush()
}
