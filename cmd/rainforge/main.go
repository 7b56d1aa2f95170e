package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	_ "github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall/imd"
	_ "github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall/imdpdf"
	_ "github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall/openmeteo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rainforge",
		Short: "Rainwater harvesting assessment and installer marketplace service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(batchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		port       string
		withWorker bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(port, withWorker)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides RAINFORGE_PORT)")
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "run the background worker in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker: score recomputes and rainfall refreshes",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWorker()
		},
	}
}

func migrateCmd() *cobra.Command {
	var (
		driver string
		dsn    string
	)

	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Apply or inspect database schema migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			return runMigrate(direction, driver, dsn)
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "database driver (overrides RAINFORGE_DB_DRIVER)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (overrides RAINFORGE_DB_DSN)")
	return cmd
}

func assessCmd() *cobra.Command {
	var (
		req     assessment.SiteRequest
		compare bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess a single roof site and print the result as JSON",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAssess(req, compare)
		},
	}

	cmd.Flags().Float64Var(&req.Lat, "lat", 0, "site latitude")
	cmd.Flags().Float64Var(&req.Lng, "lng", 0, "site longitude")
	cmd.Flags().Float64Var(&req.RoofAreaSqm, "area", 100, "roof area in square metres")
	cmd.Flags().StringVar(&req.RoofMaterial, "material", "concrete", "roof material: concrete, metal, tiles or thatched")
	cmd.Flags().StringVar(&req.Scenario, "scenario", "cost_optimized", "sizing scenario: cost_optimized, max_capture or dry_season")
	cmd.Flags().Float64Var(&req.DailyDemandLiters, "demand", 0, "daily water demand in liters (0 = household default)")
	cmd.Flags().StringVar(&req.Provider, "provider", "", "rainfall provider (overrides RAINFORGE_RAINFALL_PROVIDER)")
	cmd.Flags().BoolVar(&compare, "compare", false, "size the tank under every scenario instead of one")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func batchCmd() *cobra.Command {
	var (
		name     string
		scenario string
		workers  int
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "batch [sites.csv]",
		Short: "Assess every site in a CSV file and print the batch result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runBatch(args[0], name, scenario, workers, outPath)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "batch name")
	cmd.Flags().StringVar(&scenario, "scenario", "cost_optimized", "sizing scenario applied to every site")
	cmd.Flags().IntVar(&workers, "workers", 0, "assessment worker pool size (0 = default)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the result to a file instead of stdout")
	return cmd
}
