// Package main provides the graphexec CLI entry point.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/graphexec/pkg/config"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphexec",
		Short: "graphexec - embedded property-graph query execution",
		Long: `graphexec runs physical query plans and write scripts against an
embedded property graph.

  • Volcano-style read pipelines: scans, filter, projection, sort, skip, limit
  • Transactional writes with rollback: CREATE, MERGE, SET, REMOVE, DELETE
  • In-memory or Badger-backed storage`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", config.FindConfigFile(), "Config file (YAML or TOML)")
	rootCmd.PersistentFlags().String("engine", "", "Storage engine: memory, badger (overrides config)")
	rootCmd.PersistentFlags().String("data-dir", "", "Badger data directory (overrides config)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log transaction boundaries")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphexec v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Execute a read plan and print the rows as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			planPath, _ := cmd.Flags().GetString("plan")
			if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
				cfg.Executor.PrettyJSON = true
			}
			return runQuery(cfg, planPath, cmd.OutOrStdout())
		},
	}
	queryCmd.Flags().String("plan", "", "Plan document (YAML or JSON)")
	queryCmd.Flags().Bool("pretty", false, "Indent JSON output")
	_ = queryCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(queryCmd)

	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Run a write script",
		Long: `Run a write script. A transaction the script leaves open is committed.
With --dry-run the script runs inside a transaction that is rolled back at
the end; auto-commit is off, so steps outside it fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scriptPath, _ := cmd.Flags().GetString("script")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runWrite(cfg, scriptPath, dryRun, cmd.OutOrStdout())
		},
	}
	writeCmd.Flags().String("script", "", "Write script (YAML or JSON)")
	writeCmd.Flags().Bool("dry-run", false, "Roll back instead of committing")
	_ = writeCmd.MarkFlagRequired("script")
	rootCmd.AddCommand(writeCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Build a small in-memory graph and query it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Storage.Engine = config.EngineMemory
			return runDemo(cfg, cmd.OutOrStdout())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("engine") {
		cfg.Storage.Engine, _ = cmd.Flags().GetString("engine")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Logging.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Logging.Verbose {
		log.Printf("📋 %s", cfg)
	}
	return cfg, nil
}
