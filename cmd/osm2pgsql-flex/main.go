// Package main contains the osm2pgsql-flex CLI: an import subcommand that
// builds a fresh set of PostgreSQL/PostGIS tables from an OSM change-event
// log, and an update subcommand that applies a later log against tables an
// earlier import produced.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"osm2pgsql-flex/internal/config"
	"osm2pgsql-flex/internal/dispatcher"
	"osm2pgsql-flex/internal/evaluator"
	"osm2pgsql-flex/internal/middle"
	"osm2pgsql-flex/internal/sink"
	"osm2pgsql-flex/internal/stats"
)

type runFlags struct {
	schemaFile string
	rulesFile  string
	eventsFile string
	dsn        string
	schema     string
	middlePath string
	workers    int
	maxDepth   int
	watermark  int
	verbose    bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "osm2pgsql-flex",
		Short: "Flex-style OSM-to-PostgreSQL output pipeline",
	}

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(updateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bindCommonFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "Path to the table-schema TOML file (required)")
	cmd.Flags().StringVar(&flags.rulesFile, "rules", "", "Path to the row-mapping TOML file (required)")
	cmd.Flags().StringVar(&flags.eventsFile, "events", "", "Path to the newline-delimited JSON event log (required)")
	cmd.Flags().StringVar(&flags.dsn, "dsn", "", "PostgreSQL connection string (required)")
	cmd.Flags().StringVar(&flags.schema, "pg-schema", "", "Target PostgreSQL schema (default: connection's search_path)")
	cmd.Flags().StringVar(&flags.middlePath, "middle-path", "", "Directory for the middle store's on-disk header")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Propagate-phase worker count (0: runtime.GOMAXPROCS)")
	cmd.Flags().IntVar(&flags.maxDepth, "max-propagation-depth", 0, "Bound on relation-of-relation propagation depth (0: unbounded)")
	cmd.Flags().IntVar(&flags.watermark, "watermark-bytes", 0, "COPY staging flush watermark in bytes (0: default)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug-level logging")
}

func importCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build a fresh set of tables from a full OSM event log",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPipeline(middle.ModeImport, sink.ModeImport, flags)
		},
	}
	bindCommonFlags(cmd, flags)
	return cmd
}

func updateCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply a change-event log against tables an earlier import produced",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPipeline(middle.ModeUpdate, sink.ModeUpdate, flags)
		},
	}
	bindCommonFlags(cmd, flags)
	return cmd
}

func requireFlags(flags *runFlags) error {
	switch {
	case flags.schemaFile == "":
		return fmt.Errorf("--schema is required")
	case flags.rulesFile == "":
		return fmt.Errorf("--rules is required")
	case flags.eventsFile == "":
		return fmt.Errorf("--events is required")
	case flags.dsn == "":
		return fmt.Errorf("--dsn is required")
	}
	return nil
}

func runPipeline(middleMode middle.Mode, sinkMode sink.Mode, flags *runFlags) error {
	if err := requireFlags(flags); err != nil {
		return err
	}

	logger, err := newLogger(flags.verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.ParseFile(flags.schemaFile)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := db.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	logger.Info("schema loaded", zap.String("file", flags.schemaFile), zap.Int("tables", len(db.Tables)))

	rules, err := config.LoadStaticEvaluator(flags.rulesFile)
	if err != nil {
		return fmt.Errorf("load row-mapping rules: %w", err)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, flags.dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if err := sink.ProbeCapabilities(ctx, conn, db); err != nil {
		return fmt.Errorf("capability probe: %w", err)
	}

	store, err := middle.New(middleMode, middle.Options{Path: flags.middlePath})
	if err != nil {
		return fmt.Errorf("open middle store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("middle store close failed", zap.Error(err))
		}
	}()

	counters := &stats.Counters{}

	s, err := sink.New(conn, db, sink.Options{
		Schema:    flags.schema,
		Mode:      sinkMode,
		Watermark: flags.watermark,
	}, counters)
	if err != nil {
		return fmt.Errorf("build sink: %w", err)
	}
	if err := s.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare sink: %w", err)
	}

	bridge := evaluator.NewBridge(db, s)
	d := dispatcher.New(store, rules, bridge, s, dispatcher.Options{
		MaxPropagationDepth: flags.maxDepth,
		Workers:             flags.workers,
	}, counters)

	f, err := os.Open(flags.eventsFile)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer func() { _ = f.Close() }()
	reader := newNDJSONReader(f)

	logger.Info("run starting", zap.String("mode", string(middleMode)))
	switch middleMode {
	case middle.ModeImport:
		err = d.RunImport(ctx, reader)
	case middle.ModeUpdate:
		err = d.RunUpdate(ctx, reader)
	default:
		err = fmt.Errorf("unknown middle mode %q", middleMode)
	}
	if err != nil {
		logger.Error("run failed", zap.Error(err), zap.String("stats", counters.Snapshot().String()))
		return err
	}

	plan, err := s.Commit(ctx)
	if err != nil {
		logger.Error("commit failed", zap.Error(err), zap.String("stats", counters.Snapshot().String()))
		return err
	}
	logger.Info("run complete",
		zap.Int("plan_operations", len(plan.Operations)),
		zap.String("stats", counters.Snapshot().String()))
	return nil
}
