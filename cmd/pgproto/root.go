package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/syssam/pgproto/compiler/gen"
	sqlgen "github.com/syssam/pgproto/compiler/gen/sql"
	"github.com/syssam/pgproto/compiler/load"
)

// Environment variables read by the command.
const (
	envDatabaseURL = "DATABASE_URL"
	envLogLevel    = "PGPROTO_LOG_LEVEL"
)

// env holds the process dependencies of the command.
type env struct {
	open   func(dsn string) (*sql.DB, error)
	getenv func(string) string
	// logger builds the command logger from the configured level.
	logger func(level string) (*zap.Logger, error)
}

func defaultEnv() env {
	return env{
		open:   func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) },
		getenv: os.Getenv,
		logger: newLogger,
	}
}

// newLogger returns a production logger at the given level. An empty level
// keeps the production default.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envLogLevel, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// execute runs the command and returns the process exit code.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(e env) *cobra.Command {
	var (
		workers int
		header  string
	)
	cmd := &cobra.Command{
		Use:   "pgproto <out-dir> <namespace> <selection.json> <descriptor-set-out>",
		Short: "Generate protobuf IDL and Go services from PostgreSQL tables",
		Long: `pgproto introspects the selected tables of a PostgreSQL database and writes,
for every table, a protobuf IDL file and a Go package holding the query
builder relation, the storage wiring and a CRUD service scaffold. A combined
descriptor set of all IDL files is written to descriptor-set-out.`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := e.logger(e.getenv(envLogLevel))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return run(cmd, e, log, runArgs{
				target:        args[0],
				pkg:           args[1],
				selection:     args[2],
				descriptorSet: args[3],
				workers:       workers,
				header:        header,
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "tables introspected and rendered concurrently (default GOMAXPROCS)")
	cmd.Flags().StringVar(&header, "header", gen.DefaultHeader, "comment placed at the top of generated files")
	return cmd
}

type runArgs struct {
	target, pkg, selection, descriptorSet string
	workers                               int
	header                                string
}

func run(cmd *cobra.Command, e env, log *zap.Logger, a runArgs) error {
	sel, err := load.ReadSelection(a.selection)
	if err != nil {
		return err
	}
	db, err := e.open(e.getenv(envDatabaseURL))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	loadOpts := []load.Option{load.WithLogger(log)}
	genOpts := []gen.Option{
		gen.WithTarget(a.target),
		gen.WithPackage(a.pkg),
		gen.WithDescriptorSet(a.descriptorSet),
		gen.WithHeader(a.header),
		gen.WithLogger(log),
	}
	if a.workers > 0 {
		loadOpts = append(loadOpts, load.WithWorkers(a.workers))
		genOpts = append(genOpts, gen.WithWorkers(a.workers))
	}
	inspector, err := load.NewInspector(db, loadOpts...)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	schemas, err := inspector.Inspect(ctx, sel)
	if err != nil {
		return err
	}
	cfg, err := gen.NewConfig(genOpts...)
	if err != nil {
		return err
	}
	graph, err := gen.NewGraph(cfg, schemas...)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", zap.Int("schemas", len(schemas)), zap.Int("tables", sel.Len()))
	return sqlgen.Generate(ctx, graph)
}
