package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"financialreader/pkg/core/config"
	"financialreader/pkg/core/export"
	"financialreader/pkg/core/ingest"
	"financialreader/pkg/core/logging"
	"financialreader/pkg/core/pipeline"
	"financialreader/pkg/core/store"
	"financialreader/pkg/core/xbrl"
)

const version = "0.4.0"

// app is the state shared by every subcommand after PersistentPreRunE.
type app struct {
	cfgPath  string
	logLevel string

	cfg    config.Config
	logger *zap.Logger
	undo   func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "finreader",
		Short: "Reconstruct annual financial statements from SEC XBRL company facts",
		Long: `finreader downloads a company's XBRL facts from SEC EDGAR, reconciles
restatements and duplicate filings, and assembles one income statement,
balance sheet and cash flow statement per fiscal year.

Set SEC_USER_AGENT to "Name email@example.com" before talking to EDGAR.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.DefaultPath, "config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newExtractCmd(a),
		newBatchCmd(a),
		newFilingsCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("finreader v" + version)
		},
	}
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, undo, err := logging.Install(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.undo = cfg, logger, undo
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.undo != nil {
		a.undo()
	}
}

func (a *app) edgarClient() (*ingest.EDGARClient, error) {
	return ingest.NewEDGARClient(ingest.Config{
		UserAgent:         a.cfg.SEC.UserAgent,
		BaseURL:           a.cfg.SEC.BaseURL,
		TickersURL:        a.cfg.SEC.TickersURL,
		RequestsPerSecond: a.cfg.SEC.RequestsPerSecond,
		CacheTTL:          a.cfg.SEC.CacheTTL,
		Timeout:           a.cfg.SEC.Timeout,
	}, ingest.WithLogger(a.logger.Named("edgar")))
}

// runOptions are the per-invocation knobs the subcommands expose.
type runOptions struct {
	years  int
	order  string
	store  bool
	export bool
	strict bool
}

// orchestrator wires the EDGAR client, the statement store and the exporter
// into a pipeline. The returned func releases the database pool.
func (a *app) orchestrator(ctx context.Context, ro runOptions) (*pipeline.Orchestrator, func(), error) {
	cleanup := func() {}
	client, err := a.edgarClient()
	if err != nil {
		return nil, cleanup, err
	}
	tax, err := a.cfg.Taxonomy()
	if err != nil {
		return nil, cleanup, err
	}

	years := a.cfg.Pipeline.WindowYears
	if ro.years > 0 {
		years = ro.years
	}
	order := a.cfg.Pipeline.RowOrder
	if ro.order != "" {
		order = ro.order
	}
	validation := pipeline.DefaultValidationConfig()
	validation.Strict = ro.strict

	opts := []pipeline.Option{
		pipeline.WithTaxonomy(tax),
		pipeline.WithWindowYears(years),
		pipeline.WithRowOrder(xbrl.ParseSortOrder(order)),
		pipeline.WithQualityThreshold(a.cfg.Pipeline.QualityThreshold),
		pipeline.WithRawPoints(a.cfg.Pipeline.KeepRawPoints),
		pipeline.WithValidationConfig(validation),
		pipeline.WithLogger(a.logger.Named("pipeline")),
	}

	if ro.store {
		repo := store.NewStatementRepo(nil, a.cfg.Store.CacheDir, store.WithLogger(a.logger.Named("store")))
		if a.cfg.Store.DatabaseURL != "" {
			pool, err := store.Connect(ctx, a.cfg.Store.DatabaseURL)
			if err != nil {
				return nil, cleanup, err
			}
			cleanup = pool.Close
			repo = store.NewStatementRepo(pool, "", store.WithLogger(a.logger.Named("store")))
		}
		opts = append(opts, pipeline.WithRepository(repo))
	}
	if ro.export {
		opts = append(opts, pipeline.WithExporter(export.New(a.cfg.Export.Dir, export.WithLogger(a.logger.Named("export")))))
	}
	return pipeline.NewOrchestrator(client, client, opts...), cleanup, nil
}
