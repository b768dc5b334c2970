package replicate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
	"github.com/philippevezina/hana-mirror/internal/config"
	"github.com/philippevezina/hana-mirror/internal/metrics"
	"github.com/philippevezina/hana-mirror/internal/observability"
	"github.com/philippevezina/hana-mirror/internal/translate"
)

// Source is the read side of the pipeline. Catalog reads and chunk fetches
// degrade to empty results on failure; the orchestrator treats an empty
// column set as "skip this target".
type Source interface {
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
	Columns(ctx context.Context, schema, table string) []common.ColumnDescriptor
	PrimaryKeys(ctx context.Context, schema, table string) []string
	RowCount(ctx context.Context, schema, table string) int64
	FetchChunk(ctx context.Context, schema, table string, chunkSize int, offset int64) common.Chunk
	ViewDefinition(ctx context.Context, schema, viewName string) string
	Close() error
}

// Destination is the write side. Every failure propagates; the orchestrator
// contains it at the per-target boundary.
type Destination interface {
	Ping(ctx context.Context) error
	DropSchema(ctx context.Context, schema string) error
	EnsureSchemaExists(ctx context.Context, schema string) error
	EnsureTableExists(ctx context.Context, schema, table string, columns []common.ColumnDescriptor, primaryKeys []string) error
	RowCount(ctx context.Context, schema, table string) int64
	TruncateTable(ctx context.Context, schema, table string) error
	InsertBatch(ctx context.Context, schema, table string, columns []common.ColumnDescriptor, chunk common.Chunk) (int64, error)
	CreateView(ctx context.Context, schema, viewName, definition string) error
}

// RunReport summarizes one replication run.
type RunReport struct {
	RunID            string
	StartedAt        time.Time
	Duration         time.Duration
	TablesReplicated int
	TablesSkipped    int
	TablesFailed     int
	ViewsCreated     int
	ViewsSkipped     int
	ViewsFailed      int
	RowsCopied       int64
}

// Orchestrator drives one end-to-end replication run: optional destructive
// reset, schema provisioning, sequential table replication with row-count
// reconciliation, then view materialization. One failing target never halts
// the run; only connect, reset and provisioning failures do.
type Orchestrator struct {
	cfg         *config.ReplicateConfig
	tables      []config.Target
	views       []config.Target
	source      Source
	destination Destination
	translator  *translate.Translator
	reporter    Reporter
	metrics     metrics.Metrics
	errors      observability.ErrorReporter
	logger      *zap.Logger
	dryRun      bool
}

type Options struct {
	Config      *config.ReplicateConfig
	Tables      []config.Target
	Views       []config.Target
	Source      Source
	Destination Destination
	Translator  *translate.Translator
	Reporter    Reporter
	Metrics     metrics.Metrics
	Errors      observability.ErrorReporter
	Logger      *zap.Logger
	DryRun      bool
}

func NewOrchestrator(opts Options) *Orchestrator {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NewLogReporter(opts.Logger)
	}
	mts := opts.Metrics
	if mts == nil {
		mts = &metrics.NoopMetrics{}
	}
	errors := opts.Errors
	if errors == nil {
		errors = observability.NewNoopErrorReporter()
	}

	return &Orchestrator{
		cfg:         opts.Config,
		tables:      opts.Tables,
		views:       opts.Views,
		source:      opts.Source,
		destination: opts.Destination,
		translator:  opts.Translator,
		reporter:    reporter,
		metrics:     mts,
		errors:      errors,
		logger:      common.LoggerWithComponent(opts.Logger, "orchestrator"),
		dryRun:      opts.DryRun,
	}
}

// Run executes one replication pass. The returned error is non-nil only for
// run-level failures: unreachable databases, a failed schema drop, or a
// failed schema creation. Per-target failures are reported and counted in
// the RunReport instead.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	o.metrics.SetRunInProgress(true)
	defer o.metrics.SetRunInProgress(false)

	o.reporter.RunStarted(report.RunID, len(o.tables), len(o.views))

	if err := o.source.Connect(ctx); err != nil {
		o.metrics.SetConnectionStatus("hana", false)
		return report, fmt.Errorf("source connection failed: %w", err)
	}
	o.metrics.SetConnectionStatus("hana", true)
	defer func() {
		if err := o.source.Close(); err != nil {
			o.logger.Warn("Failed to close source connection", zap.Error(err))
		}
		o.metrics.SetConnectionStatus("hana", false)
	}()

	if err := o.destination.Ping(ctx); err != nil {
		o.metrics.SetConnectionStatus("postgres", false)
		return report, fmt.Errorf("destination connection check failed: %w", err)
	}
	o.metrics.SetConnectionStatus("postgres", true)

	if o.dryRun {
		o.dryRunPlan(ctx)
		o.reporter.RunCompleted(report)
		return report, nil
	}

	schemas := o.referencedSchemas()

	if o.cfg.Reset {
		for _, schema := range schemas {
			if err := o.destination.DropSchema(ctx, schema); err != nil {
				o.captureRunError(ctx, err, "drop_schema", schema, report.RunID)
				return report, fmt.Errorf("reset failed: %w", err)
			}
			o.reporter.SchemaDropped(schema)
		}
	}

	for _, schema := range schemas {
		if err := o.destination.EnsureSchemaExists(ctx, schema); err != nil {
			o.captureRunError(ctx, err, "ensure_schema", schema, report.RunID)
			return report, fmt.Errorf("schema provisioning failed: %w", err)
		}
		o.reporter.SchemaProvisioned(schema)
	}

	for _, target := range o.tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := o.replicateTable(ctx, target, report)
		switch {
		case err != nil:
			report.TablesFailed++
			o.metrics.IncTablesFailed()
			o.reporter.TargetFailed(target, err)
			o.errors.CaptureError(ctx, err, observability.NewErrorContext("replicate", "replicate_table").
				WithSchema(target.Schema).
				WithTable(target.Name).
				WithRunID(report.RunID))
		case result == outcomeSkipped:
			report.TablesSkipped++
			o.metrics.IncTablesSkipped()
		default:
			report.TablesReplicated++
			o.metrics.IncTablesReplicated()
		}
	}

	for _, target := range o.views {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := o.replicateView(ctx, target)
		switch {
		case err != nil:
			report.ViewsFailed++
			o.metrics.IncViewsFailed()
			o.reporter.TargetFailed(target, err)
			o.errors.CaptureError(ctx, err, observability.NewErrorContext("replicate", "replicate_view").
				WithSchema(target.Schema).
				WithTable(target.Name).
				WithRunID(report.RunID))
		case result == outcomeSkipped:
			report.ViewsSkipped++
		default:
			report.ViewsCreated++
			o.metrics.IncViewsCreated()
		}
	}

	report.Duration = time.Since(report.StartedAt)
	o.reporter.RunCompleted(report)
	return report, nil
}

// dryRunPlan walks the configured targets read-only: it logs each table's
// source row count and whether each view has a usable definition, without
// touching the destination.
func (o *Orchestrator) dryRunPlan(ctx context.Context) {
	o.logger.Info("Dry run: connections verified, walking plan",
		zap.Int("tables", len(o.tables)),
		zap.Int("views", len(o.views)),
		zap.Strings("schemas", o.referencedSchemas()))

	for _, target := range o.tables {
		if ctx.Err() != nil {
			return
		}
		columns := o.source.Columns(ctx, target.Schema, target.Name)
		if len(columns) == 0 {
			o.logger.Warn("Dry run: table has no column metadata, would skip",
				zap.String("schema", target.Schema),
				zap.String("table", target.Name))
			continue
		}
		o.logger.Info("Dry run: table would be replicated",
			zap.String("schema", target.Schema),
			zap.String("table", target.Name),
			zap.Int("columns", len(columns)),
			zap.Int64("source_rows", o.source.RowCount(ctx, target.Schema, target.Name)))
	}

	for _, target := range o.views {
		if ctx.Err() != nil {
			return
		}
		if o.source.ViewDefinition(ctx, target.Schema, target.Name) == "" {
			o.logger.Warn("Dry run: view has no definition, would skip",
				zap.String("schema", target.Schema),
				zap.String("view", target.Name))
			continue
		}
		o.logger.Info("Dry run: view would be created",
			zap.String("schema", target.Schema),
			zap.String("view", target.Name))
	}
}

type outcome int

const (
	outcomeReplicated outcome = iota
	outcomeSkipped
)

// replicateTable copies one table. A missing column set skips the table;
// every destination write failure is returned to the caller's per-target
// boundary.
func (o *Orchestrator) replicateTable(ctx context.Context, target config.Target, report *RunReport) (outcome, error) {
	started := time.Now()
	o.reporter.TargetStarted(target)

	columns := o.source.Columns(ctx, target.Schema, target.Name)
	if len(columns) == 0 {
		o.reporter.TargetSkipped(target, "no column metadata")
		return outcomeSkipped, nil
	}

	primaryKeys := o.source.PrimaryKeys(ctx, target.Schema, target.Name)
	columns = o.translator.TranslateColumns(columns)

	if err := o.destination.EnsureTableExists(ctx, target.Schema, target.Name, columns, primaryKeys); err != nil {
		return 0, err
	}

	sourceCount := o.source.RowCount(ctx, target.Schema, target.Name)

	if !o.cfg.Reset {
		destCount := o.destination.RowCount(ctx, target.Schema, target.Name)
		if destCount == sourceCount {
			o.reporter.TargetSkipped(target, "row counts match")
			return outcomeSkipped, nil
		}
		if err := o.destination.TruncateTable(ctx, target.Schema, target.Name); err != nil {
			return 0, err
		}
	}

	var copied int64
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		fetchStart := time.Now()
		chunk := o.source.FetchChunk(ctx, target.Schema, target.Name, o.cfg.ChunkSize, offset)
		o.metrics.ObserveSourceOperation("fetch_chunk", time.Since(fetchStart))
		if len(chunk) == 0 {
			break
		}

		insertStart := time.Now()
		inserted, err := o.destination.InsertBatch(ctx, target.Schema, target.Name, columns, chunk)
		o.metrics.ObserveDestinationOperation("insert_batch", time.Since(insertStart))
		if err != nil {
			return 0, err
		}

		copied += inserted
		offset += int64(o.cfg.ChunkSize)
		o.metrics.IncChunksTransferred(target.Schema, target.Name)
		o.reporter.ChunkProgress(target, copied, sourceCount)

		// A short chunk is end-of-data; only an exact multiple needs the
		// terminating empty fetch.
		if len(chunk) < o.cfg.ChunkSize {
			break
		}
	}

	report.RowsCopied += copied
	o.metrics.AddRowsCopied(copied)
	o.metrics.ObserveTableDuration(target.Schema, target.Name, time.Since(started))
	o.reporter.TableCompleted(target, copied)

	return outcomeReplicated, nil
}

// replicateView materializes one view. A missing or AS-less source
// definition skips the view; a destination failure propagates.
func (o *Orchestrator) replicateView(ctx context.Context, target config.Target) (outcome, error) {
	o.reporter.TargetStarted(target)

	definition := o.source.ViewDefinition(ctx, target.Schema, target.Name)
	if definition == "" {
		o.reporter.TargetSkipped(target, "no view definition")
		return outcomeSkipped, nil
	}

	if err := o.destination.CreateView(ctx, target.Schema, target.Name, definition); err != nil {
		return 0, err
	}

	o.reporter.ViewCreated(target)
	return outcomeReplicated, nil
}

// referencedSchemas returns the union of schemas across configured tables
// and views, first occurrence order.
func (o *Orchestrator) referencedSchemas() []string {
	seen := make(map[string]bool)
	var schemas []string

	for _, target := range append(append([]config.Target{}, o.tables...), o.views...) {
		if !seen[target.Schema] {
			seen[target.Schema] = true
			schemas = append(schemas, target.Schema)
		}
	}

	return schemas
}

func (o *Orchestrator) captureRunError(ctx context.Context, err error, operation, schema, runID string) {
	o.errors.CaptureError(ctx, err, observability.NewErrorContext("replicate", operation).
		WithSchema(schema).
		WithRunID(runID))
}
