package replicate

import (
	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
	"github.com/philippevezina/hana-mirror/internal/config"
)

// Reporter receives progress events from the orchestrator, which never
// performs console I/O itself.
type Reporter interface {
	RunStarted(runID string, tables, views int)
	SchemaDropped(schema string)
	SchemaProvisioned(schema string)
	TargetStarted(target config.Target)
	TargetSkipped(target config.Target, reason string)
	ChunkProgress(target config.Target, copied, total int64)
	TableCompleted(target config.Target, rows int64)
	TargetFailed(target config.Target, err error)
	ViewCreated(target config.Target)
	RunCompleted(report *RunReport)
}

// LogReporter emits progress as structured log entries.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{
		logger: common.LoggerWithComponent(logger, "replicate"),
	}
}

func (r *LogReporter) RunStarted(runID string, tables, views int) {
	r.logger.Info("Replication run started",
		zap.String("run_id", runID),
		zap.Int("tables", tables),
		zap.Int("views", views))
}

func (r *LogReporter) SchemaDropped(schema string) {
	r.logger.Info("Dropped destination schema", zap.String("schema", schema))
}

func (r *LogReporter) SchemaProvisioned(schema string) {
	r.logger.Info("Provisioned destination schema", zap.String("schema", schema))
}

func (r *LogReporter) TargetStarted(target config.Target) {
	r.logger.Info("Replicating target", zap.String("target", target.String()))
}

func (r *LogReporter) TargetSkipped(target config.Target, reason string) {
	r.logger.Info("Skipped target",
		zap.String("target", target.String()),
		zap.String("reason", reason))
}

func (r *LogReporter) ChunkProgress(target config.Target, copied, total int64) {
	if total > 0 {
		r.logger.Info("Transfer progress",
			zap.String("target", target.String()),
			zap.Int64("rows_copied", copied),
			zap.Int64("rows_total", total),
			zap.Float64("percent", float64(copied)/float64(total)*100))
		return
	}
	r.logger.Info("Transfer progress",
		zap.String("target", target.String()),
		zap.Int64("rows_copied", copied))
}

func (r *LogReporter) TableCompleted(target config.Target, rows int64) {
	r.logger.Info("Table replicated",
		zap.String("target", target.String()),
		zap.Int64("rows", rows))
}

func (r *LogReporter) TargetFailed(target config.Target, err error) {
	r.logger.Error("Target failed",
		zap.String("target", target.String()),
		zap.Error(err))
}

func (r *LogReporter) ViewCreated(target config.Target) {
	r.logger.Info("View created", zap.String("target", target.String()))
}

func (r *LogReporter) RunCompleted(report *RunReport) {
	r.logger.Info("Replication run completed",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration),
		zap.Int("tables_replicated", report.TablesReplicated),
		zap.Int("tables_skipped", report.TablesSkipped),
		zap.Int("tables_failed", report.TablesFailed),
		zap.Int("views_created", report.ViewsCreated),
		zap.Int("views_skipped", report.ViewsSkipped),
		zap.Int("views_failed", report.ViewsFailed),
		zap.Int64("rows_copied", report.RowsCopied))
}

var _ Reporter = (*LogReporter)(nil)
