package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	tablesReplicated      prometheus.Counter
	tablesSkipped         prometheus.Counter
	tablesFailed          prometheus.Counter
	viewsCreated          prometheus.Counter
	viewsFailed           prometheus.Counter
	chunksTransferred     *prometheus.CounterVec
	rowsCopied            prometheus.Counter
	sourceOpDuration      *prometheus.HistogramVec
	destinationOpDuration *prometheus.HistogramVec
	tableDuration         *prometheus.HistogramVec
	connectionStatus      *prometheus.GaugeVec
	runInProgress         prometheus.Gauge
}

func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		tablesReplicated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hana_mirror_tables_replicated_total",
			Help: "Total number of tables fully replicated",
		}),
		tablesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hana_mirror_tables_skipped_total",
			Help: "Total number of tables skipped as already in sync or lacking metadata",
		}),
		tablesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hana_mirror_tables_failed_total",
			Help: "Total number of tables whose replication failed",
		}),
		viewsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hana_mirror_views_created_total",
			Help: "Total number of views created in the destination",
		}),
		viewsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hana_mirror_views_failed_total",
			Help: "Total number of views whose creation failed",
		}),
		chunksTransferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hana_mirror_chunks_transferred_total",
			Help: "Total number of chunks fetched and inserted per table",
		}, []string{"schema", "table"}),
		rowsCopied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hana_mirror_rows_copied_total",
			Help: "Total number of rows copied to the destination",
		}),
		sourceOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hana_mirror_source_operation_duration_seconds",
			Help:    "Duration of HANA operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation_type"}),
		destinationOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hana_mirror_destination_operation_duration_seconds",
			Help:    "Duration of PostgreSQL operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation_type"}),
		tableDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hana_mirror_table_duration_seconds",
			Help:    "End-to-end duration per replicated table in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"schema", "table"}),
		connectionStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hana_mirror_connection_status",
			Help: "Connection status (1 = connected, 0 = disconnected)",
		}, []string{"database_type"}),
		runInProgress: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hana_mirror_run_in_progress",
			Help: "Whether a replication run is currently in progress",
		}),
	}
}

func (m *PrometheusMetrics) IncTablesReplicated() {
	m.tablesReplicated.Inc()
}

func (m *PrometheusMetrics) IncTablesSkipped() {
	m.tablesSkipped.Inc()
}

func (m *PrometheusMetrics) IncTablesFailed() {
	m.tablesFailed.Inc()
}

func (m *PrometheusMetrics) IncViewsCreated() {
	m.viewsCreated.Inc()
}

func (m *PrometheusMetrics) IncViewsFailed() {
	m.viewsFailed.Inc()
}

func (m *PrometheusMetrics) IncChunksTransferred(schema, table string) {
	m.chunksTransferred.WithLabelValues(schema, table).Inc()
}

func (m *PrometheusMetrics) AddRowsCopied(count int64) {
	m.rowsCopied.Add(float64(count))
}

func (m *PrometheusMetrics) ObserveSourceOperation(operationType string, duration time.Duration) {
	m.sourceOpDuration.WithLabelValues(operationType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObserveDestinationOperation(operationType string, duration time.Duration) {
	m.destinationOpDuration.WithLabelValues(operationType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObserveTableDuration(schema, table string, duration time.Duration) {
	m.tableDuration.WithLabelValues(schema, table).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetConnectionStatus(dbType string, connected bool) {
	status := 0.0
	if connected {
		status = 1.0
	}
	m.connectionStatus.WithLabelValues(dbType).Set(status)
}

func (m *PrometheusMetrics) SetRunInProgress(running bool) {
	if running {
		m.runInProgress.Set(1)
	} else {
		m.runInProgress.Set(0)
	}
}
