package replicate

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
	"github.com/philippevezina/hana-mirror/internal/config"
	"github.com/philippevezina/hana-mirror/internal/translate"
)

type fakeSource struct {
	columns     map[string][]common.ColumnDescriptor
	primaryKeys map[string][]string
	rows        map[string][]common.Row
	views       map[string]string

	connectErr error
	fetchCalls map[string]int
	closed     bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		columns:     make(map[string][]common.ColumnDescriptor),
		primaryKeys: make(map[string][]string),
		rows:        make(map[string][]common.Row),
		views:       make(map[string]string),
		fetchCalls:  make(map[string]int),
	}
}

func key(schema, name string) string { return schema + "." + name }

func (s *fakeSource) Connect(ctx context.Context) error { return s.connectErr }
func (s *fakeSource) Ping(ctx context.Context) error    { return nil }
func (s *fakeSource) Close() error                      { s.closed = true; return nil }

func (s *fakeSource) Columns(ctx context.Context, schema, table string) []common.ColumnDescriptor {
	return s.columns[key(schema, table)]
}

func (s *fakeSource) PrimaryKeys(ctx context.Context, schema, table string) []string {
	return s.primaryKeys[key(schema, table)]
}

func (s *fakeSource) RowCount(ctx context.Context, schema, table string) int64 {
	return int64(len(s.rows[key(schema, table)]))
}

func (s *fakeSource) FetchChunk(ctx context.Context, schema, table string, chunkSize int, offset int64) common.Chunk {
	s.fetchCalls[key(schema, table)]++

	all := s.rows[key(schema, table)]
	if offset >= int64(len(all)) {
		return nil
	}
	end := offset + int64(chunkSize)
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return common.Chunk(all[offset:end])
}

func (s *fakeSource) ViewDefinition(ctx context.Context, schema, viewName string) string {
	return s.views[key(schema, viewName)]
}

type fakeDestination struct {
	rowCounts map[string]int64

	droppedSchemas  []string
	ensuredSchemas  []string
	createdTables   []string
	truncatedTables []string
	createdViews    map[string]string
	insertCalls     map[string]int
	insertedRows    map[string]int64

	insertErr     map[string]error
	createViewErr map[string]error
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		rowCounts:     make(map[string]int64),
		createdViews:  make(map[string]string),
		insertCalls:   make(map[string]int),
		insertedRows:  make(map[string]int64),
		insertErr:     make(map[string]error),
		createViewErr: make(map[string]error),
	}
}

func (d *fakeDestination) Ping(ctx context.Context) error { return nil }

func (d *fakeDestination) DropSchema(ctx context.Context, schema string) error {
	d.droppedSchemas = append(d.droppedSchemas, schema)
	return nil
}

func (d *fakeDestination) EnsureSchemaExists(ctx context.Context, schema string) error {
	d.ensuredSchemas = append(d.ensuredSchemas, schema)
	return nil
}

func (d *fakeDestination) EnsureTableExists(ctx context.Context, schema, table string, columns []common.ColumnDescriptor, primaryKeys []string) error {
	d.createdTables = append(d.createdTables, key(schema, table))
	return nil
}

func (d *fakeDestination) RowCount(ctx context.Context, schema, table string) int64 {
	if count, ok := d.rowCounts[key(schema, table)]; ok {
		return count
	}
	return 0
}

func (d *fakeDestination) TruncateTable(ctx context.Context, schema, table string) error {
	d.truncatedTables = append(d.truncatedTables, key(schema, table))
	return nil
}

func (d *fakeDestination) InsertBatch(ctx context.Context, schema, table string, columns []common.ColumnDescriptor, chunk common.Chunk) (int64, error) {
	d.insertCalls[key(schema, table)]++
	if err := d.insertErr[key(schema, table)]; err != nil {
		return 0, err
	}
	d.insertedRows[key(schema, table)] += int64(len(chunk))
	return int64(len(chunk)), nil
}

func (d *fakeDestination) CreateView(ctx context.Context, schema, viewName, definition string) error {
	if err := d.createViewErr[key(schema, viewName)]; err != nil {
		return err
	}
	d.createdViews[key(schema, viewName)] = definition
	return nil
}

func makeRows(n int) []common.Row {
	rows := make([]common.Row, n)
	for i := range rows {
		rows[i] = common.Row{"ID": int64(i + 1), "NAME": fmt.Sprintf("row-%d", i+1)}
	}
	return rows
}

var testColumns = []common.ColumnDescriptor{
	{Name: "ID", SourceType: "BIGINT", Length: 19},
	{Name: "NAME", SourceType: "NVARCHAR", Length: 50},
}

func newOrchestrator(src *fakeSource, dst *fakeDestination, cfg *config.ReplicateConfig, tables, views []config.Target) *Orchestrator {
	logger := zap.NewNop()
	return NewOrchestrator(Options{
		Config:      cfg,
		Tables:      tables,
		Views:       views,
		Source:      src,
		Destination: dst,
		Translator:  translate.NewTranslator(logger),
		Logger:      logger,
	})
}

func TestRunChunkedTransfer(t *testing.T) {
	// 10 source rows with chunk size 3 must issue ceil(10/3) = 4 fetches
	// (the last one short) and copy all 10 rows.
	src := newFakeSource()
	src.columns["SALES.ORDERS"] = testColumns
	src.primaryKeys["SALES.ORDERS"] = []string{"ID"}
	src.rows["SALES.ORDERS"] = makeRows(10)

	dst := newFakeDestination()
	dst.rowCounts["SALES.ORDERS"] = 4 // out of sync, forces reload

	cfg := &config.ReplicateConfig{ChunkSize: 3}
	tables := []config.Target{{Schema: "SALES", Name: "ORDERS"}}

	report, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if src.fetchCalls["SALES.ORDERS"] != 4 {
		t.Errorf("fetch calls = %d, want 4", src.fetchCalls["SALES.ORDERS"])
	}
	if dst.insertedRows["SALES.ORDERS"] != 10 {
		t.Errorf("inserted rows = %d, want 10", dst.insertedRows["SALES.ORDERS"])
	}
	if len(dst.truncatedTables) != 1 {
		t.Errorf("truncated tables = %v, want one entry", dst.truncatedTables)
	}
	if report.TablesReplicated != 1 || report.TablesFailed != 0 || report.TablesSkipped != 0 {
		t.Errorf("report = %+v, want one replicated table", report)
	}
	if report.RowsCopied != 10 {
		t.Errorf("report.RowsCopied = %d, want 10", report.RowsCopied)
	}
	if !src.closed {
		t.Error("source connection was not closed")
	}
}

func TestRunExactChunkMultiple(t *testing.T) {
	// 6 rows with chunk size 3: two full fetches plus one empty terminator.
	src := newFakeSource()
	src.columns["SALES.ORDERS"] = testColumns
	src.rows["SALES.ORDERS"] = makeRows(6)

	dst := newFakeDestination()
	dst.rowCounts["SALES.ORDERS"] = 1

	cfg := &config.ReplicateConfig{ChunkSize: 3}
	tables := []config.Target{{Schema: "SALES", Name: "ORDERS"}}

	if _, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if src.fetchCalls["SALES.ORDERS"] != 3 {
		t.Errorf("fetch calls = %d, want 3", src.fetchCalls["SALES.ORDERS"])
	}
	if dst.insertedRows["SALES.ORDERS"] != 6 {
		t.Errorf("inserted rows = %d, want 6", dst.insertedRows["SALES.ORDERS"])
	}
}

func TestRunSkipsTableWhenCountsMatch(t *testing.T) {
	src := newFakeSource()
	src.columns["SALES.ORDERS"] = testColumns
	src.rows["SALES.ORDERS"] = makeRows(7)

	dst := newFakeDestination()
	dst.rowCounts["SALES.ORDERS"] = 7

	cfg := &config.ReplicateConfig{ChunkSize: 100}
	tables := []config.Target{{Schema: "SALES", Name: "ORDERS"}}

	report, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if src.fetchCalls["SALES.ORDERS"] != 0 {
		t.Errorf("fetch calls = %d, want 0 for in-sync table", src.fetchCalls["SALES.ORDERS"])
	}
	if dst.insertCalls["SALES.ORDERS"] != 0 {
		t.Errorf("insert calls = %d, want 0 for in-sync table", dst.insertCalls["SALES.ORDERS"])
	}
	if len(dst.truncatedTables) != 0 {
		t.Errorf("truncated tables = %v, want none", dst.truncatedTables)
	}
	if report.TablesSkipped != 1 {
		t.Errorf("report.TablesSkipped = %d, want 1", report.TablesSkipped)
	}
}

func TestRunResetBypassesReconciliation(t *testing.T) {
	// With reset active the schema is dropped and the table reloaded even
	// though source and destination counts match.
	src := newFakeSource()
	src.columns["SALES.ORDERS"] = testColumns
	src.rows["SALES.ORDERS"] = makeRows(5)

	dst := newFakeDestination()
	dst.rowCounts["SALES.ORDERS"] = 5

	cfg := &config.ReplicateConfig{ChunkSize: 10, Reset: true}
	tables := []config.Target{{Schema: "SALES", Name: "ORDERS"}}

	report, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if len(dst.droppedSchemas) != 1 || dst.droppedSchemas[0] != "SALES" {
		t.Errorf("dropped schemas = %v, want [SALES]", dst.droppedSchemas)
	}
	if len(dst.ensuredSchemas) != 1 || dst.ensuredSchemas[0] != "SALES" {
		t.Errorf("ensured schemas = %v, want [SALES]", dst.ensuredSchemas)
	}
	if dst.insertedRows["SALES.ORDERS"] != 5 {
		t.Errorf("inserted rows = %d, want full reload of 5", dst.insertedRows["SALES.ORDERS"])
	}
	if len(dst.truncatedTables) != 0 {
		t.Errorf("truncated tables = %v, want none under reset", dst.truncatedTables)
	}
	if report.TablesReplicated != 1 {
		t.Errorf("report.TablesReplicated = %d, want 1", report.TablesReplicated)
	}
}

func TestRunSkipsTableWithoutColumns(t *testing.T) {
	src := newFakeSource()
	// No column metadata registered for the target
	src.rows["SALES.GHOST"] = makeRows(3)

	dst := newFakeDestination()

	cfg := &config.ReplicateConfig{ChunkSize: 10}
	tables := []config.Target{{Schema: "SALES", Name: "GHOST"}}

	report, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if len(dst.createdTables) != 0 {
		t.Errorf("created tables = %v, want none", dst.createdTables)
	}
	if src.fetchCalls["SALES.GHOST"] != 0 {
		t.Errorf("fetch calls = %d, want 0", src.fetchCalls["SALES.GHOST"])
	}
	if dst.insertCalls["SALES.GHOST"] != 0 {
		t.Errorf("insert calls = %d, want 0", dst.insertCalls["SALES.GHOST"])
	}
	if report.TablesSkipped != 1 || report.TablesFailed != 0 {
		t.Errorf("report = %+v, want one skipped table and no failures", report)
	}
}

func TestRunTableFailureDoesNotAbortRun(t *testing.T) {
	src := newFakeSource()
	src.columns["SALES.ORDERS"] = testColumns
	src.rows["SALES.ORDERS"] = makeRows(4)
	src.columns["SALES.CUSTOMERS"] = testColumns
	src.rows["SALES.CUSTOMERS"] = makeRows(2)

	dst := newFakeDestination()
	dst.rowCounts["SALES.ORDERS"] = 1
	dst.rowCounts["SALES.CUSTOMERS"] = 1
	dst.insertErr["SALES.ORDERS"] = fmt.Errorf("connection reset")

	cfg := &config.ReplicateConfig{ChunkSize: 10}
	tables := []config.Target{
		{Schema: "SALES", Name: "ORDERS"},
		{Schema: "SALES", Name: "CUSTOMERS"},
	}

	report, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if report.TablesFailed != 1 {
		t.Errorf("report.TablesFailed = %d, want 1", report.TablesFailed)
	}
	if report.TablesReplicated != 1 {
		t.Errorf("report.TablesReplicated = %d, want 1", report.TablesReplicated)
	}
	if dst.insertedRows["SALES.CUSTOMERS"] != 2 {
		t.Errorf("second table inserted rows = %d, want 2", dst.insertedRows["SALES.CUSTOMERS"])
	}
}

func TestRunSourceConnectFailureAborts(t *testing.T) {
	src := newFakeSource()
	src.connectErr = fmt.Errorf("refused")

	dst := newFakeDestination()

	cfg := &config.ReplicateConfig{ChunkSize: 10}
	tables := []config.Target{{Schema: "SALES", Name: "ORDERS"}}

	if _, err := newOrchestrator(src, dst, cfg, tables, nil).Run(context.Background()); err == nil {
		t.Fatal("Run() expected error on source connect failure")
	}
	if len(dst.ensuredSchemas) != 0 {
		t.Errorf("schemas provisioned despite connect failure: %v", dst.ensuredSchemas)
	}
}

func TestRunReplicatesViews(t *testing.T) {
	src := newFakeSource()
	src.views["SALES.V_ORDERS"] = `SELECT * FROM "SALES"."ORDERS"`
	src.views["SALES.V_BROKEN"] = `SELECT 1 FROM DUMMY`

	dst := newFakeDestination()
	dst.createViewErr["SALES.V_BROKEN"] = fmt.Errorf("syntax error")

	cfg := &config.ReplicateConfig{ChunkSize: 10}
	views := []config.Target{
		{Schema: "SALES", Name: "V_ORDERS"},
		{Schema: "SALES", Name: "V_BROKEN"},
		{Schema: "SALES", Name: "V_MISSING"}, // no definition in the catalog
	}

	report, err := newOrchestrator(src, dst, cfg, nil, views).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if report.ViewsCreated != 1 {
		t.Errorf("report.ViewsCreated = %d, want 1", report.ViewsCreated)
	}
	if report.ViewsFailed != 1 {
		t.Errorf("report.ViewsFailed = %d, want 1", report.ViewsFailed)
	}
	if report.ViewsSkipped != 1 {
		t.Errorf("report.ViewsSkipped = %d, want 1", report.ViewsSkipped)
	}
	if _, ok := dst.createdViews["SALES.V_ORDERS"]; !ok {
		t.Error("expected SALES.V_ORDERS to be created")
	}
}

func TestRunDryRunAppliesNothing(t *testing.T) {
	src := newFakeSource()
	src.columns["SALES.ORDERS"] = testColumns
	src.rows["SALES.ORDERS"] = makeRows(3)

	dst := newFakeDestination()

	logger := zap.NewNop()
	orch := NewOrchestrator(Options{
		Config:      &config.ReplicateConfig{ChunkSize: 10, Reset: true},
		Tables:      []config.Target{{Schema: "SALES", Name: "ORDERS"}},
		Source:      src,
		Destination: dst,
		Translator:  translate.NewTranslator(logger),
		Logger:      logger,
		DryRun:      true,
	})

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if len(dst.droppedSchemas)+len(dst.ensuredSchemas)+len(dst.createdTables) != 0 {
		t.Errorf("dry run touched the destination: %+v", dst)
	}
	if report.TablesReplicated != 0 {
		t.Errorf("report.TablesReplicated = %d, want 0", report.TablesReplicated)
	}
	if !src.closed {
		t.Error("source connection was not closed after dry run")
	}
}

func TestReferencedSchemas(t *testing.T) {
	cfg := &config.ReplicateConfig{ChunkSize: 10}
	orch := newOrchestrator(newFakeSource(), newFakeDestination(), cfg,
		[]config.Target{
			{Schema: "SALES", Name: "ORDERS"},
			{Schema: "FINANCE", Name: "LEDGER"},
			{Schema: "SALES", Name: "CUSTOMERS"},
		},
		[]config.Target{
			{Schema: "REPORTING", Name: "V_SUMMARY"},
			{Schema: "SALES", Name: "V_ORDERS"},
		})

	got := orch.referencedSchemas()
	want := []string{"SALES", "FINANCE", "REPORTING"}

	if len(got) != len(want) {
		t.Fatalf("referencedSchemas() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("referencedSchemas()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
