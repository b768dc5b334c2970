package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
	"github.com/philippevezina/hana-mirror/internal/config"
	"github.com/philippevezina/hana-mirror/internal/security"
	"github.com/philippevezina/hana-mirror/internal/translate"
)

// insertBatchSize is the number of rows per multi-row INSERT statement.
const insertBatchSize = 1000

// Client is the destination accessor. It holds the single live PostgreSQL
// connection for the process lifetime. Unlike source catalog reads, every
// write failure here propagates: a half-applied provisioning step must
// surface instead of degrading silently.
type Client struct {
	cfg    *config.PostgresConfig
	logger *zap.Logger
	db     *sql.DB
}

func NewClient(cfg *config.PostgresConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: common.LoggerWithComponent(logger, "postgres"),
	}
}

// Connect opens the destination connection and verifies it with a ping.
func (c *Client) Connect(ctx context.Context) error {
	dsn := c.buildDSN()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	// One long-lived connection for the whole run
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping PostgreSQL at %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}

	c.db = db
	c.logger.Info("Connected to PostgreSQL",
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port),
		zap.String("database", c.cfg.Database))

	return nil
}

func (c *Client) buildDSN() string {
	params := url.Values{}
	params.Set("sslmode", c.cfg.SSLMode)
	if c.cfg.ConnTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.cfg.ConnTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.cfg.Username),
		url.QueryEscape(c.cfg.Password),
		c.cfg.Host,
		c.cfg.Port,
		url.PathEscape(c.cfg.Database),
		params.Encode())
}

func (c *Client) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("not connected")
	}
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// DropSchema drops the schema and everything it contains if present.
func (c *Client) DropSchema(ctx context.Context, schema string) error {
	escaped, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", escaped)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", schema, err)
	}

	c.logger.Info("Dropped schema", zap.String("schema", schema))
	return nil
}

// EnsureSchemaExists creates the schema if absent. Idempotent.
func (c *Client) EnsureSchemaExists(ctx context.Context, schema string) error {
	escaped, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		return err
	}

	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", escaped)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	return nil
}

// EnsureTableExists creates the table if absent from the translated column
// set. Idempotent. primaryKeys is accepted for contract symmetry with the
// source but no primary key or unique constraint is declared, so
// truncate-and-reload can never trip a constraint violation mid-copy.
func (c *Client) EnsureTableExists(ctx context.Context, schema, table string, columns []common.ColumnDescriptor, primaryKeys []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("cannot create table %s.%s without columns", schema, table)
	}

	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		return err
	}
	escapedTable, err := security.ValidateAndEscapeIdentifier(table, "table name")
	if err != nil {
		return err
	}

	columnDefs := make([]string, 0, len(columns))
	for _, col := range columns {
		escapedCol, err := security.ValidateAndEscapeIdentifier(col.Name, "column name")
		if err != nil {
			return err
		}
		if col.DestinationType == "" {
			return fmt.Errorf("column %s of %s.%s has no destination type", col.Name, schema, table)
		}
		columnDefs = append(columnDefs, fmt.Sprintf("%s %s", escapedCol, col.DestinationType))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (\n  %s\n)",
		escapedSchema, escapedTable, strings.Join(columnDefs, ",\n  "))

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", schema, table, err)
	}

	return nil
}

// RowCount returns the exact destination row count, or -1 on failure so the
// caller can tell an error apart from a legitimately empty table.
func (c *Client) RowCount(ctx context.Context, schema, table string) int64 {
	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		c.logger.Warn("Rejected row count for invalid schema name", zap.Error(err))
		return -1
	}
	escapedTable, err := security.ValidateAndEscapeIdentifier(table, "table name")
	if err != nil {
		c.logger.Warn("Rejected row count for invalid table name", zap.Error(err))
		return -1
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", escapedSchema, escapedTable)

	var count int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		c.logger.Warn("Destination row count failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return -1
	}

	return count
}

// TruncateTable removes all rows from the destination table.
func (c *Client) TruncateTable(ctx context.Context, schema, table string) error {
	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		return err
	}
	escapedTable, err := security.ValidateAndEscapeIdentifier(table, "table name")
	if err != nil {
		return err
	}

	query := fmt.Sprintf("TRUNCATE TABLE %s.%s", escapedSchema, escapedTable)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate table %s.%s: %w", schema, table, err)
	}

	return nil
}

// InsertBatch inserts a chunk in sub-batches of insertBatchSize rows, one
// parameterized multi-row INSERT per sub-batch, and returns the summed
// affected-row count. An empty chunk returns 0 without touching the
// database. A sub-batch whose bound parameter count does not match
// columns x rows is skipped with a logged error; a database-level failure
// is fatal to the calling replication pass.
func (c *Client) InsertBatch(ctx context.Context, schema, table string, columns []common.ColumnDescriptor, chunk common.Chunk) (int64, error) {
	if len(chunk) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("cannot insert into %s.%s without columns", schema, table)
	}

	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		return 0, err
	}
	escapedTable, err := security.ValidateAndEscapeIdentifier(table, "table name")
	if err != nil {
		return 0, err
	}

	escapedColumns := make([]string, 0, len(columns))
	for _, col := range columns {
		escapedCol, err := security.ValidateAndEscapeIdentifier(col.Name, "column name")
		if err != nil {
			return 0, err
		}
		escapedColumns = append(escapedColumns, escapedCol)
	}

	var total int64
	for _, subBatch := range translate.Chunk(chunk, insertBatchSize) {
		query, args := buildInsert(escapedSchema, escapedTable, escapedColumns, columns, subBatch)

		if len(args) != len(columns)*len(subBatch) {
			c.logger.Error("Skipping sub-batch with mismatched parameter count",
				zap.String("schema", schema),
				zap.String("table", table),
				zap.Int("expected", len(columns)*len(subBatch)),
				zap.Int("actual", len(args)))
			continue
		}

		result, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			c.logger.Error("Batch insert failed",
				zap.String("schema", schema),
				zap.String("table", table),
				zap.String("statement", query),
				zap.Int("rows", len(subBatch)),
				zap.Error(err))
			return total, fmt.Errorf("failed to insert into %s.%s: %w", schema, table, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to read affected rows for %s.%s: %w", schema, table, err)
		}
		total += affected
	}

	return total, nil
}

// buildInsert builds one multi-row INSERT with positional parameters bound
// from each row's values in column order.
func buildInsert(escapedSchema, escapedTable string, escapedColumns []string, columns []common.ColumnDescriptor, rows common.Chunk) (string, []any) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES ",
		escapedSchema, escapedTable, strings.Join(escapedColumns, ", ")))

	args := make([]any, 0, len(columns)*len(rows))
	placeholder := 1

	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("$%d", placeholder))
			placeholder++
			args = append(args, row[col.Name])
		}
		sb.WriteString(")")
	}

	return sb.String(), args
}

// CreateView strips the source dialect's trailing read-only clause and
// materializes the view with CREATE OR REPLACE.
func (c *Client) CreateView(ctx context.Context, schema, viewName, definition string) error {
	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		return err
	}
	escapedView, err := security.ValidateAndEscapeIdentifier(viewName, "view name")
	if err != nil {
		return err
	}

	body := StripReadOnlyClause(definition)
	if body == "" {
		return fmt.Errorf("view %s.%s has an empty definition", schema, viewName)
	}

	query := fmt.Sprintf("CREATE OR REPLACE VIEW %s.%s AS %s", escapedSchema, escapedView, body)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create view %s.%s: %w", schema, viewName, err)
	}

	return nil
}

// StripReadOnlyClause removes a trailing WITH READ ONLY clause and any
// trailing semicolon from source view text.
func StripReadOnlyClause(definition string) string {
	body := strings.TrimSpace(definition)
	body = strings.TrimSuffix(body, ";")
	body = strings.TrimSpace(body)

	upper := strings.ToUpper(body)
	if idx := strings.LastIndex(upper, "WITH READ ONLY"); idx >= 0 && strings.TrimSpace(upper[idx+len("WITH READ ONLY"):]) == "" {
		body = strings.TrimSpace(body[:idx])
	}

	return body
}
