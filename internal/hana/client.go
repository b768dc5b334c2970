package hana

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	_ "github.com/SAP/go-hdb/driver"
	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
	"github.com/philippevezina/hana-mirror/internal/config"
	"github.com/philippevezina/hana-mirror/internal/security"
)

// Client is the read-only accessor for the HANA source. Catalog lookups and
// chunk fetches degrade to empty results on failure: the failure is logged
// and the caller treats the target as absent instead of aborting the run.
// Only Connect reports hard errors.
type Client struct {
	cfg    *config.HANAConfig
	logger *zap.Logger
	db     *sql.DB

	// viewRewrites fully-qualifies bare cross-schema references found
	// verbatim in catalog view text. Applied in sorted key order.
	viewRewrites map[string]string
}

func NewClient(cfg *config.HANAConfig, viewRewrites map[string]string, logger *zap.Logger) *Client {
	return &Client{
		cfg:          cfg,
		logger:       common.LoggerWithComponent(logger, "hana"),
		viewRewrites: viewRewrites,
	}
}

// Connect opens the single source connection and verifies it with a ping.
func (c *Client) Connect(ctx context.Context) error {
	dsn := c.buildDSN()

	db, err := sql.Open("hdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open HANA connection: %w", err)
	}

	// One long-lived connection for the whole run
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping HANA at %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}

	c.db = db
	c.logger.Info("Connected to HANA",
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port),
		zap.String("database", c.cfg.Database))

	return nil
}

// buildDSN builds the hdb:// connection string, appending TLS parameters
// when a trust store is configured.
func (c *Client) buildDSN() string {
	params := url.Values{}
	if c.cfg.Database != "" {
		params.Set("database", c.cfg.Database)
	}
	if c.cfg.TLSRootCA != "" {
		params.Set("TLSRootCAFile", c.cfg.TLSRootCA)
		if c.cfg.TLSServerName != "" {
			params.Set("TLSServerName", c.cfg.TLSServerName)
		}
	}

	return fmt.Sprintf("hdb://%s:%s@%s:%d?%s",
		url.QueryEscape(c.cfg.Username),
		url.QueryEscape(c.cfg.Password),
		c.cfg.Host,
		c.cfg.Port,
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

// Columns reads column metadata from SYS.TABLE_COLUMNS in catalog position
// order. Returns an empty slice when the table has no catalog rows or the
// query fails.
func (c *Client) Columns(ctx context.Context, schema, table string) []common.ColumnDescriptor {
	schema, table = normalize(schema), normalize(table)
	if err := security.ValidateIdentifiers(map[string]string{"schema name": schema, "table name": table}); err != nil {
		c.logger.Warn("Rejected column lookup for invalid identifier", zap.Error(err))
		return nil
	}

	query := `SELECT COLUMN_NAME, DATA_TYPE_NAME, LENGTH
		FROM SYS.TABLE_COLUMNS
		WHERE SCHEMA_NAME = ? AND TABLE_NAME = ?
		ORDER BY POSITION`

	rows, err := c.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		c.logger.Warn("Column metadata lookup failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return nil
	}
	defer rows.Close()

	var columns []common.ColumnDescriptor
	for rows.Next() {
		var col common.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.SourceType, &col.Length); err != nil {
			c.logger.Warn("Failed to scan column metadata row",
				zap.String("schema", schema),
				zap.String("table", table),
				zap.Error(err))
			return nil
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		c.logger.Warn("Column metadata iteration failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return nil
	}

	return columns
}

// PrimaryKeys reads primary key column names ordered by key position.
// Returns an empty slice on absence or failure.
func (c *Client) PrimaryKeys(ctx context.Context, schema, table string) []string {
	schema, table = normalize(schema), normalize(table)
	if err := security.ValidateIdentifiers(map[string]string{"schema name": schema, "table name": table}); err != nil {
		c.logger.Warn("Rejected primary key lookup for invalid identifier", zap.Error(err))
		return nil
	}

	query := `SELECT cc.COLUMN_NAME
		FROM SYS.CONSTRAINTS cs
		INNER JOIN SYS.CONSTRAINT_COLUMNS cc
			ON cs.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND cs.SCHEMA_NAME = cc.SCHEMA_NAME
		WHERE cs.IS_PRIMARY_KEY = 'TRUE'
			AND cc.SCHEMA_NAME = ? AND cc.TABLE_NAME = ?
		ORDER BY cc.POSITION`

	rows, err := c.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		c.logger.Warn("Primary key lookup failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			c.logger.Warn("Failed to scan primary key row",
				zap.String("schema", schema),
				zap.String("table", table),
				zap.Error(err))
			return nil
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		c.logger.Warn("Primary key iteration failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return nil
	}

	return keys
}

// RowCount returns the exact source row count, or 0 on failure.
func (c *Client) RowCount(ctx context.Context, schema, table string) int64 {
	schema, table = normalize(schema), normalize(table)

	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		c.logger.Warn("Rejected row count for invalid schema name", zap.Error(err))
		return 0
	}
	escapedTable, err := security.ValidateAndEscapeIdentifier(table, "table name")
	if err != nil {
		c.logger.Warn("Rejected row count for invalid table name", zap.Error(err))
		return 0
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", escapedSchema, escapedTable)

	var count int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		c.logger.Warn("Source row count failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return 0
	}

	return count
}

// FetchChunk fetches one page of rows starting at offset, ordered ascending
// by the table's primary key columns. Without a primary key no ORDER BY is
// issued, so page boundaries are only as stable as the engine makes them.
// Returns an empty chunk on failure and on end-of-data.
func (c *Client) FetchChunk(ctx context.Context, schema, table string, chunkSize int, offset int64) common.Chunk {
	schema, table = normalize(schema), normalize(table)

	escapedSchema, err := security.ValidateAndEscapeIdentifier(schema, "schema name")
	if err != nil {
		c.logger.Warn("Rejected chunk fetch for invalid schema name", zap.Error(err))
		return nil
	}
	escapedTable, err := security.ValidateAndEscapeIdentifier(table, "table name")
	if err != nil {
		c.logger.Warn("Rejected chunk fetch for invalid table name", zap.Error(err))
		return nil
	}

	query := fmt.Sprintf("SELECT * FROM %s.%s", escapedSchema, escapedTable)

	if orderBy := c.orderByClause(ctx, schema, table); orderBy != "" {
		query += " " + orderBy
	}
	query += fmt.Sprintf(" OFFSET %d ROWS FETCH FIRST %d ROWS ONLY", offset, chunkSize)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.Warn("Chunk fetch failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Int64("offset", offset),
			zap.Error(err))
		return nil
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		c.logger.Warn("Failed to read chunk column names",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Error(err))
		return nil
	}

	var chunk common.Chunk
	for rows.Next() {
		values := make([]any, len(columnNames))
		pointers := make([]any, len(columnNames))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			c.logger.Warn("Failed to scan chunk row",
				zap.String("schema", schema),
				zap.String("table", table),
				zap.Int64("offset", offset),
				zap.Error(err))
			return nil
		}

		row := make(common.Row, len(columnNames))
		for i, name := range columnNames {
			// Driver byte slices are reused between scans
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		chunk = append(chunk, row)
	}
	if err := rows.Err(); err != nil {
		c.logger.Warn("Chunk iteration failed",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Int64("offset", offset),
			zap.Error(err))
		return nil
	}

	return chunk
}

// orderByClause re-derives the primary key and builds an ascending ORDER BY
// over its columns. Empty string when the table has no primary key.
func (c *Client) orderByClause(ctx context.Context, schema, table string) string {
	keys := c.PrimaryKeys(ctx, schema, table)
	if len(keys) == 0 {
		return ""
	}

	escaped := make([]string, 0, len(keys))
	for _, key := range keys {
		col, err := security.ValidateAndEscapeIdentifier(key, "column name")
		if err != nil {
			c.logger.Warn("Skipping invalid primary key column in ORDER BY",
				zap.String("schema", schema),
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		escaped = append(escaped, col)
	}
	if len(escaped) == 0 {
		return ""
	}

	return "ORDER BY " + strings.Join(escaped, ", ")
}

// ViewDefinition reads the raw view text from SYS.VIEWS and extracts the
// SELECT body after the first case-insensitive AS keyword. Known bare
// cross-schema references are qualified via the configured rewrites.
// Returns an empty string when the catalog has no row or no AS is found.
func (c *Client) ViewDefinition(ctx context.Context, schema, viewName string) string {
	schema, viewName = normalize(schema), normalize(viewName)
	if err := security.ValidateIdentifiers(map[string]string{"schema name": schema, "view name": viewName}); err != nil {
		c.logger.Warn("Rejected view lookup for invalid identifier", zap.Error(err))
		return ""
	}

	query := `SELECT DEFINITION FROM SYS.VIEWS WHERE SCHEMA_NAME = ? AND VIEW_NAME = ?`

	var definition sql.NullString
	if err := c.db.QueryRowContext(ctx, query, schema, viewName).Scan(&definition); err != nil {
		if err != sql.ErrNoRows {
			c.logger.Warn("View definition lookup failed",
				zap.String("schema", schema),
				zap.String("view", viewName),
				zap.Error(err))
		}
		return ""
	}
	if !definition.Valid {
		return ""
	}

	body := ExtractSelectBody(definition.String)
	if body == "" {
		c.logger.Warn("View definition has no AS clause",
			zap.String("schema", schema),
			zap.String("view", viewName))
		return ""
	}

	return c.applyRewrites(body)
}

func (c *Client) applyRewrites(text string) string {
	if len(c.viewRewrites) == 0 {
		return text
	}

	// Sorted for deterministic application order
	froms := make([]string, 0, len(c.viewRewrites))
	for from := range c.viewRewrites {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	for _, from := range froms {
		text = strings.ReplaceAll(text, from, c.viewRewrites[from])
	}
	return text
}

// ExtractSelectBody returns the substring after the first case-insensitive
// occurrence of the AS keyword, or empty string if none is present.
func ExtractSelectBody(definition string) string {
	upper := strings.ToUpper(definition)

	for start := 0; ; {
		idx := strings.Index(upper[start:], "AS")
		if idx < 0 {
			return ""
		}
		idx += start

		// Must be a standalone keyword, not part of an identifier
		beforeOK := idx == 0 || !isWordChar(upper[idx-1])
		afterOK := idx+2 >= len(upper) || !isWordChar(upper[idx+2])
		if beforeOK && afterOK {
			return strings.TrimSpace(definition[idx+2:])
		}

		start = idx + 2
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// normalize applies the catalog's uppercase convention to unquoted names.
func normalize(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}
