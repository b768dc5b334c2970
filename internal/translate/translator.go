package translate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
)

// Translator maps HANA catalog types to PostgreSQL column types and
// source row values to destination-safe SQL literals.
type Translator struct {
	logger *zap.Logger
}

func NewTranslator(logger *zap.Logger) *Translator {
	return &Translator{
		logger: common.LoggerWithComponent(logger, "translator"),
	}
}

// TranslateType maps a HANA DATA_TYPE_NAME to a PostgreSQL column type.
// The mapping is total: any type name absent from the table falls back to
// text. DECIMAL interpolates the catalog-reported length as precision with
// a fixed scale of 2.
func (t *Translator) TranslateType(sourceType string, length int) string {
	switch strings.ToUpper(strings.TrimSpace(sourceType)) {
	case "TINYINT", "SMALLINT":
		return "smallint"
	case "INTEGER", "INT":
		return "integer"
	case "BIGINT":
		return "bigint"
	case "DECIMAL", "SMALLDECIMAL":
		return fmt.Sprintf("numeric(%d,2)", length)
	case "REAL":
		return "real"
	case "DOUBLE", "FLOAT":
		return "double precision"
	case "BOOLEAN":
		return "boolean"

	case "CHAR", "NCHAR":
		return fmt.Sprintf("char(%d)", length)
	case "VARCHAR", "NVARCHAR", "ALPHANUM", "SHORTTEXT":
		return fmt.Sprintf("varchar(%d)", length)
	case "TEXT", "CLOB", "NCLOB":
		return "text"

	case "BLOB", "VARBINARY", "BINARY":
		return "bytea"

	case "DATE":
		return "date"
	case "TIME":
		return "time"
	case "SECONDDATE", "TIMESTAMP", "LONGDATE":
		return "timestamp"

	default:
		t.logger.Warn("Unknown HANA type, defaulting to text",
			zap.String("hana_type", sourceType))
		return "text"
	}
}

// TranslateColumns fills DestinationType on each descriptor in place and
// returns the same slice for chaining.
func (t *Translator) TranslateColumns(columns []common.ColumnDescriptor) []common.ColumnDescriptor {
	for i := range columns {
		columns[i].DestinationType = t.TranslateType(columns[i].SourceType, columns[i].Length)
	}
	return columns
}

// FormatValue renders a row value as a SQL literal for the given destination
// column type. It is used where values must be embedded as text (diagnostic
// statements); the insertion path binds parameters instead. Quote doubling is
// the only escaping performed, so destinationType must come from TranslateType,
// never from user input.
func FormatValue(value any, destinationType string) string {
	if value == nil {
		return "NULL"
	}

	text := fmt.Sprintf("%v", value)
	if text == "" {
		return "NULL"
	}

	switch {
	case isTextType(destinationType):
		escaped := strings.ReplaceAll(strings.TrimSpace(text), "'", "''")
		return fmt.Sprintf("'%s'", escaped)
	case isTemporalType(destinationType):
		return fmt.Sprintf("'%s'", text)
	case isNumericType(destinationType):
		return text
	default:
		escaped := strings.ReplaceAll(text, "'", "''")
		return fmt.Sprintf("'%s'", escaped)
	}
}

func isTextType(destinationType string) bool {
	return destinationType == "text" ||
		strings.HasPrefix(destinationType, "char(") ||
		strings.HasPrefix(destinationType, "varchar(")
}

func isTemporalType(destinationType string) bool {
	return destinationType == "date" ||
		destinationType == "time" ||
		destinationType == "timestamp"
}

func isNumericType(destinationType string) bool {
	return destinationType == "smallint" ||
		destinationType == "integer" ||
		destinationType == "bigint" ||
		destinationType == "real" ||
		destinationType == "double precision" ||
		destinationType == "boolean" ||
		strings.HasPrefix(destinationType, "numeric(")
}

// Chunk partitions items into consecutive slices of at most size elements,
// preserving order. The last slice may be shorter. size must be positive.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
