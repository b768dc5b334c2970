package translate

import (
	"testing"

	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
)

func TestTranslateType(t *testing.T) {
	tests := []struct {
		name       string
		sourceType string
		length     int
		want       string
	}{
		{
			name:       "tinyint widens to smallint",
			sourceType: "TINYINT",
			length:     3,
			want:       "smallint",
		},
		{
			name:       "smallint",
			sourceType: "SMALLINT",
			length:     5,
			want:       "smallint",
		},
		{
			name:       "integer",
			sourceType: "INTEGER",
			length:     10,
			want:       "integer",
		},
		{
			name:       "bigint",
			sourceType: "BIGINT",
			length:     19,
			want:       "bigint",
		},
		{
			name:       "decimal interpolates length as precision",
			sourceType: "DECIMAL",
			length:     15,
			want:       "numeric(15,2)",
		},
		{
			name:       "smalldecimal",
			sourceType: "SMALLDECIMAL",
			length:     16,
			want:       "numeric(16,2)",
		},
		{
			name:       "real",
			sourceType: "REAL",
			length:     7,
			want:       "real",
		},
		{
			name:       "double",
			sourceType: "DOUBLE",
			length:     15,
			want:       "double precision",
		},
		{
			name:       "boolean",
			sourceType: "BOOLEAN",
			length:     1,
			want:       "boolean",
		},
		{
			name:       "nvarchar keeps length",
			sourceType: "NVARCHAR",
			length:     200,
			want:       "varchar(200)",
		},
		{
			name:       "varchar keeps length",
			sourceType: "VARCHAR",
			length:     50,
			want:       "varchar(50)",
		},
		{
			name:       "alphanum",
			sourceType: "ALPHANUM",
			length:     10,
			want:       "varchar(10)",
		},
		{
			name:       "nchar keeps length",
			sourceType: "NCHAR",
			length:     8,
			want:       "char(8)",
		},
		{
			name:       "nclob",
			sourceType: "NCLOB",
			length:     0,
			want:       "text",
		},
		{
			name:       "blob",
			sourceType: "BLOB",
			length:     0,
			want:       "bytea",
		},
		{
			name:       "date",
			sourceType: "DATE",
			length:     0,
			want:       "date",
		},
		{
			name:       "seconddate",
			sourceType: "SECONDDATE",
			length:     0,
			want:       "timestamp",
		},
		{
			name:       "timestamp",
			sourceType: "TIMESTAMP",
			length:     0,
			want:       "timestamp",
		},
		{
			name:       "lowercase input accepted",
			sourceType: "nvarchar",
			length:     30,
			want:       "varchar(30)",
		},
		{
			name:       "surrounding whitespace trimmed",
			sourceType: " INTEGER ",
			length:     10,
			want:       "integer",
		},
		{
			name:       "unknown type falls back to text",
			sourceType: "ST_GEOMETRY",
			length:     0,
			want:       "text",
		},
		{
			name:       "empty type falls back to text",
			sourceType: "",
			length:     0,
			want:       "text",
		},
	}

	translator := NewTranslator(zap.NewNop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translator.TranslateType(tt.sourceType, tt.length)
			if got == "" {
				t.Fatalf("TranslateType() returned empty type")
			}
			if got != tt.want {
				t.Errorf("TranslateType() = %q, want %q", got, tt.want)
			}

			// Same inputs must yield the same output on a second call
			if again := translator.TranslateType(tt.sourceType, tt.length); again != got {
				t.Errorf("TranslateType() not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestTranslateColumns(t *testing.T) {
	translator := NewTranslator(zap.NewNop())

	columns := []common.ColumnDescriptor{
		{Name: "ID", SourceType: "BIGINT", Length: 19},
		{Name: "NAME", SourceType: "NVARCHAR", Length: 100},
		{Name: "AMOUNT", SourceType: "DECIMAL", Length: 12},
	}

	got := translator.TranslateColumns(columns)

	wantTypes := []string{"bigint", "varchar(100)", "numeric(12,2)"}
	for i, want := range wantTypes {
		if got[i].DestinationType != want {
			t.Errorf("column %s destination type = %q, want %q", got[i].Name, got[i].DestinationType, want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		destinationType string
		want            string
	}{
		{
			name:            "nil is NULL",
			value:           nil,
			destinationType: "varchar(50)",
			want:            "NULL",
		},
		{
			name:            "empty string is NULL",
			value:           "",
			destinationType: "varchar(50)",
			want:            "NULL",
		},
		{
			name:            "empty string is NULL for numeric types too",
			value:           "",
			destinationType: "integer",
			want:            "NULL",
		},
		{
			name:            "text value is quoted",
			value:           "hello",
			destinationType: "varchar(50)",
			want:            "'hello'",
		},
		{
			name:            "embedded quotes doubled",
			value:           "O'Brien",
			destinationType: "varchar(50)",
			want:            "'O''Brien'",
		},
		{
			name:            "text value trimmed",
			value:           "  padded  ",
			destinationType: "text",
			want:            "'padded'",
		},
		{
			name:            "char type quoted",
			value:           "AB",
			destinationType: "char(2)",
			want:            "'AB'",
		},
		{
			name:            "timestamp quoted without trimming",
			value:           "2024-01-15 10:30:00",
			destinationType: "timestamp",
			want:            "'2024-01-15 10:30:00'",
		},
		{
			name:            "date quoted",
			value:           "2024-01-15",
			destinationType: "date",
			want:            "'2024-01-15'",
		},
		{
			name:            "integer unquoted",
			value:           42,
			destinationType: "integer",
			want:            "42",
		},
		{
			name:            "numeric unquoted",
			value:           "123.45",
			destinationType: "numeric(10,2)",
			want:            "123.45",
		},
		{
			name:            "double unquoted",
			value:           3.5,
			destinationType: "double precision",
			want:            "3.5",
		},
		{
			name:            "unknown destination type quoted as text",
			value:           "raw",
			destinationType: "bytea",
			want:            "'raw'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatValue(tt.value, tt.destinationType)
			if got != tt.want {
				t.Errorf("FormatValue(%v, %q) = %q, want %q", tt.value, tt.destinationType, got, tt.want)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{
			name:  "even split with short tail",
			items: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			size:  3,
			want:  [][]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10}},
		},
		{
			name:  "exact multiple",
			items: []int{1, 2, 3, 4},
			size:  2,
			want:  [][]int{{1, 2}, {3, 4}},
		},
		{
			name:  "size larger than input",
			items: []int{1, 2},
			size:  10,
			want:  [][]int{{1, 2}},
		},
		{
			name:  "empty input yields no chunks",
			items: []int{},
			size:  5,
			want:  [][]int{},
		},
		{
			name:  "size one",
			items: []int{1, 2, 3},
			size:  1,
			want:  [][]int{{1}, {2}, {3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.items, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() produced %d chunks, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if len(got[i]) != len(tt.want[i]) {
					t.Fatalf("chunk %d has %d items, want %d", i, len(got[i]), len(tt.want[i]))
				}
				for j := range tt.want[i] {
					if got[i][j] != tt.want[i][j] {
						t.Errorf("chunk[%d][%d] = %d, want %d", i, j, got[i][j], tt.want[i][j])
					}
				}
			}
		})
	}
}

func TestChunkNonPositiveSize(t *testing.T) {
	if got := Chunk([]int{1, 2, 3}, 0); got != nil {
		t.Errorf("Chunk(size=0) = %v, want nil", got)
	}
	if got := Chunk([]int{1, 2, 3}, -1); got != nil {
		t.Errorf("Chunk(size=-1) = %v, want nil", got)
	}
}

func BenchmarkTranslateType(b *testing.B) {
	translator := NewTranslator(zap.NewNop())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = translator.TranslateType("NVARCHAR", 255)
	}
}

func BenchmarkFormatValue(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = FormatValue("O'Brien", "varchar(50)")
	}
}
