package common

// ColumnDescriptor describes one column of a replicated table. SourceType
// and Length come from the source catalog; DestinationType is filled in by
// the type translator before provisioning.
type ColumnDescriptor struct {
	Name            string
	SourceType      string
	Length          int
	DestinationType string
}

// Row maps column names to source-native values. Rows are transient: read
// from the source, written to the destination, then discarded.
type Row map[string]any

// Chunk is one bounded page of rows, the unit of transfer and of
// destination insertion batching.
type Chunk []Row
