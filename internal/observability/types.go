package observability

// Severity represents the severity level of an error or message.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrorContext provides contextual information for error reporting.
type ErrorContext struct {
	// Component identifies the application component where the error occurred.
	// Examples: "hana", "postgres", "replicate"
	Component string

	// Operation describes the specific operation that failed.
	// Examples: "fetch_chunk", "insert_batch", "create_view"
	Operation string

	// Schema is the schema name involved, if applicable.
	Schema string

	// Table is the table or view name involved, if applicable.
	Table string

	// RunID identifies the replication run, if applicable.
	RunID string

	// Extra contains any additional key-value pairs to include.
	Extra map[string]interface{}
}

// NewErrorContext creates a new ErrorContext with the given component and operation.
func NewErrorContext(component, operation string) *ErrorContext {
	return &ErrorContext{
		Component: component,
		Operation: operation,
		Extra:     make(map[string]interface{}),
	}
}

// WithSchema adds a schema to the error context.
func (ec *ErrorContext) WithSchema(schema string) *ErrorContext {
	ec.Schema = schema
	return ec
}

// WithTable adds a table or view name to the error context.
func (ec *ErrorContext) WithTable(table string) *ErrorContext {
	ec.Table = table
	return ec
}

// WithRunID adds a replication run identifier to the error context.
func (ec *ErrorContext) WithRunID(runID string) *ErrorContext {
	ec.RunID = runID
	return ec
}

// WithExtra adds extra key-value pairs to the error context.
func (ec *ErrorContext) WithExtra(key string, value interface{}) *ErrorContext {
	if ec.Extra == nil {
		ec.Extra = make(map[string]interface{})
	}
	ec.Extra[key] = value
	return ec
}

// ToMap converts the ErrorContext to a map for use with error reporting providers.
func (ec *ErrorContext) ToMap() map[string]interface{} {
	result := make(map[string]interface{})

	if ec.Component != "" {
		result["component"] = ec.Component
	}
	if ec.Operation != "" {
		result["operation"] = ec.Operation
	}
	if ec.Schema != "" {
		result["schema"] = ec.Schema
	}
	if ec.Table != "" {
		result["table"] = ec.Table
	}
	if ec.RunID != "" {
		result["run_id"] = ec.RunID
	}

	for k, v := range ec.Extra {
		result[k] = v
	}

	return result
}
