package security

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex matches valid SQL identifiers (alphanumeric + underscore, must start with letter or underscore)
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier validates that an identifier (schema name, table name, column name) is safe for SQL
// interpolation. This is critical for preventing SQL injection attacks since neither HANA nor PostgreSQL
// supports parameterized identifiers - only parameterized values.
//
// Validation rules:
// 1. Length: 1-127 characters (the HANA identifier limit; PostgreSQL truncates at 63 but never errors)
// 2. Format: Must match ^[a-zA-Z_][a-zA-Z0-9_]*$ (alphanumeric + underscore, starts with letter or underscore)
//
// Reserved words (SELECT, TABLE, etc.) are allowed because identifiers are always double-quoted before
// interpolation; quoted reserved words are valid identifiers in both dialects.
//
// Parameters:
//   - identifier: The identifier to validate (e.g., "ORDERS", "order_id", "SALES")
//   - identifierType: Human-readable type for error messages (e.g., "table name", "column name", "schema name")
//
// Returns:
//   - nil if valid
//   - error describing the validation failure
func ValidateIdentifier(identifier string, identifierType string) error {
	// Length check
	if len(identifier) == 0 {
		return fmt.Errorf("%s cannot be empty", identifierType)
	}
	if len(identifier) > 127 {
		return fmt.Errorf("%s too long (%d characters, max 127): %s", identifierType, len(identifier), identifier)
	}

	// Format check: must be alphanumeric + underscore, starting with letter or underscore
	if !identifierRegex.MatchString(identifier) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric and underscore allowed, must start with letter or underscore): %s", identifierType, identifier)
	}

	return nil
}

// EscapeIdentifier properly escapes a SQL identifier by:
// 1. Doubling any double quotes in the identifier (standard SQL escape sequence)
// 2. Wrapping the result in double quotes
//
// Both HANA and PostgreSQL use standard double-quote identifier quoting, so the
// same escaping serves both sides of the pipeline.
//
// Example:
//   - Input: `ORDERS`      -> Output: `"ORDERS"`
//   - Input: `my"table`    -> Output: `"my""table"`
//
// Note: This should ALWAYS be used in combination with ValidateIdentifier, not as a replacement.
func EscapeIdentifier(identifier string) string {
	// Escape double quotes by doubling them (standard SQL escape sequence)
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	// Wrap in double quotes
	return fmt.Sprintf(`"%s"`, escaped)
}

// ValidateAndEscapeIdentifier combines validation and escaping in a single operation.
// This is the recommended function to use for all SQL identifier interpolation.
//
// Parameters:
//   - identifier: The identifier to validate and escape
//   - identifierType: Human-readable type for error messages
//
// Returns:
//   - Escaped identifier ready for SQL interpolation (e.g., `"ORDERS"`)
//   - Error if validation fails
func ValidateAndEscapeIdentifier(identifier string, identifierType string) (string, error) {
	if err := ValidateIdentifier(identifier, identifierType); err != nil {
		return "", err
	}
	return EscapeIdentifier(identifier), nil
}

// ValidateIdentifiers validates multiple identifiers at once.
// Returns an error on the first validation failure.
//
// Parameters:
//   - identifiers: Map of identifier name -> identifier value (e.g., {"table": "ORDERS", "column": "ID"})
//
// Returns:
//   - nil if all identifiers are valid
//   - error on first validation failure
func ValidateIdentifiers(identifiers map[string]string) error {
	for identifierType, identifier := range identifiers {
		if err := ValidateIdentifier(identifier, identifierType); err != nil {
			return err
		}
	}
	return nil
}
