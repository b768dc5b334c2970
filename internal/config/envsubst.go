package config

import (
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches environment variable references in the following formats:
// - ${VAR} - standard syntax
// - $VAR - shorthand syntax (word characters only)
// - ${VAR:-default} - with default value if unset or empty
// - ${VAR:?error message} - required variable with error message
var envVarPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(?:(:[-?])([^}]*))?\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// expandEnvWithDefaults expands environment variables in the input string.
// It supports the following syntax:
//   - ${VAR} or $VAR: Substitute with the value of VAR (empty string if unset)
//   - ${VAR:-default}: Use "default" if VAR is unset or empty
//   - ${VAR:?error message}: Fail with error if VAR is unset or empty
func expandEnvWithDefaults(input string) (string, error) {
	var expansionErr error

	result := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		if expansionErr != nil {
			return match
		}

		expanded, err := resolveEnvRef(match)
		if err != nil {
			expansionErr = err
			return match
		}
		return expanded
	})

	if expansionErr != nil {
		return "", expansionErr
	}

	return result, nil
}

// resolveEnvRef resolves a single matched variable reference.
func resolveEnvRef(match string) (string, error) {
	submatches := envVarPattern.FindStringSubmatch(match)
	if submatches == nil {
		return match, nil
	}

	// submatches[1] = variable name for ${VAR...} syntax
	// submatches[2] = operator (":-" or ":?")
	// submatches[3] = default value or error message
	// submatches[4] = variable name for $VAR syntax

	varName := submatches[1]
	operator := submatches[2]
	operand := submatches[3]
	if submatches[4] != "" {
		varName = submatches[4]
		operator, operand = "", ""
	}

	value := os.Getenv(varName)

	switch operator {
	case ":-":
		// Use default if unset or empty
		if value == "" {
			return operand, nil
		}
		return value, nil
	case ":?":
		// Require variable to be set and non-empty
		if value == "" {
			if operand != "" {
				return "", fmt.Errorf("environment variable %s is required: %s", varName, operand)
			}
			return "", fmt.Errorf("environment variable %s is required but not set", varName)
		}
		return value, nil
	default:
		// Standard substitution (empty string if unset)
		return value, nil
	}
}
