package errors

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseThreshold parses a distance threshold given on the command line or in
// a query string. It must be a finite number strictly greater than zero.
func ParseThreshold(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, New(ErrCodeInvalidThreshold, "threshold must be a number, got %q", s)
	}
	if err := ValidateThreshold(v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateThreshold checks that a threshold is finite and positive.
func ValidateThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidThreshold, "threshold must be a finite number")
	}
	if v <= 0 {
		return New(ErrCodeInvalidThreshold, "threshold must be a positive number, got %v", v)
	}
	return nil
}

// ValidateMethodName validates a method name for use as an output file basename
// and a collection name. Names are lowercase ASCII letters, digits, '-' and '_'.
func ValidateMethodName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "method name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidConfig, "method name too long (max 64 characters)")
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLower(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return New(ErrCodeInvalidConfig, "method name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

// ValidatePath validates an output directory path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}
