package cleaner

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyValue marks a field that had no text to coerce.
	ErrEmptyValue = errors.New("empty value")
	// ErrOutOfRange marks a number that is negative, infinite or NaN.
	ErrOutOfRange = errors.New("value out of range")
)

// CoercionError reports a raw field that could not be turned into a number.
// The cleaner substitutes the zero default and only counts these.
type CoercionError struct {
	Field string
	Value string
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Field names used in CoercionError and CleanStats.Coerced.
const (
	FieldRatingScore = "rating_score"
	FieldRatingCount = "rating_count"
	FieldPrice       = "price"
)

// ParsePrice converts a locale-formatted price such as "12.345,67 TL" to
// 12345.67. Dots are thousands separators, the comma is the decimal
// separator and only the first whitespace-delimited token is used. Any
// failure returns 0 with a *CoercionError.
func ParsePrice(raw string) (float64, error) {
	normalized := strings.ReplaceAll(raw, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return 0, &CoercionError{Field: FieldPrice, Value: raw, Err: ErrEmptyValue}
	}
	return parseNonNegative(FieldPrice, raw, tokens[0])
}

// ParseRatingScore parses the average rating, defaulting to 0.
func ParseRatingScore(raw string) (float64, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, &CoercionError{Field: FieldRatingScore, Value: raw, Err: ErrEmptyValue}
	}
	return parseNonNegative(FieldRatingScore, raw, text)
}

// ParseRatingCount parses the number of ratings, defaulting to 0. A decimal
// value is truncated toward zero.
func ParseRatingCount(raw string) (int, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, &CoercionError{Field: FieldRatingCount, Value: raw, Err: ErrEmptyValue}
	}

	if n, err := strconv.Atoi(text); err == nil {
		if n < 0 {
			return 0, &CoercionError{Field: FieldRatingCount, Value: raw, Err: ErrOutOfRange}
		}
		return n, nil
	}

	v, err := parseNonNegative(FieldRatingCount, raw, text)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, &CoercionError{Field: FieldRatingCount, Value: raw, Err: ErrOutOfRange}
	}
	return int(v), nil
}

func parseNonNegative(field, raw, text string) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &CoercionError{Field: field, Value: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, &CoercionError{Field: field, Value: raw, Err: ErrOutOfRange}
	}
	if v == 0 {
		// folds -0
		return 0, nil
	}
	return v, nil
}
