package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"scpulse/pkg/contracts/domain"
)

// dateLayouts are the formats ingestion adapters are known to emit.
// Spreadsheet cells arrive as strings in one of these.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// fieldError carries a stable reason code plus a human detail.
type fieldError struct {
	reason string
	detail string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.reason, e.detail)
}

func missingField(name string) *fieldError {
	return &fieldError{reason: ReasonMissingField, detail: fmt.Sprintf("field %q is required", name)}
}

func badType(name string, v any) *fieldError {
	return &fieldError{reason: ReasonBadType, detail: fmt.Sprintf("field %q has unparseable value %v", name, v)}
}

func outOfRange(name, constraint string) *fieldError {
	return &fieldError{reason: ReasonOutOfRange, detail: fmt.Sprintf("field %q must be %s", name, constraint)}
}

// stringField extracts a required non-empty string.
func stringField(r domain.RawRecord, name string) (string, *fieldError) {
	v, ok := r.Field(name)
	if !ok {
		return "", missingField(name)
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return "", missingField(name)
	}
	return s, nil
}

// dateField extracts a required date.
func dateField(r domain.RawRecord, name string) (time.Time, *fieldError) {
	s, ferr := stringField(r, name)
	if ferr != nil {
		return time.Time{}, ferr
	}
	return parseDate(name, s)
}

// optionalDateField extracts a date that may be absent or blank.
// The bool reports presence.
func optionalDateField(r domain.RawRecord, name string) (time.Time, bool, *fieldError) {
	v, ok := r.Field(name)
	if !ok {
		return time.Time{}, false, nil
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return time.Time{}, false, nil
	}
	t, ferr := parseDate(name, s)
	if ferr != nil {
		return time.Time{}, false, ferr
	}
	return t, true, nil
}

func parseDate(name, s string) (time.Time, *fieldError) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badType(name, s)
}

// intField extracts a required integer. Spreadsheet numerics may
// arrive as float64, int or string.
func intField(r domain.RawRecord, name string) (int, *fieldError) {
	v, ok := r.Field(name)
	if !ok {
		return 0, missingField(name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, badType(name, v)
		}
		return int(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, missingField(name)
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, badType(name, v)
		}
		return i, nil
	default:
		return 0, badType(name, v)
	}
}

// floatField extracts a required float.
func floatField(r domain.RawRecord, name string) (float64, *fieldError) {
	v, ok := r.Field(name)
	if !ok {
		return 0, missingField(name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, missingField(name)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, badType(name, v)
		}
		return f, nil
	default:
		return 0, badType(name, v)
	}
}

// optionalFloatField extracts a float that may be absent, defaulting
// to the given value.
func optionalFloatField(r domain.RawRecord, name string, def float64) (float64, *fieldError) {
	if _, ok := r.Field(name); !ok {
		return def, nil
	}
	return floatField(r, name)
}
