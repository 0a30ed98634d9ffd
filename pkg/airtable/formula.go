package airtable

import (
	"strings"
	"time"
)

// Quote renders s as a formula string literal.
func Quote(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(s) + `"`
}

// Field renders a field reference.
func Field(name string) string {
	return "{" + name + "}"
}

// Eq renders {field} = "value".
func Eq(field, value string) string {
	return Field(field) + "=" + Quote(value)
}

// Time renders t as an RFC3339 literal Airtable's date functions accept.
func Time(t time.Time) string {
	return Quote(t.UTC().Format(time.RFC3339))
}

// And joins non-empty clauses. A single clause is returned as-is.
func And(clauses ...string) string {
	return join("AND", clauses)
}

// Or joins non-empty clauses.
func Or(clauses ...string) string {
	return join("OR", clauses)
}

// Overlaps matches rows whose [startField, endField) intersects [start, end).
func Overlaps(startField, endField string, start, end time.Time) string {
	return And(
		"IS_BEFORE("+Field(startField)+", "+Time(end)+")",
		"IS_AFTER("+Field(endField)+", "+Time(start)+")",
	)
}

func join(op string, clauses []string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return op + "(" + strings.Join(parts, ", ") + ")"
	}
}
