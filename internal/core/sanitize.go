package core

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	forbiddenStatement = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER|TRUNCATE|GRANT|REVOKE)\b`)
	aggregationClause  = regexp.MustCompile(`(?i)\b(SUM|COUNT|AVG|MAX|MIN|GROUP BY)\b`)
	limitClause        = regexp.MustCompile(`(?i)\bLIMIT\b`)
)

// SecurityViolationError marks SQL that must never run, even against the
// read-only connection. It is terminal: the workflow does not retry it.
type SecurityViolationError struct {
	Keyword string
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("security block: destructive SQL keyword %s is not allowed", e.Keyword)
}

// SanitizeSQL validates a model-generated SQL candidate before execution.
// Destructive statements fail with a SecurityViolationError. Plain row
// listings with no aggregation and no LIMIT get a LIMIT 1000 cap appended so
// an unbounded scan cannot flood the caller. Anything else passes unchanged.
func SanitizeSQL(sqlText string) (string, error) {
	if match := forbiddenStatement.FindString(sqlText); match != "" {
		return "", &SecurityViolationError{Keyword: strings.ToUpper(match)}
	}
	if !aggregationClause.MatchString(sqlText) && !limitClause.MatchString(sqlText) {
		trimmed := strings.TrimRight(strings.TrimSpace(sqlText), ";")
		return trimmed + " LIMIT 1000", nil
	}
	return sqlText, nil
}
