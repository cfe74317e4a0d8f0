package core

import (
	"regexp"
	"strings"
)

// ChartType is the model's declared visualization intent.
type ChartType string

const (
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
	ChartMultiBar ChartType = "multi_bar"
	ChartPie      ChartType = "pie"
	ChartDualAxis ChartType = "dual_axis"
	ChartNone     ChartType = "none"
)

// DefaultChartTitle is used when the model omits the TITLE line.
const DefaultChartTitle = "Data Visualization"

// ParsedDirective is the decoded model reply: the SQL to run plus the
// rendering metadata. An empty SQL field means the reply was a plain
// conversational answer, not a query.
type ParsedDirective struct {
	SQL     string
	Chart   ChartType
	Title   string
	Comment string
}

var (
	fencedSQLPattern = regexp.MustCompile("(?s)```sql\\s*(.*?)\\s*```")
	chartPattern     = regexp.MustCompile(`(?i)CHART:\s*(multi_bar|line|bar|pie|dual_axis|none)`)
	titlePattern     = regexp.MustCompile(`(?i)TITLE:\s*(.*)`)
	commentPattern   = regexp.MustCompile(`(?i)COMMENT:\s*(.*)`)
)

// ParseDirective decodes the SQL/CHART/TITLE/COMMENT micro-format from a raw
// model reply. Every field is optional: missing fields fall back to defaults
// instead of failing, so a malformed reply can never abort an attempt.
func ParseDirective(raw string) ParsedDirective {
	directive := ParsedDirective{
		Chart: ChartNone,
		Title: DefaultChartTitle,
	}

	if m := fencedSQLPattern.FindStringSubmatch(raw); m != nil {
		directive.SQL = strings.TrimSpace(m[1])
	} else {
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "SQL:") {
				sql := strings.TrimSpace(strings.TrimPrefix(trimmed, "SQL:"))
				directive.SQL = strings.TrimSpace(strings.ReplaceAll(sql, "```", ""))
				break
			}
		}
	}

	if m := chartPattern.FindStringSubmatch(raw); m != nil {
		directive.Chart = ChartType(strings.ToLower(m[1]))
	}
	if m := titlePattern.FindStringSubmatch(raw); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			directive.Title = title
		}
	}
	if m := commentPattern.FindStringSubmatch(raw); m != nil {
		directive.Comment = strings.TrimSpace(m[1])
	}

	return directive
}
