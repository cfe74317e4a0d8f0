package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirectiveFullReply(t *testing.T) {
	raw := "SQL: SELECT SUM(subs) AS \"Total\" FROM network_summary\n" +
		"CHART: bar\n" +
		"TITLE: 月度订户总数\n" +
		"COMMENT: network_summary, last 12 months"

	d := ParseDirective(raw)
	assert.Equal(t, `SELECT SUM(subs) AS "Total" FROM network_summary`, d.SQL)
	assert.Equal(t, ChartBar, d.Chart)
	assert.Equal(t, "月度订户总数", d.Title)
	assert.Equal(t, "network_summary, last 12 months", d.Comment)
}

func TestParseDirectivePrefersFencedBlock(t *testing.T) {
	raw := "Here is the query:\n```sql\nSELECT region, subs\nFROM network_summary\n```\nCHART: line\nTITLE: Subs by region"

	d := ParseDirective(raw)
	assert.Equal(t, "SELECT region, subs\nFROM network_summary", d.SQL)
	assert.Equal(t, ChartLine, d.Chart)
}

func TestParseDirectiveStripsTrailingFences(t *testing.T) {
	d := ParseDirective("SQL: SELECT 1```\nCHART: none")
	assert.Equal(t, "SELECT 1", d.SQL)
}

func TestParseDirectiveChartVariants(t *testing.T) {
	cases := map[string]ChartType{
		"CHART: line":      ChartLine,
		"CHART: bar":       ChartBar,
		"CHART: multi_bar": ChartMultiBar,
		"CHART: pie":       ChartPie,
		"CHART: dual_axis": ChartDualAxis,
		"CHART: none":      ChartNone,
		"chart: BAR":       ChartBar,
	}
	for raw, want := range cases {
		d := ParseDirective("SQL: SELECT 1\n" + raw)
		assert.Equal(t, want, d.Chart, raw)
	}
}

func TestParseDirectiveDefaults(t *testing.T) {
	d := ParseDirective("SQL: SELECT 1")
	assert.Equal(t, ChartNone, d.Chart)
	assert.Equal(t, DefaultChartTitle, d.Title)
	assert.Equal(t, "", d.Comment)
}

func TestParseDirectiveChatOnlyReply(t *testing.T) {
	d := ParseDirective("Subscribers are customers with at least one active SIM.")
	assert.Equal(t, "", d.SQL)
	assert.Equal(t, ChartNone, d.Chart)
}

func TestParseDirectiveNeverPanicsOnGarbage(t *testing.T) {
	for _, raw := range []string{"", "\n\n\n", "SQL:", "CHART:", "TITLE:", "```sql```", "SQL: \nCHART: sideways"} {
		assert.NotPanics(t, func() { ParseDirective(raw) }, raw)
	}
}
