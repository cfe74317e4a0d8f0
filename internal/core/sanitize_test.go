package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSQLBlocksDestructiveKeywords(t *testing.T) {
	cases := []string{
		"DROP TABLE network_summary",
		"drop table network_summary",
		"Drop Table network_summary",
		"SELECT 1; DELETE FROM network_summary",
		"update network_summary SET subs = 0",
		"INSERT INTO network_summary VALUES (1)",
		"ALTER TABLE network_summary ADD COLUMN x INT",
		"TRUNCATE network_summary",
		"GRANT ALL ON network_summary TO everyone",
		"REVOKE ALL ON network_summary FROM everyone",
	}
	for _, sqlText := range cases {
		t.Run(sqlText, func(t *testing.T) {
			_, err := SanitizeSQL(sqlText)
			require.Error(t, err)
			var violation *SecurityViolationError
			require.True(t, errors.As(err, &violation))
		})
	}
}

func TestSanitizeSQLAllowsKeywordsInsideWords(t *testing.T) {
	// "dropped_calls" contains "drop" but not as a whole word.
	out, err := SanitizeSQL("SELECT dropped_calls FROM network_summary LIMIT 5")
	require.NoError(t, err)
	assert.Equal(t, "SELECT dropped_calls FROM network_summary LIMIT 5", out)
}

func TestSanitizeSQLAppendsRowCap(t *testing.T) {
	out, err := SanitizeSQL("SELECT region, subs FROM network_summary")
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, subs FROM network_summary LIMIT 1000", out)
}

func TestSanitizeSQLTrimsSemicolonWhenCapping(t *testing.T) {
	out, err := SanitizeSQL("SELECT region FROM network_summary;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT region FROM network_summary LIMIT 1000", out)
}

func TestSanitizeSQLLeavesAggregatesAndLimitsAlone(t *testing.T) {
	cases := []string{
		`SELECT SUM(subs) AS "Total" FROM network_summary`,
		"SELECT region, COUNT(*) FROM network_summary GROUP BY region",
		"SELECT avg(latency) FROM network_summary",
		"SELECT region FROM network_summary LIMIT 10",
		"SELECT region FROM network_summary limit 10",
	}
	for _, sqlText := range cases {
		t.Run(sqlText, func(t *testing.T) {
			out, err := SanitizeSQL(sqlText)
			require.NoError(t, err)
			assert.Equal(t, sqlText, out)
		})
	}
}

func TestSanitizeSQLIsIdempotent(t *testing.T) {
	cases := []string{
		"SELECT region FROM network_summary",
		"SELECT region FROM network_summary;",
		"SELECT SUM(subs) FROM network_summary",
		"SELECT region FROM network_summary LIMIT 10",
	}
	for _, sqlText := range cases {
		once, err := SanitizeSQL(sqlText)
		require.NoError(t, err)
		twice, err := SanitizeSQL(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}
