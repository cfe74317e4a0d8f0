package lake

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestLake(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.duckdb")

	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE network_summary (month VARCHAR, region VARCHAR, subs BIGINT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO network_summary VALUES ('2025-07', 'Gauteng', 120000), ('2025-07', 'Western Cape', 90000)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE finance_report (month VARCHAR, revenue DOUBLE)`)
	require.NoError(t, err)

	return path
}

func TestQueryReturnsColumnsAndRows(t *testing.T) {
	lk, err := NewLake(buildTestLake(t))
	require.NoError(t, err)
	defer lk.Close()

	result, err := lk.Query(context.Background(), `SELECT region, subs FROM network_summary ORDER BY subs DESC LIMIT 10`)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "subs"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Gauteng", result.Rows[0][0])
	assert.False(t, result.Empty())
}

func TestQueryEmptyResult(t *testing.T) {
	lk, err := NewLake(buildTestLake(t))
	require.NoError(t, err)
	defer lk.Close()

	result, err := lk.Query(context.Background(), `SELECT * FROM finance_report LIMIT 10`)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, []string{"month", "revenue"}, result.Columns)
}

func TestQuerySurfacesExecutionErrors(t *testing.T) {
	lk, err := NewLake(buildTestLake(t))
	require.NoError(t, err)
	defer lk.Close()

	_, err = lk.Query(context.Background(), `SELECT bogus FROM network_summary`)
	require.Error(t, err)
}

func TestLakeIsReadOnly(t *testing.T) {
	lk, err := NewLake(buildTestLake(t))
	require.NoError(t, err)
	defer lk.Close()

	_, err = lk.Query(context.Background(), `CREATE TABLE scratch (x INT)`)
	require.Error(t, err)
}

func TestDescribeSchemaDeterministicOrder(t *testing.T) {
	lk, err := NewLake(buildTestLake(t))
	require.NoError(t, err)
	defer lk.Close()

	text, err := lk.DescribeSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t,
		"Table: finance_report | Columns: month, revenue\n"+
			"Table: network_summary | Columns: month, region, subs\n",
		text)
}

func TestFirstTable(t *testing.T) {
	lk, err := NewLake(buildTestLake(t))
	require.NoError(t, err)
	defer lk.Close()

	table, err := lk.FirstTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finance_report", table)
}

func TestTableNameForFile(t *testing.T) {
	cases := map[string]string{
		"Network Summary.csv":     "network_summary",
		"finance-report 2025.csv": "finance_report_2025",
		"SITES.CSV":               "sites",
	}
	for in, want := range cases {
		assert.Equal(t, want, TableNameForFile(in), in)
	}
}

func TestBuildLakeIngestsCSVAndCoercesRatios(t *testing.T) {
	dataDir := t.TempDir()
	csvContent := "month,region,subs,availability_rate\n" +
		"2025-06,Gauteng,118000,99.1%\n" +
		"2025-07,Gauteng,120000,98.5%\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "Network Summary.csv"), []byte(csvContent), 0o644))

	lakePath := filepath.Join(t.TempDir(), "built.duckdb")
	loaded, err := BuildLake(context.Background(), lakePath, dataDir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	lk, err := NewLake(lakePath)
	require.NoError(t, err)
	defer lk.Close()

	result, err := lk.Query(context.Background(), `SELECT AVG(availability_rate) AS "Avail" FROM network_summary`)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	avail, ok := result.Rows[0][0].(float64)
	require.True(t, ok, "availability_rate must be numeric after ingestion, got %T", result.Rows[0][0])
	assert.InDelta(t, 98.8, avail, 0.01)
}

func TestBuildLakeSkipsNonCSVFiles(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes.txt"), []byte("not data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "~$temp.csv"), []byte("lock file"), 0o644))

	lakePath := filepath.Join(t.TempDir(), "empty.duckdb")
	loaded, err := BuildLake(context.Background(), lakePath, dataDir)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)
}
