package lake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
)

// Lake is the read-only analytical DuckDB store that generated SQL runs
// against. It is safe for concurrent use after construction.
type Lake struct {
	db *sql.DB
}

// QueryResult holds a tabular result set. Rows preserve column order so the
// presentation layer can render and export them directly.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (r QueryResult) Empty() bool {
	return len(r.Rows) == 0
}

// NewLake opens the analytical database in read-only mode. The file must
// already exist; it is produced by the ingestion build (see BuildLake).
func NewLake(path string) (*Lake, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, fmt.Errorf("failed to open analytical database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping analytical database %s: %w", path, err)
	}
	return &Lake{db: db}, nil
}

func (l *Lake) Close() error {
	return l.db.Close()
}

// Query executes an already-sanitized SQL statement and materializes the
// full result set.
func (l *Lake) Query(ctx context.Context, sqlText string) (QueryResult, error) {
	rows, err := l.db.QueryContext(ctx, sqlText)
	if err != nil {
		return QueryResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := QueryResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("failed to scan result row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// Tables lists table names in deterministic (alphabetical) order.
func (l *Lake) Tables(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// FirstTable returns the first table in schema order, used to anchor the
// last-attempt fallback query.
func (l *Lake) FirstTable(ctx context.Context) (string, error) {
	tables, err := l.Tables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("analytical database has no tables")
	}
	return tables[0], nil
}

// DescribeSchema produces the textual schema description given to the model:
// one line per table listing its columns. Deliberately recomputed on every
// call so out-of-band database rebuilds are picked up.
func (l *Lake) DescribeSchema(ctx context.Context) (string, error) {
	tables, err := l.Tables(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, table := range tables {
		cols, err := l.columnsOf(ctx, table)
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf("Table: %s | Columns: %s\n", table, strings.Join(cols, ", ")))
	}
	return sb.String(), nil
}

func (l *Lake) columnsOf(ctx context.Context, table string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position", table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
