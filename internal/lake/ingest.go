package lake

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var tableNameSanitizer = regexp.MustCompile(`[^\w]+`)

// ratioColumn reports whether a column is a percentage-like field that
// arrives as text ("98.5%") and must be coerced to a numeric type so the
// model can aggregate over it.
func ratioColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(name, "率") ||
		strings.Contains(name, "%") ||
		strings.Contains(lower, "rate") ||
		strings.Contains(lower, "ratio")
}

// TableNameForFile derives a table name from a flat-file name: extension
// dropped, non-word runs collapsed to underscores, lowercased.
func TableNameForFile(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return strings.ToLower(tableNameSanitizer.ReplaceAllString(base, "_"))
}

// BuildLake loads every CSV file under dataDir into the DuckDB database at
// lakePath, one table per file, replacing any previous contents. Opens the
// database read-write; the serving handle (NewLake) stays read-only.
func BuildLake(ctx context.Context, lakePath, dataDir string) (int, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read data directory %s: %w", dataDir, err)
	}

	db, err := sql.Open("duckdb", lakePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open analytical database for build: %w", err)
	}
	defer db.Close()

	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") || !strings.HasSuffix(strings.ToLower(name), ".csv") {
			continue
		}

		table := TableNameForFile(name)
		path := filepath.Join(dataDir, name)
		log.Printf("Loading %s -> table %s ...", name, table)

		if err := loadCSV(ctx, db, table, path); err != nil {
			log.Printf("Failed to load %s: %v. Skipping.", name, err)
			continue
		}
		if err := coerceRatioColumns(ctx, db, table); err != nil {
			log.Printf("Warning: ratio coercion failed for table %s: %v", table, err)
		}
		loaded++
	}

	if loaded > 0 {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Printf("Warning: VACUUM failed: %v", err)
		}
	}
	return loaded, nil
}

func loadCSV(ctx context.Context, db *sql.DB, table, path string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return fmt.Errorf("failed to drop previous table: %w", err)
	}
	escaped := strings.ReplaceAll(path, "'", "''")
	_, err := db.ExecContext(ctx,
		fmt.Sprintf(`CREATE TABLE "%s" AS SELECT * FROM read_csv_auto('%s')`, table, escaped))
	if err != nil {
		return fmt.Errorf("failed to create table from CSV: %w", err)
	}
	return nil
}

// coerceRatioColumns rewrites percentage-like VARCHAR columns in place,
// stripping '%' and casting to DOUBLE. Values that still fail to parse
// become NULL rather than aborting the build.
func coerceRatioColumns(ctx context.Context, db *sql.DB, table string) error {
	rows, err := db.QueryContext(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ?", table)
	if err != nil {
		return fmt.Errorf("failed to inspect columns: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var col, typ string
		if err := rows.Scan(&col, &typ); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		if ratioColumn(col) && strings.EqualFold(typ, "VARCHAR") {
			targets = append(targets, col)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range targets {
		stmt := fmt.Sprintf(
			`ALTER TABLE "%s" ALTER "%s" SET DATA TYPE DOUBLE USING TRY_CAST(replace("%s", '%%', '') AS DOUBLE)`,
			table, col, col)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to coerce column %s: %w", col, err)
		}
	}
	if len(targets) > 0 {
		log.Printf("Coerced %d ratio column(s) in table %s: %s", len(targets), table, strings.Join(targets, ", "))
	}
	return nil
}
