package repo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/threatlens/threatlens/internal/config"
)

var sqlDrivers = map[string]string{
	config.DriverPostgres:  "pgx",
	config.DriverMySQL:     "mysql",
	config.DriverSQLite:    "sqlite3",
	config.DriverSQLServer: "sqlserver",
}

// ReadSQL runs query against the dataset database. The query must return url and label as its
// first two columns.
func ReadSQL(ctx context.Context, driver, dsn, query string) ([]LabeledURL, error) {
	name, ok := sqlDrivers[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported dataset driver %q", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s dataset: %w", driver, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect %s dataset: %w", driver, err)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	var out []LabeledURL
	for rows.Next() {
		var url, label sql.NullString
		if err := rows.Scan(&url, &label); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		if !url.Valid || !label.Valid {
			continue
		}
		out = append(out, LabeledURL{URL: url.String, Label: label.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset: %w", err)
	}
	return out, nil
}
