package sqlstore

import (
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" database/sql driver
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	// Name identifies the backend in errors and logs.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// Schema creates every table and index.
	Schema string

	// NoLimit is the LIMIT clause value meaning "all rows", needed when an
	// OFFSET is given without a limit.
	NoLimit string

	// numbered switches '?' placeholders to '$1', '$2', ...
	numbered bool
}

// SQLite is the dialect for github.com/mattn/go-sqlite3.
var SQLite = Dialect{
	Name:    "sqlite",
	Driver:  "sqlite3",
	Schema:  sqliteSchema,
	NoLimit: "-1",
}

// Postgres is the dialect for github.com/jackc/pgx/v5 through its
// database/sql driver.
var Postgres = Dialect{
	Name:     "postgres",
	Driver:   "pgx",
	Schema:   postgresSchema,
	NoLimit:  "ALL",
	numbered: true,
}

// Rebind rewrites '?' placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
