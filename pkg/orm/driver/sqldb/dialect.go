package sqldb

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect describes the SQL flavour of a database
type Dialect struct {
	// Name is the canonical dialect name
	Name string
	// DriverName is the database/sql driver registered for the dialect
	DriverName string
	// Returning reports whether INSERT supports RETURNING
	Returning bool

	numbered bool
	quote    func(string) string
}

// Supported dialects
var (
	Postgres = &Dialect{
		Name:       "postgres",
		DriverName: "pgx",
		Returning:  true,
		numbered:   true,
		quote:      pq.QuoteIdentifier,
	}
	MySQL = &Dialect{
		Name:       "mysql",
		DriverName: "mysql",
		quote: func(ident string) string {
			return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
		},
	}
	SQLite = &Dialect{
		Name:       "sqlite3",
		DriverName: "sqlite3",
		quote: func(ident string) string {
			return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
		},
	}
)

// DialectFor returns the dialect registered under a name or common alias
func DialectFor(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", name)
}

// Quote quotes an identifier. Qualified names are quoted per part.
func (d *Dialect) Quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the bind marker of the n-th argument, starting at 1
func (d *Dialect) Placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// emptyInsert returns the INSERT body used when no column is set
func (d *Dialect) emptyInsert() string {
	if d == MySQL {
		return "() VALUES ()"
	}
	return "DEFAULT VALUES"
}
