// Package dialect provides safe identifier quoting for embedding
// column names in raw CASE/WHEN fragments. Rather than reimplementing
// quoting rules, it wraps the dialect objects that ship with
// github.com/gocraft/dbr/v2.
package dialect

import (
	"fmt"

	"github.com/gocraft/dbr/v2"
	dbrdialect "github.com/gocraft/dbr/v2/dialect"

	// Registered so callers can open("mysql", dsn) / open("postgres", dsn)
	// against database/sql without importing the drivers themselves.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Name identifies a supported SQL dialect.
type Name string

const (
	MySQL    Name = "mysql"
	Postgres Name = "postgres"
)

// Grammar is the single operation the core requires of a dialect:
// wrap(identifier) -> quoted string.
type Grammar interface {
	Wrap(identifier string) string
	Name() Name
	// ForUpdateClause and ShareLockClause return the trailing SQL
	// fragment for the two row-lock flavors used by the locking
	// discipline 
	ForUpdateClause() string
	ShareLockClause() string
	// Raw exposes the underlying dbr dialect object so the query
	// builder and store packages can hand it to a dbr.Session without
	// this package reimplementing statement building.
	Raw() dbr.Dialect
}

type grammar struct {
	name Name
	dbr  dbr.Dialect
}

func (g grammar) Wrap(identifier string) string {
	return g.dbr.QuoteIdent(identifier)
}

func (g grammar) Name() Name { return g.name }

func (g grammar) ForUpdateClause() string {
	return "FOR UPDATE"
}

func (g grammar) ShareLockClause() string {
	if g.name == Postgres {
		return "FOR SHARE"
	}
	return "LOCK IN SHARE MODE"
}

func (g grammar) Raw() dbr.Dialect { return g.dbr }

// For returns the Grammar for a named dialect.
func For(name Name) (Grammar, error) {
	switch name {
	case MySQL:
		return grammar{name: MySQL, dbr: dbrdialect.MySQL}, nil
	case Postgres:
		return grammar{name: Postgres, dbr: dbrdialect.PostgreSQL}, nil
	default:
		return nil, fmt.Errorf("nstree: unsupported dialect %q", name)
	}
}
