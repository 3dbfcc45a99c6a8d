// Package config loads the plain settings nstreectl and any host
// application need to open a Store: the DSN, the SQL dialect, column
// overrides for the Descriptor, and connection pool sizing. Flags win
// over environment variables, which win over the built-in defaults —
// there is no viper or koanf here, just a struct and a loader.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/dialect"
)

const (
	EnvDSN     = "NSTREE_DSN"
	EnvDialect = "NSTREE_DIALECT"
)

// Config holds everything needed to open a store.SQLStore.
type Config struct {
	DSN     string
	Dialect dialect.Name

	Table        string
	IDColumn     string
	ParentColumn string
	LeftColumn   string
	RightColumn  string
	DepthColumn  string
	OrderColumn  string
	ScopeColumns []string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Default returns a Config with the conventional descriptor column
// names and a modest connection pool, over the named table.
func Default(table string) Config {
	desc := descriptor.Default(table)
	return Config{
		Dialect:      dialect.MySQL,
		Table:        table,
		IDColumn:     desc.IDColumn,
		ParentColumn: desc.ParentColumn,
		LeftColumn:   desc.LeftColumn,
		RightColumn:  desc.RightColumn,
		DepthColumn:  desc.DepthColumn,

		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Overrides is the subset of Config a CLI flag set or an env lookup
// can supply; zero values are left untouched by Apply.
type Overrides struct {
	DSN             string
	Dialect         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Apply layers o onto c, skipping zero-valued fields.
func (c Config) Apply(o Overrides) Config {
	if o.DSN != "" {
		c.DSN = o.DSN
	}
	if o.Dialect != "" {
		c.Dialect = dialect.Name(o.Dialect)
	}
	if o.MaxOpenConns != 0 {
		c.MaxOpenConns = o.MaxOpenConns
	}
	if o.MaxIdleConns != 0 {
		c.MaxIdleConns = o.MaxIdleConns
	}
	if o.ConnMaxLifetime != 0 {
		c.ConnMaxLifetime = o.ConnMaxLifetime
	}
	return c
}

// FromEnv reads NSTREE_DSN and NSTREE_DIALECT, in that order of
// precedence over c's existing values, then falls back to c
// unchanged for whatever isn't set.
func FromEnv(c Config) Config {
	o := Overrides{
		DSN:     os.Getenv(EnvDSN),
		Dialect: os.Getenv(EnvDialect),
	}
	if v := os.Getenv("NSTREE_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxOpenConns = n
		}
	}
	if v := os.Getenv("NSTREE_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxIdleConns = n
		}
	}
	return c.Apply(o)
}

// Descriptor materializes c's column configuration as a
// descriptor.Descriptor.
func (c Config) Descriptor() descriptor.Descriptor {
	return descriptor.Descriptor{
		Table:        c.Table,
		IDColumn:     c.IDColumn,
		ParentColumn: c.ParentColumn,
		LeftColumn:   c.LeftColumn,
		RightColumn:  c.RightColumn,
		DepthColumn:  c.DepthColumn,
		OrderColumn:  c.OrderColumn,
		ScopeColumns: c.ScopeColumns,
	}
}
