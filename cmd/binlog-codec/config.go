package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Config is the TOML configuration file format for the CLI's schema
// lookup: a literal column list per table for offline fixtures. The
// [mysql] section is decoded but loadTableMap does not read it; a live
// INFORMATION_SCHEMA lookup goes through the -dsn flag instead.
type Config struct {
	MySQL  MySQLConfig  `toml:"mysql"`
	Tables []TableEntry `toml:"tables"`
}

type MySQLConfig struct {
	Addr     string `toml:"addr"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type TableEntry struct {
	Schema  string         `toml:"schema"`
	Table   string         `toml:"table"`
	Columns []ColumnConfig `toml:"columns"`
}

type ColumnConfig struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Meta     []int  `toml:"meta"`
	Unsigned bool   `toml:"unsigned"`
	Nullable bool   `toml:"nullable"`
}

// LoadConfig decodes a TOML config file at path.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Trace(err)
	}
	return &cfg, nil
}
