package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
	"github.com/pingcap/errors"

	"github.com/ocelotdb/binlog-codec/mysql"
	"github.com/ocelotdb/binlog-codec/replication"
	"github.com/ocelotdb/binlog-codec/schema"
)

var (
	configPath = flag.String("config", "", "TOML config file with table schemas")
	eventPath  = flag.String("event", "", "path to a raw event file")
	mode       = flag.String("mode", "decode-json", "decode-json|rewrite|decode-event|fetch-schema")
	schemaName = flag.String("schema", "", "schema name of the table the event belongs to")
	tableName  = flag.String("table", "", "table name the event belongs to")
	dsn        = flag.String("dsn", "", "MySQL DSN (go-sql-driver/mysql format) to look up live table schemas from, in place of -config")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *mode == "fetch-schema" {
		if err := runFetchSchema(logger); err != nil {
			logger.Error("fetch-schema failed", "error", errors.ErrorStack(err))
			os.Exit(1)
		}
		return
	}

	if *eventPath == "" {
		logger.Error("missing required flag", "flag", "-event")
		os.Exit(1)
	}

	data, err := os.ReadFile(*eventPath)
	if err != nil {
		logger.Error("reading event file", "error", errors.ErrorStack(err))
		os.Exit(1)
	}

	switch *mode {
	case "decode-json":
		if err := runDecodeJSON(data); err != nil {
			logger.Error("decode-json failed", "error", errors.ErrorStack(err))
			os.Exit(1)
		}
	case "rewrite":
		if err := runRewrite(data, logger); err != nil {
			logger.Error("rewrite failed", "error", errors.ErrorStack(err))
			os.Exit(1)
		}
	case "decode-event":
		if err := runDecodeEvent(data, logger); err != nil {
			logger.Error("decode-event failed", "error", errors.ErrorStack(err))
			os.Exit(1)
		}
	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

func runDecodeJSON(data []byte) error {
	v, err := replication.DecodeJSONBinary(data, len(data))
	if err != nil {
		return errors.Trace(err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Println(string(out))
	return nil
}

func runRewrite(data []byte, logger *slog.Logger) error {
	header := &replication.EventHeader{}
	if err := header.Decode(data[:replication.EventHeaderSize]); err != nil {
		return errors.Trace(err)
	}

	tableMap, err := loadTableMap()
	if err != nil {
		return errors.Trace(err)
	}

	out, err := replication.Rewrite(data, header, tableMap)
	if err != nil {
		return errors.Trace(err)
	}

	logger.Info("rewrote event", "type", header.EventType.String(), "bytes", len(out))
	_, err = os.Stdout.Write(out)
	return errors.Trace(err)
}

// runDecodeEvent decodes a single raw binlog event (common header
// followed by its body) into the matching Event implementation and
// dumps it to stdout, the same way python-mysql-replication's
// BinLogStreamReader prints events it reads off the wire. For the GTID
// event kinds it also prints the GTID_NEXT position string.
func runDecodeEvent(data []byte, logger *slog.Logger) error {
	header := &replication.EventHeader{}
	if err := header.Decode(data[:replication.EventHeaderSize]); err != nil {
		return errors.Trace(err)
	}

	ev, err := replication.DecodeEvent(header, data[replication.EventHeaderSize:])
	if err != nil {
		return errors.Trace(err)
	}

	header.Dump(os.Stdout)
	ev.Dump(os.Stdout)

	gtid, err := replication.GTIDNextOf(ev)
	if err != nil {
		return errors.Trace(err)
	}
	if gtid != "" {
		logger.Info("decoded event", "type", header.EventType.String(), "gtid_next", gtid)
	} else {
		logger.Info("decoded event", "type", header.EventType.String())
	}
	return nil
}

// runFetchSchema looks up -schema.-table's column catalog from a live
// MySQL server via -dsn and prints it as JSON, so an operator can save
// the result into the TOML config -config/loadTableMap reads for
// offline fixture replay.
func runFetchSchema(logger *slog.Logger) error {
	if *dsn == "" || *schemaName == "" || *tableName == "" {
		return errors.Errorf("fetch-schema requires -dsn, -schema and -table")
	}

	tm, err := fetchTableMap(*dsn, *schemaName, *tableName)
	if err != nil {
		return errors.Trace(err)
	}

	out, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	logger.Info("fetched table schema", "schema", *schemaName, "table", *tableName, "columns", len(tm.Columns))
	fmt.Println(string(out))
	return nil
}

// fetchTableMap opens dsn with go-sql-driver/mysql and asks
// schema.NewTableMap for schemaName.tableName's column catalog.
func fetchTableMap(dsn, schemaName, tableName string) (*schema.TableMap, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer db.Close()

	tm, err := schema.NewTableMap(context.Background(), db, schemaName, tableName)
	return tm, errors.Trace(err)
}

// loadTableMap builds the TableMap the rewriter needs for UPDATE
// events. When -dsn is set it looks the table up live via
// schema.NewTableMap; otherwise it reads the literal column list out
// of the TOML config (for fixtures replayed offline without database
// access), or returns nil if neither is set -- fine for events that
// are not UPDATE_ROWS, which Rewrite doesn't consult the table map
// for.
func loadTableMap() (*schema.TableMap, error) {
	if *dsn != "" {
		return fetchTableMap(*dsn, *schemaName, *tableName)
	}

	if *configPath == "" {
		return nil, nil
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}

	for _, entry := range cfg.Tables {
		if entry.Schema != *schemaName || entry.Table != *tableName {
			continue
		}
		tm := &schema.TableMap{
			SchemaName: entry.Schema,
			TableName:  entry.Table,
			Columns:    make([]schema.Column, 0, len(entry.Columns)),
		}
		for i, c := range entry.Columns {
			tm.Columns = append(tm.Columns, schema.Column{
				Ordinal:  i,
				Name:     c.Name,
				Type:     columnTypeByName(c.Type),
				Meta:     c.Meta,
				Unsigned: c.Unsigned,
				Nullable: c.Nullable,
			})
		}
		return tm, nil
	}

	return nil, errors.Annotatef(schema.ErrTableNotExist, "%s.%s not found in config", *schemaName, *tableName)
}

func columnTypeByName(name string) mysql.ColumnType {
	switch name {
	case "tiny":
		return mysql.MYSQL_TYPE_TINY
	case "short":
		return mysql.MYSQL_TYPE_SHORT
	case "int24":
		return mysql.MYSQL_TYPE_INT24
	case "long":
		return mysql.MYSQL_TYPE_LONG
	case "longlong":
		return mysql.MYSQL_TYPE_LONGLONG
	case "float":
		return mysql.MYSQL_TYPE_FLOAT
	case "double":
		return mysql.MYSQL_TYPE_DOUBLE
	case "newdecimal":
		return mysql.MYSQL_TYPE_NEWDECIMAL
	case "year":
		return mysql.MYSQL_TYPE_YEAR
	case "date":
		return mysql.MYSQL_TYPE_DATE
	case "time2":
		return mysql.MYSQL_TYPE_TIME2
	case "datetime2":
		return mysql.MYSQL_TYPE_DATETIME2
	case "timestamp2":
		return mysql.MYSQL_TYPE_TIMESTAMP2
	case "varchar":
		return mysql.MYSQL_TYPE_VARCHAR
	case "var_string":
		return mysql.MYSQL_TYPE_VAR_STRING
	case "string":
		return mysql.MYSQL_TYPE_STRING
	case "blob":
		return mysql.MYSQL_TYPE_BLOB
	case "json":
		return mysql.MYSQL_TYPE_JSON
	case "bit":
		return mysql.MYSQL_TYPE_BIT
	case "enum":
		return mysql.MYSQL_TYPE_ENUM
	case "set":
		return mysql.MYSQL_TYPE_SET
	default:
		return mysql.MYSQL_TYPE_VAR_STRING
	}
}
