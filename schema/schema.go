// Copyright 2012, Google Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pingcap/errors"

	"github.com/ocelotdb/binlog-codec/mysql"
)

var (
	ErrTableNotExist    = errors.New("table does not exist")
	ErrMissingTableMeta = errors.New("missing table meta")
)

// Column describes one column's position and wire-level type
// metadata, the same shape a TABLE_MAP_EVENT carries for it on the
// wire: a type code plus the 0-2 meta bytes that type needs to decode
// its row values (string/blob length-prefix width, decimal
// precision/scale, enum/set value-index width, temporal fsp).
type Column struct {
	Ordinal  int
	Name     string
	Type     mysql.ColumnType
	Meta     []int
	Unsigned bool
	Nullable bool
}

// TableMap is the column catalog a Rewrite call needs to size and
// reassemble each row's packed column values. It plays the same role
// here that a real TABLE_MAP_EVENT plays for a live replication
// stream; this package builds one by asking INFORMATION_SCHEMA
// instead, for callers that only have the row events themselves (e.g.
// replayed from a log file) and not the table-map event that preceded
// them.
type TableMap struct {
	SchemaName string
	TableName  string
	Columns    []Column
}

// FindColumn returns the ordinal of the named column, or -1.
func (t *TableMap) FindColumn(name string) int {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Ordinal
		}
	}
	return -1
}

type informationSchemaColumn struct {
	OrdinalPosition        int            `db:"ORDINAL_POSITION"`
	ColumnName             string         `db:"COLUMN_NAME"`
	DataType               string         `db:"DATA_TYPE"`
	ColumnType             string         `db:"COLUMN_TYPE"`
	IsNullable             string         `db:"IS_NULLABLE"`
	NumericPrecision       sql.NullInt64  `db:"NUMERIC_PRECISION"`
	NumericScale           sql.NullInt64  `db:"NUMERIC_SCALE"`
	DatetimePrecision      sql.NullInt64  `db:"DATETIME_PRECISION"`
	CharacterOctetLength   sql.NullInt64  `db:"CHARACTER_OCTET_LENGTH"`
}

// NewTableMap fetches schemaName.tableName's column catalog from
// INFORMATION_SCHEMA.COLUMNS and translates it into the wire-level
// TableMap that Rewrite consumes.
func NewTableMap(ctx context.Context, db *sql.DB, schemaName, tableName string) (*TableMap, error) {
	sdb := sqlx.NewDb(db, "mysql")

	var rows []informationSchemaColumn
	err := sdb.SelectContext(ctx, &rows, `
		SELECT ORDINAL_POSITION, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE,
		       NUMERIC_PRECISION, NUMERIC_SCALE, DATETIME_PRECISION, CHARACTER_OCTET_LENGTH
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schemaName, tableName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(rows) == 0 {
		return nil, errors.Annotatef(ErrTableNotExist, "%s.%s", schemaName, tableName)
	}

	tm := &TableMap{
		SchemaName: schemaName,
		TableName:  tableName,
		Columns:    make([]Column, 0, len(rows)),
	}

	for i, r := range rows {
		col := Column{
			Ordinal:  i,
			Name:     r.ColumnName,
			Nullable: strings.EqualFold(r.IsNullable, "YES"),
			Unsigned: strings.Contains(r.ColumnType, "unsigned"),
		}
		col.Type, col.Meta = columnMeta(r)
		tm.Columns = append(tm.Columns, col)
	}

	return tm, nil
}

// columnMeta maps an INFORMATION_SCHEMA.COLUMNS row onto the
// (type code, meta bytes) pair that a TABLE_MAP_EVENT would have
// carried for the same column.
func columnMeta(r informationSchemaColumn) (mysql.ColumnType, []int) {
	dataType := strings.ToLower(r.DataType)

	switch dataType {
	case "tinyint":
		return mysql.MYSQL_TYPE_TINY, nil
	case "smallint":
		return mysql.MYSQL_TYPE_SHORT, nil
	case "mediumint":
		return mysql.MYSQL_TYPE_INT24, nil
	case "int":
		return mysql.MYSQL_TYPE_LONG, nil
	case "bigint":
		return mysql.MYSQL_TYPE_LONGLONG, nil
	case "year":
		return mysql.MYSQL_TYPE_YEAR, nil
	case "float":
		return mysql.MYSQL_TYPE_FLOAT, []int{4}
	case "double":
		return mysql.MYSQL_TYPE_DOUBLE, []int{8}
	case "decimal", "numeric":
		precision := int(r.NumericPrecision.Int64)
		scale := int(r.NumericScale.Int64)
		return mysql.MYSQL_TYPE_NEWDECIMAL, []int{precision, scale}
	case "date":
		return mysql.MYSQL_TYPE_DATE, nil
	case "time":
		return mysql.MYSQL_TYPE_TIME2, []int{int(r.DatetimePrecision.Int64)}
	case "datetime":
		return mysql.MYSQL_TYPE_DATETIME2, []int{int(r.DatetimePrecision.Int64)}
	case "timestamp":
		return mysql.MYSQL_TYPE_TIMESTAMP2, []int{int(r.DatetimePrecision.Int64)}
	case "bit":
		// BIT values never exceed 8 bytes, so a 1-byte length prefix
		// (as the replication package's lengthPrefixedWidth expects)
		// always suffices; see columnByteWidth/decodeColumnValue.
		return mysql.MYSQL_TYPE_BIT, []int{1}
	case "json":
		return mysql.MYSQL_TYPE_JSON, []int{4}
	case "enum":
		return mysql.MYSQL_TYPE_ENUM, []int{enumSetMetaBytes(r.ColumnType, "enum(")}
	case "set":
		return mysql.MYSQL_TYPE_SET, []int{enumSetMetaBytes(r.ColumnType, "set(")}
	case "char":
		return mysql.MYSQL_TYPE_STRING, []int{int(r.CharacterOctetLength.Int64)}
	case "varchar", "varbinary":
		// VARCHAR/VARBINARY values carry a 1-byte length prefix when the
		// column's maximum byte length fits in one byte, 2 bytes otherwise.
		prefixWidth := 1
		if r.CharacterOctetLength.Int64 > 255 {
			prefixWidth = 2
		}
		if dataType == "varbinary" {
			return mysql.MYSQL_TYPE_VAR_STRING, []int{prefixWidth}
		}
		return mysql.MYSQL_TYPE_VARCHAR, []int{prefixWidth}
	case "binary":
		return mysql.MYSQL_TYPE_STRING, []int{int(r.CharacterOctetLength.Int64)}
	case "tinyblob", "tinytext":
		return mysql.MYSQL_TYPE_TINY_BLOB, []int{1}
	case "blob", "text":
		return mysql.MYSQL_TYPE_BLOB, []int{2}
	case "mediumblob", "mediumtext":
		return mysql.MYSQL_TYPE_MEDIUM_BLOB, []int{3}
	case "longblob", "longtext":
		return mysql.MYSQL_TYPE_LONG_BLOB, []int{4}
	default:
		return mysql.MYSQL_TYPE_VAR_STRING, []int{int(r.CharacterOctetLength.Int64)}
	}
}

// enumSetMetaBytes returns how many meta bytes (1 or 2) an ENUM/SET
// column needs to index its declared value list, per
// count_set_bits(ceil(log2(len(values)))) in the server source: up to
// 255 values fit in one byte, more need two.
func enumSetMetaBytes(columnType, prefix string) int {
	values := sizeFromValueList(columnType, prefix)
	if values > 255 {
		return 2
	}
	return 1
}

func sizeFromValueList(columnType, prefix string) int {
	lower := strings.ToLower(columnType)
	start := strings.Index(lower, prefix)
	if start < 0 {
		return 0
	}
	end := strings.LastIndex(columnType, ")")
	if end < 0 || end <= start {
		return 0
	}
	body := columnType[start+len(prefix) : end]
	if body == "" {
		return 0
	}
	return len(strings.Split(body, ","))
}

