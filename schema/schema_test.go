package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ocelotdb/binlog-codec/mysql"
)

func TestColumnMetaNumericTypes(t *testing.T) {
	cases := []struct {
		dataType string
		wantType mysql.ColumnType
	}{
		{"tinyint", mysql.MYSQL_TYPE_TINY},
		{"smallint", mysql.MYSQL_TYPE_SHORT},
		{"mediumint", mysql.MYSQL_TYPE_INT24},
		{"int", mysql.MYSQL_TYPE_LONG},
		{"bigint", mysql.MYSQL_TYPE_LONGLONG},
	}
	for _, c := range cases {
		gotType, _ := columnMeta(informationSchemaColumn{DataType: c.dataType})
		assert.Equal(t, c.wantType, gotType, c.dataType)
	}
}

func TestColumnMetaDecimal(t *testing.T) {
	r := informationSchemaColumn{DataType: "decimal"}
	r.NumericPrecision.Int64, r.NumericPrecision.Valid = 10, true
	r.NumericScale.Int64, r.NumericScale.Valid = 2, true

	gotType, meta := columnMeta(r)
	assert.Equal(t, mysql.MYSQL_TYPE_NEWDECIMAL, gotType)
	assert.Equal(t, []int{10, 2}, meta)
}

func TestEnumSetMetaBytes(t *testing.T) {
	assert.Equal(t, 1, enumSetMetaBytes("enum('a','b','c')", "enum("))
	many := "enum("
	for i := 0; i < 300; i++ {
		if i > 0 {
			many += ","
		}
		many += "'x'"
	}
	many += ")"
	assert.Equal(t, 2, enumSetMetaBytes(many, "enum("))
}

func TestFindColumn(t *testing.T) {
	tm := &TableMap{Columns: []Column{
		{Ordinal: 0, Name: "id"},
		{Ordinal: 1, Name: "name"},
	}}
	assert.Equal(t, 1, tm.FindColumn("name"))
	assert.Equal(t, -1, tm.FindColumn("missing"))
}
