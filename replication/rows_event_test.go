package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocelotdb/binlog-codec/mysql"
	"github.com/ocelotdb/binlog-codec/schema"
)

func TestDecodeRowsEventWrite(t *testing.T) {
	tableMap := &schema.TableMap{
		Columns: []schema.Column{
			{Ordinal: 0, Type: mysql.MYSQL_TYPE_LONG},
			{Ordinal: 1, Type: mysql.MYSQL_TYPE_VARCHAR, Meta: []int{1}},
		},
	}

	var body []byte
	body = append(body, make([]byte, rowsEventPostHeaderSize)...)
	body = append(body, le16(2)...)
	body = append(body, 2)
	body = append(body, 0x03)

	body = append(body, 0x00)              // nulls
	body = append(body, le32(7)...)        // col0 = 7
	body = append(body, 3, 'f', 'o', 'o')  // col1 = "foo"

	body = append(body, 0, 0, 0, 0) // checksum

	event, err := DecodeRowsEvent(body, WRITE_ROWS_EVENTv2, tableMap)
	require.NoError(t, err)
	require.Len(t, event.Rows, 1)

	row := event.Rows[0]
	assert.Nil(t, row.Before)
	require.Len(t, row.After, 2)
	assert.EqualValues(t, 7, row.After[0].Int)
	assert.Equal(t, "foo", row.After[1].Str)
}

func TestDecodeRowsEventDeleteWithNull(t *testing.T) {
	tableMap := &schema.TableMap{
		Columns: []schema.Column{
			{Ordinal: 0, Type: mysql.MYSQL_TYPE_LONG},
		},
	}

	var body []byte
	body = append(body, make([]byte, rowsEventPostHeaderSize)...)
	body = append(body, le16(2)...)
	body = append(body, 1)
	body = append(body, 0x01)

	body = append(body, 0x01) // nulls: column 0 is NULL
	body = append(body, 0, 0, 0, 0)

	event, err := DecodeRowsEvent(body, DELETE_ROWS_EVENTv2, tableMap)
	require.NoError(t, err)
	require.Len(t, event.Rows, 1)
	assert.Equal(t, KindNull, event.Rows[0].Before[0].Kind)
	assert.Nil(t, event.Rows[0].After)
}
