package schema

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotSupported = errors.New("fakedb: not supported")

// fakeDriver is a minimal database/sql/driver.Driver that answers any
// query with a fixed INFORMATION_SCHEMA.COLUMNS result set, letting
// NewTableMap's sqlx plumbing run end to end without a live MySQL
// server.
type fakeDriver struct {
	columns []string
	rows    [][]driver.Value
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	return &fakeConn{d}, nil
}

type fakeConn struct{ d *fakeDriver }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return &fakeStmt{c.d}, nil }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)                 { return nil, errNotSupported }

type fakeStmt struct{ d *fakeDriver }

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errNotSupported
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &fakeRows{columns: s.d.columns, rows: s.d.rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func TestNewTableMap(t *testing.T) {
	sql.Register("binlogcodec_fakedb", &fakeDriver{
		columns: []string{
			"ORDINAL_POSITION", "COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "IS_NULLABLE",
			"NUMERIC_PRECISION", "NUMERIC_SCALE", "DATETIME_PRECISION", "CHARACTER_OCTET_LENGTH",
		},
		rows: [][]driver.Value{
			{int64(0), "id", "bigint", "bigint unsigned", "NO", nil, nil, nil, nil},
			{int64(1), "name", "varchar", "varchar(255)", "YES", nil, nil, nil, int64(255)},
		},
	})

	db, err := sql.Open("binlogcodec_fakedb", "")
	require.NoError(t, err)
	defer db.Close()

	tm, err := NewTableMap(context.Background(), db, "testdb", "widgets")
	require.NoError(t, err)

	require.Len(t, tm.Columns, 2)
	assert.Equal(t, "id", tm.Columns[0].Name)
	assert.True(t, tm.Columns[0].Unsigned)
	assert.False(t, tm.Columns[0].Nullable)

	assert.Equal(t, "name", tm.Columns[1].Name)
	assert.True(t, tm.Columns[1].Nullable)
	assert.Equal(t, []int{1}, tm.Columns[1].Meta)
}

func TestNewTableMapNotFound(t *testing.T) {
	sql.Register("binlogcodec_fakedb_empty", &fakeDriver{
		columns: []string{
			"ORDINAL_POSITION", "COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "IS_NULLABLE",
			"NUMERIC_PRECISION", "NUMERIC_SCALE", "DATETIME_PRECISION", "CHARACTER_OCTET_LENGTH",
		},
	})

	db, err := sql.Open("binlogcodec_fakedb_empty", "")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewTableMap(context.Background(), db, "testdb", "missing")
	assert.ErrorIs(t, err, ErrTableNotExist)
}
