package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocelotdb/binlog-codec/mysql"
	"github.com/ocelotdb/binlog-codec/schema"
)

func commonHeader(eventType EventType, eventSize uint32) []byte {
	h := make([]byte, EventHeaderSize)
	h[4] = byte(eventType)
	h[13] = byte(eventSize)
	h[14] = byte(eventSize >> 8)
	h[15] = byte(eventSize >> 16)
	h[16] = byte(eventSize >> 24)
	return h
}

// S4: a DELETE event's opcode flips to WRITE, rest of the bytes
// unchanged.
func TestRewriteDeleteToWriteOpcodeFlip(t *testing.T) {
	event := append(commonHeader(DELETE_ROWS_EVENTv2, 30), []byte{1, 2, 3, 4}...)
	header := &EventHeader{EventType: DELETE_ROWS_EVENTv2}

	out, err := Rewrite(event, header, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(WRITE_ROWS_EVENTv2), out[4])

	want := append([]byte{}, event...)
	want[4] = byte(WRITE_ROWS_EVENTv2)
	assert.Equal(t, want, out)
}

// S5: a WRITE event's opcode flips to DELETE.
func TestRewriteWriteToDeleteOpcodeFlip(t *testing.T) {
	event := append(commonHeader(WRITE_ROWS_EVENTv2, 30), []byte{9, 8, 7}...)
	header := &EventHeader{EventType: WRITE_ROWS_EVENTv2}

	out, err := Rewrite(event, header, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(DELETE_ROWS_EVENTv2), out[4])
}

// Invariant 5: rewriting an opcode-flip event twice returns the
// original bytes.
func TestRewriteOpcodeInvolution(t *testing.T) {
	original := append(commonHeader(DELETE_ROWS_EVENTv2, 30), []byte{1, 2, 3, 4}...)
	deleteHeader := &EventHeader{EventType: DELETE_ROWS_EVENTv2}
	writeHeader := &EventHeader{EventType: WRITE_ROWS_EVENTv2}

	once, err := Rewrite(original, deleteHeader, nil)
	require.NoError(t, err)

	twice, err := Rewrite(once, writeHeader, nil)
	require.NoError(t, err)

	assert.Equal(t, original, twice)
}

// Invariant 7: non-row event types are returned unchanged.
func TestRewriteNonRowEventIsIdentity(t *testing.T) {
	event := append(commonHeader(QUERY_EVENT, 40), []byte{1, 2, 3, 4, 5}...)
	header := &EventHeader{EventType: QUERY_EVENT}

	out, err := Rewrite(event, header, nil)
	require.NoError(t, err)
	assert.Equal(t, event, out)
}

// buildUpdateEventTwoCols assembles a minimal UPDATE_ROWS_EVENTv2 body
// for a 2-column (TINY, TINY) table with one row pair made of the given
// before and after images.
func buildUpdateEventTwoCols(before, after [2]byte) ([]byte, *schema.TableMap) {
	tableMap := &schema.TableMap{
		Columns: []schema.Column{
			{Ordinal: 0, Type: mysql.MYSQL_TYPE_TINY},
			{Ordinal: 1, Type: mysql.MYSQL_TYPE_TINY},
		},
	}

	var body []byte
	body = append(body, commonHeader(UPDATE_ROWS_EVENTv2, 0)...)
	body = append(body, make([]byte, rowsEventPostHeaderSize)...) // table id + flags
	body = append(body, le16(2)...)                               // extras-length = 2 (no extras)
	body = append(body, 2)                                        // column count

	fullBitmap := byte(0x03) // both columns present
	body = append(body, fullBitmap)
	body = append(body, fullBitmap)

	body = append(body, 0, before[0], before[1]) // NULL-bitmap=0, before image
	body = append(body, 0, after[0], after[1])   // NULL-bitmap=0, after image

	body = append(body, 0xde, 0xad, 0xbe, 0xef) // checksum tail

	return body, tableMap
}

// Invariant 6 / S6: an UPDATE event with one row pair has its
// before/after images swapped, all other bytes preserved.
func TestRewriteUpdateSwap(t *testing.T) {
	event, tableMap := buildUpdateEventTwoCols([2]byte{1, 10}, [2]byte{1, 20})
	header := &EventHeader{EventType: UPDATE_ROWS_EVENTv2}

	out, err := Rewrite(event, header, tableMap)
	require.NoError(t, err)

	decoded, err := DecodeRowsEvent(out[EventHeaderSize:], UPDATE_ROWS_EVENTv2, tableMap)
	require.NoError(t, err)
	require.Len(t, decoded.Rows, 1)

	row := decoded.Rows[0]
	assert.EqualValues(t, 1, row.Before[0].Int)
	assert.EqualValues(t, 20, row.Before[1].Int)
	assert.EqualValues(t, 1, row.After[0].Int)
	assert.EqualValues(t, 10, row.After[1].Int)

	// header, post-header, extras, column count, and bitmaps must be
	// byte-identical between input and output.
	prefixLen := EventHeaderSize + rowsEventPostHeaderSize + 2 + 1 + 2
	assert.Equal(t, event[:prefixLen], out[:prefixLen])

	// trailing checksum bytes preserved verbatim.
	assert.Equal(t, event[len(event)-4:], out[len(out)-4:])
}

// Invariant 6: two row pairs swap independently, preserving order
// [(b1,a1),(b2,a2)] -> [a1,b1,a2,b2].
func TestRewriteUpdateSwapTwoPairs(t *testing.T) {
	tableMap := &schema.TableMap{
		Columns: []schema.Column{
			{Ordinal: 0, Type: mysql.MYSQL_TYPE_TINY},
		},
	}

	var body []byte
	body = append(body, commonHeader(UPDATE_ROWS_EVENTv2, 0)...)
	body = append(body, make([]byte, rowsEventPostHeaderSize)...)
	body = append(body, le16(2)...)
	body = append(body, 1) // column count = 1
	body = append(body, 0x01, 0x01)

	body = append(body, 0, 1) // before1 = 1
	body = append(body, 0, 2) // after1 = 2
	body = append(body, 0, 3) // before2 = 3
	body = append(body, 0, 4) // after2 = 4
	body = append(body, 0, 0, 0, 0)

	header := &EventHeader{EventType: UPDATE_ROWS_EVENTv2}
	out, err := Rewrite(body, header, tableMap)
	require.NoError(t, err)

	decoded, err := DecodeRowsEvent(out[EventHeaderSize:], UPDATE_ROWS_EVENTv2, tableMap)
	require.NoError(t, err)
	require.Len(t, decoded.Rows, 2)

	assert.EqualValues(t, 2, decoded.Rows[0].Before[0].Int)
	assert.EqualValues(t, 1, decoded.Rows[0].After[0].Int)
	assert.EqualValues(t, 4, decoded.Rows[1].Before[0].Int)
	assert.EqualValues(t, 3, decoded.Rows[1].After[0].Int)
}

func TestRewriteUpdateUnpairedRowIsMalformed(t *testing.T) {
	tableMap := &schema.TableMap{
		Columns: []schema.Column{
			{Ordinal: 0, Type: mysql.MYSQL_TYPE_TINY},
		},
	}

	var body []byte
	body = append(body, commonHeader(UPDATE_ROWS_EVENTv2, 0)...)
	body = append(body, make([]byte, rowsEventPostHeaderSize)...)
	body = append(body, le16(2)...)
	body = append(body, 1)
	body = append(body, 0x01, 0x01)
	body = append(body, 0, 1) // single, unpaired record
	body = append(body, 0, 0, 0, 0)

	header := &EventHeader{EventType: UPDATE_ROWS_EVENTv2}
	_, err := Rewrite(body, header, tableMap)
	require.Error(t, err)
}
