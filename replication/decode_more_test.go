package replication

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventXID(t *testing.T) {
	header := &EventHeader{EventType: XID_EVENT}

	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, 99)

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	xe, ok := ev.(*XIDEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(99), xe.XID)
}

func TestDecodeEventPreviousGTIDs(t *testing.T) {
	header := &EventHeader{EventType: PREVIOUS_GTIDS_EVENT}

	sid := []byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3,
		0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}

	body := make([]byte, 48)
	binary.LittleEndian.PutUint64(body[0:8], 1) // classic format, 1 sid
	copy(body[8:24], sid)
	binary.LittleEndian.PutUint16(body[24:26], 1) // one interval slice
	binary.LittleEndian.PutUint64(body[32:40], 5) // interval start
	binary.LittleEndian.PutUint64(body[40:48], 6) // interval stop

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	pe, ok := ev.(*PreviousGTIDsEvent)
	require.True(t, ok)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000:5", pe.GTIDSets)
}

func TestDecodeEventBeginLoadQuery(t *testing.T) {
	header := &EventHeader{EventType: BEGIN_LOAD_QUERY_EVENT}

	body := make([]byte, 4+len("row data"))
	binary.LittleEndian.PutUint32(body[0:4], 7)
	copy(body[4:], "row data")

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	be, ok := ev.(*BeginLoadQueryEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(7), be.FileID)
	assert.Equal(t, "row data", string(be.BlockData))
}

func TestDecodeEventExecuteLoadQuery(t *testing.T) {
	header := &EventHeader{EventType: EXECUTE_LOAD_QUERY_EVENT}

	body := make([]byte, 26)
	binary.LittleEndian.PutUint32(body[0:4], 1)   // slave proxy id
	binary.LittleEndian.PutUint32(body[4:8], 2)   // execution time
	body[8] = 0                                   // schema length
	binary.LittleEndian.PutUint16(body[9:11], 0)  // error code
	binary.LittleEndian.PutUint16(body[11:13], 0) // status vars length
	binary.LittleEndian.PutUint32(body[13:17], 11) // file id
	binary.LittleEndian.PutUint32(body[17:21], 0)  // start pos
	binary.LittleEndian.PutUint32(body[21:25], 20) // end pos
	body[25] = 1                                   // dup handling flags

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	ee, ok := ev.(*ExecuteLoadQueryEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(11), ee.FileID)
	assert.Equal(t, uint32(20), ee.EndPos)
	assert.Equal(t, uint8(1), ee.DupHandlingFlags)
}

func TestDecodeEventIntVar(t *testing.T) {
	header := &EventHeader{EventType: INTVAR_EVENT}

	body := make([]byte, 9)
	body[0] = byte(LastInsertIDIntVar)
	binary.LittleEndian.PutUint64(body[1:], 1001)

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	iv, ok := ev.(*IntVarEvent)
	require.True(t, ok)
	assert.Equal(t, LastInsertIDIntVar, iv.Type)
	assert.Equal(t, uint64(1001), iv.Value)
}

func TestDecodeEventMariadbAnnotateRows(t *testing.T) {
	header := &EventHeader{EventType: MARIADB_ANNOTATE_ROWS_EVENT}

	ev, err := DecodeEvent(header, []byte("INSERT INTO t VALUES (1)"))
	require.NoError(t, err)

	ae, ok := ev.(*MariadbAnnotateRowsEvent)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO t VALUES (1)", string(ae.Query))
}

func TestDecodeEventMariadbBinlogCheckPoint(t *testing.T) {
	header := &EventHeader{EventType: MARIADB_BINLOG_CHECKPOINT_EVENT}

	ev, err := DecodeEvent(header, []byte("binlog.000001"))
	require.NoError(t, err)

	ce, ok := ev.(*MariadbBinlogCheckPointEvent)
	require.True(t, ok)
	assert.Equal(t, "binlog.000001", string(ce.Info))
}

func TestDecodeEventMariadbGTIDList(t *testing.T) {
	header := &EventHeader{EventType: MARIADB_GTID_LIST_EVENT}

	body := make([]byte, 4+16)
	binary.LittleEndian.PutUint32(body[0:4], 1) // count=1, no flag bits
	binary.LittleEndian.PutUint32(body[4:8], 3)  // domain id
	binary.LittleEndian.PutUint32(body[8:12], 4) // server id
	binary.LittleEndian.PutUint64(body[12:20], 5) // sequence number

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	le, ok := ev.(*MariadbGTIDListEvent)
	require.True(t, ok)
	require.Len(t, le.GTIDs, 1)
	assert.Equal(t, uint32(3), le.GTIDs[0].DomainID)
	assert.Equal(t, uint32(4), le.GTIDs[0].ServerID)
	assert.Equal(t, uint64(5), le.GTIDs[0].SequenceNumber)
}

func TestDecodeEventMariadbGTIDTaggedLog(t *testing.T) {
	header := &EventHeader{EventType: MARIADB_GTID_TAGGED_LOG_EVENT}

	sid := []byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3,
		0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}

	body := append([]byte{0}, sid...)              // commit flag, sid
	body = append(body, 7)                         // gno
	body = append(body, 0)                         // tag length (no tag)
	body = append(body, 3)                         // last committed
	body = append(body, 4)                         // sequence number
	body = append(body, 100)                        // immediate commit ts
	body = append(body, 50)                        // transaction length
	body = append(body, 8)                          // immediate server version

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	ge, ok := ev.(*GtidTaggedLogEvent)
	require.True(t, ok)
	assert.Equal(t, int64(7), ge.GNO)
	assert.Equal(t, "", ge.Tag)
	assert.Equal(t, int64(3), ge.LastCommitted)
	assert.Equal(t, int64(4), ge.SequenceNumber)
	assert.Equal(t, uint64(100), ge.ImmediateCommitTimestamp)
	assert.Equal(t, uint64(100), ge.OriginalCommitTimestamp)
	assert.Equal(t, uint32(8), ge.ImmediateServerVersion)
	assert.Equal(t, uint32(8), ge.OriginalServerVersion)
}

func TestDecodeEventQueryPlain(t *testing.T) {
	header := &EventHeader{EventType: QUERY_EVENT}

	body := make([]byte, 0)
	body = binary.LittleEndian.AppendUint32(body, 1)
	body = binary.LittleEndian.AppendUint32(body, 0)
	body = append(body, byte(len("db")))
	body = binary.LittleEndian.AppendUint16(body, 0)
	body = binary.LittleEndian.AppendUint16(body, 0)
	body = append(body, "db"...)
	body = append(body, 0)
	body = append(body, "SELECT 1"...)

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	qe, ok := ev.(*QueryEvent)
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", string(qe.Query))
}
