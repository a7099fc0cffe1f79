package replication

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventFormatDescription(t *testing.T) {
	header := &EventHeader{EventType: FORMAT_DESCRIPTION_EVENT}

	body := make([]byte, 57)
	binary.LittleEndian.PutUint16(body[0:], 4) // binlog format version
	body[56] = byte(EventHeaderSize)           // event header length, must be 19

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	fde, ok := ev.(*FormatDescriptionEvent)
	require.True(t, ok)
	assert.Equal(t, uint16(4), fde.Version)
	assert.Equal(t, BINLOG_CHECKSUM_ALG_UNDEF, fde.ChecksumAlgorithm)
}

func TestDecodeEventRotate(t *testing.T) {
	header := &EventHeader{EventType: ROTATE_EVENT}

	body := make([]byte, 8+len("binlog.000002"))
	binary.LittleEndian.PutUint64(body[0:], 154)
	copy(body[8:], "binlog.000002")

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	re, ok := ev.(*RotateEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(154), re.Position)
	assert.Equal(t, "binlog.000002", string(re.NextLogName))
}

func TestDecodeEventGTIDResolvesGTIDNext(t *testing.T) {
	header := &EventHeader{EventType: GTID_EVENT}

	sid := []byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3,
		0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}

	body := make([]byte, 1+16+8)
	body[0] = 2 // commit flag
	copy(body[1:17], sid)
	binary.LittleEndian.PutUint64(body[17:], 5) // GNO

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	gtidNext, err := GTIDNextOf(ev)
	require.NoError(t, err)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000:5", gtidNext)
}

func TestDecodeEventMariadbGTIDResolvesGTIDNext(t *testing.T) {
	header := &EventHeader{EventType: MARIADB_GTID_EVENT}

	body := make([]byte, 8+4+1)
	binary.LittleEndian.PutUint64(body[0:], 42) // sequence number
	binary.LittleEndian.PutUint32(body[8:], 0)  // domain id
	body[12] = 0                                // flags

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	gtidNext, err := GTIDNextOf(ev)
	require.NoError(t, err)
	assert.Equal(t, "0-0-42", gtidNext)
}

func TestDecodeEventQueryCompressed(t *testing.T) {
	header := &EventHeader{EventType: MARIADB_QUERY_COMPRESSED_EVENT}

	plain := []byte("UPDATE t SET v = v + 1")
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	body := make([]byte, 0, 4+2+1+len("db")+1+2+compressed.Len())
	body = binary.LittleEndian.AppendUint32(body, 1) // slave proxy id
	body = binary.LittleEndian.AppendUint32(body, 0) // execution time
	body = append(body, byte(len("db")))             // schema length
	body = binary.LittleEndian.AppendUint16(body, 0) // error code
	body = binary.LittleEndian.AppendUint16(body, 0) // status vars length
	body = append(body, "db"...)
	body = append(body, 0) // NUL separator
	body = append(body, mariadbCompressionHeader(len(plain))...)
	body = append(body, compressed.Bytes()...)

	ev, err := DecodeEvent(header, body)
	require.NoError(t, err)

	qe, ok := ev.(*QueryEvent)
	require.True(t, ok)
	assert.Equal(t, plain, qe.Query)
	assert.Equal(t, "db", string(qe.Schema))
}

// mariadbCompressionHeader builds the 1-byte algorithm marker (zlib)
// plus length-encoded uncompressed size that precedes a MariaDB
// COMPRESSED event's zlib stream.
func mariadbCompressionHeader(uncompressedLen int) []byte {
	return []byte{0, byte(uncompressedLen)}
}

func TestDecodeEventUnsupportedType(t *testing.T) {
	header := &EventHeader{EventType: STOP_EVENT}

	_, err := DecodeEvent(header, nil)
	assert.Error(t, err)
}
