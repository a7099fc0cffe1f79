package replication

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocelotdb/binlog-codec/mysql"
)

// S1: a bare literal tag decodes to the literal's boolean value.
func TestDecodeJSONBinaryLiteral(t *testing.T) {
	data := []byte{JSONB_LITERAL, JSONB_TRUE_LITERAL}
	v, err := DecodeJSONBinary(data, len(data))
	require.NoError(t, err)
	assert.Equal(t, KindBool, v.Kind)
	assert.True(t, v.Bool)
}

// S2: a small object with one int16-inlined value decodes with its
// key and value intact.
func TestDecodeJSONBinarySmallObjectInt16(t *testing.T) {
	// Container body (after the root type tag):
	//   count=1 (u16), size=u16 (header+value entry, no indirect payload)
	//   key entry: offset=u16, length=u16
	//   value entry: type=JSONB_INT16, inline word (2 bytes)
	//   key bytes: "a"
	keyEntrySize := 4
	valueEntrySize := 3
	headerSize := 2 + 2 + keyEntrySize + valueEntrySize
	keyOffset := headerSize
	size := headerSize + 1 // + 1 byte for the key "a"

	body := make([]byte, 0, size)
	body = append(body, le16(1)...)      // count
	body = append(body, le16(size)...)   // byte_size
	body = append(body, le16(keyOffset)...)
	body = append(body, le16(1)...) // key length
	body = append(body, JSONB_INT16)
	body = append(body, le16(1)...) // inlined value = 1
	body = append(body, 'a')

	data := append([]byte{JSONB_SMALL_OBJECT}, body...)

	v, err := DecodeJSONBinary(data, len(data))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind)
	require.Equal(t, 1, v.Object.Len())

	val, ok := v.Object.Get("a")
	require.True(t, ok)
	assert.Equal(t, KindInt, val.Kind)
	assert.EqualValues(t, 1, val.Int)
}

// S3: a string scalar decodes to its UTF-8 payload.
func TestDecodeJSONBinaryString(t *testing.T) {
	data := []byte{JSONB_STRING, 0x03, 'f', 'o', 'o'}
	v, err := DecodeJSONBinary(data, len(data))
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "foo", v.Str)
}

// Invariant 2: every literal, scalar and container tag in the closed
// enumeration except JSONB_OPAQUE decodes successfully for a minimal
// test vector.
func TestDecodeJSONBinaryTypeTagExhaustiveness(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		kind Kind
	}{
		{"null", []byte{JSONB_LITERAL, JSONB_NULL_LITERAL}, KindNull},
		{"true", []byte{JSONB_LITERAL, JSONB_TRUE_LITERAL}, KindBool},
		{"false", []byte{JSONB_LITERAL, JSONB_FALSE_LITERAL}, KindBool},
		{"int16", append([]byte{JSONB_INT16}, le16(-1)...), KindInt},
		{"uint16", append([]byte{JSONB_UINT16}, le16(1)...), KindUint},
		{"int32", append([]byte{JSONB_INT32}, le32(-1)...), KindInt},
		{"uint32", append([]byte{JSONB_UINT32}, le32(1)...), KindUint},
		{"int64", append([]byte{JSONB_INT64}, le64(-1)...), KindInt},
		{"uint64", append([]byte{JSONB_UINT64}, le64(1)...), KindUint},
		{"double", append([]byte{JSONB_DOUBLE}, le64(int64(doubleBitsOne()))...), KindDouble},
		{"string", []byte{JSONB_STRING, 0x00}, KindString},
		{"small object", append([]byte{JSONB_SMALL_OBJECT}, le16(0)...), KindObject},
		{"small array", append([]byte{JSONB_SMALL_ARRAY}, le16(0)...), KindArray},
		{"large object", append([]byte{JSONB_LARGE_OBJECT}, le32(0)...), KindObject},
		{"large array", append([]byte{JSONB_LARGE_ARRAY}, le32(0)...), KindArray},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data := c.data
			if c.name == "small object" || c.name == "small array" {
				data = append(data, le16(4)...) // count=0, size=4 (just the header)
			}
			if c.name == "large object" || c.name == "large array" {
				data = append(data, le32(8)...) // count=0, size=8 (just the header)
			}
			v, err := DecodeJSONBinary(data, len(data))
			require.NoError(t, err)
			assert.Equal(t, c.kind, v.Kind)
		})
	}
}

// Invariant 3: a container whose declared byte_size exceeds the
// supplied budget fails with CorruptPayload.
func TestDecodeJSONBinaryBudgetEnforcement(t *testing.T) {
	// count=0, size=9999 (far larger than remaining data)
	body := append(le16(0), le16(9999)...)
	data := append([]byte{JSONB_SMALL_OBJECT}, body...)

	_, err := DecodeJSONBinary(data, len(data))
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), mysql.ErrCorruptPayload)
}

// Invariant 4: a string tag with a two-byte varlen prefix [0xAC 0x02]
// (=300) followed by 300 payload bytes decodes to a 300-byte string.
func TestDecodeJSONBinaryVarLenStringLength(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	data := append([]byte{JSONB_STRING, 0xAC, 0x02}, payload...)
	v, err := DecodeJSONBinary(data, len(data))
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)
	assert.Len(t, v.Str, 300)
}

func TestDecodeJSONBinaryUnknownTag(t *testing.T) {
	data := []byte{0x7f}
	_, err := DecodeJSONBinary(data, len(data))
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), mysql.ErrUnknownType)
}

func le16(v int) []byte {
	u := uint16(v)
	return []byte{byte(u), byte(u >> 8)}
}

func le32(v int) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64(v int64) []byte {
	u := uint64(v)
	return []byte{
		byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24),
		byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56),
	}
}

func doubleBitsOne() int64 {
	return 4607182418800017408 // IEEE-754 bits of 1.0
}
