package mysql

import (
	"encoding/binary"
	"math"
)

// TimeFormat is the MySQL DATETIME text representation used when
// stringifying decoded timestamps for logging and diagnostics.
const TimeFormat = "2006-01-02 15:04:05"

// FixedLengthInt reads a little-endian unsigned integer packed into
// fewer than 8 bytes, as used by commit-timestamp and similar
// fixed-width fields in GTID event bodies.
func FixedLengthInt(buf []byte) uint64 {
	var num uint64
	for i, b := range buf {
		num |= uint64(b) << (uint(i) * 8)
	}
	return num
}

// LengthEncodedInt decodes the MySQL client/server protocol's
// length-encoded integer: a 1-byte prefix selects the encoding width,
// with 0xfb meaning NULL. A 0xff prefix is not treated specially and
// decodes as the 1-byte value 255.
// It returns the decoded value, whether the value was NULL, and the
// number of bytes consumed.
func LengthEncodedInt(b []byte) (num uint64, isNull bool, n int) {
	if len(b) == 0 {
		return 0, false, 0
	}

	switch b[0] {
	case 0xfb:
		return 0, true, 1
	case 0xfc:
		if len(b) < 3 {
			return 0, false, 0
		}
		return uint64(b[1]) | uint64(b[2])<<8, false, 3
	case 0xfd:
		if len(b) < 4 {
			return 0, false, 0
		}
		return uint64(b[1]) | uint64(b[2])<<8 | uint64(b[3])<<16, false, 4
	case 0xfe:
		if len(b) < 9 {
			return 0, false, 0
		}
		return binary.LittleEndian.Uint64(b[1:9]), false, 9
	}

	return uint64(b[0]), false, 1
}

// ParseBinaryInt16 reads a little-endian signed 16-bit integer.
// Callers are expected to have already bounds-checked data.
func ParseBinaryInt16(data []byte) int16 {
	return int16(binary.LittleEndian.Uint16(data))
}

// ParseBinaryUint16 reads a little-endian unsigned 16-bit integer.
func ParseBinaryUint16(data []byte) uint16 {
	return binary.LittleEndian.Uint16(data)
}

// ParseBinaryInt32 reads a little-endian signed 32-bit integer.
func ParseBinaryInt32(data []byte) int32 {
	return int32(binary.LittleEndian.Uint32(data))
}

// ParseBinaryUint32 reads a little-endian unsigned 32-bit integer.
func ParseBinaryUint32(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data)
}

// ParseBinaryInt64 reads a little-endian signed 64-bit integer.
func ParseBinaryInt64(data []byte) int64 {
	return int64(binary.LittleEndian.Uint64(data))
}

// ParseBinaryUint64 reads a little-endian unsigned 64-bit integer.
func ParseBinaryUint64(data []byte) uint64 {
	return binary.LittleEndian.Uint64(data)
}

// ParseBinaryFloat64 reads a little-endian IEEE-754 double.
func ParseBinaryFloat64(data []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(data))
}

// ParseBinaryFloat32 reads a little-endian IEEE-754 single.
func ParseBinaryFloat32(data []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}
