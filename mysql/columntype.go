package mysql

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
)

// ColumnType is the MySQL protocol column type code, as found in
// TABLE_MAP_EVENT column-type arrays and COM_QUERY result set
// metadata. Values and names follow
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_dt_integers.html
type ColumnType byte

const (
	MYSQL_TYPE_DECIMAL ColumnType = 0x00
	MYSQL_TYPE_TINY    ColumnType = 0x01
	MYSQL_TYPE_SHORT   ColumnType = 0x02
	MYSQL_TYPE_LONG    ColumnType = 0x03
	MYSQL_TYPE_FLOAT   ColumnType = 0x04
	MYSQL_TYPE_DOUBLE  ColumnType = 0x05
	MYSQL_TYPE_NULL    ColumnType = 0x06
	MYSQL_TYPE_TIMESTAMP ColumnType = 0x07
	MYSQL_TYPE_LONGLONG  ColumnType = 0x08
	MYSQL_TYPE_INT24     ColumnType = 0x09
	MYSQL_TYPE_DATE      ColumnType = 0x0a
	MYSQL_TYPE_TIME      ColumnType = 0x0b
	MYSQL_TYPE_DATETIME  ColumnType = 0x0c
	MYSQL_TYPE_YEAR      ColumnType = 0x0d
	MYSQL_TYPE_NEWDATE   ColumnType = 0x0e
	MYSQL_TYPE_VARCHAR   ColumnType = 0x0f
	MYSQL_TYPE_BIT       ColumnType = 0x10
	MYSQL_TYPE_TIMESTAMP2 ColumnType = 0x11
	MYSQL_TYPE_DATETIME2  ColumnType = 0x12
	MYSQL_TYPE_TIME2      ColumnType = 0x13
	MYSQL_TYPE_JSON        ColumnType = 0xf5
	MYSQL_TYPE_NEWDECIMAL  ColumnType = 0xf6
	MYSQL_TYPE_ENUM        ColumnType = 0xf7
	MYSQL_TYPE_SET         ColumnType = 0xf8
	MYSQL_TYPE_TINY_BLOB   ColumnType = 0xf9
	MYSQL_TYPE_MEDIUM_BLOB ColumnType = 0xfa
	MYSQL_TYPE_LONG_BLOB   ColumnType = 0xfb
	MYSQL_TYPE_BLOB        ColumnType = 0xfc
	MYSQL_TYPE_VAR_STRING  ColumnType = 0xfd
	MYSQL_TYPE_STRING      ColumnType = 0xfe
	MYSQL_TYPE_GEOMETRY    ColumnType = 0xff
)

func (t ColumnType) String() string {
	switch t {
	case MYSQL_TYPE_DECIMAL:
		return "decimal"
	case MYSQL_TYPE_TINY:
		return "tiny"
	case MYSQL_TYPE_SHORT:
		return "short"
	case MYSQL_TYPE_LONG:
		return "long"
	case MYSQL_TYPE_FLOAT:
		return "float"
	case MYSQL_TYPE_DOUBLE:
		return "double"
	case MYSQL_TYPE_NULL:
		return "null"
	case MYSQL_TYPE_TIMESTAMP:
		return "timestamp"
	case MYSQL_TYPE_LONGLONG:
		return "longlong"
	case MYSQL_TYPE_INT24:
		return "int24"
	case MYSQL_TYPE_DATE:
		return "date"
	case MYSQL_TYPE_TIME:
		return "time"
	case MYSQL_TYPE_DATETIME:
		return "datetime"
	case MYSQL_TYPE_YEAR:
		return "year"
	case MYSQL_TYPE_NEWDATE:
		return "newdate"
	case MYSQL_TYPE_VARCHAR:
		return "varchar"
	case MYSQL_TYPE_BIT:
		return "bit"
	case MYSQL_TYPE_TIMESTAMP2:
		return "timestamp2"
	case MYSQL_TYPE_DATETIME2:
		return "datetime2"
	case MYSQL_TYPE_TIME2:
		return "time2"
	case MYSQL_TYPE_JSON:
		return "json"
	case MYSQL_TYPE_NEWDECIMAL:
		return "newdecimal"
	case MYSQL_TYPE_ENUM:
		return "enum"
	case MYSQL_TYPE_SET:
		return "set"
	case MYSQL_TYPE_TINY_BLOB:
		return "tiny_blob"
	case MYSQL_TYPE_MEDIUM_BLOB:
		return "medium_blob"
	case MYSQL_TYPE_LONG_BLOB:
		return "long_blob"
	case MYSQL_TYPE_BLOB:
		return "blob"
	case MYSQL_TYPE_VAR_STRING:
		return "var_string"
	case MYSQL_TYPE_STRING:
		return "string"
	case MYSQL_TYPE_GEOMETRY:
		return "geometry"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// digitsPerInteger is the number of base-10 digits MySQL's NEWDECIMAL
// format packs into each 4-byte "leg".
const digitsPerInteger = 9

// compressedBytes maps a count of leftover decimal digits (0-8) to the
// number of bytes MySQL uses to pack them, per
// my_decimal_get_binary_size in the server source.
var compressedBytes = [10]int{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

// DecimalSize returns the on-wire byte length of a NEWDECIMAL value
// with the given precision and scale, per MySQL's
// my_decimal_get_binary_size.
func DecimalSize(precision, scale int) int {
	integral := precision - scale
	uncompIntegral := integral / digitsPerInteger
	uncompFractional := scale / digitsPerInteger
	compIntegral := integral - uncompIntegral*digitsPerInteger
	compFractional := scale - uncompFractional*digitsPerInteger

	return uncompIntegral*4 + compressedBytes[compIntegral] +
		uncompFractional*4 + compressedBytes[compFractional]
}

// FSP (fractional seconds precision) maps a TIME2/DATETIME2/TIMESTAMP2
// meta byte to the number of bytes its fractional-second component
// occupies on the wire.
func FSP(meta byte) int {
	switch meta {
	case 1, 2:
		return 1
	case 3, 4:
		return 2
	case 5, 6:
		return 3
	default:
		return 0
	}
}

func decimalDecompressValue(compIndex int, data []byte, mask byte) (size int, value uint32) {
	size = compressedBytes[compIndex]
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		buf[i] = data[i] ^ mask
	}
	padded := make([]byte, 4)
	copy(padded[4-size:], buf)
	return size, binary.BigEndian.Uint32(padded)
}

// DecodeDecimal parses a NEWDECIMAL byte span into an exact decimal
// value. precision and scale come from the owning column's metadata
// byte pair.
func DecodeDecimal(data []byte, precision, scale int) (decimal.Decimal, error) {
	binSize := DecimalSize(precision, scale)
	if len(data) < binSize {
		return decimal.Decimal{}, errors.Annotatef(ErrCorruptPayload, "decimal needs %d bytes, got %d", binSize, len(data))
	}

	buf := make([]byte, binSize)
	copy(buf, data[:binSize])

	negative := buf[0]&0x80 == 0
	var mask byte
	if negative {
		mask = 0xff
	}
	buf[0] ^= 0x80

	integral := precision - scale
	uncompIntegral := integral / digitsPerInteger
	uncompFractional := scale / digitsPerInteger
	compIntegral := integral - uncompIntegral*digitsPerInteger
	compFractional := scale - uncompFractional*digitsPerInteger

	var out bytes.Buffer
	if negative {
		out.WriteByte('-')
	}

	pos, value := decimalDecompressValue(compIntegral, buf, mask)
	out.WriteString(fmt.Sprintf("%d", value))

	for i := 0; i < uncompIntegral; i++ {
		value = binary.BigEndian.Uint32(buf[pos:]) ^ uint32fill(mask)
		pos += 4
		out.WriteString(fmt.Sprintf("%09d", value))
	}

	out.WriteByte('.')

	for i := 0; i < uncompFractional; i++ {
		value = binary.BigEndian.Uint32(buf[pos:]) ^ uint32fill(mask)
		pos += 4
		out.WriteString(fmt.Sprintf("%09d", value))
	}

	if size, value := decimalDecompressValue(compFractional, buf[pos:], mask); size > 0 {
		out.WriteString(fmt.Sprintf("%0*d", compFractional, value))
	}

	s := normalizeDecimalText(out.String())
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Annotatef(ErrCorruptPayload, "parsing decoded decimal %q: %v", s, err)
	}
	return d, nil
}

func uint32fill(mask byte) uint32 {
	if mask == 0 {
		return 0
	}
	return 0xffffffff
}

// normalizeDecimalText strips the leading zeros and trailing dot that
// the leg-by-leg decode above produces.
func normalizeDecimalText(s string) string {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for len(s) > 1 && s[0] == '0' && s[1] != '.' {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if neg {
		s = "-" + s
	}
	return s
}
