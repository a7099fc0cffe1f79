package replication

import (
	"fmt"
	"math"

	"github.com/pingcap/errors"

	"github.com/ocelotdb/binlog-codec/mysql"
	"github.com/ocelotdb/binlog-codec/utils"
)

// JSONB wire type tags, per mysql-server's json_binary.h.
const (
	JSONB_SMALL_OBJECT byte = iota // small JSON object
	JSONB_LARGE_OBJECT             // large JSON object
	JSONB_SMALL_ARRAY               // small JSON array
	JSONB_LARGE_ARRAY               // large JSON array
	JSONB_LITERAL                   // literal (true/false/null)
	JSONB_INT16                     // int16
	JSONB_UINT16                    // uint16
	JSONB_INT32                     // int32
	JSONB_UINT32                    // uint32
	JSONB_INT64                     // int64
	JSONB_UINT64                    // uint64
	JSONB_DOUBLE                    // double
	JSONB_STRING                    // string
	JSONB_OPAQUE       byte = 0x0f // custom data (any MySQL data type)
)

const (
	JSONB_NULL_LITERAL  byte = 0x00
	JSONB_TRUE_LITERAL  byte = 0x01
	JSONB_FALSE_LITERAL byte = 0x02
)

const (
	jsonbSmallOffsetSize = 2
	jsonbLargeOffsetSize = 4

	jsonbKeyEntrySizeSmall = 2 + jsonbSmallOffsetSize
	jsonbKeyEntrySizeLarge = 2 + jsonbLargeOffsetSize

	jsonbValueEntrySizeSmall = 1 + jsonbSmallOffsetSize
	jsonbValueEntrySizeLarge = 1 + jsonbLargeOffsetSize
)

// DecodeJSONBinary parses a MySQL internal JSONB column value into a
// Value tree. declaredLength is the length recorded in the owning
// column's length prefix; the decoder refuses to read past it even if
// data itself is longer (e.g. because it's a shared buffer).
func DecodeJSONBinary(data []byte, declaredLength int) (Value, error) {
	if declaredLength >= 0 && declaredLength < len(data) {
		data = data[:declaredLength]
	}

	d := &jsonBinaryDecoder{}

	if d.isDataShort(data, 1) {
		return Value{}, d.err
	}

	v := d.decodeValue(data[0], data[1:])
	if d.err != nil {
		return Value{}, d.err
	}

	return v, nil
}

// jsonBinaryDecoder walks one JSONB blob. It accumulates the first
// error encountered in err and every decode step checks it up front,
// so a single deeply nested decode pass never needs to propagate
// errors by hand through every recursive call.
type jsonBinaryDecoder struct {
	err error
}

func (d *jsonBinaryDecoder) decodeValue(tp byte, data []byte) Value {
	if d.err != nil {
		return Value{}
	}

	switch tp {
	case JSONB_SMALL_OBJECT:
		return d.decodeObjectOrArray(data, true, true)
	case JSONB_LARGE_OBJECT:
		return d.decodeObjectOrArray(data, false, true)
	case JSONB_SMALL_ARRAY:
		return d.decodeObjectOrArray(data, true, false)
	case JSONB_LARGE_ARRAY:
		return d.decodeObjectOrArray(data, false, false)
	case JSONB_LITERAL:
		return d.decodeLiteral(data)
	case JSONB_INT16:
		return IntValue(int64(d.decodeInt16(data)))
	case JSONB_UINT16:
		return UintValue(uint64(d.decodeUint16(data)))
	case JSONB_INT32:
		return IntValue(int64(d.decodeInt32(data)))
	case JSONB_UINT32:
		return UintValue(uint64(d.decodeUint32(data)))
	case JSONB_INT64:
		return IntValue(d.decodeInt64(data))
	case JSONB_UINT64:
		return UintValue(d.decodeUint64(data))
	case JSONB_DOUBLE:
		return DoubleValue(d.decodeDouble(data))
	case JSONB_STRING:
		return StringValue(d.decodeString(data))
	case JSONB_OPAQUE:
		return d.decodeOpaque(data)
	default:
		d.err = errors.Annotatef(mysql.ErrUnknownType, "jsonb type tag 0x%02x", tp)
	}

	return Value{}
}

func (d *jsonBinaryDecoder) decodeObjectOrArray(data []byte, isSmall bool, isObject bool) Value {
	offsetSize := jsonbGetOffsetSize(isSmall)
	if d.isDataShort(data, 2*offsetSize) {
		return Value{}
	}

	count := d.decodeCount(data, isSmall)
	size := d.decodeCount(data[offsetSize:], isSmall)

	if d.isDataShort(data, size) {
		return Value{}
	}

	keyEntrySize := jsonbGetKeyEntrySize(isSmall)
	valueEntrySize := jsonbGetValueEntrySize(isSmall)

	headerSize := 2*offsetSize + count*valueEntrySize
	if isObject {
		headerSize += count * keyEntrySize
	}

	if headerSize > size {
		d.err = errors.Annotatef(mysql.ErrCorruptPayload, "jsonb header size %d exceeds container size %d", headerSize, size)
		return Value{}
	}

	var keys []string
	if isObject {
		keys = make([]string, count)
		for i := 0; i < count; i++ {
			entryOffset := 2*offsetSize + keyEntrySize*i
			keyOffset := d.decodeCount(data[entryOffset:], isSmall)
			keyLength := int(d.decodeUint16(data[entryOffset+offsetSize:]))

			if keyOffset < headerSize {
				d.err = errors.Annotatef(mysql.ErrCorruptPayload, "jsonb key offset %d precedes header end %d", keyOffset, headerSize)
				return Value{}
			}
			if d.isDataShort(data, keyOffset+keyLength) {
				return Value{}
			}

			keys[i] = utils.ByteSliceToString(data[keyOffset : keyOffset+keyLength])
		}
	}

	if d.err != nil {
		return Value{}
	}

	values := make([]Value, count)
	for i := 0; i < count; i++ {
		entryOffset := 2*offsetSize + valueEntrySize*i
		if isObject {
			entryOffset += keyEntrySize * count
		}

		tp := data[entryOffset]

		if isInlineValue(tp, isSmall) {
			values[i] = d.decodeValue(tp, data[entryOffset+1:entryOffset+valueEntrySize])
			continue
		}

		valueOffset := d.decodeCount(data[entryOffset+1:], isSmall)
		if d.isDataShort(data, valueOffset) {
			return Value{}
		}

		values[i] = d.decodeValue(tp, data[valueOffset:])
	}

	if d.err != nil {
		return Value{}
	}

	if !isObject {
		return ArrayValue(values)
	}

	obj := NewOrderedObject(count)
	for i := 0; i < count; i++ {
		obj.Set(keys[i], values[i])
	}
	return ObjectValue(obj)
}

// isInlineValue reports whether a value entry's payload is stored
// inline in the entry itself rather than at an indirect offset.
// Literals and 16-bit scalars always qualify; 32-bit scalars qualify
// only in large containers, where the value-entry payload slot is 4
// bytes wide.
func isInlineValue(tp byte, isSmall bool) bool {
	switch tp {
	case JSONB_INT16, JSONB_UINT16, JSONB_LITERAL:
		return true
	case JSONB_INT32, JSONB_UINT32:
		return !isSmall
	}
	return false
}

func (d *jsonBinaryDecoder) decodeLiteral(data []byte) Value {
	if d.isDataShort(data, 1) {
		return Value{}
	}

	switch data[0] {
	case JSONB_NULL_LITERAL:
		return NullValue()
	case JSONB_TRUE_LITERAL:
		return BoolValue(true)
	case JSONB_FALSE_LITERAL:
		return BoolValue(false)
	}

	d.err = errors.Annotatef(mysql.ErrCorruptPayload, "invalid jsonb literal sub-code 0x%02x", data[0])
	return Value{}
}

func (d *jsonBinaryDecoder) isDataShort(data []byte, expected int) bool {
	if d.err != nil {
		return true
	}
	if len(data) < expected {
		d.err = errors.Annotatef(mysql.ErrCorruptPayload, "jsonb data len %d < expected %d", len(data), expected)
	}
	return d.err != nil
}

func (d *jsonBinaryDecoder) decodeInt16(data []byte) int16 {
	if d.isDataShort(data, 2) {
		return 0
	}
	return mysql.ParseBinaryInt16(data[0:2])
}

func (d *jsonBinaryDecoder) decodeUint16(data []byte) uint16 {
	if d.isDataShort(data, 2) {
		return 0
	}
	return mysql.ParseBinaryUint16(data[0:2])
}

func (d *jsonBinaryDecoder) decodeInt32(data []byte) int32 {
	if d.isDataShort(data, 4) {
		return 0
	}
	return mysql.ParseBinaryInt32(data[0:4])
}

func (d *jsonBinaryDecoder) decodeUint32(data []byte) uint32 {
	if d.isDataShort(data, 4) {
		return 0
	}
	return mysql.ParseBinaryUint32(data[0:4])
}

func (d *jsonBinaryDecoder) decodeInt64(data []byte) int64 {
	if d.isDataShort(data, 8) {
		return 0
	}
	return mysql.ParseBinaryInt64(data[0:8])
}

func (d *jsonBinaryDecoder) decodeUint64(data []byte) uint64 {
	if d.isDataShort(data, 8) {
		return 0
	}
	return mysql.ParseBinaryUint64(data[0:8])
}

func (d *jsonBinaryDecoder) decodeDouble(data []byte) float64 {
	if d.isDataShort(data, 8) {
		return 0
	}
	return mysql.ParseBinaryFloat64(data[0:8])
}

func (d *jsonBinaryDecoder) decodeString(data []byte) string {
	if d.err != nil {
		return ""
	}

	l, n := d.decodeVariableLength(data)
	if d.isDataShort(data, l+n) {
		return ""
	}

	data = data[n:]
	return utils.ByteSliceToString(data[0:l])
}

func (d *jsonBinaryDecoder) decodeOpaque(data []byte) Value {
	if d.isDataShort(data, 1) {
		return Value{}
	}

	tp := mysql.ColumnType(data[0])
	data = data[1:]

	l, n := d.decodeVariableLength(data)
	if d.isDataShort(data, l+n) {
		return Value{}
	}
	data = data[n : l+n]

	switch tp {
	case mysql.MYSQL_TYPE_NEWDECIMAL:
		return d.decodeDecimal(data)
	case mysql.MYSQL_TYPE_TIME:
		return StringValue(d.decodeTime(data))
	case mysql.MYSQL_TYPE_DATE, mysql.MYSQL_TYPE_DATETIME, mysql.MYSQL_TYPE_TIMESTAMP:
		return StringValue(d.decodeDateTime(data))
	default:
		return StringValue(utils.ByteSliceToString(data))
	}
}

func (d *jsonBinaryDecoder) decodeDecimal(data []byte) Value {
	if d.isDataShort(data, 2) {
		return Value{}
	}
	precision := int(data[0])
	scale := int(data[1])

	v, err := mysql.DecodeDecimal(data[2:], precision, scale)
	if err != nil {
		d.err = err
		return Value{}
	}
	return StringValue(v.String())
}

func (d *jsonBinaryDecoder) decodeTime(data []byte) string {
	v := d.decodeInt64(data)
	if v == 0 {
		return "00:00:00"
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	intPart := v >> 24
	hour := (intPart >> 12) % (1 << 10)
	min := (intPart >> 6) % (1 << 6)
	sec := intPart % (1 << 6)
	frac := v % (1 << 24)

	return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, hour, min, sec, frac)
}

func (d *jsonBinaryDecoder) decodeDateTime(data []byte) string {
	v := d.decodeInt64(data)
	if v == 0 {
		return "0000-00-00 00:00:00"
	}
	if v < 0 {
		v = -v
	}

	intPart := v >> 24
	ymd := intPart >> 17
	ym := ymd >> 5
	hms := intPart % (1 << 17)

	year := ym / 13
	month := ym % 13
	day := ymd % (1 << 5)
	hour := hms >> 12
	minute := (hms >> 6) % (1 << 6)
	second := hms % (1 << 6)
	frac := v % (1 << 24)

	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", year, month, day, hour, minute, second, frac)
}

func (d *jsonBinaryDecoder) decodeCount(data []byte, isSmall bool) int {
	if isSmall {
		return int(d.decodeUint16(data))
	}
	return int(d.decodeUint32(data))
}

// decodeVariableLength reads MySQL's base-128 variable-length integer
// encoding: 7 payload bits per byte, continuation signalled by the
// high bit, up to 5 bytes (enough for a uint32 length).
func (d *jsonBinaryDecoder) decodeVariableLength(data []byte) (int, int) {
	maxCount := 5
	if len(data) < maxCount {
		maxCount = len(data)
	}

	pos := 0
	length := uint64(0)
	for ; pos < maxCount; pos++ {
		v := data[pos]
		length |= uint64(v&0x7F) << uint(7*pos)

		if v&0x80 == 0 {
			if length > math.MaxUint32 {
				d.err = errors.Annotatef(mysql.ErrCorruptPayload, "jsonb variable length %d exceeds uint32", length)
				return 0, 0
			}
			pos++
			return int(length), pos
		}
	}

	d.err = errors.Annotate(mysql.ErrCorruptPayload, "jsonb variable length prefix never terminated")
	return 0, 0
}

func jsonbGetOffsetSize(isSmall bool) int {
	if isSmall {
		return jsonbSmallOffsetSize
	}
	return jsonbLargeOffsetSize
}

func jsonbGetKeyEntrySize(isSmall bool) int {
	if isSmall {
		return jsonbKeyEntrySizeSmall
	}
	return jsonbKeyEntrySizeLarge
}

func jsonbGetValueEntrySize(isSmall bool) int {
	if isSmall {
		return jsonbValueEntrySizeSmall
	}
	return jsonbValueEntrySizeLarge
}
