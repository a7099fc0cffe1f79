package replication

import (
	"fmt"
	"time"

	"github.com/pingcap/errors"

	"github.com/ocelotdb/binlog-codec/mysql"
	"github.com/ocelotdb/binlog-codec/schema"
)

// RowsEvent is the decoded form of a WRITE_ROWS / UPDATE_ROWS /
// DELETE_ROWS event body: the table id the event applies to, plus one
// Row per logical row mutation. For WRITE and DELETE, Row.After and
// Row.Before respectively hold the only image; for UPDATE both are
// populated.
type RowsEvent struct {
	TableID uint64
	Flags   uint16
	Rows    []Row
}

// Row is one row mutation: Before holds the pre-image (nil for
// WRITE_ROWS), After holds the post-image (nil for DELETE_ROWS). Each
// image is keyed by column ordinal, matching tableMap.Columns.
type Row struct {
	Before []Value
	After  []Value
}

// DecodeRowsEvent parses a WRITE_ROWS/UPDATE_ROWS/DELETE_ROWS_EVENTv1
// or v2 body (everything after the common 19-byte header) using
// tableMap for column types and meta.
func DecodeRowsEvent(data []byte, eventType EventType, tableMap *schema.TableMap) (*RowsEvent, error) {
	if tableMap == nil {
		return nil, errors.Annotate(mysql.ErrMalformedEvent, "rows event requires a table map")
	}

	pos := 0
	if len(data) < rowsEventPostHeaderSize {
		return nil, errors.Trace(mysql.ErrMalformedEvent)
	}
	tableID := mysql.FixedLengthInt(data[pos : pos+6])
	pos += 6
	flags := mysql.ParseBinaryUint16(data[pos : pos+2])
	pos += 2

	switch eventType {
	case WRITE_ROWS_EVENTv2, UPDATE_ROWS_EVENTv2, DELETE_ROWS_EVENTv2:
		if pos+2 > len(data) {
			return nil, errors.Trace(mysql.ErrMalformedEvent)
		}
		extraLen := int(mysql.ParseBinaryUint16(data[pos : pos+2]))
		pos += 2
		if extraLen < 2 {
			return nil, errors.Annotatef(mysql.ErrMalformedEvent, "extra-data-length %d < 2", extraLen)
		}
		pos += extraLen - 2
	}

	columnCount, n, err := readPackedColumnCount(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if columnCount > len(tableMap.Columns) {
		return nil, errors.Annotatef(mysql.ErrMalformedEvent, "event declares %d columns, table map has %d", columnCount, len(tableMap.Columns))
	}

	bitmapWidth := (columnCount + 7) / 8
	if pos+bitmapWidth > len(data) {
		return nil, errors.Trace(mysql.ErrMalformedEvent)
	}
	presentBefore := data[pos : pos+bitmapWidth]
	pos += bitmapWidth

	var presentAfter []byte
	if eventType.IsUpdateRows() {
		if pos+bitmapWidth > len(data) {
			return nil, errors.Trace(mysql.ErrMalformedEvent)
		}
		presentAfter = data[pos : pos+bitmapWidth]
		pos += bitmapWidth
	}

	event := &RowsEvent{TableID: tableID, Flags: flags}

	for len(data)-pos > 4 {
		row := Row{}

		if eventType.IsUpdateRows() || eventType.IsDeleteRows() {
			before, next, err := decodeRowImage(data[pos:], tableMap, presentBefore, columnCount)
			if err != nil {
				return nil, err
			}
			row.Before = before
			pos += next
		}
		if eventType.IsUpdateRows() || eventType.IsWriteRows() {
			present := presentBefore
			if eventType.IsUpdateRows() {
				present = presentAfter
			}
			after, next, err := decodeRowImage(data[pos:], tableMap, present, columnCount)
			if err != nil {
				return nil, err
			}
			row.After = after
			pos += next
		}

		event.Rows = append(event.Rows, row)
	}

	return event, nil
}

// decodeRowImage reads one NULL-bitmap-prefixed record: the value for
// every column flagged present in bitmap, or NullValue() for columns
// flagged NULL. Returns the decoded values (indexed by column
// ordinal, with absent columns left as NullValue()) and the number of
// bytes consumed.
func decodeRowImage(data []byte, tableMap *schema.TableMap, present []byte, columnCount int) ([]Value, int, error) {
	bitmapWidth := (columnCount + 7) / 8
	if len(data) < bitmapWidth {
		return nil, 0, errors.Trace(mysql.ErrMalformedEvent)
	}
	nulls := data[:bitmapWidth]
	pos := bitmapWidth

	values := make([]Value, columnCount)
	for col := 0; col < columnCount; col++ {
		if !isPresentColumn(present, col) {
			values[col] = NullValue()
			continue
		}
		if isNullColumn(nulls, col) {
			values[col] = NullValue()
			continue
		}
		if col >= len(tableMap.Columns) {
			return nil, 0, errors.Annotatef(mysql.ErrMalformedEvent, "column %d has no table map entry", col)
		}

		v, width, err := decodeColumnValue(data[pos:], tableMap.Columns[col])
		if err != nil {
			return nil, 0, err
		}
		values[col] = v
		pos += width
	}

	return values, pos, nil
}

func isPresentColumn(present []byte, col int) bool {
	byteIdx := col / 8
	bitIdx := uint(col % 8)
	if byteIdx >= len(present) {
		return false
	}
	return present[byteIdx]&(1<<bitIdx) != 0
}

// decodeColumnValue decodes one non-null packed column value,
// returning its semantic Value and the number of bytes it occupied
// (including any length prefix).
func decodeColumnValue(data []byte, col schema.Column) (Value, int, error) {
	meta := func(i int) int {
		if i < len(col.Meta) {
			return col.Meta[i]
		}
		return 0
	}

	switch col.Type {
	case mysql.MYSQL_TYPE_TINY:
		if len(data) < 1 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		if col.Unsigned {
			return UintValue(uint64(data[0])), 1, nil
		}
		return IntValue(int64(int8(data[0]))), 1, nil

	case mysql.MYSQL_TYPE_SHORT:
		if len(data) < 2 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		if col.Unsigned {
			return UintValue(uint64(mysql.ParseBinaryUint16(data[:2]))), 2, nil
		}
		return IntValue(int64(mysql.ParseBinaryInt16(data[:2]))), 2, nil

	case mysql.MYSQL_TYPE_INT24:
		if len(data) < 3 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		u := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
		if col.Unsigned {
			return UintValue(uint64(u)), 3, nil
		}
		if u&0x800000 != 0 {
			u |= 0xff000000
		}
		return IntValue(int64(int32(u))), 3, nil

	case mysql.MYSQL_TYPE_LONG:
		if len(data) < 4 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		if col.Unsigned {
			return UintValue(uint64(mysql.ParseBinaryUint32(data[:4]))), 4, nil
		}
		return IntValue(int64(mysql.ParseBinaryInt32(data[:4]))), 4, nil

	case mysql.MYSQL_TYPE_LONGLONG:
		if len(data) < 8 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		if col.Unsigned {
			return UintValue(mysql.ParseBinaryUint64(data[:8])), 8, nil
		}
		return IntValue(mysql.ParseBinaryInt64(data[:8])), 8, nil

	case mysql.MYSQL_TYPE_FLOAT:
		if len(data) < 4 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		return DoubleValue(float64(mysql.ParseBinaryFloat32(data[:4]))), 4, nil

	case mysql.MYSQL_TYPE_DOUBLE:
		if len(data) < 8 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		return DoubleValue(mysql.ParseBinaryFloat64(data[:8])), 8, nil

	case mysql.MYSQL_TYPE_YEAR:
		if len(data) < 1 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		if data[0] == 0 {
			return UintValue(0), 1, nil
		}
		return UintValue(uint64(data[0]) + 1900), 1, nil

	case mysql.MYSQL_TYPE_DATE, mysql.MYSQL_TYPE_NEWDATE:
		if len(data) < 3 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		raw := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
		if raw == 0 {
			return StringValue("0000-00-00"), 3, nil
		}
		year := raw >> 9
		month := (raw >> 5) & 0xf
		day := raw & 0x1f
		return StringValue(formatDate(int(year), int(month), int(day))), 3, nil

	case mysql.MYSQL_TYPE_TIMESTAMP:
		if len(data) < 4 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		sec := mysql.ParseBinaryUint32(data[:4])
		return StringValue(time.Unix(int64(sec), 0).UTC().Format(mysql.TimeFormat)), 4, nil

	case mysql.MYSQL_TYPE_TIMESTAMP2:
		fsp := mysql.FSP(byte(meta(0)))
		width := 4 + fsp
		if len(data) < width {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		sec := int64(mysql.ParseBinaryUint32(data[:4]))
		t := time.Unix(sec, 0).UTC()
		return StringValue(t.Format(mysql.TimeFormat)), width, nil

	case mysql.MYSQL_TYPE_DATETIME:
		if len(data) < 8 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		raw := mysql.ParseBinaryUint64(data[:8])
		d := raw / 1000000
		second := int(raw % 100)
		minute := int((raw % 10000) / 100)
		hour := int((raw % 1000000) / 10000)
		day := int(d % 100)
		month := int((d % 10000) / 100)
		year := int(d / 10000)
		return StringValue(formatDateTime(year, month, day, hour, minute, second)), 8, nil

	case mysql.MYSQL_TYPE_DATETIME2:
		fsp := mysql.FSP(byte(meta(0)))
		width := 5 + fsp
		if len(data) < width {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		raw := uint64(data[0])<<32 | uint64(data[1])<<24 | uint64(data[2])<<16 | uint64(data[3])<<8 | uint64(data[4])
		raw &^= uint64(1) << 39
		yearMonth := (raw >> 22) & 0x1ffff
		day := (raw >> 17) & 0x1f
		hour := (raw >> 12) & 0x1f
		minute := (raw >> 6) & 0x3f
		second := raw & 0x3f
		year := yearMonth / 13
		month := yearMonth % 13
		return StringValue(formatDateTime(int(year), int(month), int(day), int(hour), int(minute), int(second))), width, nil

	case mysql.MYSQL_TYPE_TIME:
		if len(data) < 3 {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		raw := int(data[0]) | int(data[1])<<8 | int(data[2])<<16
		return StringValue(formatTimeOfDay(raw/10000, (raw%10000)/100, raw%100)), 3, nil

	case mysql.MYSQL_TYPE_TIME2:
		fsp := mysql.FSP(byte(meta(0)))
		width := 3 + fsp
		if len(data) < width {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		raw := int64(data[0])<<16 | int64(data[1])<<8 | int64(data[2])
		if raw&0x800000 != 0 {
			raw -= 0x1000000
		}
		hour := (raw >> 12) & 0x3ff
		minute := (raw >> 6) & 0x3f
		second := raw & 0x3f
		return StringValue(formatTimeOfDay(int(hour), int(minute), int(second))), width, nil

	case mysql.MYSQL_TYPE_NEWDECIMAL:
		size := mysql.DecimalSize(meta(0), meta(1))
		if len(data) < size {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		d, err := mysql.DecodeDecimal(data[:size], meta(0), meta(1))
		if err != nil {
			return Value{}, 0, err
		}
		return StringValue(d.String()), size, nil

	case mysql.MYSQL_TYPE_ENUM:
		width := meta(0)
		if width != 1 && width != 2 {
			return Value{}, 0, errors.Annotatef(mysql.ErrMalformedEvent, "bad enum meta %d", width)
		}
		if len(data) < width {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		idx := indexValue(data, width)
		return UintValue(idx), width, nil

	case mysql.MYSQL_TYPE_SET:
		width := meta(0)
		if width < 0 || width > 8 {
			return Value{}, 0, errors.Annotatef(mysql.ErrMalformedEvent, "bad set meta %d", width)
		}
		if len(data) < width {
			return Value{}, 0, errors.Trace(mysql.ErrCorruptPayload)
		}
		return UintValue(indexValue(data, width)), width, nil

	case mysql.MYSQL_TYPE_BIT:
		prefixWidth := meta(0)
		width, err := lengthPrefixedWidth(data, prefixWidth)
		if err != nil {
			return Value{}, 0, err
		}
		return UintValue(indexValue(data[prefixWidth:width], width-prefixWidth)), width, nil

	case mysql.MYSQL_TYPE_JSON:
		width, err := lengthPrefixedWidth(data, meta(0))
		if err != nil {
			return Value{}, 0, err
		}
		prefixWidth := meta(0)
		payload := data[prefixWidth:width]
		jv, err := DecodeJSONBinary(payload, len(payload))
		if err != nil {
			return Value{}, 0, err
		}
		return jv, width, nil

	case mysql.MYSQL_TYPE_VARCHAR, mysql.MYSQL_TYPE_VAR_STRING,
		mysql.MYSQL_TYPE_BLOB, mysql.MYSQL_TYPE_TINY_BLOB,
		mysql.MYSQL_TYPE_MEDIUM_BLOB, mysql.MYSQL_TYPE_LONG_BLOB:
		width, err := lengthPrefixedWidth(data, meta(0))
		if err != nil {
			return Value{}, 0, err
		}
		return StringValue(string(data[meta(0):width])), width, nil

	case mysql.MYSQL_TYPE_STRING:
		if meta(0) <= 255 {
			width, err := requireBytes1(data)
			if err != nil {
				return Value{}, 0, err
			}
			return StringValue(string(data[1:width])), width, nil
		}
		width, err := requireBytes2(data)
		if err != nil {
			return Value{}, 0, err
		}
		return StringValue(string(data[2:width])), width, nil

	default:
		return Value{}, 0, errors.Annotatef(mysql.ErrUnknownType, "column type 0x%02x", byte(col.Type))
	}
}

// indexValue reads a width-byte little-endian unsigned integer, used
// for ENUM/SET indices and BIT payloads.
func indexValue(data []byte, width int) uint64 {
	var v uint64
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}

func formatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func formatTimeOfDay(hour, minute, second int) string {
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second)
}

func formatDateTime(year, month, day, hour, minute, second int) string {
	return formatDate(year, month, day) + " " + formatTimeOfDay(hour, minute, second)
}
