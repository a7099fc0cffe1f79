package replication

import (
	"github.com/pingcap/errors"
)

// DecodeEvent constructs the Event implementation matching header's
// EventType and decodes body (the event payload, i.e. the raw event
// bytes with the 19 byte common header and any trailing checksum
// already stripped) into it.
//
// This is the dispatcher python-mysql-replication-style binlog readers
// use to turn a (header, body) pair read off the wire or a mysqlbinlog
// dump into a concrete, typed event; DecodeJSONBinary and Rewrite are
// narrower tools that work directly off TABLE_MAP/ROWS event bodies
// and don't need it.
func DecodeEvent(header *EventHeader, body []byte) (Event, error) {
	var ev Event

	switch header.EventType {
	case FORMAT_DESCRIPTION_EVENT:
		ev = &FormatDescriptionEvent{}
	case ROTATE_EVENT:
		ev = &RotateEvent{}
	case PREVIOUS_GTIDS_EVENT:
		ev = &PreviousGTIDsEvent{}
	case XID_EVENT:
		ev = &XIDEvent{}
	case QUERY_EVENT:
		ev = &QueryEvent{}
	case MARIADB_QUERY_COMPRESSED_EVENT:
		ev = &QueryEvent{compressed: true}
	case GTID_EVENT, ANONYMOUS_GTID_EVENT:
		ev = &GTIDEvent{}
	case MARIADB_GTID_TAGGED_LOG_EVENT:
		ev = &GtidTaggedLogEvent{}
	case BEGIN_LOAD_QUERY_EVENT:
		ev = &BeginLoadQueryEvent{}
	case EXECUTE_LOAD_QUERY_EVENT:
		ev = &ExecuteLoadQueryEvent{}
	case INTVAR_EVENT:
		ev = &IntVarEvent{}
	case MARIADB_ANNOTATE_ROWS_EVENT:
		ev = &MariadbAnnotateRowsEvent{}
	case MARIADB_BINLOG_CHECKPOINT_EVENT:
		ev = &MariadbBinlogCheckPointEvent{}
	case MARIADB_GTID_EVENT:
		ev = &MariadbGTIDEvent{}
	case MARIADB_GTID_LIST_EVENT:
		ev = &MariadbGTIDListEvent{}
	default:
		return nil, errors.Errorf("decode-event: unsupported event type %s", header.EventType)
	}

	if err := ev.Decode(body); err != nil {
		return nil, errors.Annotatef(err, "decoding %s", header.EventType)
	}
	return ev, nil
}

// GTIDNextOf returns the GTID_NEXT string carried by ev, for the event
// kinds that track replication position (GTIDEvent, GtidTaggedLogEvent,
// MariadbGTIDEvent). Other event kinds return ("", nil): they carry no
// position of their own.
func GTIDNextOf(ev Event) (string, error) {
	switch e := ev.(type) {
	case *GtidTaggedLogEvent:
		set, err := e.GTIDEvent.GTIDNext()
		if err != nil {
			return "", errors.Trace(err)
		}
		return set.String(), nil
	case *GTIDEvent:
		set, err := e.GTIDNext()
		if err != nil {
			return "", errors.Trace(err)
		}
		return set.String(), nil
	case *MariadbGTIDEvent:
		set, err := e.GTIDNext()
		if err != nil {
			return "", errors.Trace(err)
		}
		return set.String(), nil
	default:
		return "", nil
	}
}
