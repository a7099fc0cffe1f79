package replication

import (
	"fmt"
	"time"
)

// EventType is the one-byte event type code carried in every binlog
// event's common header.
// https://dev.mysql.com/doc/internals/en/binlog-event-type.html
type EventType byte

const (
	UNKNOWN_EVENT EventType = iota
	START_EVENT_V3
	QUERY_EVENT
	STOP_EVENT
	ROTATE_EVENT
	INTVAR_EVENT
	LOAD_EVENT
	SLAVE_EVENT
	CREATE_FILE_EVENT
	APPEND_BLOCK_EVENT
	EXEC_LOAD_EVENT
	DELETE_FILE_EVENT
	NEW_LOAD_EVENT
	RAND_EVENT
	USER_VAR_EVENT
	FORMAT_DESCRIPTION_EVENT
	XID_EVENT
	BEGIN_LOAD_QUERY_EVENT
	EXECUTE_LOAD_QUERY_EVENT
	TABLE_MAP_EVENT
	WRITE_ROWS_EVENTv0
	UPDATE_ROWS_EVENTv0
	DELETE_ROWS_EVENTv0
	WRITE_ROWS_EVENTv1
	UPDATE_ROWS_EVENTv1
	DELETE_ROWS_EVENTv1
	INCIDENT_EVENT
	HEARTBEAT_EVENT
	IGNORABLE_EVENT
	ROWS_QUERY_EVENT
	WRITE_ROWS_EVENTv2
	UPDATE_ROWS_EVENTv2
	DELETE_ROWS_EVENTv2
	GTID_EVENT
	ANONYMOUS_GTID_EVENT
	PREVIOUS_GTIDS_EVENT
	TRANSACTION_CONTEXT_EVENT
	VIEW_CHANGE_EVENT
	XA_PREPARE_LOG_EVENT
	PARTIAL_UPDATE_ROWS_EVENT
	TRANSACTION_PAYLOAD_EVENT
	HEARTBEAT_LOG_EVENT_V2
)

// MariaDB reuses the low range of the type byte but claims 0xa0-0xff
// for its own extensions.
const (
	MARIADB_ANNOTATE_ROWS_EVENT      EventType = 160
	MARIADB_BINLOG_CHECKPOINT_EVENT  EventType = 161
	MARIADB_GTID_EVENT               EventType = 162
	MARIADB_GTID_LIST_EVENT          EventType = 163
	MARIADB_START_ENCRYPTION_EVENT   EventType = 164
	MARIADB_QUERY_COMPRESSED_EVENT   EventType = 165
	MARIADB_GTID_TAGGED_LOG_EVENT    EventType = 171
)

func (t EventType) String() string {
	switch t {
	case UNKNOWN_EVENT:
		return "UnknownEvent"
	case START_EVENT_V3:
		return "StartEventV3"
	case QUERY_EVENT:
		return "QueryEvent"
	case STOP_EVENT:
		return "StopEvent"
	case ROTATE_EVENT:
		return "RotateEvent"
	case INTVAR_EVENT:
		return "IntVarEvent"
	case LOAD_EVENT:
		return "LoadEvent"
	case SLAVE_EVENT:
		return "SlaveEvent"
	case CREATE_FILE_EVENT:
		return "CreateFileEvent"
	case APPEND_BLOCK_EVENT:
		return "AppendBlockEvent"
	case EXEC_LOAD_EVENT:
		return "ExecLoadEvent"
	case DELETE_FILE_EVENT:
		return "DeleteFileEvent"
	case NEW_LOAD_EVENT:
		return "NewLoadEvent"
	case RAND_EVENT:
		return "RandEvent"
	case USER_VAR_EVENT:
		return "UserVarEvent"
	case FORMAT_DESCRIPTION_EVENT:
		return "FormatDescriptionEvent"
	case XID_EVENT:
		return "XIDEvent"
	case BEGIN_LOAD_QUERY_EVENT:
		return "BeginLoadQueryEvent"
	case EXECUTE_LOAD_QUERY_EVENT:
		return "ExecuteLoadQueryEvent"
	case TABLE_MAP_EVENT:
		return "TableMapEvent"
	case WRITE_ROWS_EVENTv0:
		return "WriteRowsEventV0"
	case UPDATE_ROWS_EVENTv0:
		return "UpdateRowsEventV0"
	case DELETE_ROWS_EVENTv0:
		return "DeleteRowsEventV0"
	case WRITE_ROWS_EVENTv1:
		return "WriteRowsEventV1"
	case UPDATE_ROWS_EVENTv1:
		return "UpdateRowsEventV1"
	case DELETE_ROWS_EVENTv1:
		return "DeleteRowsEventV1"
	case INCIDENT_EVENT:
		return "IncidentEvent"
	case HEARTBEAT_EVENT:
		return "HeartbeatEvent"
	case IGNORABLE_EVENT:
		return "IgnorableEvent"
	case ROWS_QUERY_EVENT:
		return "RowsQueryEvent"
	case WRITE_ROWS_EVENTv2:
		return "WriteRowsEventV2"
	case UPDATE_ROWS_EVENTv2:
		return "UpdateRowsEventV2"
	case DELETE_ROWS_EVENTv2:
		return "DeleteRowsEventV2"
	case GTID_EVENT:
		return "GTIDEvent"
	case ANONYMOUS_GTID_EVENT:
		return "AnonymousGTIDEvent"
	case PREVIOUS_GTIDS_EVENT:
		return "PreviousGTIDsEvent"
	case TRANSACTION_CONTEXT_EVENT:
		return "TransactionContextEvent"
	case VIEW_CHANGE_EVENT:
		return "ViewChangeEvent"
	case XA_PREPARE_LOG_EVENT:
		return "XAPrepareLogEvent"
	case PARTIAL_UPDATE_ROWS_EVENT:
		return "PartialUpdateRowsEvent"
	case TRANSACTION_PAYLOAD_EVENT:
		return "TransactionPayloadEvent"
	case HEARTBEAT_LOG_EVENT_V2:
		return "HeartbeatLogEventV2"
	case MARIADB_ANNOTATE_ROWS_EVENT:
		return "MariadbAnnotateRowsEvent"
	case MARIADB_BINLOG_CHECKPOINT_EVENT:
		return "MariadbBinlogCheckPointEvent"
	case MARIADB_GTID_EVENT:
		return "MariadbGTIDEvent"
	case MARIADB_GTID_LIST_EVENT:
		return "MariadbGTIDListEvent"
	case MARIADB_START_ENCRYPTION_EVENT:
		return "MariadbStartEncryptionEvent"
	case MARIADB_QUERY_COMPRESSED_EVENT:
		return "MariadbQueryCompressedEvent"
	case MARIADB_GTID_TAGGED_LOG_EVENT:
		return "MariadbGtidTaggedLogEvent"
	default:
		return fmt.Sprintf("UnknownEventType(%d)", byte(t))
	}
}

// IsWriteRows reports whether t is any version of a WRITE_ROWS event.
func (t EventType) IsWriteRows() bool {
	return t == WRITE_ROWS_EVENTv0 || t == WRITE_ROWS_EVENTv1 || t == WRITE_ROWS_EVENTv2
}

// IsUpdateRows reports whether t is any version of an UPDATE_ROWS event.
func (t EventType) IsUpdateRows() bool {
	return t == UPDATE_ROWS_EVENTv0 || t == UPDATE_ROWS_EVENTv1 || t == UPDATE_ROWS_EVENTv2
}

// IsDeleteRows reports whether t is any version of a DELETE_ROWS event.
func (t EventType) IsDeleteRows() bool {
	return t == DELETE_ROWS_EVENTv0 || t == DELETE_ROWS_EVENTv1 || t == DELETE_ROWS_EVENTv2
}

// IntVarEventType discriminates the two variables an INTVAR_EVENT can
// carry: the value assigned by the previous LAST_INSERT_ID() call, or
// the next AUTO_INCREMENT value a statement-based INSERT consumed.
type IntVarEventType byte

const (
	InvalidIntVar    IntVarEventType = 0
	LastInsertIDIntVar IntVarEventType = 1
	InsertIDIntVar     IntVarEventType = 2
)

func (t IntVarEventType) String() string {
	switch t {
	case LastInsertIDIntVar:
		return "LAST_INSERT_ID"
	case InsertIDIntVar:
		return "INSERT_ID"
	default:
		return "INVALID_INT_EVENT"
	}
}

// Binlog checksum algorithm codes, per FORMAT_DESCRIPTION_EVENT's
// trailing byte.
const (
	BINLOG_CHECKSUM_ALG_OFF   byte = 0
	BINLOG_CHECKSUM_ALG_CRC32 byte = 1
	BINLOG_CHECKSUM_ALG_UNDEF byte = 255
)

// MariaDB GTID event flag bits, per rpl_gtid.h.
const (
	BINLOG_MARIADB_FL_STANDALONE      = 1
	BINLOG_MARIADB_FL_GROUP_COMMIT_ID = 2
	BINLOG_MARIADB_FL_DDL             = 4
)

// microSecTimestampToTime converts a microsecond Unix timestamp, as
// carried by GTID event commit-timestamp fields, into a time.Time.
func microSecTimestampToTime(ts uint64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts/1000000), int64(ts%1000000)*1000)
}
