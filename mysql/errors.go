package mysql

import (
	"github.com/pingcap/errors"
)

// Sentinel error kinds surfaced by the replication package. Callers
// distinguish them with errors.Cause, e.g.:
//
//	if errors.Cause(err) == mysql.ErrCorruptPayload { ... }
var (
	// ErrCorruptPayload means a declared size exceeded the supplied byte
	// budget, a variable-length integer overflowed, or a read ran past
	// the end of the buffer.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrUnknownType means a JSONB type tag or column type code fell
	// outside the closed enumeration this package understands.
	ErrUnknownType = errors.New("unknown type")

	// ErrMalformedEvent means a row event body did not yield complete
	// before/after record pairs, or its length disagreed with the
	// event header.
	ErrMalformedEvent = errors.New("malformed event")
)
