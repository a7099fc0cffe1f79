// Package utils holds small zero-allocation helpers shared by the mysql,
// schema, and replication packages.
package utils

import (
	"unsafe"
)

// ByteSliceToString converts a []byte to a string without copying.
// The caller must not mutate b for as long as the returned string is alive.
func ByteSliceToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}
