// Copyright 2026, Square, Inc.

package proto

// Render status.
const (
	STATUS_UNKNOWN   byte = iota
	STATUS_OK             // pixels produced
	STATUS_EMPTY          // region of interest was empty, no pixels
	STATUS_CANCELLED      // aborted by the caller, not an error
	STATUS_FAILED         // render error
)

var StatusName = map[byte]string{
	STATUS_UNKNOWN:   "UNKNOWN",
	STATUS_OK:        "OK",
	STATUS_EMPTY:     "EMPTY",
	STATUS_CANCELLED: "CANCELLED",
	STATUS_FAILED:    "FAILED",
}

var StatusValue = map[string]byte{
	"UNKNOWN":   STATUS_UNKNOWN,
	"OK":        STATUS_OK,
	"EMPTY":     STATUS_EMPTY,
	"CANCELLED": STATUS_CANCELLED,
	"FAILED":    STATUS_FAILED,
}
