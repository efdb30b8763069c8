package ata

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksum indicates a SMART attribute table whose 512 bytes do
	// not sum to zero mod 256. Not fatal to a session; the reading for
	// that cycle is discarded.
	ErrChecksum = errors.New("SMART attribute table checksum mismatch")

	// ErrNotSupported indicates the device exposes no decodable
	// temperature source. Fatal during probing: attach is aborted.
	ErrNotSupported = errors.New("no temperature source on this device")

	// ErrInvalidArgument indicates the caller requested a field the
	// active read strategy cannot produce.
	ErrInvalidArgument = errors.New("field not available under active read strategy")

	// ErrNotATA indicates the device behind the SCSI transport does not
	// identify as an ATA device.
	ErrNotATA = errors.New("not an ATA device behind SCSI transport")
)

// IoError wraps a transport-level failure (I/O error, timeout, or device
// check condition). It is always propagated to the caller; the engine
// never retries on its own.
type IoError struct {
	Op  string // the command that failed, e.g. "sct status read"
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("ata %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
