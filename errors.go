package loraterm

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("no compatible USB device found")
	ErrPermissionDenied = errors.New("USB permission denied")
	ErrConnectionFailed = errors.New("cannot open USB device")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrLinkLost         = errors.New("link lost")
	ErrInvalidConfig    = errors.New("invalid session configuration")

	// Transfer errors
	ErrTransfer      = errors.New("bulk transfer failed")
	ErrTimeout       = errors.New("bulk transfer timed out")
	ErrShortTransfer = errors.New("short bulk transfer")
)

// TransferError describes a failed or incomplete bulk transfer.
type TransferError struct {
	Op       string // "read" or "write"
	Endpoint int
	N        int // bytes actually transferred
	Want     int
	Err      error
}

func (e *TransferError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("%s ep%d: %d/%d bytes: %v", e.Op, e.Endpoint, e.N, e.Want, e.Err)
	}
	return fmt.Sprintf("%s ep%d: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is reports every TransferError as ErrTransfer.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransfer
}

// Timeout reports whether the transfer ran out of time rather than failing.
func (e *TransferError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// IsTimeout reports whether err is a bounded-time transfer expiring, which the
// reader treats as "nothing to read yet".
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
