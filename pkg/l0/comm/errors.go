package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrHeadNotFound indicates no head marker followed by an accepted type.
	ErrHeadNotFound = errors.New("frame head not found")
	// ErrTruncatedFrame indicates the buffer ends before the frame tail.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrTailMismatch indicates the byte after the checksum is not the tail marker.
	ErrTailMismatch = errors.New("frame tail mismatch")
	// ErrChecksumMismatch indicates the frame checksum doesn't match.
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	// ErrShortReport indicates a downlink frame too short to carry RSSI/SNR.
	ErrShortReport = errors.New("frame too short for rssi/snr")

	// ErrNotReady indicates TakeFrame is called without a frame ready.
	ErrNotReady = errors.New("no frame ready")
	// ErrTimeout indicates no reply received from the module in time.
	ErrTimeout = errors.New("reply timeout")
)

// IsFrameError tells if err is a recoverable frame corruption error.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrHeadNotFound) ||
		errors.Is(err, ErrTruncatedFrame) ||
		errors.Is(err, ErrTailMismatch) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrShortReport)
}

// ArgumentError reports invalid caller input.
type ArgumentError struct {
	Arg    string
	Reason string
}

// Error implements error.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Reason)
}

// EncodeError is returned when a frame can't be encoded.
// Nothing is written to the transport in that case.
type EncodeError struct {
	Type byte
	Err  error
}

// Error implements error.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode type %#02x: %v", e.Type, e.Err)
}

// Unwrap returns the underlying ArgumentError.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// RejectedError carries the status text when the module reports failure.
type RejectedError struct {
	Status string
}

// Error implements error.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("module rejected: %q", e.Status)
}
