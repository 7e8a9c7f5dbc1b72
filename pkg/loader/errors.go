package loader

import (
	"errors"
	"fmt"
	"os"
)

// ErrTimeout is returned by Port.RecvByte when no byte arrived in time.
var ErrTimeout = errors.New("read timeout")

// IsTimeout checks if err indicates a read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || os.IsTimeout(err)
}

// Failure stages reported by RetryExhaustedError.
const (
	StageHandshake = "loader not available"
	StageTransfer  = "transfer not acknowledged"
	StageStart     = "execution not acknowledged"
	StageReceive   = "transfer failed, too many timeouts"
)

// RetryExhaustedError indicates the target did not answer within the retry
// budget. It always aborts the run.
type RetryExhaustedError struct {
	Stage    string
	Timeouts int
}

// Error implements error.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d timeouts", e.Stage, e.Timeouts)
}

// AddressRangeError rejects an address or length before anything is sent.
type AddressRangeError struct {
	Address uint32
	Length  uint64
	Reason  string
}

// Error implements error.
func (e *AddressRangeError) Error() string {
	if e.Length > 0 {
		return fmt.Sprintf("%d bytes from 0x%08X: %s", e.Length, e.Address, e.Reason)
	}
	return fmt.Sprintf("address 0x%08X: %s", e.Address, e.Reason)
}

// IncompleteReadError is returned together with the bytes received so far
// when a memory read stalls. The data must be treated as unreliable.
type IncompleteReadError struct {
	Received int
	Expected uint64
	Err      error
}

// Error implements error.
func (e *IncompleteReadError) Error() string {
	return fmt.Sprintf("received %d of %d bytes: %v", e.Received, e.Expected, e.Err)
}

// Unwrap returns the underlying failure.
func (e *IncompleteReadError) Unwrap() error {
	return e.Err
}

// CheckAligned rejects an odd address.
func CheckAligned(addr uint32, what string) error {
	if addr&1 != 0 {
		return &AddressRangeError{Address: addr, Reason: what + " must be word aligned"}
	}
	return nil
}

// CheckSpan rejects length bytes from addr running past the 32-bit address
// space.
func CheckSpan(addr uint32, length int) error {
	if uint64(addr)+uint64(length) > addressSpace {
		return &AddressRangeError{
			Address: addr,
			Length:  uint64(length),
			Reason:  "exceeds 32 bit address space",
		}
	}
	return nil
}

// checkLength rejects a transfer whose byte count can't be carried by the
// 32-bit length field.
func checkLength(addr uint32, length int) error {
	if uint64(length) > uint64(^uint32(0)) {
		return &AddressRangeError{Address: addr, Length: uint64(length), Reason: "length does not fit 32 bits"}
	}
	return nil
}
