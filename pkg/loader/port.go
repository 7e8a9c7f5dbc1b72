package loader

import (
	"io"
	"time"
)

// Port is the byte stream connected to the bootloader.
type Port interface {
	io.Writer
	io.Closer
	// Flush pushes buffered writes onto the link.
	Flush() error
	// RecvByte waits up to timeout for a single byte. It returns ErrTimeout
	// (or an error satisfying IsTimeout) when nothing arrived.
	RecvByte(timeout time.Duration) (byte, error)
}

// Retries holds the timeout budget of each protocol step.
type Retries struct {
	Handshake int `toml:"handshake"`
	Transfer  int `toml:"transfer"`
	Receive   int `toml:"receive"`
	Load      int `toml:"load"`
	Start     int `toml:"start"`
}

// DefaultRetries are the budgets the bootloader timing is tuned for.
var DefaultRetries = Retries{
	Handshake: 10,
	Transfer:  10,
	Receive:   10,
	Load:      15,
	Start:     2,
}

// DefaultByteTimeout is the read timeout for a single byte.
const DefaultByteTimeout = time.Second
