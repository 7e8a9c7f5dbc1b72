// Package loader implements the host side of the COMET68k serial bootloader
// protocol.
package loader

// The bootloader on the target is a tiny state machine polling the UART.
// Every exchange is initiated by the host with a command frame and answered
// by a single acknowledgement byte. There is no checksum and no sequence
// number, the only recovery mechanism is to wait for the expected
// acknowledgement a bounded number of read timeouts.
//
// Frames carry big-endian 32-bit lengths and addresses. For reads the length
// is the number of units (bytes, words or longs), for loads and writes it is
// the number of bytes.
//
// After the target acknowledges an execute or jump command, the bootloader
// is gone and whatever the loaded program prints is relayed to the console.
