package link

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// DefaultBaud is the bootloader UART speed.
const DefaultBaud = 230400

// OpenSerial opens a serial device. Every read times out after timeout,
// pending input is discarded.
func OpenSerial(name string, baud int, timeout time.Duration) (*Stream, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.Flush(); err != nil {
		glog.Warningf("%s: discard pending input: %v", name, err)
	}
	glog.V(1).Infof("opened %s at %d baud", name, baud)
	s := NewStream(port)
	s.EOFIsTimeout = true
	return s, nil
}
