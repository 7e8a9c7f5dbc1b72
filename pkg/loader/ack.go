package loader

import (
	"github.com/golang/glog"
)

// Ack is the outcome of a successful acknowledgement wait.
type Ack struct {
	// Value is the acknowledgement byte received.
	Value byte
	// Timeouts is the number of read timeouts before Value arrived.
	Timeouts int
	// Discarded is the number of unexpected bytes skipped.
	Discarded int
}

// waiter waits for one of the expected bytes within a timeout budget.
// Only timeouts consume the budget, unexpected bytes are skipped.
type waiter struct {
	expect []byte
	budget int
	probe  Frame
	stage  string
}

func (w *waiter) matches(b byte) bool {
	for _, e := range w.expect {
		if e == b {
			return true
		}
	}
	return false
}

func (c *Client) await(w waiter) (ack Ack, err error) {
	for {
		if w.probe != nil {
			if err = c.send(w.probe); err != nil {
				return
			}
		}
		var b byte
		b, err = c.Port.RecvByte(c.timeout())
		if err == nil {
			if w.matches(b) {
				ack.Value = b
				return
			}
			ack.Discarded++
			glog.V(1).Infof("discard 0x%02x waiting for % x", b, w.expect)
			continue
		}
		if !IsTimeout(err) {
			return
		}
		ack.Timeouts++
		c.progress().Timeout(ack.Timeouts)
		if ack.Timeouts >= w.budget {
			err = &RetryExhaustedError{Stage: w.stage, Timeouts: ack.Timeouts}
			return
		}
	}
}
