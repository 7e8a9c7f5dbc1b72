package loader

import (
	"context"
	"io"
	"time"

	fx "github.com/robotalks/cometload/pkg/framework"
)

// DefaultRelayPoll is how often the relay checks for cancellation while the
// target is silent.
const DefaultRelayPoll = 100 * time.Millisecond

// Relay forwards console output of the started program.
type Relay struct {
	Port Port
	Out  io.Writer
	Poll time.Duration
}

var newline = []byte{'\n'}

// Run relays until ctx is canceled or the link fails. Cancellation is a
// normal exit and closes the Port.
func (r *Relay) Run(ctx context.Context) error {
	err := fx.RunWithContextCloser(ctx, r.Port, func() error {
		return r.relay(ctx)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) relay(ctx context.Context) error {
	poll := r.Poll
	if poll <= 0 {
		poll = DefaultRelayPoll
	}
	var buf [1]byte
	for ctx.Err() == nil {
		b, err := r.Port.RecvByte(poll)
		if err != nil {
			if IsTimeout(err) {
				continue
			}
			return err
		}
		switch {
		case b == '\r':
			_, err = r.Out.Write(newline)
		case b >= 0x20 && b <= 0x7e:
			buf[0] = b
			_, err = r.Out.Write(buf[:])
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}
