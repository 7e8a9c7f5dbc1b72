package link

import (
	"context"
	"time"

	"github.com/robotalks/cometload/pkg/loader"
)

// Pump forwards bytes from Src to Dst. Bytes arriving back to back are
// flushed together.
type Pump struct {
	Label string
	Src   loader.Port
	Dst   loader.Port
	// Poll is the read timeout while idle, the context is checked between
	// polls.
	Poll time.Duration
	// Gap ends a burst when no byte follows within it.
	Gap time.Duration
	// Burst is the max number of bytes per flush.
	Burst int
}

// Name implements framework.Named.
func (p *Pump) Name() string {
	return p.Label
}

// Run implements framework.Runnable.
func (p *Pump) Run(ctx context.Context) error {
	poll, gap, burst := p.Poll, p.Gap, p.Burst
	if poll <= 0 {
		poll = loader.DefaultRelayPoll
	}
	if gap <= 0 {
		gap = time.Millisecond
	}
	if burst <= 0 {
		burst = 256
	}
	buf := make([]byte, 0, burst)
	for ctx.Err() == nil {
		b, err := p.Src.RecvByte(poll)
		if err != nil {
			if loader.IsTimeout(err) {
				continue
			}
			return err
		}
		buf = append(buf[:0], b)
		for len(buf) < burst {
			if b, err = p.Src.RecvByte(gap); err != nil {
				break
			}
			buf = append(buf, b)
		}
		if _, werr := p.Dst.Write(buf); werr != nil {
			return werr
		}
		if ferr := p.Dst.Flush(); ferr != nil {
			return ferr
		}
		if err != nil && !loader.IsTimeout(err) {
			return err
		}
	}
	return ctx.Err()
}
