package loader

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// recv is one scripted outcome of RecvByte.
type recv struct {
	b       byte
	timeout bool
}

func rx(bs ...byte) []recv {
	r := make([]recv, len(bs))
	for i, b := range bs {
		r[i].b = b
	}
	return r
}

func timeouts(n int) []recv {
	r := make([]recv, n)
	for i := range r {
		r[i].timeout = true
	}
	return r
}

func script(parts ...[]recv) []recv {
	var all []recv
	for _, p := range parts {
		all = append(all, p...)
	}
	return all
}

// scriptPort replays a script of received bytes and timeouts and records
// everything written. When the script runs out it keeps timing out.
type scriptPort struct {
	script  []recv
	onEmpty func()

	lock    sync.Mutex
	written bytes.Buffer
	flushes int
	closes  int
	reads   int
}

func newScriptPort(parts ...[]recv) *scriptPort {
	return &scriptPort{script: script(parts...)}
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closes > 0 {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

func (p *scriptPort) Flush() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.flushes++
	return nil
}

func (p *scriptPort) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closes++
	return nil
}

func (p *scriptPort) RecvByte(time.Duration) (byte, error) {
	p.lock.Lock()
	if p.closes > 0 {
		p.lock.Unlock()
		return 0, io.ErrClosedPipe
	}
	p.reads++
	if len(p.script) == 0 {
		onEmpty := p.onEmpty
		p.lock.Unlock()
		if onEmpty != nil {
			onEmpty()
		}
		return 0, ErrTimeout
	}
	r := p.script[0]
	p.script = p.script[1:]
	p.lock.Unlock()
	if r.timeout {
		return 0, ErrTimeout
	}
	return r.b, nil
}

func (p *scriptPort) sent() []byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *scriptPort) closeCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closes
}
