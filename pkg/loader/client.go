package loader

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Client drives bootloader operations over a Port. It is not safe for
// concurrent use, the link carries exactly one exchange at a time.
type Client struct {
	Port     Port
	Timeout  time.Duration
	Retries  Retries
	Progress Progress
}

// Entry is where loaded code is started.
type Entry struct {
	Mode    StartMode
	Address uint32
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	if e.Mode == Jump {
		return fmt.Sprintf("jump 0x%08X", e.Address)
	}
	return fmt.Sprintf("call 0x%08X", e.Address)
}

// LoadRequest describes a binary load.
type LoadRequest struct {
	Base  uint32
	Data  []byte
	Entry *Entry
}

// ReadRequest describes a memory read of Count units.
type ReadRequest struct {
	Address uint32
	Count   uint32
	Size    UnitSize
	Block   bool
}

// Bytes is the number of bytes the target sends back.
func (r ReadRequest) Bytes() uint64 {
	return uint64(r.Count) * uint64(r.Size)
}

// ReadResult carries the bytes received by a memory read.
type ReadResult struct {
	Data []byte
	// Timeouts counts read timeouts during reception. Data received with
	// timeouts is likely not valid.
	Timeouts int
}

// WriteRequest describes a memory write. Data is padded to Size by Write.
type WriteRequest struct {
	Address uint32
	Data    []byte
	Size    UnitSize
}

// NewClient creates a Client with default timeout and retry budgets.
func NewClient(port Port) *Client {
	return &Client{
		Port:     port,
		Timeout:  DefaultByteTimeout,
		Retries:  DefaultRetries,
		Progress: NopProgress{},
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultByteTimeout
	}
	return c.Timeout
}

func (c *Client) progress() Progress {
	if c.Progress == nil {
		return NopProgress{}
	}
	return c.Progress
}

func (c *Client) send(f Frame) error {
	if glog.V(2) {
		if len(f) > 16 {
			glog.Infof("TX % x ... (%d bytes)", []byte(f[:16]), len(f))
		} else {
			glog.Infof("TX % x", []byte(f))
		}
	}
	if _, err := f.WriteTo(c.Port); err != nil {
		return err
	}
	return c.Port.Flush()
}

// Handshake probes the bootloader until it answers.
func (c *Client) Handshake() error {
	p := c.progress()
	p.Begin("Waiting for serial loader availability:")
	_, err := c.await(waiter{
		expect: []byte{AckProbe},
		budget: c.Retries.Handshake,
		probe:  ProbeFrame(),
		stage:  StageHandshake,
	})
	if err != nil {
		p.End("Failed")
		return err
	}
	p.End("OK")
	return nil
}

// Load transfers a binary into target memory and optionally starts it.
// All checks are done before anything is sent.
func (c *Client) Load(req LoadRequest) error {
	if err := CheckAligned(req.Base, "base"); err != nil {
		return err
	}
	if err := CheckSpan(req.Base, len(req.Data)); err != nil {
		return err
	}
	if err := checkLength(req.Base, len(req.Data)); err != nil {
		return err
	}
	if req.Entry != nil {
		if err := CheckAligned(req.Entry.Address, "entry"); err != nil {
			return err
		}
	}

	p := c.progress()
	start := time.Now()
	p.Begin(fmt.Sprintf("Loading %d bytes to 0x%08X:", len(req.Data), req.Base))
	if err := c.send(LoadFrame(req.Base, req.Data)); err != nil {
		return err
	}
	if _, err := c.await(waiter{
		expect: []byte{AckLoad},
		budget: c.Retries.Load,
		stage:  StageTransfer,
	}); err != nil {
		p.End("Failed: " + StageTransfer)
		return err
	}
	p.End(fmt.Sprintf("Done in %.3fs", time.Since(start).Seconds()))

	if req.Entry == nil {
		return nil
	}
	return c.Start(*req.Entry)
}

// Start asks the bootloader to execute or jump to loaded code. After it
// returns nil the bootloader no longer answers commands.
func (c *Client) Start(e Entry) error {
	if err := CheckAligned(e.Address, "entry"); err != nil {
		return err
	}
	p := c.progress()
	if e.Mode == Jump {
		p.Begin(fmt.Sprintf("Jumping to 0x%08X:", e.Address))
	} else {
		p.Begin(fmt.Sprintf("Executing from 0x%08X:", e.Address))
	}
	if err := c.send(StartFrame(e.Mode, e.Address)); err != nil {
		return err
	}
	if _, err := c.await(waiter{
		expect: []byte{AckStart},
		budget: c.Retries.Start,
		stage:  StageStart,
	}); err != nil {
		p.End("Failed: " + StageStart)
		return err
	}
	p.End("OK")
	return nil
}

// Read reads target memory. When reception stalls, the bytes received so
// far are returned together with an *IncompleteReadError.
func (c *Client) Read(req ReadRequest) (*ReadResult, error) {
	if !req.Size.IsValid() {
		return nil, fmt.Errorf("invalid unit size %d", req.Size)
	}
	total := req.Bytes()
	p := c.progress()
	p.Begin(fmt.Sprintf("Reading %d bytes from 0x%08X:", total, req.Address))
	if err := c.send(ReadFrame(req.Size, req.Count, req.Address, req.Block)); err != nil {
		return nil, err
	}
	if _, err := c.await(waiter{
		expect: []byte{AckRead, AckReadBlock},
		budget: c.Retries.Transfer,
		stage:  StageTransfer,
	}); err != nil {
		p.End("Failed: " + StageTransfer)
		return nil, err
	}

	res := &ReadResult{Data: make([]byte, 0, int(minUint64(total, 1<<16)))}
	failed := 0
	for remaining := total; remaining > 0; {
		b, err := c.Port.RecvByte(c.timeout())
		if err != nil {
			if !IsTimeout(err) {
				p.End("Failed: " + err.Error())
				return res, &IncompleteReadError{Received: len(res.Data), Expected: total, Err: err}
			}
			failed++
			res.Timeouts++
			p.Timeout(res.Timeouts)
			if failed >= c.Retries.Receive {
				p.End("Failed: " + StageReceive)
				glog.Warningf("read stalled at %d of %d bytes", len(res.Data), total)
				return res, &IncompleteReadError{
					Received: len(res.Data),
					Expected: total,
					Err:      &RetryExhaustedError{Stage: StageReceive, Timeouts: failed},
				}
			}
			continue
		}
		failed = 0
		res.Data = append(res.Data, b)
		remaining--
		if remaining%100 == 0 {
			p.Advance()
		}
	}
	p.End("OK")
	if res.Timeouts > 0 {
		p.Notice("WARNING: data is likely not valid due to timeouts when receiving")
	}
	return res, nil
}

// Write writes data to target memory. Data is padded with leading zero
// bytes to a multiple of the unit size.
func (c *Client) Write(req WriteRequest) error {
	if !req.Size.IsValid() {
		return fmt.Errorf("invalid unit size %d", req.Size)
	}
	data := PadToUnit(req.Data, req.Size)
	if err := CheckSpan(req.Address, len(data)); err != nil {
		return err
	}
	if err := checkLength(req.Address, len(data)); err != nil {
		return err
	}
	p := c.progress()
	p.Begin(fmt.Sprintf("Writing %d bytes to 0x%08X:", len(data), req.Address))
	if err := c.send(WriteFrame(req.Size, req.Address, data)); err != nil {
		return err
	}
	if _, err := c.await(waiter{
		expect: []byte{AckWrite},
		budget: c.Retries.Transfer,
		stage:  StageTransfer,
	}); err != nil {
		p.End("Failed: " + StageTransfer)
		return err
	}
	p.End("OK")
	return nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
