package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cometload/pkg/cli/args"
	"github.com/robotalks/cometload/pkg/loader"
)

type queuePort struct {
	in      []byte
	written bytes.Buffer
	closed  bool
}

func (p *queuePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *queuePort) Flush() error                { return nil }
func (p *queuePort) Close() error                { p.closed = true; return nil }

func (p *queuePort) RecvByte(time.Duration) (byte, error) {
	if len(p.in) == 0 {
		return 0, loader.ErrTimeout
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func noFile(string) ([]byte, error) {
	return nil, errors.New("unexpected file read")
}

func fileOf(size int) func(string) ([]byte, error) {
	return func(string) ([]byte, error) {
		return make([]byte, size), nil
	}
}

func TestBuildKinds(t *testing.T) {
	j, err := Build(Options{}, noFile)
	require.NoError(t, err)
	require.Equal(t, Ping, j.Kind)

	j, err = Build(Options{Jump: "0x1000"}, noFile)
	require.NoError(t, err)
	require.Equal(t, Start, j.Kind)
	require.Equal(t, loader.Entry{Mode: loader.Jump, Address: 0x1000}, *j.Entry)

	j, err = Build(Options{Base: "0x1000", Exec: "0x1000", Data: "a.bin"}, fileOf(16))
	require.NoError(t, err)
	require.Equal(t, Load, j.Kind)
	require.Equal(t, uint32(0x1000), j.Load.Base)
	require.Len(t, j.Load.Data, 16)
	require.Equal(t, loader.Call, j.Load.Entry.Mode)

	j, err = Build(Options{Addr: "0x2000", Read: true, Long: true, Length: "4", Block: true}, noFile)
	require.NoError(t, err)
	require.Equal(t, Read, j.Kind)
	require.Equal(t, loader.ReadRequest{Address: 0x2000, Count: 4, Size: loader.Long, Block: true}, j.Read)
	require.Equal(t, uint64(16), j.Read.Bytes())

	j, err = Build(Options{Addr: "0xFFFFFFFC", Read: true, Long: true, Length: "16", Block: true}, noFile)
	require.NoError(t, err)
	require.Equal(t, loader.ReadRequest{Address: 0xFFFFFFFC, Count: 16, Size: loader.Long, Block: true}, j.Read)

	j, err = Build(Options{Addr: "0x1000", Read: true, Length: "0"}, noFile)
	require.NoError(t, err)
	require.Equal(t, uint32(0), j.Read.Count)

	j, err = Build(Options{Addr: "0x2000", Word: true, Data: "123"}, noFile)
	require.NoError(t, err)
	require.Equal(t, Write, j.Kind)
	require.Equal(t, []byte{0x01, 0x23}, j.Write.Data)
	require.Equal(t, loader.Word, j.Write.Size)
	require.Empty(t, j.Notices)

	j, err = Build(Options{Addr: "0x2000", Long: true, Data: "1234", Exec: "0x10"}, noFile)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0x12, 0x34}, j.Write.Data)
	require.Len(t, j.Notices, 2)
	require.Nil(t, j.Entry)
}

func TestBuildRejects(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		read func(string) ([]byte, error)
	}{
		{"addr and base", Options{Addr: "0", Base: "0"}, noFile},
		{"word and long", Options{Addr: "0", Word: true, Long: true, Data: "00"}, noFile},
		{"read and write", Options{Addr: "0", Read: true, Write: true}, noFile},
		{"exec and jump", Options{Exec: "0", Jump: "0"}, noFile},
		{"odd exec", Options{Exec: "0x1001"}, noFile},
		{"addr alone", Options{Addr: "0x1000"}, noFile},
		{"read without length", Options{Addr: "0x1000", Read: true}, noFile},
		{"write without data", Options{Addr: "0x1000", Write: true}, noFile},
		{"bad hex", Options{Addr: "0x1000", Write: true, Data: "zz"}, noFile},
		{"bad number", Options{Addr: "0xnope", Write: true, Data: "00"}, noFile},
		{"base without file", Options{Base: "0x1000"}, noFile},
		{"odd base", Options{Base: "0x1001", Data: "a.bin"}, fileOf(16)},
		{"tiny file", Options{Base: "0x1000", Data: "a.bin"}, fileOf(1)},
		{"load past end", Options{Base: "0xFFFFFFF0", Data: "a.bin"}, fileOf(32)},
		{"read past end", Options{Addr: "0xFFFFFFFE", Read: true, Word: true, Length: "2"}, noFile},
		{"block read past end", Options{Addr: "0xFFFFFFFE", Read: true, Long: true, Block: true, Length: "1"}, noFile},
		{"write past end", Options{Addr: "0xFFFFFFFF", Write: true, Data: "0102"}, noFile},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Build(c.opts, c.read)
			require.Error(t, err)
		})
	}

	_, err := Build(Options{Base: "0x1001", Data: "a.bin"}, fileOf(16))
	var rangeErr *loader.AddressRangeError
	require.True(t, errors.As(err, &rangeErr))
	require.Equal(t, uint32(0x1001), rangeErr.Address)

	_, err = Build(Options{Base: "0x1000", Data: "a.bin"}, fileOf(1))
	var inputErr *args.MalformedInputError
	require.True(t, errors.As(err, &inputErr))
}

func newRunner(port *queuePort, out io.Writer) *Runner {
	c := loader.NewClient(port)
	c.Timeout = time.Millisecond
	return &Runner{
		Client: c,
		Relay:  &loader.Relay{Port: port, Out: out, Poll: time.Millisecond},
		Out:    out,
	}
}

func TestRunPing(t *testing.T) {
	port := &queuePort{in: []byte{loader.AckProbe}}
	var out bytes.Buffer
	require.NoError(t, newRunner(port, &out).Run(context.Background(), &Job{Kind: Ping}))
	require.Equal(t, []byte{loader.OpProbe}, port.written.Bytes())
}

func TestRunWrite(t *testing.T) {
	j, err := Build(Options{Addr: "0x100", Write: true, Data: "abcd"}, noFile)
	require.NoError(t, err)
	port := &queuePort{in: []byte{loader.AckProbe, loader.AckWrite}}
	var out bytes.Buffer
	require.NoError(t, newRunner(port, &out).Run(context.Background(), j))
	require.Equal(t,
		[]byte{loader.OpProbe, loader.OpWrite, 1, 0, 0, 0, 2, 0, 0, 1, 0, 0xab, 0xcd},
		port.written.Bytes())
}

func TestRunReadDump(t *testing.T) {
	j, err := Build(Options{Addr: "0x1000", Read: true, Length: "3"}, noFile)
	require.NoError(t, err)
	port := &queuePort{in: []byte{loader.AckProbe, loader.AckRead, 'A', 'B', 'C'}}
	var out bytes.Buffer
	require.NoError(t, newRunner(port, &out).Run(context.Background(), j))
	require.Contains(t, out.String(), " 00001000 414243")
	require.Contains(t, out.String(), "ABC")
	require.NotContains(t, out.String(), "WARNING")
}

type memFile struct {
	bytes.Buffer
	closed bool
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

func TestRunReadToFile(t *testing.T) {
	j, err := Build(Options{Addr: "0x1000", Read: true, Length: "1", Word: true, Data: "out.bin"}, noFile)
	require.NoError(t, err)
	port := &queuePort{in: []byte{loader.AckProbe, loader.AckReadBlock, 0x12, 0x34}}
	var out bytes.Buffer
	f := &memFile{}
	r := newRunner(port, &out)
	r.Create = func(name string) (io.WriteCloser, error) {
		require.Equal(t, "out.bin", name)
		return f, nil
	}
	require.NoError(t, r.Run(context.Background(), j))
	require.Equal(t, []byte{0x12, 0x34}, f.Bytes())
	require.True(t, f.closed)
}

func TestRunIncompleteRead(t *testing.T) {
	j, err := Build(Options{Addr: "0x1000", Read: true, Length: "8"}, noFile)
	require.NoError(t, err)
	port := &queuePort{in: []byte{loader.AckProbe, loader.AckRead, 'x', 'y'}}
	var out bytes.Buffer
	err = newRunner(port, &out).Run(context.Background(), j)
	var incomplete *loader.IncompleteReadError
	require.True(t, errors.As(err, &incomplete))
	require.Equal(t, 2, incomplete.Received)
	require.Contains(t, out.String(), "WARNING: only 2 of 8 bytes received")
	require.Contains(t, out.String(), "xy")
}

func TestRunStartRelays(t *testing.T) {
	j, err := Build(Options{Exec: "0x1000"}, noFile)
	require.NoError(t, err)
	port := &queuePort{in: []byte{loader.AckProbe, loader.AckStart}}
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, newRunner(port, &out).Run(ctx, j))
	require.True(t, strings.Contains(out.String(), Banner))
	require.Equal(t, []byte{loader.OpProbe, loader.OpCall, 0, 0, 0x10, 0}, port.written.Bytes())
}

// failingPort acknowledges the handshake and start, then the link drops.
type failingPort struct {
	queuePort
}

func (p *failingPort) RecvByte(d time.Duration) (byte, error) {
	if len(p.in) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return p.queuePort.RecvByte(d)
}

func TestRunStartLinkFailure(t *testing.T) {
	j, err := Build(Options{Jump: "0x1000"}, noFile)
	require.NoError(t, err)
	port := &failingPort{queuePort{in: []byte{loader.AckProbe, loader.AckStart}}}
	var out bytes.Buffer
	c := loader.NewClient(port)
	r := &Runner{
		Client: c,
		Relay:  &loader.Relay{Port: port, Out: &out, Poll: time.Millisecond},
		Out:    &out,
	}
	err = r.Run(context.Background(), j)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.True(t, r.Started)
	require.True(t, port.closed)
}

func TestRunStartNotAcknowledged(t *testing.T) {
	j, err := Build(Options{Exec: "0x1000"}, noFile)
	require.NoError(t, err)
	port := &queuePort{in: []byte{loader.AckProbe}}
	var out bytes.Buffer
	r := newRunner(port, &out)
	require.Error(t, r.Run(context.Background(), j))
	require.False(t, r.Started)
	require.False(t, port.closed)
}

func TestRunHandshakeFails(t *testing.T) {
	port := &queuePort{}
	var out bytes.Buffer
	err := newRunner(port, &out).Run(context.Background(), &Job{Kind: Write})
	var exhausted *loader.RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, loader.StageHandshake, exhausted.Stage)
	require.Len(t, port.written.Bytes(), loader.DefaultRetries.Handshake)
}
