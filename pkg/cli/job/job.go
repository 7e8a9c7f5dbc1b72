// Package job turns loader command line options into a validated one-shot
// job and runs it over a link.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/cometload/pkg/cli/args"
	"github.com/robotalks/cometload/pkg/hexdump"
	"github.com/robotalks/cometload/pkg/loader"
)

// Options are the raw command line selections.
type Options struct {
	Addr   string
	Base   string
	Exec   string
	Jump   string
	Length string
	Read   bool
	Write  bool
	Word   bool
	Long   bool
	Block  bool
	// Data is the binary file for a load, hex data for a write, or the
	// output file for a read.
	Data string
}

// Kind is the top level operation of a job.
type Kind int

// Job kinds.
const (
	Ping Kind = iota
	Load
	Read
	Write
	Start
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Load:
		return "load"
	case Read:
		return "read"
	case Write:
		return "write"
	case Start:
		return "start"
	}
	return "ping"
}

// Job is a validated operation ready to run.
type Job struct {
	Kind  Kind
	Load  loader.LoadRequest
	Read  loader.ReadRequest
	Write loader.WriteRequest
	Entry *loader.Entry
	// Output names the file a read is saved to, empty for a hex dump.
	Output string
	// Notices are printed before the job runs.
	Notices []string
}

// Build validates options. Everything that can be rejected is rejected here,
// before the link is opened.
func Build(o Options, readFile func(string) ([]byte, error)) (*Job, error) {
	if readFile == nil {
		readFile = args.ReadFile
	}
	if o.Addr != "" && o.Base != "" {
		return nil, errors.New("--addr and --base are mutually exclusive")
	}
	if o.Word && o.Long {
		return nil, errors.New("--word and --long are mutually exclusive")
	}
	if o.Read && o.Write {
		return nil, errors.New("--read and --write are mutually exclusive")
	}
	entry, err := parseEntry(o)
	if err != nil {
		return nil, err
	}

	j := &Job{}
	switch {
	case o.Addr != "":
		if entry != nil {
			j.Notices = append(j.Notices, "--exec and --jump are ignored when reading/writing memory")
		}
		err = j.buildMemory(o)
	case o.Base != "":
		if o.Read || o.Write {
			j.Notices = append(j.Notices, "--read and --write are ignored during binary load, --write assumed")
		}
		if err = j.buildLoad(o, readFile); err == nil {
			j.Load.Entry, j.Entry = entry, entry
		}
	case entry != nil:
		j.Kind, j.Entry = Start, entry
	default:
		j.Kind = Ping
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func parseEntry(o Options) (*loader.Entry, error) {
	if o.Exec != "" && o.Jump != "" {
		return nil, errors.New("--exec and --jump are mutually exclusive")
	}
	var (
		e    loader.Entry
		raw  string
		what string
	)
	switch {
	case o.Exec != "":
		e.Mode, raw, what = loader.Call, o.Exec, "JSR address"
	case o.Jump != "":
		e.Mode, raw, what = loader.Jump, o.Jump, "JMP address"
	default:
		return nil, nil
	}
	addr, err := args.ParseLong(raw)
	if err != nil {
		return nil, err
	}
	if err = loader.CheckAligned(addr, what); err != nil {
		return nil, err
	}
	e.Address = addr
	return &e, nil
}

func unitSize(o Options) loader.UnitSize {
	switch {
	case o.Word:
		return loader.Word
	case o.Long:
		return loader.Long
	}
	return loader.Byte
}

func (j *Job) buildMemory(o Options) error {
	if !o.Read && !o.Write && !o.Word && !o.Long {
		return errors.New("when specifying --addr, you must also specify one of --read, --write, --word or --long")
	}
	addr, err := args.ParseLong(o.Addr)
	if err != nil {
		return err
	}
	size := unitSize(o)

	if o.Read {
		if o.Length == "" {
			return errors.New("when specifying --read, you must also specify --length")
		}
		count, err := args.ParseLong(o.Length)
		if err != nil {
			return err
		}
		// Block reads keep polling the same unit.
		span := uint64(count) * uint64(size)
		if o.Block {
			span = uint64(size)
		}
		if err = loader.CheckSpan(addr, int(span)); err != nil {
			return err
		}
		j.Kind = Read
		j.Read = loader.ReadRequest{Address: addr, Count: count, Size: size, Block: o.Block}
		j.Output = o.Data
		return nil
	}

	if o.Block {
		j.Notices = append(j.Notices, "--block is ignored when writing memory")
	}
	if o.Data == "" {
		return errors.New("when specifying --write, you must also specify the data to be written, hex formatted")
	}
	data, err := args.DecodeHex(o.Data)
	if err != nil {
		return err
	}
	padded := loader.PadToUnit(data, size)
	if len(padded) != len(data) {
		j.Notices = append(j.Notices, fmt.Sprintf("data to be written has been padded to a %s multiple", size))
	}
	if err = loader.CheckSpan(addr, len(padded)); err != nil {
		return err
	}
	j.Kind = Write
	j.Write = loader.WriteRequest{Address: addr, Data: padded, Size: size}
	return nil
}

func (j *Job) buildLoad(o Options, readFile func(string) ([]byte, error)) error {
	base, err := args.ParseLong(o.Base)
	if err != nil {
		return err
	}
	if o.Data == "" {
		return errors.New("filename must be specified when loading binary data")
	}
	if err = loader.CheckAligned(base, "base"); err != nil {
		return err
	}
	data, err := readFile(o.Data)
	if err != nil {
		return err
	}
	if len(data) < 2 || uint64(len(data)) > 1<<32 {
		return &args.MalformedInputError{
			Input:  o.Data,
			Reason: "size of file is invalid, minimum 2 bytes, maximum 4294967296",
		}
	}
	if err = loader.CheckSpan(base, len(data)); err != nil {
		return err
	}
	j.Kind = Load
	j.Load = loader.LoadRequest{Base: base, Data: data}
	return nil
}

// Banner separates loader output from the output of the started program.
const Banner = "============================================================"

// Runner executes jobs over a client.
type Runner struct {
	Client *loader.Client
	// Relay forwards program output after a start, nil to return at once.
	Relay *loader.Relay
	// Out receives hex dumps and banners.
	Out io.Writer
	// Create opens the read output file, os.Create when nil.
	Create func(name string) (io.WriteCloser, error)
	// Started is set once the target acknowledged a start. From then on the
	// bootloader no longer answers and the relay owns the link.
	Started bool
}

// Run performs the handshake and the job. When code is started, the relay
// runs until ctx is canceled.
func (r *Runner) Run(ctx context.Context, j *Job) error {
	p := r.Client.Progress
	if p == nil {
		p = loader.NopProgress{}
	}
	for _, msg := range j.Notices {
		p.Notice(msg)
	}
	if err := r.Client.Handshake(); err != nil {
		return err
	}
	glog.V(1).Infof("running %s job", j.Kind)
	switch j.Kind {
	case Load:
		if err := r.Client.Load(j.Load); err != nil {
			return err
		}
		if j.Load.Entry != nil {
			return r.relay(ctx)
		}
	case Start:
		if err := r.Client.Start(*j.Entry); err != nil {
			return err
		}
		return r.relay(ctx)
	case Read:
		return r.read(j)
	case Write:
		return r.Client.Write(j.Write)
	}
	return nil
}

func (r *Runner) relay(ctx context.Context) error {
	r.Started = true
	if r.Relay == nil {
		return nil
	}
	fmt.Fprintf(r.Out, "\n%s\n", Banner)
	err := r.Relay.Run(ctx)
	fmt.Fprintln(r.Out)
	return err
}

func (r *Runner) read(j *Job) error {
	res, err := r.Client.Read(j.Read)
	if res == nil {
		return err
	}
	var incomplete *loader.IncompleteReadError
	if errors.As(err, &incomplete) {
		fmt.Fprintf(r.Out, "WARNING: only %d of %d bytes received, data is not reliable\n",
			incomplete.Received, incomplete.Expected)
	}
	if saveErr := r.save(j, res.Data); saveErr != nil && err == nil {
		err = saveErr
	}
	return err
}

func (r *Runner) save(j *Job, data []byte) error {
	if j.Output == "" {
		return hexdump.Write(r.Out, data, j.Read.Address)
	}
	create := r.Create
	if create == nil {
		create = func(name string) (io.WriteCloser, error) { return os.Create(name) }
	}
	f, err := create(j.Output)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	fmt.Fprintf(r.Out, "%d bytes saved to %s\n", len(data), j.Output)
	return f.Close()
}
