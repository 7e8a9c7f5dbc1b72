// Package sh provides the interactive bootloader monitor.
package sh

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/cometload/pkg/cli/job"
	"github.com/robotalks/cometload/pkg/config"
	"github.com/robotalks/cometload/pkg/loader"
)

// Shell provides ishell backed interactive monitor.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Config *config.Config
	Conn   *Conn
	// Open opens the link, Config.Open when nil.
	Open func(url string) (loader.Port, error)
}

// Conn is an open link to the bootloader.
type Conn struct {
	URL    string
	Port   loader.Port
	Client *loader.Client
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var commands = []*ishell.Cmd{
	&ConnectCmd,
	&DisconnectCmd,
	&PingCmd,
	&ReadCmd,
	&WriteCmd,
	&LoadCmd,
	&ExecCmd,
	&JumpCmd,
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: true,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Connect opens the link at url, the configured port when empty.
func (s *Shell) Connect(url string) error {
	if url == "" {
		url = s.Config.Port
	}
	open := s.Open
	if open == nil {
		open = func(url string) (loader.Port, error) {
			conf := *s.Config
			conf.Port = url
			return conf.Open()
		}
	}
	port, err := open(url)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = &Conn{
		URL:    url,
		Port:   port,
		Client: s.Config.NewClient(port, loader.NewConsoleProgress(os.Stdout)),
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", url))
	return nil
}

// Disconnect closes current link.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		if err := s.Conn.Port.Close(); err != nil {
			glog.Warningf("close %s: %v", s.Conn.URL, err)
		}
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// RunJob runs a job on the current link. Once code is started the relay
// forwards its output until Ctrl-C or a link failure, after which the link
// is closed as the bootloader no longer answers.
func (s *Shell) RunJob(c *ishell.Context, j *job.Job) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	r := &job.Runner{
		Client: s.Conn.Client,
		Relay:  &loader.Relay{Port: s.Conn.Port, Out: os.Stdout, Poll: s.Config.RelayPoll},
		Out:    os.Stdout,
	}
	err := r.Run(ctx, j)
	if r.Started {
		c.Println("Program started, link closed")
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
	return err
}

// Run runs the shell.
func (s *Shell) Run(args ...string) error {
	if s.Config.Port != "" {
		if err := s.Connect(""); err != nil {
			glog.Warningf("connect %s failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return fmt.Errorf("command expected")
	}
	s.Shell.Run()
	return nil
}

// cmdFlags parses command arguments into job options.
type cmdFlags struct {
	*flag.FlagSet
	opts job.Options
}

func newCmdFlags(name string, out io.Writer) *cmdFlags {
	f := &cmdFlags{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.SetOutput(out)
	return f
}

func (f *cmdFlags) sizes() *cmdFlags {
	f.BoolVar(&f.opts.Word, "word", false, "Use 16-bit units.")
	f.BoolVar(&f.opts.Long, "long", false, "Use 32-bit units.")
	return f
}

func runWithFlags(c *ishell.Context, f *cmdFlags, minArgs int, usage string, build func(args []string) job.Options) {
	if err := f.Parse(c.Args); err != nil {
		c.Err(err)
		return
	}
	if f.NArg() < minArgs {
		c.Err(fmt.Errorf("usage: %s", usage))
		return
	}
	j, err := job.Build(build(f.Args()), nil)
	if err != nil {
		c.Err(err)
		return
	}
	if err = ShellFrom(c).RunJob(c, j); err != nil {
		c.Err(err)
	}
}

var (
	// ConnectCmd opens a link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c", "open"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			var url string
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := ShellFrom(c).Connect(url); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes current link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d", "close"},
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// PingCmd checks the bootloader answers.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Func: MustBeConnected(func(c *ishell.Context) {
			if err := ShellFrom(c).RunJob(c, &job.Job{Kind: job.Ping}); err != nil {
				c.Err(err)
			}
		}),
	}

	// ReadCmd dumps target memory.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "[-word|-long] [-block] [-o FILE] ADDR COUNT",
		Func: MustBeConnected(func(c *ishell.Context) {
			f := newCmdFlags("read", os.Stdout).sizes()
			f.BoolVar(&f.opts.Block, "block", false, "Read all units from the same address.")
			f.StringVar(&f.opts.Data, "o", "", "Save to file instead of dumping.")
			runWithFlags(c, f, 2, "read [-word|-long] [-block] [-o FILE] ADDR COUNT", func(args []string) job.Options {
				f.opts.Read, f.opts.Addr, f.opts.Length = true, args[0], args[1]
				return f.opts
			})
		}),
	}

	// WriteCmd writes hex data to target memory.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "[-word|-long] ADDR HEX",
		Func: MustBeConnected(func(c *ishell.Context) {
			f := newCmdFlags("write", os.Stdout).sizes()
			runWithFlags(c, f, 2, "write [-word|-long] ADDR HEX", func(args []string) job.Options {
				f.opts.Write, f.opts.Addr, f.opts.Data = true, args[0], args[1]
				return f.opts
			})
		}),
	}

	// LoadCmd loads a binary file.
	LoadCmd = ishell.Cmd{
		Name:    "load",
		Aliases: []string{"l"},
		Help:    "[-exec ADDR|-jump ADDR] BASE FILE",
		Func: MustBeConnected(func(c *ishell.Context) {
			f := newCmdFlags("load", os.Stdout)
			f.StringVar(&f.opts.Exec, "exec", "", "Call ADDR after loading.")
			f.StringVar(&f.opts.Jump, "jump", "", "Jump to ADDR after loading.")
			runWithFlags(c, f, 2, "load [-exec ADDR|-jump ADDR] BASE FILE", func(args []string) job.Options {
				f.opts.Base, f.opts.Data = args[0], args[1]
				return f.opts
			})
		}),
	}

	// ExecCmd calls code in target memory.
	ExecCmd = ishell.Cmd{
		Name:    "exec",
		Aliases: []string{"x", "call"},
		Help:    "ADDR",
		Func: MustBeConnected(func(c *ishell.Context) {
			f := newCmdFlags("exec", os.Stdout)
			runWithFlags(c, f, 1, "exec ADDR", func(args []string) job.Options {
				f.opts.Exec = args[0]
				return f.opts
			})
		}),
	}

	// JumpCmd jumps to code in target memory.
	JumpCmd = ishell.Cmd{
		Name:    "jump",
		Aliases: []string{"j"},
		Help:    "ADDR",
		Func: MustBeConnected(func(c *ishell.Context) {
			f := newCmdFlags("jump", os.Stdout)
			runWithFlags(c, f, 1, "jump ADDR", func(args []string) job.Options {
				f.opts.Jump = args[0]
				return f.opts
			})
		}),
	}
)
