package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/cometload/pkg/cli/job"
	"github.com/robotalks/cometload/pkg/cli/sh"
	"github.com/robotalks/cometload/pkg/config"
	"github.com/robotalks/cometload/pkg/framework"
	"github.com/robotalks/cometload/pkg/loader"
)

var (
	opts        job.Options
	interactive bool
)

func stringFlag(p *string, short, long, usage string) {
	flag.StringVar(p, short, "", usage)
	flag.StringVar(p, long, "", usage)
}

func boolFlag(p *bool, short, long, usage string) {
	flag.BoolVar(p, short, false, usage)
	flag.BoolVar(p, long, false, usage)
}

func init() {
	config.SetupFlags()
	stringFlag(&opts.Addr, "a", "addr", "Memory address to read or write.")
	stringFlag(&opts.Base, "b", "base", "Base address to load the binary file to.")
	stringFlag(&opts.Exec, "e", "exec", "Call ADDR (JSR) after loading, or alone.")
	stringFlag(&opts.Jump, "j", "jump", "Jump to ADDR (JMP) after loading, or alone.")
	stringFlag(&opts.Length, "l", "length", "Number of units to read.")
	boolFlag(&opts.Read, "r", "read", "Read memory at --addr.")
	boolFlag(&opts.Write, "w", "write", "Write hex DATA to memory at --addr.")
	flag.BoolVar(&opts.Word, "word", false, "Use 16-bit units.")
	flag.BoolVar(&opts.Long, "long", false, "Use 32-bit units.")
	flag.BoolVar(&opts.Block, "block", false, "Read all units from the same address.")
	flag.BoolVar(&interactive, "i", false, "Start the interactive monitor.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] [DATA]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "DATA is the binary file for --base, hex data for --write, or the output file for --read.")
		flag.PrintDefaults()
	}
}

func run() error {
	conf, err := config.Load()
	if err != nil {
		return err
	}
	if interactive {
		return sh.New(conf).Run(flag.Args()...)
	}

	if flag.NArg() > 1 {
		return fmt.Errorf("too many arguments: %v", flag.Args()[1:])
	}
	opts.Data = flag.Arg(0)
	j, err := job.Build(opts, nil)
	if err != nil {
		return err
	}

	port, err := conf.Open()
	if err != nil {
		return err
	}
	defer port.Close()

	r := &job.Runner{
		Client: conf.NewClient(port, loader.NewConsoleProgress(os.Stdout)),
		Relay:  &loader.Relay{Port: port, Out: os.Stdout, Poll: conf.RelayPoll},
		Out:    os.Stdout,
	}
	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun(j.Kind.String(), framework.RunFunc(func(ctx context.Context) error {
		return r.Run(ctx, j)
	})))
	return runner.Wait()
}

func main() {
	flag.Parse()
	err := run()
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
