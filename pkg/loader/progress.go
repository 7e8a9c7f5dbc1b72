package loader

import (
	"fmt"
	"io"
	"sync"
)

// Progress receives user facing progress of protocol steps.
type Progress interface {
	// Begin starts a step, e.g. "Loading 1024 bytes to 0x00001000:".
	Begin(title string)
	// Timeout reports the n-th timeout of the current step.
	Timeout(n int)
	// Advance reports that received bytes went past another hundred.
	Advance()
	// End finishes the current step with a status message.
	End(status string)
	// Notice prints a standalone line.
	Notice(msg string)
}

// NopProgress discards all progress.
type NopProgress struct{}

// Begin implements Progress.
func (NopProgress) Begin(string) {}

// Timeout implements Progress.
func (NopProgress) Timeout(int) {}

// Advance implements Progress.
func (NopProgress) Advance() {}

// End implements Progress.
func (NopProgress) End(string) {}

// Notice implements Progress.
func (NopProgress) Notice(string) {}

// ConsoleProgress prints progress as a line of dots per step.
type ConsoleProgress struct {
	W io.Writer

	lock   sync.Mutex
	dotted bool
}

// NewConsoleProgress creates a ConsoleProgress writing to w.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{W: w}
}

// Begin implements Progress.
func (p *ConsoleProgress) Begin(title string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.dotted = false
	fmt.Fprint(p.W, title)
}

// Timeout implements Progress.
func (p *ConsoleProgress) Timeout(n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.dot()
}

// Advance implements Progress.
func (p *ConsoleProgress) Advance() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.dot()
}

// End implements Progress.
func (p *ConsoleProgress) End(status string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	fmt.Fprintf(p.W, " %s\n", status)
}

// Notice implements Progress.
func (p *ConsoleProgress) Notice(msg string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	fmt.Fprintln(p.W, msg)
}

func (p *ConsoleProgress) dot() {
	if !p.dotted {
		fmt.Fprint(p.W, " ")
		p.dotted = true
	}
	fmt.Fprint(p.W, ".")
}
