// Package progress reports per-item progress of operations that walk every
// history line, such as push.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"sync"
)

// Callback receives one update per finished item.
type Callback func(op string, current, total int, message string)

// Noop discards updates.
func Noop(op string, current, total int, message string) {}

// Progress counts finished items of one operation.
type Progress struct {
	Op      string
	Total   int
	current int
	failed  int
	cb      Callback
}

// New creates a tracker for total items. A nil cb discards updates.
func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Increment marks one item done.
func (p *Progress) Increment(message string) {
	p.current++
	p.cb(p.Op, p.current, p.Total, message)
}

// Fail marks one item done without success.
func (p *Progress) Fail(item string, err error) {
	p.failed++
	p.Increment(fmt.Sprintf("%s failed: %v", item, err))
}

// Current returns the number of finished items.
func (p *Progress) Current() int { return p.current }

// Failed returns how many finished items failed.
func (p *Progress) Failed() int { return p.failed }

// Printer writes one line per update, e.g. "push [ 2/10] abc".
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Callback returns a Callback that prints each update. The counter is
// padded to the width of total so columns line up.
func (p *Printer) Callback() Callback {
	return func(op string, current, total int, message string) {
		p.mu.Lock()
		defer p.mu.Unlock()
		width := len(strconv.Itoa(total))
		line := fmt.Sprintf("%s [%*d/%d]", op, width, current, total)
		if message != "" {
			line += " " + message
		}
		fmt.Fprintln(p.w, line)
	}
}
