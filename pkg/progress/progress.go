// Package progress shows engine progress events to a person.
//
// A Bar redraws a single status line per evaluation when it writes to a terminal.
// Written anywhere else, it prints one line when an evaluation starts and one when it ends.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

const defaultWidth = 80

var (
	colorLabel = color.New(color.FgCyan)
	colorOk    = color.New(color.FgGreen)
	colorFail  = color.New(color.FgRed, color.Bold)
)

// Bar is an engine.ProgressSink.
type Bar struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	width int
	state map[string]pfapi.Progress
}

var _ engine.ProgressSink = (*Bar)(nil)

// New returns a Bar writing to w.
func New(w io.Writer) *Bar {
	b := &Bar{w: w, width: defaultWidth, state: map[string]pfapi.Progress{}}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b.tty = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			b.width = cols
		}
	}
	return b
}

func (b *Bar) Begin(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[label] = pfapi.Progress{Label: label}
	if !b.tty {
		fmt.Fprintf(b.w, "%s started\n", colorLabel.Sprint(label))
	}
}

func (b *Bar) Update(label string, p pfapi.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[label] = p
	if b.tty {
		fmt.Fprintf(b.w, "\r%s", Render(label, p, b.width))
	}
}

func (b *Bar) End(label string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.state[label]
	delete(b.state, label)
	if b.tty {
		fmt.Fprint(b.w, "\r"+strings.Repeat(" ", b.width-1)+"\r")
	}
	if err != nil {
		fmt.Fprintf(b.w, "%s %s: %s\n", colorLabel.Sprint(label), colorFail.Sprint("failed"), err)
		return
	}
	steps := ""
	if p.Total > 0 {
		steps = fmt.Sprintf(" (%d steps)", p.Total)
	}
	fmt.Fprintf(b.w, "%s %s%s\n", colorLabel.Sprint(label), colorOk.Sprint("done"), steps)
}

// Pending lists evaluations that began and have not ended.
func (b *Bar) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.state)
}

// Render lays out one status line of at most width columns.
// Without a known total, it counts steps instead of drawing a bar.
func Render(label string, p pfapi.Progress, width int) string {
	if p.Total <= 0 {
		return fit(fmt.Sprintf("%s %d steps", label, p.Done), width)
	}
	done := p.Done
	if done > p.Total {
		done = p.Total
	}
	pct := fmt.Sprintf(" %3d%%", done*100/p.Total)
	room := width - len(label) - len(pct) - 3
	if room < 10 {
		room = 10
	}
	filled := int(int64(room) * done / p.Total)
	return fit(label+" ["+strings.Repeat("#", filled)+strings.Repeat(".", room-filled)+"]"+pct, width)
}

func fit(s string, width int) string {
	if width > 0 && len(s) > width {
		return s[:width]
	}
	return s
}
