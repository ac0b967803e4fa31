package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 24

// Progress follows a batch of colorway renders. It draws a one-line bar with
// the most recently finished colorway and remembers which colorways failed.
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	start   time.Time
	now     func() time.Time

	total     int
	completed int
	last      string
	failed    []string
	slowest   Result
}

// NewProgress creates a tracker for total colorways. When enabled is false it
// only collects counts for Summary.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		out:     os.Stderr,
		enabled: enabled,
		start:   time.Now(),
		now:     time.Now,
		total:   total,
	}
}

// Observe records one finished colorway.
func (p *Progress) Observe(r Result, completed, total int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.last = r.Task.Colorway.Name
	if r.Err != nil {
		p.failed = append(p.failed, r.Task.Colorway.Name)
	} else if r.Elapsed > p.slowest.Elapsed {
		p.slowest = r
	}
	line := p.lineLocked()
	p.mu.Unlock()

	if p.enabled {
		fmt.Fprint(p.out, "\r"+line+"\033[K")
	}
}

// Callback returns Observe as a ProgressFunc for Config.OnProgress.
func (p *Progress) Callback() ProgressFunc {
	return p.Observe
}

// Done ends the bar line.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	line := p.lineLocked()
	p.mu.Unlock()
	fmt.Fprintln(p.out, "\r"+line+"\033[K")
}

// Failed returns the names of failed colorways in completion order.
func (p *Progress) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.failed...)
}

// Summary describes the finished batch, naming failed colorways and the
// slowest successful one.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.start)
	var b strings.Builder
	fmt.Fprintf(&b, "Rendered %d of %d colorways in %s",
		p.completed-len(p.failed), p.total, elapsed.Round(time.Second))
	if p.slowest.Err == nil && p.slowest.Elapsed > 0 {
		fmt.Fprintf(&b, "; slowest %q took %s", p.slowest.Task.Colorway.Name, p.slowest.Elapsed.Round(time.Millisecond))
	}
	if len(p.failed) > 0 {
		fmt.Fprintf(&b, "; failed: %s", strings.Join(p.failed, ", "))
	}
	return b.String()
}

func (p *Progress) lineLocked() string {
	filled := barWidth
	if p.total > 0 {
		filled = p.completed * barWidth / p.total
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d", bar, p.completed, p.total)
	if n := len(p.failed); n > 0 {
		line += fmt.Sprintf(" %d failed", n)
	}
	if p.completed < p.total && p.completed > 0 {
		elapsed := p.now().Sub(p.start)
		eta := elapsed / time.Duration(p.completed) * time.Duration(p.total-p.completed)
		line += " eta " + eta.Round(time.Second).String()
	}
	if p.last != "" {
		line += " " + p.last
	}
	return line
}
