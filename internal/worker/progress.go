package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress draws a single-line frame counter on a terminal and keeps the
// tally for the closing summary.
type Progress struct {
	out     io.Writer
	start   time.Time
	now     func() time.Time
	mu      sync.Mutex
	tally   Tally
	enabled bool
}

// NewProgress returns a tracker for total frames writing to stderr.
// When enabled is false it only records the tally.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		out:     os.Stderr,
		start:   time.Now(),
		now:     time.Now,
		tally:   Tally{Total: total},
		enabled: enabled,
	}
}

// Update records t and redraws the line.
func (p *Progress) Update(t Tally) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tally = t
	if p.enabled {
		fmt.Fprint(p.out, "\r"+p.line()+"    ")
	}
}

// Callback returns p.Update as a ProgressFunc.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Done finishes the line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		fmt.Fprintln(p.out, "\r"+p.line())
	}
}

// Tally returns the last recorded tally.
func (p *Progress) Tally() Tally {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tally
}

// Summary describes the finished run for the log.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.tally
	elapsed := p.now().Sub(p.start)
	return fmt.Sprintf("Rendered %d/%d frames (%d skipped, %d failed) in %s (%.1f frames/sec)",
		t.Rendered(), t.Total, t.Skipped, t.Failed, formatDuration(elapsed), rate(t.Done, elapsed))
}

// line renders the progress line; callers hold mu.
func (p *Progress) line() string {
	t := p.tally
	elapsed := p.now().Sub(p.start)
	fps := rate(t.Done, elapsed)

	filled := 0
	if t.Total > 0 {
		filled = min(t.Done*barWidth/t.Total, barWidth)
	}

	var b strings.Builder
	b.WriteString("[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]")
	fmt.Fprintf(&b, " %d/%d frames", t.Done, t.Total)
	if t.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", t.Skipped)
	}
	if t.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", t.Failed)
	}
	fmt.Fprintf(&b, " | %.1f fps", fps)

	switch {
	case t.Done >= t.Total:
		fmt.Fprintf(&b, " | done in %s", formatDuration(elapsed))
	case fps > 0:
		left := time.Duration(float64(t.Total-t.Done) / fps * float64(time.Second))
		fmt.Fprintf(&b, " | eta %s", formatDuration(left))
	}
	return b.String()
}

func rate(done int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(done) / elapsed.Seconds()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
