package worker

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress tracks a batch of tasks and optionally draws a terminal bar.
type Progress struct {
	startTime time.Time
	bar       *progressbar.ProgressBar
	unit      string
	total     int
	completed int
	failed    int
	mu        sync.Mutex
}

// NewProgress creates a tracker for total tasks. The bar is only drawn when
// enabled; the counters are kept either way.
func NewProgress(total int, enabled bool, description, unit string) *Progress {
	return newProgress(total, enabled, description, unit, os.Stderr)
}

func newProgress(total int, enabled bool, description, unit string, out io.Writer) *Progress {
	p := &Progress{startTime: time.Now(), unit: unit, total: total}
	if enabled {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString(unit),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		)
	}
	return p
}

// Update records completed and failed counts out of total.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed = completed
	p.failed = failed
	if total != p.total {
		p.total = total
		if p.bar != nil {
			p.bar.ChangeMax(total)
		}
	}
	if p.bar != nil {
		if failed > 0 {
			p.bar.Describe(fmt.Sprintf("%d failed", failed))
		}
		_ = p.bar.Set(completed)
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Done finishes the bar.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
}

// Summary returns a one-line account of the completed work.
func (p *Progress) Summary() string {
	p.mu.Lock()
	completed, total, failed := p.completed, p.total, p.failed
	p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}
	return fmt.Sprintf("Processed %d/%d %s (%d failed) in %s (%.1f %s/sec)",
		completed-failed, total, p.unit, failed, formatDuration(elapsed), rate, p.unit)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
