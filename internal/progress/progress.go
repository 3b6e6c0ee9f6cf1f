// Package progress reports compilation progress as a percentage in
// [0, 100] together with a short status message.
package progress

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/mgpai22/drillcast/internal/logging"
)

// Sink receives progress updates.
type Sink interface {
	Report(percent int, message string)
}

// Func adapts a plain function to a Sink.
type Func func(percent int, message string)

func (f Func) Report(percent int, message string) { f(percent, message) }

// Nop discards every update.
var Nop Sink = Func(func(int, string) {})

type monotonic struct {
	mu   sync.Mutex
	last int
	next Sink
}

// Monotonic wraps s so that reported percentages are clamped to [0, 100]
// and never decrease.
func Monotonic(s Sink) Sink {
	if s == nil {
		s = Nop
	}
	return &monotonic{last: -1, next: s}
}

func (m *monotonic) Report(percent int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	percent = min(max(percent, 0), 100)
	if percent < m.last {
		percent = m.last
	}
	m.last = percent
	m.next.Report(percent, message)
}

// Phase is a slice of the progress range owned by one stage of a run.
type Phase struct {
	Label  string
	Offset int
	Share  int
}

// At maps done/total within the phase onto the overall range.
func (p Phase) At(done, total int) int {
	if total <= 0 {
		return p.Offset + p.Share
	}
	done = min(max(done, 0), total)
	return p.Offset + p.Share*done/total
}

// Bar renders updates as a terminal progress bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

func NewBar(w io.Writer, description string) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (b *Bar) Report(percent int, message string) {
	if message != "" {
		b.bar.Describe(message)
	}
	_ = b.bar.Set(percent)
}

// Finish completes the bar and releases the line.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
}

// Log writes each update as a structured log line.
type Log struct {
	logger *logging.Logger
}

func NewLog(logger *logging.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Report(percent int, message string) {
	l.logger.Infow("Progress", "percent", percent, "message", message)
}
