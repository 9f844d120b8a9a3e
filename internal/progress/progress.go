// Package progress draws progress bars on an interactive stderr.
package progress

import (
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Manager starts progress tasks.
type Manager interface {
	StartTask(description string, total int) Task
	IsInteractive() bool
	Close()
}

// Task tracks one unit of work. Implementations are safe for concurrent use.
type Task interface {
	Increment(n int)
	Describe(description string)
	Complete()
}

// New returns a bar-drawing Manager when enabled and stderr is a terminal,
// and a no-op Manager otherwise.
func New(enabled bool) Manager {
	if enabled && IsTerminal(os.Stderr) {
		return NewWithWriter(os.Stderr)
	}
	return NoOp{}
}

// NewWithWriter returns a Manager that always draws to w.
func NewWithWriter(w io.Writer) Manager {
	return &barManager{writer: w}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type barManager struct {
	writer io.Writer

	mu   sync.Mutex
	bars []*progressbar.ProgressBar
}

func (m *barManager) StartTask(description string, total int) Task {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(m.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(24),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	m.mu.Lock()
	m.bars = append(m.bars, bar)
	m.mu.Unlock()
	return &barTask{bar: bar}
}

func (m *barManager) IsInteractive() bool {
	return true
}

func (m *barManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bar := range m.bars {
		_ = bar.Finish()
	}
	m.bars = nil
}

type barTask struct {
	bar *progressbar.ProgressBar
}

func (t *barTask) Increment(n int) {
	_ = t.bar.Add(n)
}

func (t *barTask) Describe(description string) {
	t.bar.Describe(description)
}

func (t *barTask) Complete() {
	_ = t.bar.Finish()
}

// NoOp is a Manager that draws nothing.
type NoOp struct{}

func (NoOp) StartTask(string, int) Task { return noopTask{} }
func (NoOp) IsInteractive() bool        { return false }
func (NoOp) Close()                     {}

type noopTask struct{}

func (noopTask) Increment(int)   {}
func (noopTask) Describe(string) {}
func (noopTask) Complete()       {}
