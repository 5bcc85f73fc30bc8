package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// Reporter provides progress feedback for the stages of a processing run.
type Reporter interface {
	Start(stage string, total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a CIReporter if the CI environment variable is set,
// a TerminalReporter otherwise.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{Out: os.Stderr}
	}
	return &TerminalReporter{}
}

// Func adapts r to the batch progress callback. Calls are expected between
// Start and Finish.
func Func(r Reporter) invoice.ProgressFunc {
	if r == nil {
		return nil
	}
	return func(done, _ int, name string) {
		r.Update(done, name)
	}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(stage string, total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(stage),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	Out   io.Writer
	stage string
	total int
}

func (r *CIReporter) Start(stage string, total int) {
	r.stage, r.total = stage, total
	fmt.Fprintf(r.Out, "%s: %d file(s)\n", stage, total)
}

func (r *CIReporter) Update(current int, message string) {
	fmt.Fprintf(r.Out, "[%d/%d] %s\n", current, r.total, message)
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(r.Out, "%s complete\n", r.stage)
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(string, int)  {}
func (Nop) Update(int, string) {}
func (Nop) Finish()            {}
