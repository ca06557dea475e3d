package orchestrator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	timeColor  = color.New(color.FgHiBlack)
	taskColor  = color.New(color.FgCyan)
	timeSpent  = color.New(color.FgMagenta)
	errorColor = color.New(color.FgRed)
)

// Console prints gulp-style progress lines:
//
//	[10:42:07] Starting 'style'...
//	[10:42:07] Finished 'style' after 84 ms
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, now: time.Now}
}

// Log prints one timestamped line.
func (c *Console) Log(format string, args ...interface{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] %s\n", timeColor.Sprint(c.now().Format("15:04:05")), fmt.Sprintf(format, args...))
}

// Starting reports a task start.
func (c *Console) Starting(name string) {
	c.Log("Starting '%s'...", taskColor.Sprint(name))
}

// Finished reports a task success.
func (c *Console) Finished(name string, d time.Duration) {
	c.Log("Finished '%s' after %s", taskColor.Sprint(name), timeSpent.Sprint(FormatDuration(d)))
}

// Errored reports a task failure.
func (c *Console) Errored(name string, d time.Duration, err error) {
	c.Log("'%s' %s after %s", taskColor.Sprint(name), errorColor.Sprint("errored"), timeSpent.Sprint(FormatDuration(d)))
	c.Log("%s", errorColor.Sprint(err.Error()))
}

// FormatDuration renders d the way gulp does: microseconds, milliseconds
// or seconds with at most three significant digits.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d μs", d.Microseconds())
	case d < time.Second:
		return trimFloat(float64(d)/float64(time.Millisecond)) + " ms"
	case d < time.Minute:
		return trimFloat(d.Seconds()) + " s"
	default:
		return trimFloat(d.Minutes()) + " min"
	}
}

func trimFloat(v float64) string {
	if v >= 100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3g", v)
}
