package cmds

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
	"github.com/go-go-golems/jobctl/pkg/tui/widgets"
)

const gaugeWidth = 30

// linePrinter is the headless projection: every log entry and every
// feedback change becomes one output line.
type linePrinter struct {
	mu sync.Mutex
	w  io.Writer

	feedback map[jobs.Kind]jobs.Feedback
	gauge    jobs.Gauge
	printed  float64
}

var _ jobs.Sinks = (*linePrinter)(nil)

func newLinePrinter(w io.Writer) *linePrinter {
	return &linePrinter{w: w, feedback: map[jobs.Kind]jobs.Feedback{}, printed: -1}
}

func (p *linePrinter) SetFeedback(kind jobs.Kind, fb jobs.Feedback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.feedback[kind] == fb {
		return
	}
	p.feedback[kind] = fb
	_, _ = fmt.Fprintln(p.w, formatFeedback(kind, fb))
}

func (p *linePrinter) AppendLog(entry jobs.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, formatLogEntry(entry))
}

func (p *linePrinter) SetGaugePercent(percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauge.Percent = percent
	p.printGauge()
}

func (p *linePrinter) SetGaugeVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauge.Visible = visible
	if !visible {
		p.printed = -1
		return
	}
	p.printGauge()
}

func (p *linePrinter) printGauge() {
	if !p.gauge.Visible {
		return
	}
	pct := widgets.Clamp(p.gauge.Percent)
	if pct == p.printed {
		return
	}
	p.printed = pct
	_, _ = fmt.Fprintf(p.w, "[batch] %s\n", renderGauge(p.gauge))
}

func renderGauge(g jobs.Gauge) string {
	return widgets.NewProgressBar(g.Percent).WithWidth(gaugeWidth).Render()
}

func formatLogEntry(e jobs.LogEntry) string {
	return fmt.Sprintf("%s %s %-7s %s",
		e.At.Format("15:04:05"),
		styles.LogLevelIcon(e.Level),
		strings.ToUpper(string(e.Level)),
		e.Text)
}

func formatFeedback(kind jobs.Kind, fb jobs.Feedback) string {
	return fmt.Sprintf("[%s] %s %s", kind, styles.OutcomeIcon(fb.Outcome), fb.Text)
}
