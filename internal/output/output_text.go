package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tkjaer/gtping/internal/shared"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// TextOutput prints ping style statistics for every target once all
// sessions are done
type TextOutput struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewTextOutput writes to w, styling headers when color is set
func NewTextOutput(w io.Writer, color bool) *TextOutput {
	return &TextOutput{w: w, color: color}
}

// NewStdoutTextOutput writes to stdout, styled only when it is a terminal
func NewStdoutTextOutput() *TextOutput {
	return NewTextOutput(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func (t *TextOutput) CompleteTarget(stats shared.Stats) {
	// Printed in input order by Summary
}

func (t *TextOutput) Summary(stats []shared.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range stats {
		fmt.Fprint(t.w, t.format(s))
	}
}

func (t *TextOutput) Close() error { return nil }

func (t *TextOutput) format(s shared.Stats) string {
	header := fmt.Sprintf("--- %s GTP ping statistics ---", targetName(s))
	if t.color {
		header = headerStyle.Render(header)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(header)
	b.WriteString("\n")

	if s.Failed() {
		line := "error: " + s.Error
		if t.color {
			line = errorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d packets transmitted, %d received, %.2f%% packet loss, time %.0fms\n",
		s.Sent, s.Received, s.LossPct, s.DurationMs)
	fmt.Fprintf(&b, "%d dups, %d connection refused, %d timed out\n",
		s.Duplicates, s.Refused, s.TimedOut)
	// Like ping, no rtt line without a single sample
	if s.Samples > 0 {
		fmt.Fprintf(&b, "rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n",
			s.Min, s.Avg, s.Max, s.Mdev)
	}
	return b.String()
}

// FormatStats renders s without styling
func FormatStats(s shared.Stats) string {
	return (&TextOutput{}).format(s)
}

func targetName(s shared.Stats) string {
	if s.TargetPTR != "" {
		return fmt.Sprintf("%s (%s)", s.TargetPTR, s.Target)
	}
	return s.Target
}
