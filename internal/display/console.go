package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleSink renders captions to a terminal. Interim captions overwrite
// themselves in place on one line; finals, translations, and lifecycle
// events each take a full line.
type ConsoleSink struct {
	mu          sync.Mutex
	out         io.Writer
	interimOpen bool

	interimStyle     lipgloss.Style
	finalStyle       lipgloss.Style
	translationStyle lipgloss.Style
	lifecycleStyle   lipgloss.Style
}

// NewConsoleSink writes styled captions to out. With color disabled all
// styles render as plain text.
func NewConsoleSink(out io.Writer, color bool) *ConsoleSink {
	s := &ConsoleSink{out: out}
	if color {
		s.interimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
		s.finalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		s.translationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true)
		s.lifecycleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	} else {
		plain := lipgloss.NewStyle()
		s.interimStyle = plain
		s.finalStyle = plain
		s.translationStyle = plain
		s.lifecycleStyle = plain
	}
	return s
}

// Publish implements Sink
func (s *ConsoleSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := formatOffset(ev.CorrectedTime)
	switch ev.Kind {
	case KindInterim:
		line := s.interimStyle.Render(fmt.Sprintf("%s  %s", stamp, ev.Text))
		fmt.Fprintf(s.out, "\r\033[K%s", line)
		s.interimOpen = true
	case KindFinal:
		line := s.finalStyle.Render(fmt.Sprintf("%s  %s", stamp, ev.Text))
		fmt.Fprintf(s.out, "\r\033[K%s\n", line)
		s.interimOpen = false
	case KindTranslation:
		line := s.translationStyle.Render(fmt.Sprintf("%s  %s", stamp, ev.Text))
		fmt.Fprintf(s.out, "\r\033[K%s\n", line)
		s.interimOpen = false
	case KindLifecycle:
		if s.interimOpen {
			fmt.Fprint(s.out, "\n")
			s.interimOpen = false
		}
		line := s.lifecycleStyle.Render(fmt.Sprintf("%s  %s", stamp, strings.ToUpper(ev.Text)))
		fmt.Fprintf(s.out, "%s\n", line)
	}
}

// formatOffset renders a corrected offset as mm:ss.cc
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins)*60
	return fmt.Sprintf("%02d:%05.2f", mins, secs)
}
