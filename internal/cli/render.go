package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pilotdeck/pilotdeck/internal/chat"
	"github.com/pilotdeck/pilotdeck/internal/notify"
	"github.com/pilotdeck/pilotdeck/internal/progress"
	"github.com/pilotdeck/pilotdeck/internal/stream"
)

var (
	stateStyles = map[stream.State]lipgloss.Style{
		stream.StateDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		stream.StateConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		stream.StateConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		stream.StateError:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}

	levelStyles = map[notify.Level]lipgloss.Style{
		notify.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		notify.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		notify.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		notify.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}

	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	serverStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

const progressBarWidth = 20

// printer serializes output from event listeners running on the stream's
// reader goroutine and the command's own goroutine.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	markdown *glamour.TermRenderer
}

// newPrinter creates a printer. Markdown rendering is only enabled for
// terminals so piped output stays plain.
func newPrinter(out io.Writer, markdown bool) *printer {
	p := &printer{out: out}
	if markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			p.markdown = r
		}
	}
	return p
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, s)
}

func (p *printer) state(s stream.State) {
	style, ok := stateStyles[s]
	if !ok {
		style = hintStyle
	}
	p.println(hintStyle.Render("stream ") + style.Render(s.String()))
}

func (p *printer) streamError(err error) {
	p.println(errorStyle.Render("stream error: ") + err.Error())
}

func (p *printer) progress(pr progress.Progress) {
	p.println(formatProgress(pr))
}

func (p *printer) notification(n notify.SystemMessage) {
	style, ok := levelStyles[n.Type]
	if !ok {
		style = hintStyle
	}
	p.println(style.Render(fmt.Sprintf("[%s] %s", n.Type, n.Title)) + " " + n.Content)
}

func (p *printer) message(m chat.Message) {
	p.println(formatMessage(m, p.renderMarkdown))
}

func (p *printer) errorf(format string, args ...any) {
	p.println(errorStyle.Render("error: ") + fmt.Sprintf(format, args...))
}

func (p *printer) hint(s string) {
	p.println(hintStyle.Render(s))
}

func (p *printer) renderMarkdown(s string) string {
	if p.markdown == nil {
		return s
	}
	out, err := p.markdown.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

func formatProgress(pr progress.Progress) string {
	pct := pr.Progress
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * progressBarWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)

	hash := pr.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}

	line := fmt.Sprintf("%s [%s] %5.1f%%", hash, bar, pr.Progress)
	if pr.Speed > 0 {
		line += " " + formatBytes(pr.Speed) + "/s"
	}
	if pr.ETA > 0 {
		line += fmt.Sprintf(" eta %ds", int64(pr.ETA))
	}
	if pr.Status != "" {
		line += " " + hintStyle.Render(pr.Status)
	}
	return line
}

func formatBytes(n float64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}
	i := 0
	for n >= 1024 && i < len(units)-1 {
		n /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", n, units[i])
	}
	return fmt.Sprintf("%.1f %s", n, units[i])
}

func formatMessage(m chat.Message, render func(string) string) string {
	var b strings.Builder
	if m.IsFromUser {
		b.WriteString(userStyle.Render("you"))
	} else {
		b.WriteString(serverStyle.Render("pilot"))
	}
	b.WriteString(hintStyle.Render(fmt.Sprintf(" #%s", m.ID)))
	b.WriteString("\n")
	b.WriteString(render(m.Content))

	for _, a := range m.Attachments {
		title := a.Title
		if title == "" {
			title = string(a.Type)
		}
		fmt.Fprintf(&b, "\n  %s %s", hintStyle.Render(title), a.URL)
	}
	if len(m.Buttons) > 0 {
		labels := make([]string, 0, len(m.Buttons))
		for _, btn := range m.Buttons {
			labels = append(labels, fmt.Sprintf("[%s → %s]", btn.Text, btn.Action))
		}
		b.WriteString("\n  " + hintStyle.Render(strings.Join(labels, " ")))
	}
	return b.String()
}
