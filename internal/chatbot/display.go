package chatbot

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"AssistChat/internal/session"
)

// WelcomeMessage greets the user at start and after a reset. It is not
// part of the history.
const WelcomeMessage = "Hello! I'm your AI assistant. How can I help you today?"

// Display is where the chat loop sends what the user should see
type Display interface {
	Show(e session.Entry)
	Notice(text string)
	SetBusy(busy bool)
	Clear()
}

// ConsoleDisplay prints entries line by line
type ConsoleDisplay struct {
	out       io.Writer
	timestamp *color.Color
	user      *color.Color
	assistant *color.Color
	errc      *color.Color
	notice    *color.Color
}

// NewConsoleDisplay writes to out, colored unless disabled
func NewConsoleDisplay(out io.Writer, colored bool) *ConsoleDisplay {
	d := &ConsoleDisplay{
		out:       out,
		timestamp: color.New(color.Faint),
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgWhite),
		errc:      color.New(color.FgRed),
		notice:    color.New(color.FgYellow, color.Italic),
	}
	for _, c := range []*color.Color{d.timestamp, d.user, d.assistant, d.errc, d.notice} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return d
}

// Show prints one entry with its speaker
func (d *ConsoleDisplay) Show(e session.Entry) {
	header := e.Speaker + ":"
	if !e.Timestamp.IsZero() {
		header = fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04"), header)
	}
	d.timestamp.Fprintln(d.out, header)

	body := strings.TrimSpace(e.Content)
	switch e.Role {
	case session.RoleUser:
		d.user.Fprintln(d.out, body)
	case session.RoleError:
		d.errc.Fprintln(d.out, body)
	default:
		d.assistant.Fprintln(d.out, body)
	}
	fmt.Fprintln(d.out)
}

// Notice prints a status line
func (d *ConsoleDisplay) Notice(text string) {
	d.notice.Fprintln(d.out, text)
}

// SetBusy prints a thinking indicator when a generation starts
func (d *ConsoleDisplay) SetBusy(busy bool) {
	if busy {
		d.notice.Fprintln(d.out, "Thinking...")
	}
}

// Clear marks the start of a fresh conversation
func (d *ConsoleDisplay) Clear() {
	d.notice.Fprintln(d.out, "--- conversation cleared ---")
	fmt.Fprintln(d.out)
}
