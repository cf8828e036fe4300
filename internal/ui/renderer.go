// Package ui renders the message stream to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"claudevoice/internal/claude"
)

const defaultWidth = 80

var (
	toolPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
	toolTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	errorPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("1")).
			Foreground(lipgloss.Color("1")).
			Padding(0, 1)
	bannerStyle   = lipgloss.NewStyle().Faint(true)
	costStyle     = lipgloss.NewStyle().Faint(true)
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	commandStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Renderer displays decoded messages. Finalize flushes any buffered
// assistant text, e.g. when a response is interrupted mid-stream.
type Renderer interface {
	Render(msg claude.Message)
	Finalize()
}

// VisualRenderer writes styled panels and wrapped assistant text to a
// terminal. Assistant text chunks are buffered and flushed as a block once
// the stream moves on to a non-text message.
type VisualRenderer struct {
	out          io.Writer
	width        int
	showThinking bool

	buffer   strings.Builder
	buffered bool
}

type RendererOption func(*VisualRenderer)

// WithShowThinking also displays the model's thinking text, dimmed.
func WithShowThinking() RendererOption {
	return func(r *VisualRenderer) { r.showThinking = true }
}

// WithWidth fixes the wrap width instead of querying the terminal.
func WithWidth(width int) RendererOption {
	return func(r *VisualRenderer) { r.width = width }
}

func WithOutput(out io.Writer) RendererOption {
	return func(r *VisualRenderer) { r.out = out }
}

func NewVisualRenderer(opts ...RendererOption) *VisualRenderer {
	r := &VisualRenderer{out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	if r.width == 0 {
		r.width = terminalWidth()
	}
	return r
}

func terminalWidth() int {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

func (r *VisualRenderer) Render(msg claude.Message) {
	if r.buffered && msg.Kind != claude.KindTextChunk {
		r.flushText()
	}

	switch msg.Kind {
	case claude.KindSessionInit:
		if msg.SessionID != "" {
			fmt.Fprintln(r.out, bannerStyle.Render("Session: "+msg.SessionID))
		}

	case claude.KindTextChunk:
		r.buffer.WriteString(msg.Text)
		r.buffered = true

	case claude.KindToolStart:
		fmt.Fprintln(r.out, r.toolPanel(msg))

	case claude.KindError:
		fmt.Fprintln(r.out, r.errorPanel(msg.Text))

	case claude.KindResult:
		if footer := costFooter(msg); footer != "" {
			fmt.Fprintln(r.out, costStyle.Render(footer))
		}

	case claude.KindThinking:
		if r.showThinking {
			fmt.Fprintln(r.out, thinkingStyle.Render(wordwrap.String(msg.Text, r.width)))
		}
	}
}

func (r *VisualRenderer) Finalize() {
	if r.buffered {
		r.flushText()
	}
}

func (r *VisualRenderer) flushText() {
	text := strings.TrimRight(r.buffer.String(), "\n")
	r.buffer.Reset()
	r.buffered = false
	if text == "" {
		return
	}
	fmt.Fprintln(r.out, wordwrap.String(text, r.width))
}

func (r *VisualRenderer) toolPanel(msg claude.Message) string {
	title := msg.ToolName
	if title == "" {
		title = "Tool"
	}

	body := msg.Text
	if msg.ToolName == "Bash" {
		if command := bashCommand(msg.Raw); command != "" {
			body = commandStyle.Render(command)
		}
	}

	panel := toolTitleStyle.Render(title) + "\n" + body
	return toolPanelStyle.Width(min(r.width-2, lipgloss.Width(panel)+2)).Render(panel)
}

func (r *VisualRenderer) errorPanel(text string) string {
	panel := "Error\n" + text
	return errorPanelStyle.Width(min(r.width-2, lipgloss.Width(panel)+2)).Render(panel)
}

// bashCommand digs the full command string out of the raw record, since the
// spoken summary truncates it.
func bashCommand(raw map[string]any) string {
	message, _ := raw["message"].(map[string]any)
	content, _ := message["content"].([]any)
	for _, entry := range content {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if block["type"] != "tool_use" || block["name"] != "Bash" {
			continue
		}
		input, _ := block["input"].(map[string]any)
		if command, ok := input["command"].(string); ok {
			return command
		}
	}
	return ""
}

func costFooter(msg claude.Message) string {
	if msg.CostUSD == nil && msg.DurationMS == nil {
		return ""
	}

	var parts []string
	if msg.CostUSD != nil {
		parts = append(parts, fmt.Sprintf("$%.4f", *msg.CostUSD))
	}
	if msg.DurationMS != nil {
		parts = append(parts, fmt.Sprintf("%.1fs", float64(*msg.DurationMS)/1000))
	}
	if msg.IsError {
		parts = append(parts, "(error)")
	}
	return strings.Join(parts, " | ")
}

// NullRenderer is used in pure speech mode.
type NullRenderer struct{}

func (NullRenderer) Render(claude.Message) {}
func (NullRenderer) Finalize()             {}
