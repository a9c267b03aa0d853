package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/killallgit/loom/pkg/conversation"
	"github.com/killallgit/loom/pkg/events"
	"github.com/killallgit/loom/pkg/logger"
)

// Options controls transcript rendering
type Options struct {
	Theme          string // Chroma style name for code highlighting
	Width          int
	Color          bool
	ShowTimestamps bool
	ShowReasoning  bool
}

// DefaultOptions returns the standard transcript rendering configuration
func DefaultOptions() Options {
	return Options{
		Theme:          "monokai",
		Width:          80,
		Color:          true,
		ShowTimestamps: true,
		ShowReasoning:  true,
	}
}

// Renderer turns merged conversation items into a terminal transcript
type Renderer struct {
	opts Options

	userStyle      lipgloss.Style
	assistantStyle lipgloss.Style
	thinkingStyle  lipgloss.Style
	toolStyle      lipgloss.Style
	errorStyle     lipgloss.Style
	metaStyle      lipgloss.Style
	badgeStyle     lipgloss.Style
}

// NewRenderer creates a renderer with terminal-friendly styling
func NewRenderer(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 80
	}

	return &Renderer{
		opts: opts,

		userStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98")), // Pale green

		assistantStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB")), // Sky blue

		// Reasoning summaries render dim and italic, visually secondary
		thinkingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true),

		toolStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700")), // Gold

		errorStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6347")), // Tomato

		metaStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")),

		badgeStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6347")),
	}
}

// Render produces the full transcript, one block per item separated by
// blank lines.
func (r *Renderer) Render(items []conversation.ConversationItem) string {
	log := logger.WithComponent("transcript")
	log.Debug("Rendering transcript", "items", len(items))

	var blocks []string
	for _, item := range items {
		if block := r.RenderItem(item); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// RenderItem produces one transcript block. Reasoning items return empty
// when reasoning display is disabled.
func (r *Renderer) RenderItem(item conversation.ConversationItem) string {
	switch item.Type {
	case events.ItemMessage:
		return r.renderMessage(item)
	case events.ItemReasoning:
		if !r.opts.ShowReasoning {
			return ""
		}
		return r.renderReasoning(item)
	case events.ItemToolCall:
		return r.renderToolCall(item)
	case events.ItemToolList:
		return r.renderToolList(item)
	case events.ItemApprovalRequest:
		return r.renderApproval(item)
	case events.ItemWebSearch:
		return r.renderWebSearch(item)
	case events.ItemError:
		return r.renderError(item)
	case events.ItemStatusPlaceholder:
		return r.styled(r.metaStyle, item.PrimaryText())
	}
	return ""
}

func (r *Renderer) renderMessage(item conversation.ConversationItem) string {
	style := r.assistantStyle
	if item.Message != nil && item.Message.Role == conversation.RoleUser {
		style = r.userStyle
	}

	role := conversation.RoleAssistant
	if item.Message != nil && item.Message.Role != "" {
		role = item.Message.Role
	}

	header := r.header(r.styled(style, role), item)
	body := r.HighlightText(item.PrimaryText())
	return joinBlock(header, indent(body))
}

func (r *Renderer) renderReasoning(item conversation.ConversationItem) string {
	header := r.header(r.styled(r.thinkingStyle, "thinking"), item)
	body := r.styled(r.thinkingStyle, item.PrimaryText())
	return joinBlock(header, indent(body))
}

func (r *Renderer) renderToolCall(item conversation.ConversationItem) string {
	label := "tool"
	if item.ToolCall != nil && item.ToolCall.Name != "" {
		label = "tool " + item.ToolCall.Name
		if item.ToolCall.ServerLabel != "" {
			label += " @ " + item.ToolCall.ServerLabel
		}
	}

	header := r.header(r.styled(r.toolStyle, label), item)

	var lines []string
	if item.ToolCall != nil {
		if item.ToolCall.Arguments != "" {
			lines = append(lines, "args: "+r.HighlightCode(item.ToolCall.Arguments, "json"))
		}
		if item.ToolCall.Output != "" {
			lines = append(lines, "output: "+item.ToolCall.Output)
		}
	}
	if item.Error != nil && item.Error.Message != "" {
		lines = append(lines, r.styled(r.errorStyle, item.Error.Message))
	}
	return joinBlock(header, indent(strings.Join(lines, "\n")))
}

func (r *Renderer) renderToolList(item conversation.ConversationItem) string {
	label := "tools"
	if item.ToolList != nil && item.ToolList.ServerLabel != "" {
		label = "tools @ " + item.ToolList.ServerLabel
	}

	header := r.header(r.styled(r.toolStyle, label), item)

	var lines []string
	if item.ToolList != nil {
		for _, tool := range item.ToolList.Tools {
			lines = append(lines, "- "+tool)
		}
	}
	return joinBlock(header, indent(strings.Join(lines, "\n")))
}

func (r *Renderer) renderApproval(item conversation.ConversationItem) string {
	label := "approval"
	if item.Approval != nil && item.Approval.Name != "" {
		label = "approval " + item.Approval.Name
	}

	header := r.header(r.styled(r.toolStyle, label), item)

	var lines []string
	if item.Approval != nil && item.Approval.Arguments != "" {
		lines = append(lines, "args: "+r.HighlightCode(item.Approval.Arguments, "json"))
	}
	if item.Status != "" {
		lines = append(lines, "decision: "+string(item.Status))
	}
	return joinBlock(header, indent(strings.Join(lines, "\n")))
}

func (r *Renderer) renderWebSearch(item conversation.ConversationItem) string {
	header := r.header(r.styled(r.toolStyle, "web search"), item)
	query := ""
	if item.WebSearch != nil {
		query = item.WebSearch.Query
	}
	return joinBlock(header, indent(query))
}

func (r *Renderer) renderError(item conversation.ConversationItem) string {
	label := "error"
	if item.Error != nil {
		if item.Error.Source != "" {
			label += " " + item.Error.Source
		}
		if item.Error.Code != "" {
			label += "/" + item.Error.Code
		}
	}

	header := r.styled(r.errorStyle, label)
	message := ""
	if item.Error != nil {
		message = item.Error.Message
	}
	return joinBlock(header, indent(r.styled(r.errorStyle, message)))
}

// header assembles the block's first line: styled label, optional clock
// time, duration and state markers.
func (r *Renderer) header(label string, item conversation.ConversationItem) string {
	parts := []string{label}

	if r.opts.ShowTimestamps && item.Timestamp != "" {
		parts = append(parts, r.styled(r.metaStyle, clockTime(item.Timestamp)))
	}
	if item.DurationSeconds != nil {
		parts = append(parts, r.styled(r.metaStyle, fmt.Sprintf("(%ds)", *item.DurationSeconds)))
	}
	if item.IsStreaming {
		parts = append(parts, r.styled(r.metaStyle, "..."))
	}
	if item.Status == conversation.StatusFailed && item.Type != events.ItemError {
		parts = append(parts, r.styled(r.badgeStyle, "[failed]"))
	}

	return strings.Join(parts, " ")
}

// styled applies a lipgloss style, or returns plain text when color
// output is disabled.
func (r *Renderer) styled(style lipgloss.Style, text string) string {
	if !r.opts.Color {
		return text
	}
	return style.Render(text)
}

// clockTime reduces an RFC3339 timestamp to its clock component for the
// header line. Unparseable values pass through as-is.
func clockTime(ts string) string {
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return parsed.Format("15:04:05")
}

func indent(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

func joinBlock(header, body string) string {
	if body == "" {
		return header
	}
	return header + "\n" + body
}
