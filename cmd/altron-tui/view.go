package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"altron/internal/chat"
	"altron/internal/liveness"
)

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	helpText    lipgloss.Style
	modelPick   lipgloss.Style
	roles       map[chat.Role]lipgloss.Style
	indicator   map[liveness.Status]lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffd166")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Background(pink).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText:  lipgloss.NewStyle().Foreground(muted),
		modelPick: lipgloss.NewStyle().Foreground(pink).Bold(true),
		roles: map[chat.Role]lipgloss.Style{
			chat.RoleUser:      lipgloss.NewStyle().Foreground(mint).Bold(true),
			chat.RoleAssistant: lipgloss.NewStyle().Foreground(blue).Bold(true),
		},
		indicator: map[liveness.Status]lipgloss.Style{
			liveness.Checking:  lipgloss.NewStyle().Foreground(amber).Bold(true),
			liveness.Healthy:   lipgloss.NewStyle().Foreground(mint).Bold(true),
			liveness.Unhealthy: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4d6d")).Bold(true),
		},
	}
}

func (m model) View() string {
	header := m.renderHeader()
	content := m.renderContent()
	input := m.renderInput()
	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer))
}

func (m *model) renderHeader() string {
	segments := []string{m.theme.title.Render(m.title)}
	modelLabel := "none"
	if sel, ok := m.selectedModel(); ok {
		modelLabel = sel.Label()
	} else if m.modelsLoading {
		modelLabel = "loading..."
	}
	meta := fmt.Sprintf(" Thread: %s · Model: %s", m.thread.ID(), modelLabel)
	segments = append(segments, m.theme.helpText.Render(meta))
	joined := lipgloss.JoinHorizontal(lipgloss.Left, segments...)
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(joined)
}

func (m *model) panelWidths() (left int, right int) {
	contentWidth := maxInt(40, m.width-4)
	left = int(float64(contentWidth) * 0.66)
	right = contentWidth - left - 1
	if right < 28 {
		right = 28
		left = contentWidth - right - 1
	}
	return left, right
}

func (m *model) contentHeight() int {
	return maxInt(8, m.height-12)
}

func (m *model) renderContent() string {
	height := m.contentHeight()
	leftWidth, rightWidth := m.panelWidths()
	left := m.theme.panel.Width(leftWidth).Height(height).Render(
		m.theme.panelTitle.Render("Conversation") + "\n" + m.timeline.View(),
	)
	right := m.theme.panel.Width(rightWidth).Height(height).Render(
		m.theme.panelTitle.Render("Models + Log") + "\n" + m.sidebar.View(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	inputView := m.input.View()
	if m.inflight {
		inputView = m.spinner.View() + " assistant is typing... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

// renderIndicator draws the connection dot and its label.
func (m *model) renderIndicator() string {
	style, ok := m.theme.indicator[m.status]
	if !ok {
		style = m.theme.helpText
	}
	return style.Render("● " + m.status.String())
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		statusStyle = m.theme.errorStatus
	}
	line := m.renderIndicator() + "  " + statusStyle.Render(compactSingleLine(m.statusLine, 160))
	hints := m.theme.helpText.Render("Keys: Enter send · Ctrl+N/Ctrl+P model · Ctrl+R refresh models · PgUp/PgDn scroll · Esc/Ctrl+C quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
}

// renderPanes refreshes viewport contents, keeping the timeline pinned
// to the bottom when it already was.
func (m *model) renderPanes() {
	prevYOffset := m.timeline.YOffset
	prevAtBottom := m.timeline.AtBottom()

	height := m.contentHeight()
	leftWidth, rightWidth := m.panelWidths()
	m.timeline.Width = maxInt(20, leftWidth-4)
	m.timeline.Height = maxInt(5, height-3)
	m.sidebar.Width = maxInt(20, rightWidth-4)
	m.sidebar.Height = maxInt(5, height-3)

	m.timeline.SetContent(m.renderTimeline())
	if prevAtBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevYOffset)
	}
	m.sidebar.SetContent(m.renderSidebar())
}

func (m *model) renderTimeline() string {
	messages := m.thread.Messages()
	if len(messages) == 0 {
		return "No messages yet. Type a message and press Enter."
	}
	var b strings.Builder
	for _, msg := range messages {
		style, ok := m.theme.roles[msg.Role]
		if !ok {
			style = m.theme.helpText
		}
		b.WriteString(style.Render("[" + string(msg.Role) + "]"))
		b.WriteString("\n")
		preview := compactTimelineMessage(msg.Content, timelineMaxLines, timelineMaxChars)
		b.WriteString(wrapText(preview, maxInt(24, m.timeline.Width-2)))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func (m *model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.theme.panelTitle.Render("Models"))
	b.WriteString("\n")
	switch {
	case m.modelsLoading && len(m.models) == 0:
		b.WriteString(m.theme.helpText.Render("loading..."))
		b.WriteString("\n")
	case len(m.models) == 0:
		b.WriteString(m.theme.helpText.Render("no models"))
		b.WriteString("\n")
	default:
		for i, candidate := range m.models {
			line := fmt.Sprintf("%s (%s, %s)", candidate.Label(), candidate.Provider, candidate.Type)
			line = truncate(line, maxInt(10, m.sidebar.Width-2))
			if i == m.modelIndex {
				b.WriteString(m.theme.modelPick.Render("▸ " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.theme.panelTitle.Render("Log"))
	b.WriteString("\n")
	if len(m.logs) == 0 {
		b.WriteString(m.theme.helpText.Render("(empty)"))
	} else {
		b.WriteString(wrapText(strings.Join(m.logs, "\n"), maxInt(20, m.sidebar.Width-2)))
	}
	return b.String()
}
