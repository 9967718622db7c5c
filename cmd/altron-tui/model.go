package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"altron/internal/backend"
	"altron/internal/chat"
	"altron/internal/liveness"
)

const (
	defaultTitle     = "Altron Agentic System"
	timelineMaxLines = 40
	timelineMaxChars = 4000
	logMaxLines      = 50
)

type modelSource interface {
	FetchModels(ctx context.Context, q backend.ModelQuery) []backend.Model
}

type healthSource interface {
	Status() liveness.Status
	Updates() <-chan liveness.Status
}

// deps are the collaborators the UI needs. Every field except logger and
// the display settings is required.
type deps struct {
	ctx       context.Context
	submitter *chat.Submitter
	models    modelSource
	health    healthSource
	logger    *zap.Logger

	title     string
	query     backend.ModelQuery
	preferred string
}

type missingElementError struct {
	name string
}

func (e missingElementError) Error() string {
	return fmt.Sprintf("required element %q not found", e.name)
}

type model struct {
	ctx       context.Context
	submitter *chat.Submitter
	thread    *chat.Thread
	source    modelSource
	health    healthSource
	logger    *zap.Logger

	title     string
	query     backend.ModelQuery
	preferred string

	models        []backend.Model
	modelIndex    int
	modelsLoading bool
	status        liveness.Status
	inflight      bool
	statusLine    string
	logs          []string

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	sidebar  viewport.Model
	spinner  spinner.Model

	theme uiTheme
}

type healthMsg liveness.Status

type healthClosedMsg struct{}

type modelsMsg struct {
	models []backend.Model
}

type replyMsg struct {
	reply chat.Message
	err   error
}

func newModel(d deps) (model, error) {
	if d.submitter == nil {
		return model{}, missingElementError{name: "submitter"}
	}
	if d.submitter.Thread() == nil {
		return model{}, missingElementError{name: "message thread"}
	}
	if d.models == nil {
		return model{}, missingElementError{name: "model selector"}
	}
	if d.health == nil {
		return model{}, missingElementError{name: "connection indicator"}
	}
	if d.ctx == nil {
		d.ctx = context.Background()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Type here..."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4
	sidebar := viewport.New(0, 0)

	return model{
		ctx:           d.ctx,
		submitter:     d.submitter,
		thread:        d.submitter.Thread(),
		source:        d.models,
		health:        d.health,
		logger:        d.logger,
		title:         nullCoalesce(d.title, defaultTitle),
		query:         d.query,
		preferred:     strings.TrimSpace(d.preferred),
		models:        []backend.Model{},
		modelsLoading: true,
		status:        d.health.Status(),
		statusLine:    "starting...",
		logs:          []string{},
		input:         input,
		timeline:      timeline,
		sidebar:       sidebar,
		spinner:       sp,
		theme:         newTheme(),
	}, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		waitHealth(m.health.Updates()),
		m.fetchModelsCmd(),
	)
}

func waitHealth(ch <-chan liveness.Status) tea.Cmd {
	return func() tea.Msg {
		status, ok := <-ch
		if !ok {
			return healthClosedMsg{}
		}
		return healthMsg(status)
	}
}

func (m model) fetchModelsCmd() tea.Cmd {
	ctx := m.ctx
	source := m.source
	query := m.query
	return func() tea.Msg {
		return modelsMsg{models: source.FetchModels(ctx, query)}
	}
}

// submit records raw as a user message and, when a responder is
// configured, returns the command that produces the reply. The thread is
// only mutated here and in the replyMsg branch of Update.
func (m *model) submit(raw string) tea.Cmd {
	if m.inflight {
		m.statusLine = "waiting for the previous reply..."
		return nil
	}
	msg, ok := m.submitter.Accept(raw)
	if !ok {
		m.appendLog("warning: input field is empty")
		m.statusLine = "nothing to send"
		return nil
	}
	m.statusLine = fmt.Sprintf("sent · %d messages", m.thread.Len())
	m.renderPanes()

	responder := m.submitter.Responder()
	if responder == nil {
		return nil
	}
	m.inflight = true
	ctx := m.ctx
	req := chat.ReplyRequest{Thread: m.thread.Snapshot(), Model: m.selectedModelID()}
	logger := m.logger
	userID := msg.ID
	return func() tea.Msg {
		start := time.Now()
		reply, err := chat.Respond(ctx, responder, req)
		logger.Debug("reply finished",
			zap.String("reply_to", userID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *model) selectedModel() (backend.Model, bool) {
	if len(m.models) == 0 {
		return backend.Model{}, false
	}
	return m.models[clampInt(m.modelIndex, 0, len(m.models)-1)], true
}

func (m *model) selectedModelID() string {
	if sel, ok := m.selectedModel(); ok {
		return sel.ID
	}
	return m.preferred
}

// applyModels installs a fresh model list, keeping the current pick when
// it is still offered and otherwise preferring the configured model.
func (m *model) applyModels(models []backend.Model) {
	current := ""
	if sel, ok := m.selectedModel(); ok {
		current = sel.ID
	}
	m.models = models
	m.modelIndex = 0
	for _, want := range []string{current, m.preferred} {
		if want == "" {
			continue
		}
		for i, candidate := range models {
			if candidate.ID == want || candidate.Alias == want {
				m.modelIndex = i
				return
			}
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case healthMsg:
		m.status = liveness.Status(msg)
		cmds = append(cmds, waitHealth(m.health.Updates()))
	case healthClosedMsg:
		m.appendLog("health monitor stopped")
	case modelsMsg:
		m.modelsLoading = false
		m.applyModels(msg.models)
		if len(m.models) == 0 {
			m.appendLog("no models available")
			m.statusLine = "no models"
		} else {
			sel, _ := m.selectedModel()
			m.statusLine = fmt.Sprintf("ready · %d models · using %s", len(m.models), sel.Label())
		}
		m.renderPanes()
	case replyMsg:
		m.inflight = false
		if msg.err != nil {
			m.logError(msg.err)
			break
		}
		m.submitter.AppendReply(msg.reply)
		m.statusLine = fmt.Sprintf("reply received · %d messages", m.thread.Len())
		m.renderPanes()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.inflight {
				// Keep the draft until the pending reply lands.
				m.statusLine = "waiting for the previous reply..."
				return m, nil
			}
			raw := m.input.Value()
			m.input.Reset()
			if cmd := m.submit(raw); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		case "ctrl+n":
			m.cycleModel(1)
			return m, nil
		case "ctrl+p":
			m.cycleModel(-1)
			return m, nil
		case "ctrl+r":
			if !m.modelsLoading {
				m.modelsLoading = true
				m.statusLine = "refreshing models..."
				m.renderPanes()
				cmds = append(cmds, m.fetchModelsCmd())
			}
			return m, tea.Batch(cmds...)
		case "pgup", "ctrl+b":
			m.timeline.LineUp(8)
			return m, nil
		case "pgdown", "ctrl+f":
			m.timeline.LineDown(8)
			return m, nil
		case "home":
			m.timeline.GotoTop()
			return m, nil
		case "end":
			m.timeline.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) cycleModel(delta int) {
	if len(m.models) == 0 {
		m.statusLine = "no models"
		return
	}
	m.modelIndex = cycleIndex(len(m.models), m.modelIndex, delta)
	sel, _ := m.selectedModel()
	m.statusLine = "model: " + sel.Label()
	m.logger.Info("model selected", zap.String("model", sel.ID), zap.String("provider", sel.Provider))
	m.renderPanes()
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > logMaxLines {
		m.logs = m.logs[len(m.logs)-logMaxLines:]
	}
	m.renderPanes()
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.logger.Error("ui error", zap.Error(err))
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
	m.appendLog("error: " + err.Error())
}
