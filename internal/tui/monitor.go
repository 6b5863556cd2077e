// Package tui is the terminal monitor: a live view of agents, their task
// queue, and the streamed output of the currently selected agent.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crewhub/internal/liveout"
	"crewhub/internal/store"
)

// OutputProvider yields the live output record for an agent. The in-process
// monitor reads the coordinator's buffer directly; a remote monitor can plug
// in an HTTP-backed implementation.
type OutputProvider interface {
	LiveOutput(agentID string) *liveout.Record
}

const refreshInterval = 2 * time.Second

// Model is the monitor TUI model.
type Model struct {
	store     *store.Store
	provider  OutputProvider
	projectID string

	agents   []*store.Agent
	tasks    []*store.Task
	cursor   int
	viewport viewport.Model
	width    int
	height   int
	err      string
}

// refreshMsg carries the latest snapshot from the store.
type refreshMsg struct {
	agents []*store.Agent
	tasks  []*store.Task
	err    error
}

// tickMsg triggers the periodic refresh.
type tickMsg struct{}

// NewModel builds the monitor for one project.
func NewModel(s *store.Store, provider OutputProvider, projectID string) Model {
	vp := viewport.New(80, 20)
	return Model{store: s, provider: provider, projectID: projectID, viewport: vp}
}

// Run starts the monitor loop and blocks until the user quits.
func Run(s *store.Store, provider OutputProvider, projectID string) error {
	_, err := tea.NewProgram(NewModel(s, provider, projectID), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()

		agents, err := m.store.ListAgents(ctx, m.projectID)
		if err != nil {
			return refreshMsg{err: err}
		}
		tasks, err := m.store.ListTasks(ctx, store.TaskFilter{ProjectID: m.projectID})
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{agents: agents, tasks: tasks}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(20, msg.Width-36)
		m.viewport.Height = max(5, msg.Height-8)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.agents = msg.agents
		m.tasks = msg.tasks
		if m.cursor >= len(m.agents) {
			m.cursor = max(0, len(m.agents)-1)
		}
		m.updateOutput()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.updateOutput()
			}
		case "down", "j":
			if m.cursor < len(m.agents)-1 {
				m.cursor++
				m.updateOutput()
			}
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// updateOutput loads the selected agent's live output into the viewport,
// keeping it pinned to the bottom so new chunks stay visible.
func (m *Model) updateOutput() {
	if m.provider == nil || len(m.agents) == 0 {
		m.viewport.SetContent("")
		return
	}
	rec := m.provider.LiveOutput(m.agents[m.cursor].ID)
	if rec == nil {
		m.viewport.SetContent("(no output yet)")
		return
	}

	content := rec.Output
	if rec.Error != "" {
		content += "\n" + statusErrorStyle.Render("error: "+rec.Error)
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(content)
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	title := titleStyle.Render(fmt.Sprintf("crewhub monitor — project %s", m.projectID))

	left := m.renderAgents()
	right := outputBorderStyle.Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)

	help := helpStyle.Render("↑/↓ select agent · g/G scroll · q quit")
	if m.err != "" {
		help = statusErrorStyle.Render(m.err)
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, help))
}

func (m Model) renderAgents() string {
	var b strings.Builder
	b.WriteString("Agents\n\n")

	if len(m.agents) == 0 {
		b.WriteString(statusOfflineStyle.Render("(none)"))
	}
	for i, agent := range m.agents {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, styleForAgent(agent.Status).Render("●"), agent.Name)
		fmt.Fprintf(&b, "    %s · %s\n", agent.Role, agent.Status)
	}

	b.WriteString("\nTasks\n\n")
	counts := map[store.TaskStatus]int{}
	for _, task := range m.tasks {
		counts[task.Status]++
	}
	for _, status := range []store.TaskStatus{
		store.TaskPending, store.TaskInProgress, store.TaskBlocked, store.TaskReview, store.TaskCompleted,
	} {
		fmt.Fprintf(&b, "  %-12s %d\n", status, counts[status])
	}

	return lipgloss.NewStyle().Width(30).Render(b.String())
}

func styleForAgent(status store.AgentStatus) lipgloss.Style {
	switch status {
	case store.AgentWorking:
		return statusWorkingStyle
	case store.AgentIdle:
		return statusIdleStyle
	case store.AgentOffline:
		return statusOfflineStyle
	default:
		return statusErrorStyle
	}
}
