package ui

import (
	"strings"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type DashboardModel struct {
	Session *Session
	Table   table.Model
	Agents  []models.Agent
	Err     error
}

type agentsLoadedMsg struct {
	Agents []models.Agent
}

type AgentSelectedMsg struct {
	AgentID string
}

func NewDashboardModel(s *Session, width, height int) DashboardModel {
	columns := []table.Column{
		{Title: "Agent ID", Width: 38},
		{Title: "Name", Width: 20},
		{Title: "Host", Width: 18},
		{Title: "Enabled", Width: 8},
		{Title: "Last Seen", Width: 20},
	}

	if height < 12 {
		height = 12
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height-10),
	)

	sStyle := table.DefaultStyles()
	sStyle.Header = sStyle.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	sStyle.Selected = sStyle.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(sStyle)

	return DashboardModel{
		Session: s,
		Table:   t,
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return m.fetchAgents
}

func (m DashboardModel) fetchAgents() tea.Msg {
	agents, err := m.Session.ListAgents()
	if err != nil {
		return errMsg(err)
	}
	return agentsLoadedMsg{Agents: agents}
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, m.fetchAgents
		case "enter":
			selected := m.Table.SelectedRow()
			if len(selected) > 0 {
				id := selected[0]
				return m, func() tea.Msg {
					return AgentSelectedMsg{AgentID: id}
				}
			}
		case "q":
			return m, tea.Quit
		}

	case agentsLoadedMsg:
		m.Err = nil
		m.Agents = msg.Agents
		rows := make([]table.Row, 0, len(msg.Agents))
		for _, a := range msg.Agents {
			enabled := "yes"
			if !a.Enabled {
				enabled = "no"
			}
			lastSeen := "never"
			if a.LastSeenAt != nil {
				lastSeen = a.LastSeenAt.Format(time.DateTime)
			}
			rows = append(rows, table.Row{a.ID, a.Name, a.Hostname, enabled, lastSeen})
		}
		m.Table.SetRows(rows)

	case errMsg:
		m.Err = msg
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Dashboard - Registered Agents") + "\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n\n")
	b.WriteString(blurredStyle.Render("Press 'r' to refresh, 'q' to quit, Enter to open, up/down to navigate"))

	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
