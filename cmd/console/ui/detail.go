package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/dto"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type AgentDetailModel struct {
	Session *Session
	AgentID string
	Width   int
	Height  int

	Commands    table.Model
	CommandRows []dto.CommandResponse
	Stats       *dto.CommandStatsResponse
	ActivityLog viewport.Model
	LogContent  string

	CommandForm *CommandFormModel
	ShowForm    bool

	Err error
}

type detailLoadedMsg struct {
	Commands   *dto.CommandListResponse
	Stats      *dto.CommandStatsResponse
	Activities []dto.ActivityResponse
}

type actionDoneMsg struct {
	Log string
}

func NewAgentDetailModel(s *Session, agentID string, width, height int) AgentDetailModel {
	columns := []table.Column{
		{Title: "Command ID", Width: 38},
		{Title: "Type", Width: 14},
		{Title: "Status", Width: 10},
		{Title: "Prio", Width: 5},
		{Title: "Prog", Width: 5},
		{Title: "Retry", Width: 6},
		{Title: "Created", Width: 20},
	}
	if height < 16 {
		height = 16
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height-14),
	)
	sT := table.DefaultStyles()
	sT.Header = sT.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	sT.Selected = sT.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(sT)

	vp := viewport.New(60, 8)
	vp.Style = lipgloss.NewStyle().PaddingLeft(1)

	return AgentDetailModel{
		Session:     s,
		AgentID:     agentID,
		Width:       width,
		Height:      height,
		Commands:    t,
		ActivityLog: vp,
	}
}

func (m AgentDetailModel) Init() tea.Cmd {
	return m.fetchAll
}

func (m AgentDetailModel) fetchAll() tea.Msg {
	cmds, err := m.Session.ListCommands(m.AgentID, 50)
	if err != nil {
		return errMsg(err)
	}
	stats, err := m.Session.CommandStats(m.AgentID)
	if err != nil {
		return errMsg(err)
	}
	acts, err := m.Session.RecentActivities(m.AgentID, 20)
	if err != nil {
		return errMsg(err)
	}
	return detailLoadedMsg{Commands: cmds, Stats: stats, Activities: acts}
}

func (m AgentDetailModel) Update(msg tea.Msg) (AgentDetailModel, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	if m.ShowForm && m.CommandForm != nil {
		switch msg := msg.(type) {
		case FormClosedMsg:
			m.ShowForm = false
			return m, m.fetchAll
		case actionDoneMsg:
			m.ShowForm = false
			m.appendLog(msg.Log)
			return m, m.fetchAll
		case errMsg:
			m.Err = msg
			m.ShowForm = false
			return m, nil
		default:
			*m.CommandForm, cmd = m.CommandForm.Update(msg)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return BackToDashboardMsg{} }
		case "r":
			return m, m.fetchAll
		case "n":
			form := NewCommandFormModel(m.AgentID, m.Session, m.Width/2, m.Height-6)
			m.CommandForm = &form
			m.ShowForm = true
			return m, m.CommandForm.Init()
		case "t":
			if id := m.selectedCommandID(); id != "" {
				return m, m.retryCmd(id)
			}
		case "c":
			if id := m.selectedCommandID(); id != "" {
				return m, m.cancelCmd(id)
			}
		case "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Commands.SetHeight(msg.Height - 14)
		m.ActivityLog.Width = msg.Width - 8
		m.ActivityLog.Height = 8

	case detailLoadedMsg:
		m.Err = nil
		m.Stats = msg.Stats
		m.CommandRows = msg.Commands.Items
		rows := make([]table.Row, 0, len(msg.Commands.Items))
		for _, c := range msg.Commands.Items {
			rows = append(rows, table.Row{
				c.ID, c.Type, c.Status,
				fmt.Sprintf("%d", c.Priority),
				fmt.Sprintf("%d%%", c.Progress),
				fmt.Sprintf("%d/%d", c.RetryCount, c.MaxRetries),
				c.CreatedAt.Format(time.DateTime),
			})
		}
		m.Commands.SetRows(rows)

		var log strings.Builder
		for _, a := range msg.Activities {
			line := fmt.Sprintf("[%s] %s", a.CreatedAt.Format("15:04:05"), a.Action)
			if a.Status != "" {
				line += " (" + a.Status + ")"
			}
			if a.Thought != "" {
				line += ": " + a.Thought
			}
			log.WriteString(line + "\n")
		}
		m.LogContent = log.String()
		m.ActivityLog.SetContent(m.LogContent)

	case actionDoneMsg:
		m.appendLog(msg.Log)
		return m, m.fetchAll

	case errMsg:
		m.Err = msg
	}

	m.Commands, cmd = m.Commands.Update(msg)
	cmds = append(cmds, cmd)
	m.ActivityLog, cmd = m.ActivityLog.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *AgentDetailModel) appendLog(line string) {
	m.LogContent += line + "\n"
	m.ActivityLog.SetContent(m.LogContent)
	m.ActivityLog.GotoBottom()
}

func (m AgentDetailModel) selectedCommandID() string {
	row := m.Commands.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func (m AgentDetailModel) retryCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.Session.RetryCommand(id); err != nil {
			return errMsg(fmt.Errorf("retry: %v", err))
		}
		return actionDoneMsg{Log: "> retry " + id}
	}
}

func (m AgentDetailModel) cancelCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.Session.CancelCommand(id); err != nil {
			return errMsg(fmt.Errorf("cancel: %v", err))
		}
		return actionDoneMsg{Log: "> cancel " + id}
	}
}

func (m AgentDetailModel) View() string {
	if m.ShowForm && m.CommandForm != nil {
		return m.CommandForm.View()
	}

	header := titleStyle.Render("Agent " + m.AgentID)

	var statsLine string
	if m.Stats != nil {
		parts := make([]string, 0, len(m.Stats.StatusCounts)+2)
		parts = append(parts, fmt.Sprintf("queued: %d", m.Stats.QueueDepth))
		for _, st := range []string{"pending", "executing", "success", "error", "timeout", "cancelled"} {
			if n, ok := m.Stats.StatusCounts[st]; ok {
				parts = append(parts, fmt.Sprintf("%s: %d", st, n))
			}
		}
		parts = append(parts, fmt.Sprintf("total: %d", m.Stats.Total))
		statsLine = focusedStyle.Render(strings.Join(parts, "  "))
	}

	activityHeader := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("Recent Activity:")
	help := blurredStyle.Render("n: new command • t: retry • c: cancel • r: refresh • Esc: dashboard • q: quit")

	sections := []string{header, statsLine, m.Commands.View(), activityHeader, m.ActivityLog.View(), help}
	if m.Err != nil {
		sections = append(sections, errorMessageStyle(m.Err.Error()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
