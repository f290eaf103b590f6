package ui

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/moonseeker1/agent-manage/backend/app/dto"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type FormState int

const (
	StateSelecting FormState = iota
	StateFilling
)

type cmdItem struct {
	title, desc string
	index       int
}

func (i cmdItem) Title() string       { return i.title }
func (i cmdItem) Description() string { return i.desc }
func (i cmdItem) FilterValue() string { return i.title }

// FormClosedMsg indicates the operator backed out of the form.
type FormClosedMsg struct{}

type CommandFormModel struct {
	AgentID     string
	Session     *Session
	State       FormState
	List        list.Model
	Inputs      []textinput.Model
	Focused     int
	SelectedCmd int
}

type CommandDef struct {
	Name        string
	Description string
	Fields      []FieldDef
}

type FieldDef struct {
	Name        string
	Placeholder string
	Required    bool
	Default     string
}

var availableCommands = []CommandDef{
	{
		Name:        "shell",
		Description: "Execute a shell command on the agent",
		Fields: []FieldDef{
			{Name: "command", Placeholder: "e.g. ls -la", Required: true},
			{Name: "priority", Placeholder: "0-100 (default: 0)", Default: "0"},
			{Name: "timeout", Placeholder: "seconds, 10-3600 (default: 300)", Default: "300"},
		},
	},
	{
		Name:        "collect_logs",
		Description: "Fetch recent logs from the agent",
		Fields: []FieldDef{
			{Name: "lines", Placeholder: "Number of lines (default: 100)", Default: "100"},
			{Name: "priority", Placeholder: "0-100 (default: 0)", Default: "0"},
			{Name: "timeout", Placeholder: "seconds (default: 300)", Default: "300"},
		},
	},
	{
		Name:        "update_config",
		Description: "Push a configuration fragment to the agent",
		Fields: []FieldDef{
			{Name: "config", Placeholder: `JSON, e.g. {"interval":30}`, Required: true},
			{Name: "priority", Placeholder: "0-100 (default: 50)", Default: "50"},
			{Name: "timeout", Placeholder: "seconds (default: 300)", Default: "300"},
		},
	},
	{
		Name:        "restart",
		Description: "Restart the agent process",
		Fields: []FieldDef{
			{Name: "priority", Placeholder: "0-100 (default: 90)", Default: "90"},
			{Name: "timeout", Placeholder: "seconds (default: 60)", Default: "60"},
		},
	},
	{
		Name:        "custom",
		Description: "Arbitrary command type with raw JSON content",
		Fields: []FieldDef{
			{Name: "type", Placeholder: "Command type", Required: true},
			{Name: "content", Placeholder: "Raw JSON content", Default: "{}"},
			{Name: "priority", Placeholder: "0-100 (default: 0)", Default: "0"},
			{Name: "timeout", Placeholder: "seconds (default: 300)", Default: "300"},
		},
	},
}

func NewCommandFormModel(agentID string, session *Session, width, height int) CommandFormModel {
	items := []list.Item{}
	for i, cmd := range availableCommands {
		items = append(items, cmdItem{title: cmd.Name, desc: cmd.Description, index: i})
	}

	if width < 40 {
		width = 40
	}
	if height < 10 {
		height = 10
	}
	delegate := list.NewDefaultDelegate()
	l := list.New(items, delegate, width, height)
	l.Title = "New Command"
	l.SetShowHelp(false)

	return CommandFormModel{
		AgentID: agentID,
		Session: session,
		State:   StateSelecting,
		List:    l,
	}
}

func (m *CommandFormModel) initInputs() {
	if m.SelectedCmd < 0 || m.SelectedCmd >= len(availableCommands) {
		m.SelectedCmd = 0
	}
	cmd := availableCommands[m.SelectedCmd]
	m.Inputs = make([]textinput.Model, len(cmd.Fields))
	for i, field := range cmd.Fields {
		ti := textinput.New()
		ti.Placeholder = field.Placeholder
		ti.CharLimit = 512
		if field.Default != "" {
			ti.SetValue(field.Default)
		}
		if i == 0 {
			ti.Focus()
		}
		m.Inputs[i] = ti
	}
	m.Focused = 0
}

func (m CommandFormModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m CommandFormModel) Update(msg tea.Msg) (CommandFormModel, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	if m.State == StateSelecting {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "esc":
				return m, func() tea.Msg { return FormClosedMsg{} }
			case "enter":
				if i, ok := m.List.SelectedItem().(cmdItem); ok {
					m.SelectedCmd = i.index
					m.State = StateFilling
					m.initInputs()
					return m, textinput.Blink
				}
			case "up", "k":
				m.List.CursorUp()
				return m, nil
			case "down", "j":
				m.List.CursorDown()
				return m, nil
			}
		case tea.WindowSizeMsg:
			m.List.SetWidth(msg.Width)
			m.List.SetHeight(msg.Height)
		}
		m.List, cmd = m.List.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "esc":
				m.State = StateSelecting
				return m, nil
			case "enter":
				if m.Focused == len(m.Inputs) {
					return m, m.submitCommand()
				} else if m.Focused == len(m.Inputs)+1 {
					m.State = StateSelecting
					return m, nil
				}
				m.Focused++
				if m.Focused > len(m.Inputs)+1 {
					m.Focused = 0
				}
				m.updateFocus()
				return m, nil

			case "tab", "down":
				m.Focused++
				if m.Focused > len(m.Inputs)+1 {
					m.Focused = 0
				}
				m.updateFocus()
				return m, nil

			case "shift+tab", "up":
				m.Focused--
				if m.Focused < 0 {
					m.Focused = len(m.Inputs) + 1
				}
				m.updateFocus()
				return m, nil
			}
		}
		if m.Focused >= 0 && m.Focused < len(m.Inputs) {
			m.Inputs[m.Focused], cmd = m.Inputs[m.Focused].Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *CommandFormModel) updateFocus() {
	for i := range m.Inputs {
		if i == m.Focused {
			m.Inputs[i].Focus()
		} else {
			m.Inputs[i].Blur()
		}
	}
}

func (m CommandFormModel) renderButton(text string, focused bool) string {
	if focused {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("205")).Padding(0, 3).Bold(true).Render(text)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("254")).Background(lipgloss.Color("240")).Padding(0, 3).Render(text)
}

func (m CommandFormModel) View() string {
	if m.State == StateSelecting {
		return m.List.View()
	}

	cmd := availableCommands[m.SelectedCmd]
	var s string

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Render(fmt.Sprintf("Parameters: %s", cmd.Name))
	s += title + "\n\n"

	for i, field := range cmd.Fields {
		label := field.Name
		if field.Required {
			label += " *"
		}

		labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
		if i == m.Focused {
			labelStyle = labelStyle.Foreground(lipgloss.Color("205")).Bold(true)
		}
		s += labelStyle.Render(label) + "\n"
		s += m.Inputs[i].View() + "\n\n"
	}

	submitBtn := m.renderButton("Submit", m.Focused == len(m.Inputs))
	backBtn := m.renderButton("Back", m.Focused == len(m.Inputs)+1)

	buttons := lipgloss.JoinHorizontal(lipgloss.Top, submitBtn, lipgloss.NewStyle().MarginLeft(2).Render(backBtn))
	s += "\n" + buttons

	return lipgloss.NewStyle().Padding(1, 2).Render(s)
}

func (m CommandFormModel) submitCommand() tea.Cmd {
	return func() tea.Msg {
		req, err := buildRequest(availableCommands[m.SelectedCmd], m.Inputs)
		if err != nil {
			return errMsg(err)
		}
		id, err := m.Session.EnqueueCommand(m.AgentID, req)
		if err != nil {
			return errMsg(fmt.Errorf("enqueue: %v", err))
		}
		return actionDoneMsg{Log: "> enqueued " + req.Type + " as " + id}
	}
}

func buildRequest(def CommandDef, inputs []textinput.Model) (dto.CommandCreateRequest, error) {
	values := map[string]string{}
	for i, f := range def.Fields {
		values[f.Name] = inputs[i].Value()
	}

	req := dto.CommandCreateRequest{Type: def.Name}
	if p := values["priority"]; p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return req, fmt.Errorf("invalid priority")
		}
		req.Priority = n
	}
	if t := values["timeout"]; t != "" {
		n, err := strconv.Atoi(t)
		if err != nil {
			return req, fmt.Errorf("invalid timeout")
		}
		req.Timeout = n
	}

	switch def.Name {
	case "shell":
		if values["command"] == "" {
			return req, fmt.Errorf("command is required")
		}
		content, _ := json.Marshal(map[string]string{"command": values["command"]})
		req.Content = content
	case "collect_logs":
		lines := 100
		if v := values["lines"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				lines = n
			}
		}
		content, _ := json.Marshal(map[string]int{"lines": lines})
		req.Content = content
	case "update_config":
		raw := values["config"]
		if raw == "" {
			return req, fmt.Errorf("config is required")
		}
		if !json.Valid([]byte(raw)) {
			return req, fmt.Errorf("config must be valid JSON")
		}
		req.Content = json.RawMessage(raw)
	case "restart":
		req.Content = json.RawMessage(`{}`)
	case "custom":
		if values["type"] == "" {
			return req, fmt.Errorf("type is required")
		}
		req.Type = values["type"]
		raw := values["content"]
		if raw == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			return req, fmt.Errorf("content must be valid JSON")
		}
		req.Content = json.RawMessage(raw)
	}
	return req, nil
}
