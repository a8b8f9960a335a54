// Package tui provides a terminal user interface for acquisition runs.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/provision"
	"github.com/user/proxydeck/internal/util"
)

// App is the main TUI application.
type App struct {
	workspace *provision.Workspace
	config    *util.Config
	request   model.AcquisitionRequest
}

// NewApp creates a new TUI application. req is used for every fetch started from the UI.
func NewApp(workspace *provision.Workspace, cfg *util.Config, req model.AcquisitionRequest) *App {
	return &App{
		workspace: workspace,
		config:    cfg,
		request:   req,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	m := newModel(a.workspace, a.request)
	m.gateway = a.config.Provider.GatewayAddr()

	p := tea.NewProgram(m, tea.WithAltScreen())
	a.workspace.Subscribe(func(ev provision.Event) {
		p.Send(eventMsg{ev})
	})
	_, err := p.Run()
	return err
}

// acquisitionModel is the main bubbletea model.
type acquisitionModel struct {
	workspace *provision.Workspace
	request   model.AcquisitionRequest
	gateway   string
	spinner   spinner.Model
	table     table.Model
	status    model.ConnectionStatus
	outcome   *model.AcquisitionOutcome
	testing   bool
	fetching  bool
	width     int
	height    int
	err       error
}

func newModel(ws *provision.Workspace, req model.AcquisitionRequest) acquisitionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return acquisitionModel{
		workspace: ws,
		request:   req,
		spinner:   s,
		table:     newTable(),
		status:    ws.ConnectionStatus(),
		outcome:   ws.Outcome(),
	}
}

// Init initializes the model.
func (m acquisitionModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m acquisitionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "t":
			if m.testing {
				return m, nil
			}
			m.testing = true
			return m, testConnection(m.workspace)
		case "f":
			if m.fetching {
				return m, nil
			}
			m.fetching = true
			m.err = nil
			return m, fetchProxies(m.workspace, m.request)
		case "r":
			m.outcome = m.workspace.Outcome()
			m.table.SetRows(rowsFor(m.outcome))
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 18; h > 3 {
			m.table.SetHeight(h)
		}

	case connectionMsg:
		m.testing = false
		m.status = msg.status

	case eventMsg:
		if msg.Type != provision.EventConnection {
			m.outcome = m.workspace.Outcome()
			m.table.SetRows(rowsFor(m.outcome))
		}

	case outcomeMsg:
		m.fetching = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.outcome = msg.outcome
		m.table.SetRows(rowsFor(m.outcome))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Messages
type connectionMsg struct {
	status model.ConnectionStatus
}

type outcomeMsg struct {
	outcome *model.AcquisitionOutcome
	err     error
}

type eventMsg struct {
	provision.Event
}

func testConnection(ws *provision.Workspace) tea.Cmd {
	return func() tea.Msg {
		return connectionMsg{status: ws.TestConnection(context.Background())}
	}
}

func fetchProxies(ws *provision.Workspace, req model.AcquisitionRequest) tea.Cmd {
	return func() tea.Msg {
		outcome, err := ws.Fetch(context.Background(), req)
		return outcomeMsg{outcome: outcome, err: err}
	}
}
