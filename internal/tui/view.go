package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/report"
)

// visible log lines
const logTail = 6

var columnWidths = []int{4, 7, 16, 22, 14, 6, 20, 10, 11}

func newTable() table.Model {
	columns := make([]table.Column, len(report.Columns))
	for i, title := range report.Columns {
		columns[i] = table.Column{Title: title, Width: columnWidths[i]}
	}
	return table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(tableStyles()),
	)
}

func rowsFor(o *model.AcquisitionOutcome) []table.Row {
	if o == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(o.Entries))
	for _, e := range o.Entries {
		rows = append(rows, table.Row(report.Row(e)))
	}
	return rows
}

// View renders the UI.
func (m acquisitionModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(" proxydeck "))
	b.WriteString("\n\n")

	b.WriteString(m.viewSettings())
	b.WriteString("\n")
	b.WriteString(m.viewProgress())
	b.WriteString("\n")

	if len(m.table.Rows()) > 0 {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("t: test connection • f: fetch • r: refresh • ↑/↓: scroll • q: quit"))
	return b.String()
}

func (m acquisitionModel) viewSettings() string {
	creds := m.workspace.Credentials()

	var lines []string
	lines = append(lines, SectionTitleStyle.Render("Account"))

	user := creds.Username
	if user == "" {
		user = "(not set)"
	}
	if m.gateway != "" {
		lines = append(lines, LabelStyle.Render("Gateway:")+ValueStyle.Render(m.gateway))
	}
	lines = append(lines, LabelStyle.Render("Username:")+ValueStyle.Render(user))
	lines = append(lines, LabelStyle.Render("Remembered:")+ValueStyle.Render(fmt.Sprintf("%t", creds.Persist)))

	conn := RenderConnection(m.status)
	if m.testing {
		conn = m.spinner.View() + " testing..."
	}
	lines = append(lines, LabelStyle.Render("Connection:")+conn)

	lines = append(lines, "")
	lines = append(lines, SectionTitleStyle.Render("Request"))
	zip := m.request.ZipCode
	if zip == "" {
		zip = "any"
	}
	session := "rotating"
	if m.request.SessionDurationMinutes > 0 {
		session = fmt.Sprintf("%d min", m.request.SessionDurationMinutes)
	}
	lines = append(lines, LabelStyle.Render("Zip:")+ValueStyle.Render(zip))
	lines = append(lines, LabelStyle.Render("Session:")+ValueStyle.Render(session))
	lines = append(lines, LabelStyle.Render("Endpoints:")+ValueStyle.Render(fmt.Sprintf("%d", m.request.EndpointCount)))

	return SectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m acquisitionModel) viewProgress() string {
	var lines []string
	lines = append(lines, SectionTitleStyle.Render("Acquisition"))

	if m.err != nil {
		lines = append(lines, ErrorStyle.Render(m.err.Error()))
	}

	if m.outcome == nil {
		if m.fetching {
			lines = append(lines, m.spinner.View()+" starting...")
		} else {
			lines = append(lines, DimStyle.Render("No acquisition has run in this session."))
		}
		return SectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	o := m.outcome
	state := RenderState(o.State)
	if o.State == model.AcquisitionFetching {
		state = m.spinner.View() + " " + state
	}
	lines = append(lines, LabelStyle.Render("State:")+state)

	total := o.Request.EndpointCount
	done := len(o.Entries)
	lines = append(lines, LabelStyle.Render("Progress:")+
		RenderBar(done, total, 30)+
		fmt.Sprintf(" %d/%d (%d failed)", done, total, len(o.Failures())))

	msgs := o.Messages
	if len(msgs) > logTail {
		msgs = msgs[len(msgs)-logTail:]
	}
	for _, msg := range msgs {
		style := DimStyle
		if strings.HasPrefix(msg, "Failed") {
			style = WarningStyle
		}
		lines = append(lines, style.Render("› "+msg))
	}

	return SectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderTable renders the outcome's entries as a static table for CLI output.
func RenderTable(o *model.AcquisitionOutcome) string {
	t := newTable()
	rows := rowsFor(o)
	t.SetRows(rows)
	t.SetHeight(len(rows) + 1)
	t.Blur()
	return t.View()
}
