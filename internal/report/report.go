// Package report exports the current session's acquisition outcome.
// Nothing is written to storage; exports are download-only.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/user/proxydeck/internal/model"
)

// Columns of the results table, shared by every presenter.
var Columns = []string{"#", "Status", "IP", "ISP", "City", "State", "Time Zone", "Latitude", "Longitude"}

// Row renders one entry as table cells in Columns order.
func Row(e model.AcquisitionEntry) []string {
	num := strconv.Itoa(e.Index + 1)
	if e.Failure != nil {
		return []string{num, "failed", e.Failure.Reason, "", "", "", "", "", ""}
	}
	r := e.Record
	if r == nil {
		r = &model.ProxyRecord{}
	}
	return []string{
		num,
		"ok",
		Str(r.IP),
		Str(r.ISP),
		Str(r.CityName),
		Str(r.RegionCode),
		Str(r.TimeZone),
		Coord(r.Latitude),
		Coord(r.Longitude),
	}
}

// Str renders an optional string, empty when absent.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Coord renders an optional coordinate, empty when absent.
func Coord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// FormatMarkdown formats the outcome as a Markdown report.
func FormatMarkdown(o *model.AcquisitionOutcome) string {
	var sb strings.Builder

	sb.WriteString("# proxydeck Acquisition Report\n\n")
	if o == nil {
		sb.WriteString("No acquisition has run in this session.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("**Run:** `%s`  \n", o.RunID))
	sb.WriteString(fmt.Sprintf("**Started:** %s  \n", o.StartedAt.Format(time.RFC3339)))
	if !o.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("**Finished:** %s  \n", o.FinishedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("**State:** %s\n\n", o.State))

	sb.WriteString("## Request\n\n")
	sb.WriteString("| Setting | Value |\n")
	sb.WriteString("|---------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Username | %s |\n", o.Request.BaseUsername))
	sb.WriteString(fmt.Sprintf("| Country | %s |\n", o.Request.CountryCode))
	sb.WriteString(fmt.Sprintf("| ZIP | %s |\n", orDash(o.Request.ZipCode)))
	session := "-"
	if o.Request.SessionDurationMinutes > 0 {
		session = fmt.Sprintf("%d min", o.Request.SessionDurationMinutes)
	}
	sb.WriteString(fmt.Sprintf("| Session duration | %s |\n", session))
	sb.WriteString(fmt.Sprintf("| Endpoints requested | %d |\n\n", o.Request.EndpointCount))

	sb.WriteString("## Endpoints\n\n")
	if len(o.Entries) == 0 {
		sb.WriteString("_No endpoints were probed._\n\n")
	} else {
		sb.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat("---|", len(Columns)) + "\n")
		for _, e := range o.Entries {
			cells := Row(e)
			for i := range cells {
				cells[i] = escapeCell(cells[i])
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Log\n\n")
	for _, m := range o.Messages {
		sb.WriteString("- " + m + "\n")
	}

	return sb.String()
}

// WriteCSV writes the outcome's entries as CSV with a header row.
func WriteCSV(w io.Writer, o *model.AcquisitionOutcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if o != nil {
		for _, e := range o.Entries {
			if err := cw.Write(Row(e)); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the outcome to path in the format implied by its extension
// (.csv, anything else is Markdown).
func WriteFile(path string, o *model.AcquisitionOutcome) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return WriteCSV(f, o)
	}
	if _, err := f.WriteString(FormatMarkdown(o)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
