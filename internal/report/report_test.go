package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/proxydeck/internal/model"
)

func sampleOutcome() *model.AcquisitionOutcome {
	ip, city, code := "1.2.3.4", "Reno", "NV"
	lat := 39.5296
	return &model.AcquisitionOutcome{
		RunID:     "run-1",
		State:     model.AcquisitionCompletedWithErrors,
		Request:   model.AcquisitionRequest{BaseUsername: "alice", ZipCode: "89501", CountryCode: "us", EndpointCount: 2},
		StartedAt: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
		Entries: []model.AcquisitionEntry{
			{Index: 0, Record: &model.ProxyRecord{IP: &ip, CityName: &city, RegionCode: &code, Latitude: &lat}},
			{Index: 1, Failure: &model.AcquisitionFailure{Index: 1, Reason: "provider returned status 407 | auth"}},
		},
		Messages: []string{"Fetching proxies...", "Fetched 1 of 2 proxies.", "Failed to fetch proxies. Error: provider returned status 407 | auth"},
	}
}

func TestFormatMarkdown(t *testing.T) {
	md := FormatMarkdown(sampleOutcome())

	for _, want := range []string{
		"**Run:** `run-1`",
		"| ZIP | 89501 |",
		"| 1 | ok | 1.2.3.4 |  | Reno | NV |  | 39.5296 |  |",
		"status 407 \\| auth",
		"- Fetched 1 of 2 proxies.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestFormatMarkdownNoRun(t *testing.T) {
	if md := FormatMarkdown(nil); !strings.Contains(md, "No acquisition has run") {
		t.Errorf("unexpected markdown for nil outcome: %s", md)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleOutcome()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][2] != "1.2.3.4" || rows[1][1] != "ok" {
		t.Errorf("record row = %v", rows[1])
	}
	if rows[2][1] != "failed" {
		t.Errorf("failure row = %v", rows[2])
	}
}

func TestWriteFileByExtension(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out", "proxies.csv")
	if err := WriteFile(csvPath, sampleOutcome()); err != nil {
		t.Fatalf("WriteFile csv: %v", err)
	}
	data, _ := os.ReadFile(csvPath)
	if !strings.HasPrefix(string(data), "#,Status,IP") {
		t.Errorf("csv file starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	mdPath := filepath.Join(dir, "proxies.md")
	if err := WriteFile(mdPath, sampleOutcome()); err != nil {
		t.Fatalf("WriteFile md: %v", err)
	}
	data, _ = os.ReadFile(mdPath)
	if !strings.HasPrefix(string(data), "# proxydeck Acquisition Report") {
		t.Errorf("markdown file starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}
}
