package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/proxydeck/internal/credentials"
	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/provision"
)

type stubProber struct {
	fail bool
}

func (p stubProber) Probe(ctx context.Context, username, password string) (*model.ProxyRecord, error) {
	if p.fail {
		return nil, errors.New("proxy request failed: connection refused")
	}
	ip, city := "1.2.3.4", "Reno"
	return &model.ProxyRecord{IP: &ip, CityName: &city}, nil
}

func newTestModel(t *testing.T, prober provision.Prober) acquisitionModel {
	t.Helper()
	store := credentials.NewStore(credentials.NewMemoryKV(), credentials.NewMemoryKV())
	ws := provision.NewWorkspace(store, prober, provision.Options{MaxEndpoints: 10})
	if err := ws.SaveCredentials(model.Credentials{Username: "alice", Password: "hunter2"}); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}
	return newModel(ws, model.AcquisitionRequest{EndpointCount: 2})
}

func press(m acquisitionModel, key string) (acquisitionModel, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(acquisitionModel), cmd
}

func TestFetchKeyRunsAcquisition(t *testing.T) {
	m := newTestModel(t, stubProber{})

	m, cmd := press(m, "f")
	if !m.fetching {
		t.Fatal("fetching = false after pressing f")
	}
	if cmd == nil {
		t.Fatal("expected a fetch command")
	}

	// A second press while fetching is ignored.
	if _, again := press(m, "f"); again != nil {
		t.Error("second fetch started while the first is running")
	}

	next, _ := m.Update(cmd())
	m = next.(acquisitionModel)

	if m.fetching {
		t.Error("fetching still true after outcome")
	}
	if got := len(m.table.Rows()); got != 2 {
		t.Fatalf("table rows = %d, want 2", got)
	}
	if m.table.Rows()[0][2] != "1.2.3.4" {
		t.Errorf("first row IP = %q", m.table.Rows()[0][2])
	}

	view := m.View()
	for _, want := range []string{"Successfully fetched 2 proxies.", "alice", "Reno"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "hunter2") {
		t.Error("view leaks the password")
	}
}

func TestFetchFailureShowsLog(t *testing.T) {
	m := newTestModel(t, stubProber{fail: true})

	m, cmd := press(m, "f")
	next, _ := m.Update(cmd())
	m = next.(acquisitionModel)

	view := m.View()
	if !strings.Contains(view, "Failed to fetch proxies. Error: proxy request failed: connection refused") {
		t.Errorf("view missing failure message:\n%s", view)
	}
	if !strings.Contains(view, string(model.AcquisitionCompletedWithErrors)) {
		t.Error("view missing completed-with-errors state")
	}
}

func TestTestConnectionKey(t *testing.T) {
	m := newTestModel(t, stubProber{})

	m, cmd := press(m, "t")
	if !m.testing || cmd == nil {
		t.Fatal("expected a connection test to start")
	}

	next, _ := m.Update(cmd())
	m = next.(acquisitionModel)

	if m.status.State != model.ConnectionOK {
		t.Errorf("State = %q, want ok", m.status.State)
	}
	if !strings.Contains(m.View(), "Connection is good | IP: 1.2.3.4 | City: Reno") {
		t.Errorf("view missing connection message")
	}
}

func TestFetchWithoutCredentialsShowsError(t *testing.T) {
	store := credentials.NewStore(credentials.NewMemoryKV(), credentials.NewMemoryKV())
	ws := provision.NewWorkspace(store, stubProber{}, provision.Options{})
	m := newModel(ws, model.AcquisitionRequest{EndpointCount: 1})

	m, cmd := press(m, "f")
	next, _ := m.Update(cmd())
	m = next.(acquisitionModel)

	if m.err == nil {
		t.Fatal("expected an error without credentials")
	}
	if !strings.Contains(m.View(), provision.MissingCredentialsMessage) {
		t.Error("view missing credentials error")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max, width int
		filled            int
	}{
		{0, 10, 10, 0},
		{5, 10, 10, 5},
		{20, 10, 10, 10},
		{1, 0, 4, 4},
	}
	for _, tt := range tests {
		got := RenderBar(tt.value, tt.max, tt.width)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("RenderBar(%d, %d, %d) filled = %d, want %d", tt.value, tt.max, tt.width, n, tt.filled)
		}
	}
}
