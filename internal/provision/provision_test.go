package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/proxydeck/internal/credentials"
	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/probes"
)

func strPtr(s string) *string { return &s }

// fakeProber records every call and answers with respond.
type fakeProber struct {
	mu        sync.Mutex
	usernames []string
	passwords []string
	respond   func(call int) (*model.ProxyRecord, error)
}

func (f *fakeProber) Probe(ctx context.Context, username, password string) (*model.ProxyRecord, error) {
	f.mu.Lock()
	call := len(f.usernames)
	f.usernames = append(f.usernames, username)
	f.passwords = append(f.passwords, password)
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeProber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.usernames)
}

func alwaysOK(call int) (*model.ProxyRecord, error) {
	return &model.ProxyRecord{IP: strPtr(fmt.Sprintf("10.0.0.%d", call))}, nil
}

func alwaysFail(int) (*model.ProxyRecord, error) {
	return nil, &probes.ProbeError{Reason: "proxy request failed: connection refused"}
}

func TestBuildUsername(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		zip     string
		minutes int
		want    string
	}{
		{"bare", "alice123", "", 0, "user-alice123-country-us"},
		{"zip only", "alice123", "90210", 0, "user-alice123-country-us-zip-90210"},
		{"session only", "alice123", "", 30, "user-alice123-sessionduration-30-country-us"},
		{"session and zip", "alice123", "90210", 10, "user-alice123-sessionduration-10-country-us-zip-90210"},
		{"negative session omitted", "alice123", "", -5, "user-alice123-country-us"},
		{"empty base", "", "", 0, "user--country-us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildUsername(tt.base, tt.zip, tt.minutes)
			if got != tt.want {
				t.Errorf("BuildUsername() = %q, want %q", got, tt.want)
			}
			if strings.Contains(got, "--country") && tt.base != "" {
				t.Errorf("residual separator in %q", got)
			}
		})
	}
}

func TestValidatorMissingCredentialsSkipsProbe(t *testing.T) {
	tests := []model.Credentials{
		{},
		{Username: "u"},
		{Password: "p"},
	}

	for _, creds := range tests {
		prober := &fakeProber{respond: alwaysOK}
		status := NewValidator(prober).TestConnection(context.Background(), creds)

		if status.State != model.ConnectionFailed || status.Message != MissingCredentialsMessage {
			t.Errorf("TestConnection(%v) = %+v", creds, status)
		}
		if prober.calls() != 0 {
			t.Errorf("TestConnection(%v) made %d probe calls, want 0", creds, prober.calls())
		}
	}
}

func TestValidatorSuccessMessage(t *testing.T) {
	prober := &fakeProber{respond: func(int) (*model.ProxyRecord, error) {
		return &model.ProxyRecord{
			IP:         strPtr("1.2.3.4"),
			CityName:   strPtr("Reno"),
			RegionName: strPtr("NV"),
			Zip:        strPtr("89501"),
		}, nil
	}}

	status := NewValidator(prober).TestConnection(context.Background(), model.Credentials{Username: "u", Password: "p"})

	if status.State != model.ConnectionOK {
		t.Fatalf("State = %s, want ok", status.State)
	}
	for _, want := range []string{"IP: 1.2.3.4", "City: Reno", "State: NV", "Zip: 89501"} {
		if !strings.Contains(status.Message, want) {
			t.Errorf("Message %q missing %q", status.Message, want)
		}
	}
	if prober.usernames[0] != "u" {
		t.Errorf("validator used username %q, want the raw username", prober.usernames[0])
	}
}

func TestValidatorPlaceholdersAndFailure(t *testing.T) {
	prober := &fakeProber{respond: func(int) (*model.ProxyRecord, error) {
		return &model.ProxyRecord{IP: strPtr("1.2.3.4")}, nil
	}}
	status := NewValidator(prober).TestConnection(context.Background(), model.Credentials{Username: "u", Password: "p"})
	want := "Connection is good | IP: 1.2.3.4 | City: N/A | State: N/A | Zip: N/A"
	if status.Message != want {
		t.Errorf("Message = %q, want %q", status.Message, want)
	}

	failing := &fakeProber{respond: alwaysFail}
	status = NewValidator(failing).TestConnection(context.Background(), model.Credentials{Username: "u", Password: "p"})
	if status.State != model.ConnectionFailed || status.Message != "proxy request failed: connection refused" {
		t.Errorf("failure status = %+v", status)
	}
}

func TestAcquireAllSuccess(t *testing.T) {
	prober := &fakeProber{respond: alwaysOK}
	req := model.AcquisitionRequest{BaseUsername: "alice123", ZipCode: "90210", EndpointCount: 5}

	outcome := NewAcquirer(prober, Options{}).AcquireAll(context.Background(), req, "secret")

	if outcome.State != model.AcquisitionCompleted {
		t.Errorf("State = %s, want completed", outcome.State)
	}
	records := outcome.Records()
	if len(records) != 5 {
		t.Fatalf("records = %d, want 5", len(records))
	}
	for i, r := range records {
		if want := fmt.Sprintf("10.0.0.%d", i); *r.IP != want {
			t.Errorf("record %d IP = %s, want %s", i, *r.IP, want)
		}
	}

	if prober.calls() != 5 {
		t.Fatalf("probe calls = %d, want 5", prober.calls())
	}
	for i, u := range prober.usernames {
		if u != "user-alice123-country-us-zip-90210" {
			t.Errorf("call %d username = %q", i, u)
		}
		if prober.passwords[i] != "secret" {
			t.Errorf("call %d used the wrong password", i)
		}
	}

	wantMessages := []string{"Fetching proxies...", "Successfully fetched 5 proxies."}
	if strings.Join(outcome.Messages, "|") != strings.Join(wantMessages, "|") {
		t.Errorf("Messages = %v, want %v", outcome.Messages, wantMessages)
	}
	if outcome.RunID == "" || outcome.Request.CountryCode != "us" {
		t.Errorf("RunID %q, CountryCode %q", outcome.RunID, outcome.Request.CountryCode)
	}
}

func TestAcquireAllFailurePolicies(t *testing.T) {
	failSecond := func(call int) (*model.ProxyRecord, error) {
		if call == 1 {
			return alwaysFail(call)
		}
		return alwaysOK(call)
	}

	tests := []struct {
		name         string
		opts         Options
		respond      func(int) (*model.ProxyRecord, error)
		wantCalls    int
		wantRecords  int
		wantFailures int
	}{
		{name: "all fail, continue", respond: alwaysFail, wantCalls: 5, wantFailures: 5},
		{name: "all fail, stop", opts: Options{StopOnFirstFailure: true}, respond: alwaysFail, wantCalls: 1, wantFailures: 1},
		{name: "one fails, continue", respond: failSecond, wantCalls: 5, wantRecords: 4, wantFailures: 1},
		{name: "one fails, stop keeps earlier record", opts: Options{StopOnFirstFailure: true}, respond: failSecond, wantCalls: 2, wantRecords: 1, wantFailures: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &fakeProber{respond: tt.respond}
			req := model.AcquisitionRequest{BaseUsername: "alice", EndpointCount: 5}

			outcome := NewAcquirer(prober, tt.opts).AcquireAll(context.Background(), req, "p")

			if prober.calls() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", prober.calls(), tt.wantCalls)
			}
			if got := len(outcome.Records()); got != tt.wantRecords {
				t.Errorf("records = %d, want %d", got, tt.wantRecords)
			}
			if got := len(outcome.Failures()); got != tt.wantFailures {
				t.Errorf("failures = %d, want %d", got, tt.wantFailures)
			}
			if outcome.State != model.AcquisitionCompletedWithErrors {
				t.Errorf("State = %s, want completed-with-errors", outcome.State)
			}

			last := outcome.Messages[len(outcome.Messages)-1]
			if last != "Failed to fetch proxies. Error: proxy request failed: connection refused" {
				t.Errorf("last message = %q", last)
			}
			wantCount := fmt.Sprintf("Fetched %d of 5 proxies.", tt.wantRecords)
			if outcome.Messages[len(outcome.Messages)-2] != wantCount {
				t.Errorf("count message = %q, want %q", outcome.Messages[len(outcome.Messages)-2], wantCount)
			}
		})
	}
}

func TestAcquireAllInvalidRequestMakesNoCalls(t *testing.T) {
	prober := &fakeProber{respond: alwaysOK}
	tests := []model.AcquisitionRequest{
		{BaseUsername: "a", EndpointCount: 0},
		{BaseUsername: "a", EndpointCount: 1, ZipCode: "123"},
		{BaseUsername: "a", EndpointCount: 11},
	}

	for _, req := range tests {
		outcome := NewAcquirer(prober, Options{MaxEndpoints: 10}).AcquireAll(context.Background(), req, "p")
		if outcome.State != model.AcquisitionCompletedWithErrors {
			t.Errorf("%+v: State = %s", req, outcome.State)
		}
		if !strings.HasPrefix(outcome.Messages[len(outcome.Messages)-1], "Failed to fetch proxies. Error: ") {
			t.Errorf("%+v: messages = %v", req, outcome.Messages)
		}
	}
	if prober.calls() != 0 {
		t.Errorf("calls = %d, want 0", prober.calls())
	}
}

func TestAcquireAllCancelledContextTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := &fakeProber{respond: alwaysOK}
	outcome := NewAcquirer(prober, Options{}).AcquireAll(ctx, model.AcquisitionRequest{BaseUsername: "a", EndpointCount: 3}, "p")

	if prober.calls() != 0 {
		t.Errorf("calls = %d, want 0 after cancellation", prober.calls())
	}
	if len(outcome.Failures()) != 3 {
		t.Errorf("failures = %d, want 3", len(outcome.Failures()))
	}
}

func TestAcquireAllConcurrentPreservesOrder(t *testing.T) {
	var inFlight, maxInFlight int32
	prober := &fakeProber{respond: func(call int) (*model.ProxyRecord, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Duration(call%3) * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return alwaysOK(call)
	}}

	outcome := NewAcquirer(prober, Options{Concurrency: 4}).AcquireAll(context.Background(),
		model.AcquisitionRequest{BaseUsername: "a", EndpointCount: 20}, "p")

	if len(outcome.Entries) != 20 {
		t.Fatalf("entries = %d, want 20", len(outcome.Entries))
	}
	for i, e := range outcome.Entries {
		if e.Index != i {
			t.Errorf("entry %d has index %d", i, e.Index)
		}
	}
	if maxInFlight > 4 {
		t.Errorf("max in flight = %d, want <= 4", maxInFlight)
	}
	if outcome.State != model.AcquisitionCompleted {
		t.Errorf("State = %s", outcome.State)
	}
}

func TestAcquireAllEmitsEvents(t *testing.T) {
	var mu sync.Mutex
	var types []EventType

	a := NewAcquirer(&fakeProber{respond: alwaysOK}, Options{})
	a.OnEvent(func(ev Event) {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
	})
	a.AcquireAll(context.Background(), model.AcquisitionRequest{BaseUsername: "a", EndpointCount: 2}, "p")

	want := []EventType{EventStarted, EventEntry, EventEntry, EventMessage, EventFinished}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func newTestWorkspace(prober Prober, creds *model.Credentials) *Workspace {
	store := credentials.NewStore(credentials.NewMemoryKV(), credentials.NewMemoryKV())
	if creds != nil {
		store.Set(*creds)
	}
	return NewWorkspace(store, prober, Options{MaxEndpoints: 100})
}

func TestWorkspaceFetchRequiresCredentials(t *testing.T) {
	prober := &fakeProber{respond: alwaysOK}
	w := newTestWorkspace(prober, nil)

	_, err := w.Fetch(context.Background(), model.AcquisitionRequest{EndpointCount: 1})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Fetch() error = %v, want *ValidationError", err)
	}
	if prober.calls() != 0 {
		t.Errorf("calls = %d, want 0", prober.calls())
	}
}

func TestWorkspaceFetchUsesStoredUsername(t *testing.T) {
	prober := &fakeProber{respond: alwaysOK}
	w := newTestWorkspace(prober, &model.Credentials{Username: "alice123", Password: "secret"})

	outcome, err := w.Fetch(context.Background(), model.AcquisitionRequest{BaseUsername: "ignored", ZipCode: "90210", EndpointCount: 2})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(outcome.Records()) != 2 {
		t.Errorf("records = %d, want 2", len(outcome.Records()))
	}
	if prober.usernames[0] != "user-alice123-country-us-zip-90210" {
		t.Errorf("username = %q", prober.usernames[0])
	}
	if got := w.Outcome(); got == nil || got.RunID != outcome.RunID {
		t.Errorf("Outcome() = %+v, want the finished run", got)
	}
}

func TestWorkspaceRejectsConcurrentFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	prober := &fakeProber{respond: func(call int) (*model.ProxyRecord, error) {
		started <- struct{}{}
		<-release
		return alwaysOK(call)
	}}
	w := newTestWorkspace(prober, &model.Credentials{Username: "u", Password: "p"})

	if err := w.FetchAsync(context.Background(), model.AcquisitionRequest{EndpointCount: 1}); err != nil {
		t.Fatalf("FetchAsync: %v", err)
	}
	<-started

	if live := w.Outcome(); live == nil || live.State != model.AcquisitionFetching {
		t.Errorf("live outcome = %+v, want fetching", live)
	}
	if _, err := w.Fetch(context.Background(), model.AcquisitionRequest{EndpointCount: 1}); !errors.Is(err, ErrFetchInProgress) {
		t.Errorf("second Fetch() error = %v, want ErrFetchInProgress", err)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for w.Busy() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.Busy() {
		t.Fatal("workspace still busy after the run finished")
	}
	if got := w.Outcome(); got.State != model.AcquisitionCompleted {
		t.Errorf("final state = %s", got.State)
	}
}

func TestWorkspaceClearResetsConnectionStatus(t *testing.T) {
	prober := &fakeProber{respond: alwaysOK}
	w := newTestWorkspace(prober, &model.Credentials{Username: "u", Password: "p", Persist: true})

	if status := w.TestConnection(context.Background()); status.State != model.ConnectionOK {
		t.Fatalf("TestConnection = %+v", status)
	}
	if err := w.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if w.ConnectionStatus().State != model.ConnectionUnknown {
		t.Errorf("status = %s, want unknown", w.ConnectionStatus().State)
	}
	if w.Credentials().Complete() {
		t.Error("credentials still present after clear")
	}
}
