package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/proxydeck/internal/credentials"
	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/util"
)

// ErrFetchInProgress is returned when a fetch is requested while one runs.
var ErrFetchInProgress = errors.New("a fetch is already in progress")

// EventConnection is published after every connection test.
const EventConnection EventType = "connection"

// Workspace owns the credentials, the current outcome and the last
// connection status. The web, CLI and TUI surfaces all drive one Workspace.
type Workspace struct {
	store     *credentials.Store
	validator *Validator
	acquirer  *Acquirer

	mu          sync.Mutex
	outcome     *model.AcquisitionOutcome
	status      model.ConnectionStatus
	busy        bool
	subscribers []Listener
}

// NewWorkspace wires the store to a validator and an acquirer sharing prober.
func NewWorkspace(store *credentials.Store, prober Prober, opts Options) *Workspace {
	w := &Workspace{
		store:     store,
		validator: NewValidator(prober),
		acquirer:  NewAcquirer(prober, opts),
		status:    model.ConnectionStatus{State: model.ConnectionUnknown},
	}
	w.acquirer.OnEvent(w.handleEvent)
	return w
}

// Subscribe registers l for acquisition and connection events.
func (w *Workspace) Subscribe(l Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, l)
}

// Credentials returns the current credentials.
func (w *Workspace) Credentials() model.Credentials {
	return w.store.Get()
}

// SaveCredentials stores c according to c.Persist.
func (w *Workspace) SaveCredentials(c model.Credentials) error {
	if err := w.store.Set(c); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	util.Info("Credentials saved for %s (persist=%t)", c.Username, c.Persist)
	return nil
}

// ClearCredentials forgets the credentials everywhere and resets the connection status.
func (w *Workspace) ClearCredentials() error {
	err := w.store.Clear()

	w.mu.Lock()
	w.status = model.ConnectionStatus{State: model.ConnectionUnknown}
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	util.Info("Credentials cleared")
	return nil
}

// TestConnection validates the stored credentials and records the result.
func (w *Workspace) TestConnection(ctx context.Context) model.ConnectionStatus {
	status := w.validator.TestConnection(ctx, w.store.Get())

	w.mu.Lock()
	w.status = status
	subs := w.subscribers
	w.mu.Unlock()

	if status.State == model.ConnectionOK {
		util.Info("Connection test passed")
	} else {
		util.Warn("Connection test failed: %s", status.Message)
	}

	ev := Event{Type: EventConnection, Time: status.CheckedAt, Message: status.Message}
	for _, l := range subs {
		l(ev)
	}
	return status
}

// ConnectionStatus returns the last connection test result.
func (w *Workspace) ConnectionStatus() model.ConnectionStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Outcome returns a copy of the current or last outcome, nil before the first run.
func (w *Workspace) Outcome() *model.AcquisitionOutcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome.Clone()
}

// Busy reports whether a fetch is running.
func (w *Workspace) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Fetch runs one batch with the stored username and blocks until it completes.
func (w *Workspace) Fetch(ctx context.Context, req model.AcquisitionRequest) (*model.AcquisitionOutcome, error) {
	req, password, err := w.begin(req)
	if err != nil {
		return nil, err
	}
	return w.run(ctx, req, password), nil
}

// FetchAsync starts a batch in the background. The busy check is synchronous,
// so ErrFetchInProgress is returned to the caller rather than to the goroutine.
func (w *Workspace) FetchAsync(ctx context.Context, req model.AcquisitionRequest) error {
	req, password, err := w.begin(req)
	if err != nil {
		return err
	}
	go w.run(ctx, req, password)
	return nil
}

func (w *Workspace) begin(req model.AcquisitionRequest) (model.AcquisitionRequest, string, error) {
	creds := w.store.Get()
	if !creds.Complete() {
		return req, "", &model.ValidationError{Message: MissingCredentialsMessage}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return req, "", ErrFetchInProgress
	}
	w.busy = true

	req.BaseUsername = creds.Username
	return req, creds.Password, nil
}

func (w *Workspace) run(ctx context.Context, req model.AcquisitionRequest, password string) *model.AcquisitionOutcome {
	outcome := w.acquirer.AcquireAll(ctx, req, password)

	w.mu.Lock()
	w.outcome = outcome
	w.busy = false
	w.mu.Unlock()

	return outcome.Clone()
}

// handleEvent keeps the live outcome current while a batch runs, then fans out.
func (w *Workspace) handleEvent(ev Event) {
	w.mu.Lock()
	switch ev.Type {
	case EventStarted:
		w.outcome = &model.AcquisitionOutcome{
			RunID:     ev.RunID,
			State:     model.AcquisitionFetching,
			Request:   *ev.Request,
			Messages:  []string{ev.Message},
			StartedAt: ev.Time,
		}
	case EventEntry:
		if w.outcome != nil && w.outcome.RunID == ev.RunID {
			w.outcome.Entries = append(w.outcome.Entries, *ev.Entry)
		}
	case EventMessage:
		if w.outcome != nil && w.outcome.RunID == ev.RunID {
			w.outcome.Messages = append(w.outcome.Messages, ev.Message)
		}
	}
	subs := w.subscribers
	w.mu.Unlock()

	for _, l := range subs {
		l(ev)
	}
}
