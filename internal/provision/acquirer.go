package provision

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/util"
)

// Status log lines.
const (
	MsgFetching = "Fetching proxies..."
)

// Options tune a batch run.
type Options struct {
	// StopOnFirstFailure stops issuing probes after the first failure.
	// Records already acquired are kept either way.
	StopOnFirstFailure bool
	// Concurrency > 1 allows that many probes in flight. Entries stay in index order.
	Concurrency int
	// MaxEndpoints caps EndpointCount. Zero means no cap.
	MaxEndpoints int
}

// EventType identifies an acquisition event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventEntry    EventType = "entry"
	EventMessage  EventType = "message"
	EventFinished EventType = "finished"
)

// Event is emitted while a batch runs, for live presentation.
type Event struct {
	Type    EventType                 `json:"type"`
	RunID   string                    `json:"run_id"`
	Time    time.Time                 `json:"time"`
	Request *model.AcquisitionRequest `json:"request,omitempty"`
	Entry   *model.AcquisitionEntry   `json:"entry,omitempty"`
	Message string                    `json:"message,omitempty"`
	State   model.AcquisitionState    `json:"state,omitempty"`
}

// Listener receives events. It is called from the probing goroutines.
type Listener func(Event)

// Acquirer assembles a batch of endpoint records with repeated probes.
type Acquirer struct {
	prober   Prober
	opts     Options
	listener Listener
	newRunID func() string
	now      func() time.Time
}

// NewAcquirer creates an acquirer.
func NewAcquirer(prober Prober, opts Options) *Acquirer {
	return &Acquirer{
		prober:   prober,
		opts:     opts,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// OnEvent registers the listener for subsequent runs.
func (a *Acquirer) OnEvent(l Listener) {
	a.listener = l
}

// Options returns the acquirer's options.
func (a *Acquirer) Options() Options {
	return a.opts
}

func (a *Acquirer) emit(ev Event) {
	if a.listener != nil {
		a.listener(ev)
	}
}

// AcquireAll runs one batch and returns its outcome. Probe failures are
// recorded as entries, never returned.
func (a *Acquirer) AcquireAll(ctx context.Context, req model.AcquisitionRequest, password string) *model.AcquisitionOutcome {
	if req.CountryCode == "" {
		req.CountryCode = model.DefaultCountryCode
	}

	outcome := &model.AcquisitionOutcome{
		RunID:     a.newRunID(),
		State:     model.AcquisitionFetching,
		Request:   req,
		Messages:  []string{MsgFetching},
		StartedAt: a.now(),
	}
	a.emit(Event{Type: EventStarted, RunID: outcome.RunID, Time: outcome.StartedAt, Request: &req, Message: MsgFetching, State: outcome.State})

	if err := req.Validate(a.opts.MaxEndpoints); err != nil {
		a.addMessage(outcome, failedMessage(err.Error()))
		return a.finish(outcome, model.AcquisitionCompletedWithErrors)
	}

	username := UsernameFor(req)
	util.Info("Acquiring %d endpoints as %s", req.EndpointCount, username)

	var entries []model.AcquisitionEntry
	if a.opts.Concurrency > 1 {
		entries = a.runConcurrent(ctx, outcome.RunID, username, password, req.EndpointCount)
	} else {
		entries = a.runSequential(ctx, outcome.RunID, username, password, req.EndpointCount)
	}
	outcome.Entries = entries

	records := len(outcome.Records())
	failures := outcome.Failures()
	if len(failures) == 0 {
		a.addMessage(outcome, fmt.Sprintf("Successfully fetched %d proxies.", records))
		return a.finish(outcome, model.AcquisitionCompleted)
	}

	util.Warn("Acquisition %s: %d of %d probes failed", outcome.RunID, len(failures), req.EndpointCount)
	a.addMessage(outcome, fmt.Sprintf("Fetched %d of %d proxies.", records, req.EndpointCount))
	a.addMessage(outcome, failedMessage(failures[0].Reason))
	return a.finish(outcome, model.AcquisitionCompletedWithErrors)
}

func (a *Acquirer) runSequential(ctx context.Context, runID, username, password string, count int) []model.AcquisitionEntry {
	entries := make([]model.AcquisitionEntry, 0, count)
	for i := 0; i < count; i++ {
		entry := a.probeOne(ctx, i, username, password)
		entries = append(entries, entry)
		a.emit(Event{Type: EventEntry, RunID: runID, Time: a.now(), Entry: &entry})

		if entry.Failure != nil && a.opts.StopOnFirstFailure {
			break
		}
	}
	return entries
}

func (a *Acquirer) runConcurrent(ctx context.Context, runID, username, password string, count int) []model.AcquisitionEntry {
	slots := make([]*model.AcquisitionEntry, count)
	var stopped atomic.Bool
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)

	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			if stopped.Load() {
				return nil
			}
			entry := a.probeOne(ctx, i, username, password)
			if entry.Failure != nil && a.opts.StopOnFirstFailure {
				stopped.Store(true)
			}

			mu.Lock()
			slots[i] = &entry
			mu.Unlock()

			a.emit(Event{Type: EventEntry, RunID: runID, Time: a.now(), Entry: &entry})
			return nil
		})
	}
	g.Wait()

	entries := make([]model.AcquisitionEntry, 0, count)
	for _, e := range slots {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries
}

func (a *Acquirer) probeOne(ctx context.Context, index int, username, password string) model.AcquisitionEntry {
	if err := ctx.Err(); err != nil {
		return model.AcquisitionEntry{Index: index, Failure: &model.AcquisitionFailure{Index: index, Reason: err.Error()}}
	}

	record, err := a.prober.Probe(ctx, username, password)
	if err != nil {
		util.Debug("Probe %d failed: %v", index, err)
		return model.AcquisitionEntry{Index: index, Failure: &model.AcquisitionFailure{Index: index, Reason: err.Error()}}
	}
	return model.AcquisitionEntry{Index: index, Record: record}
}

func (a *Acquirer) addMessage(o *model.AcquisitionOutcome, msg string) {
	o.Messages = append(o.Messages, msg)
	a.emit(Event{Type: EventMessage, RunID: o.RunID, Time: a.now(), Message: msg})
}

func (a *Acquirer) finish(o *model.AcquisitionOutcome, state model.AcquisitionState) *model.AcquisitionOutcome {
	o.State = state
	o.FinishedAt = a.now()
	a.emit(Event{Type: EventFinished, RunID: o.RunID, Time: o.FinishedAt, State: state})
	return o
}

func failedMessage(reason string) string {
	return "Failed to fetch proxies. Error: " + reason
}
