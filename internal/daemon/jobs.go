package daemon

import (
	"context"
	"errors"

	"github.com/user/proxydeck/internal/model"
)

// ConnectionCheckJob re-validates durable credentials on a schedule.
const ConnectionCheckJob = "connection_check"

// registerJobs registers all jobs with the scheduler.
func (d *Daemon) registerJobs() {
	if d.config.ConnectionCheckInterval <= 0 {
		d.log.Info().Msg("connection check disabled")
		return
	}

	d.scheduler.AddJob(&Job{
		Name:     ConnectionCheckJob,
		Interval: d.config.ConnectionCheckInterval,
		Run:      d.runConnectionCheck,
	})
}

// runConnectionCheck only runs when credentials were persisted. Session-only
// credentials belong to an interactive user and are left alone.
func (d *Daemon) runConnectionCheck(ctx context.Context) error {
	defer d.writeStatus()

	creds := d.workspace.Credentials()
	if !creds.Persist || !creds.Complete() {
		d.log.Debug().Msg("no durable credentials, skipping connection check")
		return nil
	}

	status := d.workspace.TestConnection(ctx)

	d.mu.Lock()
	d.lastCheck = status
	d.mu.Unlock()

	if status.State != model.ConnectionOK {
		return errors.New(status.Message)
	}

	d.log.Info().Str("message", status.Message).Msg("connection check passed")
	return nil
}
