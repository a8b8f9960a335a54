// Package daemon provides background service functionality.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/provision"
	"github.com/user/proxydeck/internal/util"
)

// Daemon manages the background service.
type Daemon struct {
	config    *util.Config
	workspace *provision.Workspace
	scheduler *Scheduler
	pidFile   string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	startTime time.Time
	lastCheck model.ConnectionStatus
	mu        sync.RWMutex
	log       zerolog.Logger
}

// New creates a new daemon instance around an already loaded workspace.
func New(cfg *util.Config, workspace *provision.Workspace) (*Daemon, error) {
	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:    cfg,
		workspace: workspace,
		pidFile:   filepath.Join(cfg.DataDir, PIDFileName),
		ctx:       ctx,
		cancel:    cancel,
		lastCheck: model.ConnectionStatus{State: model.ConnectionUnknown},
		log:       util.WithComponent("daemon"),
	}

	d.scheduler = NewScheduler(ctx)

	return d, nil
}

// Start starts the daemon.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.log.Info().Msg("daemon starting")

	d.registerJobs()
	d.writeStatus()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduler.Run()
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	d.log.Info().Int("pid", os.Getpid()).Msg("daemon started")

	return nil
}

// Wait waits for the daemon to finish.
func (d *Daemon) Wait() {
	d.wg.Wait()
}

// Stop stops the daemon gracefully.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.log.Info().Msg("daemon stopping")

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info().Msg("daemon stopped gracefully")
	case <-time.After(30 * time.Second):
		d.log.Warn().Msg("daemon stop timed out")
	}

	d.writeStatus()
	d.removePIDFile()

	return nil
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.log.Info().Str("signal", sig.String()).Msg("received signal")
		// Stop waits on wg, which includes this goroutine.
		go d.Stop()
	case <-d.ctx.Done():
		return
	}
}

func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) removePIDFile() {
	os.Remove(d.pidFile)
}

func (d *Daemon) writeStatus() {
	if err := WriteStatusFile(d.config.DataDir, d.GetStatus()); err != nil {
		d.log.Warn().Err(err).Msg("failed to write status file")
	}
}

// GetStatus returns the daemon status.
func (d *Daemon) GetStatus() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return &DaemonStatus{
		Running:    d.running,
		PID:        os.Getpid(),
		StartTime:  d.startTime,
		Uptime:     time.Since(d.startTime),
		WebPort:    d.config.WebPort,
		Connection: d.lastCheck,
		Jobs:       d.scheduler.GetJobStatuses(),
	}
}

// DaemonStatus holds the current daemon status.
type DaemonStatus struct {
	Running    bool
	PID        int
	StartTime  time.Time
	Uptime     time.Duration
	WebPort    int
	Connection model.ConnectionStatus
	Jobs       []JobStatus
}

// Context is cancelled when the daemon stops. Servers started alongside use it.
func (d *Daemon) Context() context.Context {
	return d.ctx
}
