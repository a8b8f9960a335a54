package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/user/proxydeck/internal/model"
)

const (
	// PIDFileName is written to the data dir while the daemon runs.
	PIDFileName = "proxydeck.pid"
	// StatusFileName holds the last serialized DaemonStatus.
	StatusFileName = "status.json"
)

// CheckRunning checks if the daemon is already running.
func CheckRunning(dataDir string) (bool, int) {
	data, err := os.ReadFile(filepath.Join(dataDir, PIDFileName))
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}

	// Signal 0 probes for existence; EPERM still means the process is alive.
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return false, 0
	}

	return true, pid
}

// SendStop sends a stop signal to the running daemon.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	return nil
}

// ConnectionSummary is the last scheduled connection check.
type ConnectionSummary struct {
	State     model.ConnectionState `json:"state"`
	Message   string                `json:"message"`
	CheckedAt string                `json:"checked_at,omitempty"`
}

// StatusFile holds serialized daemon status.
type StatusFile struct {
	Running    bool               `json:"running"`
	PID        int                `json:"pid"`
	StartTime  string             `json:"start_time"`
	Uptime     string             `json:"uptime"`
	WebPort    int                `json:"web_port,omitempty"`
	Connection *ConnectionSummary `json:"connection,omitempty"`
	Jobs       []JobStatus        `json:"jobs"`
}

// WriteStatusFile writes the daemon status to a file.
func WriteStatusFile(dataDir string, status *DaemonStatus) error {
	sf := StatusFile{
		Running:   status.Running,
		PID:       status.PID,
		StartTime: status.StartTime.Format("2006-01-02 15:04:05"),
		Uptime:    status.Uptime.Round(time.Second).String(),
		WebPort:   status.WebPort,
		Jobs:      status.Jobs,
	}
	if status.Connection.State != "" && status.Connection.State != model.ConnectionUnknown {
		sf.Connection = &ConnectionSummary{
			State:   status.Connection.State,
			Message: status.Connection.Message,
		}
		if !status.Connection.CheckedAt.IsZero() {
			sf.Connection.CheckedAt = status.Connection.CheckedAt.Format("2006-01-02 15:04:05")
		}
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dataDir, StatusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadStatusFile reads the daemon status from a file.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, StatusFileName))
	if err != nil {
		return nil, err
	}

	var sf StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	return &sf, nil
}
