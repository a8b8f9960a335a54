package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/daemon"
	"github.com/user/proxydeck/internal/util"
	"github.com/user/proxydeck/internal/web"
)

var (
	foreground   bool
	startWebPort int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxydeck daemon",
	Long: `Start the web dashboard in the background.

While running, the daemon re-validates durable credentials every
connection_check_interval and records the result in status.json.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false,
		"Run in foreground instead of daemonizing")
	startCmd.Flags().IntVar(&startWebPort, "web-port", 0,
		"Port for the web dashboard (default from config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if running {
		fmt.Printf("Daemon is already running (PID %d)\n", pid)
		return nil
	}

	if startWebPort != 0 {
		cfg.WebPort = startWebPort
	}

	if foreground {
		return runForeground()
	}

	return runDaemon()
}

func runForeground() error {
	fmt.Println("Starting proxydeck in foreground mode...")

	ws, closeDB, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()

	d, err := daemon.New(cfg, ws)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	srv := web.NewServer(ws, cfg, cfg.WebPort)
	go func() {
		if err := srv.Start(); err != nil {
			util.Error("Web server error: %v", err)
			d.Stop()
		}
	}()

	fmt.Printf("Web dashboard: http://%s\n", net.JoinHostPort(cfg.WebHost, strconv.Itoa(cfg.WebPort)))
	fmt.Println("proxydeck daemon started. Press Ctrl+C to stop.")

	d.Wait()
	srv.Stop()

	return nil
}

func runDaemon() error {
	// Re-execute self in background
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"start", "--foreground", "--web-port", fmt.Sprintf("%d", cfg.WebPort)}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	procAttr := &os.ProcAttr{
		Dir:   "/",
		Env:   os.Environ(),
		Files: []*os.File{nil, logFile, logFile},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	proc, err := os.StartProcess(executable, append([]string{executable}, args...), procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	if err := proc.Release(); err != nil {
		util.Warn("Failed to release process: %v", err)
	}

	fmt.Printf("proxydeck daemon started (PID %d)\n", proc.Pid)
	fmt.Printf("Logs: %s\n", cfg.LogFile)
	fmt.Printf("Web dashboard: http://%s\n", net.JoinHostPort(cfg.WebHost, strconv.Itoa(cfg.WebPort)))

	return nil
}
