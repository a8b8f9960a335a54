package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/daemon"
	"github.com/user/proxydeck/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the proxydeck daemon state, the stored credentials and the last scheduled connection check.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)

	fmt.Println(titleStyle.Render("proxydeck Status"))

	fmt.Print(labelStyle.Render("Daemon: "))
	if running {
		fmt.Println(okStyle.Render(fmt.Sprintf("Running (PID %d)", pid)))
	} else {
		fmt.Println(failStyle.Render("Stopped"))
	}

	sf, err := daemon.ReadStatusFile(cfg.DataDir)
	if err == nil && running {
		fmt.Print(labelStyle.Render("Started: "))
		fmt.Println(valueStyle.Render(sf.StartTime))

		fmt.Print(labelStyle.Render("Uptime: "))
		fmt.Println(valueStyle.Render(sf.Uptime))

		if sf.WebPort != 0 {
			fmt.Print(labelStyle.Render("Dashboard: "))
			fmt.Println(valueStyle.Render(fmt.Sprintf("http://localhost:%d", sf.WebPort)))
		}
	}

	// Credentials
	ws, closeDB, err := openWorkspace()
	if err == nil {
		defer closeDB()
		creds := ws.Credentials()

		fmt.Println()
		fmt.Println(titleStyle.Render("Credentials"))
		fmt.Print(labelStyle.Render("Stored: "))
		if creds.Complete() {
			fmt.Println(valueStyle.Render(creds.Username))
		} else {
			fmt.Println(labelStyle.Render("none"))
		}
	}

	if sf == nil {
		return nil
	}

	if sf.Connection != nil {
		fmt.Println()
		fmt.Println(titleStyle.Render("Last Connection Check"))
		printConnection(model.ConnectionStatus{State: sf.Connection.State, Message: sf.Connection.Message})
		if sf.Connection.CheckedAt != "" {
			fmt.Printf("%s %s\n", labelStyle.Render("Checked:"), valueStyle.Render(sf.Connection.CheckedAt))
		}
	}

	if len(sf.Jobs) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Jobs"))

		for _, job := range sf.Jobs {
			statusStr := "idle"
			if job.Running {
				statusStr = "running"
			}
			line := fmt.Sprintf("  %s: %s (every %s, next: %s, errors: %d)",
				labelStyle.Render(job.Name),
				valueStyle.Render(statusStr),
				job.Interval,
				job.NextRun.Format("15:04:05"),
				job.ErrorCount)
			if job.LastError != "" {
				line += " " + failStyle.Render(job.LastError)
			}
			fmt.Println(line)
		}
	}

	return nil
}
