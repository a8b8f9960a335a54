package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/provision"
	"github.com/user/proxydeck/internal/report"
	"github.com/user/proxydeck/internal/tui"
)

var (
	fetchZip           string
	fetchSession       int
	fetchCount         int
	fetchConcurrency   int
	fetchStopOnFailure bool
	fetchOutput        string
	fetchUsername      string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Acquire a batch of proxy endpoints",
	Long: `Acquire a batch of rotating proxy endpoints and print what each one
looks like from the outside.

Every endpoint shares one templated username, so --session pins all of them
to sticky sessions of that many minutes and --zip narrows them to one US zip.

Examples:
  proxydeck fetch --count 5
  proxydeck fetch --zip 90210 --session 30 --count 10
  proxydeck fetch --count 20 --concurrency 4 -o proxies.csv`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchZip, "zip", "", "5-digit US zip code")
	fetchCmd.Flags().IntVar(&fetchSession, "session", 0,
		fmt.Sprintf("Sticky session length in minutes (e.g. %v)", model.SessionDurationChoices))
	fetchCmd.Flags().IntVarP(&fetchCount, "count", "n", 0, "Number of endpoints (default from config)")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 0, "Probes in flight (default from config)")
	fetchCmd.Flags().BoolVar(&fetchStopOnFailure, "stop-on-failure", false, "Stop issuing probes after the first failure")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Write results to a file (.csv, otherwise Markdown)")
	fetchCmd.Flags().StringVarP(&fetchUsername, "username", "u", "", "Provider username (prompts for password)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("concurrency") {
		cfg.Acquisition.Concurrency = fetchConcurrency
	}
	if cmd.Flags().Changed("stop-on-failure") {
		cfg.Acquisition.StopOnFirstFailure = fetchStopOnFailure
	}

	ws, closeDB, err := workspaceFor(fetchUsername)
	if err != nil {
		return err
	}
	defer closeDB()

	count := fetchCount
	if count == 0 {
		count = cfg.Acquisition.DefaultEndpoints
	}

	req := model.AcquisitionRequest{
		ZipCode:                fetchZip,
		SessionDurationMinutes: fetchSession,
		EndpointCount:          count,
	}
	if err := req.Validate(cfg.Acquisition.MaxEndpoints); err != nil {
		return err
	}

	ws.Subscribe(func(ev provision.Event) {
		switch ev.Type {
		case provision.EventStarted, provision.EventMessage:
			fmt.Println(labelStyle.Render("› " + ev.Message))
		case provision.EventEntry:
			row := report.Row(*ev.Entry)
			if ev.Entry.Failure != nil {
				fmt.Printf("  %s %s\n", failStyle.Render("#"+row[0]), ev.Entry.Failure.Reason)
			} else {
				fmt.Printf("  %s %s %s\n", okStyle.Render("#"+row[0]), valueStyle.Render(row[2]), row[4])
			}
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := ws.Fetch(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(tui.RenderTable(outcome))

	if fetchOutput != "" {
		if err := report.WriteFile(fetchOutput, outcome); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", fetchOutput)
	}

	if outcome.State == model.AcquisitionCompletedWithErrors {
		return fmt.Errorf("%d of %d probes failed", len(outcome.Failures()), req.EndpointCount)
	}
	return nil
}
