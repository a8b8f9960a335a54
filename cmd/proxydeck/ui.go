package main

import (
	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/tui"
)

var (
	uiZip     string
	uiSession int
	uiCount   int
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Launch an interactive terminal dashboard for the stored credentials.

Keys:
  t  test the connection
  f  fetch a batch with the request given by the flags
  r  refresh
  q  quit`,
	RunE: runUI,
}

func init() {
	uiCmd.Flags().StringVar(&uiZip, "zip", "", "5-digit US zip code")
	uiCmd.Flags().IntVar(&uiSession, "session", 0, "Sticky session length in minutes")
	uiCmd.Flags().IntVarP(&uiCount, "count", "n", 0, "Number of endpoints (default from config)")
}

func runUI(cmd *cobra.Command, args []string) error {
	ws, closeDB, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()

	count := uiCount
	if count == 0 {
		count = cfg.Acquisition.DefaultEndpoints
	}

	app := tui.NewApp(ws, cfg, model.AcquisitionRequest{
		ZipCode:                uiZip,
		SessionDurationMinutes: uiSession,
		EndpointCount:          count,
	})
	return app.Run()
}
