package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/web"
)

var webPort int

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the web dashboard",
	Long: `Start the proxydeck web dashboard.

The dashboard provides:
- Credential entry with an optional "remember me"
- Connection testing
- Batch proxy acquisition with a live log
- CSV and Markdown export of the current results
- The user-agent reference table

Examples:
  proxydeck web
  proxydeck web --port 9090`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().IntVarP(&webPort, "port", "p", 0, "Web server port (default from config)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	ws, closeDB, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()

	port := webPort
	if port == 0 {
		port = cfg.WebPort
	}

	fmt.Printf("Starting web server on http://%s\n", net.JoinHostPort(cfg.WebHost, strconv.Itoa(port)))
	fmt.Println("Press Ctrl+C to stop")

	srv := web.NewServer(ws, cfg, port)
	return srv.Start()
}
