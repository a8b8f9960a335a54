package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/useragent"
)

var (
	uaPlatform string
	uaJSON     bool
)

var userAgentsCmd = &cobra.Command{
	Use:   "useragents",
	Short: "List the bundled user-agent reference table",
	Long: `List browser user-agent strings grouped by platform
(Windows, macOS, Linux, iPhone, iPad, iPod, Android), newest version first.

Examples:
  proxydeck useragents
  proxydeck useragents --platform android
  proxydeck useragents --json`,
	RunE: runUserAgents,
}

func init() {
	userAgentsCmd.Flags().StringVar(&uaPlatform, "platform", "", "Only show one platform")
	userAgentsCmd.Flags().BoolVar(&uaJSON, "json", false, "Print JSON")
}

func runUserAgents(cmd *cobra.Command, args []string) error {
	groups, err := useragent.Bundled()
	if err != nil {
		return err
	}

	if uaPlatform != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if strings.EqualFold(g.Platform, uaPlatform) {
				filtered = append(filtered, g)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("unknown platform %q (want one of %s)", uaPlatform, strings.Join(useragent.Platforms, ", "))
		}
		groups = filtered
	}

	if uaJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	for _, g := range groups {
		fmt.Println(titleStyle.Render(fmt.Sprintf("%s User Agents (%d)", g.Platform, len(g.Agents))))
		for _, a := range g.Agents {
			fmt.Printf("  %s %s\n",
				valueStyle.Render(fmt.Sprintf("%s %s", a.Browser, a.Version)),
				labelStyle.Render(a.UserAgent))
		}
		fmt.Println()
	}
	return nil
}
