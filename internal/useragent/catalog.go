// Package useragent groups the bundled user-agent table by platform.
package useragent

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/proxydeck/internal/model"
)

//go:embed agents.yaml
var bundled []byte

// Platforms in display order.
var Platforms = []string{"Windows", "macOS", "Linux", "iPhone", "iPad", "iPod", "Android"}

// Load parses a YAML list of user agents.
func Load(data []byte) ([]model.UserAgent, error) {
	var agents []model.UserAgent
	if err := yaml.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("failed to parse user agents: %w", err)
	}
	return agents, nil
}

// Bundled returns the embedded table, grouped.
func Bundled() ([]model.UserAgentGroup, error) {
	agents, err := Load(bundled)
	if err != nil {
		return nil, err
	}
	return Group(agents), nil
}

// Classify returns the platform for a, or "" when none applies.
// The first matching rule wins.
func Classify(a model.UserAgent) string {
	switch {
	case strings.Contains(a.OS, "Windows"):
		return "Windows"
	case strings.Contains(a.OS, "Mac OS X"):
		return "macOS"
	case strings.Contains(a.OS, "Linux"):
		return "Linux"
	case a.Device == "iPhone":
		return "iPhone"
	case a.Device == "iPad":
		return "iPad"
	case a.Device == "iPod":
		return "iPod"
	case strings.Contains(a.OS, "Android"):
		return "Android"
	}
	return ""
}

// Group buckets agents by platform and sorts each bucket by version, newest first.
// Every platform is present, possibly empty. Unclassified agents are dropped.
func Group(agents []model.UserAgent) []model.UserAgentGroup {
	buckets := make(map[string][]model.UserAgent, len(Platforms))
	for _, a := range agents {
		if p := Classify(a); p != "" {
			buckets[p] = append(buckets[p], a)
		}
	}

	groups := make([]model.UserAgentGroup, 0, len(Platforms))
	for _, p := range Platforms {
		list := buckets[p]
		sort.SliceStable(list, func(i, j int) bool {
			return leadingVersion(list[i].Version) > leadingVersion(list[j].Version)
		})
		groups = append(groups, model.UserAgentGroup{Platform: p, Agents: list})
	}
	return groups
}

// leadingVersion parses the numeric prefix of v ("128.0.6613" -> 128.0).
// Versions without one sort last.
func leadingVersion(v string) float64 {
	v = strings.TrimSpace(v)
	end, dot := 0, false
	for end < len(v) {
		c := v[end]
		if c == '.' && !dot {
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v[:end], "."), 64)
	if err != nil {
		return math.Inf(-1)
	}
	return f
}
