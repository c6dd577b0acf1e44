package orchestrator

import (
	"fmt"
	"strings"
)

// heuristicCommands maps request keywords to host commands. Checked in
// order so more specific phrases win over generic ones.
var heuristicCommands = []struct {
	keywords []string
	command  string
}{
	{[]string{"disk", "space"}, "df -h"},
	{[]string{"disk", "usage"}, "df -h"},
	{[]string{"memory"}, "free -m"},
	{[]string{"list", "files"}, "ls -la"},
	{[]string{"processes"}, "ps aux"},
	{[]string{"uptime"}, "uptime"},
	{[]string{"load"}, "uptime"},
	{[]string{"network"}, "ip addr"},
	{[]string{"ip", "address"}, "ip addr"},
	{[]string{"date"}, "date"},
	{[]string{"time"}, "date"},
	{[]string{"hostname"}, "hostname"},
	{[]string{"kernel"}, "uname -a"},
	{[]string{"logged", "in"}, "who"},
	{[]string{"open", "ports"}, "ss -tlnp"},
}

// HeuristicHelper is the in-process interpretation fallback used when
// the provider and the helper binary are both unavailable. It maps
// common operator phrasings to their host commands and fails for
// anything it does not recognize, letting the chain degrade.
func HeuristicHelper(request string) (string, error) {
	lowered := strings.ToLower(request)

	for _, h := range heuristicCommands {
		matched := true
		for _, kw := range h.keywords {
			if !strings.Contains(lowered, kw) {
				matched = false
				break
			}
		}
		if matched {
			return h.command, nil
		}
	}

	return "", fmt.Errorf("no heuristic interpretation for %q", request)
}
