package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/plugin"
)

// hostHooksFile is the host's native plugin hook file, read when a plugin has
// no han manifest.
const hostHooksFile = "hooks/hooks.json"

// readHostHooks converts hooks/hooks.json entries into definitions.
//
//	{"hooks": {"Stop": [{"matcher": "Edit|Write",
//	  "hooks": [{"type": "command", "command": "...", "timeout": 60}]}]}}
//
// Entries have no names in this format, so they are named <event>-<n>.
// Timeouts are in seconds. Only "command" entries are supported.
func readHostHooks(p plugin.Plugin, path string) ([]*hooks.Definition, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("parse %s: invalid JSON", hostHooksFile)
	}

	var defs []*hooks.Definition
	var warnings []string

	gjson.GetBytes(data, "hooks").ForEach(func(eventKey, groups gjson.Result) bool {
		event, err := hooks.ParseEvent(eventKey.String())
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: dropping %s hooks: %v", p.Name, eventKey.String(), err))
			return true
		}

		n := 0
		groups.ForEach(func(_, group gjson.Result) bool {
			var tools []string
			if m := group.Get("matcher").String(); m != "" && m != "*" {
				tools = splitPipes([]string{m})
			}

			group.Get("hooks").ForEach(func(_, h gjson.Result) bool {
				n++
				name := fmt.Sprintf("%s-%d", strings.ToLower(string(event)), n)
				if t := h.Get("type").String(); t != "" && t != "command" {
					warnings = append(warnings, fmt.Sprintf("%s/%s: unsupported hook type %q", p.Name, name, t))
					return true
				}
				cmd := strings.TrimSpace(h.Get("command").String())
				if cmd == "" {
					warnings = append(warnings, fmt.Sprintf("%s/%s: no command", p.Name, name))
					return true
				}
				defs = append(defs, &hooks.Definition{
					Name:       name,
					Plugin:     p.Name,
					PluginRoot: p.Root,
					Events:     []hooks.Event{event},
					Command:    cmd,
					ToolFilter: tools,
					Timeout:    time.Duration(h.Get("timeout").Float() * float64(time.Second)),
					Cache:      true,
				})
				return true
			})
			return true
		})
		return true
	})

	return defs, warnings, nil
}

// hostHooksPath returns the hooks.json path for a plugin root if present.
func hostHooksPath(root string) string {
	p := filepath.Join(root, hostHooksFile)
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p
	}
	return ""
}
