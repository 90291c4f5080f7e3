// Package registry parses plugin hook manifests into typed hook definitions
// and indexes them by event.
//
// Each plugin root is searched for han-plugin.yml, han-plugin.yaml or
// han-plugin.toml (first found wins), falling back to the host's
// hooks/hooks.json. Invalid hooks are dropped with a warning; a manifest that
// fails to parse drops only that plugin's hooks. Building a registry never
// fails.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/plugin"
)

// Registry holds the hook definitions of all resolved plugins.
// A Registry is read-only after Build.
type Registry struct {
	all      []*hooks.Definition
	byRef    map[string]*hooks.Definition
	byEvent  map[hooks.Event][]*hooks.Definition
	warnings []string
}

// Build loads the manifests of all plugins.
func Build(ctx context.Context, plugins []plugin.Plugin) *Registry {
	l := log.FromContext(ctx)
	var defs []*hooks.Definition
	var warnings []string

	for _, p := range plugins {
		pd, pw, err := LoadPlugin(p)
		for _, w := range pw {
			l.Warn("dropping hook", "reason", w)
		}
		warnings = append(warnings, pw...)
		if err != nil {
			l.Warn("dropping plugin hooks", "plugin", p.Name, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", p.Name, err))
			continue
		}
		if pd == nil {
			l.Debug("plugin has no hook manifest", "plugin", p.Name, "root", p.Root)
		}
		defs = append(defs, pd...)
	}

	r := newRegistry(defs, warnings)

	for _, d := range r.all {
		for _, dep := range d.DependsOn {
			if _, ok := r.byRef[dep]; !ok {
				w := fmt.Sprintf("%s: depends on unknown hook %s", d.Ref(), dep)
				l.Warn("unknown dependency", "hook", d.Ref(), "dependsOn", dep)
				r.warnings = append(r.warnings, w)
			}
		}
	}

	return r
}

// New creates a registry from already-parsed definitions.
// Definitions with duplicate refs keep the first occurrence.
func New(defs []*hooks.Definition) *Registry {
	return newRegistry(defs, nil)
}

func newRegistry(defs []*hooks.Definition, warnings []string) *Registry {
	r := &Registry{
		byRef:    make(map[string]*hooks.Definition, len(defs)),
		byEvent:  make(map[hooks.Event][]*hooks.Definition),
		warnings: warnings,
	}

	for _, d := range defs {
		if _, dup := r.byRef[d.Ref()]; dup {
			r.warnings = append(r.warnings, fmt.Sprintf("%s: duplicate hook", d.Ref()))
			continue
		}
		r.byRef[d.Ref()] = d
		r.all = append(r.all, d)
	}

	sort.Slice(r.all, func(i, j int) bool { return r.all[i].Ref() < r.all[j].Ref() })

	for _, d := range r.all {
		for _, e := range d.Events {
			r.byEvent[e] = append(r.byEvent[e], d)
		}
	}

	return r
}

// LoadPlugin parses one plugin's manifest. It returns nil definitions and a
// nil error when the plugin has no manifest. The error is non-nil only when
// the manifest exists but cannot be read or parsed.
func LoadPlugin(p plugin.Plugin) ([]*hooks.Definition, []string, error) {
	path := plugin.FindManifest(p.Root)
	if path == "" {
		if hp := hostHooksPath(p.Root); hp != "" {
			return readHostHooks(p, hp)
		}
		return nil, nil, nil
	}

	m, err := readManifest(path)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(m.Hooks))
	for name := range m.Hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*hooks.Definition, 0, len(names))
	var warnings []string
	for _, name := range names {
		d, err := buildDefinition(p, name, m.Hooks[name])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s/%s: %v", p.Name, name, err))
			continue
		}
		defs = append(defs, d)
	}

	return defs, warnings, nil
}

// buildDefinition validates a raw hook and converts it to a Definition.
func buildDefinition(p plugin.Plugin, name string, raw rawHook) (*hooks.Definition, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid hook name %q", name)
	}

	eventNames := splitPipes(append(append([]string{}, raw.Event...), raw.Events...))
	if len(eventNames) == 0 {
		return nil, fmt.Errorf("no event binding")
	}
	var events []hooks.Event
	for _, en := range eventNames {
		e, err := hooks.ParseEvent(en)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	command := strings.TrimSpace(raw.Command)
	if command == "" {
		return nil, fmt.Errorf("no command")
	}

	var tools []string
	for _, t := range splitPipes(raw.ToolFilter) {
		if t == "*" {
			tools = nil
			break
		}
		tools = append(tools, t)
	}

	globs := append(append([]string{}, raw.FileFilter...), raw.IfChanged...)
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid glob %q", g)
		}
	}

	var timeout time.Duration
	ms := raw.TimeoutMs
	if ms == nil {
		ms = raw.Timeout
	}
	if ms != nil {
		if *ms < 0 {
			return nil, fmt.Errorf("negative timeout %dms", *ms)
		}
		timeout = time.Duration(*ms) * time.Millisecond
	}

	var deps []string
	for _, dep := range raw.DependsOn {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		if !strings.Contains(dep, "/") {
			dep = p.Name + "/" + dep
		}
		deps = append(deps, dep)
	}

	return &hooks.Definition{
		Name:        name,
		Plugin:      p.Name,
		PluginRoot:  p.Root,
		Events:      events,
		Command:     command,
		Description: raw.Description,
		ToolFilter:  tools,
		FileFilter:  globs,
		DirsWith:    raw.DirsWith,
		DirTest:     strings.TrimSpace(raw.DirTest),
		Timeout:     timeout,
		DependsOn:   deps,
		Cache:       raw.Cache == nil || *raw.Cache,
	}, nil
}

// ForEvent returns the hooks bound to e, sorted by ref.
func (r *Registry) ForEvent(e hooks.Event) []*hooks.Definition {
	return r.byEvent[e]
}

// Lookup returns the hook with the given plugin/name ref.
func (r *Registry) Lookup(ref string) (*hooks.Definition, bool) {
	d, ok := r.byRef[ref]
	return d, ok
}

// All returns every hook, sorted by ref.
func (r *Registry) All() []*hooks.Definition {
	return r.all
}

// Refs returns the refs of all hooks, sorted.
func (r *Registry) Refs() []string {
	refs := make([]string, len(r.all))
	for i, d := range r.all {
		refs[i] = d.Ref()
	}
	return refs
}

// Warnings returns the reasons hooks or plugins were dropped.
func (r *Registry) Warnings() []string {
	return r.warnings
}

// Only returns a registry restricted to the given refs. Unknown refs are
// ignored; callers validate them with Lookup first.
func (r *Registry) Only(refs []string) *Registry {
	keep := make(map[string]bool, len(refs))
	for _, ref := range refs {
		keep[ref] = true
	}
	var defs []*hooks.Definition
	for _, d := range r.all {
		if keep[d.Ref()] {
			defs = append(defs, d)
		}
	}
	out := newRegistry(defs, nil)
	out.warnings = r.warnings
	return out
}
