package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/engine"
	"github.com/raphi011/han/internal/event"
	"github.com/raphi011/han/internal/history"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/output"
	"github.com/raphi011/han/internal/report"
)

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hook",
		Short:   "Run, inspect and explain plugin hooks",
		Aliases: []string{"h"},
		GroupID: GroupHooks,
		Example: `  han hook run Stop < payload.json     # Handle an event from the host
  han hook run Stop --format text       # Human-readable result table
  han hook list Stop                    # Hooks bound to Stop
  han hook explain PostToolUse --tool Edit --file main.go
  han hook history -n 20`,
	}

	cmd.AddCommand(newHookRunCmd())
	cmd.AddCommand(newHookListCmd())
	cmd.AddCommand(newHookExplainCmd())
	cmd.AddCommand(newHookHistoryCmd())

	return cmd
}

// requestFlags are the event fields that can be given on the command line.
// Flags override the stdin payload.
type requestFlags struct {
	dir        string
	scope      string
	tool       string
	files      []string
	session    string
	agent      string
	transcript string
	only       []string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "C", "", "Run as if started in this directory (default: payload cwd, then working directory)")
	cmd.Flags().StringVar(&f.scope, "scope", "", "Only match hooks in this directory, relative to the project root")
	cmd.Flags().StringVar(&f.tool, "tool", "", "Tool name that triggered the event")
	cmd.Flags().StringArrayVarP(&f.files, "file", "f", nil, "Touched file (repeatable); replaces change detection")
	cmd.Flags().StringVar(&f.session, "session", "", "Session id")
	cmd.Flags().StringVar(&f.agent, "agent", "", "Subagent id")
	cmd.Flags().StringVar(&f.transcript, "transcript", "", "Session transcript path")
	cmd.Flags().StringSliceVar(&f.only, "only", nil, "Only run these hooks (plugin/hook, repeatable)")
	cmd.RegisterFlagCompletionFunc("only", completeHookRefs)
}

// readPayload reads the event payload from the command's stdin.
func readPayload(cmd *cobra.Command) (*event.Payload, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		return event.FromStdin(f)
	}
	return event.Read(in)
}

// resolveEvent picks the event from the argument or the payload.
func resolveEvent(args []string, payload *event.Payload) (hooks.Event, error) {
	name := payload.EventName
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		return "", fmt.Errorf("no event given and the payload has no hook_event_name")
	}
	return parseEvent(name)
}

// buildRequest merges the payload with the flags. Flags win.
func (f *requestFlags) buildRequest(e hooks.Event, payload *event.Payload) engine.Request {
	req := engine.Request{
		Event:          e,
		ToolName:       payload.ToolName,
		ToolPaths:      payload.ToolPaths,
		Files:          payload.TouchedPaths,
		Scope:          f.scope,
		SessionID:      payload.SessionID,
		AgentID:        payload.AgentID,
		TranscriptPath: payload.TranscriptPath,
		Only:           f.only,
	}
	if f.tool != "" {
		req.ToolName = f.tool
	}
	if len(f.files) > 0 {
		req.Files = f.files
	}
	if f.session != "" {
		req.SessionID = f.session
	}
	if f.agent != "" {
		req.AgentID = f.agent
	}
	if f.transcript != "" {
		req.TranscriptPath = f.transcript
	}
	return req
}

// projectDir is the directory the project is loaded from.
func (f *requestFlags) projectDir(payload *event.Payload) string {
	if f.dir != "" {
		return f.dir
	}
	return payload.Cwd
}

func newHookRunCmd() *cobra.Command {
	var (
		rf          requestFlags
		noCache     bool
		noCheckpts  bool
		noFailFast  bool
		concurrency int
		format      string
	)

	cmd := &cobra.Command{
		Use:               "run [event]",
		Short:             "Handle one lifecycle event",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeEvents,
		Long: `Handle one lifecycle event.

The host payload is read from stdin (skipped when stdin is a terminal); the
event name comes from the argument or the payload's hook_event_name.

Gating events (PreToolUse, UserPromptSubmit, Stop, SubagentStop) print an
allow/deny decision; every other event prints a summary of the hooks run.

Exit codes:
  0  allowed, or every hook passed
  1  a hook failed (non-gating events)
  2  denied; the reason is also written to stderr
  3  hook configuration error (dependency cycle)`,
		Example: `  han hook run Stop < payload.json
  han hook run PostToolUse --tool Edit --file src/main.go
  han hook run Stop --session abc --only go/lint --format text
  han hook run SessionStart --session abc     # capture a checkpoint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if format != "json" && format != "text" {
				return fmt.Errorf("invalid --format %q: must be json or text", format)
			}

			payload, err := readPayload(cmd)
			if err != nil {
				return err
			}
			e, err := resolveEvent(args, payload)
			if err != nil {
				return err
			}

			p, err := loadProject(ctx, rf.projectDir(payload))
			if err != nil {
				log.FromContext(ctx).Warn("project not loaded", "event", e, "error", err)
				return finish(cmd, engine.ErrorOutcome(e, err), format)
			}
			if err := checkRefs(p, rf.only); err != nil {
				return err
			}

			cfg := *p.Config
			if noCache {
				cfg.Cache.Enabled = false
			}
			if noCheckpts {
				cfg.Checkpoints.Enabled = false
			}
			if noFailFast {
				cfg.Execution.FailFast = false
			}
			if concurrency > 0 {
				cfg.Execution.Concurrency = concurrency
			}
			p.Config = &cfg

			outcome, err := p.Run(ctx, rf.buildRequest(e, payload))
			if err != nil {
				log.FromContext(ctx).Warn("event not handled", "event", e, "error", err)
				outcome = engine.ErrorOutcome(e, err)
			}
			return finish(cmd, outcome, format)
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Run every hook even if its inputs are unchanged")
	cmd.Flags().BoolVar(&noCheckpts, "no-checkpoints", false, "Validate all tracked files instead of the session's changes")
	cmd.Flags().BoolVar(&noFailFast, "no-fail-fast", false, "Keep starting hooks after a failure")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Maximum parallel hooks (default from config)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or text")
	cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// finish prints the outcome and maps it to the process exit code.
func finish(cmd *cobra.Command, o *engine.Outcome, format string) error {
	if err := writeOutcome(output.FromContext(cmd.Context()), o, format); err != nil {
		return err
	}
	if o.Blocked() {
		fmt.Fprintln(cmd.ErrOrStderr(), o.Decision.Reason)
	}
	if o.ExitCode != engine.ExitOK {
		return &exitCodeError{code: o.ExitCode}
	}
	return nil
}

// writeOutcome prints the decision (gating events) or the summary.
func writeOutcome(out *output.Printer, o *engine.Outcome, format string) error {
	if format == "text" {
		return report.WriteTable(out.Writer(), o.Summary)
	}
	if o.Gating {
		return out.JSON(o.Decision)
	}
	return out.JSON(o.Summary)
}

func newHookListCmd() *cobra.Command {
	var (
		dir        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:               "list [event]",
		Short:             "List registered hooks",
		Aliases:           []string{"ls"},
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeEvents,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}

			defs := p.Registry.All()
			if len(args) > 0 {
				e, err := parseEvent(args[0])
				if err != nil {
					return err
				}
				defs = p.Registry.ForEvent(e)
			}

			if jsonOutput {
				return out.JSON(hookListing(defs))
			}
			if len(defs) == 0 {
				out.Println("No hooks registered")
				return nil
			}

			rows := make([][]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, []string{
					d.Ref(),
					joinEvents(d.Events),
					strings.Join(d.FileFilter, " "),
					strings.Join(d.DirsWith, " "),
					strings.Join(d.DependsOn, " "),
				})
			}
			return report.WriteStyled(out.Writer(), report.RenderTable([]string{"HOOK", "EVENTS", "FILES", "DIRS WITH", "DEPENDS ON"}, rows))
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// hookInfo is the JSON form of a hook definition.
type hookInfo struct {
	Ref         string   `json:"ref"`
	Description string   `json:"description,omitempty"`
	Events      []string `json:"events"`
	Command     string   `json:"command"`
	ToolFilter  []string `json:"toolFilter,omitempty"`
	FileFilter  []string `json:"fileFilter,omitempty"`
	DirsWith    []string `json:"dirsWith,omitempty"`
	DirTest     string   `json:"dirTest,omitempty"`
	TimeoutMs   int64    `json:"timeoutMs,omitempty"`
	DependsOn   []string `json:"dependsOn,omitempty"`
	Cache       bool     `json:"cache"`
	PluginRoot  string   `json:"pluginRoot"`
}

func hookListing(defs []*hooks.Definition) []hookInfo {
	out := make([]hookInfo, 0, len(defs))
	for _, d := range defs {
		events := make([]string, len(d.Events))
		for i, e := range d.Events {
			events[i] = string(e)
		}
		out = append(out, hookInfo{
			Ref:         d.Ref(),
			Description: d.Description,
			Events:      events,
			Command:     d.Command,
			ToolFilter:  d.ToolFilter,
			FileFilter:  d.FileFilter,
			DirsWith:    d.DirsWith,
			DirTest:     d.DirTest,
			TimeoutMs:   d.Timeout.Milliseconds(),
			DependsOn:   d.DependsOn,
			Cache:       d.Cache,
			PluginRoot:  d.PluginRoot,
		})
	}
	return out
}

func joinEvents(events []hooks.Event) string {
	s := make([]string, len(events))
	for i, e := range events {
		s[i] = string(e)
	}
	return strings.Join(s, ",")
}

func newHookExplainCmd() *cobra.Command {
	var rf requestFlags

	cmd := &cobra.Command{
		Use:               "explain [event]",
		Short:             "Show which hooks an event would run, without running them",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeEvents,
		Long: `Show which hooks an event would run, without running them.

Touched files are determined exactly as 'han hook run' does, but no
checkpoint is captured and no hook command is executed. dirTest predicates
are still evaluated.`,
		Example: `  han hook explain Stop --session abc
  han hook explain PostToolUse --tool Write --file web/app.ts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			payload, err := readPayload(cmd)
			if err != nil {
				return err
			}
			e, err := resolveEvent(args, payload)
			if err != nil {
				return err
			}
			p, err := loadProject(ctx, rf.projectDir(payload))
			if err != nil {
				return err
			}
			if err := checkRefs(p, rf.only); err != nil {
				return err
			}

			ex, err := p.Explain(ctx, rf.buildRequest(e, payload))
			if err != nil {
				return err
			}
			return writeExplanation(out, e, ex)
		},
	}

	rf.register(cmd)
	return cmd
}

func writeExplanation(out *output.Printer, e hooks.Event, ex *engine.Explanation) error {
	out.Printf("%s: %d touched files\n", e, len(ex.Touched))
	for _, f := range ex.Touched {
		out.Printf("  %s\n", f)
	}
	out.Println()

	res := ex.Match
	if len(res.Matches) == 0 && len(res.Skipped) == 0 && len(res.Rejected) == 0 {
		out.Printf("No hooks bound to %s\n", e)
		return nil
	}

	var rows [][]string
	for i, m := range res.Matches {
		files := fmt.Sprintf("%d", len(m.Files))
		if len(m.Hook.FileFilter) == 0 {
			files = "-"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), m.Hook.Ref(), m.Dir, files, "run"})
	}
	for _, m := range res.Skipped {
		rows = append(rows, []string{"", m.Hook.Ref(), m.Dir, "0", "skip: " + hooks.SkipNoFiles})
	}
	for _, r := range res.Rejected {
		dir := r.Dir
		if dir == "" {
			dir = "-"
		}
		rows = append(rows, []string{"", r.Hook.Ref(), dir, "", "not matched: " + r.Reason})
	}
	return report.WriteStyled(out.Writer(), report.RenderTable([]string{"#", "HOOK", "DIR", "FILES", "ACTION"}, rows))
}

func newHookHistoryCmd() *cobra.Command {
	var (
		dir        string
		n          int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			records, err := history.Recent(p.HistoryPath(), n)
			if err != nil {
				return err
			}
			if jsonOutput {
				return out.JSON(records)
			}
			return writeHistory(out.Writer(), records)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().IntVarP(&n, "number", "n", 20, "Number of entries to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func writeHistory(w io.Writer, records []history.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No hooks executed yet")
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := "pass"
		switch {
		case r.TimedOut:
			status = "TIMEOUT"
		case !r.Passed():
			status = fmt.Sprintf("FAIL (%d)", r.ExitCode)
		case r.CacheHit:
			status = "cached"
		}
		rows = append(rows, []string{
			r.Time.Local().Format("2006-01-02 15:04:05"),
			r.Event,
			r.Plugin + "/" + r.Hook,
			r.Dir,
			status,
			fmt.Sprintf("%dms", r.DurationMs),
		})
	}
	return report.WriteStyled(w, report.RenderTable([]string{"TIME", "EVENT", "HOOK", "DIR", "STATUS", "DURATION"}, rows))
}
