package doctor

import (
	"context"

	"github.com/raphi011/han/internal/engine"
	"github.com/raphi011/han/internal/output"
)

// Run performs diagnostic checks on the project and optionally fixes state
// issues. It returns every issue found, fixed or not.
func Run(ctx context.Context, p *engine.Project, fix bool) ([]Issue, error) {
	out := output.FromContext(ctx)
	stats := Stats{Plugins: len(p.Plugins), Hooks: len(p.Registry.All())}
	var allIssues []Issue

	// Category 1: plugin resolution
	out.Println("Checking plugins...")
	pluginIssues := checkPluginIssues(p)
	for i := range pluginIssues {
		pluginIssues[i].Category = CategoryPlugin
	}
	allIssues = append(allIssues, pluginIssues...)

	// Category 2: hook declarations
	out.Println("Checking hooks...")
	hookIssues := checkHookIssues(p)
	for i := range hookIssues {
		hookIssues[i].Category = CategoryHook
	}
	allIssues = append(allIssues, hookIssues...)

	// Category 3: checkpoints and cache
	out.Println("Checking state...")
	stateIssues := checkStateIssues(p, &stats)
	for i := range stateIssues {
		stateIssues[i].Category = CategoryState
	}
	allIssues = append(allIssues, stateIssues...)

	printSummary(out, stats)

	if len(allIssues) == 0 {
		out.Println("\n✓ No issues found")
		return nil, nil
	}

	out.Printf("\nFound %d issues:\n", len(allIssues))
	printIssuesByCategory(out, allIssues)

	fixable := 0
	for _, issue := range allIssues {
		if issue.FixAction != FixNone {
			fixable++
		}
	}

	if fix && fixable > 0 {
		out.Println("\nFixing...")
		_, err := fixAllIssues(ctx, p, allIssues)
		return allIssues, err
	}
	if fixable > 0 {
		out.Println("\nRun 'han doctor --fix' to repair.")
	}
	return allIssues, nil
}

// printSummary prints what was checked.
func printSummary(out *output.Printer, stats Stats) {
	out.Println()
	out.Printf("  ✓ %d plugins resolved\n", stats.Plugins)
	out.Printf("  ✓ %d hooks registered\n", stats.Hooks)
	out.Printf("  ✓ %d checkpoints stored\n", stats.Checkpoints)
	out.Printf("  ✓ %d cache entries valid\n", stats.CacheValid)
}

// printIssuesByCategory groups and prints issues.
func printIssuesByCategory(out *output.Printer, issues []Issue) {
	byCategory := make(map[IssueCategory][]Issue)
	for _, issue := range issues {
		byCategory[issue.Category] = append(byCategory[issue.Category], issue)
	}

	categoryNames := map[IssueCategory]string{
		CategoryPlugin: "Plugin issues",
		CategoryHook:   "Hook issues",
		CategoryState:  "State issues",
	}

	for _, cat := range []IssueCategory{CategoryPlugin, CategoryHook, CategoryState} {
		catIssues := byCategory[cat]
		if len(catIssues) == 0 {
			continue
		}

		out.Printf("\n%s:\n", categoryNames[cat])
		for _, issue := range catIssues {
			out.Printf("  • %s: %s\n", issue.Key, issue.Description)
		}
	}
}
