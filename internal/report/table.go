package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/colorprofile"
)

// Status labels used in the STATUS column.
const (
	statusPass    = "pass"
	statusFail    = "FAIL"
	statusTimeout = "TIMEOUT"
	statusCached  = "cached"
	statusSkipped = "skip"
)

func status(h HookReport) (string, lipgloss.Style) {
	switch {
	case h.Skipped:
		return statusSkipped, mutedStyle
	case h.TimedOut:
		return statusTimeout, errorStyle
	case h.Failed():
		return statusFail, errorStyle
	case h.CacheHit:
		return statusCached, successStyle
	default:
		return statusPass, successStyle
	}
}

// Rows returns the table rows of a summary: STATUS, HOOK, DIR, TIME, NOTE.
func Rows(s Summary) [][]string {
	rows := make([][]string, 0, len(s.Hooks))
	for _, h := range s.Hooks {
		st, style := status(h)

		var note string
		switch {
		case h.Skipped:
			note = h.SkipReason
		case h.Error != "":
			note = h.Error
		case h.Failed() && !h.TimedOut:
			note = fmt.Sprintf("exit %d", h.ExitCode)
		}

		elapsed := ""
		if !h.Skipped && !h.CacheHit {
			elapsed = (time.Duration(h.DurationMs) * time.Millisecond).String()
		}

		rows = append(rows, []string{
			style.Render(st),
			h.Plugin + "/" + h.Name,
			h.Dir,
			elapsed,
			note,
		})
	}
	return rows
}

// RenderTable renders rows under headers with aligned columns and no
// borders. Returns "" when there are no rows.
func RenderTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	t := table.New().
		Headers(headers...).
		Rows(rows...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		BorderRow(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.String() + "\n"
}

// Table renders a summary as text: the hook table, the failing hooks'
// output, warnings and a one-line verdict.
func Table(s Summary) string {
	var b strings.Builder

	if len(s.Hooks) == 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("no hooks matched %s", s.Event)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(RenderTable([]string{"STATUS", "HOOK", "DIR", "TIME", "NOTE"}, Rows(s)))

	for _, h := range s.Hooks {
		if !h.Failed() {
			continue
		}
		out := strings.TrimSpace(strings.TrimSpace(h.Stdout) + "\n" + strings.TrimSpace(h.Stderr))
		if out == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", errorStyle.Render(h.Plugin+"/"+h.Name+" ("+h.Dir+")"), out)
	}

	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "\n%s %s\n", warningStyle.Render("warning:"), w)
	}

	passed, failed, skipped := 0, 0, 0
	for _, h := range s.Hooks {
		switch {
		case h.Skipped:
			skipped++
		case h.Failed():
			failed++
		default:
			passed++
		}
	}
	verdict := successStyle.Render("passed")
	if !s.Passed {
		verdict = errorStyle.Render("failed")
	}
	fmt.Fprintf(&b, "\n%s: %d passed, %d failed, %d skipped\n", verdict, passed, failed, skipped)
	return b.String()
}

// WriteTable writes the text report to w, downsampling colors to what w
// supports (none for pipes and NO_COLOR).
func WriteTable(w io.Writer, s Summary) error {
	return WriteStyled(w, Table(s))
}

// WriteStyled writes rendered text to w with colors downsampled for w.
func WriteStyled(w io.Writer, text string) error {
	cw := colorprofile.NewWriter(w, os.Environ())
	_, err := io.WriteString(cw, text)
	return err
}
