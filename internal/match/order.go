package match

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/raphi011/han/internal/hooks"
)

// ErrDependencyCycle is wrapped by every CycleError.
var ErrDependencyCycle = errors.New("dependency cycle")

// CycleError reports hooks whose dependsOn edges form a cycle.
type CycleError struct {
	Cycle []string // refs, first repeated at the end
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDependencyCycle, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}

// orderMatches sorts matches so every match comes after the matches of the
// hooks it depends on. Among ready matches the smallest plugin/name/dir goes
// first, so the order is deterministic. Dependencies on hooks that did not
// match are ignored.
func orderMatches(ms []Match) ([]Match, error) {
	n := len(ms)
	indeg := make([]int, n)
	next := make([][]int, n) // prerequisite -> dependents

	byRef := make(map[string][]int)
	for i, m := range ms {
		byRef[m.Hook.Ref()] = append(byRef[m.Hook.Ref()], i)
	}
	for i, m := range ms {
		for _, dep := range m.Hook.DependsOn {
			for _, j := range byRef[dep] {
				next[j] = append(next[j], i)
				indeg[i]++
			}
		}
	}

	var ready []int
	for i := range ms {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]Match, 0, n)
	for len(ready) > 0 {
		slices.SortFunc(ready, func(a, b int) int { return compareMatch(ms[a], ms[b]) })
		i := ready[0]
		ready = ready[1:]
		out = append(out, ms[i])
		for _, k := range next[i] {
			indeg[k]--
			if indeg[k] == 0 {
				ready = append(ready, k)
			}
		}
	}

	if len(out) < n {
		var remaining []*hooks.Definition
		for i := range ms {
			if indeg[i] > 0 {
				remaining = append(remaining, ms[i].Hook)
			}
		}
		return nil, &CycleError{Cycle: findCycle(remaining)}
	}
	return out, nil
}

// CheckCycles reports the first dependency cycle among defs, or nil.
func CheckCycles(defs []*hooks.Definition) error {
	ms := make([]Match, len(defs))
	for i, d := range defs {
		ms[i] = Match{Hook: d, Dir: "."}
	}
	_, err := orderMatches(ms)
	return err
}

// findCycle walks dependencies among hooks left over by Kahn's algorithm.
// Every leftover hook has a leftover prerequisite, so the walk must repeat.
func findCycle(defs []*hooks.Definition) []string {
	left := make(map[string]*hooks.Definition, len(defs))
	for _, d := range defs {
		left[d.Ref()] = d
	}
	slices.SortFunc(defs, func(a, b *hooks.Definition) int { return strings.Compare(a.Ref(), b.Ref()) })

	seen := make(map[string]int)
	var path []string
	cur := defs[0]
	for {
		if at, ok := seen[cur.Ref()]; ok {
			return append(path[at:], cur.Ref())
		}
		seen[cur.Ref()] = len(path)
		path = append(path, cur.Ref())

		var nextDef *hooks.Definition
		for _, dep := range slices.Sorted(slices.Values(cur.DependsOn)) {
			if d, ok := left[dep]; ok {
				nextDef = d
				break
			}
		}
		if nextDef == nil {
			return path
		}
		cur = nextDef
	}
}

func compareMatch(a, b Match) int {
	if c := strings.Compare(a.Hook.Plugin, b.Hook.Plugin); c != 0 {
		return c
	}
	if c := strings.Compare(a.Hook.Name, b.Hook.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Dir, b.Dir)
}
