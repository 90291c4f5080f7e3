package engine

import (
	"context"

	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/match"
)

// Explanation is a dry-run of an event: what would be touched and which
// hooks would run, without executing anything or capturing checkpoints.
type Explanation struct {
	Touched []string
	Match   *match.Result
}

// Explain matches req without running hooks. A dependency cycle is returned
// as *match.CycleError.
func (p *Project) Explain(ctx context.Context, req Request) (*Explanation, error) {
	discard := func(msg string, args ...any) {
		log.FromContext(ctx).Debug(msg, args...)
	}
	touched, err := p.touchedPaths(ctx, req, discard)
	if err != nil {
		return nil, err
	}

	reg := p.Registry
	if len(req.Only) > 0 {
		reg = reg.Only(req.Only)
	}
	m := &match.Matcher{Registry: reg, Tools: p.Tools, Predicate: req.Predicate}
	res, err := m.Match(ctx, match.Context{
		Event:        req.Event,
		ToolName:     req.ToolName,
		TouchedPaths: touched,
		Root:         p.Root,
		Dir:          p.scopeDir(req.Scope),
	})
	if err != nil {
		return nil, err
	}
	return &Explanation{Touched: touched, Match: res}, nil
}
