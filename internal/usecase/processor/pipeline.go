package processor

import (
	"context"
	"strings"
	"time"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"
)

// Pipeline is an ordered list of actions compiled once from configuration.
// It has no mutators and is shared by all jobs of its task.
type Pipeline struct {
	name    string
	actions []operations.Action
}

// Compile builds every action of raw in order. The first failure aborts with
// a ConfigInitError carrying the index of the offending action.
func Compile(name string, raw [][]string, deps operations.Deps) (*Pipeline, error) {
	actions := make([]operations.Action, 0, len(raw))

	for i, params := range raw {
		a, err := operations.Build(params, deps)
		if err != nil {
			return nil, &domain.ConfigInitError{Task: name, Index: i, Err: err}
		}
		actions = append(actions, a)
	}

	return &Pipeline{name: name, actions: actions}, nil
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Len() int { return len(p.actions) }

func (p *Pipeline) Kinds() []operations.Kind {
	kinds := make([]operations.Kind, len(p.actions))
	for i, a := range p.actions {
		kinds[i] = a.Kind()
	}
	return kinds
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.actions))
	for i, a := range p.actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, " -> ")
}

// Run executes the actions strictly in order. On failure it returns the
// index of the failing action; later actions do not run.
func (p *Pipeline) Run(ctx context.Context, scope operations.Scope, img domain.ImageData) (domain.ImageData, int, error) {
	for i, a := range p.actions {
		start := time.Now()

		out, err := a.Run(ctx, scope, img)
		if err != nil {
			return img, i, err
		}

		scope.Logger.Debug().
			Int("step", i).
			Str("action", a.String()).
			Dur("duration", time.Since(start)).
			Msg("Action finished")

		img = out
	}

	return img, -1, nil
}
