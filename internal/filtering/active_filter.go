package filtering

import (
	"context"

	"github.com/spigell/talento-chat/internal/positions"
)

type activeFilter struct{}

// NewActive creates a filter that removes positions no longer open.
func NewActive() Filter {
	return &activeFilter{}
}

func (f *activeFilter) Name() string { return "active" }

func (f *activeFilter) Disable(string) {}

func (f *activeFilter) IsEnabled() bool { return true }

func (f *activeFilter) Validate() error { return nil }

func (f *activeFilter) Apply(_ context.Context, p *positions.Positions) (*positions.Positions, Step, error) {
	initial := p.Len()
	kept, dropped := p.Keep(func(position *positions.Position) bool {
		return position.IsActive
	})

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}
