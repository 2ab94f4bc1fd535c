package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/talento-chat/internal/positions"
)

var knownAvailability = map[string]bool{
	"full_time":  true,
	"part_time":  true,
	"freelance":  true,
	"internship": true,
}

type availabilityFilter struct {
	availability string
}

// NewAvailability creates a filter that keeps positions with the given
// availability (full_time, part_time, freelance, internship). Empty disables it.
func NewAvailability(availability string) Filter {
	return &availabilityFilter{availability: strings.ToLower(strings.TrimSpace(availability))}
}

func (f *availabilityFilter) Name() string { return "availability" }

func (f *availabilityFilter) Disable(string) { f.availability = "" }

func (f *availabilityFilter) IsEnabled() bool { return f.availability != "" }

func (f *availabilityFilter) Validate() error {
	if !knownAvailability[f.availability] {
		return fmt.Errorf("unknown availability %q", f.availability)
	}
	return nil
}

func (f *availabilityFilter) Apply(_ context.Context, p *positions.Positions) (*positions.Positions, Step, error) {
	initial := p.Len()
	kept, dropped := p.Keep(func(position *positions.Position) bool {
		return strings.EqualFold(position.Requirements.Availability, f.availability)
	})

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}
