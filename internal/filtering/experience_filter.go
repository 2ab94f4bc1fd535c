package filtering

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spigell/talento-chat/internal/positions"
)

type experienceFilter struct {
	years   int
	enabled bool
	reason  string
}

// NewExperience keeps positions that ask for at most years of experience.
// A negative value disables the filter.
func NewExperience(years int) Filter {
	f := &experienceFilter{years: years, enabled: years >= 0}
	if !f.enabled {
		f.reason = "experience not set"
	}
	return f
}

func (f *experienceFilter) Name() string { return "experience" }

func (f *experienceFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *experienceFilter) IsEnabled() bool { return f.enabled }

func (f *experienceFilter) Validate() error {
	if f.years > 60 {
		return fmt.Errorf("experience of %d years is not realistic", f.years)
	}
	return nil
}

func (f *experienceFilter) Apply(_ context.Context, p *positions.Positions) (*positions.Positions, Step, error) {
	initial := p.Len()
	kept, dropped := p.Keep(func(position *positions.Position) bool {
		return position.Requirements.ExperienceYears <= f.years
	})

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *experienceFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"max_years": strconv.Itoa(f.years)},
	}
}
