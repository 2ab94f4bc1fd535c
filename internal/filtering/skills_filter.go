package filtering

import (
	"context"
	"strings"

	"github.com/spigell/talento-chat/internal/positions"
)

type skillsFilter struct {
	skills  []string
	enabled bool
	reason  string
}

// NewSkills creates a filter that keeps positions requiring at least one of skills.
// Without skills the filter is disabled.
func NewSkills(skills []string) Filter {
	cleaned := make([]string, 0, len(skills))
	for _, skill := range skills {
		if skill = strings.TrimSpace(skill); skill != "" {
			cleaned = append(cleaned, skill)
		}
	}

	f := &skillsFilter{skills: cleaned, enabled: len(cleaned) > 0}
	if !f.enabled {
		f.reason = "no skills requested"
	}
	return f
}

func (f *skillsFilter) Name() string { return "skills" }

func (f *skillsFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *skillsFilter) IsEnabled() bool { return f.enabled }

func (f *skillsFilter) Validate() error { return nil }

func (f *skillsFilter) Apply(_ context.Context, p *positions.Positions) (*positions.Positions, Step, error) {
	initial := p.Len()
	kept, dropped := p.Keep(func(position *positions.Position) bool {
		for _, skill := range f.skills {
			if position.HasSkill(skill) {
				return true
			}
		}
		return false
	})

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *skillsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"skills": strings.Join(f.skills, ",")},
	}
}
