package view

import (
	"fmt"
	"strings"

	"github.com/spigell/talento-chat/internal/positions"
)

var availabilityLabels = map[string]string{
	"full_time":  "Tiempo completo",
	"part_time":  "Medio tiempo",
	"freelance":  "Freelance",
	"internship": "Prácticas",
}

// PositionDetail renders a position the way the landing page detail view does.
func PositionDetail(p *positions.Position) string {
	if p == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", p.Title)
	if p.Salary != "" {
		fmt.Fprintf(&b, "Salario: %s %s\n", p.Salary, p.Currency)
	}
	fmt.Fprintf(&b, "Vacantes: %d\n", p.SlotsAvailable)

	req := p.Requirements
	if len(req.Skills) > 0 {
		fmt.Fprintf(&b, "Habilidades: %s\n", strings.Join(req.Skills, ", "))
	}
	if req.Availability != "" {
		label, ok := availabilityLabels[strings.ToLower(req.Availability)]
		if !ok {
			label = req.Availability
		}
		fmt.Fprintf(&b, "Disponibilidad: %s\n", label)
	}
	if req.ExperienceYears > 0 {
		fmt.Fprintf(&b, "Experiencia: %d años\n", req.ExperienceYears)
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}

	return b.String()
}
