package positions

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Positions struct {
	Items []*Position
}

type Position struct {
	ID             string       `json:"id,omitempty"`
	Title          string       `json:"title,omitempty"`
	Description    string       `json:"description,omitempty"`
	Salary         string       `json:"salary,omitempty"`
	Currency       string       `json:"currency,omitempty"`
	SlotsAvailable int          `json:"slots_available,omitempty"`
	Requirements   Requirements `json:"requirements,omitempty"`
	IsActive       bool         `json:"is_active,omitempty"`
	CreatedAt      string       `json:"created_at,omitempty"`
}

type Requirements struct {
	Skills          []string `json:"skills,omitempty"`
	Availability    string   `json:"availability,omitempty"`
	ExperienceYears int      `json:"experience_years,omitempty"`
}

// Label is the single-line form used in selectors.
func (p *Position) Label() string {
	return fmt.Sprintf("%s / %s %s / %d vacantes", p.Title, p.Salary, p.Currency, p.SlotsAvailable)
}

// HasSkill reports whether the position requires skill, ignoring case.
func (p *Position) HasSkill(skill string) bool {
	skill = strings.TrimSpace(skill)
	for _, s := range p.Requirements.Skills {
		if strings.EqualFold(strings.TrimSpace(s), skill) {
			return true
		}
	}
	return false
}

func (p *Positions) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

func (p *Positions) FindByID(id string) *Position {
	for _, position := range p.Items {
		if position.ID == id {
			return position
		}
	}
	return nil
}

func (p *Positions) FindByLabel(label string) *Position {
	for _, position := range p.Items {
		if position.Label() == label {
			return position
		}
	}
	return nil
}

func (p *Positions) Titles() []string {
	titles := make([]string, 0, len(p.Items))
	for _, position := range p.Items {
		titles = append(titles, position.Title)
	}
	return titles
}

// Keep returns the positions matching keep and the ids of the dropped ones.
// Order is preserved.
func (p *Positions) Keep(keep func(*Position) bool) (*Positions, []string) {
	kept := &Positions{Items: make([]*Position, 0, len(p.Items))}
	var dropped []string

	for _, position := range p.Items {
		if keep(position) {
			kept.Items = append(kept.Items, position)
			continue
		}
		dropped = append(dropped, position.ID)
	}

	return kept, dropped
}

func (p *Positions) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "positions_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportBySkill groups position titles by required skill.
func (p *Positions) ReportBySkill() map[string][]string {
	report := make(map[string][]string)
	for _, position := range p.Items {
		for _, skill := range position.Requirements.Skills {
			key := strings.ToLower(strings.TrimSpace(skill))
			if key == "" {
				continue
			}
			report[key] = append(report[key], position.Title)
		}
	}
	return report
}
