package positions

import (
	"encoding/json"
	"os"
	"testing"
)

func samplePositions() *Positions {
	return &Positions{
		Items: []*Position{
			{
				ID:             "1",
				Title:          "Go Developer",
				Salary:         "4500.00",
				Currency:       "PEN",
				SlotsAvailable: 2,
				IsActive:       true,
				Requirements: Requirements{
					Skills:       []string{"Go", " PostgreSQL "},
					Availability: "full_time",
				},
			},
			{
				ID:       "2",
				Title:    "Data Analyst",
				IsActive: false,
				Requirements: Requirements{
					Skills: []string{"sql", "postgresql"},
				},
			},
		},
	}
}

func TestKeepPreservesOrder(t *testing.T) {
	positions := samplePositions()
	positions.Items = append(positions.Items, &Position{ID: "3", Title: "SRE", IsActive: true})

	kept, dropped := positions.Keep(func(p *Position) bool { return p.IsActive })

	if kept.Len() != 2 {
		t.Fatalf("expected 2 positions, got %d", kept.Len())
	}
	if kept.Items[0].ID != "1" || kept.Items[1].ID != "3" {
		t.Fatalf("unexpected order: %v", kept.Titles())
	}
	if len(dropped) != 1 || dropped[0] != "2" {
		t.Fatalf("unexpected dropped ids: %v", dropped)
	}
	if positions.Len() != 3 {
		t.Fatalf("source list must not change, got %d", positions.Len())
	}
}

func TestHasSkill(t *testing.T) {
	position := samplePositions().Items[0]

	if !position.HasSkill("postgresql") {
		t.Fatalf("expected case-insensitive skill match")
	}
	if position.HasSkill("java") {
		t.Fatalf("did not expect java")
	}
}

func TestFindByLabel(t *testing.T) {
	positions := samplePositions()
	label := positions.Items[0].Label()

	if label != "Go Developer / 4500.00 PEN / 2 vacantes" {
		t.Fatalf("unexpected label %q", label)
	}
	if found := positions.FindByLabel(label); found == nil || found.ID != "1" {
		t.Fatalf("expected to find position 1, got %+v", found)
	}
	if positions.FindByID("missing") != nil {
		t.Fatalf("expected nil for missing id")
	}
}

func TestReportBySkill(t *testing.T) {
	report := samplePositions().ReportBySkill()

	titles, ok := report["postgresql"]
	if !ok {
		t.Fatalf("expected postgresql key in report")
	}
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %v", titles)
	}
	if _, ok := report["go"]; !ok {
		t.Fatalf("expected go key in report")
	}
}

func TestDumpToTmpFile(t *testing.T) {
	name, err := samplePositions().DumpToTmpFile()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	t.Cleanup(func() { os.Remove(name) })

	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}

	var decoded Positions
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if decoded.Len() != 2 {
		t.Fatalf("expected 2 positions in dump, got %d", decoded.Len())
	}
}
