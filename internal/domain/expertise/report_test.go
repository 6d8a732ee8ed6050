package expertise

import (
	"errors"
	"testing"
)

func TestScoreUsesWeights(t *testing.T) {
	all := []CategoryScore{
		{Key: CategoryEngine, Score: 8},
		{Key: CategoryTransmission, Score: 7},
		{Key: CategoryBrakes, Score: 9},
		{Key: CategorySuspension, Score: 6},
		{Key: CategoryBody, Score: 5},
		{Key: CategoryElectrical, Score: 10},
		{Key: CategoryInterior, Score: 4},
		{Key: CategoryTyres, Score: 7},
	}
	// 2.0 + 1.05 + 1.35 + 0.6 + 0.5 + 1.0 + 0.2 + 0.7 = 7.4
	if got := Score(all); got != 7.4 {
		t.Fatalf("expected 7.4, got %v", got)
	}
}

func TestScoreRenormalizesMissingCategories(t *testing.T) {
	partial := []CategoryScore{
		{Key: CategoryEngine, Score: 10},
		{Key: CategoryInterior, Score: 4},
	}
	// (2.5 + 0.2) / 0.30 = 9.0
	if got := Score(partial); got != 9 {
		t.Fatalf("expected 9, got %v", got)
	}
	if got := Score(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestGradeBoundaries(t *testing.T) {
	cases := map[float64]Grade{8.5: GradeExcellent, 8.4: GradeGood, 7: GradeGood, 6.9: GradeFair, 5: GradeFair, 4.9: GradePoor}
	for score, want := range cases {
		if got := GradeFor(score); got != want {
			t.Fatalf("score %v: expected %s, got %s", score, want, got)
		}
	}
}

func TestNewReportBuildsRecommendations(t *testing.T) {
	r, err := NewReport(CreateParams{
		ID:         "r1",
		ListingID:  "l1",
		MechanicID: "m1",
		Categories: []CategoryScore{
			{Key: "TYRES", Score: 3, Notes: "usure avant"},
			{Key: CategoryEngine, Score: 9},
			{Key: CategoryBrakes, Score: 5.9},
		},
		Recommendations: []string{"  Prévoir une vidange  ", ""},
		Signatory:       Signatory{Name: "Garage Martin"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Categories[0].Key != CategoryEngine || r.Categories[2].Key != CategoryTyres {
		t.Fatalf("expected taxonomy order, got %+v", r.Categories)
	}
	if len(r.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %v", r.Recommendations)
	}
	if r.Recommendations[2] != "Prévoir une vidange" {
		t.Fatalf("expected free-text last, got %q", r.Recommendations[2])
	}
	if r.Grade != GradeFor(r.Score) || r.Signatory.Date.IsZero() {
		t.Fatalf("expected grade and signatory date filled, got %+v", r)
	}
}

func TestNewReportRejectsInvalidInput(t *testing.T) {
	base := CreateParams{ID: "r1", ListingID: "l1", MechanicID: "m1", Signatory: Signatory{Name: "X"}}

	p := base
	if _, err := NewReport(p); !errors.Is(err, ErrNoCategories) {
		t.Fatalf("expected ErrNoCategories, got %v", err)
	}
	p.Categories = []CategoryScore{{Key: "wipers", Score: 5}}
	if _, err := NewReport(p); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	p.Categories = []CategoryScore{{Key: CategoryBody, Score: 11}}
	if _, err := NewReport(p); !errors.Is(err, ErrScoreRange) {
		t.Fatalf("expected ErrScoreRange, got %v", err)
	}
	p.Categories = []CategoryScore{{Key: CategoryBody, Score: 5}, {Key: "body", Score: 6}}
	if _, err := NewReport(p); !errors.Is(err, ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
	if !IsValidation(ErrScoreRange) {
		t.Fatalf("expected score range to be a validation error")
	}
}
