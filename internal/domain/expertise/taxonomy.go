package expertise

import "strings"

type CategoryKey string

const (
	CategoryEngine       CategoryKey = "engine"
	CategoryTransmission CategoryKey = "transmission"
	CategoryBrakes       CategoryKey = "brakes"
	CategorySuspension   CategoryKey = "suspension"
	CategoryBody         CategoryKey = "body"
	CategoryElectrical   CategoryKey = "electrical"
	CategoryInterior     CategoryKey = "interior"
	CategoryTyres        CategoryKey = "tyres"
)

// Taxonomy lists inspected categories in report order.
var Taxonomy = []CategoryKey{
	CategoryEngine,
	CategoryTransmission,
	CategoryBrakes,
	CategorySuspension,
	CategoryBody,
	CategoryElectrical,
	CategoryInterior,
	CategoryTyres,
}

var weights = map[CategoryKey]float64{
	CategoryEngine:       0.25,
	CategoryTransmission: 0.15,
	CategoryBrakes:       0.15,
	CategorySuspension:   0.10,
	CategoryBody:         0.10,
	CategoryElectrical:   0.10,
	CategoryInterior:     0.05,
	CategoryTyres:        0.10,
}

var labels = map[CategoryKey]string{
	CategoryEngine:       "Moteur",
	CategoryTransmission: "Transmission",
	CategoryBrakes:       "Freinage",
	CategorySuspension:   "Suspension",
	CategoryBody:         "Carrosserie",
	CategoryElectrical:   "Électricité",
	CategoryInterior:     "Intérieur",
	CategoryTyres:        "Pneumatiques",
}

func Weight(key CategoryKey) float64 { return weights[key] }

func Label(key CategoryKey) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return string(key)
}

func ParseCategory(raw string) (CategoryKey, bool) {
	key := CategoryKey(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := weights[key]
	return key, ok
}

type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
)

func GradeFor(score float64) Grade {
	switch {
	case score >= 8.5:
		return GradeExcellent
	case score >= 7:
		return GradeGood
	case score >= 5:
		return GradeFair
	default:
		return GradePoor
	}
}

const recommendationThreshold = 6.0
