package dto

import (
	"time"

	domainexpertise "autoparc/internal/domain/expertise"
)

type ExpertiseCategory struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Notes  string  `json:"notes,omitempty"`
}

type VehicleInfo struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     int    `json:"year,omitempty"`
	Mileage  int    `json:"mileage,omitempty"`
	VIN      string `json:"vin,omitempty"`
	Plate    string `json:"plate,omitempty"`
	FuelType string `json:"fuel_type,omitempty"`
}

type Signatory struct {
	Name string    `json:"name"`
	Shop string    `json:"shop,omitempty"`
	Date time.Time `json:"date"`
}

type ExpertiseReport struct {
	ID              string              `json:"id"`
	ListingID       string              `json:"listing_id"`
	MechanicID      string              `json:"mechanic_id"`
	Vehicle         VehicleInfo         `json:"vehicle"`
	Categories      []ExpertiseCategory `json:"categories"`
	Recommendations []string            `json:"recommendations"`
	Signatory       Signatory           `json:"signatory"`
	Score           float64             `json:"score"`
	Grade           string              `json:"grade"`
	PDFURL          string              `json:"pdf_url,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type ExpertiseReportList struct {
	Items []ExpertiseReport `json:"items"`
}

// MechanicDashboard summarizes a mechanic's inspections.
type MechanicDashboard struct {
	MechanicID   string            `json:"mechanic_id"`
	ReportCount  int               `json:"report_count"`
	AverageScore float64           `json:"average_score"`
	Reports      []ExpertiseReport `json:"reports"`
}

func MapExpertiseReport(r *domainexpertise.Report) ExpertiseReport {
	if r == nil {
		return ExpertiseReport{}
	}
	cats := make([]ExpertiseCategory, 0, len(r.Categories))
	for _, c := range r.Categories {
		cats = append(cats, ExpertiseCategory{
			Key:    string(c.Key),
			Label:  domainexpertise.Label(c.Key),
			Score:  c.Score,
			Weight: domainexpertise.Weight(c.Key),
			Notes:  c.Notes,
		})
	}
	return ExpertiseReport{
		ID:         string(r.ID),
		ListingID:  r.ListingID,
		MechanicID: r.MechanicID,
		Vehicle: VehicleInfo{
			Make:     r.Vehicle.Make,
			Model:    r.Vehicle.Model,
			Year:     r.Vehicle.Year,
			Mileage:  r.Vehicle.Mileage,
			VIN:      r.Vehicle.VIN,
			Plate:    r.Vehicle.Plate,
			FuelType: r.Vehicle.FuelType,
		},
		Categories:      cats,
		Recommendations: append([]string{}, r.Recommendations...),
		Signatory: Signatory{
			Name: r.Signatory.Name,
			Shop: r.Signatory.Shop,
			Date: r.Signatory.Date,
		},
		Score:     r.Score,
		Grade:     string(r.Grade),
		PDFURL:    r.PDFURL,
		CreatedAt: r.CreatedAt,
	}
}
