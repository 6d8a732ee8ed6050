package pdf

import (
	"bytes"
	"testing"
	"time"

	domainexpertise "autoparc/internal/domain/expertise"
	domainlistings "autoparc/internal/domain/listings"
)

func TestRenderProducesPDF(t *testing.T) {
	report, err := domainexpertise.NewReport(domainexpertise.CreateParams{
		ID:         "r1",
		ListingID:  "l1",
		MechanicID: "m1",
		Vehicle:    domainexpertise.VehicleInfo{Make: "Renault", Model: "Clio", Year: 2018, Mileage: 84000},
		Categories: []domainexpertise.CategoryScore{
			{Key: domainexpertise.CategoryEngine, Score: 8, Notes: "Démarrage à froid correct"},
			{Key: domainexpertise.CategoryBrakes, Score: 4.5},
		},
		Signatory: domainexpertise.Signatory{Name: "Jean Garage", Shop: "Garage du Centre"},
		Now:       time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new report: %v", err)
	}
	listing := &domainlistings.Listing{ID: "l1", Title: "Clio V société"}

	var buf bytes.Buffer
	if err := (ReportRenderer{}).Render(&buf, report, listing); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF header, got %q", buf.Bytes()[:8])
	}
}

func TestRenderRequiresReport(t *testing.T) {
	if err := (ReportRenderer{}).Render(&bytes.Buffer{}, nil, nil); err == nil {
		t.Fatalf("expected an error for a nil report")
	}
}
