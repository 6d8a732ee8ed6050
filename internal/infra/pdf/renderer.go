package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"autoparc/internal/app/policies"
	domainexpertise "autoparc/internal/domain/expertise"
	domainlistings "autoparc/internal/domain/listings"
)

var gradeLabels = map[domainexpertise.Grade]string{
	domainexpertise.GradeExcellent: "Excellent",
	domainexpertise.GradeGood:      "Bon",
	domainexpertise.GradeFair:      "Correct",
	domainexpertise.GradePoor:      "Mauvais",
}

// ReportRenderer lays an expertise report out on a single A4 page set.
type ReportRenderer struct {
	Brand string
}

func (r ReportRenderer) Render(w io.Writer, report *domainexpertise.Report, listing *domainlistings.Listing) error {
	if report == nil {
		return fmt.Errorf("pdf: report is required")
	}
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Expertise "+string(report.ID), true)
	doc.SetAuthor(report.Signatory.Name, true)
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	brand := r.Brand
	if brand == "" {
		brand = "AutoParc"
	}
	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 10, tr(brand+" - Rapport d'expertise"), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, tr("Référence "+string(report.ID)), "", 1, "L", false, 0, "")
	if listing != nil {
		doc.CellFormat(0, 6, tr("Annonce : "+listing.Title), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	section(doc, tr, "Véhicule")
	v := report.Vehicle
	rows := [][2]string{
		{"Marque", v.Make},
		{"Modèle", v.Model},
		{"Année", yearText(v.Year)},
		{"Kilométrage", fmt.Sprintf("%d km", v.Mileage)},
		{"VIN", v.VIN},
		{"Immatriculation", v.Plate},
		{"Énergie", v.FuelType},
	}
	doc.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		if strings.TrimSpace(row[1]) == "" {
			continue
		}
		doc.CellFormat(50, 6, tr(row[0]), "B", 0, "L", false, 0, "")
		doc.CellFormat(0, 6, tr(row[1]), "B", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	section(doc, tr, "Points de contrôle")
	for _, c := range report.Categories {
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(50, 7, tr(domainexpertise.Label(c.Key)), "", 0, "L", false, 0, "")
		scoreBar(doc, c.Score)
		doc.CellFormat(0, 7, fmt.Sprintf("%.1f / 10", c.Score), "", 1, "R", false, 0, "")
		if notes := strings.TrimSpace(c.Notes); notes != "" {
			doc.SetFont("Helvetica", "I", 9)
			doc.MultiCell(0, 5, tr(notes), "", "L", false)
		}
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 14)
	grade := gradeLabels[report.Grade]
	if grade == "" {
		grade = string(report.Grade)
	}
	doc.CellFormat(0, 9, tr(fmt.Sprintf("Note globale : %.1f / 10 (%s)", report.Score, grade)), "", 1, "L", false, 0, "")
	doc.Ln(2)

	if len(report.Recommendations) > 0 {
		section(doc, tr, "Recommandations")
		doc.SetFont("Helvetica", "", 10)
		for _, rec := range report.Recommendations {
			doc.MultiCell(0, 6, tr("- "+rec), "", "L", false)
		}
		doc.Ln(2)
	}

	section(doc, tr, "Signature")
	doc.SetFont("Helvetica", "", 10)
	signer := report.Signatory.Name
	if report.Signatory.Shop != "" {
		signer += ", " + report.Signatory.Shop
	}
	doc.CellFormat(0, 6, tr(signer), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, tr("Le "+report.Signatory.Date.Format("02/01/2006")), "", 1, "L", false, 0, "")

	if err := doc.Error(); err != nil {
		return fmt.Errorf("pdf: layout: %w", err)
	}
	return doc.Output(w)
}

func section(doc *fpdf.Fpdf, tr func(string) string, title string) {
	doc.SetFont("Helvetica", "B", 12)
	doc.SetFillColor(235, 238, 242)
	doc.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
	doc.Ln(1)
}

// scoreBar draws a 60mm gauge filled in proportion to score.
func scoreBar(doc *fpdf.Fpdf, score float64) {
	const width = 60.0
	x, y := doc.GetXY()
	doc.SetDrawColor(180, 180, 180)
	doc.Rect(x, y+2, width, 3, "D")
	switch {
	case score >= 7:
		doc.SetFillColor(46, 160, 67)
	case score >= 5:
		doc.SetFillColor(230, 160, 30)
	default:
		doc.SetFillColor(200, 55, 45)
	}
	if filled := width * score / 10; filled > 0 {
		doc.Rect(x, y+2, filled, 3, "F")
	}
	doc.SetX(x + width + 4)
}

func yearText(year int) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprint(year)
}

var _ policies.ReportRenderer = ReportRenderer{}
