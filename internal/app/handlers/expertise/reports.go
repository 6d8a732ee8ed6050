package expertise

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/policies"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainexpertise "autoparc/internal/domain/expertise"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
	domainuser "autoparc/internal/domain/user"
)

const (
	submitReportKey      = "expertise.submit"
	getReportKey         = "expertise.get"
	listingReportsKey    = "expertise.listing"
	mechanicDashboardKey = "expertise.mechanic"
	pdfContentType       = "application/pdf"
)

var (
	ErrMechanicRequired = errors.New("mechanic id is required")
	ErrListingRequired  = errors.New("listing id is required")
	ErrReportRequired   = errors.New("report id is required")
)

// SubmitReportCommand is restricted to mechanics.
type SubmitReportCommand struct {
	MechanicID      string
	ActorRoleName   string
	ListingID       string
	Vehicle         domainexpertise.VehicleInfo
	Categories      []domainexpertise.CategoryScore
	Recommendations []string
	Signatory       domainexpertise.Signatory
	RequestKey      string
}

func (c SubmitReportCommand) Key() string { return submitReportKey }

func (c SubmitReportCommand) Validate() error {
	if strings.TrimSpace(c.MechanicID) == "" {
		return ErrMechanicRequired
	}
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingRequired
	}
	if len(c.Categories) == 0 {
		return domainexpertise.ErrNoCategories
	}
	return nil
}

func (c SubmitReportCommand) RequiredRole() string { return string(domainuser.RoleMechanic) }

func (c SubmitReportCommand) ActorRole() string { return c.ActorRoleName }

func (c SubmitReportCommand) IdempotencyKey() string { return c.RequestKey }

func (c SubmitReportCommand) ResultPrototype() any { return &dto.ExpertiseReport{} }

// SubmitReportHandler scores the inspection, stores the rendered PDF and
// notifies the listing's seller. Without a Store or Renderer the report is
// saved without a PDF.
type SubmitReportHandler struct {
	Logger   *slog.Logger
	Renderer policies.ReportRenderer
	Store    policies.ObjectStore
	Notifier policies.Notifier
	Now      func() time.Time
}

func (h *SubmitReportHandler) Handle(ctx context.Context, cmd SubmitReportCommand) (*dto.ExpertiseReport, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	signatory := cmd.Signatory
	if strings.TrimSpace(signatory.Name) == "" || strings.TrimSpace(signatory.Shop) == "" {
		mechanic, err := unit.Users().ByID(ctx, domainuser.ID(cmd.MechanicID))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(signatory.Name) == "" {
			signatory.Name = mechanic.Name
		}
		if strings.TrimSpace(signatory.Shop) == "" {
			signatory.Shop = mechanic.ShopName
		}
	}
	report, err := domainexpertise.NewReport(domainexpertise.CreateParams{
		ID:              domainexpertise.ReportID(uuid.NewString()),
		ListingID:       cmd.ListingID,
		MechanicID:      cmd.MechanicID,
		Vehicle:         cmd.Vehicle,
		Categories:      cmd.Categories,
		Recommendations: cmd.Recommendations,
		Signatory:       signatory,
		Now:             handlersupport.Now(h.Now),
	})
	if err != nil {
		return nil, err
	}

	if h.Renderer != nil && h.Store != nil {
		var buf bytes.Buffer
		if err := h.Renderer.Render(&buf, report, listing); err != nil {
			return nil, fmt.Errorf("render report: %w", err)
		}
		url, err := h.Store.Upload(ctx, ReportObjectKey(report), &buf, pdfContentType)
		if err != nil {
			return nil, fmt.Errorf("upload report: %w", err)
		}
		report.AttachPDF(url)
	}
	if err := unit.Reports().Save(ctx, report); err != nil {
		return nil, err
	}

	seller := string(listing.SellerID)
	if h.Notifier != nil && seller != cmd.MechanicID {
		if _, err := h.Notifier.Notify(ctx, domainnotification.CreateParams{
			UserID: seller,
			Kind:   domainnotification.KindExpertise,
			Title:  "Rapport d'expertise disponible",
			Body:   fmt.Sprintf("%s : note %.1f/10", listing.Title, report.Score),
			Link:   "/expertise/" + string(report.ID),
			Now:    report.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}
	if h.Logger != nil {
		h.Logger.Info("expertise report submitted",
			"report_id", report.ID,
			"listing_id", report.ListingID,
			"mechanic_id", report.MechanicID,
			"score", report.Score,
		)
	}
	result := dto.MapExpertiseReport(report)
	return &result, nil
}

// ReportObjectKey builds "reports/<listing>/<report>.pdf".
func ReportObjectKey(report *domainexpertise.Report) string {
	return path.Join("reports", report.ListingID, string(report.ID)+".pdf")
}

type GetReportQuery struct {
	ReportID string
}

func (q GetReportQuery) Key() string { return getReportKey }

type GetReportHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetReportHandler) Handle(ctx context.Context, q GetReportQuery) (*dto.ExpertiseReport, error) {
	if strings.TrimSpace(q.ReportID) == "" {
		return nil, ErrReportRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	report, err := unit.Reports().ByID(execCtx, domainexpertise.ReportID(q.ReportID))
	if err != nil {
		return nil, err
	}
	result := dto.MapExpertiseReport(report)
	return &result, nil
}

type ListingReportsQuery struct {
	ListingID string
}

func (q ListingReportsQuery) Key() string { return listingReportsKey }

type ListingReportsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListingReportsHandler) Handle(ctx context.Context, q ListingReportsQuery) (dto.ExpertiseReportList, error) {
	if strings.TrimSpace(q.ListingID) == "" {
		return dto.ExpertiseReportList{}, ErrListingRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ExpertiseReportList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	reports, err := unit.Reports().ListByListing(execCtx, q.ListingID)
	if err != nil {
		return dto.ExpertiseReportList{}, err
	}
	return dto.ExpertiseReportList{Items: mapReports(reports)}, nil
}

type MechanicDashboardQuery struct {
	MechanicID string
}

func (q MechanicDashboardQuery) Key() string { return mechanicDashboardKey }

type MechanicDashboardHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *MechanicDashboardHandler) Handle(ctx context.Context, q MechanicDashboardQuery) (dto.MechanicDashboard, error) {
	if strings.TrimSpace(q.MechanicID) == "" {
		return dto.MechanicDashboard{}, ErrMechanicRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.MechanicDashboard{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	reports, err := unit.Reports().ListByMechanic(execCtx, q.MechanicID)
	if err != nil {
		return dto.MechanicDashboard{}, err
	}
	return Dashboard(q.MechanicID, reports), nil
}

// Dashboard summarizes reports; the average is rounded to one decimal.
func Dashboard(mechanicID string, reports []*domainexpertise.Report) dto.MechanicDashboard {
	out := dto.MechanicDashboard{
		MechanicID:  mechanicID,
		ReportCount: len(reports),
		Reports:     mapReports(reports),
	}
	if len(reports) == 0 {
		return out
	}
	var sum float64
	for _, r := range reports {
		sum += r.Score
	}
	out.AverageScore = math.Round(sum/float64(len(reports))*10) / 10
	return out
}

func mapReports(reports []*domainexpertise.Report) []dto.ExpertiseReport {
	out := make([]dto.ExpertiseReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, dto.MapExpertiseReport(r))
	}
	return out
}

var (
	_ commands.Handler[SubmitReportCommand, *dto.ExpertiseReport]    = (*SubmitReportHandler)(nil)
	_ queries.Handler[GetReportQuery, *dto.ExpertiseReport]          = (*GetReportHandler)(nil)
	_ queries.Handler[ListingReportsQuery, dto.ExpertiseReportList]  = (*ListingReportsHandler)(nil)
	_ queries.Handler[MechanicDashboardQuery, dto.MechanicDashboard] = (*MechanicDashboardHandler)(nil)
)
