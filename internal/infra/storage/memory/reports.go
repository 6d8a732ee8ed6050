package memory

import (
	"context"
	"sort"
	"sync"

	domainexpertise "autoparc/internal/domain/expertise"
)

type ReportRepository struct {
	mu    sync.RWMutex
	items map[domainexpertise.ReportID]*domainexpertise.Report
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{items: make(map[domainexpertise.ReportID]*domainexpertise.Report)}
}

func (r *ReportRepository) Save(ctx context.Context, report *domainexpertise.Report) error {
	if report == nil || report.ID == "" {
		return domainexpertise.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[report.ID] = cloneReport(report)
	return nil
}

func (r *ReportRepository) ByID(ctx context.Context, id domainexpertise.ReportID) (*domainexpertise.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.items[id]
	if !ok {
		return nil, domainexpertise.ErrNotFound
	}
	return cloneReport(report), nil
}

func (r *ReportRepository) ListByListing(ctx context.Context, listingID string) ([]*domainexpertise.Report, error) {
	return r.list(func(rep *domainexpertise.Report) bool { return rep.ListingID == listingID }), nil
}

func (r *ReportRepository) ListByMechanic(ctx context.Context, mechanicID string) ([]*domainexpertise.Report, error) {
	return r.list(func(rep *domainexpertise.Report) bool { return rep.MechanicID == mechanicID }), nil
}

func (r *ReportRepository) list(keep func(*domainexpertise.Report) bool) []*domainexpertise.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainexpertise.Report, 0)
	for _, rep := range r.items {
		if keep(rep) {
			out = append(out, cloneReport(rep))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneReport(r *domainexpertise.Report) *domainexpertise.Report {
	out := *r
	out.Categories = append([]domainexpertise.CategoryScore(nil), r.Categories...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	return &out
}

var _ domainexpertise.Repository = (*ReportRepository)(nil)
