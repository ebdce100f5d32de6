package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/visaops/internal/approval"
	"github.com/punchamoorthee/visaops/internal/blob"
	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/config"
	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/logging"
	"github.com/punchamoorthee/visaops/internal/store"
	"github.com/punchamoorthee/visaops/internal/visacode"
	"github.com/punchamoorthee/visaops/internal/wizard"
)

const moduleName = "service"

// NoRecordsMessage accompanies an empty listing.
const NoRecordsMessage = "No records found"

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "visaops_submissions_total",
	Help: "Visa submissions, labeled by visa type and outcome",
}, []string{"type", "result"})

// VisaStore is the persistence VisaService needs. *store.Store implements it.
type VisaStore interface {
	InTx(ctx context.Context, fn func(store.Tx) error) error

	GetVisa(ctx context.Context, code string) (*domain.Visa, error)
	ListLines(ctx context.Context, code string) ([]domain.VisaLine, error)
	ListVisas(ctx context.Context, f domain.ListFilter) ([]domain.Visa, int, error)
	HistoryFor(ctx context.Context, codes []string) ([]domain.ApprovalHistory, error)
	ListApprovers(ctx context.Context, code string) ([]domain.Approver, error)
	CodesWithPrefix(ctx context.Context, prefix string) ([]string, error)

	GetAllocation(ctx context.Context, code string) (*domain.BudgetAllocation, error)
	ListAllocations(ctx context.Context, onlyOpen bool) ([]domain.BudgetAllocation, error)
	BudgetEntries(ctx context.Context, budgetCode string) ([]domain.BudgetEntry, error)

	ListAttachments(ctx context.Context, visaCode string) ([]domain.Attachment, error)
	GetAttachment(ctx context.Context, visaCode, id string) (*domain.Attachment, error)
	InsertAttachment(ctx context.Context, a *domain.Attachment) error

	Dashboard(ctx context.Context, year int, tz string) (*domain.Dashboard, error)
}

// VisaService owns submission, approval and read models of visas.
type VisaService struct {
	store  VisaStore
	blobs  blob.Store
	events events.Publisher
	routes config.Routes
	loc    *time.Location
	now    func() time.Time
}

func NewVisaService(s VisaStore, blobs blob.Store, pub events.Publisher, routes config.Routes, loc *time.Location) *VisaService {
	if loc == nil {
		loc = time.UTC
	}
	return &VisaService{
		store:  s,
		blobs:  blobs,
		events: pub,
		routes: routes,
		loc:    loc,
		now:    time.Now,
	}
}

// List returns one page of visas merged with their approval history.
// A Limit of zero returns every match.
func (s *VisaService) List(ctx context.Context, f domain.ListFilter) (*domain.Page[domain.ApprovalRow], error) {
	visas, total, err := s.store.ListVisas(ctx, f)
	if err != nil {
		return nil, err
	}
	history, err := s.store.HistoryFor(ctx, approval.Codes(visas))
	if err != nil {
		return nil, err
	}

	page := &domain.Page[domain.ApprovalRow]{
		Data:         approval.Merge(visas, history),
		Page:         max(f.Page, 1),
		Limit:        f.Limit,
		TotalRecords: total,
		TotalPages:   1,
	}
	if f.Limit > 0 {
		page.TotalPages = (total + f.Limit - 1) / f.Limit
	}
	if len(page.Data) == 0 {
		page.Message = NoRecordsMessage
	}
	return page, nil
}

// Inbox lists pending visas waiting on approver.
func (s *VisaService) Inbox(ctx context.Context, approver string, f domain.ListFilter) (*domain.Page[domain.ApprovalRow], error) {
	f.Approver = approver
	f.Status = domain.StatusPending
	return s.List(ctx, f)
}

func (s *VisaService) Detail(ctx context.Context, code string) (*domain.VisaDetail, error) {
	v, err := s.getVisa(ctx, code)
	if err != nil {
		return nil, err
	}
	d := &domain.VisaDetail{Visa: *v}

	if d.Lines, err = s.store.ListLines(ctx, code); err != nil {
		return nil, err
	}
	if d.Approvers, err = s.store.ListApprovers(ctx, code); err != nil {
		return nil, err
	}
	if d.History, err = s.store.HistoryFor(ctx, []string{code}); err != nil {
		return nil, err
	}
	if d.Attachments, err = s.store.ListAttachments(ctx, code); err != nil {
		return nil, err
	}
	if v.Type.AllocatesBudget() {
		a, err := s.store.GetAllocation(ctx, code)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		d.Budget = a
	}
	for _, h := range d.History {
		if approval.IsApproved(h.Response) {
			d.Approved = true
		}
	}
	return d, nil
}

// PreviewCode returns the code the next submission of t would receive. It
// reserves nothing.
func (s *VisaService) PreviewCode(ctx context.Context, t domain.VisaType) (string, error) {
	prefix := visacode.Prefix(t, s.now().In(s.loc).Year())
	codes, err := s.store.CodesWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return visacode.Next(prefix, codes), nil
}

// PreviewBudget computes the display-only balance of parentCode after d.
func (s *VisaService) PreviewBudget(ctx context.Context, parentCode string, d *domain.VisaDraft) (budget.Result, error) {
	a, err := s.store.GetAllocation(ctx, parentCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return budget.Result{}, ErrBudgetNotFound
		}
		return budget.Result{}, err
	}
	return wizard.PreviewFor(d, a.RemainingBalance).Result(), nil
}

func (s *VisaService) Budgets(ctx context.Context, onlyOpen bool) ([]domain.BudgetAllocation, error) {
	return s.store.ListAllocations(ctx, onlyOpen)
}

func (s *VisaService) Budget(ctx context.Context, code string) (*domain.BudgetAllocation, []domain.BudgetEntry, error) {
	a, err := s.store.GetAllocation(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrBudgetNotFound
		}
		return nil, nil, err
	}
	entries, err := s.store.BudgetEntries(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return a, entries, nil
}

// Dashboard summarises visas created in year, the current year when unset.
func (s *VisaService) Dashboard(ctx context.Context, year int) (*domain.Dashboard, error) {
	if year <= 0 {
		year = s.now().In(s.loc).Year()
	}
	d, err := s.store.Dashboard(ctx, year, s.loc.String())
	if err != nil {
		return nil, err
	}
	d.Budget.Consumed = d.Budget.Granted.Sub(d.Budget.Remaining)
	return d, nil
}

func (s *VisaService) getVisa(ctx context.Context, code string) (*domain.Visa, error) {
	v, err := s.store.GetVisa(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVisaNotFound
		}
		return nil, fmt.Errorf("load visa %s: %w", code, err)
	}
	return v, nil
}

// publish is best effort; clients re-fetch on the next event anyway.
func (s *VisaService) publish(ctx context.Context, evs ...events.Event) {
	if s.events == nil {
		return
	}
	for _, ev := range evs {
		if err := s.events.Publish(ctx, ev); err != nil {
			logging.Error(moduleName, "publish", "event publish failed", ev, err)
		}
	}
}

func budgetEvent(a *domain.BudgetAllocation) events.Event {
	remaining := a.RemainingBalance
	return events.Event{Type: events.BudgetChanged, Code: a.Code, Remaining: &remaining}
}
