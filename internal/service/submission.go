package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/approval"
	"github.com/punchamoorthee/visaops/internal/blob"
	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/logging"
	"github.com/punchamoorthee/visaops/internal/store"
	"github.com/punchamoorthee/visaops/internal/validation"
	"github.com/punchamoorthee/visaops/internal/visacode"
	"github.com/punchamoorthee/visaops/internal/wizard"
)

// Submit persists a complete draft in one transaction: the visa, its budget
// allocation or consumption, lines, attachments and approver route. Blobs are
// uploaded first and deleted again when the transaction does not commit.
//
// A replayed idempotency key returns the stored record instead of a response.
func (s *VisaService) Submit(ctx context.Context, d domain.VisaDraft, creator, idempotencyKey, reqHash string) (*domain.SubmitResponse, *domain.IdempotencyRecord, error) {
	if t, err := domain.ParseVisaType(string(d.Type)); err == nil {
		d.Type = t
	}
	if len(d.Approvers) == 0 {
		d.Approvers = s.routes.For(d.Type)
	}
	if err := wizard.Validate(&d, wizard.StepReview); err != nil {
		submissionsTotal.WithLabelValues(string(d.Type), "invalid").Inc()
		return nil, nil, err
	}

	files, err := s.uploadAll(ctx, d.Attachments, creator)
	if err != nil {
		submissionsTotal.WithLabelValues(string(d.Type), "invalid").Inc()
		return nil, nil, err
	}

	// Keys are scoped to the caller so one user cannot replay another's response.
	key := creator + ":" + idempotencyKey

	var resp *domain.SubmitResponse
	var replay *domain.IdempotencyRecord
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		// 1. Idempotency
		rec, err := tx.GetIdempotency(ctx, key)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.RequestHash != reqHash {
				return ErrIdempotencyMismatch
			}
			if rec.Status != "completed" {
				return ErrIdempotencyConflict
			}
			replay = rec
			return nil
		}
		if err := tx.ReserveIdempotency(ctx, key, reqHash); err != nil {
			if errors.Is(err, store.ErrIdempotencyConflict) {
				return ErrIdempotencyConflict
			}
			return err
		}

		// 2. Code, serialized per prefix
		prefix := visacode.Prefix(d.Type, s.now().In(s.loc).Year())
		if err := tx.LockPrefix(ctx, prefix); err != nil {
			return err
		}
		existing, err := tx.CodesWithPrefix(ctx, prefix)
		if err != nil {
			return err
		}
		code := visacode.Next(prefix, existing)

		// 3. Visa and budget
		v := &domain.Visa{
			Code:          code,
			Type:          d.Type,
			DistributorID: d.DistributorID,
			AccountTypes:  d.AccountTypes,
			Amount:        d.Amount,
			Objective:     d.Objective,
			PromoScheme:   d.PromoScheme,
			ParentCode:    d.ParentCode,
			ActivityID:    d.ActivityID,
			Status:        domain.StatusPending,
			CreatedBy:     creator,
		}
		if d.Type == domain.VisaRegular {
			v.Amount = wizard.Consumption(&d)
		} else {
			v.ParentCode = ""
		}
		if err := tx.InsertVisa(ctx, v); err != nil {
			return err
		}

		var alloc *domain.BudgetAllocation
		if d.Type.AllocatesBudget() {
			alloc, err = allocate(ctx, tx, v)
		} else {
			alloc, err = consume(ctx, tx, d.ParentCode, code, v.Amount, d.ExpectedRemaining)
		}
		if err != nil {
			return err
		}

		// 4. Lines, attachments, route
		lines := wizard.Lines(&d)
		if err := tx.InsertLines(ctx, code, lines); err != nil {
			return err
		}
		attachments := make([]domain.Attachment, 0, len(files))
		for _, f := range files {
			a := f
			a.VisaCode = code
			if err := tx.InsertAttachment(ctx, &a); err != nil {
				return err
			}
			attachments = append(attachments, a)
		}
		route := approval.BuildRoute(code, d.Approvers)
		if len(route) == 0 {
			return validation.FieldErrors{"approvers": "min"}
		}
		if err := tx.InsertApprovers(ctx, route); err != nil {
			return err
		}

		// 5. Finalize idempotency
		resp = &domain.SubmitResponse{
			Visa:        *v,
			Budget:      alloc,
			Lines:       lines,
			Attachments: attachments,
			Approvers:   route,
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		return tx.CompleteIdempotency(ctx, key, code, http.StatusCreated, body)
	})

	if err != nil || replay != nil {
		s.discard(ctx, files)
	}
	if err != nil {
		submissionsTotal.WithLabelValues(string(d.Type), resultLabel(err)).Inc()
		return nil, nil, err
	}
	if replay != nil {
		submissionsTotal.WithLabelValues(string(d.Type), "replay").Inc()
		return nil, replay, nil
	}

	submissionsTotal.WithLabelValues(string(d.Type), "created").Inc()
	evs := []events.Event{
		budgetEvent(resp.Budget),
		{Type: events.VisaChanged, Code: resp.Visa.Code, Status: string(resp.Visa.Status)},
	}
	for _, a := range resp.Attachments {
		evs = append(evs, events.Event{Type: events.UploadsChanged, Code: resp.Visa.Code, AttachmentID: a.ID})
	}
	s.publish(ctx, evs...)
	return resp, nil, nil
}

// allocate opens the budget of a Cover or Corporate visa.
func allocate(ctx context.Context, tx store.Tx, v *domain.Visa) (*domain.BudgetAllocation, error) {
	a := &domain.BudgetAllocation{
		Code:             v.Code,
		AmountBudget:     v.Amount,
		RemainingBalance: v.Amount,
		CreatedBy:        v.CreatedBy,
	}
	if err := tx.InsertAllocation(ctx, a); err != nil {
		return nil, err
	}
	entry := &domain.BudgetEntry{BudgetCode: v.Code, VisaCode: v.Code, Delta: v.Amount, Reason: domain.EntryAllocate}
	if err := tx.InsertBudgetEntry(ctx, entry); err != nil {
		return nil, err
	}
	return a, nil
}

// consume takes amount from the Cover budget parentCode on behalf of visaCode.
// The parent rows stay locked until the transaction ends.
func consume(ctx context.Context, tx store.Tx, parentCode, visaCode string, amount decimal.Decimal, expected *decimal.Decimal) (*domain.BudgetAllocation, error) {
	parent, err := tx.GetVisaForUpdate(ctx, parentCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}
	if parent.Type != domain.VisaCover {
		return nil, ErrParentNotCover
	}
	if parent.Status == domain.StatusDeclined || parent.Status == domain.StatusCancelled {
		return nil, ErrParentClosed
	}

	a, err := tx.GetAllocationForUpdate(ctx, parentCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}
	next, err := budget.Consume(a.RemainingBalance, amount, expected)
	if err != nil {
		return nil, err
	}
	if err := setRemaining(ctx, tx, a, next); err != nil {
		return nil, err
	}
	entry := &domain.BudgetEntry{BudgetCode: a.Code, VisaCode: visaCode, Delta: amount.Neg(), Reason: domain.EntryConsume}
	if err := tx.InsertBudgetEntry(ctx, entry); err != nil {
		return nil, err
	}
	return a, nil
}

func setRemaining(ctx context.Context, tx store.Tx, a *domain.BudgetAllocation, next decimal.Decimal) error {
	version, err := tx.SetRemaining(ctx, a.Code, next, a.Version)
	if err != nil {
		if errors.Is(err, store.ErrVersionMismatch) {
			return budget.ErrBalanceChanged
		}
		return err
	}
	a.RemainingBalance = next
	a.Version = version
	return nil
}

// uploadAll decodes and stores attachment payloads ahead of the transaction.
func (s *VisaService) uploadAll(ctx context.Context, uploads []domain.AttachmentUpload, creator string) ([]domain.Attachment, error) {
	files := make([]domain.Attachment, 0, len(uploads))
	for i, u := range uploads {
		data, err := base64.StdEncoding.DecodeString(u.Data)
		if err != nil {
			s.discard(ctx, files)
			return nil, fmt.Errorf("%w: attachments[%d]", ErrBadAttachment, i)
		}
		a, err := s.storeFile(ctx, u.Name, data, creator)
		if err != nil {
			s.discard(ctx, files)
			return nil, fmt.Errorf("attachments[%d]: %w", i, err)
		}
		files = append(files, *a)
	}
	return files, nil
}

// storeFile checks and stores one file, returning its unsaved row.
func (s *VisaService) storeFile(ctx context.Context, name string, data []byte, creator string) (*domain.Attachment, error) {
	ct, err := blob.Sniff(data)
	if err != nil {
		return nil, err
	}
	a := &domain.Attachment{
		ID:          uuid.NewString(),
		Name:        path.Base(name),
		ContentType: ct,
		Size:        int64(len(data)),
		CreatedBy:   creator,
	}
	url, err := s.blobs.Put(ctx, "attachments/"+a.ID+"/"+a.Name, ct, data)
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	a.BlobURL = url
	if url == "" {
		a.Data = data
	}
	return a, nil
}

// discard removes blobs whose rows were never committed.
func (s *VisaService) discard(ctx context.Context, files []domain.Attachment) {
	for _, f := range files {
		if f.BlobURL == "" {
			continue
		}
		if err := s.blobs.Delete(context.WithoutCancel(ctx), f.BlobURL); err != nil {
			logging.Error(moduleName, "discard", "orphaned blob", f.BlobURL, err)
		}
	}
}

func resultLabel(err error) string {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return "invalid"
	case errors.Is(err, budget.ErrInsufficientBudget):
		return "insufficient_budget"
	case errors.Is(err, budget.ErrBalanceChanged):
		return "balance_changed"
	case errors.Is(err, ErrIdempotencyConflict), errors.Is(err, ErrIdempotencyMismatch):
		return "idempotency"
	default:
		return "error"
	}
}
