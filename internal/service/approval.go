package service

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/approval"
	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/store"
)

// Respond records responder's answer to a pending visa, advances its route
// and, when a Regular visa is declined or cancelled, gives its consumption
// back to the parent budget.
func (s *VisaService) Respond(ctx context.Context, code, responder string, resp domain.Response, remarks string) (*domain.Visa, error) {
	var visa *domain.Visa
	var released []*domain.BudgetAllocation

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		v, err := tx.GetVisaForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrVisaNotFound
			}
			return err
		}
		route, err := tx.ListApprovers(ctx, code)
		if err != nil {
			return err
		}

		dec, err := approval.Decide(*v, route, responder, resp)
		if err != nil {
			return err
		}
		if dec.Step > 0 {
			if err := tx.UpdateApproverState(ctx, code, dec.Step, dec.StepState); err != nil {
				return err
			}
		}
		h := &domain.ApprovalHistory{Code: code, Response: string(resp), Approver: responder, Remarks: remarks}
		if err := tx.InsertHistory(ctx, h); err != nil {
			return err
		}
		if dec.Status != v.Status {
			if err := tx.UpdateVisaStatus(ctx, code, dec.Status); err != nil {
				return err
			}
			v.Status = dec.Status
		}
		if dec.ReleaseBudget {
			if released, err = release(ctx, tx, code); err != nil {
				return err
			}
		}
		visa = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	evs := []events.Event{{Type: events.VisaChanged, Code: visa.Code, Status: string(visa.Status)}}
	for _, a := range released {
		evs = append(evs, budgetEvent(a))
	}
	s.publish(ctx, evs...)
	return visa, nil
}

// release returns whatever visaCode still holds from each budget it consumed.
func release(ctx context.Context, tx store.Tx, visaCode string) ([]*domain.BudgetAllocation, error) {
	entries, err := tx.EntriesForVisa(ctx, visaCode)
	if err != nil {
		return nil, err
	}

	held := map[string]decimal.Decimal{}
	for _, e := range entries {
		if e.BudgetCode == visaCode {
			continue
		}
		if e.Reason == domain.EntryConsume || e.Reason == domain.EntryRelease {
			held[e.BudgetCode] = held[e.BudgetCode].Sub(e.Delta)
		}
	}
	codes := make([]string, 0, len(held))
	for c := range held {
		codes = append(codes, c)
	}
	// lock in a fixed order
	sort.Strings(codes)

	var out []*domain.BudgetAllocation
	for _, c := range codes {
		amount := held[c]
		if !amount.IsPositive() {
			continue
		}
		a, err := tx.GetAllocationForUpdate(ctx, c)
		if err != nil {
			return nil, err
		}
		next, err := budget.Release(a.RemainingBalance, amount, a.AmountBudget)
		if err != nil {
			return nil, err
		}
		if err := setRemaining(ctx, tx, a, next); err != nil {
			return nil, err
		}
		entry := &domain.BudgetEntry{BudgetCode: c, VisaCode: visaCode, Delta: amount, Reason: domain.EntryRelease}
		if err := tx.InsertBudgetEntry(ctx, entry); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
