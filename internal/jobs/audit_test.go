package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/domain"
)

type fakeAuditor struct {
	violations []domain.BudgetViolation
	err        error
	calls      int
}

func (f *fakeAuditor) AuditAllocations(context.Context) ([]domain.BudgetViolation, error) {
	f.calls++
	return f.violations, f.err
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if l.held {
		return nil, redislock.ErrNotObtained
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func TestBudgetAuditReportsViolations(t *testing.T) {
	store := &fakeAuditor{violations: []domain.BudgetViolation{{
		Code:             "C2025-1",
		AmountBudget:     decimal.NewFromInt(100),
		RemainingBalance: decimal.NewFromInt(120),
		EntriesTotal:     decimal.NewFromInt(100),
	}}}
	locker := &fakeLocker{}

	got, ran, err := NewBudgetAudit(store, locker).Run(context.Background())
	if err != nil || !ran {
		t.Fatalf("run: ran=%v err=%v", ran, err)
	}
	if len(got) != 1 || got[0].Code != "C2025-1" {
		t.Errorf("unexpected violations %+v", got)
	}
	if locker.released != 1 || locker.held {
		t.Error("expected lock to be released")
	}
}

func TestBudgetAuditSkipsWhenLocked(t *testing.T) {
	store := &fakeAuditor{}
	locker := &fakeLocker{held: true}

	_, ran, err := NewBudgetAudit(store, locker).Run(context.Background())
	if err != nil || ran {
		t.Fatalf("expected skip, got ran=%v err=%v", ran, err)
	}
	if store.calls != 0 {
		t.Error("audit must not query while another instance holds the lock")
	}
}

func TestBudgetAuditWithoutLocker(t *testing.T) {
	store := &fakeAuditor{err: errors.New("db down")}
	_, ran, err := NewBudgetAudit(store, nil).Run(context.Background())
	if err == nil || !ran {
		t.Fatalf("expected error from store, got ran=%v err=%v", ran, err)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	if _, err := NewBudgetAudit(&fakeAuditor{}, nil).Schedule("not a cron", time.UTC); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	c, err := NewBudgetAudit(&fakeAuditor{}, nil).Schedule("0 */6 * * *", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	c.Stop()
}
