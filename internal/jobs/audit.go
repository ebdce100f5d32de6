// Package jobs runs scheduled maintenance against the budget ledger.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/logging"
)

const moduleName = "jobs"

// auditLockKey guards the audit so one instance runs it per tick.
const auditLockKey = "visaops:lock:budget-audit"

var auditViolations = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "visaops_budget_audit_violations",
	Help: "Budget allocations that broke a ledger invariant at the last audit",
})

type Auditor interface {
	AuditAllocations(ctx context.Context) ([]domain.BudgetViolation, error)
}

// Locker obtains a short-lived distributed lock. *redislock.Client satisfies
// it through RedisLocker; a nil Locker runs unguarded.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(c *redislock.Client) *RedisLocker {
	return &RedisLocker{client: c}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// BudgetAudit checks every allocation against its entries.
type BudgetAudit struct {
	store   Auditor
	locker  Locker
	timeout time.Duration
}

func NewBudgetAudit(s Auditor, locker Locker) *BudgetAudit {
	return &BudgetAudit{store: s, locker: locker, timeout: 5 * time.Minute}
}

// Run performs one audit pass. It reports false when another instance holds
// the lock.
func (a *BudgetAudit) Run(ctx context.Context) ([]domain.BudgetViolation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.locker != nil {
		release, err := a.locker.Obtain(ctx, auditLockKey, a.timeout)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("obtain audit lock: %w", err)
		}
		defer func() {
			_ = release(context.WithoutCancel(ctx))
		}()
	}

	violations, err := a.store.AuditAllocations(ctx)
	if err != nil {
		return nil, true, err
	}
	auditViolations.Set(float64(len(violations)))
	for _, v := range violations {
		logging.With(moduleName).WithFields(map[string]any{
			"code":          v.Code,
			"amount_budget": v.AmountBudget.String(),
			"remaining":     v.RemainingBalance.String(),
			"entries_total": v.EntriesTotal.String(),
		}).Warn("budget allocation out of balance")
	}
	return violations, true, nil
}

// Schedule registers the audit on a cron in loc and starts it. Stop the
// returned cron on shutdown.
func (a *BudgetAudit) Schedule(spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		violations, ran, err := a.Run(context.Background())
		if err != nil {
			logging.Error(moduleName, "BudgetAudit", "budget audit failed", nil, err)
			return
		}
		if ran {
			logging.With(moduleName).WithField("violations", len(violations)).Info("budget audit finished")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule budget audit: %w", err)
	}
	c.Start()
	return c, nil
}
