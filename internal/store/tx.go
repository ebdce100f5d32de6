package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/domain"
)

// Tx is the set of writes a submission or approval performs atomically.
type Tx interface {
	GetIdempotency(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	ReserveIdempotency(ctx context.Context, key, requestHash string) error
	CompleteIdempotency(ctx context.Context, key, visaCode string, status int, body []byte) error

	LockPrefix(ctx context.Context, prefix string) error
	CodesWithPrefix(ctx context.Context, prefix string) ([]string, error)

	InsertVisa(ctx context.Context, v *domain.Visa) error
	GetVisaForUpdate(ctx context.Context, code string) (*domain.Visa, error)
	UpdateVisaStatus(ctx context.Context, code string, status domain.Status) error
	InsertLines(ctx context.Context, code string, lines []domain.VisaLine) error

	InsertAllocation(ctx context.Context, a *domain.BudgetAllocation) error
	GetAllocationForUpdate(ctx context.Context, code string) (*domain.BudgetAllocation, error)
	SetRemaining(ctx context.Context, code string, remaining decimal.Decimal, version int64) (int64, error)
	InsertBudgetEntry(ctx context.Context, e *domain.BudgetEntry) error
	EntriesForVisa(ctx context.Context, visaCode string) ([]domain.BudgetEntry, error)

	InsertAttachment(ctx context.Context, a *domain.Attachment) error

	InsertApprovers(ctx context.Context, route []domain.Approver) error
	ListApprovers(ctx context.Context, code string) ([]domain.Approver, error)
	UpdateApproverState(ctx context.Context, code string, step int, state string) error
	InsertHistory(ctx context.Context, h *domain.ApprovalHistory) error
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetIdempotency(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec := domain.IdempotencyRecord{Key: key}
	var status *int
	var body []byte
	err := t.tx.QueryRow(ctx,
		"SELECT request_hash, status, response_status, response_body FROM idempotency_keys WHERE key = $1",
		key,
	).Scan(&rec.RequestHash, &rec.Status, &status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	if status != nil {
		rec.ResponseStatus = *status
	}
	rec.ResponseBody = json.RawMessage(body)
	return &rec, nil
}

func (t *txStore) ReserveIdempotency(ctx context.Context, key, requestHash string) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO idempotency_keys (key, request_hash, status) VALUES ($1, $2, 'in_progress')",
		key, requestHash,
	)
	if err != nil {
		if errors.Is(mapError(err), ErrDuplicate) {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("key reservation failed: %w", err)
	}
	return nil
}

func (t *txStore) CompleteIdempotency(ctx context.Context, key, visaCode string, status int, body []byte) error {
	_, err := t.tx.Exec(ctx,
		"UPDATE idempotency_keys SET status = 'completed', visa_code = $1, response_status = $2, response_body = $3 WHERE key = $4",
		visaCode, status, body, key,
	)
	if err != nil {
		return fmt.Errorf("idempotency update failed: %w", err)
	}
	return nil
}

// LockPrefix serializes code generation for one prefix until the tx ends.
func (t *txStore) LockPrefix(ctx context.Context, prefix string) error {
	if _, err := t.tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", prefix); err != nil {
		return fmt.Errorf("prefix lock failed: %w", err)
	}
	return nil
}

func (t *txStore) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return codesWithPrefix(ctx, t.tx, prefix)
}

func (t *txStore) InsertVisa(ctx context.Context, v *domain.Visa) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO visas (code, visa_type, distributor_id, account_types, amount, objective,
			promo_scheme, parent_code, activity_id, status, created_by)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		v.Code, string(v.Type), v.DistributorID, v.AccountTypes, v.Amount.String(), v.Objective,
		v.PromoScheme, v.ParentCode, v.ActivityID, string(v.Status), v.CreatedBy,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("visa insert failed: %w", mapError(err))
	}
	return nil
}

func (t *txStore) GetVisaForUpdate(ctx context.Context, code string) (*domain.Visa, error) {
	return scanVisa(t.tx.QueryRow(ctx, "SELECT "+visaColumns+" FROM visas WHERE code = $1 FOR UPDATE", code))
}

func (t *txStore) UpdateVisaStatus(ctx context.Context, code string, status domain.Status) error {
	tag, err := t.tx.Exec(ctx, "UPDATE visas SET status = $1, updated_at = now() WHERE code = $2", string(status), code)
	if err != nil {
		return fmt.Errorf("visa status update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txStore) InsertLines(ctx context.Context, code string, lines []domain.VisaLine) error {
	if len(lines) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, l := range lines {
		b.Queue("INSERT INTO visa_lines (visa_code, kind, label, amount) VALUES ($1, $2, $3, $4::numeric)",
			code, string(l.Kind), l.Label, l.Amount.String())
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("visa lines insert failed: %w", mapError(err))
	}
	return nil
}

func (t *txStore) InsertAllocation(ctx context.Context, a *domain.BudgetAllocation) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO amount_budget (code, amount_budget, remaining_balance, created_by)
		VALUES ($1, $2::numeric, $3::numeric, $4)
		RETURNING version, created_at, updated_at`,
		a.Code, a.AmountBudget.String(), a.RemainingBalance.String(), a.CreatedBy,
	).Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("budget insert failed: %w", mapError(err))
	}
	return nil
}

func (t *txStore) GetAllocationForUpdate(ctx context.Context, code string) (*domain.BudgetAllocation, error) {
	return scanAllocation(t.tx.QueryRow(ctx, "SELECT "+allocationColumns+" FROM amount_budget WHERE code = $1 FOR UPDATE", code))
}

// SetRemaining writes a new balance only if the row is still at version.
func (t *txStore) SetRemaining(ctx context.Context, code string, remaining decimal.Decimal, version int64) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx, `
		UPDATE amount_budget
		SET remaining_balance = $1::numeric, version = version + 1, updated_at = now()
		WHERE code = $2 AND version = $3
		RETURNING version`,
		remaining.String(), code, version,
	).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrVersionMismatch
	}
	if err != nil {
		return 0, fmt.Errorf("balance update failed: %w", mapError(err))
	}
	return next, nil
}

func (t *txStore) InsertBudgetEntry(ctx context.Context, e *domain.BudgetEntry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO budget_entries (budget_code, visa_code, delta, reason)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING id, created_at`,
		e.BudgetCode, e.VisaCode, e.Delta.String(), e.Reason,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("budget entry failed: %w", mapError(err))
	}
	return nil
}

func (t *txStore) EntriesForVisa(ctx context.Context, visaCode string) ([]domain.BudgetEntry, error) {
	return queryEntries(ctx, t.tx, "visa_code", visaCode)
}

func (t *txStore) InsertAttachment(ctx context.Context, a *domain.Attachment) error {
	return insertAttachment(ctx, t.tx, a)
}

func (t *txStore) InsertApprovers(ctx context.Context, route []domain.Approver) error {
	if len(route) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, a := range route {
		b.Queue("INSERT INTO visa_approvers (visa_code, step, approver, state) VALUES ($1, $2, $3, $4)",
			a.Code, a.Step, a.Approver, a.State)
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("approver route insert failed: %w", mapError(err))
	}
	return nil
}

func (t *txStore) ListApprovers(ctx context.Context, code string) ([]domain.Approver, error) {
	return listApprovers(ctx, t.tx, code)
}

func (t *txStore) UpdateApproverState(ctx context.Context, code string, step int, state string) error {
	tag, err := t.tx.Exec(ctx, "UPDATE visa_approvers SET state = $1 WHERE visa_code = $2 AND step = $3", state, code, step)
	if err != nil {
		return fmt.Errorf("approver update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txStore) InsertHistory(ctx context.Context, h *domain.ApprovalHistory) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO approval_history (pwp_code, response, approver, remarks)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		h.Code, h.Response, h.Approver, h.Remarks,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("approval history insert failed: %w", mapError(err))
	}
	return nil
}
