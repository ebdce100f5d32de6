package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/visaops/internal/domain"
)

const allocationColumns = `code, amount_budget::text, remaining_balance::text, created_by, version, created_at, updated_at`

func scanAllocation(row pgx.Row) (*domain.BudgetAllocation, error) {
	var a domain.BudgetAllocation
	var granted, remaining string
	if err := row.Scan(&a.Code, &granted, &remaining, &a.CreatedBy, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	var err error
	if a.AmountBudget, err = parseDecimal(granted); err != nil {
		return nil, err
	}
	if a.RemainingBalance, err = parseDecimal(remaining); err != nil {
		return nil, err
	}
	return &a, nil
}

func queryEntries(ctx context.Context, q querier, column, value string) ([]domain.BudgetEntry, error) {
	// column is one of two literals chosen by callers in this package.
	rows, err := q.Query(ctx,
		"SELECT id, budget_code, visa_code, delta::text, reason, created_at FROM budget_entries WHERE "+column+" = $1 ORDER BY id",
		value)
	if err != nil {
		return nil, fmt.Errorf("entries query failed: %w", err)
	}
	defer rows.Close()

	entries := []domain.BudgetEntry{}
	for rows.Next() {
		var e domain.BudgetEntry
		var delta string
		if err := rows.Scan(&e.ID, &e.BudgetCode, &e.VisaCode, &delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Delta, err = parseDecimal(delta); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetAllocation(ctx context.Context, code string) (*domain.BudgetAllocation, error) {
	return scanAllocation(s.Db.QueryRow(ctx, "SELECT "+allocationColumns+" FROM amount_budget WHERE code = $1", code))
}

// ListAllocations returns budgets that still have something left, for the
// parent selector of the Regular form.
func (s *Store) ListAllocations(ctx context.Context, onlyOpen bool) ([]domain.BudgetAllocation, error) {
	query := "SELECT " + allocationColumns + " FROM amount_budget"
	if onlyOpen {
		query += " WHERE remaining_balance > 0"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.Db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("budget query failed: %w", err)
	}
	defer rows.Close()

	list := []domain.BudgetAllocation{}
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// BudgetEntries is the mutation history of one allocation.
func (s *Store) BudgetEntries(ctx context.Context, budgetCode string) ([]domain.BudgetEntry, error) {
	return queryEntries(ctx, s.Db, "budget_code", budgetCode)
}

// AuditAllocations finds allocations whose balance is out of range or does
// not match the sum of their entries.
func (s *Store) AuditAllocations(ctx context.Context) ([]domain.BudgetViolation, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT b.code, b.amount_budget::text, b.remaining_balance::text, COALESCE(sum(e.delta), 0)::text
		FROM amount_budget b
		LEFT JOIN budget_entries e ON e.budget_code = b.code
		GROUP BY b.code, b.amount_budget, b.remaining_balance
		HAVING b.remaining_balance < 0
			OR b.remaining_balance > b.amount_budget
			OR b.remaining_balance <> COALESCE(sum(e.delta), 0)
		ORDER BY b.code`)
	if err != nil {
		return nil, fmt.Errorf("audit query failed: %w", err)
	}
	defer rows.Close()

	out := []domain.BudgetViolation{}
	for rows.Next() {
		var v domain.BudgetViolation
		var granted, remaining, total string
		if err := rows.Scan(&v.Code, &granted, &remaining, &total); err != nil {
			return nil, err
		}
		if v.AmountBudget, err = parseDecimal(granted); err != nil {
			return nil, err
		}
		if v.RemainingBalance, err = parseDecimal(remaining); err != nil {
			return nil, err
		}
		if v.EntriesTotal, err = parseDecimal(total); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
