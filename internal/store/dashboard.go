package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/visaops/internal/domain"
)

// Dashboard aggregates visas created in year, bucketed in the tz time zone.
func (s *Store) Dashboard(ctx context.Context, year int, tz string) (*domain.Dashboard, error) {
	d := &domain.Dashboard{
		Year:     year,
		Statuses: []domain.TypeStatusCount{},
		Monthly:  []domain.MonthlyTotal{},
	}

	rows, err := s.Db.Query(ctx, `
		SELECT visa_type, status, count(*)
		FROM visas
		WHERE extract(year FROM created_at AT TIME ZONE $2) = $1
		GROUP BY visa_type, status
		ORDER BY visa_type, status`, year, tz)
	if err != nil {
		return nil, fmt.Errorf("status counts failed: %w", err)
	}
	for rows.Next() {
		var c domain.TypeStatusCount
		var typ, status string
		if err := rows.Scan(&typ, &status, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		c.Type, c.Status = domain.VisaType(typ), domain.Status(status)
		d.Statuses = append(d.Statuses, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.Db.Query(ctx, `
		SELECT extract(month FROM created_at AT TIME ZONE $2)::int AS month, visa_type, sum(amount)::text, count(*)
		FROM visas
		WHERE extract(year FROM created_at AT TIME ZONE $2) = $1
		GROUP BY month, visa_type
		ORDER BY month, visa_type`, year, tz)
	if err != nil {
		return nil, fmt.Errorf("monthly totals failed: %w", err)
	}
	for rows.Next() {
		var m domain.MonthlyTotal
		var typ, amount string
		if err := rows.Scan(&m.Month, &typ, &amount, &m.Count); err != nil {
			rows.Close()
			return nil, err
		}
		m.Type = domain.VisaType(typ)
		if m.Amount, err = parseDecimal(amount); err != nil {
			rows.Close()
			return nil, err
		}
		d.Monthly = append(d.Monthly, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var granted, remaining string
	err = s.Db.QueryRow(ctx, `
		SELECT COALESCE(sum(b.amount_budget), 0)::text, COALESCE(sum(b.remaining_balance), 0)::text
		FROM amount_budget b JOIN visas v ON v.code = b.code
		WHERE extract(year FROM v.created_at AT TIME ZONE $2) = $1`, year, tz,
	).Scan(&granted, &remaining)
	if err != nil {
		return nil, fmt.Errorf("budget totals failed: %w", err)
	}
	if d.Budget.Granted, err = parseDecimal(granted); err != nil {
		return nil, err
	}
	if d.Budget.Remaining, err = parseDecimal(remaining); err != nil {
		return nil, err
	}
	return d, nil
}
