package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/visaops/internal/domain"
)

const visaColumns = `code, visa_type, distributor_id, account_types, amount::text, objective,
	promo_scheme, parent_code, activity_id, status, created_by, created_at, updated_at`

func scanVisa(row pgx.Row) (*domain.Visa, error) {
	var v domain.Visa
	var typ, status, amount string
	err := row.Scan(&v.Code, &typ, &v.DistributorID, &v.AccountTypes, &amount, &v.Objective,
		&v.PromoScheme, &v.ParentCode, &v.ActivityID, &status, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	v.Type = domain.VisaType(typ)
	v.Status = domain.Status(status)
	if v.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	return &v, nil
}

func codesWithPrefix(ctx context.Context, q querier, prefix string) ([]string, error) {
	rows, err := q.Query(ctx, "SELECT code FROM visas WHERE starts_with(code, $1)", prefix)
	if err != nil {
		return nil, fmt.Errorf("code query failed: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("code scan failed: %w", err)
	}
	return codes, nil
}

// CodesWithPrefix lists existing codes under prefix outside any transaction.
func (s *Store) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return codesWithPrefix(ctx, s.Db, prefix)
}

func (s *Store) GetVisa(ctx context.Context, code string) (*domain.Visa, error) {
	return scanVisa(s.Db.QueryRow(ctx, "SELECT "+visaColumns+" FROM visas WHERE code = $1", code))
}

func (s *Store) ListLines(ctx context.Context, code string) ([]domain.VisaLine, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT kind, label, amount::text FROM visa_lines WHERE visa_code = $1 ORDER BY id", code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.VisaLine{}
	for rows.Next() {
		var l domain.VisaLine
		var kind, amount string
		if err := rows.Scan(&kind, &l.Label, &amount); err != nil {
			return nil, err
		}
		l.Kind = domain.LineKind(kind)
		if l.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// visaWhere builds the WHERE clause shared by list and count queries.
func visaWhere(f domain.ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("v.visa_type = $%d", string(f.Type))
	}
	if f.Status != "" {
		add("v.status = $%d", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, containsPattern(s))
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(v.code ILIKE $%[1]d ESCAPE '\' OR v.distributor_id ILIKE $%[1]d ESCAPE '\'
			OR v.objective ILIKE $%[1]d ESCAPE '\' OR v.created_by ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if f.Approver != "" {
		add(`EXISTS (SELECT 1 FROM visa_approvers a WHERE a.visa_code = v.code AND a.state = 'pending'
			AND a.step = (SELECT min(step) FROM visa_approvers p WHERE p.visa_code = v.code AND p.state = 'pending')
			AND lower(a.approver) = lower($%d))`, f.Approver)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListVisas returns one page of visas, newest first, and the total match count.
func (s *Store) ListVisas(ctx context.Context, f domain.ListFilter) ([]domain.Visa, int, error) {
	where, args := visaWhere(f)

	var total int
	if err := s.Db.QueryRow(ctx, "SELECT count(*) FROM visas v"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}

	query := "SELECT " + prefixed("v.", visaColumns) + " FROM visas v" + where +
		" ORDER BY v.created_at DESC, v.code DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.Db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("visa query failed: %w", err)
	}
	defer rows.Close()

	visas := []domain.Visa{}
	for rows.Next() {
		v, err := scanVisa(rows)
		if err != nil {
			return nil, 0, err
		}
		visas = append(visas, *v)
	}
	return visas, total, rows.Err()
}

// HistoryFor fetches approval history of the given codes only.
func (s *Store) HistoryFor(ctx context.Context, codes []string) ([]domain.ApprovalHistory, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := s.Db.Query(ctx, `
		SELECT id, pwp_code, response, approver, remarks, created_at
		FROM approval_history WHERE pwp_code = ANY($1)
		ORDER BY created_at DESC, id DESC`, codes)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	history := []domain.ApprovalHistory{}
	for rows.Next() {
		var h domain.ApprovalHistory
		if err := rows.Scan(&h.ID, &h.Code, &h.Response, &h.Approver, &h.Remarks, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func listApprovers(ctx context.Context, q querier, code string) ([]domain.Approver, error) {
	rows, err := q.Query(ctx,
		"SELECT visa_code, step, approver, state FROM visa_approvers WHERE visa_code = $1 ORDER BY step", code)
	if err != nil {
		return nil, fmt.Errorf("approver query failed: %w", err)
	}
	route, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Approver, error) {
		var a domain.Approver
		err := row.Scan(&a.Code, &a.Step, &a.Approver, &a.State)
		return a, err
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

func (s *Store) ListApprovers(ctx context.Context, code string) ([]domain.Approver, error) {
	return listApprovers(ctx, s.Db, code)
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
