package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/visaops/internal/domain"
)

const referenceColumns = `id, reference_type, name, code, description, parent_id, created_at, updated_at`

func scanReference(row pgx.Row) (*domain.Reference, error) {
	var r domain.Reference
	var id int64
	var typ string
	var parent *int64
	if err := row.Scan(&id, &typ, &r.Name, &r.Code, &r.Description, &parent, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	r.ID = domain.Persisted(id)
	r.Type = domain.ReferenceType(typ)
	if parent != nil {
		p := domain.Persisted(*parent)
		r.ParentID = &p
	}
	return &r, nil
}

func parentArg(p *domain.RefID) *int64 {
	if p == nil {
		return nil
	}
	if n, ok := p.Int64(); ok {
		return &n
	}
	return nil
}

// ListReferences returns references of one type, optionally under one parent.
func (s *Store) ListReferences(ctx context.Context, t domain.ReferenceType, parent *domain.RefID) ([]domain.Reference, error) {
	query := "SELECT " + referenceColumns + ` FROM "references" WHERE reference_type = $1`
	args := []any{string(t)}
	if n := parentArg(parent); n != nil {
		query += " AND parent_id = $2"
		args = append(args, *n)
	}
	query += " ORDER BY name, id"

	rows, err := s.Db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reference query failed: %w", err)
	}
	defer rows.Close()

	list := []domain.Reference{}
	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

func (s *Store) GetReference(ctx context.Context, id int64) (*domain.Reference, error) {
	return scanReference(s.Db.QueryRow(ctx, "SELECT "+referenceColumns+` FROM "references" WHERE id = $1`, id))
}

func (s *Store) CreateReference(ctx context.Context, t domain.ReferenceType, in domain.ReferenceInput) (*domain.Reference, error) {
	return scanReference(s.Db.QueryRow(ctx, `
		INSERT INTO "references" (reference_type, name, code, description, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+referenceColumns,
		string(t), in.Name, in.Code, in.Description, parentArg(in.ParentID)))
}

func (s *Store) UpdateReference(ctx context.Context, id int64, in domain.ReferenceInput) (*domain.Reference, error) {
	return scanReference(s.Db.QueryRow(ctx, `
		UPDATE "references"
		SET name = $1, code = $2, description = $3, parent_id = $4, updated_at = now()
		WHERE id = $5
		RETURNING `+referenceColumns,
		in.Name, in.Code, in.Description, parentArg(in.ParentID), id))
}

func (s *Store) DeleteReference(ctx context.Context, id int64) error {
	tag, err := s.Db.Exec(ctx, `DELETE FROM "references" WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reference delete failed: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountChildren(ctx context.Context, id int64) (int, error) {
	var n int
	if err := s.Db.QueryRow(ctx, `SELECT count(*) FROM "references" WHERE parent_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("child count failed: %w", err)
	}
	return n, nil
}
