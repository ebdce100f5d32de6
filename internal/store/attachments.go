package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/visaops/internal/domain"
)

func insertAttachment(ctx context.Context, q querier, a *domain.Attachment) error {
	err := q.QueryRow(ctx, `
		INSERT INTO attachments (id, visa_code, name, content_type, size, blob_url, data, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		a.ID, a.VisaCode, a.Name, a.ContentType, a.Size, a.BlobURL, a.Data, a.CreatedBy,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("attachment insert failed: %w", mapError(err))
	}
	return nil
}

// InsertAttachment adds an upload to an existing visa outside a submission.
func (s *Store) InsertAttachment(ctx context.Context, a *domain.Attachment) error {
	return insertAttachment(ctx, s.Db, a)
}

// ListAttachments returns metadata only; inline bytes are left out.
func (s *Store) ListAttachments(ctx context.Context, visaCode string) ([]domain.Attachment, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT id, visa_code, name, content_type, size, blob_url, created_by, created_at
		FROM attachments WHERE visa_code = $1 ORDER BY created_at, id`, visaCode)
	if err != nil {
		return nil, fmt.Errorf("attachment query failed: %w", err)
	}
	defer rows.Close()

	list := []domain.Attachment{}
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.VisaCode, &a.Name, &a.ContentType, &a.Size, &a.BlobURL, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetAttachment returns one attachment including inline bytes, if any.
func (s *Store) GetAttachment(ctx context.Context, visaCode, id string) (*domain.Attachment, error) {
	var a domain.Attachment
	err := s.Db.QueryRow(ctx, `
		SELECT id, visa_code, name, content_type, size, blob_url, data, created_by, created_at
		FROM attachments WHERE visa_code = $1 AND id = $2`, visaCode, id,
	).Scan(&a.ID, &a.VisaCode, &a.Name, &a.ContentType, &a.Size, &a.BlobURL, &a.Data, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}
