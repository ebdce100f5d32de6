package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/store"
)

// AddAttachment stores a claim upload against an existing visa.
func (s *VisaService) AddAttachment(ctx context.Context, code, name string, data []byte, by string) (*domain.Attachment, error) {
	if _, err := s.getVisa(ctx, code); err != nil {
		return nil, err
	}
	a, err := s.storeFile(ctx, name, data, by)
	if err != nil {
		return nil, err
	}
	a.VisaCode = code
	if err := s.store.InsertAttachment(ctx, a); err != nil {
		s.discard(ctx, []domain.Attachment{*a})
		return nil, err
	}
	s.publish(ctx, events.Event{Type: events.UploadsChanged, Code: code, AttachmentID: a.ID})
	return a, nil
}

func (s *VisaService) Attachments(ctx context.Context, code string) ([]domain.Attachment, error) {
	if _, err := s.getVisa(ctx, code); err != nil {
		return nil, err
	}
	return s.store.ListAttachments(ctx, code)
}

// OpenAttachment returns the metadata and a reader over the bytes.
func (s *VisaService) OpenAttachment(ctx context.Context, code, id string) (*domain.Attachment, io.ReadCloser, error) {
	a, err := s.store.GetAttachment(ctx, code, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	if a.BlobURL == "" {
		return a, io.NopCloser(bytes.NewReader(a.Data)), nil
	}
	rc, err := s.blobs.Open(ctx, a.BlobURL)
	if err != nil {
		return nil, nil, err
	}
	return a, rc, nil
}
