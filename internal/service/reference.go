package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/store"
	"github.com/punchamoorthee/visaops/internal/validation"
)

type ReferenceStore interface {
	ListReferences(ctx context.Context, t domain.ReferenceType, parent *domain.RefID) ([]domain.Reference, error)
	GetReference(ctx context.Context, id int64) (*domain.Reference, error)
	CreateReference(ctx context.Context, t domain.ReferenceType, in domain.ReferenceInput) (*domain.Reference, error)
	UpdateReference(ctx context.Context, id int64, in domain.ReferenceInput) (*domain.Reference, error)
	DeleteReference(ctx context.Context, id int64) error
	CountChildren(ctx context.Context, id int64) (int, error)
	ListLookup(ctx context.Context, name, q string) ([]domain.Lookup, error)
}

// ReferenceService maintains the polymorphic reference table and serves the
// read-only form lookups.
type ReferenceService struct {
	store ReferenceStore
}

func NewReferenceService(s ReferenceStore) *ReferenceService {
	return &ReferenceService{store: s}
}

func (s *ReferenceService) List(ctx context.Context, t domain.ReferenceType, parent *domain.RefID) ([]domain.Reference, error) {
	return s.store.ListReferences(ctx, t, parent)
}

func (s *ReferenceService) Get(ctx context.Context, id domain.RefID) (*domain.Reference, error) {
	n, ok := id.Int64()
	if !ok {
		return nil, ErrInvalidIDFormat
	}
	r, err := s.store.GetReference(ctx, n)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReferenceNotFound
	}
	return r, err
}

func (s *ReferenceService) Create(ctx context.Context, t domain.ReferenceType, in domain.ReferenceInput) (*domain.Reference, error) {
	if err := s.check(ctx, t, in); err != nil {
		return nil, err
	}
	return s.store.CreateReference(ctx, t, in)
}

// Update rejects draft ids without touching the store.
func (s *ReferenceService) Update(ctx context.Context, id domain.RefID, in domain.ReferenceInput) (*domain.Reference, error) {
	n, ok := id.Int64()
	if !ok {
		return nil, ErrInvalidIDFormat
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, cur.Type, in); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID == id {
		return nil, ErrParentTypeMismatch
	}
	r, err := s.store.UpdateReference(ctx, n, in)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReferenceNotFound
	}
	return r, err
}

// Delete rejects draft ids without touching the store, and refuses to orphan
// children.
func (s *ReferenceService) Delete(ctx context.Context, id domain.RefID) error {
	n, ok := id.Int64()
	if !ok {
		return ErrInvalidIDFormat
	}
	children, err := s.store.CountChildren(ctx, n)
	if err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: %d", ErrHasChildren, children)
	}
	err = s.store.DeleteReference(ctx, n)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrReferenceNotFound
	case errors.Is(err, store.ErrForeignKeyViolation):
		return ErrHasChildren
	}
	return err
}

func (s *ReferenceService) Lookup(ctx context.Context, name, q string) ([]domain.Lookup, error) {
	if !store.IsLookup(name) {
		return nil, ErrUnknownLookup
	}
	return s.store.ListLookup(ctx, name, q)
}

// check validates the payload and its parent against the drill-down rules.
func (s *ReferenceService) check(ctx context.Context, t domain.ReferenceType, in domain.ReferenceInput) error {
	if err := validation.Struct(in).Err(); err != nil {
		return err
	}
	want, needsParent := t.ParentType()
	hasParent := in.ParentID != nil && in.ParentID.IsPersisted()
	if !needsParent {
		if hasParent {
			return ErrParentNotAllowed
		}
		return nil
	}
	if !hasParent {
		return ErrParentRequired
	}
	parent, err := s.Get(ctx, *in.ParentID)
	if err != nil {
		if errors.Is(err, ErrReferenceNotFound) {
			return fmt.Errorf("%w: parent %s", ErrReferenceNotFound, in.ParentID)
		}
		return err
	}
	if parent.Type != want {
		return ErrParentTypeMismatch
	}
	return nil
}
