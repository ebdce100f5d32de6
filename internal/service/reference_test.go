package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/store"
	"github.com/punchamoorthee/visaops/internal/validation"
)

type fakeRefStore struct {
	refs  map[int64]domain.Reference
	next  int64
	calls int
}

func newFakeRefStore() *fakeRefStore {
	return &fakeRefStore{refs: map[int64]domain.Reference{}}
}

func (f *fakeRefStore) ListReferences(_ context.Context, t domain.ReferenceType, parent *domain.RefID) ([]domain.Reference, error) {
	f.calls++
	var out []domain.Reference
	for _, r := range f.refs {
		if r.Type != t {
			continue
		}
		if parent != nil && (r.ParentID == nil || *r.ParentID != *parent) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRefStore) GetReference(_ context.Context, id int64) (*domain.Reference, error) {
	f.calls++
	r, ok := f.refs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRefStore) CreateReference(_ context.Context, t domain.ReferenceType, in domain.ReferenceInput) (*domain.Reference, error) {
	f.calls++
	f.next++
	r := domain.Reference{
		ID: domain.Persisted(f.next), Type: t, Name: in.Name, Code: in.Code,
		Description: in.Description, ParentID: in.ParentID, CreatedAt: time.Now(),
	}
	f.refs[f.next] = r
	return &r, nil
}

func (f *fakeRefStore) UpdateReference(_ context.Context, id int64, in domain.ReferenceInput) (*domain.Reference, error) {
	f.calls++
	r, ok := f.refs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.Name, r.Code, r.Description, r.ParentID = in.Name, in.Code, in.Description, in.ParentID
	f.refs[id] = r
	return &r, nil
}

func (f *fakeRefStore) DeleteReference(_ context.Context, id int64) error {
	f.calls++
	if _, ok := f.refs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.refs, id)
	return nil
}

func (f *fakeRefStore) CountChildren(_ context.Context, id int64) (int, error) {
	f.calls++
	n := 0
	for _, r := range f.refs {
		if r.ParentID != nil && *r.ParentID == domain.Persisted(id) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRefStore) ListLookup(_ context.Context, name, q string) ([]domain.Lookup, error) {
	f.calls++
	return []domain.Lookup{{ID: 1, Code: "D-01", Name: "North Distribution"}}, nil
}

func TestReferenceDraftIDIsRejectedWithoutStoreCall(t *testing.T) {
	fs := newFakeRefStore()
	svc := NewReferenceService(fs)
	ctx := context.Background()

	for _, raw := range []string{"12", "tmp_3", "sb_", "sb_x", ""} {
		id := domain.ParseRefID(raw)
		if err := svc.Delete(ctx, id); !errors.Is(err, ErrInvalidIDFormat) {
			t.Errorf("delete %q: expected ErrInvalidIDFormat, got %v", raw, err)
		}
		if _, err := svc.Update(ctx, id, domain.ReferenceInput{Name: "x"}); !errors.Is(err, ErrInvalidIDFormat) {
			t.Errorf("update %q: expected ErrInvalidIDFormat, got %v", raw, err)
		}
	}
	if fs.calls != 0 {
		t.Errorf("expected no store calls, got %d", fs.calls)
	}
	if ErrInvalidIDFormat.Error() != "Invalid ID format" {
		t.Errorf("unexpected message %q", ErrInvalidIDFormat.Error())
	}
}

func TestReferenceCRUD(t *testing.T) {
	fs := newFakeRefStore()
	svc := NewReferenceService(fs)
	ctx := context.Background()

	dept, err := svc.Create(ctx, domain.RefDepartment, domain.ReferenceInput{Name: "Sales", Code: "SAL"})
	if err != nil {
		t.Fatal(err)
	}
	if dept.ID.String() != "sb_1" {
		t.Errorf("unexpected id %s", dept.ID)
	}

	updated, err := svc.Update(ctx, domain.ParseRefID("sb_1"), domain.ReferenceInput{Name: "Sales & Marketing"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Sales & Marketing" {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := svc.Delete(ctx, dept.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, dept.ID); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("expected ErrReferenceNotFound, got %v", err)
	}

	if _, err := svc.Create(ctx, domain.RefDepartment, domain.ReferenceInput{}); err == nil {
		t.Error("expected validation error for missing name")
	} else {
		var fe validation.FieldErrors
		if !errors.As(err, &fe) || fe["name"] != "required" {
			t.Errorf("unexpected error %v", err)
		}
	}
}

func TestReferenceHierarchy(t *testing.T) {
	fs := newFakeRefStore()
	svc := NewReferenceService(fs)
	ctx := context.Background()

	acct, err := svc.Create(ctx, domain.RefAccountType, domain.ReferenceInput{Name: "Modern Trade"})
	if err != nil {
		t.Fatal(err)
	}
	channel, err := svc.Create(ctx, domain.RefChannel, domain.ReferenceInput{Name: "Retail"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, domain.RefGroupAccount, domain.ReferenceInput{Name: "Key Accounts"}); !errors.Is(err, ErrParentRequired) {
		t.Errorf("expected ErrParentRequired, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.RefGroupAccount, domain.ReferenceInput{Name: "Key Accounts", ParentID: &channel.ID}); !errors.Is(err, ErrParentTypeMismatch) {
		t.Errorf("expected ErrParentTypeMismatch, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.RefChannel, domain.ReferenceInput{Name: "Online", ParentID: &acct.ID}); !errors.Is(err, ErrParentNotAllowed) {
		t.Errorf("expected ErrParentNotAllowed, got %v", err)
	}

	group, err := svc.Create(ctx, domain.RefGroupAccount, domain.ReferenceInput{Name: "Key Accounts", ParentID: &acct.ID})
	if err != nil {
		t.Fatal(err)
	}
	children, err := svc.List(ctx, domain.RefGroupAccount, &acct.ID)
	if err != nil || len(children) != 1 || children[0].ID != group.ID {
		t.Fatalf("unexpected children %+v %v", children, err)
	}

	if err := svc.Delete(ctx, acct.ID); !errors.Is(err, ErrHasChildren) {
		t.Errorf("expected ErrHasChildren, got %v", err)
	}
	if err := svc.Delete(ctx, group.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, acct.ID); err != nil {
		t.Errorf("parent without children should delete, got %v", err)
	}
}

func TestLookupWhitelist(t *testing.T) {
	fs := newFakeRefStore()
	svc := NewReferenceService(fs)

	if _, err := svc.Lookup(context.Background(), "users", ""); !errors.Is(err, ErrUnknownLookup) {
		t.Errorf("expected ErrUnknownLookup, got %v", err)
	}
	rows, err := svc.Lookup(context.Background(), "distributors", "north")
	if err != nil || len(rows) != 1 {
		t.Errorf("unexpected lookup %v %v", rows, err)
	}
}
