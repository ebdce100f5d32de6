package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/store"
)

// fakeStore is an in-memory VisaStore. InTx serializes transactions and
// restores a snapshot when fn fails.
type fakeStore struct {
	mu sync.Mutex

	visas       map[string]domain.Visa
	lines       map[string][]domain.VisaLine
	allocations map[string]domain.BudgetAllocation
	entries     []domain.BudgetEntry
	approvers   map[string][]domain.Approver
	history     []domain.ApprovalHistory
	attachments []domain.Attachment
	idem        map[string]domain.IdempotencyRecord
	dashboard   *domain.Dashboard

	clock  time.Time
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		visas:       map[string]domain.Visa{},
		lines:       map[string][]domain.VisaLine{},
		allocations: map[string]domain.BudgetAllocation{},
		approvers:   map[string][]domain.Approver{},
		idem:        map[string]domain.IdempotencyRecord{},
		clock:       time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

type fakeSnapshot struct {
	visas       map[string]domain.Visa
	lines       map[string][]domain.VisaLine
	allocations map[string]domain.BudgetAllocation
	entries     []domain.BudgetEntry
	approvers   map[string][]domain.Approver
	history     []domain.ApprovalHistory
	attachments []domain.Attachment
	idem        map[string]domain.IdempotencyRecord
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) snapshot() fakeSnapshot {
	approvers := make(map[string][]domain.Approver, len(f.approvers))
	for k, v := range f.approvers {
		approvers[k] = append([]domain.Approver(nil), v...)
	}
	return fakeSnapshot{
		visas:       cloneMap(f.visas),
		lines:       cloneMap(f.lines),
		allocations: cloneMap(f.allocations),
		entries:     append([]domain.BudgetEntry(nil), f.entries...),
		approvers:   approvers,
		history:     append([]domain.ApprovalHistory(nil), f.history...),
		attachments: append([]domain.Attachment(nil), f.attachments...),
		idem:        cloneMap(f.idem),
	}
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.visas, f.lines, f.allocations = s.visas, s.lines, s.allocations
	f.entries, f.approvers, f.history = s.entries, s.approvers, s.history
	f.attachments, f.idem = s.attachments, s.idem
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(&fakeTx{f: f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) GetVisa(_ context.Context, code string) (*domain.Visa, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visas[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (f *fakeStore) ListLines(_ context.Context, code string) ([]domain.VisaLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.VisaLine{}, f.lines[code]...), nil
}

func (f *fakeStore) ListVisas(_ context.Context, flt domain.ListFilter) ([]domain.Visa, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Visa
	for _, v := range f.visas {
		if flt.Type != "" && v.Type != flt.Type {
			continue
		}
		if flt.Status != "" && v.Status != flt.Status {
			continue
		}
		if q := strings.ToLower(flt.Search); q != "" &&
			!strings.Contains(strings.ToLower(v.Code+" "+v.DistributorID+" "+v.Objective), q) {
			continue
		}
		if flt.Approver != "" {
			cur, ok := currentApprover(f.approvers[v.Code])
			if !ok || !strings.EqualFold(cur, flt.Approver) {
				continue
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code > out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	if flt.Limit > 0 {
		lo := min(flt.Offset(), total)
		hi := min(lo+flt.Limit, total)
		out = out[lo:hi]
	}
	return out, total, nil
}

func currentApprover(route []domain.Approver) (string, bool) {
	for _, a := range route {
		if a.State == domain.ApproverPending {
			return a.Approver, true
		}
	}
	return "", false
}

func (f *fakeStore) HistoryFor(_ context.Context, codes []string) ([]domain.ApprovalHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ApprovalHistory
	for _, h := range f.history {
		for _, c := range codes {
			if h.Code == c {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListApprovers(_ context.Context, code string) ([]domain.Approver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Approver{}, f.approvers[code]...), nil
}

func (f *fakeStore) codesWithPrefix(prefix string) []string {
	var codes []string
	for c := range f.visas {
		if strings.HasPrefix(c, prefix) {
			codes = append(codes, c)
		}
	}
	return codes
}

func (f *fakeStore) CodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codesWithPrefix(prefix), nil
}

func (f *fakeStore) GetAllocation(_ context.Context, code string) (*domain.BudgetAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.allocations[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (f *fakeStore) ListAllocations(_ context.Context, onlyOpen bool) ([]domain.BudgetAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BudgetAllocation
	for _, a := range f.allocations {
		if onlyOpen && !a.RemainingBalance.IsPositive() {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeStore) BudgetEntries(_ context.Context, code string) ([]domain.BudgetEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BudgetEntry
	for _, e := range f.entries {
		if e.BudgetCode == code {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAttachments(_ context.Context, code string) ([]domain.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Attachment{}
	for _, a := range f.attachments {
		if a.VisaCode == code {
			a.Data = nil
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAttachment(_ context.Context, code, id string) (*domain.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attachments {
		if a.VisaCode == code && a.ID == id {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) InsertAttachment(_ context.Context, a *domain.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.CreatedAt = f.tick()
	f.attachments = append(f.attachments, *a)
	return nil
}

func (f *fakeStore) Dashboard(_ context.Context, year int, _ string) (*domain.Dashboard, error) {
	d := domain.Dashboard{}
	if f.dashboard != nil {
		d = *f.dashboard
	}
	d.Year = year
	return &d, nil
}

// allocation returns a copy of the current allocation of code.
func (f *fakeStore) allocation(code string) domain.BudgetAllocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allocations[code]
}

func (f *fakeStore) entriesTotal(code string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, e := range f.entries {
		if e.BudgetCode == code {
			total = total.Add(e.Delta)
		}
	}
	return total
}

type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) GetIdempotency(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec, ok := t.f.idem[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *fakeTx) ReserveIdempotency(_ context.Context, key, hash string) error {
	if _, ok := t.f.idem[key]; ok {
		return store.ErrIdempotencyConflict
	}
	t.f.idem[key] = domain.IdempotencyRecord{Key: key, RequestHash: hash, Status: "in_progress"}
	return nil
}

func (t *fakeTx) CompleteIdempotency(_ context.Context, key, _ string, status int, body []byte) error {
	rec := t.f.idem[key]
	rec.Status = "completed"
	rec.ResponseStatus = status
	rec.ResponseBody = append([]byte(nil), body...)
	t.f.idem[key] = rec
	return nil
}

func (t *fakeTx) LockPrefix(context.Context, string) error { return nil }

func (t *fakeTx) CodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return t.f.codesWithPrefix(prefix), nil
}

func (t *fakeTx) InsertVisa(_ context.Context, v *domain.Visa) error {
	if _, ok := t.f.visas[v.Code]; ok {
		return store.ErrDuplicate
	}
	v.CreatedAt = t.f.tick()
	v.UpdatedAt = v.CreatedAt
	t.f.visas[v.Code] = *v
	return nil
}

func (t *fakeTx) GetVisaForUpdate(_ context.Context, code string) (*domain.Visa, error) {
	v, ok := t.f.visas[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (t *fakeTx) UpdateVisaStatus(_ context.Context, code string, status domain.Status) error {
	v, ok := t.f.visas[code]
	if !ok {
		return store.ErrNotFound
	}
	v.Status = status
	t.f.visas[code] = v
	return nil
}

func (t *fakeTx) InsertLines(_ context.Context, code string, lines []domain.VisaLine) error {
	t.f.lines[code] = append(t.f.lines[code], lines...)
	return nil
}

func (t *fakeTx) InsertAllocation(_ context.Context, a *domain.BudgetAllocation) error {
	a.Version = 1
	a.CreatedAt = t.f.clock
	t.f.allocations[a.Code] = *a
	return nil
}

func (t *fakeTx) GetAllocationForUpdate(_ context.Context, code string) (*domain.BudgetAllocation, error) {
	a, ok := t.f.allocations[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (t *fakeTx) SetRemaining(_ context.Context, code string, remaining decimal.Decimal, version int64) (int64, error) {
	a, ok := t.f.allocations[code]
	if !ok || a.Version != version {
		return 0, store.ErrVersionMismatch
	}
	if remaining.IsNegative() || remaining.GreaterThan(a.AmountBudget) {
		return 0, store.ErrCheckViolation
	}
	a.RemainingBalance = remaining
	a.Version++
	t.f.allocations[code] = a
	return a.Version, nil
}

func (t *fakeTx) InsertBudgetEntry(_ context.Context, e *domain.BudgetEntry) error {
	e.ID = t.f.id()
	e.CreatedAt = t.f.clock
	t.f.entries = append(t.f.entries, *e)
	return nil
}

func (t *fakeTx) EntriesForVisa(_ context.Context, code string) ([]domain.BudgetEntry, error) {
	var out []domain.BudgetEntry
	for _, e := range t.f.entries {
		if e.VisaCode == code {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *fakeTx) InsertAttachment(_ context.Context, a *domain.Attachment) error {
	a.CreatedAt = t.f.clock
	t.f.attachments = append(t.f.attachments, *a)
	return nil
}

func (t *fakeTx) InsertApprovers(_ context.Context, route []domain.Approver) error {
	for _, a := range route {
		t.f.approvers[a.Code] = append(t.f.approvers[a.Code], a)
	}
	return nil
}

func (t *fakeTx) ListApprovers(_ context.Context, code string) ([]domain.Approver, error) {
	return append([]domain.Approver{}, t.f.approvers[code]...), nil
}

func (t *fakeTx) UpdateApproverState(_ context.Context, code string, step int, state string) error {
	for i, a := range t.f.approvers[code] {
		if a.Step == step {
			t.f.approvers[code][i].State = state
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *fakeTx) InsertHistory(_ context.Context, h *domain.ApprovalHistory) error {
	h.ID = t.f.id()
	h.CreatedAt = t.f.tick()
	t.f.history = append(t.f.history, *h)
	return nil
}

// fakeBlobs keeps objects in memory and can be told to fail.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (b *fakeBlobs) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return "", errors.New("bucket unavailable")
	}
	url := "mem://" + key
	b.objects[url] = data
	return url, nil
}

func (b *fakeBlobs) Open(_ context.Context, url string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[url]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (b *fakeBlobs) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, url)
	b.deleted = append(b.deleted, url)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
