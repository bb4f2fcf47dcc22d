package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/nekogravitycat/parking-booking-backend/internal/slot"
)

// memRepo is an in-memory Repository with the same compare-and-set
// semantics as the Postgres implementation.
type memRepo struct {
	mu        sync.Mutex
	rows      map[string]Booking
	insertErr error
	updateErr error // returned by every UpdateStatus when set
	updates   int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]Booking)}
}

func (r *memRepo) Insert(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, row := range r.rows {
		if row.SlotID == b.SlotID && !row.Status.IsTerminal() {
			return ErrSlotUnavailable
		}
	}
	r.rows[b.ID] = *b
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (r *memRepo) List(_ context.Context, filter Filter) ([]*Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, row := range r.rows {
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, row.Status) {
			continue
		}
		b := row
		out = append(out, &b)
	}
	return out, len(out), nil
}

func (r *memRepo) ListByStatus(_ context.Context, statuses []Status) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, row := range r.rows {
		if containsStatus(statuses, row.Status) {
			b := row
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, b *Booking, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	row, ok := r.rows[b.ID]
	if !ok {
		return ErrNotFound
	}
	if row.Status != expected {
		return ErrConflict
	}
	r.rows[b.ID] = *b
	r.updates++
	return nil
}

func (r *memRepo) put(b *Booking) {
	r.mu.Lock()
	r.rows[b.ID] = *b
	r.mu.Unlock()
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeSlots struct {
	mu       sync.Mutex
	slots    map[string]*slot.Slot
	releases int
	getErr   error
}

func newFakeSlots(slots ...*slot.Slot) *fakeSlots {
	f := &fakeSlots{slots: make(map[string]*slot.Slot)}
	for _, s := range slots {
		f.slots[s.ID] = s
	}
	return f
}

func (f *fakeSlots) GetByID(_ context.Context, id string) (*slot.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.slots[id]
	if !ok {
		return nil, slot.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSlots) MarkOccupied(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return slot.ErrNotFound
	}
	if s.Status != slot.StatusAvailable {
		return slot.ErrNotAvailable
	}
	s.Status = slot.StatusOccupied
	return nil
}

func (f *fakeSlots) MarkAvailable(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[id]; ok {
		s.Status = slot.StatusAvailable
	}
	f.releases++
	return nil
}

func (f *fakeSlots) status(id string) slot.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[id].Status
}

type published struct {
	key   string
	event LifecycleEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	ev, _ := v.(LifecycleEvent)
	p.events = append(p.events, published{key: key, event: ev})
	return nil
}

func (p *recordingPublisher) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.key == key {
			n++
		}
	}
	return n
}
