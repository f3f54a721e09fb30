package property

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store. It mirrors Firestore's observable
// behavior: documents list in ID order, updating a missing document fails
// with ErrNotFound and deleting one is a no-op. Watchers always receive the
// latest snapshot; intermediate ones may be coalesced.
type MemStore struct {
	mu          sync.Mutex
	docs        map[string]Property
	watchers    map[int]chan []Property
	nextWatcher int

	now func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:     map[string]Property{},
		watchers: map[int]chan []Property{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source.
func (m *MemStore) WithClock(now func() time.Time) *MemStore {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func newDocID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func (m *MemStore) Create(_ context.Context, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var p Property
	if err := apply(&p, fields); err != nil {
		return "", err
	}
	p.ID = newDocID()
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.docs[p.ID] = p
	m.broadcastLocked()
	return p.ID, nil
}

func (m *MemStore) List(_ context.Context) ([]Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

func (m *MemStore) Update(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: no document to update: %s", ErrNotFound, id)
	}
	if err := apply(&p, fields); err != nil {
		return err
	}
	p.UpdatedAt = m.now()
	m.docs[id] = p
	m.broadcastLocked()
	return nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return nil
	}
	delete(m.docs, id)
	m.broadcastLocked()
	return nil
}

func (m *MemStore) Watch(ctx context.Context, fn func([]Property)) error {
	ch := make(chan []Property, 1)

	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-ch:
			fn(snap)
		}
	}
}

func (m *MemStore) snapshotLocked() []Property {
	out := make([]Property, 0, len(m.docs))
	for _, p := range m.docs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) broadcastLocked() {
	for _, ch := range m.watchers {
		snap := m.snapshotLocked()
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func apply(p *Property, fields map[string]any) error {
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be a string", ErrBadRequest, k)
		}
		switch k {
		case FieldPlotNumber:
			p.PlotNumber = s
		case FieldDistrict:
			p.District = s
		case FieldBlock:
			p.Block = s
		case FieldOwnerInfo:
			p.OwnerInfo = s
		default:
			return fmt.Errorf("%w: unknown field %s", ErrBadRequest, k)
		}
	}
	return nil
}
