package remote

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Notifications are delivered
// synchronously on the writer's goroutine, outside the store lock.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]Document
	subs   map[string]map[int]func(Document)
	nextID int
	setErr error
	getErr error
	writes []Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		subs: make(map[string]map[int]func(Document)),
	}
}

// FailWrites makes every SetDocument return err until called with nil.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

// FailReads makes every GetDocument return err until called with nil.
func (m *MemoryStore) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// Writes returns every successful SetDocument call in order.
func (m *MemoryStore) Writes() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Document, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MemoryStore) GetDocument(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	doc, ok := m.docs[path]
	if !ok {
		return nil, nil
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return &doc, nil
}

func (m *MemoryStore) SetDocument(ctx context.Context, path string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.setErr != nil {
		err := m.setErr
		m.mu.Unlock()
		return err
	}
	doc.Path = path
	doc.Data = append([]byte(nil), doc.Data...)
	m.docs[path] = doc
	m.writes = append(m.writes, doc)
	listeners := m.listenersLocked(path)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(doc)
	}
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, path string, onChange func(Document)) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]func(Document))
	}
	m.subs[path][id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[path], id)
		})
	}, nil
}

// Subscribers returns the number of active subscriptions on path.
func (m *MemoryStore) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[path])
}

func (m *MemoryStore) listenersLocked(path string) []func(Document) {
	ids := make([]int, 0, len(m.subs[path]))
	for id := range m.subs[path] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Document), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.subs[path][id])
	}
	return out
}
