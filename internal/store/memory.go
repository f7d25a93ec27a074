package store

import (
	"context"
	"sort"
	"sync"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/procurement"
)

// Memory is an in-process document store. Transactions are serialised and
// buffer their writes until fn succeeds.
type Memory struct {
	documents
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{data: make(map[string]map[string][]byte)}
	m.documents = documents{src: lockedSource{m: m}}
	return m
}

// Inventory returns the inventory service view of the store.
func (m *Memory) Inventory() inventory.RepositoryPort {
	return InventoryPort(m)
}

// WithTx runs fn against a buffered view and commits its writes atomically.
func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{base: m.data, pending: make(map[string]map[string][]byte)}
	if err := fn(ctx, documents{src: tx}); err != nil {
		return err
	}
	for coll, docs := range tx.pending {
		if m.data[coll] == nil {
			m.data[coll] = make(map[string][]byte)
		}
		for id, body := range docs {
			m.data[coll][id] = body
		}
	}
	return nil
}

// Close implements the store lifecycle.
func (m *Memory) Close() {}

// Ping always succeeds; the store lives in process.
func (m *Memory) Ping(context.Context) error { return nil }

func sortedIDs(docs map[string][]byte) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type lockedSource struct {
	m *Memory
}

func (s lockedSource) load(_ context.Context, collection, id string) ([]byte, bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	body, ok := s.m.data[collection][id]
	return body, ok, nil
}

func (s lockedSource) scan(_ context.Context, collection string, fn func([]byte) error) error {
	s.m.mu.RLock()
	docs := s.m.data[collection]
	bodies := make([][]byte, 0, len(docs))
	for _, id := range sortedIDs(docs) {
		bodies = append(bodies, docs[id])
	}
	s.m.mu.RUnlock()
	for _, b := range bodies {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func (s lockedSource) save(_ context.Context, collection, id string, body []byte) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.data[collection] == nil {
		s.m.data[collection] = make(map[string][]byte)
	}
	s.m.data[collection][id] = body
	return nil
}

type memoryTx struct {
	base    map[string]map[string][]byte
	pending map[string]map[string][]byte
}

func (tx *memoryTx) load(_ context.Context, collection, id string) ([]byte, bool, error) {
	if body, ok := tx.pending[collection][id]; ok {
		return body, true, nil
	}
	body, ok := tx.base[collection][id]
	return body, ok, nil
}

func (tx *memoryTx) scan(_ context.Context, collection string, fn func([]byte) error) error {
	merged := make(map[string][]byte, len(tx.base[collection]))
	for id, body := range tx.base[collection] {
		merged[id] = body
	}
	for id, body := range tx.pending[collection] {
		merged[id] = body
	}
	for _, id := range sortedIDs(merged) {
		if err := fn(merged[id]); err != nil {
			return err
		}
	}
	return nil
}

func (tx *memoryTx) save(_ context.Context, collection, id string, body []byte) error {
	if tx.pending[collection] == nil {
		tx.pending[collection] = make(map[string][]byte)
	}
	tx.pending[collection][id] = body
	return nil
}
