// Package memkv implements kv.Store as an in-memory, sorted-slice-backed
// transactional store. spec.md §4.4/§6 explicitly scope a concrete,
// persistent KV backend out of this system — only the transaction
// interface is in-scope — so memkv exists purely to exercise kv.Store and
// the rest of the engine against real data in tests, the way the teacher's
// test suites stand up an in-memory or sqlite-backed fixture rather than
// requiring a live Postgres/Redis for unit tests.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/kv"
)

type entry struct {
	key   []byte
	value []byte
}

// Store is a process-local kv.Store. Zero value is ready to use.
type Store struct {
	mu   sync.RWMutex
	data []entry // sorted by key

	subMu sync.RWMutex
	subs  []subscription
}

type subscription struct {
	prefix []byte
	fn     func(kv.Mutation)
}

var _ kv.Store = (*Store)(nil)

func New() *Store { return &Store{} }

func (s *Store) Begin(ctx context.Context, readOnly bool) (kv.Transaction, error) {
	s.mu.RLock()
	snapshot := make([]entry, len(s.data))
	copy(snapshot, s.data)
	s.mu.RUnlock()

	return &txn{
		store:    s,
		readOnly: readOnly,
		base:     snapshot,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]bool),
	}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) find(key []byte) (int, bool) {
	i := sort.Search(len(s.data), func(i int) bool { return bytes.Compare(s.data[i].key, key) >= 0 })
	if i < len(s.data) && bytes.Equal(s.data[i].key, key) {
		return i, true
	}
	return i, false
}

func (s *Store) commit(writes map[string][]byte, deletes map[string]bool, order []string) []kv.Mutation {
	s.mu.Lock()
	var muts []kv.Mutation
	for _, k := range order {
		key := []byte(k)
		if deletes[k] {
			if i, ok := s.find(key); ok {
				s.data = append(s.data[:i], s.data[i+1:]...)
				muts = append(muts, kv.Mutation{Kind: kv.MutationDelete, Key: key})
			}
			continue
		}
		v := writes[k]
		if i, ok := s.find(key); ok {
			s.data[i].value = v
		} else {
			s.data = append(s.data, entry{})
			copy(s.data[i+1:], s.data[i:])
			s.data[i] = entry{key: key, value: v}
		}
		muts = append(muts, kv.Mutation{Kind: kv.MutationPut, Key: key, Value: v})
	}
	s.mu.Unlock()
	return muts
}

func (s *Store) notify(muts []kv.Mutation) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, m := range muts {
		for _, sub := range s.subs {
			if bytes.HasPrefix(m.Key, sub.prefix) {
				sub.fn(m)
			}
		}
	}
}

func (s *Store) subscribe(prefix []byte, fn func(kv.Mutation)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, subscription{prefix: prefix, fn: fn})
}

// txn is a snapshot-isolated transaction: reads see the store state as of
// Begin plus this transaction's own buffered writes; writes only become
// visible to other transactions on Commit.
type txn struct {
	store    *Store
	readOnly bool
	base     []entry

	mu      sync.Mutex
	writes  map[string][]byte
	deletes map[string]bool
	order   []string
	done    bool

	live []func(kv.Mutation)
}

var _ kv.Transaction = (*txn)(nil)

func (t *txn) ReadOnly() bool { return t.readOnly }

func (t *txn) recordWrite(k string) {
	if _, ok := t.writes[k]; !ok {
		if !t.deletes[k] {
			t.order = append(t.order, k)
		}
	}
	delete(t.deletes, k)
}

func (t *txn) Get(ctx context.Context, k []byte) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(k)
	if t.deletes[key] {
		return nil, false, nil
	}
	if v, ok := t.writes[key]; ok {
		return v, true, nil
	}
	i := sort.Search(len(t.base), func(i int) bool { return bytes.Compare(t.base[i].key, k) >= 0 })
	if i < len(t.base) && bytes.Equal(t.base[i].key, k) {
		return t.base[i].value, true, nil
	}
	return nil, false, nil
}

func (t *txn) Has(ctx context.Context, k []byte) (bool, error) {
	_, ok, err := t.Get(ctx, k)
	return ok, err
}

func (t *txn) Scan(ctx context.Context, start, end []byte, fn func(kv.KeyValue) (bool, error)) error {
	t.mu.Lock()
	merged := t.mergedView()
	t.mu.Unlock()

	lo := sort.Search(len(merged), func(i int) bool { return bytes.Compare(merged[i].key, start) >= 0 })
	for i := lo; i < len(merged); i++ {
		if end != nil && bytes.Compare(merged[i].key, end) >= 0 {
			break
		}
		cont, err := fn(kv.KeyValue{Key: merged[i].key, Value: merged[i].value})
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (t *txn) ScanPrefix(ctx context.Context, prefix []byte, fn func(kv.KeyValue) (bool, error)) error {
	return t.Scan(ctx, prefix, upperBound(prefix), fn)
}

func upperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// mergedView merges t.base with buffered writes/deletes into one sorted
// slice. Called with t.mu held.
func (t *txn) mergedView() []entry {
	if len(t.writes) == 0 && len(t.deletes) == 0 {
		return t.base
	}
	byKey := make(map[string][]byte, len(t.base)+len(t.writes))
	for _, e := range t.base {
		byKey[string(e.key)] = e.value
	}
	for k, v := range t.writes {
		byKey[k] = v
	}
	for k := range t.deletes {
		delete(byKey, k)
	}
	out := make([]entry, 0, len(byKey))
	for k, v := range byKey {
		out = append(out, entry{key: []byte(k), value: v})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].key, out[j].key) < 0 })
	return out
}

func (t *txn) Put(ctx context.Context, k, v []byte) error {
	if t.readOnly {
		return kerr.PermissionDenied(string(k), "write to read-only transaction")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(k)
	t.recordWrite(key)
	t.writes[key] = v
	return nil
}

func (t *txn) Delete(ctx context.Context, k []byte) error {
	if t.readOnly {
		return kerr.PermissionDenied(string(k), "write to read-only transaction")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(k)
	delete(t.writes, key)
	if !t.deletes[key] {
		t.deletes[key] = true
		t.order = append(t.order, key)
	}
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return kerr.TypeMismatch("open transaction", "already finished")
	}
	t.done = true
	if t.readOnly {
		return nil
	}
	muts := t.store.commit(t.writes, t.deletes, t.order)
	t.store.notify(muts)
	return nil
}

func (t *txn) Cancel(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	return nil
}

func (t *txn) RegisterLiveNotification(prefix []byte, fn func(kv.Mutation)) {
	t.store.subscribe(prefix, fn)
}
