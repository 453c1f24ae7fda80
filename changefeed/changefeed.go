// Package changefeed implements spec.md §4.7/§6's append-only per-table
// mutation log: every committed CREATE/UPDATE/DELETE is appended under
// keys.Change(ns, db, table, versionstamp), retained per table for a
// configurable duration and queryable by SHOW CHANGES FOR TABLE ...
// SINCE ... LIMIT n. Each Recorder runs its retention sweep on its own
// robfig/cron/v3 scheduler, created in New and stopped by Close.
package changefeed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/value"
)

const defaultRetention = 24 * time.Hour

// Recorder owns the retention table and appends/queries change entries
// against a kv.Store of its own, independent of the statement's own
// transaction: exec.Hooks.Notify fires with no transaction handle and no
// error return (it's a best-effort post-mutation signal, the same
// contract livequery's delivery already relies on), so change entries are
// committed in their own short-lived transaction rather than folded into
// the triggering statement's commit.
type Recorder struct {
	store kv.Store

	mu        sync.RWMutex
	retention map[string]time.Duration // "ns:db:table" -> retention, empty means defaultRetention

	seq  atomic.Uint64
	cron *cron.Cron
}

// New starts a Recorder backed by store, with a retention sweep running
// every minute.
func New(store kv.Store) *Recorder {
	r := &Recorder{
		store:     store,
		retention: make(map[string]time.Duration),
		cron:      cron.New(),
	}
	_, _ = r.cron.AddFunc("@every 1m", r.sweepAll)
	r.cron.Start()
	return r
}

func (r *Recorder) Close() { r.cron.Stop() }

// SetRetention configures how long table's change entries are kept.
// Zero means "use the default" (24h); spec.md's CHANGEFEED duration
// clause would set this, once a caller parses it out of DEFINE TABLE.
func (r *Recorder) SetRetention(ns, db, table string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retention[scopeKey(ns, db, table)] = d
}

func (r *Recorder) retentionFor(ns, db, table string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.retention[scopeKey(ns, db, table)]; ok && d > 0 {
		return d
	}
	return defaultRetention
}

func scopeKey(ns, db, table string) string { return ns + ":" + db + ":" + table }

// versionstamp mints a monotonically increasing id approximating a commit
// timestamp (spec.md §4.7: "versionstamp is the transaction's commit
// timestamp"): nanosecond wall time, bumped by at least 1 on each call so
// two changes committed within the same nanosecond still sort distinctly.
func (r *Recorder) versionstamp() uint64 {
	now := uint64(time.Now().UnixNano())
	for {
		prev := r.seq.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if r.seq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Notify satisfies exec.Hooks.Notify: it appends one change-feed entry
// for the mutation, in its own transaction against r.store.
func (r *Recorder) Notify(ctx context.Context, ns, db, table string, kind exec.MutationKind, id, before, after value.Value) {
	vs := r.versionstamp()
	entry := value.NewObject()
	entry.Set("versionstamp", value.Int64(int64(vs)))
	entry.Set("kind", value.Int64(int64(kind)))
	entry.Set("id", id)
	entry.Set("before", before)
	entry.Set("after", after)

	raw, err := exec.EncodeRecord(value.ObjectVal(entry))
	if err != nil {
		return
	}
	tx, err := r.store.Begin(ctx, false)
	if err != nil {
		return
	}
	if err := tx.Put(ctx, keys.Change(ns, db, table, vs), raw); err != nil {
		_ = tx.Cancel(ctx)
		return
	}
	_ = tx.Commit(ctx)
}

// ShowChanges satisfies exec.Hooks.ShowChanges: it returns up to limit
// entries at or after since, in versionstamp order.
func (r *Recorder) ShowChanges(ctx context.Context, ns, db, table string, since uint64, limit int) ([]value.Value, error) {
	tx, err := r.store.Begin(ctx, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Cancel(ctx) }()

	start := keys.Change(ns, db, table, since)
	end := keys.PrefixUpperBound(keys.ChangePrefix(ns, db, table))
	var out []value.Value
	err = tx.Scan(ctx, start, end, func(kvp kv.KeyValue) (bool, error) {
		v, err := exec.DecodeRecord(kvp.Value)
		if err != nil {
			return false, err
		}
		if obj := v.ObjectRef(); obj != nil {
			obj.Set("versionstamp", value.Int64(int64(decodeVersionstamp(kvp.Key))))
		}
		out = append(out, v)
		return limit <= 0 || len(out) < limit, nil
	})
	return out, err
}

// sweepAll deletes stale change entries for every table that has had
// SetRetention called, using that table's retention (the default when it
// was set to zero). Tables never passed to SetRetention are not swept.
func (r *Recorder) sweepAll() {
	r.mu.RLock()
	scopes := make([]string, 0, len(r.retention))
	for k := range r.retention {
		scopes = append(scopes, k)
	}
	r.mu.RUnlock()
	for _, scope := range scopes {
		r.sweepScope(scope)
	}
}

func (r *Recorder) sweepScope(scope string) {
	ns, db, table := splitScope(scope)
	if table == "" {
		return
	}
	cutoff := uint64(time.Now().Add(-r.retentionFor(ns, db, table)).UnixNano())
	ctx := context.Background()
	tx, err := r.store.Begin(ctx, false)
	if err != nil {
		return
	}
	prefix := keys.ChangePrefix(ns, db, table)
	var stale [][]byte
	_ = tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
		if len(kvp.Key) < 8 {
			return true, nil
		}
		vs := decodeVersionstamp(kvp.Key)
		if vs >= cutoff {
			return false, nil // entries sort by versionstamp; nothing further is stale
		}
		stale = append(stale, kvp.Key)
		return true, nil
	})
	for _, k := range stale {
		_ = tx.Delete(ctx, k)
	}
	if len(stale) == 0 {
		_ = tx.Cancel(ctx)
		return
	}
	_ = tx.Commit(ctx)
}

func decodeVersionstamp(key []byte) uint64 {
	var vs uint64
	tail := key[len(key)-8:]
	for _, b := range tail {
		vs = vs<<8 | uint64(b)
	}
	return vs
}

func splitScope(scope string) (ns, db, table string) {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(scope); i++ {
		if scope[i] == ':' {
			parts = append(parts, scope[start:i])
			start = i + 1
		}
	}
	parts = append(parts, scope[start:])
	if len(parts) != 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}
