// Package livequery implements spec.md §4.7's LIVE SELECT: a query
// registers interest in a table (optionally filtered by WHERE, optionally
// DIFF-mode), and every later mutation exec.Executor.Notify reports is
// re-evaluated against the query's own WHERE before being delivered to its
// subscriber channel. The query's Fields are stored but not applied: the
// delivered record is not projected. Delivery
// is drop-oldest under backpressure — a slow consumer loses its oldest
// buffered update rather than blocking the mutating statement that
// produced it or growing memory without bound, the same trade-off a
// bounded ring buffer makes. Registrations are leased and swept by a
// cron.v3 job so a connection that vanishes without issuing KILL doesn't
// pin its query (and the goroutine-free channel behind it) forever.
package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/robfig/cron/v3"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/value"
)

const (
	defaultBuffer = 64
	defaultLease  = 5 * time.Minute
)

// Event is one delivered change: Diff mode fills Patch instead of After.
type Event struct {
	Table  string
	Kind   exec.MutationKind
	ID     value.Value
	Before value.Value
	After  value.Value
	Patch  value.Value
}

// Query is one registered LIVE SELECT.
type Query struct {
	ID     string
	NS, DB string
	Table  string
	Diff   bool
	Fields []ast.Field
	Where  ast.ID
	Arena  *ast.Arena

	mu      sync.Mutex
	ch      chan Event
	expires time.Time
}

// Events returns the channel delivered rows arrive on. Closed by Kill.
func (q *Query) Events() <-chan Event { return q.ch }

func (q *Query) deliver(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case q.ch <- ev:
	default:
		select {
		case <-q.ch:
		default:
		}
		select {
		case q.ch <- ev:
		default:
		}
	}
}

func (q *Query) renew(lease time.Duration) {
	q.mu.Lock()
	q.expires = time.Now().Add(lease)
	q.mu.Unlock()
}

func (q *Query) expired(now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return now.After(q.expires)
}

// Registry holds every currently-registered Query and sweeps expired
// ones on a cron schedule.
type Registry struct {
	queries cmap.ConcurrentMap[string, *Query]
	lease   time.Duration
	buffer  int
	cron    *cron.Cron
}

// New starts a Registry with a background sweep running every minute.
func New() *Registry {
	r := &Registry{
		queries: cmap.New[*Query](),
		lease:   defaultLease,
		buffer:  defaultBuffer,
		cron:    cron.New(),
	}
	_, _ = r.cron.AddFunc("@every 1m", r.sweep)
	r.cron.Start()
	return r
}

// Close stops the sweep scheduler. Registered queries' channels are left
// open for any in-flight reader to drain.
func (r *Registry) Close() { r.cron.Stop() }

func (r *Registry) sweep() {
	now := time.Now()
	for _, id := range r.queries.Keys() {
		if q, ok := r.queries.Get(id); ok && q.expired(now) {
			r.queries.Remove(id)
			close(q.ch)
		}
	}
}

// Register satisfies exec.Hooks.RegisterLive: it stores the query's
// shape and returns its generated id as the LIVE statement's result.
func (r *Registry) Register(ctx context.Context, ns, db, table string, diff bool, fields []ast.Field, where ast.ID, arena *ast.Arena) (value.Value, error) {
	id := uuid.New()
	q := &Query{
		ID: id.String(), NS: ns, DB: db, Table: table,
		Diff: diff, Fields: fields, Where: where, Arena: arena,
		ch:      make(chan Event, r.buffer),
		expires: time.Now().Add(r.lease),
	}
	r.queries.Set(q.ID, q)
	return value.Uuid(id), nil
}

// Kill satisfies exec.Hooks.KillLive.
func (r *Registry) Kill(ctx context.Context, queryID value.Value) error {
	id := queryID.String()
	if q, ok := r.queries.Get(id); ok {
		r.queries.Remove(id)
		close(q.ch)
	}
	return nil
}

// Renew extends a still-live query's lease, called on every heartbeat a
// long-lived connection sends for its open LIVE SELECTs.
func (r *Registry) Renew(queryID string) {
	if q, ok := r.queries.Get(queryID); ok {
		q.renew(r.lease)
	}
}

// Notify satisfies exec.Hooks.Notify: every registered query against
// table is re-evaluated against the mutated record and, if it still (or
// newly) matches, delivered to that query's channel.
func (r *Registry) Notify(ctx context.Context, ns, db, table string, kind exec.MutationKind, id, before, after value.Value) {
	for _, qid := range r.queries.Keys() {
		q, ok := r.queries.Get(qid)
		if !ok || q.NS != ns || q.DB != db || q.Table != table {
			continue
		}
		doc := after
		if doc.IsNone() {
			doc = before
		}
		if q.Where != ast.Nil {
			env := &eval.Env{Arena: q.Arena, Doc: doc}
			v, err := eval.Eval(env, q.Where)
			if err != nil || !v.Truthy() {
				continue
			}
		}
		ev := Event{Table: table, Kind: kind, ID: id, Before: before, After: after}
		if q.Diff {
			ev.Patch = diffPatch(before, after)
		}
		q.deliver(ev)
	}
}

// diffPatch is the same merge-patch convention exec's own RETURN DIFF
// projection uses, reused here so DIFF mode LIVE SELECT and RETURN DIFF
// agree on what a "diff" looks like.
func diffPatch(before, after value.Value) value.Value {
	out := value.NewObject()
	var beforeObj, afterObj *value.Object
	if before.Kind == value.KindObject {
		beforeObj = before.ObjectRef()
	}
	if after.Kind == value.KindObject {
		afterObj = after.ObjectRef()
	}
	seen := map[string]bool{}
	if afterObj != nil {
		for _, k := range afterObj.Keys() {
			av, _ := afterObj.Get(k)
			if beforeObj != nil {
				if bv, ok := beforeObj.Get(k); ok && bv.String() == av.String() {
					seen[k] = true
					continue
				}
			}
			out.Set(k, av)
			seen[k] = true
		}
	}
	if beforeObj != nil {
		for _, k := range beforeObj.Keys() {
			if !seen[k] {
				out.Set(k, value.Null())
			}
		}
	}
	return value.ObjectVal(out)
}
