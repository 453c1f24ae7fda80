package livequery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/value"
)

func TestRegisterReturnsUuid(t *testing.T) {
	r := New()
	defer r.Close()

	id, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindUuid, id.Kind)
}

func TestNotifyDeliversMatchingMutation(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)

	rec := value.NewObject()
	rec.Set("name", value.String("Tobie"))
	r.Notify(context.Background(), "app", "main", "person", exec.MutationCreate, value.String("person:1"), value.None(), value.ObjectVal(rec))

	q, ok := r.queries.Get(idv.String())
	require.True(t, ok)
	select {
	case ev := <-q.Events():
		assert.Equal(t, exec.MutationCreate, ev.Kind)
		name, _ := ev.After.ObjectRef().Get("name")
		assert.Equal(t, "Tobie", name.Str())
	default:
		t.Fatal("expected a delivered event")
	}
}

func TestNotifyIgnoresOtherTables(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)

	r.Notify(context.Background(), "app", "main", "other_table", exec.MutationCreate, value.None(), value.None(), value.None())

	q, _ := r.queries.Get(idv.String())
	select {
	case <-q.Events():
		t.Fatal("should not have received an event for a different table")
	default:
	}
}

func TestNotifyDiffModeFillsPatch(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", true, nil, ast.Nil, nil)
	require.NoError(t, err)

	before := value.NewObject()
	before.Set("age", value.Int64(30))
	after := value.NewObject()
	after.Set("age", value.Int64(31))
	r.Notify(context.Background(), "app", "main", "person", exec.MutationUpdate, value.None(), value.ObjectVal(before), value.ObjectVal(after))

	q, _ := r.queries.Get(idv.String())
	ev := <-q.Events()
	age, ok := ev.Patch.ObjectRef().Get("age")
	require.True(t, ok)
	assert.EqualValues(t, 31, age.Int())
}

func TestKillClosesChannelAndRemovesQuery(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.Kill(context.Background(), idv))
	_, ok := r.queries.Get(idv.String())
	assert.False(t, ok)
}

func TestDeliverDropsOldestUnderBackpressure(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)
	q, _ := r.queries.Get(idv.String())

	for i := 0; i < defaultBuffer+10; i++ {
		q.deliver(Event{Kind: exec.MutationCreate, ID: value.Int64(int64(i))})
	}

	assert.LessOrEqual(t, len(q.Events()), defaultBuffer)
	var last Event
	for {
		select {
		case ev := <-q.Events():
			last = ev
			continue
		default:
		}
		break
	}
	assert.EqualValues(t, defaultBuffer+9, last.ID.Int())
}

func TestRenewExtendsExpiry(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)
	q, _ := r.queries.Get(idv.String())

	q.expires = time.Now().Add(-time.Minute)
	assert.True(t, q.expired(time.Now()))

	r.Renew(idv.String())
	assert.False(t, q.expired(time.Now()))
}

func TestSweepRemovesExpiredQueries(t *testing.T) {
	r := New()
	defer r.Close()

	idv, err := r.Register(context.Background(), "app", "main", "person", false, nil, ast.Nil, nil)
	require.NoError(t, err)
	q, _ := r.queries.Get(idv.String())
	q.expires = time.Now().Add(-time.Minute)

	r.sweep()
	_, ok := r.queries.Get(idv.String())
	assert.False(t, ok)
}
