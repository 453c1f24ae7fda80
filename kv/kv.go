// Package kv defines the storage abstraction spec.md §6 requires: a
// transactional key-value interface the rest of the engine programs
// against, independent of whatever backend actually persists bytes.
// Naming follows the erigon-lib kv convention (k/v, Getter/Putter split,
// RoTx/RwTx-style read-only vs read-write capability) rather than ORM-style
// verbs, since this is a low-level storage contract, not a data-access
// layer.
package kv

import (
	"context"

	"github.com/forbearing/stratadb/keys"
)

// KeyValue is one entry returned by a Scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Getter is the read side of a transaction.
type Getter interface {
	// Get returns the value stored at k, or ok=false if absent.
	Get(ctx context.Context, k []byte) (v []byte, ok bool, err error)

	// Has reports whether k exists without paying for a full value read.
	Has(ctx context.Context, k []byte) (bool, error)

	// Scan iterates [start, end) in key order, calling fn for each entry.
	// Scan stops and returns nil as soon as fn returns false. end == nil
	// means "through the end of the whole keyspace".
	Scan(ctx context.Context, start, end []byte, fn func(KeyValue) (bool, error)) error

	// ScanPrefix iterates every key sharing prefix, in key order.
	ScanPrefix(ctx context.Context, prefix []byte, fn func(KeyValue) (bool, error)) error
}

// Putter is the write side of a transaction.
type Putter interface {
	// Put writes v at k, overwriting any existing value.
	Put(ctx context.Context, k, v []byte) error

	// Delete removes k. Deleting an absent key is not an error.
	Delete(ctx context.Context, k []byte) error
}

// Transaction is a single ACID unit of work, spec.md §6. A Transaction
// created read-only rejects Put/Delete with kerr.ErrPermission-marked
// errors rather than panicking, since a statement's write-vs-read mode is
// decided well before individual operators run.
type Transaction interface {
	Getter
	Putter

	// ReadOnly reports whether this transaction was opened read-only.
	ReadOnly() bool

	// Commit finalizes the transaction's writes. Commit on a read-only
	// transaction is a no-op that always succeeds.
	Commit(ctx context.Context) error

	// Cancel aborts the transaction, discarding any buffered writes.
	Cancel(ctx context.Context) error

	// RegisterLiveNotification arranges for fn to be called, outside of
	// this transaction's own commit path, with every committed mutation
	// whose key falls under prefix, once this transaction commits
	// successfully. This is how livequery subscribes to table mutations
	// without the storage layer importing the livequery package.
	RegisterLiveNotification(prefix []byte, fn func(Mutation))
}

// MutationKind discriminates a committed change delivered to live-query
// and change-feed subscribers.
type MutationKind uint8

const (
	MutationPut MutationKind = iota
	MutationDelete
)

// Mutation is one committed key change, delivered post-commit.
type Mutation struct {
	Kind  MutationKind
	Key   []byte
	Value []byte // nil for MutationDelete
}

// Store opens transactions against a backend. A concrete backend (disk,
// distributed, or the in-memory memkv used by tests) implements Store;
// the rest of the engine never imports a backend package directly.
type Store interface {
	// Begin starts a new transaction. readOnly transactions may run
	// concurrently with each other and with read-write transactions;
	// read-write transactions serialize per spec.md §6's "strict
	// serializability" guarantee.
	Begin(ctx context.Context, readOnly bool) (Transaction, error)

	// Close releases backend resources. No further Begin calls are valid
	// afterward.
	Close() error
}

// KeyRange is a convenience pairing of Scan's start/end arguments, used by
// planner index-range steps to pass a single value around.
type KeyRange struct {
	Start, End []byte
}

// PrefixRange returns the [prefix, prefix-with-incremented-last-byte)
// range covering every key sharing prefix, for backends whose Scan wants
// an explicit end rather than a prefix flag.
func PrefixRange(prefix []byte) KeyRange {
	return KeyRange{Start: prefix, End: keys.PrefixUpperBound(prefix)}
}
