package catalog

import (
	"context"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/keys"
)

// Namespace is the top-level catalog container (spec.md §3).
type Namespace struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

// Database lives under one namespace.
type Database struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Comment   string `json:"comment,omitempty"`
}

// TableKind mirrors ast.TableKind so catalog.Table doesn't import the
// arena-local statement shape directly.
type TableKind uint8

const (
	TableNormal TableKind = iota
	TableRelation
)

// Table is one table definition: its schema mode, relation constraints,
// and the permissions evaluated on every access to its records.
type Table struct {
	Namespace   string      `json:"namespace"`
	Database    string      `json:"database"`
	Name        string      `json:"name"`
	SchemaFull  bool        `json:"schema_full"`
	Kind        TableKind   `json:"kind"`
	EnforcedIn  string      `json:"enforced_in,omitempty"`
	EnforcedOut string      `json:"enforced_out,omitempty"`
	Permissions Permissions `json:"permissions"`
	Comment     string      `json:"comment,omitempty"`
}

// Field is one field definition on a table.
type Field struct {
	Namespace   string      `json:"namespace"`
	Database    string      `json:"database"`
	Table       string      `json:"table"`
	Name        string      `json:"name"`
	Flexible    bool        `json:"flexible"`
	TypeName    string      `json:"type,omitempty"`
	Default     Expr        `json:"default,omitempty"`
	Value       Expr        `json:"value,omitempty"`
	Assert      Expr        `json:"assert,omitempty"`
	Permissions Permissions `json:"permissions"`
	Comment     string      `json:"comment,omitempty"`
}

// IndexKind mirrors ast.IndexKind.
type IndexKind uint8

const (
	IndexBTree IndexKind = iota
	IndexUnique
	IndexFullText
	IndexHNSW
	IndexMTree
)

// Index is one secondary-index definition. The live index structures
// (B-tree pages, HNSW graph, fulltext postings) are built and owned by
// the index/* packages, keyed off this definition.
type Index struct {
	Namespace string    `json:"namespace"`
	Database  string    `json:"database"`
	Table     string    `json:"table"`
	Name      string    `json:"name"`
	Columns   []string  `json:"columns"`
	Kind      IndexKind `json:"kind"`

	BM25K1 float64 `json:"bm25_k1,omitempty"`
	BM25B  float64 `json:"bm25_b,omitempty"`

	Dimension      int    `json:"dimension,omitempty"`
	DistanceMetric string `json:"distance,omitempty"`
	M              int    `json:"m,omitempty"`
	EfConstruction int    `json:"ef_construction,omitempty"`

	Comment string `json:"comment,omitempty"`
}

// AccessLevel mirrors ast.AccessLevel.
type AccessLevel uint8

const (
	LevelRoot AccessLevel = iota
	LevelNamespace
	LevelDatabase
)

// User is a DEFINE USER principal, scoped to one of the three levels.
type User struct {
	Namespace string      `json:"namespace,omitempty"`
	Database  string      `json:"database,omitempty"`
	Name      string      `json:"name"`
	Level     AccessLevel `json:"level"`
	PassHash  string      `json:"pass_hash"`
	Roles     []string    `json:"roles,omitempty"`
	Comment   string      `json:"comment,omitempty"`
}

// Access is a DEFINE ACCESS method: record-auth SIGNUP/SIGNIN exprs plus
// the JWT secret and session duration it issues tokens with.
type Access struct {
	Namespace string      `json:"namespace,omitempty"`
	Database  string      `json:"database,omitempty"`
	Name      string      `json:"name"`
	Level     AccessLevel `json:"level"`
	Signup    Expr        `json:"signup,omitempty"`
	Signin    Expr        `json:"signin,omitempty"`
	JWTSecret string      `json:"jwt_secret,omitempty"`
	Duration  string      `json:"duration,omitempty"` // time.Duration.String()
	Comment   string      `json:"comment,omitempty"`
}

// Event is a DEFINE EVENT trigger: a boolean WHEN condition and one or
// more THEN statements, re-parsed into a fresh block on load so the
// executor can run them against the triggering record (spec.md §12).
type Event struct {
	Namespace string `json:"namespace"`
	Database  string `json:"database"`
	Table     string `json:"table"`
	Name      string `json:"name"`
	When      Expr   `json:"when,omitempty"`
	Then      string `json:"then"` // source text of the THEN block
	Comment   string `json:"comment,omitempty"`
}

// --- Namespace CRUD ---

func (s *Store) PutNamespace(ctx context.Context, n Namespace) error {
	return put(ctx, s.tx, keys.Namespace(n.Name), n)
}

func (s *Store) GetNamespace(ctx context.Context, name string) (Namespace, error) {
	return get[Namespace](ctx, s.tx, keys.Namespace(name), kerr.ErrNsNotFound, name)
}

func (s *Store) HasNamespace(ctx context.Context, name string) (bool, error) {
	return s.tx.Has(ctx, keys.Namespace(name))
}

func (s *Store) RemoveNamespace(ctx context.Context, name string) error {
	return s.tx.Delete(ctx, keys.Namespace(name))
}

// --- Database CRUD ---

func (s *Store) PutDatabase(ctx context.Context, d Database) error {
	return put(ctx, s.tx, keys.Database(d.Namespace, d.Name), d)
}

func (s *Store) GetDatabase(ctx context.Context, ns, name string) (Database, error) {
	return get[Database](ctx, s.tx, keys.Database(ns, name), kerr.ErrDbNotFound, name)
}

func (s *Store) HasDatabase(ctx context.Context, ns, name string) (bool, error) {
	return s.tx.Has(ctx, keys.Database(ns, name))
}

func (s *Store) RemoveDatabase(ctx context.Context, ns, name string) error {
	return s.tx.Delete(ctx, keys.Database(ns, name))
}

// --- Table CRUD ---

func (s *Store) PutTable(ctx context.Context, t Table) error {
	return put(ctx, s.tx, keys.Table(t.Namespace, t.Database, t.Name), t)
}

func (s *Store) GetTable(ctx context.Context, ns, db, name string) (Table, error) {
	return get[Table](ctx, s.tx, keys.Table(ns, db, name), kerr.ErrTbNotFound, name)
}

func (s *Store) HasTable(ctx context.Context, ns, db, name string) (bool, error) {
	return s.tx.Has(ctx, keys.Table(ns, db, name))
}

func (s *Store) RemoveTable(ctx context.Context, ns, db, name string) error {
	return s.tx.Delete(ctx, keys.Table(ns, db, name))
}

func (s *Store) ListTables(ctx context.Context, ns, db string) ([]Table, error) {
	return scanPrefix[Table](ctx, s.tx, keys.TablePrefix(ns, db))
}

// --- Field CRUD ---

func (s *Store) PutField(ctx context.Context, f Field) error {
	return put(ctx, s.tx, keys.Field(f.Namespace, f.Database, f.Table, f.Name), f)
}

func (s *Store) GetField(ctx context.Context, ns, db, tb, name string) (Field, error) {
	return get[Field](ctx, s.tx, keys.Field(ns, db, tb, name), kerr.ErrFdNotFound, name)
}

func (s *Store) RemoveField(ctx context.Context, ns, db, tb, name string) error {
	return s.tx.Delete(ctx, keys.Field(ns, db, tb, name))
}

func (s *Store) ListFields(ctx context.Context, ns, db, tb string) ([]Field, error) {
	return scanPrefix[Field](ctx, s.tx, keys.FieldPrefix(ns, db, tb))
}

// --- Index CRUD ---

func (s *Store) PutIndex(ctx context.Context, ix Index) error {
	return put(ctx, s.tx, keys.IndexDef(ix.Namespace, ix.Database, ix.Table, ix.Name), ix)
}

func (s *Store) GetIndex(ctx context.Context, ns, db, tb, name string) (Index, error) {
	return get[Index](ctx, s.tx, keys.IndexDef(ns, db, tb, name), kerr.ErrIxNotFound, name)
}

func (s *Store) RemoveIndex(ctx context.Context, ns, db, tb, name string) error {
	return s.tx.Delete(ctx, keys.IndexDef(ns, db, tb, name))
}

func (s *Store) ListIndexes(ctx context.Context, ns, db, tb string) ([]Index, error) {
	return scanPrefix[Index](ctx, s.tx, keys.IndexDefPrefix(ns, db, tb))
}

// --- Event CRUD ---

func (s *Store) PutEvent(ctx context.Context, e Event) error {
	return put(ctx, s.tx, keys.Event(e.Namespace, e.Database, e.Table, e.Name), e)
}

func (s *Store) GetEvent(ctx context.Context, ns, db, tb, name string) (Event, error) {
	return get[Event](ctx, s.tx, keys.Event(ns, db, tb, name), kerr.ErrEventNotFound, name)
}

func (s *Store) RemoveEvent(ctx context.Context, ns, db, tb, name string) error {
	return s.tx.Delete(ctx, keys.Event(ns, db, tb, name))
}

func (s *Store) ListEvents(ctx context.Context, ns, db, tb string) ([]Event, error) {
	return scanPrefix[Event](ctx, s.tx, keys.EventPrefix(ns, db, tb))
}

// --- User CRUD ---
//
// Root users are keyed with ns == db == ""; namespace-level users have
// db == ""; database-level users set both.

func (s *Store) PutUser(ctx context.Context, u User) error {
	return put(ctx, s.tx, keys.User(u.Namespace, u.Database, u.Name), u)
}

func (s *Store) GetUser(ctx context.Context, ns, db, name string) (User, error) {
	return get[User](ctx, s.tx, keys.User(ns, db, name), kerr.ErrUserNotFound, name)
}

func (s *Store) RemoveUser(ctx context.Context, ns, db, name string) error {
	return s.tx.Delete(ctx, keys.User(ns, db, name))
}

func (s *Store) ListUsers(ctx context.Context, ns, db string) ([]User, error) {
	return scanPrefix[User](ctx, s.tx, keys.UserPrefix(ns, db))
}

// --- Access CRUD ---

func (s *Store) PutAccess(ctx context.Context, a Access) error {
	return put(ctx, s.tx, keys.Access(a.Namespace, a.Database, a.Name), a)
}

func (s *Store) GetAccess(ctx context.Context, ns, db, name string) (Access, error) {
	return get[Access](ctx, s.tx, keys.Access(ns, db, name), kerr.ErrAccessNotFound, name)
}

func (s *Store) RemoveAccess(ctx context.Context, ns, db, name string) error {
	return s.tx.Delete(ctx, keys.Access(ns, db, name))
}

func (s *Store) ListAccess(ctx context.Context, ns, db string) ([]Access, error) {
	return scanPrefix[Access](ctx, s.tx, keys.AccessPrefix(ns, db))
}

// --- ast <-> catalog conversions ---

// ToCatalogLevel converts the parser's arena-local AccessLevel to the
// catalog's persisted enum (same ordinal layout, kept as distinct types
// so catalog never imports syn/parser's statement package for its own
// field types).
func ToCatalogLevel(l ast.AccessLevel) AccessLevel { return AccessLevel(l) }

func ToCatalogTableKind(k ast.TableKind) TableKind { return TableKind(k) }

func ToCatalogIndexKind(k ast.IndexKind) IndexKind { return IndexKind(k) }
