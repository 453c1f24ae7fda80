package ast

// Field is one projected field in a SELECT field list: the expression and
// an optional alias (AS name).
type Field struct {
	Expr  ID
	Alias string
	All   bool // true for `*`
}

// OrderBy is one ORDER BY clause entry.
type OrderBy struct {
	Expr ID
	Desc bool
}

// SelectStmt is `SELECT ... FROM ... WHERE ... SPLIT ... GROUP ... ORDER
// ... LIMIT ... START ... FETCH ... TIMEOUT ... PARALLEL` (spec.md §4.2).
type SelectStmt struct {
	Fields    []Field
	Omit      []string
	What      []ID // one or more WhatExpr targets
	With      WithIndex
	Where     ID
	Split     []ID
	Group     []ID
	GroupAll  bool
	Order     []OrderBy
	Limit     ID
	Start     ID
	Fetch     []string
	Timeout   ID
	Parallel  bool
	TempFiles bool
}

// WithIndex encodes a `WITH INDEX ix1, ix2` or `WITH NOINDEX` hint
// (spec.md §4.4's planner hint).
type WithIndex struct {
	NoIndex bool
	Names   []string
}

// Data is the payload clause shared by CREATE/UPDATE/UPSERT/INSERT:
// CONTENT replaces the whole document, SET applies field = expr pairs,
// MERGE shallow-merges an object, PATCH applies JSON-patch-like ops.
type Data struct {
	Kind  DataKind
	Expr  ID   // CONTENT/MERGE operand, or PATCH operand (array of ops)
	Set   []KV // SET field = expr pairs
}

type DataKind uint8

const (
	DataNone DataKind = iota
	DataContent
	DataSet
	DataMerge
	DataPatch
	DataReplace
)

// Output controls the RETURN clause: NONE, BEFORE, AFTER (default), DIFF,
// or a projected field list.
type Output struct {
	Kind   OutputKind
	Fields []Field
}

type OutputKind uint8

const (
	OutputAfter OutputKind = iota
	OutputNone
	OutputBefore
	OutputDiff
	OutputFields
)

// CreateStmt is `CREATE what CONTENT|SET ... RETURN ... TIMEOUT ...
// PARALLEL` (spec.md §4.2).
type CreateStmt struct {
	Only     bool
	What     []ID
	Data     Data
	Output   Output
	Timeout  ID
	Parallel bool
}

// UpdateStmt is `UPDATE what SET|MERGE|PATCH|CONTENT ... WHERE ...
// RETURN ...`. UPSERT shares this shape (spec.md §12 supplements it as a
// distinct Kind on the same struct so the executor can share most of the
// mutation pipeline).
type UpdateStmt struct {
	Only     bool
	What     []ID
	Data     Data
	Where    ID
	Output   Output
	Timeout  ID
	Parallel bool
	Upsert   bool // true when parsed from UPSERT rather than UPDATE
}

// DeleteStmt is `DELETE what WHERE ... RETURN ... TIMEOUT ... PARALLEL`.
type DeleteStmt struct {
	Only     bool
	What     []ID
	Where    ID
	Output   Output
	Timeout  ID
	Parallel bool
}

// RelateStmt is `RELATE from->edge->to CONTENT|SET ... RETURN ...`
// (spec.md §4.2's graph edge creation).
type RelateStmt struct {
	Only   bool
	From   ID
	Edge   string
	To     ID
	Data   Data
	Output Output
	Unique bool // ONLY / exclusive edge
}

// InsertStmt is `INSERT INTO table (cols) VALUES (...), (...) ON
// DUPLICATE KEY UPDATE ...` or `INSERT INTO table object_or_array`.
type InsertStmt struct {
	Into       string
	Columns    []string
	Rows       [][]ID // VALUES rows; empty if Source is set
	Source     ID     // object/array-expr form of INSERT
	OnConflict []KV   // ON DUPLICATE KEY UPDATE assignments; nil means error on conflict
	Output     Output
	Relation   bool // INSERT RELATION variant writes an edge table
}

// DefineNamespaceStmt is `DEFINE NAMESPACE [IF NOT EXISTS|OVERWRITE] name`.
type DefineNamespaceStmt struct {
	Name      string
	IfNotEx   bool
	Overwrite bool
	Comment   string
}

// DefineDatabaseStmt is `DEFINE DATABASE [IF NOT EXISTS|OVERWRITE] name`.
type DefineDatabaseStmt struct {
	Name      string
	IfNotEx   bool
	Overwrite bool
	Comment   string
}

// TableKind distinguishes a NORMAL table from an edge (RELATION) table.
type TableKind uint8

const (
	TableNormal TableKind = iota
	TableRelation
)

// DefineTableStmt is `DEFINE TABLE name SCHEMAFULL|SCHEMALESS TYPE
// NORMAL|RELATION PERMISSIONS ...` (spec.md §4.2/§4.8).
type DefineTableStmt struct {
	Name        string
	IfNotEx     bool
	Overwrite   bool
	SchemaFull  bool
	Kind        TableKind
	EnforcedIn  string // FROM table for RELATION IN constraint
	EnforcedOut string // TO table for RELATION OUT constraint
	Permissions Permissions
	Comment     string
}

// Permissions is the four-verb (select/create/update/delete) permission
// clause spec.md §4.8 attaches to tables and fields; each verb is either
// FULL, NONE, or a Specific boolean expression evaluated per-record.
type Permissions struct {
	Select ID // Nil means NONE; a literal `true` expr means FULL
	Create ID
	Update ID
	Delete ID
}

// DefineFieldStmt is DEFINE FIELD. Its TypeName is a type constraint
// string (e.g. "string", "int", "array<record<person>>"); kept as a
// string rather than a parsed type
// tree since spec.md §4.2 treats TYPE as informational metadata consumed
// by the executor's coercion step, not a separate type-checker pass.
type DefineFieldStmt struct {
	Name        string
	Table       string
	IfNotEx     bool
	Overwrite   bool
	Flexible    bool
	TypeName    string
	Default     ID
	Value       ID // VALUE clause: computed/overridden value expression
	Assert      ID // ASSERT clause: boolean expression the value must satisfy
	Permissions Permissions
	Comment     string
}

// IndexKind discriminates the five index algorithms spec.md §4.6 supports.
type IndexKind uint8

const (
	IndexBTree IndexKind = iota
	IndexUnique
	IndexFullText
	IndexHNSW
	IndexMTree
)

// DefineIndexStmt is `DEFINE INDEX name ON table FIELDS f1,f2 UNIQUE |
// SEARCH ANALYZER ... BM25 | HNSW DIMENSION n DIST ... | MTREE DIMENSION
// n DIST ...` (spec.md §4.6).
type DefineIndexStmt struct {
	Name      string
	Table     string
	IfNotEx   bool
	Overwrite bool
	Columns   []string
	Kind      IndexKind

	// fulltext
	BM25K1, BM25B float64

	// hnsw/mtree
	Dimension      int
	DistanceMetric string
	M              int
	EfConstruction int

	Comment string
}

// AccessLevel is one of Root/Namespace/Database (spec.md §4.8); Record
// level is implicit in per-record permission evaluation rather than a
// DEFINE USER level.
type AccessLevel uint8

const (
	LevelRoot AccessLevel = iota
	LevelNamespace
	LevelDatabase
)

// DefineUserStmt is `DEFINE USER name ON ROOT|NAMESPACE|DATABASE PASSWORD
// ... ROLES ...`.
type DefineUserStmt struct {
	Name      string
	Level     AccessLevel
	IfNotEx   bool
	Overwrite bool
	Password  string
	Roles     []string
	Comment   string
}

// DefineAccessStmt is `DEFINE ACCESS name ON ... TYPE RECORD|JWT SIGNUP
// ... SIGNIN ... DURATION ...` — the record/JWT access-method surface
// supplemented from original_source (SPEC_FULL.md §12).
type DefineAccessStmt struct {
	Name      string
	Level     AccessLevel
	IfNotEx   bool
	Overwrite bool
	Signup    ID
	Signin    ID
	JWTSecret string
	Duration  ID
	Comment   string
}

// DefineEventStmt is `DEFINE EVENT name ON table WHEN cond THEN stmt`
// (trigger fired after a mutation commits, supplemented per SPEC_FULL §12).
type DefineEventStmt struct {
	Name    string
	Table   string
	When    ID
	Then    []ID
	Comment string
}

// RemoveTarget discriminates what a REMOVE statement drops.
type RemoveTarget uint8

const (
	RemoveNamespace RemoveTarget = iota
	RemoveDatabase
	RemoveTable
	RemoveField
	RemoveIndex
	RemoveUser
	RemoveAccess
	RemoveEvent
)

// RemoveStmt is `REMOVE NAMESPACE|DATABASE|TABLE|FIELD|INDEX|USER|ACCESS|
// EVENT [IF EXISTS] name [ON table] [ON level]` (spec.md §4.2).
type RemoveStmt struct {
	Target  RemoveTarget
	Name    string
	Table   string // FIELD/INDEX/EVENT owner table
	Level   AccessLevel
	IfExist bool
}

// AlterTableStmt is `ALTER TABLE name [SCHEMAFULL|SCHEMALESS]
// [PERMISSIONS ...] [COMMENT ...]` — a supplemented statement
// (SPEC_FULL.md §12) letting a table's schema mode/permissions change
// without a full DEFINE TABLE OVERWRITE.
type AlterTableStmt struct {
	Name          string
	SetSchemaFull *bool
	Permissions   *Permissions
	Comment       *string
}

// KillStmt is `KILL $liveQueryId` (spec.md §4.7).
type KillStmt struct {
	QueryID ID
}

// LiveStmt is `LIVE SELECT fields FROM table WHERE ...` (spec.md §4.7).
type LiveStmt struct {
	Diff   bool // LIVE SELECT DIFF emits JSON-patch deltas instead of rows
	Fields []Field
	What    string
	Where  ID
}

// ShowChangesStmt is `SHOW CHANGES FOR TABLE t [SINCE since] [LIMIT n]`
// (spec.md §4.7/§6) — since is nil for "from the start of retention".
type ShowChangesStmt struct {
	Table string
	Since ID
	Limit ID
}

// BeginStmt/CommitStmt/CancelStmt are the explicit transaction control
// statements (spec.md §4.2/§6).
type BeginStmt struct{}
type CommitStmt struct{}
type CancelStmt struct{}

// ThrowStmt is `THROW expr`, raising a user-level error (spec.md §4.2).
type ThrowStmt struct {
	Message ID
}

// LetStmt is `LET $name = expr`, binding a session/context variable
// (spec.md §4.9).
type LetStmt struct {
	Name string
	Expr ID
}

// UseStmt is `USE NS ns DB db`, switching the execution context's
// namespace/database (spec.md §4.9).
type UseStmt struct {
	Namespace string
	Database  string
}

// BlockStmt is `{ stmt; stmt; ... }`, used as a closure/function body or
// THEN clause body.
type BlockStmt struct {
	Stmts []ID
}

// IfStmt is `IF cond THEN block ELSE IF ... ELSE block END` as a
// statement (as opposed to the `IF cond THEN a ELSE b` expression form).
type IfStmt struct {
	Conds  []ID
	Blocks []ID
	Else   ID
}

// ForStmt is `FOR $var IN expr { ... }` (spec.md §12 supplement).
type ForStmt struct {
	Var  string
	Iter ID
	Body ID
}

type BreakStmt struct{}
type ContinueStmt struct{}

// ReturnStmt is `RETURN expr`, ending closure/function evaluation early.
type ReturnStmt struct {
	Expr ID
}
