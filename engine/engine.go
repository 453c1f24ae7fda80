// Package engine wires catalog, kv, exec, iam, session, livequery,
// changefeed, and script together into the one entry point an embedder
// actually calls: parse a statement list, run it against a fresh
// transaction and catalog.Store, and commit or cancel per its Outcome.
// Everything downstream of exec.Hooks is constructed here, and only
// here — exec, iam, livequery, changefeed, and script never import each
// other, the same hub-and-spoke shape the teacher's own ServiceContext
// assembles its repositories/middleware into for one inbound call.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/changefeed"
	"github.com/forbearing/stratadb/config"
	"github.com/forbearing/stratadb/exec"
	"github.com/forbearing/stratadb/iam"
	"github.com/forbearing/stratadb/index/hnsw"
	"github.com/forbearing/stratadb/index/mtree"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/livequery"
	"github.com/forbearing/stratadb/logger"
	"github.com/forbearing/stratadb/script"
	"github.com/forbearing/stratadb/session"
	"github.com/forbearing/stratadb/syn/parser"
	"github.com/forbearing/stratadb/value"
)

// Engine owns every long-lived component a connection's statements run
// against: the storage backend, the two vector-index registries, the
// casbin-backed permission checker, the live-query/change-feed fan-out,
// and (optionally) the script host. It is safe for concurrent Execute
// calls — each call gets its own kv.Transaction and catalog.Store.
type Engine struct {
	store kv.Store
	hnsw  *hnsw.Registry
	mtree *mtree.Registry
	iam   *iam.Checker
	live  *livequery.Registry
	feed  *changefeed.Recorder
	run   *script.Runner
	cfg   *config.Config
	log   logger.Logger

	closeOnce sync.Once
}

// New assembles an Engine against store. scriptHost may be nil — an
// embedder that never defines fn:: functions doesn't need one, and a nil
// host simply means every fn:: call fails the same way an unrecognized
// builtin does (eval.Hooks.Script's own documented default).
func New(store kv.Store, cfg *config.Config, log logger.Logger, scriptHost script.Host) *Engine {
	if cfg == nil {
		cfg = config.Get()
	}
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		store: store,
		hnsw:  hnsw.NewRegistry(),
		mtree: mtree.NewRegistry(),
		iam:   mustChecker(),
		live:  livequery.New(),
		feed:  changefeed.New(store),
		cfg:   cfg,
		log:   log,
	}
	if scriptHost != nil {
		settings := script.DefaultSettings()
		runner, err := script.New(scriptHost, settings, log.With("component", "script"))
		if err != nil {
			// DefaultSettings is always internally consistent; a
			// constructor error here means script.New's own validation
			// changed underneath this call.
			panic(err)
		}
		e.run = runner
	}
	return e
}

func mustChecker() *iam.Checker {
	c, err := iam.New()
	if err != nil {
		// iam.New only fails building its in-memory casbin model from a
		// fixed string literal; a failure here is a programming error.
		panic(err)
	}
	return c
}

// IAM exposes the Checker so an embedder can provision roles/scopes
// (AssignRole/GrantScope) before the first Execute call.
func (e *Engine) IAM() *iam.Checker { return e.iam }

// SetChangeRetention configures change-feed retention for one table; see
// changefeed.Recorder.SetRetention.
func (e *Engine) SetChangeRetention(ns, db, table string, d time.Duration) {
	e.feed.SetRetention(ns, db, table, d)
}

// Close stops the live-query/change-feed background sweeps and closes
// the storage backend. Safe to call once; later calls are no-ops.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.live.Close()
		e.feed.Close()
		err = e.store.Close()
	})
	return err
}

// SignInUser authenticates a DEFINE USER principal, running the lookup
// in its own short-lived read-only transaction.
func (e *Engine) SignInUser(ctx context.Context, ns, db, name, password string) (*session.Context, error) {
	tx, err := e.store.Begin(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "engine: begin sign-in transaction")
	}
	defer func() { _ = tx.Cancel(ctx) }()

	cat := catalog.New(tx)
	p, err := session.SignInUser(ctx, cat, ns, db, name, password)
	if err != nil {
		return nil, err
	}
	return &session.Context{Principal: p}, nil
}

// SignInAccess authenticates against a DEFINE ACCESS method's SIGNIN
// expression and, on success, issues a JWT per that method's own
// JWTSecret/Duration.
func (e *Engine) SignInAccess(ctx context.Context, ns, db, accessName string, cand value.Value, vars map[string]value.Value) (*session.Context, error) {
	tx, err := e.store.Begin(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "engine: begin sign-in transaction")
	}
	defer func() { _ = tx.Cancel(ctx) }()

	cat := catalog.New(tx)
	acc, err := cat.GetAccess(ctx, ns, db, accessName)
	if err != nil {
		return nil, err
	}
	p, err := session.SignInRecord(acc, cand, vars)
	if err != nil {
		return nil, err
	}
	return session.Issue(p, acc)
}

// VerifyToken parses a token issued by SignInAccess against secret.
func (e *Engine) VerifyToken(token, secret string) (*session.Context, error) {
	return session.Verify(token, secret)
}

// Execute parses src and runs every statement it contains against a
// fresh transaction, auto-committing unless a BEGIN/CANCEL in src
// overrides that (exec.Outcome), and against sess's authenticated
// Principal for every permission check. ns/db seed the executor's
// USE-able default scope; src's own USE statements may change it
// mid-run, same as exec.Executor.NS/DB always have.
func (e *Engine) Execute(ctx context.Context, sess *session.Context, ns, db, src string) ([]value.Value, error) {
	popts := parser.Options{MaxRecursionDepth: e.cfg.Parser.MaxRecursionDepth, MaxLookahead: e.cfg.Parser.MaxLookahead}
	stmts, arena, err := parser.Parse(src, popts)
	if err != nil {
		return nil, err
	}

	tx, err := e.store.Begin(ctx, false)
	if err != nil {
		return nil, errors.Wrap(err, "engine: begin transaction")
	}

	cat := catalog.New(tx)
	ex := exec.New(cat, tx, ns, db, e.hnsw, e.mtree, e.hooks(cat, sess.Principal))
	ex.Source = src
	defer ex.Close()

	results, outcome, runErr := ex.Run(ctx, arena, stmts)
	if runErr != nil {
		_ = tx.Cancel(ctx)
		return results, runErr
	}
	switch outcome {
	case exec.OutcomeCancel:
		return results, tx.Cancel(ctx)
	default:
		if err := tx.Commit(ctx); err != nil {
			return results, errors.Wrap(err, "engine: commit transaction")
		}
		return results, nil
	}
}

// hooks builds the exec.Hooks fan-out for one statement run: permission
// checks go through iam against cat (this run's own transaction-scoped
// catalog.Store — never cached past this one call), committed mutations
// fan out to both the live-query registry and the change-feed recorder,
// and fn:: calls go through the script runner when one was configured.
func (e *Engine) hooks(cat *catalog.Store, p iam.Principal) *exec.Hooks {
	h := &exec.Hooks{
		CheckPermission: e.iam.Hooks(cat, p),
		Notify: func(ctx context.Context, ns, db, table string, kind exec.MutationKind, id, before, after value.Value) {
			e.live.Notify(ctx, ns, db, table, kind, id, before, after)
			e.feed.Notify(ctx, ns, db, table, kind, id, before, after)
		},
		RegisterLive: e.live.Register,
		KillLive:     e.live.Kill,
		ShowChanges:  e.feed.ShowChanges,
	}
	if e.run != nil {
		h.RunScript = e.run.Run
	}
	return h
}
