// Package parser implements the recursive-descent, Pratt-style expression
// parser spec.md §4.1/§4.2 describes: it consumes lexer.Token values
// through a lookahead buffer of at least 4 tokens (spec.md §9) and builds
// an ast.Arena of statement and expression nodes.
//
// The overall shape (buffered token list, precedence-climbing binary
// expression parser, per-keyword statement dispatch) follows how
// other_examples/b4226bca_vippsas-sqlcode__sqlparser-scanner.go.go's
// sibling parser and other_examples/e46853b3_mjm918-tur__pkg-sql-lexer
// structure their recursive-descent parsers: a flat dispatch on the
// leading keyword, then one parseXxxStmt per statement kind.
package parser

import (
	"strings"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/syn/lexer"
	"github.com/forbearing/stratadb/syn/token"
)

// Options bounds parser resource usage, per spec.md §9 / config.Parser.
type Options struct {
	MaxRecursionDepth int
	MaxLookahead      int
}

func DefaultOptions() Options {
	return Options{MaxRecursionDepth: 128, MaxLookahead: 4}
}

// Parser holds the buffered token stream and the arena under construction.
type Parser struct {
	toks  []lexer.Token
	pos   int
	arena *ast.Arena
	opts  Options
	depth int
}

// Parse tokenizes and parses src into a semicolon-separated list of
// top-level statement IDs, sharing one Arena.
func Parse(src string, opts Options) ([]ast.ID, *ast.Arena, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, nil, err
	}
	p := &Parser{toks: toks, arena: ast.NewArena(), opts: opts}
	var stmts []ast.ID
	for !p.atEnd() {
		for p.cur().Kind == token.SEMICOLON {
			p.advance()
		}
		if p.atEnd() {
			break
		}
		id, err := p.parseStatement()
		if err != nil {
			return nil, nil, err
		}
		stmts = append(stmts, id)
		if p.cur().Kind == token.SEMICOLON {
			p.advance()
		}
	}
	return stmts, p.arena, nil
}

func tokenize(src string) ([]lexer.Token, error) {
	l := lexer.New(src)
	var out []lexer.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.WS || tok.Kind == token.COMMENT {
			continue
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return out, nil
}

func (p *Parser) cur() lexer.Token  { return p.at(0) }
func (p *Parser) atEnd() bool       { return p.cur().Kind == token.EOF }

// at returns the token offset positions ahead, clamped to MaxLookahead,
// matching spec.md §9's bounded lookahead requirement.
func (p *Parser) at(offset int) lexer.Token {
	if offset > p.opts.MaxLookahead {
		offset = p.opts.MaxLookahead
	}
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return lexer.Token{Kind: token.EOF}
	}
	return p.toks[idx]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) span(t lexer.Token) ast.Span {
	return ast.Span{Start: t.Start.Offset, End: t.End.Offset, Line: t.Start.Line, Col: t.Start.Col}
}

func (p *Parser) expect(k token.Kind) (lexer.Token, error) {
	if p.cur().Kind != k {
		return lexer.Token{}, kerr.ParseErr(p.errSpan(), "expected "+k.String()+", found "+p.cur().Kind.String())
	}
	return p.advance(), nil
}

func (p *Parser) errSpan() kerr.Span {
	t := p.cur()
	return kerr.Span{Start: t.Start.Offset, End: t.End.Offset, Line: t.Start.Line, Col: t.Start.Col}
}

func (p *Parser) enterRecursion() error {
	p.depth++
	if p.depth > p.opts.MaxRecursionDepth {
		return kerr.RecursionLimitErr(p.errSpan())
	}
	return nil
}

func (p *Parser) exitRecursion() { p.depth-- }

// --- statement dispatch ---

func (p *Parser) parseStatement() (ast.ID, error) {
	if err := p.enterRecursion(); err != nil {
		return ast.Nil, err
	}
	defer p.exitRecursion()

	t := p.cur()
	switch t.Kind {
	case token.SELECT:
		return p.parseSelect(false)
	case token.LIVE:
		return p.parseLive()
	case token.CREATE:
		return p.parseCreate()
	case token.UPDATE:
		return p.parseUpdate(false)
	case token.UPSERT:
		return p.parseUpdate(true)
	case token.DELETE:
		return p.parseDelete()
	case token.RELATE:
		return p.parseRelate()
	case token.INSERT:
		return p.parseInsert()
	case token.DEFINE:
		return p.parseDefine()
	case token.REMOVE:
		return p.parseRemove()
	case token.ALTER:
		return p.parseAlterTable()
	case token.KILL:
		return p.parseKill()
	case token.SHOW:
		return p.parseShowChanges()
	case token.BEGIN:
		p.advance()
		if p.cur().Kind == token.TRANSACTION {
			p.advance()
		}
		return p.arena.AddStmt(p.span(t), ast.KindBeginStmt, &ast.BeginStmt{}), nil
	case token.COMMIT:
		p.advance()
		if p.cur().Kind == token.TRANSACTION {
			p.advance()
		}
		return p.arena.AddStmt(p.span(t), ast.KindCommitStmt, &ast.CommitStmt{}), nil
	case token.CANCEL:
		p.advance()
		if p.cur().Kind == token.TRANSACTION {
			p.advance()
		}
		return p.arena.AddStmt(p.span(t), ast.KindCancelStmt, &ast.CancelStmt{}), nil
	case token.THROW:
		return p.parseThrow()
	case token.LET:
		return p.parseLet()
	case token.USE:
		return p.parseUse()
	case token.IF:
		return p.parseIfStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.BREAK:
		p.advance()
		return p.arena.AddStmt(p.span(t), ast.KindBreakStmt, &ast.BreakStmt{}), nil
	case token.CONTINUE:
		p.advance()
		return p.arena.AddStmt(p.span(t), ast.KindContinueStmt, &ast.ContinueStmt{}), nil
	case token.RETURN:
		return p.parseReturn()
	case token.LBRACE:
		return p.parseBlock()
	default:
		return ast.Nil, kerr.ParseErr(p.errSpan(), "unexpected token at start of statement: "+t.Kind.String())
	}
}

func (p *Parser) parseIdentName() (string, error) {
	if p.cur().Kind == token.IDENT || p.cur().Kind.IsKeyword() {
		return p.advance().Text, nil
	}
	return "", kerr.ParseErr(p.errSpan(), "expected identifier")
}

func (p *Parser) parseThrow() (ast.ID, error) {
	start := p.cur()
	p.advance()
	expr, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindThrowStmt, &ast.ThrowStmt{Message: expr}), nil
}

func (p *Parser) parseLet() (ast.ID, error) {
	start := p.cur()
	p.advance()
	if _, err := p.expect(token.PARAM); err != nil {
		return ast.Nil, err
	}
	name := p.toks[p.pos-1].Text
	if _, err := p.expect(token.EQ); err != nil {
		return ast.Nil, err
	}
	expr, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindLetStmt, &ast.LetStmt{Name: name, Expr: expr}), nil
}

func (p *Parser) parseUse() (ast.ID, error) {
	start := p.cur()
	p.advance()
	var ns, db string
	for p.cur().Kind == token.NS || p.cur().Kind == token.NAMESPACE || p.cur().Kind == token.DB || p.cur().Kind == token.DATABASE {
		isNs := p.cur().Kind == token.NS || p.cur().Kind == token.NAMESPACE
		p.advance()
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		if isNs {
			ns = name
		} else {
			db = name
		}
	}
	return p.arena.AddStmt(p.span(start), ast.KindUseStmt, &ast.UseStmt{Namespace: ns, Database: db}), nil
}

func (p *Parser) parseReturn() (ast.ID, error) {
	start := p.cur()
	p.advance()
	expr, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindReturnStmt, &ast.ReturnStmt{Expr: expr}), nil
}

func (p *Parser) parseBlock() (ast.ID, error) {
	start := p.cur()
	if _, err := p.expect(token.LBRACE); err != nil {
		return ast.Nil, err
	}
	var stmts []ast.ID
	for p.cur().Kind != token.RBRACE {
		if p.atEnd() {
			return ast.Nil, kerr.ParseErr(p.errSpan(), "unterminated block")
		}
		s, err := p.parseStatement()
		if err != nil {
			return ast.Nil, err
		}
		stmts = append(stmts, s)
		for p.cur().Kind == token.SEMICOLON {
			p.advance()
		}
	}
	p.advance() // '}'
	return p.arena.AddStmt(p.span(start), ast.KindBlockStmt, &ast.BlockStmt{Stmts: stmts}), nil
}

func (p *Parser) parseForStmt() (ast.ID, error) {
	start := p.cur()
	p.advance()
	if _, err := p.expect(token.PARAM); err != nil {
		return ast.Nil, err
	}
	name := p.toks[p.pos-1].Text
	if _, err := p.expectText("IN"); err != nil {
		return ast.Nil, err
	}
	iter, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindForStmt, &ast.ForStmt{Var: name, Iter: iter, Body: body}), nil
}

// expectText consumes the current token if its text case-insensitively
// matches s, used for contextual keywords (IN, INDEX hints) that aren't
// worth a dedicated token.Kind.
func (p *Parser) expectText(s string) (lexer.Token, error) {
	if strings.EqualFold(p.cur().Text, s) {
		return p.advance(), nil
	}
	return lexer.Token{}, kerr.ParseErr(p.errSpan(), "expected "+s)
}

func (p *Parser) parseIfStmt() (ast.ID, error) {
	start := p.cur()
	p.advance()
	var conds, blocks []ast.ID
	cond, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return ast.Nil, err
	}
	blk, err := p.parseStatement()
	if err != nil {
		return ast.Nil, err
	}
	conds = append(conds, cond)
	blocks = append(blocks, blk)
	var elseID ast.ID
	for p.cur().Kind == token.ELSE {
		p.advance()
		if p.cur().Kind == token.IF {
			p.advance()
			c2, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			if _, err := p.expect(token.THEN); err != nil {
				return ast.Nil, err
			}
			b2, err := p.parseStatement()
			if err != nil {
				return ast.Nil, err
			}
			conds = append(conds, c2)
			blocks = append(blocks, b2)
			continue
		}
		elseID, err = p.parseStatement()
		if err != nil {
			return ast.Nil, err
		}
		break
	}
	if p.cur().Kind == token.END {
		p.advance()
	}
	return p.arena.AddStmt(p.span(start), ast.KindIfStmt, &ast.IfStmt{Conds: conds, Blocks: blocks, Else: elseID}), nil
}

func (p *Parser) parseKill() (ast.ID, error) {
	start := p.cur()
	p.advance()
	expr, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindKillStmt, &ast.KillStmt{QueryID: expr}), nil
}

func (p *Parser) parseShowChanges() (ast.ID, error) {
	start := p.cur()
	p.advance() // SHOW
	if _, err := p.expect(token.CHANGES); err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.FOR); err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.TABLE); err != nil {
		return ast.Nil, err
	}
	table, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.ShowChangesStmt{Table: table}
	if p.cur().Kind == token.SINCE {
		p.advance()
		stmt.Since, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}
	if p.cur().Kind == token.LIMIT {
		p.advance()
		stmt.Limit, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}
	return p.arena.AddStmt(p.span(start), ast.KindShowChanges, stmt), nil
}

func (p *Parser) parseLive() (ast.ID, error) {
	start := p.cur()
	p.advance() // LIVE
	if _, err := p.expect(token.SELECT); err != nil {
		return ast.Nil, err
	}
	diff := false
	if p.cur().Kind == token.DIFF {
		diff = true
		p.advance()
	}
	fields, err := p.parseFieldList()
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.FROM); err != nil {
		return ast.Nil, err
	}
	table, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	var where ast.ID
	if p.cur().Kind == token.WHERE {
		p.advance()
		where, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}
	return p.arena.AddStmt(p.span(start), ast.KindLiveStmt, &ast.LiveStmt{
		Diff: diff, Fields: fields, What: table, Where: where,
	}), nil
}
