package parser

import (
	"strconv"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/syn/lexer"
	"github.com/forbearing/stratadb/syn/token"
	"github.com/forbearing/stratadb/value"
)

// parseIfNotExistsOverwrite consumes an optional `IF NOT EXISTS` or
// `OVERWRITE` clause, the two mutually exclusive existence modifiers
// spec.md §4.2 attaches to every DEFINE statement.
func (p *Parser) parseIfNotExistsOverwrite() (ifNotEx, overwrite bool, err error) {
	if p.cur().Kind == token.IF {
		p.advance()
		if _, err := p.expect(token.NOT); err != nil {
			return false, false, err
		}
		if _, err := p.expect(token.EXISTS); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if p.cur().Kind == token.OVERWRITE {
		p.advance()
		return false, true, nil
	}
	return false, false, nil
}

func (p *Parser) parseComment() (string, error) {
	if p.cur().Kind == token.COMMENT_KW {
		p.advance()
		tok, err := p.expect(token.STRING)
		if err != nil {
			return "", err
		}
		return tok.Text, nil
	}
	return "", nil
}

func (p *Parser) parseDefine() (ast.ID, error) {
	start := p.cur()
	p.advance() // DEFINE

	switch p.cur().Kind {
	case token.NAMESPACE, token.NS:
		p.advance()
		return p.parseDefineNamespace(start)
	case token.DATABASE, token.DB:
		p.advance()
		return p.parseDefineDatabase(start)
	case token.TABLE:
		p.advance()
		return p.parseDefineTable(start)
	case token.FIELD:
		p.advance()
		return p.parseDefineField(start)
	case token.INDEX:
		p.advance()
		return p.parseDefineIndex(start)
	case token.USER:
		p.advance()
		return p.parseDefineUser(start)
	case token.EVENT:
		p.advance()
		return p.parseDefineEvent(start)
	default:
		if p.cur().Kind == token.IDENT && p.cur().Text == "ACCESS" {
			p.advance()
			return p.parseDefineAccess(start)
		}
		return ast.Nil, kerr.ParseErr(p.errSpan(), "unsupported DEFINE target: "+p.cur().Kind.String())
	}
}

func (p *Parser) parseDefineNamespace(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	comment, err := p.parseComment()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindDefineNamespace, &ast.DefineNamespaceStmt{
		Name: name, IfNotEx: ifNotEx, Overwrite: overwrite, Comment: comment,
	}), nil
}

func (p *Parser) parseDefineDatabase(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	comment, err := p.parseComment()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindDefineDatabase, &ast.DefineDatabaseStmt{
		Name: name, IfNotEx: ifNotEx, Overwrite: overwrite, Comment: comment,
	}), nil
}

func (p *Parser) parsePermissions() (ast.Permissions, error) {
	perm := ast.Permissions{}
	if p.cur().Kind != token.PERMISSIONS {
		return perm, nil
	}
	p.advance()
	if p.cur().Kind == token.IDENT && p.cur().Text == "FULL" {
		p.advance()
		full := p.arena.Literal(p.span(p.cur()), value.Bool(true))
		perm.Select, perm.Create, perm.Update, perm.Delete = full, full, full, full
		return perm, nil
	}
	if p.cur().Kind == token.NONE {
		p.advance()
		return perm, nil
	}
	for p.cur().Kind == token.FOR {
		p.advance()
		verbs, err := p.parsePermVerbs()
		if err != nil {
			return perm, err
		}
		var expr ast.ID
		if p.cur().Kind == token.NONE {
			p.advance()
		} else if p.cur().Kind == token.IDENT && p.cur().Text == "FULL" {
			p.advance()
			expr = p.arena.Literal(p.span(p.cur()), value.Bool(true))
		} else {
			if _, err := p.expect(token.WHERE); err != nil {
				return perm, err
			}
			expr, err = p.parseExpr(0)
			if err != nil {
				return perm, err
			}
		}
		for _, v := range verbs {
			switch v {
			case token.SELECT:
				perm.Select = expr
			case token.CREATE:
				perm.Create = expr
			case token.UPDATE:
				perm.Update = expr
			case token.DELETE:
				perm.Delete = expr
			}
		}
	}
	return perm, nil
}

func (p *Parser) parsePermVerbs() ([]token.Kind, error) {
	var out []token.Kind
	for {
		switch p.cur().Kind {
		case token.SELECT, token.CREATE, token.UPDATE, token.DELETE:
			out = append(out, p.cur().Kind)
			p.advance()
		default:
			return nil, kerr.ParseErr(p.errSpan(), "expected permission verb")
		}
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseDefineTable(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.DefineTableStmt{Name: name, IfNotEx: ifNotEx, Overwrite: overwrite}

	for {
		switch p.cur().Kind {
		case token.SCHEMAFULL:
			p.advance()
			stmt.SchemaFull = true
		case token.SCHEMALESS:
			p.advance()
			stmt.SchemaFull = false
		case token.TYPE:
			p.advance()
			if p.cur().Kind == token.IDENT && p.cur().Text == "RELATION" {
				p.advance()
				stmt.Kind = ast.TableRelation
				if p.cur().Kind == token.FROM {
					p.advance()
					in, err := p.parseIdentName()
					if err != nil {
						return ast.Nil, err
					}
					stmt.EnforcedIn = in
				}
				if p.cur().Kind == token.TO {
					p.advance()
					out, err := p.parseIdentName()
					if err != nil {
						return ast.Nil, err
					}
					stmt.EnforcedOut = out
				}
			} else if _, err := p.expectText("NORMAL"); err == nil {
				stmt.Kind = ast.TableNormal
			}
		case token.PERMISSIONS:
			perm, err := p.parsePermissions()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Permissions = perm
		case token.COMMENT_KW:
			c, err := p.parseComment()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Comment = c
		default:
			return p.arena.AddStmt(p.span(start), ast.KindDefineTable, stmt), nil
		}
	}
}

func (p *Parser) parseDefineField(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	for p.cur().Kind == token.DOT {
		p.advance()
		sub, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		name = name + "." + sub
	}
	if _, err := p.expect(token.ON); err != nil {
		return ast.Nil, err
	}
	if p.cur().Kind == token.TABLE {
		p.advance()
	}
	table, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.DefineFieldStmt{Name: name, Table: table, IfNotEx: ifNotEx, Overwrite: overwrite}

	for {
		switch p.cur().Kind {
		case token.FLEXIBLE:
			p.advance()
			stmt.Flexible = true
		case token.TYPE:
			p.advance()
			typeName, err := p.parseTypeName()
			if err != nil {
				return ast.Nil, err
			}
			stmt.TypeName = typeName
		case token.DEFAULT:
			p.advance()
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			stmt.Default = e
		case token.VALUE:
			p.advance()
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			stmt.Value = e
		case token.ASSERT:
			p.advance()
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			stmt.Assert = e
		case token.PERMISSIONS:
			perm, err := p.parsePermissions()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Permissions = perm
		case token.COMMENT_KW:
			c, err := p.parseComment()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Comment = c
		default:
			return p.arena.AddStmt(p.span(start), ast.KindDefineField, stmt), nil
		}
	}
}

// parseTypeName consumes a (possibly generic) type name like
// "array<record<person>>" as raw text, since spec.md §4.2 treats TYPE as
// executor-consumed metadata rather than a parsed type-tree.
func (p *Parser) parseTypeName() (string, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return "", err
	}
	if p.cur().Kind == token.LT {
		name += "<"
		p.advance()
		depth := 1
		for depth > 0 {
			if p.atEnd() {
				return "", kerr.ParseErr(p.errSpan(), "unterminated generic type")
			}
			switch p.cur().Kind {
			case token.LT:
				depth++
				name += "<"
			case token.GT:
				depth--
				name += ">"
			default:
				name += p.cur().Text
			}
			p.advance()
		}
	}
	return name, nil
}

func (p *Parser) parseDefineIndex(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.ON); err != nil {
		return ast.Nil, err
	}
	if p.cur().Kind == token.TABLE {
		p.advance()
	}
	table, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.DefineIndexStmt{Name: name, Table: table, IfNotEx: ifNotEx, Overwrite: overwrite,
		BM25K1: 1.2, BM25B: 0.75, M: 16, EfConstruction: 200}

	if p.cur().Kind == token.FIELDS || p.cur().Kind == token.IDENT && p.cur().Text == "COLUMNS" {
		p.advance()
		for {
			col, err := p.parseIdentName()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}

	for {
		switch p.cur().Kind {
		case token.UNIQUE:
			p.advance()
			stmt.Kind = ast.IndexUnique
		case token.IDENT:
			switch p.cur().Text {
			case "SEARCH":
				p.advance()
				stmt.Kind = ast.IndexFullText
				if p.cur().Kind == token.IDENT && p.cur().Text == "ANALYZER" {
					p.advance()
					if _, err := p.parseIdentName(); err != nil {
						return ast.Nil, err
					}
				}
			case "DIMENSION":
				p.advance()
				n, err := p.expect(token.NUMBER)
				if err != nil {
					return ast.Nil, err
				}
				stmt.Dimension, _ = strconv.Atoi(n.Text)
			case "DIST":
				p.advance()
				m, err := p.parseIdentName()
				if err != nil {
					return ast.Nil, err
				}
				stmt.DistanceMetric = m
			default:
				goto done
			}
		case token.BM25:
			p.advance()
			stmt.Kind = ast.IndexFullText
		case token.HNSW:
			p.advance()
			stmt.Kind = ast.IndexHNSW
		case token.MTREE:
			p.advance()
			stmt.Kind = ast.IndexMTree
		case token.COMMENT_KW:
			c, err := p.parseComment()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Comment = c
		default:
			goto done
		}
	}
done:
	return p.arena.AddStmt(p.span(start), ast.KindDefineIndex, stmt), nil
}

func (p *Parser) parseDefineUser(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.DefineUserStmt{Name: name, IfNotEx: ifNotEx, Overwrite: overwrite}
	if p.cur().Kind == token.ON {
		p.advance()
		lvl, err := p.parseAccessLevel()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Level = lvl
	}
	for {
		switch p.cur().Kind {
		case token.IDENT:
			if p.cur().Text == "PASSWORD" {
				p.advance()
				tok, err := p.expect(token.STRING)
				if err != nil {
					return ast.Nil, err
				}
				stmt.Password = tok.Text
			} else if p.cur().Text == "ROLES" {
				p.advance()
				for {
					role, err := p.parseIdentName()
					if err != nil {
						return ast.Nil, err
					}
					stmt.Roles = append(stmt.Roles, role)
					if p.cur().Kind == token.COMMA {
						p.advance()
						continue
					}
					break
				}
			} else {
				return p.arena.AddStmt(p.span(start), ast.KindDefineUser, stmt), nil
			}
		case token.COMMENT_KW:
			c, err := p.parseComment()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Comment = c
		default:
			return p.arena.AddStmt(p.span(start), ast.KindDefineUser, stmt), nil
		}
	}
}

func (p *Parser) parseAccessLevel() (ast.AccessLevel, error) {
	switch p.cur().Kind {
	case token.ROOT:
		p.advance()
		return ast.LevelRoot, nil
	case token.NAMESPACE, token.NS:
		p.advance()
		return ast.LevelNamespace, nil
	case token.DATABASE, token.DB:
		p.advance()
		return ast.LevelDatabase, nil
	default:
		return ast.LevelRoot, kerr.ParseErr(p.errSpan(), "expected ROOT, NAMESPACE, or DATABASE")
	}
}

func (p *Parser) parseDefineAccess(start lexer.Token) (ast.ID, error) {
	ifNotEx, overwrite, err := p.parseIfNotExistsOverwrite()
	if err != nil {
		return ast.Nil, err
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.DefineAccessStmt{Name: name, IfNotEx: ifNotEx, Overwrite: overwrite}
	if p.cur().Kind == token.ON {
		p.advance()
		lvl, err := p.parseAccessLevel()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Level = lvl
	}
	for p.cur().Kind == token.IDENT || p.cur().Kind == token.SIGNUP || p.cur().Kind == token.SIGNIN {
		switch {
		case p.cur().Kind == token.SIGNUP:
			p.advance()
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			stmt.Signup = e
		case p.cur().Kind == token.SIGNIN:
			p.advance()
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			stmt.Signin = e
		case p.cur().Text == "DURATION":
			p.advance()
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			stmt.Duration = e
		default:
			goto done
		}
	}
done:
	return p.arena.AddStmt(p.span(start), ast.KindDefineAccess, stmt), nil
}

func (p *Parser) parseDefineEvent(start lexer.Token) (ast.ID, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.ON); err != nil {
		return ast.Nil, err
	}
	if p.cur().Kind == token.TABLE {
		p.advance()
	}
	table, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.DefineEventStmt{Name: name, Table: table}
	if p.cur().Kind == token.WHEN {
		p.advance()
		e, err := p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
		stmt.When = e
	}
	if p.cur().Kind == token.THEN {
		p.advance()
		s, err := p.parseStatement()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Then = append(stmt.Then, s)
	}
	return p.arena.AddStmt(p.span(start), ast.KindDefineEvent, stmt), nil
}
