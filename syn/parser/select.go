package parser

import (
	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/syn/token"
)

func (p *Parser) parseSelect(_ bool) (ast.ID, error) {
	start := p.cur()
	p.advance() // SELECT

	fields, err := p.parseFieldList()
	if err != nil {
		return ast.Nil, err
	}

	var omit []string
	if p.cur().Kind == token.OMIT {
		p.advance()
		for {
			name, err := p.parseIdentName()
			if err != nil {
				return ast.Nil, err
			}
			omit = append(omit, name)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}

	if _, err := p.expect(token.FROM); err != nil {
		return ast.Nil, err
	}
	what, err := p.parseWhatList()
	if err != nil {
		return ast.Nil, err
	}

	stmt := &ast.SelectStmt{Fields: fields, Omit: omit, What: what}

	if p.cur().Kind == token.WITH {
		p.advance()
		if p.cur().Kind == token.NOINDEX {
			p.advance()
			stmt.With.NoIndex = true
		} else if p.cur().Kind == token.INDEX {
			p.advance()
			for {
				name, err := p.parseIdentName()
				if err != nil {
					return ast.Nil, err
				}
				stmt.With.Names = append(stmt.With.Names, name)
				if p.cur().Kind == token.COMMA {
					p.advance()
					continue
				}
				break
			}
		}
	}

	if p.cur().Kind == token.WHERE {
		p.advance()
		stmt.Where, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}

	if p.cur().Kind == token.SPLIT {
		p.advance()
		stmt.Split, err = p.parseExprCommaList()
		if err != nil {
			return ast.Nil, err
		}
	}

	if p.cur().Kind == token.GROUP {
		p.advance()
		if p.cur().Kind == token.BY {
			p.advance()
		}
		if p.cur().Kind == token.ALL {
			p.advance()
			stmt.GroupAll = true
		} else {
			stmt.Group, err = p.parseExprCommaList()
			if err != nil {
				return ast.Nil, err
			}
		}
	}

	if p.cur().Kind == token.ORDER {
		p.advance()
		if p.cur().Kind == token.BY {
			p.advance()
		}
		for {
			e, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			desc := false
			if p.cur().Kind == token.ASC {
				p.advance()
			} else if p.cur().Kind == token.DESC {
				p.advance()
				desc = true
			}
			stmt.Order = append(stmt.Order, ast.OrderBy{Expr: e, Desc: desc})
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}

	if p.cur().Kind == token.LIMIT {
		p.advance()
		stmt.Limit, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}

	if p.cur().Kind == token.START {
		p.advance()
		stmt.Start, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}

	if p.cur().Kind == token.TIMEOUT {
		p.advance()
		stmt.Timeout, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}

	if p.cur().Kind == token.PARALLEL {
		p.advance()
		stmt.Parallel = true
	}

	return p.arena.AddStmt(p.span(start), ast.KindSelectStmt, stmt), nil
}

func (p *Parser) parseFieldList() ([]ast.Field, error) {
	var fields []ast.Field
	for {
		if p.cur().Kind == token.MUL {
			p.advance()
			fields = append(fields, ast.Field{All: true})
		} else {
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			f := ast.Field{Expr: e}
			if p.cur().Kind == token.AS {
				p.advance()
				name, err := p.parseIdentName()
				if err != nil {
					return nil, err
				}
				f.Alias = name
			}
			fields = append(fields, f)
		}
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return fields, nil
}

func (p *Parser) parseExprCommaList() ([]ast.ID, error) {
	var out []ast.ID
	for {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

// parseWhatList parses one or more comma-separated FROM/UPDATE/DELETE
// targets: a table name, a record id expression, a parameter, or a
// parenthesized subquery, each wrapped as a WhatExpr (spec.md §4.2).
func (p *Parser) parseWhatList() ([]ast.ID, error) {
	var out []ast.ID
	for {
		t := p.cur()
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if t.Kind != token.IDENT && t.Kind != token.PARAM && t.Kind != token.LPAREN && !t.Kind.IsKeyword() {
			return nil, kerr.ParseErr(p.errSpan(), "expected table, record id, or subquery")
		}
		out = append(out, p.arena.WhatExpr(p.span(t), e))
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}
