package parser

import (
	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/syn/token"
)

func (p *Parser) parseIfExists() (bool, error) {
	if p.cur().Kind != token.IF {
		return false, nil
	}
	p.advance()
	if _, err := p.expect(token.EXISTS); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Parser) parseRemove() (ast.ID, error) {
	start := p.cur()
	p.advance() // REMOVE

	stmt := &ast.RemoveStmt{}
	switch p.cur().Kind {
	case token.NAMESPACE, token.NS:
		p.advance()
		stmt.Target = ast.RemoveNamespace
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
	case token.DATABASE, token.DB:
		p.advance()
		stmt.Target = ast.RemoveDatabase
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
	case token.TABLE:
		p.advance()
		stmt.Target = ast.RemoveTable
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
	case token.FIELD:
		p.advance()
		stmt.Target = ast.RemoveField
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
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
		stmt.Table = table
	case token.INDEX:
		p.advance()
		stmt.Target = ast.RemoveIndex
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
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
		stmt.Table = table
	case token.USER:
		p.advance()
		stmt.Target = ast.RemoveUser
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
		if p.cur().Kind == token.ON {
			p.advance()
			lvl, err := p.parseAccessLevel()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Level = lvl
		}
	case token.EVENT:
		p.advance()
		stmt.Target = ast.RemoveEvent
		name, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		stmt.Name = name
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
		stmt.Table = table
	default:
		if p.cur().Kind == token.IDENT && p.cur().Text == "ACCESS" {
			p.advance()
			stmt.Target = ast.RemoveAccess
			name, err := p.parseIdentName()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Name = name
			if p.cur().Kind == token.ON {
				p.advance()
				lvl, err := p.parseAccessLevel()
				if err != nil {
					return ast.Nil, err
				}
				stmt.Level = lvl
			}
			break
		}
		return ast.Nil, kerr.ParseErr(p.errSpan(), "unsupported REMOVE target: "+p.cur().Kind.String())
	}

	ifExist, err := p.parseIfExists()
	if err != nil {
		return ast.Nil, err
	}
	stmt.IfExist = ifExist

	return p.arena.AddStmt(p.span(start), ast.KindRemoveStmt, stmt), nil
}
