package parser

import (
	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/syn/token"
)

func (p *Parser) parseAlterTable() (ast.ID, error) {
	start := p.cur()
	p.advance() // ALTER
	if p.cur().Kind == token.TABLE {
		p.advance()
	}
	name, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	stmt := &ast.AlterTableStmt{Name: name}

	for {
		switch p.cur().Kind {
		case token.SCHEMAFULL:
			p.advance()
			v := true
			stmt.SetSchemaFull = &v
		case token.SCHEMALESS:
			p.advance()
			v := false
			stmt.SetSchemaFull = &v
		case token.PERMISSIONS:
			perm, err := p.parsePermissions()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Permissions = &perm
		case token.COMMENT_KW:
			c, err := p.parseComment()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Comment = &c
		default:
			return p.arena.AddStmt(p.span(start), ast.KindAlterTable, stmt), nil
		}
	}
}
