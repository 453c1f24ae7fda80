package parser

import (
	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/syn/token"
)

func (p *Parser) parseOnly() bool {
	if p.cur().Kind == token.ONLY {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) parseData() (ast.Data, error) {
	switch p.cur().Kind {
	case token.CONTENT:
		p.advance()
		e, err := p.parseExpr(0)
		if err != nil {
			return ast.Data{}, err
		}
		return ast.Data{Kind: ast.DataContent, Expr: e}, nil
	case token.MERGE:
		p.advance()
		e, err := p.parseExpr(0)
		if err != nil {
			return ast.Data{}, err
		}
		return ast.Data{Kind: ast.DataMerge, Expr: e}, nil
	case token.PATCH:
		p.advance()
		e, err := p.parseExpr(0)
		if err != nil {
			return ast.Data{}, err
		}
		return ast.Data{Kind: ast.DataPatch, Expr: e}, nil
	case token.SET:
		p.advance()
		var pairs []ast.KV
		for {
			name, err := p.parseIdentName()
			if err != nil {
				return ast.Data{}, err
			}
			for p.cur().Kind == token.DOT {
				p.advance()
				sub, err := p.parseIdentName()
				if err != nil {
					return ast.Data{}, err
				}
				name = name + "." + sub
			}
			if _, err := p.expect(token.EQ); err != nil {
				return ast.Data{}, err
			}
			val, err := p.parseExpr(0)
			if err != nil {
				return ast.Data{}, err
			}
			pairs = append(pairs, ast.KV{Key: name, Val: val})
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
		return ast.Data{Kind: ast.DataSet, Set: pairs}, nil
	default:
		return ast.Data{Kind: ast.DataNone}, nil
	}
}

func (p *Parser) parseOutput() (ast.Output, error) {
	if p.cur().Kind != token.RETURN {
		return ast.Output{Kind: ast.OutputAfter}, nil
	}
	p.advance()
	switch p.cur().Kind {
	case token.NONE:
		p.advance()
		return ast.Output{Kind: ast.OutputNone}, nil
	case token.DIFF:
		p.advance()
		return ast.Output{Kind: ast.OutputDiff}, nil
	case token.BEFORE:
		p.advance()
		return ast.Output{Kind: ast.OutputBefore}, nil
	case token.AFTER:
		p.advance()
		return ast.Output{Kind: ast.OutputAfter}, nil
	default:
		fields, err := p.parseFieldList()
		if err != nil {
			return ast.Output{}, err
		}
		return ast.Output{Kind: ast.OutputFields, Fields: fields}, nil
	}
}

func (p *Parser) parseTrailingClauses() (timeout ast.ID, parallel bool, err error) {
	if p.cur().Kind == token.TIMEOUT {
		p.advance()
		timeout, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, false, err
		}
	}
	if p.cur().Kind == token.PARALLEL {
		p.advance()
		parallel = true
	}
	return timeout, parallel, nil
}

func (p *Parser) parseCreate() (ast.ID, error) {
	start := p.cur()
	p.advance()
	only := p.parseOnly()
	what, err := p.parseWhatList()
	if err != nil {
		return ast.Nil, err
	}
	data, err := p.parseData()
	if err != nil {
		return ast.Nil, err
	}
	output, err := p.parseOutput()
	if err != nil {
		return ast.Nil, err
	}
	timeout, parallel, err := p.parseTrailingClauses()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindCreateStmt, &ast.CreateStmt{
		Only: only, What: what, Data: data, Output: output, Timeout: timeout, Parallel: parallel,
	}), nil
}

func (p *Parser) parseUpdate(upsert bool) (ast.ID, error) {
	start := p.cur()
	p.advance()
	only := p.parseOnly()
	what, err := p.parseWhatList()
	if err != nil {
		return ast.Nil, err
	}
	data, err := p.parseData()
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
	output, err := p.parseOutput()
	if err != nil {
		return ast.Nil, err
	}
	timeout, parallel, err := p.parseTrailingClauses()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindUpdateStmt, &ast.UpdateStmt{
		Only: only, What: what, Data: data, Where: where, Output: output,
		Timeout: timeout, Parallel: parallel, Upsert: upsert,
	}), nil
}

func (p *Parser) parseDelete() (ast.ID, error) {
	start := p.cur()
	p.advance()
	only := p.parseOnly()
	what, err := p.parseWhatList()
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
	output, err := p.parseOutput()
	if err != nil {
		return ast.Nil, err
	}
	timeout, parallel, err := p.parseTrailingClauses()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindDeleteStmt, &ast.DeleteStmt{
		Only: only, What: what, Where: where, Output: output, Timeout: timeout, Parallel: parallel,
	}), nil
}

func (p *Parser) parseRelate() (ast.ID, error) {
	start := p.cur()
	p.advance()
	only := p.parseOnly()
	from, err := p.parsePrimary()
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.ARROWOUT); err != nil {
		return ast.Nil, err
	}
	edge, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.ARROWOUT); err != nil {
		return ast.Nil, err
	}
	to, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	data, err := p.parseData()
	if err != nil {
		return ast.Nil, err
	}
	output, err := p.parseOutput()
	if err != nil {
		return ast.Nil, err
	}
	return p.arena.AddStmt(p.span(start), ast.KindRelateStmt, &ast.RelateStmt{
		Only: only, From: from, Edge: edge, To: to, Data: data, Output: output,
	}), nil
}

func (p *Parser) parseInsert() (ast.ID, error) {
	start := p.cur()
	p.advance()
	relation := false
	if p.cur().Kind == token.IDENT && p.cur().Text == "RELATION" {
		relation = true
		p.advance()
	}
	if _, err := p.expect(token.INTO); err != nil {
		return ast.Nil, err
	}
	table, err := p.parseIdentName()
	if err != nil {
		return ast.Nil, err
	}

	stmt := &ast.InsertStmt{Into: table, Relation: relation}

	if p.cur().Kind == token.LBRACK || p.cur().Kind == token.LBRACE {
		src, err := p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
		stmt.Source = src
	} else {
		if _, err := p.expect(token.LPAREN); err != nil {
			return ast.Nil, err
		}
		for {
			name, err := p.parseIdentName()
			if err != nil {
				return ast.Nil, err
			}
			stmt.Columns = append(stmt.Columns, name)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return ast.Nil, err
		}
		if _, err := p.expect(token.VALUE); err != nil {
			if _, err2 := p.expectText("VALUES"); err2 != nil {
				return ast.Nil, err
			}
		}
		for {
			if _, err := p.expect(token.LPAREN); err != nil {
				return ast.Nil, err
			}
			row, err := p.parseExprCommaList()
			if err != nil {
				return ast.Nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return ast.Nil, err
			}
			stmt.Rows = append(stmt.Rows, row)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}

	output, err := p.parseOutput()
	if err != nil {
		return ast.Nil, err
	}
	stmt.Output = output
	return p.arena.AddStmt(p.span(start), ast.KindInsertStmt, stmt), nil
}
