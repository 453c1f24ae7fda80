package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/forbearing/stratadb/ast"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/syn/token"
	"github.com/forbearing/stratadb/value"
	"github.com/google/uuid"
)

// precedence implements Pratt/precedence-climbing binary expression
// parsing. Higher binds tighter.
func precedence(k token.Kind) (int, ast.BinOp, bool) {
	switch k {
	case token.MUL:
		return 7, ast.OpMul, true
	case token.DIV:
		return 7, ast.OpDiv, true
	case token.ADD:
		return 6, ast.OpAdd, true
	case token.SUB:
		return 6, ast.OpSub, true
	case token.LT:
		return 5, ast.OpLt, true
	case token.LTE:
		return 5, ast.OpLte, true
	case token.GT:
		return 5, ast.OpGt, true
	case token.GTE:
		return 5, ast.OpGte, true
	case token.EQ:
		return 4, ast.OpEq, true
	case token.EEQ:
		return 4, ast.OpExactEq, true
	case token.NEQ:
		return 4, ast.OpNeq, true
	case token.ANY:
		return 4, ast.OpAnyEq, true
	case token.CONTAINS:
		return 4, ast.OpContains, true
	case token.CONTAINSNOT:
		return 4, ast.OpContainsNot, true
	case token.INSIDE:
		return 4, ast.OpInside, true
	case token.NOTINSIDE:
		return 4, ast.OpNotInside, true
	case token.MATCHES:
		return 4, ast.OpMatches, true
	case token.AND:
		return 3, ast.OpAnd, true
	case token.OR:
		return 2, ast.OpOr, true
	default:
		return 0, 0, false
	}
}

func (p *Parser) parseExpr(minPrec int) (ast.ID, error) {
	if err := p.enterRecursion(); err != nil {
		return ast.Nil, err
	}
	defer p.exitRecursion()

	lhs, err := p.parseUnary()
	if err != nil {
		return ast.Nil, err
	}
	for {
		prec, op, ok := precedence(p.cur().Kind)
		if !ok || prec < minPrec {
			return lhs, nil
		}
		opTok := p.advance()
		rhs, err := p.parseExpr(prec + 1)
		if err != nil {
			return ast.Nil, err
		}
		lhs = p.arena.Binary(p.span(opTok), op, lhs, rhs)
	}
}

func (p *Parser) parseUnary() (ast.ID, error) {
	t := p.cur()
	switch t.Kind {
	case token.SUB:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return ast.Nil, err
		}
		return p.arena.Unary(p.span(t), ast.OpNeg, operand), nil
	case token.NOT:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return ast.Nil, err
		}
		return p.arena.Unary(p.span(t), ast.OpNot, operand), nil
	default:
		return p.parsePostfix()
	}
}

// parsePostfix parses a primary expression followed by any chain of
// `.field`, `[expr]`, `->table`, `<-table`, `<->table` suffixes, building
// an Idiom/EdgeExpr node per spec.md §4.2.
func (p *Parser) parsePostfix() (ast.ID, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return ast.Nil, err
	}
	var parts []ast.ID
	for {
		switch p.cur().Kind {
		case token.DOT:
			p.advance()
			name, err := p.parseIdentName()
			if err != nil {
				return ast.Nil, err
			}
			parts = append(parts, p.arena.Ident(ast.Span{}, name))
		case token.LBRACK:
			p.advance()
			idx, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			if _, err := p.expect(token.RBRACK); err != nil {
				return ast.Nil, err
			}
			parts = append(parts, idx)
		case token.ARROWOUT, token.ARROWIN, token.ARROWBOTH:
			op := ast.OpOutgoing
			if p.cur().Kind == token.ARROWIN {
				op = ast.OpIncoming
			} else if p.cur().Kind == token.ARROWBOTH {
				op = ast.OpBoth
			}
			arrowTok := p.advance()
			table, err := p.parseIdentName()
			if err != nil {
				return ast.Nil, err
			}
			var where ast.ID
			if p.cur().Kind == token.LPAREN {
				p.advance()
				if p.cur().Kind == token.WHERE {
					p.advance()
					where, err = p.parseExpr(0)
					if err != nil {
						return ast.Nil, err
					}
				}
				if _, err := p.expect(token.RPAREN); err != nil {
					return ast.Nil, err
				}
			}
			if len(parts) > 0 {
				base = p.arena.Idiom(ast.Span{}, base, parts)
				parts = nil
			}
			base = p.arena.EdgeExpr(p.span(arrowTok), op, base, table, where)
			continue
		default:
			if len(parts) > 0 {
				return p.arena.Idiom(ast.Span{}, base, parts), nil
			}
			return base, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.ID, error) {
	t := p.cur()
	switch t.Kind {
	case token.NUMBER:
		p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return ast.Nil, kerr.ParseErr(p.errSpan(), "invalid integer literal: "+t.Text)
		}
		return p.arena.Literal(p.span(t), value.Int64(n)), nil
	case token.DOUBLE:
		p.advance()
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return ast.Nil, kerr.ParseErr(p.errSpan(), "invalid float literal: "+t.Text)
		}
		return p.arena.Literal(p.span(t), value.Float64(f)), nil
	case token.STRING:
		p.advance()
		return p.arena.Literal(p.span(t), value.String(t.Text)), nil
	case token.DURATION:
		p.advance()
		d, err := parseDuration(t.Text)
		if err != nil {
			return ast.Nil, kerr.ParseErr(p.errSpan(), err.Error())
		}
		return p.arena.Literal(p.span(t), value.Duration(d)), nil
	case token.DATETIME:
		p.advance()
		dt, err := time.Parse(time.RFC3339Nano, t.Text)
		if err != nil {
			return ast.Nil, kerr.ParseErr(p.errSpan(), "invalid datetime literal: "+t.Text)
		}
		return p.arena.Literal(p.span(t), value.Datetime(dt)), nil
	case token.REGEX:
		p.advance()
		return p.arena.Literal(p.span(t), value.Regex(t.Text)), nil
	case token.TRUE:
		p.advance()
		return p.arena.Literal(p.span(t), value.Bool(true)), nil
	case token.FALSE:
		p.advance()
		return p.arena.Literal(p.span(t), value.Bool(false)), nil
	case token.NULL:
		p.advance()
		return p.arena.Literal(p.span(t), value.Null()), nil
	case token.NONE:
		p.advance()
		return p.arena.Literal(p.span(t), value.None()), nil
	case token.PARAM:
		p.advance()
		return p.arena.Param(p.span(t), t.Text), nil
	case token.LPAREN:
		p.advance()
		if isSelectStart(p.cur().Kind) {
			stmt, err := p.parseStatement()
			if err != nil {
				return ast.Nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return ast.Nil, err
			}
			return p.arena.SubQuery(p.span(t), stmt), nil
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return ast.Nil, err
		}
		return inner, nil
	case token.LBRACK:
		return p.parseArrayExpr()
	case token.LBRACE:
		return p.parseObjectExpr()
	case token.IF:
		return p.parseIfExpr()
	case token.IDENT:
		return p.parseIdentOrCallOrRecordID()
	default:
		if t.Kind.IsKeyword() {
			// A bare keyword used as a table/function name (e.g. `type::thing`
			// style or a field named after a reserved word).
			return p.parseIdentOrCallOrRecordID()
		}
		return ast.Nil, kerr.ParseErr(p.errSpan(), "unexpected token in expression: "+t.Kind.String())
	}
}

func isSelectStart(k token.Kind) bool { return k == token.SELECT }

func (p *Parser) parseIdentOrCallOrRecordID() (ast.ID, error) {
	t := p.advance()
	name := t.Text
	for p.cur().Kind == token.COLON && p.at(1).Kind == token.COLON {
		p.advance()
		p.advance()
		seg, err := p.parseIdentName()
		if err != nil {
			return ast.Nil, err
		}
		name += "::" + seg
	}

	if p.cur().Kind == token.LPAREN {
		p.advance()
		var args []ast.ID
		for p.cur().Kind != token.RPAREN {
			arg, err := p.parseExpr(0)
			if err != nil {
				return ast.Nil, err
			}
			args = append(args, arg)
			if p.cur().Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return ast.Nil, err
		}
		return p.arena.FuncCall(p.span(t), name, args), nil
	}

	if p.cur().Kind == token.COLON {
		p.advance()
		key, err := p.parseRecordIDKey()
		if err != nil {
			return ast.Nil, err
		}
		return p.arena.RecordIDExpr(p.span(t), name, key), nil
	}

	if looksLikeUUID(name) {
		if id, err := uuid.Parse(name); err == nil {
			return p.arena.Literal(p.span(t), value.Uuid(id)), nil
		}
	}

	return p.arena.Ident(p.span(t), name), nil
}

func looksLikeUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

func (p *Parser) parseRecordIDKey() (ast.ID, error) {
	t := p.cur()
	switch t.Kind {
	case token.NUMBER, token.STRING, token.IDENT:
		return p.parsePrimary() // primary only, so neither `a:1+1` nor `a:1->edge` is absorbed into the key
	case token.LBRACK:
		return p.parseArrayExpr()
	case token.LBRACE:
		return p.parseObjectExpr()
	default:
		return ast.Nil, kerr.ParseErr(p.errSpan(), "expected record id key")
	}
}

func (p *Parser) parseArrayExpr() (ast.ID, error) {
	start := p.cur()
	if _, err := p.expect(token.LBRACK); err != nil {
		return ast.Nil, err
	}
	var items []ast.ID
	for p.cur().Kind != token.RBRACK {
		item, err := p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
		items = append(items, item)
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBRACK); err != nil {
		return ast.Nil, err
	}
	return p.arena.ArrayExpr(p.span(start), items), nil
}

func (p *Parser) parseObjectExpr() (ast.ID, error) {
	start := p.cur()
	if _, err := p.expect(token.LBRACE); err != nil {
		return ast.Nil, err
	}
	var pairs []ast.KV
	for p.cur().Kind != token.RBRACE {
		key, err := p.parseIdentName()
		if err != nil {
			if p.cur().Kind == token.STRING {
				key = p.advance().Text
			} else {
				return ast.Nil, err
			}
		}
		if _, err := p.expect(token.COLON); err != nil {
			return ast.Nil, err
		}
		val, err := p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
		pairs = append(pairs, ast.KV{Key: key, Val: val})
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return ast.Nil, err
	}
	return p.arena.ObjectExpr(p.span(start), pairs), nil
}

func (p *Parser) parseIfExpr() (ast.ID, error) {
	start := p.cur()
	p.advance()
	cond, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return ast.Nil, err
	}
	then, err := p.parseExpr(0)
	if err != nil {
		return ast.Nil, err
	}
	var els ast.ID
	if p.cur().Kind == token.ELSE {
		p.advance()
		els, err = p.parseExpr(0)
		if err != nil {
			return ast.Nil, err
		}
	}
	if p.cur().Kind == token.END {
		p.advance()
	}
	return p.arena.IfExpr(p.span(start), cond, then, els), nil
}

// parseDuration parses a SurrealQL-style duration literal like "1h30m" or
// "500ms" into a time.Duration, supporting the "d"/"w"/"y" units Go's
// time.ParseDuration doesn't.
func parseDuration(s string) (time.Duration, error) {
	var total time.Duration
	i := 0
	for i < len(s) {
		start := i
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if start == i {
			return 0, kerr.ParseErr(kerr.Span{}, "invalid duration literal: "+s)
		}
		numText := s[start:i]
		unitStart := i
		for i < len(s) && !(s[i] >= '0' && s[i] <= '9') {
			i++
		}
		unit := s[unitStart:i]
		n, err := strconv.ParseFloat(numText, 64)
		if err != nil {
			return 0, err
		}
		switch unit {
		case "ns":
			total += time.Duration(n)
		case "us", "µs":
			total += time.Duration(n * float64(time.Microsecond))
		case "ms":
			total += time.Duration(n * float64(time.Millisecond))
		case "s":
			total += time.Duration(n * float64(time.Second))
		case "m":
			total += time.Duration(n * float64(time.Minute))
		case "h":
			total += time.Duration(n * float64(time.Hour))
		case "d":
			total += time.Duration(n * 24 * float64(time.Hour))
		case "w":
			total += time.Duration(n * 7 * 24 * float64(time.Hour))
		case "y":
			total += time.Duration(n * 365 * 24 * float64(time.Hour))
		default:
			return 0, kerr.ParseErr(kerr.Span{}, "unknown duration unit: "+unit)
		}
	}
	return total, nil
}
