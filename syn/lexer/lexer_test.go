package lexer

import (
	"testing"

	"github.com/forbearing/stratadb/syn/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var out []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind == token.WS || tok.Kind == token.COMMENT {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func TestKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, "SELECT * FROM person")
	require.Len(t, toks, 4)
	assert.Equal(t, token.SELECT, toks[0].Kind)
	assert.Equal(t, token.MUL, toks[1].Kind)
	assert.Equal(t, token.FROM, toks[2].Kind)
	assert.Equal(t, token.IDENT, toks[3].Kind)
	assert.Equal(t, "person", toks[3].Text)
}

func TestStringLiteralEscapes(t *testing.T) {
	toks := scanAll(t, `"hello\nworld"`)
	require.Len(t, toks, 1)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hello\nworld", toks[0].Text)
}

func TestParamToken(t *testing.T) {
	toks := scanAll(t, "$user_id")
	require.Len(t, toks, 1)
	assert.Equal(t, token.PARAM, toks[0].Kind)
	assert.Equal(t, "user_id", toks[0].Text)
}

func TestNumberVsDouble(t *testing.T) {
	toks := scanAll(t, "42 3.14")
	require.Len(t, toks, 2)
	assert.Equal(t, token.NUMBER, toks[0].Kind)
	assert.Equal(t, token.DOUBLE, toks[1].Kind)
}

func TestDurationLiteral(t *testing.T) {
	toks := scanAll(t, "13h 500ms")
	require.Len(t, toks, 2)
	assert.Equal(t, token.DURATION, toks[0].Kind)
	assert.Equal(t, token.DURATION, toks[1].Kind)
}

func TestOperators(t *testing.T) {
	toks := scanAll(t, "a == b != c <= d >= e")
	kinds := []token.Kind{}
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Contains(t, kinds, token.EEQ)
	assert.Contains(t, kinds, token.NEQ)
	assert.Contains(t, kinds, token.LTE)
	assert.Contains(t, kinds, token.GTE)
}

func TestArrows(t *testing.T) {
	toks := scanAll(t, "a->b<-c<->d")
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Contains(t, kinds, token.ARROWOUT)
	assert.Contains(t, kinds, token.ARROWIN)
	assert.Contains(t, kinds, token.ARROWBOTH)
}

func TestRegexLiteral(t *testing.T) {
	toks := scanAll(t, `/^[a-z]+$/`)
	require.Len(t, toks, 1)
	assert.Equal(t, token.REGEX, toks[0].Kind)
	assert.Equal(t, "^[a-z]+$", toks[0].Text)
}

func TestUnterminatedStringErrors(t *testing.T) {
	l := New(`"unterminated`)
	_, err := l.Next()
	require.Error(t, err)
}

func TestDotDotEq(t *testing.T) {
	toks := scanAll(t, "1..=5")
	require.Len(t, toks, 3)
	assert.Equal(t, token.DOTDOTEQ, toks[1].Kind)
}
