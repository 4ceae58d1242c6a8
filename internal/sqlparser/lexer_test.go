package sqlparser

import "testing"

func TestLexer_TokenStream(t *testing.T) {
	lx := newLexer(`SELECT name, age FROM users WHERE age >= 18 -- trailing comment
		AND name != 'O''Brien'`)

	want := []struct {
		typ tokenType
		val string
	}{
		{tKeyword, "SELECT"},
		{tIdent, "name"},
		{tSymbol, ","},
		{tIdent, "age"},
		{tKeyword, "FROM"},
		{tIdent, "users"},
		{tKeyword, "WHERE"},
		{tIdent, "age"},
		{tSymbol, ">="},
		{tNumber, "18"},
		{tKeyword, "AND"},
		{tIdent, "name"},
		{tSymbol, "!="},
		{tString, "O'Brien"},
		{tEOF, ""},
	}
	for i, w := range want {
		tok := lx.nextToken()
		if tok.typ != w.typ || tok.val != w.val {
			t.Fatalf("token %d = {%v %q}, want {%v %q}", i, tok.typ, tok.val, w.typ, w.val)
		}
	}
}

func TestLexer_BlockComment(t *testing.T) {
	lx := newLexer("/* skip me */ SELECT")
	tok := lx.nextToken()
	if tok.typ != tKeyword || tok.val != "SELECT" {
		t.Fatalf("got %+v", tok)
	}
}

func TestLexer_QuestionMarkParam(t *testing.T) {
	lx := newLexer("id = ?")
	_ = lx.nextToken() // id
	_ = lx.nextToken() // =
	tok := lx.nextToken()
	if tok.typ != tParam {
		t.Fatalf("got %+v, want tParam", tok)
	}
}

func TestLexer_FloatLiteral(t *testing.T) {
	lx := newLexer("3.14")
	tok := lx.nextToken()
	if tok.typ != tNumber || tok.val != "3.14" {
		t.Fatalf("got %+v", tok)
	}
}
