package query

import "testing"

func tokenTypes(t *testing.T, input string) []TokenType {
	t.Helper()
	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", input, err)
	}
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	return types
}

func TestTokenizeSelect(t *testing.T) {
	types := tokenTypes(t, "SELECT * FROM Foo WHERE Id >= 2")
	want := []TokenType{TK_SELECT, TK_STAR, TK_FROM, TK_ID, TK_WHERE, TK_ID, TK_GE, TK_INTEGER, TK_EOF}
	if len(types) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, types[i], want[i])
		}
	}
}

func TestTokenizeWhitespaceRelaxation(t *testing.T) {
	toks, err := Tokenize("SELECT\t*\nFROM\r\nFoo")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Type != TK_SELECT || toks[1].Type != TK_STAR || toks[2].Type != TK_FROM {
		t.Fatalf("tabs/newlines were not treated as whitespace: %v", toks)
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := Tokenize(`'a\nb\tc\x41B'`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Type != TK_STRING {
		t.Fatalf("got %v", toks[0])
	}
	want := "a\nb\tcAB"
	if toks[0].Lexeme != want {
		t.Fatalf("got %q, want %q", toks[0].Lexeme, want)
	}
}

func TestTokenizeKeywordsCaseInsensitive(t *testing.T) {
	toks, err := Tokenize("select From")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Type != TK_SELECT || toks[1].Type != TK_FROM {
		t.Fatalf("keywords are not case-insensitive: %v", toks)
	}
}

func TestTokenizeOperators(t *testing.T) {
	types := tokenTypes(t, "<= >= <> << >> != = < >")
	want := []TokenType{TK_LE, TK_GE, TK_NE, TK_SHL, TK_SHR, TK_NE, TK_EQ, TK_LT, TK_GT, TK_EOF}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, types[i], want[i])
		}
	}
}
