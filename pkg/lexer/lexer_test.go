package lexer

import (
	"testing"

	"github.com/lemonberrylabs/bigrun/pkg/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestNumberAndRateLiterals(t *testing.T) {
	tests := []struct {
		input string
		kind  token.Kind
		num   float64
	}{
		{"42", token.Number, 42},
		{"3.5", token.Number, 3.5},
		{"0.5x", token.Rate, 0.5},
		{"2X", token.Rate, 2},
		{"1.2.3", token.Number, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := Tokenize(tt.input)
			if len(toks) != 2 {
				t.Fatalf("got %d tokens, want 2: %v", len(toks), toks)
			}
			if toks[0].Kind != tt.kind {
				t.Errorf("kind = %v, want %v", toks[0].Kind, tt.kind)
			}
			if toks[0].Num != tt.num {
				t.Errorf("num = %v, want %v", toks[0].Num, tt.num)
			}
			if toks[1].Kind != token.EOF {
				t.Errorf("last token = %v, want EOF", toks[1].Kind)
			}
		})
	}
}

func TestSymbols(t *testing.T) {
	tests := []struct {
		input string
		want  []token.Kind
	}{
		{"a != b", []token.Kind{token.Identifier, token.NotEqual, token.Identifier, token.EOF}},
		{"a =x b", []token.Kind{token.Identifier, token.NotEqual, token.Identifier, token.EOF}},
		{"a = b", []token.Kind{token.Identifier, token.Assign, token.Identifier, token.EOF}},
		{">= <= > <", []token.Kind{token.GreaterEqual, token.LessEqual, token.Greater, token.Less, token.EOF}},
		{"& + - * / ^", []token.Kind{token.Ampersand, token.Plus, token.Minus, token.Star, token.Slash, token.Caret, token.EOF}},
		{"{ } ( ) [ ] . : $ @", []token.Kind{
			token.LBrace, token.RBrace, token.LParen, token.RParen, token.LBracket,
			token.RBracket, token.Dot, token.Colon, token.Dollar, token.At, token.EOF,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := kinds(Tokenize(tt.input))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUnknownRuneIsChar(t *testing.T) {
	toks := Tokenize("! ~")
	if !toks[0].IsChar('!') {
		t.Errorf("first token = %v, want Char(!)", toks[0])
	}
	if !toks[1].IsChar('~') {
		t.Errorf("second token = %v, want Char(~)", toks[1])
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
		{`"keep \q"`, `keep \q`},
		{`"unterminated`, "unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := Tokenize(tt.input)
			if toks[0].Kind != token.String {
				t.Fatalf("kind = %v, want string", toks[0].Kind)
			}
			if toks[0].Text != tt.want {
				t.Errorf("text = %q, want %q", toks[0].Text, tt.want)
			}
		})
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := Tokenize("PRINT Name s.loop loop.s k.loop user-agent s my_var-2 obj.field")
	want := []struct {
		kind token.Kind
		text string
	}{
		{token.Print, ""},
		{token.Identifier, "Name"},
		{token.Sloop, ""},
		{token.Loops, ""},
		{token.Identifier, "k.loop"},
		{token.UserAgent, ""},
		{token.Solve, ""},
		{token.Identifier, "my_var-2"},
		{token.Identifier, "obj"},
		{token.Dot, ""},
		{token.Identifier, "field"},
		{token.EOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Errorf("token %d = %v, want %v %q", i, toks[i], w.kind, w.text)
		}
	}
}

func TestPositions(t *testing.T) {
	src := "print x # note\n    if x > 1\n\tset y = 2"
	toks := Tokenize(src)

	tests := []struct {
		idx    int
		kind   token.Kind
		line   int
		column int
	}{
		{0, token.Print, 1, 1},
		{1, token.Identifier, 1, 7},
		{2, token.If, 2, 5},
		{5, token.Number, 2, 12},
		{6, token.Set, 3, 5},
	}
	for _, tt := range tests {
		tok := toks[tt.idx]
		if tok.Kind != tt.kind || tok.Line != tt.line || tok.Column != tt.column {
			t.Errorf("token %d = %v at %d:%d, want %v at %d:%d",
				tt.idx, tok, tok.Line, tok.Column, tt.kind, tt.line, tt.column)
		}
	}
}

func TestSpans(t *testing.T) {
	toks := Tokenize("s \"h\\té\" wörld != 2.5x\nS")

	tests := []struct {
		kind token.Kind
		span int
	}{
		{token.Solve, 1},
		{token.String, 6},
		{token.Identifier, 5},
		{token.NotEqual, 2},
		{token.Rate, 4},
		{token.Solve, 1},
	}
	for i, tt := range tests {
		if toks[i].Kind != tt.kind || toks[i].Span != tt.span || toks[i].Width() != tt.span {
			t.Errorf("token %d = %v span %d width %d, want %v span %d",
				i, toks[i], toks[i].Span, toks[i].Width(), tt.kind, tt.span)
		}
	}
}

func TestForeignCodeBlock(t *testing.T) {
	src := "use pybig\npython3 start\nprint(1 + 1)\npython3 end\nprint \"done\""
	toks := Tokenize(src)

	var code *token.Token
	for i := range toks {
		if toks[i].Kind == token.ForeignCode {
			code = &toks[i]
		}
	}
	if code == nil {
		t.Fatalf("no foreign code token in %v", toks)
	}
	if code.Text != "print(1 + 1)" {
		t.Errorf("code = %q", code.Text)
	}
	last := toks[len(toks)-2]
	if last.Kind != token.String || last.Line != 5 {
		t.Errorf("token after block = %v at line %d, want string at line 5", last, last.Line)
	}
}

func TestPython3WithoutStart(t *testing.T) {
	toks := Tokenize("python3 other\nprint 1")
	if toks[0].Kind != token.Identifier || toks[0].Text != "python3" {
		t.Fatalf("first token = %v", toks[0])
	}
	if toks[1].Kind != token.Identifier || toks[1].Text != "other" || toks[1].Line != 1 || toks[1].Column != 9 {
		t.Errorf("second token = %v at %d:%d", toks[1], toks[1].Line, toks[1].Column)
	}
	if toks[2].Kind != token.Print || toks[2].Line != 2 {
		t.Errorf("third token = %v at line %d", toks[2], toks[2].Line)
	}
}
