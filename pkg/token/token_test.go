package token

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		word string
		want Kind
		ok   bool
	}{
		{"print", Print, true},
		{"PRINT", Print, true},
		{"new", NewWord, true},
		{"s", Solve, true},
		{"S", Solve, true},
		{"solve", Solve, true},
		{"Greeting", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, ok := Lookup(tt.word)
			if ok != tt.ok {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.word, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Lookup(%q) = %v, want %v", tt.word, got, tt.want)
			}
		})
	}
	if NewWord.String() != "new" {
		t.Errorf("NewWord.String() = %q", NewWord.String())
	}
}

func TestWidth(t *testing.T) {
	str := New(String, 1, 1)
	str.Text = "héllo"
	ident := New(Identifier, 1, 1)
	ident.Text = "wörld"
	spanned := New(Solve, 1, 1)
	spanned.Span = 1
	num := New(Number, 1, 1)
	num.Num = 12.5

	tests := []struct {
		name string
		tok  Token
		want int
	}{
		{"string counts runes and quotes", str, 7},
		{"identifier counts runes", ident, 5},
		{"keyword without span", New(Solve, 1, 1), len("solve")},
		{"span wins", spanned, 1},
		{"number", num, 4},
		{"two-rune operator", New(NotEqual, 1, 1), 2},
		{"symbol", New(At, 1, 1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.Width(); got != tt.want {
				t.Errorf("Width() = %d, want %d", got, tt.want)
			}
		})
	}
}
