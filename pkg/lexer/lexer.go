// Package lexer turns script source into a flat token stream. Every token
// records its 1-based line and column; blocks are later resolved from that
// metadata, so the column bookkeeping here is load-bearing.
package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/lemonberrylabs/bigrun/pkg/token"
)

const tabWidth = 4

// compound words that survive a '.' inside an identifier.
var compounds = map[string]bool{
	"s.loop": true,
	"loop.s": true,
	"k.loop": true,
}

// Lexer tokenizes script source.
type Lexer struct {
	input  []rune
	pos    int
	line   int
	column int
	tokens []token.Token
}

// New creates a new lexer for the given source.
func New(src string) *Lexer {
	return &Lexer{input: []rune(src), line: 1, column: 1}
}

// Tokenize is shorthand for New(src).Tokenize().
func Tokenize(src string) []token.Token {
	return New(src).Tokenize()
}

// Tokenize scans the entire input. The result always ends with an EOF token.
// Lexing never fails: unknown runes become Char tokens.
func (l *Lexer) Tokenize() []token.Token {
	for {
		ch, ok := l.peek()
		if !ok {
			break
		}
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '#':
			l.skipComment()
		case ch == '"':
			l.emit(l.readString())
		case ch >= '0' && ch <= '9':
			l.emit(l.readNumber())
		case unicode.IsLetter(ch) || ch == '_':
			l.emit(l.readIdentifier())
		default:
			l.emit(l.readSymbol(ch))
		}
	}
	l.tokens = append(l.tokens, token.New(token.EOF, l.line, l.column))
	return l.tokens
}

// emit appends tok, recording how many columns it covered when it ended on
// the line it started.
func (l *Lexer) emit(tok token.Token) {
	if l.line == tok.Line && l.column > tok.Column {
		tok.Span = l.column - tok.Column
	}
	l.tokens = append(l.tokens, tok)
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos < len(l.input) {
		return l.input[l.pos], true
	}
	return 0, false
}

func (l *Lexer) peekNext() (rune, bool) {
	if l.pos+1 < len(l.input) {
		return l.input[l.pos+1], true
	}
	return 0, false
}

// advance consumes one rune and returns it, keeping line and column current.
func (l *Lexer) advance() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	c := l.input[l.pos]
	l.pos++
	switch c {
	case '\n':
		l.line++
		l.column = 1
	case '\t':
		l.column += tabWidth
	default:
		l.column++
	}
	return c, true
}

func (l *Lexer) skipComment() {
	for {
		c, ok := l.peek()
		if !ok || c == '\n' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) readSymbol(ch rune) token.Token {
	line, col := l.line, l.column
	next, _ := l.peekNext()
	two := func(k token.Kind) token.Token {
		l.advance()
		l.advance()
		return token.New(k, line, col)
	}
	one := func(k token.Kind) token.Token {
		l.advance()
		return token.New(k, line, col)
	}

	switch ch {
	case '!':
		if next == '=' {
			return two(token.NotEqual)
		}
	case '=':
		// "=x" has always meant not-equal in older scripts.
		if next == 'x' {
			return two(token.NotEqual)
		}
		return one(token.Assign)
	case '>':
		if next == '=' {
			return two(token.GreaterEqual)
		}
		return one(token.Greater)
	case '<':
		if next == '=' {
			return two(token.LessEqual)
		}
		return one(token.Less)
	case '&':
		return one(token.Ampersand)
	case '+':
		return one(token.Plus)
	case '-':
		return one(token.Minus)
	case '*':
		return one(token.Star)
	case '/':
		return one(token.Slash)
	case '^':
		return one(token.Caret)
	case '{':
		return one(token.LBrace)
	case '}':
		return one(token.RBrace)
	case '(':
		return one(token.LParen)
	case ')':
		return one(token.RParen)
	case '[':
		return one(token.LBracket)
	case ']':
		return one(token.RBracket)
	case '.':
		return one(token.Dot)
	case ':':
		return one(token.Colon)
	case '$':
		return one(token.Dollar)
	case '@':
		return one(token.At)
	}
	tok := one(token.Char)
	tok.Char = ch
	return tok
}

func (l *Lexer) readString() token.Token {
	line, col := l.line, l.column
	l.advance() // opening quote
	var sb strings.Builder
	for {
		c, ok := l.peek()
		if !ok || c == '"' {
			break
		}
		l.advance()
		if c != '\\' {
			sb.WriteRune(c)
			continue
		}
		esc, ok := l.peek()
		if !ok {
			break
		}
		l.advance()
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			sb.WriteByte('\\')
			sb.WriteRune(esc)
		}
	}
	l.advance() // closing quote, if any
	tok := token.New(token.String, line, col)
	tok.Text = sb.String()
	return tok
}

func (l *Lexer) readNumber() token.Token {
	line, col := l.line, l.column
	start := l.pos
	for {
		c, ok := l.peek()
		if !ok || !(c >= '0' && c <= '9' || c == '.') {
			break
		}
		l.advance()
	}
	val, err := strconv.ParseFloat(string(l.input[start:l.pos]), 64)
	if err != nil {
		val = 0
	}

	kind := token.Number
	if c, ok := l.peek(); ok && (c == 'x' || c == 'X') {
		l.advance()
		kind = token.Rate
	}
	tok := token.New(kind, line, col)
	tok.Num = val
	return tok
}

func isWordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

func (l *Lexer) readIdentifier() token.Token {
	line, col := l.line, l.column
	var sb strings.Builder
	for {
		c, ok := l.peek()
		if !ok {
			break
		}
		if isWordRune(c) || c == '_' || c == '-' {
			sb.WriteRune(c)
			l.advance()
			continue
		}
		if c != '.' {
			break
		}
		end := l.pos + 1
		for end < len(l.input) && isWordRune(l.input[end]) {
			end++
		}
		combined := sb.String() + "." + string(l.input[l.pos+1:end])
		if !compounds[combined] {
			break
		}
		sb.Reset()
		sb.WriteString(combined)
		for l.pos < end {
			l.advance()
		}
	}

	word := sb.String()
	if word == "python3" {
		if code, ok := l.readForeignBlock(); ok {
			return code
		}
	}
	if k, ok := token.Lookup(word); ok {
		return token.New(k, line, col)
	}
	tok := token.New(token.Identifier, line, col)
	tok.Text = word
	return tok
}

// readForeignBlock captures the raw text between "python3 start" and
// "python3 end". When "start" does not follow, the lexer state is restored
// and ok is false.
func (l *Lexer) readForeignBlock() (token.Token, bool) {
	savedPos, savedLine, savedCol := l.pos, l.line, l.column
	for {
		c, ok := l.peek()
		if !ok || !unicode.IsSpace(c) {
			break
		}
		l.advance()
	}
	wordStart := l.pos
	for {
		c, ok := l.peek()
		if !ok || !isWordRune(c) {
			break
		}
		l.advance()
	}
	if string(l.input[wordStart:l.pos]) != "start" {
		l.pos, l.line, l.column = savedPos, savedLine, savedCol
		return token.Token{}, false
	}

	tok := token.New(token.ForeignCode, l.line, l.column)
	var sb strings.Builder
	for {
		c, ok := l.advance()
		if !ok {
			break
		}
		sb.WriteRune(c)
		if c != 'd' {
			continue
		}
		if code := sb.String(); strings.HasSuffix(code, "python3 end") {
			code = code[:len(code)-len("python3 end")]
			tok.Text = strings.TrimSpace(code)
			return tok, true
		}
	}
	tok.Text = strings.TrimSpace(sb.String())
	return tok, true
}
