// Package token defines the closed set of token kinds produced by the lexer
// and consumed by the interpreter. Tokens carry their source line and column;
// the interpreter resolves blocks from that metadata alone.
package token

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	Illegal Kind = iota

	// Literals
	Number      // numeric literal
	String      // double-quoted string
	Identifier  // name that is not a keyword
	Rate        // number immediately followed by x, e.g. 0.5x
	ForeignCode // raw python3 block
	Char        // any other single rune

	// Symbols
	Assign       // =
	NotEqual     // != or =x
	Greater      // >
	Less         // <
	GreaterEqual // >=
	LessEqual    // <=
	Ampersand    // &
	Plus         // +
	Minus        // -
	Star         // *
	Slash        // /
	Caret        // ^
	LBrace       // {
	RBrace       // }
	LParen       // (
	RParen       // )
	LBracket     // [
	RBracket     // ]
	Dot          // .
	Colon        // :
	Dollar       // $
	At           // @

	keywordBegin

	// Core statements
	Init
	Print
	Update
	Get
	Set
	Global
	As
	If
	Or
	Take
	Wait
	Type
	Export
	Use
	Lab
	Attach
	Stop
	Warp
	Run
	Start
	Build
	Pack
	Unpack
	Command
	Loop
	Sloop
	Loops
	Keep
	Doing
	Return
	Addrun
	Andrun
	End
	Any
	Bug
	Found
	Reset
	Len
	BigTick
	BigDelta
	Event
	Push
	Pop
	Step
	Towards
	Speed
	Background
	Ask
	Input
	Setting
	Task
	Solve

	// Collections and files
	Open
	Book
	Write
	Delete
	Copy
	Create
	Folder
	File
	To
	Add
	List
	From
	Of
	Sort
	Insert
	Merge
	Check
	Here
	Cut
	AtWord
	On
	Remove
	Keys
	Value
	Map
	Json
	Split
	By
	Replace
	With
	For
	In
	Look

	// Network and services
	Bignet
	Netloop
	Proxy
	UserAgent
	Header
	Post
	Server
	Sbig
	Reply
	Body
	Control
	Workers
	Limit
	Per
	Mins
	SSL
	Record
	Point
	Note

	// Storage and crypto
	Sql
	Dbig
	Bit
	Aes
	Code
	Decode
	Encrypt
	Decrypt
	Key
	Iv
	Nebc
	Demon
	Bmath
	Markdown
	PyBig

	// Persona data
	Luck
	Random
	Email
	UUID

	// GUI and audio
	Guy
	View
	Refresh
	Draw
	Rectangle
	Rounded
	Circle
	Triangle
	LineShape
	Path
	Button
	Move
	Curve
	Close
	Fill
	Stroke
	TextShape
	Font
	Image
	Asset
	Load
	Style
	Window
	Title
	Click
	Play
	Sound
	Volume
	Beep
	Hover
	Press
	Drag
	Mouse
	Resize
	Frame
	Bind
	State
	Padding
	Spacing
	Row
	Column
	Scroll
	Area
	BtnClick
	KeyDown
	Rotate
	Scale
	Alpha
	Tint
	Layer
	Clip
	Tag
	Blueprint
	Pin
	NewWord
	Autolayering

	// Math and text modifiers
	Remainder
	Sqrt
	Sin
	Cos
	Tan
	Abs
	Floor
	Ceil
	Round
	Log
	Minimum
	Maximum
	Pi
	Euler
	Clean
	Bigcap
	Lower
	Smaller
	Bigger
	Between
	Positive

	keywordEnd

	EOF
)

var kindNames = [...]string{
	Illegal:     "illegal",
	Number:      "number",
	String:      "string",
	Identifier:  "identifier",
	Rate:        "rate",
	ForeignCode: "foreigncode",
	Char:        "char",

	Assign:       "=",
	NotEqual:     "!=",
	Greater:      ">",
	Less:         "<",
	GreaterEqual: ">=",
	LessEqual:    "<=",
	Ampersand:    "&",
	Plus:         "+",
	Minus:        "-",
	Star:         "*",
	Slash:        "/",
	Caret:        "^",
	LBrace:       "{",
	RBrace:       "}",
	LParen:       "(",
	RParen:       ")",
	LBracket:     "[",
	RBracket:     "]",
	Dot:          ".",
	Colon:        ":",
	Dollar:       "$",
	At:           "@",

	Init:       "init",
	Print:      "print",
	Update:     "update",
	Get:        "get",
	Set:        "set",
	Global:     "global",
	As:         "as",
	If:         "if",
	Or:         "or",
	Take:       "take",
	Wait:       "wait",
	Type:       "type",
	Export:     "export",
	Use:        "use",
	Lab:        "lab",
	Attach:     "attach",
	Stop:       "stop",
	Warp:       "warp",
	Run:        "run",
	Start:      "start",
	Build:      "build",
	Pack:       "pack",
	Unpack:     "unpack",
	Command:    "command",
	Loop:       "loop",
	Sloop:      "s.loop",
	Loops:      "loop.s",
	Keep:       "keep",
	Doing:      "doing",
	Return:     "return",
	Addrun:     "addrun",
	Andrun:     "andrun",
	End:        "end",
	Any:        "any",
	Bug:        "bug",
	Found:      "found",
	Reset:      "reset",
	Len:        "len",
	BigTick:    "bigtick",
	BigDelta:   "bigdelta",
	Event:      "event",
	Push:       "push",
	Pop:        "pop",
	Step:       "step",
	Towards:    "towards",
	Speed:      "speed",
	Background: "background",
	Ask:        "ask",
	Input:      "input",
	Setting:    "setting",
	Task:       "task",
	Solve:      "solve",

	Open:    "open",
	Book:    "book",
	Write:   "write",
	Delete:  "delete",
	Copy:    "copy",
	Create:  "create",
	Folder:  "folder",
	File:    "file",
	To:      "to",
	Add:     "add",
	List:    "list",
	From:    "from",
	Of:      "of",
	Sort:    "sort",
	Insert:  "insert",
	Merge:   "merge",
	Check:   "check",
	Here:    "here",
	Cut:     "cut",
	AtWord:  "at",
	On:      "on",
	Remove:  "remove",
	Keys:    "keys",
	Value:   "value",
	Map:     "map",
	Json:    "json",
	Split:   "split",
	By:      "by",
	Replace: "replace",
	With:    "with",
	For:     "for",
	In:      "in",
	Look:    "look",

	Bignet:    "bignet",
	Netloop:   "netloop",
	Proxy:     "proxy",
	UserAgent: "user-agent",
	Header:    "header",
	Post:      "post",
	Server:    "server",
	Sbig:      "sbig",
	Reply:     "reply",
	Body:      "body",
	Control:   "control",
	Workers:   "workers",
	Limit:     "limit",
	Per:       "per",
	Mins:      "mins",
	SSL:       "ssl",
	Record:    "record",
	Point:     "point",
	Note:      "note",

	Sql:      "sql",
	Dbig:     "dbig",
	Bit:      "bit",
	Aes:      "aes",
	Code:     "code",
	Decode:   "decode",
	Encrypt:  "encrypt",
	Decrypt:  "decrypt",
	Key:      "key",
	Iv:       "iv",
	Nebc:     "nebc",
	Demon:    "demon",
	Bmath:    "bmath",
	Markdown: "markdown",
	PyBig:    "pybig",

	Luck:   "luck",
	Random: "random",
	Email:  "email",
	UUID:   "uuid",

	Guy:          "guy",
	View:         "view",
	Refresh:      "refresh",
	Draw:         "draw",
	Rectangle:    "rectangle",
	Rounded:      "rounded",
	Circle:       "circle",
	Triangle:     "triangle",
	LineShape:    "line",
	Path:         "path",
	Button:       "button",
	Move:         "move",
	Curve:        "curve",
	Close:        "close",
	Fill:         "fill",
	Stroke:       "stroke",
	TextShape:    "text",
	Font:         "font",
	Image:        "image",
	Asset:        "asset",
	Load:         "load",
	Style:        "style",
	Window:       "window",
	Title:        "title",
	Click:        "click",
	Play:         "play",
	Sound:        "sound",
	Volume:       "volume",
	Beep:         "beep",
	Hover:        "hover",
	Press:        "press",
	Drag:         "drag",
	Mouse:        "mouse",
	Resize:       "resize",
	Frame:        "frame",
	Bind:         "bind",
	State:        "state",
	Padding:      "padding",
	Spacing:      "spacing",
	Row:          "row",
	Column:       "column",
	Scroll:       "scroll",
	Area:         "area",
	BtnClick:     "btnclick",
	KeyDown:      "keydown",
	Rotate:       "rotate",
	Scale:        "scale",
	Alpha:        "alpha",
	Tint:         "tint",
	Layer:        "layer",
	Clip:         "clip",
	Tag:          "tag",
	Blueprint:    "blueprint",
	Pin:          "pin",
	NewWord:      "new",
	Autolayering: "autolayering",

	Remainder: "remainder",
	Sqrt:      "sqrt",
	Sin:       "sin",
	Cos:       "cos",
	Tan:       "tan",
	Abs:       "abs",
	Floor:     "floor",
	Ceil:      "ceil",
	Round:     "round",
	Log:       "log",
	Minimum:   "minimum",
	Maximum:   "maximum",
	Pi:        "pi",
	Euler:     "euler",
	Clean:     "clean",
	Bigcap:    "bigcap",
	Lower:     "lower",
	Smaller:   "smaller",
	Bigger:    "bigger",
	Between:   "between",
	Positive:  "positive",

	EOF: "eof",
}

// keywords maps lowercase source words to keyword kinds.
var keywords map[string]Kind

func init() {
	keywords = make(map[string]Kind, int(keywordEnd-keywordBegin)+4)
	for k := keywordBegin + 1; k < keywordEnd; k++ {
		keywords[kindNames[k]] = k
	}
	keywords["s"] = Solve
	keywords["col"] = Column
}

// String returns the source spelling for keywords and symbols and a
// lowercase class name for literals.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsKeyword reports whether k is one of the reserved words.
func (k Kind) IsKeyword() bool {
	return k > keywordBegin && k < keywordEnd
}

// Lookup returns the keyword kind for word, matched case-insensitively.
func Lookup(word string) (Kind, bool) {
	k, ok := keywords[strings.ToLower(word)]
	return k, ok
}

// Keywords returns every reserved word, including aliases.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for w := range keywords {
		out = append(out, w)
	}
	return out
}

// Token is a single lexical unit with its 1-based source position.
type Token struct {
	Kind   Kind
	Text   string  // String, Identifier and ForeignCode payload
	Num    float64 // Number and Rate value
	Char   rune    // Char value
	Line   int
	Column int
	Span   int // columns covered in the source, 0 when unknown or multi-line
}

// New returns a token of kind k at line and column.
func New(k Kind, line, column int) Token {
	return Token{Kind: k, Line: line, Column: column}
}

// Is reports whether the token has kind k.
func (t Token) Is(k Kind) bool { return t.Kind == k }

// IsChar reports whether the token is the single-rune token c.
func (t Token) IsChar(c rune) bool { return t.Kind == Char && t.Char == c }

// IsOperator reports whether the token is an arithmetic operator.
func (t Token) IsOperator() bool {
	switch t.Kind {
	case Plus, Minus, Star, Slash, Caret:
		return true
	}
	return false
}

// Width is the number of columns the token occupies on its line. Tokens
// from the lexer carry their source span; synthesized tokens fall back to
// the width of their canonical spelling.
func (t Token) Width() int {
	if t.Span > 0 {
		return t.Span
	}
	switch t.Kind {
	case String:
		return utf8.RuneCountInString(t.Text) + 2
	case Number:
		return len(FormatNumber(t.Num))
	case Identifier, ForeignCode:
		return utf8.RuneCountInString(t.Text)
	case NotEqual, GreaterEqual, LessEqual:
		return 2
	case Rate:
		return len(FormatNumber(t.Num)) + 1
	}
	if t.Kind.IsKeyword() {
		return len(t.Kind.String())
	}
	return 1
}

func (t Token) String() string {
	switch t.Kind {
	case Number:
		return "Number(" + FormatNumber(t.Num) + ")"
	case Rate:
		return "Rate(" + FormatNumber(t.Num) + ")"
	case String:
		return "String(" + strconv.Quote(t.Text) + ")"
	case Identifier:
		return "Identifier(" + t.Text + ")"
	case ForeignCode:
		return "ForeignCode(" + strconv.Itoa(len(t.Text)) + " bytes)"
	case Char:
		return "Char(" + string(t.Char) + ")"
	}
	return t.Kind.String()
}

// FormatNumber renders n without a fractional part when it is integral and
// in shortest form otherwise.
func FormatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
