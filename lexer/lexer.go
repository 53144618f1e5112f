// Package lexer turns one line of BASIC source into a flat stream of
// tokens, applying the dialect's lexing quirks: keyword-inside-identifier
// splitting, the "?" and "'" shorthands, and embedded comments.
package lexer

import (
	"strconv"
	"strings"

	"github.com/mbasic/microbasic/token"
)

// Lexer scans a single source line into tokens on demand.
type Lexer struct {
	input   string
	pos     int
	pending []token.Token
}

// New creates a Lexer over a single raw source line.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the whole line and returns its tokens, terminated with an
// EOF token (the "End" token of the tokenizer contract).
func Tokenize(line string) ([]token.Token, error) {
	l := New(line)
	var toks []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

// NextToken returns the next token in the stream, or a synthetic EOF token
// once the line is exhausted.
func (l *Lexer) NextToken() (token.Token, error) {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, nil
	}

	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return token.Token{Type: token.EOF}, nil
	}

	ch := l.input[l.pos]

	switch {
	case ch == '"':
		return l.readString()
	case ch == '?':
		l.pos++
		return token.Token{Type: token.PRINT, Literal: "PRINT"}, nil
	case ch == '\'':
		l.pos = len(l.input)
		return token.Token{Type: token.REM, Literal: "REM"}, nil
	case ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.readNumber()
	case isDigit(ch):
		return l.readNumber()
	case token.IsIdentStart(ch):
		return l.readIdentOrKeyword()
	default:
		return l.readOperatorOrSeparator()
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
}

func (l *Lexer) readString() (token.Token, error) {
	l.pos++ // skip opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			// unterminated string: runs to end of line
			return token.Token{Type: token.STRING, Literal: sb.String()}, nil
		}
		ch := l.input[l.pos]
		if ch == '"' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '"' {
				sb.WriteByte('"')
				l.pos += 2
				continue
			}
			l.pos++
			return token.Token{Type: token.STRING, Literal: sb.String()}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
}

func (l *Lexer) readNumber() (token.Token, error) {
	start := l.pos
	sawDigitOrDot := false

	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
		sawDigitOrDot = true
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		sawDigitOrDot = true
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'E' || l.input[l.pos] == 'e' || l.input[l.pos] == 'D' || l.input[l.pos] == 'd') {
		save := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		digits := 0
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
			digits++
		}
		if digits == 0 {
			// not actually an exponent, back off
			l.pos = save
		}
	}

	lit := l.input[start:l.pos]
	if !sawDigitOrDot {
		return token.Token{}, &LexError{Message: "invalid number", Text: lit}
	}
	normalized := strings.NewReplacer("D", "E", "d", "E").Replace(lit)
	if _, err := strconv.ParseFloat(normalized, 64); err != nil {
		return token.Token{}, &LexError{Message: "invalid number", Text: lit}
	}
	return token.Token{Type: token.NUMBER, Literal: lit}, nil
}

// readIdentOrKeyword implements the tokenizer's keyword-splitting rules:
// try a greedy-longest-prefix keyword match at the current position first,
// falling back to reading the whole identifier word and post-splitting it.
func (l *Lexer) readIdentOrKeyword() (token.Token, error) {
	rest := l.input[l.pos:]

	if kw, n, ok := token.MatchKeyword(rest); ok {
		var next byte
		if l.pos+n < len(l.input) {
			next = l.input[l.pos+n]
		}
		if next == 0 || !token.IsIdentPart(next) || token.AllowsAdjacency(kw) {
			l.pos += n
			return token.Token{Type: kw, Literal: string(kw)}, nil
		}
	}

	start := l.pos
	for l.pos < len(l.input) && token.IsIdentPart(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]

	toks := splitWord(word)
	first := toks[0]
	l.pending = append(l.pending, toks[1:]...)
	return first, nil
}

// splitWord applies the post-split fallback to a maximal identifier-like
// word: exact keyword, embedded THEN/GOTO/GOSUB, numeric literal, or a
// plain identifier.
func splitWord(word string) []token.Token {
	if kw, ok := token.LookupKeyword(word); ok {
		return []token.Token{{Type: kw, Literal: string(kw)}}
	}

	upper := strings.ToUpper(word)
	for _, kw := range []token.Type{token.THEN, token.GOTO, token.GOSUB} {
		if idx := strings.Index(upper, string(kw)); idx > 0 {
			prefix := word[:idx]
			suffix := word[idx+len(kw):]

			toks := []token.Token{{Type: token.IDENT, Literal: strings.ToUpper(prefix)}, {Type: kw, Literal: string(kw)}}
			if suffix != "" {
				toks = append(toks, splitWord(suffix)...)
			}
			return toks
		}
	}

	if f, err := strconv.ParseFloat(word, 64); err == nil {
		_ = f
		return []token.Token{{Type: token.NUMBER, Literal: word}}
	}

	return []token.Token{{Type: token.IDENT, Literal: upper}}
}

func (l *Lexer) readOperatorOrSeparator() (token.Token, error) {
	ch := l.input[l.pos]
	two := func(second byte, t token.Type) (token.Token, bool) {
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == second {
			l.pos += 2
			return token.Token{Type: t, Literal: string(ch) + string(second)}, true
		}
		return token.Token{}, false
	}

	switch ch {
	case '+':
		l.pos++
		return token.Token{Type: token.PLUS, Literal: "+"}, nil
	case '-':
		l.pos++
		return token.Token{Type: token.MINUS, Literal: "-"}, nil
	case '*':
		l.pos++
		return token.Token{Type: token.STAR, Literal: "*"}, nil
	case '/':
		l.pos++
		return token.Token{Type: token.SLASH, Literal: "/"}, nil
	case '^':
		l.pos++
		return token.Token{Type: token.CARET, Literal: "^"}, nil
	case '=':
		l.pos++
		return token.Token{Type: token.ASSIGN, Literal: "="}, nil
	case ':':
		l.pos++
		return token.Token{Type: token.COLON, Literal: ":"}, nil
	case ';':
		l.pos++
		return token.Token{Type: token.SEMICOLON, Literal: ";"}, nil
	case ',':
		l.pos++
		return token.Token{Type: token.COMMA, Literal: ","}, nil
	case '(':
		l.pos++
		return token.Token{Type: token.LPAREN, Literal: "("}, nil
	case ')':
		l.pos++
		return token.Token{Type: token.RPAREN, Literal: ")"}, nil
	case '#':
		l.pos++
		return token.Token{Type: token.HASH, Literal: "#"}, nil
	case '<':
		if t, ok := two('=', token.LE); ok {
			return t, nil
		}
		if t, ok := two('>', token.NE); ok {
			return t, nil
		}
		l.pos++
		return token.Token{Type: token.LT, Literal: "<"}, nil
	case '>':
		if t, ok := two('=', token.GE); ok {
			return t, nil
		}
		l.pos++
		return token.Token{Type: token.GT, Literal: ">"}, nil
	default:
		l.pos++
		return token.Token{}, &LexError{Message: "unknown character", Text: string(ch)}
	}
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// LexError reports a tokenization failure.
type LexError struct {
	Message string
	Text    string
}

func (e *LexError) Error() string {
	if e.Text == "" {
		return e.Message
	}
	return e.Message + ": " + e.Text
}
