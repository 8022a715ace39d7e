package syntax

import "strings"

// Token is a lexed token with its byte range.
type Token struct {
	Kind  Kind
	Start int
	End   int
}

type lexState uint8

const (
	stateBrace lexState = iota
	stateInterpol
	stateString
	stateIndString
)

// lexer splits Nix source into tokens, trivia included. Strings and
// interpolations are tracked with a state stack so that `}` closing an
// interpolation is told apart from `}` closing an attribute set.
type lexer struct {
	src   string
	pos   int
	stack []lexState
	toks  []Token
}

// Lex returns every token of src in order, ending with a TokenEOF.
func Lex(src string) []Token {
	l := &lexer{src: src}
	for l.pos < len(l.src) {
		l.next()
	}
	l.emit(TokenEOF, len(src))
	return l.toks
}

func (l *lexer) emit(kind Kind, end int) {
	l.toks = append(l.toks, Token{Kind: kind, Start: l.pos, End: end})
	l.pos = end
}

func (l *lexer) top() (lexState, bool) {
	if len(l.stack) == 0 {
		return 0, false
	}
	return l.stack[len(l.stack)-1], true
}

func (l *lexer) push(s lexState) { l.stack = append(l.stack, s) }

func (l *lexer) pop() {
	if len(l.stack) > 0 {
		l.stack = l.stack[:len(l.stack)-1]
	}
}

func (l *lexer) next() {
	if s, ok := l.top(); ok {
		switch s {
		case stateString:
			l.lexString()
			return
		case stateIndString:
			l.lexIndString()
			return
		}
	}
	l.lexCode()
}

func (l *lexer) at(i int) byte {
	if i < len(l.src) {
		return l.src[i]
	}
	return 0
}

func (l *lexer) lexString() {
	start := l.pos
	i := start
	for i < len(l.src) {
		c := l.src[i]
		switch {
		case c == '"':
			if i > start {
				l.emit(TokenStringContent, i)
			}
			l.emit(TokenStringEnd, i+1)
			l.pop()
			return
		case c == '\\' && i+1 < len(l.src):
			i += 2
		case c == '$' && l.at(i+1) == '$':
			i += 2
		case c == '$' && l.at(i+1) == '{':
			if i > start {
				l.emit(TokenStringContent, i)
			}
			l.emit(TokenInterpolStart, i+2)
			l.push(stateInterpol)
			return
		default:
			i++
		}
	}
	l.emit(TokenStringContent, len(l.src))
}

func (l *lexer) lexIndString() {
	start := l.pos
	i := start
	for i < len(l.src) {
		c := l.src[i]
		switch {
		case c == '\'' && l.at(i+1) == '\'':
			switch l.at(i + 2) {
			case '\'', '$':
				i += 3
				continue
			case '\\':
				i += 3
				if i < len(l.src) {
					i++
				}
				continue
			}
			if i > start {
				l.emit(TokenStringContent, i)
			}
			l.emit(TokenStringEnd, i+2)
			l.pop()
			return
		case c == '$' && l.at(i+1) == '$':
			i += 2
		case c == '$' && l.at(i+1) == '{':
			if i > start {
				l.emit(TokenStringContent, i)
			}
			l.emit(TokenInterpolStart, i+2)
			l.push(stateInterpol)
			return
		default:
			i++
		}
	}
	l.emit(TokenStringContent, len(l.src))
}

func (l *lexer) lexCode() {
	c := l.src[l.pos]
	switch {
	case isSpace(c):
		i := l.pos
		for i < len(l.src) && isSpace(l.src[i]) {
			i++
		}
		l.emit(TokenWhitespace, i)
		return
	case c == '#':
		i := strings.IndexByte(l.src[l.pos:], '\n')
		if i < 0 {
			l.emit(TokenComment, len(l.src))
		} else {
			l.emit(TokenComment, l.pos+i)
		}
		return
	case c == '/' && l.at(l.pos+1) == '*':
		i := strings.Index(l.src[l.pos+2:], "*/")
		if i < 0 {
			l.emit(TokenComment, len(l.src))
		} else {
			l.emit(TokenComment, l.pos+2+i+2)
		}
		return
	case c == '"':
		l.emit(TokenStringStart, l.pos+1)
		l.push(stateString)
		return
	case c == '\'' && l.at(l.pos+1) == '\'':
		l.emit(TokenStringStart, l.pos+2)
		l.push(stateIndString)
		return
	case c == '~' && l.at(l.pos+1) == '/':
		if end := l.scanPathTail(l.pos + 1); end > l.pos+1 {
			l.emit(TokenPath, end)
			return
		}
	case c == '<':
		if end := l.scanSearchPath(); end > 0 {
			l.emit(TokenSearchPath, end)
			return
		}
	}

	if isPathStart(c) {
		if end := l.scanPath(); end > 0 {
			l.emit(TokenPath, end)
			return
		}
	}
	if isIdentStart(c) {
		if end := l.scanURI(); end > 0 {
			l.emit(TokenURI, end)
			return
		}
		i := l.pos + 1
		for i < len(l.src) && isIdentChar(l.src[i]) {
			i++
		}
		kind := TokenIdent
		if kw, ok := keywords[l.src[l.pos:i]]; ok {
			kind = kw
		}
		l.emit(kind, i)
		return
	}
	if isDigit(c) || (c == '.' && isDigit(l.at(l.pos+1))) {
		l.lexNumber()
		return
	}
	l.lexPunct()
}

func (l *lexer) lexNumber() {
	i := l.pos
	for i < len(l.src) && isDigit(l.src[i]) {
		i++
	}
	kind := TokenInteger
	if l.at(i) == '.' && (isDigit(l.at(i+1)) || i > l.pos) {
		kind = TokenFloat
		i++
		for i < len(l.src) && isDigit(l.src[i]) {
			i++
		}
	}
	if c := l.at(i); c == 'e' || c == 'E' {
		j := i + 1
		if s := l.at(j); s == '+' || s == '-' {
			j++
		}
		if isDigit(l.at(j)) {
			kind = TokenFloat
			i = j
			for i < len(l.src) && isDigit(l.src[i]) {
				i++
			}
		}
	}
	l.emit(kind, i)
}

var punctuation = []struct {
	text string
	kind Kind
}{
	{"...", TokenEllipsis},
	{"->", TokenImplication},
	{"==", TokenEqual},
	{"!=", TokenNotEqual},
	{"<=", TokenLessEq},
	{">=", TokenGreaterEq},
	{"&&", TokenAnd},
	{"||", TokenLogicalOr},
	{"++", TokenConcat},
	{"//", TokenUpdate},
	{"${", TokenInterpolStart},
	{"[", TokenLBrack},
	{"]", TokenRBrack},
	{"(", TokenLParen},
	{")", TokenRParen},
	{"=", TokenAssign},
	{"@", TokenAt},
	{":", TokenColon},
	{",", TokenComma},
	{".", TokenDot},
	{"?", TokenQuestion},
	{";", TokenSemicolon},
	{"+", TokenAdd},
	{"-", TokenSub},
	{"*", TokenMul},
	{"/", TokenDiv},
	{"!", TokenNot},
	{"<", TokenLess},
	{">", TokenGreater},
}

func (l *lexer) lexPunct() {
	rest := l.src[l.pos:]
	switch rest[0] {
	case '{':
		l.push(stateBrace)
		l.emit(TokenLBrace, l.pos+1)
		return
	case '}':
		s, ok := l.top()
		if ok && s == stateInterpol {
			l.pop()
			l.emit(TokenInterpolEnd, l.pos+1)
			return
		}
		if ok && s == stateBrace {
			l.pop()
		}
		l.emit(TokenRBrace, l.pos+1)
		return
	}
	for _, p := range punctuation {
		if strings.HasPrefix(rest, p.text) {
			if p.kind == TokenInterpolStart {
				l.push(stateInterpol)
			}
			l.emit(p.kind, l.pos+len(p.text))
			return
		}
	}
	l.emit(TokenError, l.pos+runeLen(rest))
}

// scanPath matches relative and absolute paths such as ./a, ../a/b, a/b and
// /nix/store. It returns the end offset, or 0 if there is no path here.
func (l *lexer) scanPath() int {
	i := l.pos
	for i < len(l.src) && isPathChar(l.src[i]) {
		i++
	}
	end := l.scanPathTail(i)
	if end == i {
		return 0
	}
	return end
}

// scanPathTail consumes one or more "/segment" groups starting at i.
func (l *lexer) scanPathTail(i int) int {
	for l.at(i) == '/' && isPathChar(l.at(i+1)) {
		i++
		for i < len(l.src) && isPathChar(l.src[i]) {
			i++
		}
	}
	return i
}

func (l *lexer) scanSearchPath() int {
	i := l.pos + 1
	if !isPathChar(l.at(i)) {
		return 0
	}
	for i < len(l.src) && (isPathChar(l.src[i]) || l.src[i] == '/') {
		i++
	}
	if l.at(i) != '>' || l.src[i-1] == '/' {
		return 0
	}
	return i + 1
}

// scanURI matches scheme:rest URIs as accepted by the Nix lexer.
func (l *lexer) scanURI() int {
	i := l.pos
	if !isAlpha(l.at(i)) {
		return 0
	}
	i++
	for i < len(l.src) && (isAlpha(l.src[i]) || isDigit(l.src[i]) || strings.IndexByte("+-.", l.src[i]) >= 0) {
		i++
	}
	if l.at(i) != ':' {
		return 0
	}
	i++
	start := i
	for i < len(l.src) && isURIChar(l.src[i]) {
		i++
	}
	if i == start {
		return 0
	}
	return i
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool      { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentStart(c byte) bool { return isAlpha(c) || c == '_' }
func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '\'' || c == '-'
}
func isPathChar(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '.' || c == '_' || c == '-' || c == '+'
}
func isPathStart(c byte) bool { return isPathChar(c) || c == '/' }
func isURIChar(c byte) bool {
	return isAlpha(c) || isDigit(c) || strings.IndexByte("%/?:@&=+$,-_.!~*'", c) >= 0
}

func runeLen(s string) int {
	for i := range s {
		if i > 0 {
			return i
		}
	}
	return len(s)
}
