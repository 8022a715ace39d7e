package syntax

// Parse parses src into a lossless tree. Parsing never fails: malformed
// input produces NodeError elements and entries in Tree.Errors.
func Parse(src string) *Tree {
	t := &Tree{src: src}
	p := &parser{tree: t, toks: Lex(src)}
	p.parseRoot()
	t.root = p.b.root
	link(t.root, t)
	return t
}

// builder assembles the tree bottom-up. Checkpoints allow a node to be
// opened around children that were already emitted, which is how binary
// operators, applications and selects wrap their left operand.
type builder struct {
	stack []*Node
	root  *Node
	pos   int
}

func (b *builder) top() *Node { return b.stack[len(b.stack)-1] }

func (b *builder) start(kind Kind) {
	b.stack = append(b.stack, &Node{kind: kind})
}

func (b *builder) checkpoint() int { return len(b.top().children) }

func (b *builder) startAt(cp int, kind Kind) {
	parent := b.top()
	n := &Node{kind: kind}
	n.children = append(n.children, parent.children[cp:]...)
	parent.children = parent.children[:cp]
	b.stack = append(b.stack, n)
}

func (b *builder) token(kind Kind, start, end int) {
	top := b.top()
	top.children = append(top.children, &Node{kind: kind, rng: Range{start, end}})
	b.pos = end
}

func (b *builder) finish() {
	n := b.top()
	b.stack = b.stack[:len(b.stack)-1]
	if len(n.children) > 0 {
		n.rng = Range{n.children[0].rng.Start, n.children[len(n.children)-1].rng.End}
	} else {
		n.rng = Range{b.pos, b.pos}
	}
	if len(b.stack) == 0 {
		b.root = n
		return
	}
	parent := b.top()
	parent.children = append(parent.children, n)
}

// link fills in parent pointers, sibling indexes and the tree back
// reference once the shape is final.
func link(root *Node, t *Tree) {
	root.tree = t
	Walk(root, func(n *Node) bool {
		for i, c := range n.children {
			c.parent = n
			c.index = i
			c.tree = t
		}
		return true
	})
}

type parser struct {
	tree *Tree
	toks []Token
	pos  int
	b    builder
}

// peekAt returns the kind of the n-th significant token ahead.
func (p *parser) peekAt(n int) Kind {
	for i := p.pos; i < len(p.toks); i++ {
		if p.toks[i].Kind.IsTrivia() {
			continue
		}
		if n == 0 {
			return p.toks[i].Kind
		}
		n--
	}
	return TokenEOF
}

func (p *parser) peek() Kind { return p.peekAt(0) }

// current returns the next significant token without consuming it.
func (p *parser) current() Token {
	for i := p.pos; i < len(p.toks); i++ {
		if !p.toks[i].Kind.IsTrivia() {
			return p.toks[i]
		}
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) skipTrivia() {
	for p.pos < len(p.toks) && p.toks[p.pos].Kind.IsTrivia() {
		t := p.toks[p.pos]
		p.b.token(t.Kind, t.Start, t.End)
		p.pos++
	}
}

func (p *parser) bump() {
	p.skipTrivia()
	t := p.toks[p.pos]
	if t.Kind == TokenEOF {
		return
	}
	p.b.token(t.Kind, t.Start, t.End)
	p.pos++
}

func (p *parser) startNode(kind Kind) {
	p.skipTrivia()
	p.b.start(kind)
}

func (p *parser) checkpoint() int {
	p.skipTrivia()
	return p.b.checkpoint()
}

func (p *parser) startNodeAt(cp int, kind Kind) { p.b.startAt(cp, kind) }

func (p *parser) finishNode() { p.b.finish() }

func (p *parser) errorAt(r Range, msg string) {
	p.tree.errors = append(p.tree.errors, ParseError{Range: r, Message: msg})
}

// errorHere reports msg at the next significant token without consuming it.
func (p *parser) errorHere(msg string) {
	t := p.current()
	p.errorAt(Range{t.Start, t.End}, msg)
}

// errorBump wraps the next token in a NodeError and reports msg for it.
func (p *parser) errorBump(msg string) {
	t := p.current()
	p.errorAt(Range{t.Start, t.End}, msg)
	p.startNode(NodeError)
	p.bump()
	p.finishNode()
}

func (p *parser) expect(kind Kind) bool {
	if p.peek() == kind {
		p.bump()
		return true
	}
	p.errorHere("expected " + describe(kind) + ", found " + describe(p.peek()))
	return false
}

func describe(k Kind) string {
	switch k {
	case TokenEOF:
		return "end of file"
	case TokenIdent:
		return "identifier"
	case TokenInterpolEnd:
		return "'}'"
	}
	if k.IsToken() {
		return "'" + k.String() + "'"
	}
	return k.String()
}

// isStop reports tokens that close an enclosing construct. The parser
// reports a missing element in front of them instead of consuming them.
func isStop(k Kind) bool {
	switch k {
	case TokenEOF, TokenRBrace, TokenRBrack, TokenRParen, TokenSemicolon,
		TokenIn, TokenThen, TokenElse, TokenInterpolEnd, TokenComma:
		return true
	}
	return false
}

func canStartAtom(k Kind) bool {
	switch k {
	case TokenIdent, TokenInteger, TokenFloat, TokenPath, TokenSearchPath,
		TokenURI, TokenStringStart, TokenLParen, TokenLBrack, TokenLBrace, TokenRec:
		return true
	}
	return false
}

func isAttrStart(k Kind) bool {
	switch k {
	case TokenIdent, TokenOr, TokenStringStart, TokenInterpolStart:
		return true
	}
	return false
}

func (p *parser) parseRoot() {
	p.b.start(NodeRoot)
	if p.peek() != TokenEOF {
		p.parseExpr()
	}
	for p.peek() != TokenEOF {
		p.errorBump("unexpected " + describe(p.peek()))
	}
	p.skipTrivia()
	p.finishNode()
}

func (p *parser) parseExpr() {
	switch p.peek() {
	case TokenLet:
		p.parseLetIn()
	case TokenWith:
		p.parseKeywordBody(NodeWith)
	case TokenAssert:
		p.parseKeywordBody(NodeAssert)
	case TokenIf:
		p.parseIfElse()
	case TokenIdent:
		if next := p.peekAt(1); next == TokenColon || next == TokenAt {
			p.parseLambda()
			return
		}
		p.parseImplication()
	case TokenLBrace:
		if p.isPatternStart() {
			p.parseLambda()
			return
		}
		p.parseImplication()
	default:
		p.parseImplication()
	}
}

func (p *parser) isPatternStart() bool {
	switch p.peekAt(1) {
	case TokenRBrace:
		next := p.peekAt(2)
		return next == TokenColon || next == TokenAt
	case TokenEllipsis:
		return true
	case TokenIdent:
		switch p.peekAt(2) {
		case TokenComma, TokenQuestion:
			return true
		case TokenRBrace:
			next := p.peekAt(3)
			return next == TokenColon || next == TokenAt
		}
	}
	return false
}

func (p *parser) parseIdent() {
	p.startNode(NodeIdent)
	p.bump()
	p.finishNode()
}

func (p *parser) parseLambda() {
	p.startNode(NodeLambda)
	if p.peek() == TokenIdent && p.peekAt(1) != TokenAt {
		p.parseIdent()
	} else {
		p.parsePattern()
	}
	p.expect(TokenColon)
	p.parseExpr()
	p.finishNode()
}

func (p *parser) parsePattern() {
	p.startNode(NodePattern)
	if p.peek() == TokenIdent {
		p.startNode(NodePatBind)
		p.parseIdent()
		p.bump()
		p.finishNode()
	}
	p.expect(TokenLBrace)
loop:
	for {
		switch p.peek() {
		case TokenRBrace, TokenEOF:
			break loop
		case TokenEllipsis:
			p.bump()
		case TokenIdent:
			p.startNode(NodePatEntry)
			p.parseIdent()
			if p.peek() == TokenQuestion {
				p.bump()
				p.parseExpr()
			}
			p.finishNode()
		default:
			if isStop(p.peek()) && p.peek() != TokenComma {
				break loop
			}
			p.errorBump("unexpected " + describe(p.peek()) + " in pattern")
			continue
		}
		if p.peek() != TokenComma {
			break
		}
		p.bump()
	}
	p.expect(TokenRBrace)
	if p.peek() == TokenAt {
		p.startNode(NodePatBind)
		p.bump()
		if p.peek() == TokenIdent {
			p.parseIdent()
		} else {
			p.errorHere("expected identifier")
		}
		p.finishNode()
	}
	p.finishNode()
}

// parseKeywordBody parses `with e; body` and `assert e; body`.
func (p *parser) parseKeywordBody(kind Kind) {
	p.startNode(kind)
	p.bump()
	p.parseExpr()
	p.expect(TokenSemicolon)
	p.parseExpr()
	p.finishNode()
}

func (p *parser) parseIfElse() {
	p.startNode(NodeIfElse)
	p.bump()
	p.parseExpr()
	p.expect(TokenThen)
	p.parseExpr()
	p.expect(TokenElse)
	p.parseExpr()
	p.finishNode()
}

func (p *parser) parseLetIn() {
	p.startNode(NodeLetIn)
	p.bump()
	p.parseBindings(TokenIn)
	p.expect(TokenIn)
	p.parseExpr()
	p.finishNode()
}

func (p *parser) parseBindings(end Kind) {
	for {
		k := p.peek()
		switch {
		case k == end || k == TokenEOF:
			return
		case k == TokenInherit:
			p.parseInherit()
		case isAttrStart(k):
			p.startNode(NodeKeyValue)
			p.parseAttrPath()
			p.expect(TokenAssign)
			p.parseExpr()
			p.expect(TokenSemicolon)
			p.finishNode()
		case k == TokenRBrace || k == TokenIn:
			return
		default:
			p.errorBump("unexpected " + describe(k) + " in bindings")
		}
	}
}

func (p *parser) parseInherit() {
	p.startNode(NodeInherit)
	p.bump()
	if p.peek() == TokenLParen {
		p.startNode(NodeInheritFrom)
		p.bump()
		p.parseExpr()
		p.expect(TokenRParen)
		p.finishNode()
	}
	for isAttrStart(p.peek()) {
		p.parseAttr()
	}
	p.expect(TokenSemicolon)
	p.finishNode()
}

func (p *parser) parseAttrPath() {
	p.startNode(NodeKey)
	p.parseAttr()
	for p.peek() == TokenDot {
		p.bump()
		p.parseAttr()
	}
	p.finishNode()
}

func (p *parser) parseAttr() {
	switch p.peek() {
	case TokenIdent, TokenOr:
		p.parseIdent()
	case TokenStringStart:
		p.parseString()
	case TokenInterpolStart:
		p.startNode(NodeDynamic)
		p.bump()
		p.parseExpr()
		p.expect(TokenInterpolEnd)
		p.finishNode()
	default:
		p.errorHere("expected attribute name, found " + describe(p.peek()))
	}
}

func (p *parser) parseString() {
	p.startNode(NodeString)
	p.bump()
	for {
		switch p.peek() {
		case TokenStringContent:
			p.bump()
		case TokenInterpolStart:
			p.startNode(NodeInterpol)
			p.bump()
			p.parseExpr()
			p.expect(TokenInterpolEnd)
			p.finishNode()
		case TokenStringEnd:
			p.bump()
			p.finishNode()
			return
		default:
			p.errorHere("unterminated string")
			p.finishNode()
			return
		}
	}
}

// Binary operators, loosest first. Right-associative levels recurse into
// themselves for the right operand.
type opLevel struct {
	ops   []Kind
	right bool
}

var opLevels = []opLevel{
	{ops: []Kind{TokenImplication}, right: true},
	{ops: []Kind{TokenLogicalOr}},
	{ops: []Kind{TokenAnd}},
	{ops: []Kind{TokenEqual, TokenNotEqual}},
	{ops: []Kind{TokenLess, TokenLessEq, TokenGreater, TokenGreaterEq}},
	{ops: []Kind{TokenUpdate}, right: true},
}

// Levels below the logical negation.
var arithLevels = []opLevel{
	{ops: []Kind{TokenAdd, TokenSub}},
	{ops: []Kind{TokenMul, TokenDiv}},
	{ops: []Kind{TokenConcat}, right: true},
}

func (l opLevel) has(k Kind) bool {
	for _, op := range l.ops {
		if op == k {
			return true
		}
	}
	return false
}

func (p *parser) parseImplication() { p.parseLevel(opLevels, 0, p.parseNot) }

func (p *parser) parseLevel(levels []opLevel, i int, operand func()) {
	if i == len(levels) {
		operand()
		return
	}
	level := levels[i]
	next := func() { p.parseLevel(levels, i+1, operand) }
	cp := p.checkpoint()
	next()
	for level.has(p.peek()) {
		p.startNodeAt(cp, NodeBinOp)
		p.bump()
		if level.right {
			p.parseLevel(levels, i, operand)
			p.finishNode()
			return
		}
		next()
		p.finishNode()
	}
}

func (p *parser) parseNot() {
	if p.peek() == TokenNot {
		p.startNode(NodeUnaryOp)
		p.bump()
		p.parseNot()
		p.finishNode()
		return
	}
	p.parseLevel(arithLevels, 0, p.parseHasAttr)
}

func (p *parser) parseHasAttr() {
	cp := p.checkpoint()
	p.parseNegate()
	for p.peek() == TokenQuestion {
		p.startNodeAt(cp, NodeHasAttr)
		p.bump()
		p.parseAttrPath()
		p.finishNode()
	}
}

func (p *parser) parseNegate() {
	if p.peek() == TokenSub {
		p.startNode(NodeUnaryOp)
		p.bump()
		p.parseNegate()
		p.finishNode()
		return
	}
	p.parseApply()
}

func (p *parser) parseApply() {
	cp := p.checkpoint()
	p.parseSelect()
	for canStartAtom(p.peek()) {
		p.startNodeAt(cp, NodeApply)
		p.parseSelect()
		p.finishNode()
	}
}

// parseSelect parses `e.a.b or d`. Each dot wraps the expression so far in
// a new NodeSelect; the `or` default belongs to the outermost one.
func (p *parser) parseSelect() {
	cp := p.checkpoint()
	p.parseAtom()
	for p.peek() == TokenDot {
		p.startNodeAt(cp, NodeSelect)
		p.bump()
		p.parseAttr()
		if p.peek() == TokenOr {
			p.bump()
			p.parseSelect()
		}
		p.finishNode()
	}
}

func (p *parser) parseAtom() {
	switch k := p.peek(); k {
	case TokenIdent, TokenOr:
		p.parseIdent()
	case TokenInteger, TokenFloat, TokenPath, TokenSearchPath, TokenURI:
		p.startNode(NodeLiteral)
		p.bump()
		p.finishNode()
	case TokenStringStart:
		p.parseString()
	case TokenLParen:
		p.startNode(NodeParen)
		p.bump()
		p.parseExpr()
		p.expect(TokenRParen)
		p.finishNode()
	case TokenLBrack:
		p.parseList()
	case TokenRec, TokenLBrace:
		p.startNode(NodeAttrSet)
		if k == TokenRec {
			p.bump()
		}
		p.expect(TokenLBrace)
		p.parseBindings(TokenRBrace)
		p.expect(TokenRBrace)
		p.finishNode()
	default:
		if isStop(k) || k == TokenColon || k == TokenAssign {
			p.errorHere("expected expression, found " + describe(k))
			return
		}
		p.errorBump("unexpected " + describe(k))
	}
}

func (p *parser) parseList() {
	p.startNode(NodeList)
	p.bump()
	for {
		k := p.peek()
		if k == TokenRBrack || k == TokenEOF {
			break
		}
		if canStartAtom(k) || k == TokenOr {
			p.parseSelect()
			continue
		}
		if isStop(k) {
			break
		}
		p.errorBump("unexpected " + describe(k) + " in list")
	}
	p.expect(TokenRBrack)
	p.finishNode()
}
