package syntax

import "strings"

// The view types below give typed access to nodes of one kind. They are
// plain wrappers; obtaining one never changes the node.

// childAfter returns the first child node that follows the first token of
// kind tok.
func childAfter(n *Node, tok Kind) *Node {
	seen := false
	for _, c := range n.children {
		if c.kind == tok {
			seen = true
			continue
		}
		if seen && !c.IsToken() {
			return c
		}
	}
	return nil
}

// nthChild returns the i-th child node, skipping tokens.
func nthChild(n *Node, i int) *Node {
	for _, c := range n.children {
		if c.IsToken() {
			continue
		}
		if i == 0 {
			return c
		}
		i--
	}
	return nil
}

// Bindings is implemented by the views that introduce named bindings
// through `name = value;` entries and `inherit` clauses.
type Bindings interface {
	Node() *Node
	Entries() []KeyValue
	Inherits() []Inherit
}

func entriesOf(n *Node) []KeyValue {
	var out []KeyValue
	for _, c := range n.children {
		if c.kind == NodeKeyValue {
			out = append(out, KeyValue{c})
		}
	}
	return out
}

func inheritsOf(n *Node) []Inherit {
	var out []Inherit
	for _, c := range n.children {
		if c.kind == NodeInherit {
			out = append(out, Inherit{c})
		}
	}
	return out
}

// Root wraps NodeRoot.
type Root struct{ node *Node }

func AsRoot(n *Node) (Root, bool) { return Root{n}, n != nil && n.kind == NodeRoot }

func (r Root) Node() *Node { return r.node }

// Inner returns the single top-level expression.
func (r Root) Inner() *Node { return r.node.FirstChild() }

// AttrSet wraps NodeAttrSet.
type AttrSet struct{ node *Node }

func AsAttrSet(n *Node) (AttrSet, bool) { return AttrSet{n}, n != nil && n.kind == NodeAttrSet }

func (s AttrSet) Node() *Node         { return s.node }
func (s AttrSet) Recursive() bool     { return s.node.ChildOfKind(TokenRec) != nil }
func (s AttrSet) Entries() []KeyValue { return entriesOf(s.node) }
func (s AttrSet) Inherits() []Inherit { return inheritsOf(s.node) }

// LetIn wraps NodeLetIn.
type LetIn struct{ node *Node }

func AsLetIn(n *Node) (LetIn, bool) { return LetIn{n}, n != nil && n.kind == NodeLetIn }

func (l LetIn) Node() *Node         { return l.node }
func (l LetIn) Entries() []KeyValue { return entriesOf(l.node) }
func (l LetIn) Inherits() []Inherit { return inheritsOf(l.node) }
func (l LetIn) Body() *Node         { return childAfter(l.node, TokenIn) }

// KeyValue wraps NodeKeyValue, a `key = value;` entry.
type KeyValue struct{ node *Node }

func AsKeyValue(n *Node) (KeyValue, bool) { return KeyValue{n}, n != nil && n.kind == NodeKeyValue }

func (kv KeyValue) Node() *Node { return kv.node }

func (kv KeyValue) Key() (Key, bool) { return AsKey(kv.node.ChildOfKind(NodeKey)) }

func (kv KeyValue) Value() *Node { return childAfter(kv.node, TokenAssign) }

// Key wraps NodeKey, a dotted attribute path.
type Key struct{ node *Node }

func AsKey(n *Node) (Key, bool) { return Key{n}, n != nil && n.kind == NodeKey }

func (k Key) Node() *Node { return k.node }

// Segments returns the attribute nodes of the path: identifiers, strings
// and dynamic `${...}` attributes.
func (k Key) Segments() []*Node { return k.node.Children() }

// Names returns the static segment names. It stops at the first segment
// whose name is only known at evaluation time.
func (k Key) Names() []string {
	var out []string
	for _, seg := range k.Segments() {
		name, ok := StaticName(seg)
		if !ok {
			break
		}
		out = append(out, name)
	}
	return out
}

// StaticName returns the name of an attribute segment when it does not
// depend on evaluation: an identifier or a string without interpolation.
func StaticName(seg *Node) (string, bool) {
	switch seg.kind {
	case NodeIdent:
		return seg.Text(), true
	case NodeString:
		return Str{seg}.Static()
	}
	return "", false
}

// Ident wraps NodeIdent.
type Ident struct{ node *Node }

func AsIdent(n *Node) (Ident, bool) { return Ident{n}, n != nil && n.kind == NodeIdent }

func (i Ident) Node() *Node  { return i.node }
func (i Ident) Name() string { return i.node.Text() }

// Select wraps NodeSelect, `set.attr` with an optional `or default`.
type Select struct{ node *Node }

func AsSelect(n *Node) (Select, bool) { return Select{n}, n != nil && n.kind == NodeSelect }

func (s Select) Node() *Node    { return s.node }
func (s Select) Set() *Node     { return nthChild(s.node, 0) }
func (s Select) Attr() *Node    { return childAfter(s.node, TokenDot) }
func (s Select) Default() *Node { return childAfter(s.node, TokenOr) }

// Apply wraps NodeApply, a function application.
type Apply struct{ node *Node }

func AsApply(n *Node) (Apply, bool) { return Apply{n}, n != nil && n.kind == NodeApply }

func (a Apply) Node() *Node     { return a.node }
func (a Apply) Function() *Node { return nthChild(a.node, 0) }
func (a Apply) Argument() *Node { return nthChild(a.node, 1) }

// Lambda wraps NodeLambda.
type Lambda struct{ node *Node }

func AsLambda(n *Node) (Lambda, bool) { return Lambda{n}, n != nil && n.kind == NodeLambda }

func (l Lambda) Node() *Node { return l.node }

// Arg returns the argument: a NodeIdent or a NodePattern.
func (l Lambda) Arg() *Node  { return nthChild(l.node, 0) }
func (l Lambda) Body() *Node { return childAfter(l.node, TokenColon) }

// Pattern wraps NodePattern, a `{ a, b ? 1, ... }` argument.
type Pattern struct{ node *Node }

func AsPattern(n *Node) (Pattern, bool) { return Pattern{n}, n != nil && n.kind == NodePattern }

func (p Pattern) Node() *Node { return p.node }

func (p Pattern) Entries() []PatEntry {
	var out []PatEntry
	for _, c := range p.node.children {
		if c.kind == NodePatEntry {
			out = append(out, PatEntry{c})
		}
	}
	return out
}

// Bind returns the identifier bound with `@`, on either side.
func (p Pattern) Bind() (Ident, bool) {
	bind := p.node.ChildOfKind(NodePatBind)
	if bind == nil {
		return Ident{}, false
	}
	return AsIdent(bind.ChildOfKind(NodeIdent))
}

func (p Pattern) HasEllipsis() bool { return p.node.ChildOfKind(TokenEllipsis) != nil }

// PatEntry wraps NodePatEntry.
type PatEntry struct{ node *Node }

func (e PatEntry) Node() *Node { return e.node }

func (e PatEntry) Name() (Ident, bool) { return AsIdent(e.node.ChildOfKind(NodeIdent)) }

func (e PatEntry) Default() *Node { return childAfter(e.node, TokenQuestion) }

// With wraps NodeWith, `with namespace; body`.
type With struct{ node *Node }

func AsWith(n *Node) (With, bool) { return With{n}, n != nil && n.kind == NodeWith }

func (w With) Node() *Node      { return w.node }
func (w With) Namespace() *Node { return nthChild(w.node, 0) }
func (w With) Body() *Node      { return childAfter(w.node, TokenSemicolon) }

// Assert wraps NodeAssert.
type Assert struct{ node *Node }

func AsAssert(n *Node) (Assert, bool) { return Assert{n}, n != nil && n.kind == NodeAssert }

func (a Assert) Node() *Node      { return a.node }
func (a Assert) Condition() *Node { return nthChild(a.node, 0) }
func (a Assert) Body() *Node      { return childAfter(a.node, TokenSemicolon) }

// Inherit wraps NodeInherit.
type Inherit struct{ node *Node }

func AsInherit(n *Node) (Inherit, bool) { return Inherit{n}, n != nil && n.kind == NodeInherit }

func (i Inherit) Node() *Node { return i.node }

// From returns the expression of `inherit (from) ...;`, or nil.
func (i Inherit) From() *Node {
	from := i.node.ChildOfKind(NodeInheritFrom)
	if from == nil {
		return nil
	}
	return from.FirstChild()
}

// Idents returns the inherited identifiers.
func (i Inherit) Idents() []Ident {
	var out []Ident
	for _, c := range i.node.children {
		if c.kind == NodeIdent {
			out = append(out, Ident{c})
		}
	}
	return out
}

// Paren wraps NodeParen.
type Paren struct{ node *Node }

func AsParen(n *Node) (Paren, bool) { return Paren{n}, n != nil && n.kind == NodeParen }

func (p Paren) Node() *Node  { return p.node }
func (p Paren) Inner() *Node { return p.node.FirstChild() }

// Str wraps NodeString.
type Str struct{ node *Node }

func AsStr(n *Node) (Str, bool) { return Str{n}, n != nil && n.kind == NodeString }

func (s Str) Node() *Node { return s.node }

// Static returns the unescaped contents when the string has no
// interpolation.
func (s Str) Static() (string, bool) {
	var sb strings.Builder
	indented := false
	for _, c := range s.node.children {
		switch c.kind {
		case TokenStringStart:
			indented = c.Text() == "''"
		case TokenStringContent:
			if indented {
				sb.WriteString(unescapeIndented(c.Text()))
			} else {
				sb.WriteString(unescape(c.Text()))
			}
		case NodeInterpol:
			return "", false
		}
	}
	return sb.String(), true
}

func unescape(s string) string {
	if !strings.ContainsAny(s, `\$`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(s[i])
			}
		case c == '$' && i+1 < len(s) && s[i+1] == '$':
			sb.WriteByte('$')
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func unescapeIndented(s string) string {
	r := strings.NewReplacer("'''", "''", "''$", "$", `''\n`, "\n", `''\t`, "\t", `''\r`, "\r", "$$", "$")
	return r.Replace(s)
}

// Literal wraps NodeLiteral: numbers, paths and URIs.
type Literal struct{ node *Node }

func AsLiteral(n *Node) (Literal, bool) { return Literal{n}, n != nil && n.kind == NodeLiteral }

func (l Literal) Node() *Node { return l.node }

// Value decodes the literal token.
func (l Literal) Value() (Value, error) {
	tok := l.node.FirstToken()
	if tok == nil {
		return Value{}, errEmptyLiteral
	}
	return ParseValue(tok.kind, tok.Text())
}
