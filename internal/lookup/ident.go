// Package lookup answers "what is under the cursor" and "where is it
// bound" for Nix documents: identifier and dotted path extraction, lexical
// scopes, and scopes reached by following attribute paths through simple
// imports.
package lookup

import (
	"slices"
	"strings"

	"nixlsp/internal/syntax"
)

// IdentInfo is the identifier under the cursor and the attribute path that
// leads to it.
type IdentInfo struct {
	Ident syntax.Ident
	// Path lists the segments that must be resolved before Ident: [foo bar]
	// for the cursor on baz in foo.bar.baz, empty for a bare identifier.
	Path []string
}

// Name returns the identifier's name.
func (i IdentInfo) Name() string { return i.Ident.Name() }

// identOfToken returns the identifier node a token belongs to.
func identOfToken(tok *syntax.Node) (syntax.Ident, bool) {
	if tok == nil {
		return syntax.Ident{}, false
	}
	return syntax.AsIdent(tok.Parent())
}

// IdentAt returns the identifier at offset. On a boundary between two
// tokens the one ending at offset is preferred.
func IdentAt(root *syntax.Node, offset int) (IdentInfo, bool) {
	left, right := root.Tree().TokenAtOffset(offset)
	ident, ok := identOfToken(left)
	if !ok {
		ident, ok = identOfToken(right)
	}
	if !ok {
		return IdentInfo{}, false
	}

	parent := ident.Node().Parent()
	switch parent.Kind() {
	case syntax.NodeInherit:
		inherit, _ := syntax.AsInherit(parent)
		if from := inherit.From(); from != nil {
			if path, ok := SelectPath(from); ok {
				return IdentInfo{Ident: ident, Path: path}, true
			}
		}
	case syntax.NodeKey:
		key, _ := syntax.AsKey(parent)
		var path []string
		for _, seg := range key.Segments() {
			if seg == ident.Node() {
				break
			}
			name, ok := syntax.StaticName(seg)
			if !ok {
				return IdentInfo{}, false
			}
			path = append(path, name)
		}
		return IdentInfo{Ident: ident, Path: path}, true
	case syntax.NodeSelect:
		sel, _ := syntax.AsSelect(parent)
		if sel.Attr() == ident.Node() {
			path, ok := SelectPath(sel.Set())
			if !ok {
				return IdentInfo{}, false
			}
			return IdentInfo{Ident: ident, Path: path}, true
		}
	}
	return IdentInfo{Ident: ident}, true
}

// SelectPath returns the names of an identifier or a chain of static
// selects on an identifier, outermost last: foo.bar.baz gives [foo bar baz].
func SelectPath(n *syntax.Node) ([]string, bool) {
	var rev []string
	for {
		if paren, ok := syntax.AsParen(n); ok {
			n = paren.Inner()
			continue
		}
		if ident, ok := syntax.AsIdent(n); ok {
			rev = append(rev, ident.Name())
			break
		}
		sel, ok := syntax.AsSelect(n)
		if !ok || sel.Attr() == nil || sel.Default() != nil {
			return nil, false
		}
		name, ok := syntax.StaticName(sel.Attr())
		if !ok {
			return nil, false
		}
		rev = append(rev, name)
		n = sel.Set()
	}
	slices.Reverse(rev)
	return rev, true
}

// ClosestNodeTo returns the token the cursor at offset is on. Identifiers
// win over punctuation and anything wins over trivia; ties go to the token
// ending at offset.
func ClosestNodeTo(root *syntax.Node, offset int) *syntax.Node {
	left, right := root.Tree().TokenAtOffset(offset)
	significant := func(n *syntax.Node) bool { return n != nil && !n.Kind().IsTrivia() }
	switch {
	case left != nil && left.Kind() == syntax.TokenIdent:
		return left
	case right != nil && right.Kind() == syntax.TokenIdent:
		return right
	case significant(left):
		return left
	case significant(right):
		return right
	case left != nil:
		return left
	}
	return right
}

// FullIdentName returns the dotted name written around node and the node
// that covers all of it. An enclosing attribute key wins; otherwise the
// outermost select chain containing node is used; otherwise node's own
// token text is the single segment.
func FullIdentName(node *syntax.Node) (*syntax.Node, []string, bool) {
	if node == nil {
		return nil, nil, false
	}

	for anc := range node.Ancestors() {
		if anc.Kind() != syntax.NodeKey {
			continue
		}
		var path []string
		for _, c := range anc.ChildrenWithTokens() {
			if c.Kind() == syntax.TokenDot {
				continue
			}
			ident, ok := syntax.AsIdent(c)
			if !ok {
				break
			}
			name := strings.ReplaceAll(ident.Name(), "\n", "")
			if strings.TrimSpace(name) == "" {
				continue
			}
			path = append(path, name)
		}
		return anc, path, true
	}

	var outermost *syntax.Node
	for anc := range node.Ancestors() {
		if anc.Kind() == syntax.NodeSelect {
			outermost = anc
		} else if outermost != nil {
			break
		}
	}
	if outermost != nil {
		var path []string
		for el := range outermost.DescendantsWithTokens() {
			if !el.IsToken() {
				continue
			}
			k := el.Kind()
			if k == syntax.TokenDot || k.IsTrivia() {
				continue
			}
			if k != syntax.TokenIdent {
				break
			}
			path = append(path, el.Text())
		}
		return outermost, path, true
	}

	tok := node
	if !tok.IsToken() {
		tok = node.FirstToken()
	}
	if tok == nil || tok.Kind().IsTrivia() || strings.TrimSpace(tok.Text()) == "" {
		return nil, nil, false
	}
	return tok, []string{tok.Text()}, true
}

// PathRange returns the range a completion replaces for a covering node:
// from its first token through its last identifier or dot.
func PathRange(covering *syntax.Node) (syntax.Range, bool) {
	first := covering.FirstToken()
	if first == nil {
		return syntax.Range{}, false
	}
	var last *syntax.Node
	for el := range covering.DescendantsWithTokens() {
		switch el.Kind() {
		case syntax.NodeIdent, syntax.TokenIdent, syntax.TokenDot:
			last = el
		}
	}
	if last == nil {
		return syntax.Range{}, false
	}
	return syntax.Range{Start: first.Range().Start, End: last.Range().End}, true
}

// NamespaceForNode returns the key paths of every key-value binding that
// encloses node, outermost first. A key-value node contributes its own key.
func NamespaceForNode(node *syntax.Node) []string {
	var chain []*syntax.Node
	for anc := range node.Ancestors() {
		if anc.Kind() == syntax.NodeKeyValue {
			chain = append(chain, anc)
		}
	}
	slices.Reverse(chain)

	var path []string
	for _, n := range chain {
		kv, _ := syntax.AsKeyValue(n)
		key, ok := kv.Key()
		if !ok {
			continue
		}
		for _, seg := range key.Segments() {
			if name, ok := syntax.StaticName(seg); ok {
				path = append(path, name)
			} else {
				path = append(path, seg.Text())
			}
		}
	}
	return path
}
