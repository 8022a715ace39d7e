package syntax

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by r.
func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether offset lies inside r. The end offset counts as
// inside so that a cursor placed right after a token still touches it.
func (r Range) Contains(offset int) bool { return offset >= r.Start && offset <= r.End }

// Covers reports whether o lies completely inside r.
func (r Range) Covers(o Range) bool { return r.Start <= o.Start && o.End <= r.End }

func (r Range) String() string { return fmt.Sprintf("%d..%d", r.Start, r.End) }

// ParseError is a syntax error with the byte range of the offending input.
type ParseError struct {
	Range   Range
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Range)
}

// Tree is an immutable parsed document.
type Tree struct {
	src    string
	root   *Node
	errors []ParseError
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() string { return t.src }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Errors returns the syntax errors found while parsing, in source order.
func (t *Tree) Errors() []ParseError { return t.errors }

// Node is an element of the tree. Tokens are nodes without children whose
// Kind satisfies Kind.IsToken.
type Node struct {
	tree     *Tree
	kind     Kind
	rng      Range
	parent   *Node
	index    int
	children []*Node
}

func (n *Node) Kind() Kind     { return n.kind }
func (n *Node) IsToken() bool  { return n.kind.IsToken() }
func (n *Node) Range() Range   { return n.rng }
func (n *Node) Parent() *Node  { return n.parent }
func (n *Node) Tree() *Tree    { return n.tree }
func (n *Node) Text() string   { return n.tree.src[n.rng.Start:n.rng.End] }
func (n *Node) String() string { return fmt.Sprintf("%s@%s", n.kind, n.rng) }

// ChildrenWithTokens returns every direct child including tokens. The
// returned slice must not be modified.
func (n *Node) ChildrenWithTokens() []*Node { return n.children }

// Children returns the direct children that are nodes.
func (n *Node) Children() []*Node {
	var out []*Node
	for _, c := range n.children {
		if !c.IsToken() {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first child node, skipping tokens.
func (n *Node) FirstChild() *Node {
	for _, c := range n.children {
		if !c.IsToken() {
			return c
		}
	}
	return nil
}

// ChildOfKind returns the first direct child (token or node) of kind k.
func (n *Node) ChildOfKind(k Kind) *Node {
	for _, c := range n.children {
		if c.kind == k {
			return c
		}
	}
	return nil
}

// PrevSibling returns the element before n in its parent, tokens included.
func (n *Node) PrevSibling() *Node {
	if n.parent == nil || n.index == 0 {
		return nil
	}
	return n.parent.children[n.index-1]
}

// NextSibling returns the element after n in its parent, tokens included.
func (n *Node) NextSibling() *Node {
	if n.parent == nil || n.index+1 >= len(n.parent.children) {
		return nil
	}
	return n.parent.children[n.index+1]
}

// Ancestors yields n and then each of its parents up to the root.
func (n *Node) Ancestors() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for cur := n; cur != nil; cur = cur.parent {
			if !yield(cur) {
				return
			}
		}
	}
}

// Descendants yields n and every node below it in preorder, skipping tokens.
func (n *Node) Descendants() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		stopped := false
		Walk(n, func(c *Node) bool {
			if stopped || c.IsToken() {
				return false
			}
			if !yield(c) {
				stopped = true
				return false
			}
			return true
		})
	}
}

// DescendantsWithTokens yields n and everything below it in preorder.
func (n *Node) DescendantsWithTokens() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		stopped := false
		Walk(n, func(c *Node) bool {
			if stopped {
				return false
			}
			if !yield(c) {
				stopped = true
				return false
			}
			return true
		})
	}
}

// Walk visits n and its descendants in preorder without recursion. When fn
// returns false the children of the visited element are skipped.
func Walk(n *Node, fn func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.children) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[i])
		}
	}
}

// FirstToken returns the first token under n, or nil for an empty node.
func (n *Node) FirstToken() *Node {
	cur := n
	for !cur.IsToken() {
		if len(cur.children) == 0 {
			return nil
		}
		cur = cur.children[0]
	}
	return cur
}

// LastToken returns the last token under n, or nil for an empty node.
func (n *Node) LastToken() *Node {
	cur := n
	for !cur.IsToken() {
		if len(cur.children) == 0 {
			return nil
		}
		cur = cur.children[len(cur.children)-1]
	}
	return cur
}

// TokenAtOffset returns the tokens touching offset. When offset falls
// strictly inside a token both results are that token; when it sits on the
// boundary between two tokens, left ends at offset and right starts there.
// Either result may be nil at the edges of the document.
func (t *Tree) TokenAtOffset(offset int) (left, right *Node) {
	if offset < 0 || offset > len(t.src) {
		return nil, nil
	}
	right = t.tokenStartingAtOrCovering(offset)
	if right != nil && right.rng.Start < offset {
		return right, right
	}
	if offset > 0 {
		left = t.tokenStartingAtOrCovering(offset - 1)
	}
	return left, right
}

// tokenStartingAtOrCovering finds the token with Start <= offset < End.
func (t *Tree) tokenStartingAtOrCovering(offset int) *Node {
	cur := t.root
	for cur != nil && !cur.IsToken() {
		children := cur.children
		i := sort.Search(len(children), func(i int) bool { return children[i].rng.End > offset })
		for i < len(children) && children[i].rng.Len() == 0 {
			i++
		}
		if i >= len(children) || children[i].rng.Start > offset {
			return nil
		}
		cur = children[i]
	}
	return cur
}

// CoveringElement returns the deepest node whose range covers r.
func (t *Tree) CoveringElement(r Range) *Node {
	cur := t.root
	for {
		var next *Node
		for _, c := range cur.children {
			if c.IsToken() || !c.rng.Covers(r) {
				continue
			}
			next = c
			break
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Dump renders the tree in an indented form, one element per line. It is
// used by tests and the debug command.
func (n *Node) Dump() string {
	var sb strings.Builder
	type frame struct {
		n     *Node
		depth int
	}
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sb.WriteString(strings.Repeat("  ", f.depth))
		sb.WriteString(f.n.String())
		if f.n.IsToken() {
			fmt.Fprintf(&sb, " %q", f.n.Text())
		}
		sb.WriteByte('\n')
		for i := len(f.n.children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.n.children[i], f.depth + 1})
		}
	}
	return sb.String()
}
