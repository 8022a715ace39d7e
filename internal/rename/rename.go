// Package rename renames let-bound, attribute and argument bindings within
// the document that defines them.
package rename

import (
	"log/slog"
	"sort"

	"nixlsp/internal/errors"
	"nixlsp/internal/lookup"
	"nixlsp/internal/syntax"
)

// Edit replaces Range with NewText.
type Edit struct {
	Range   syntax.Range
	NewText string
}

// Edits maps document URIs to their edits in source order.
type Edits map[string][]Edit

// keywords cannot be used as identifiers.
var keywords = map[string]bool{
	"assert": true, "else": true, "if": true, "in": true, "inherit": true,
	"let": true, "or": true, "rec": true, "then": true, "with": true,
}

// IsValidIdent reports whether name can be written as a bare identifier.
func IsValidIdent(name string) bool {
	if name == "" || keywords[name] {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '\'' || c == '-'):
		default:
			return false
		}
	}
	return true
}

// Engine computes rename edits.
type Engine struct {
	resolver *lookup.Resolver
	logger   *slog.Logger
}

// NewEngine creates an engine resolving bindings with resolver.
func NewEngine(resolver *lookup.Resolver, logger *slog.Logger) *Engine {
	return &Engine{resolver: resolver, logger: logger}
}

// Rename returns the edits that rename the binding of the identifier at
// offset to newName. It refuses identifiers reached through an attribute
// path, since the attribute may be used elsewhere, and bindings defined in
// another document.
func (e *Engine) Rename(uri string, root *syntax.Node, offset int, newName string) (Edits, bool) {
	info, ok := lookup.IdentAt(root, offset)
	if !ok {
		return nil, false
	}
	if len(info.Path) > 0 {
		e.logger.Debug("Not renaming an attribute accessed through a path",
			"name", info.Name(),
			"path", info.Path,
		)
		return nil, false
	}

	_, scope, ok := e.resolver.ScopeForIdent(uri, root, offset)
	if !ok {
		return nil, false
	}
	v, ok := scope[info.Name()]
	if !ok {
		e.logger.Debug("No binding to rename", "code", errors.NotFound, "name", info.Name())
		return nil, false
	}
	if v.URI != uri {
		e.logger.Debug("Binding lives in another document", "name", v.Name, "uri", v.URI)
		return nil, false
	}

	var edits []Edit
	for _, r := range References(v.Set, v.Name) {
		edits = append(edits, Edit{Range: r, NewText: newName})
	}
	if len(edits) == 0 {
		return nil, false
	}
	return Edits{uri: edits}, true
}

// References returns the ranges of name inside set: plain identifier uses,
// the base of select chains and the first segment of attribute keys.
// Selected attributes and deeper key segments are other names and are left
// alone.
func References(set *syntax.Node, name string) []syntax.Range {
	var out []syntax.Range
	stack := []*syntax.Node{set}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Kind() {
		case syntax.NodeIdent:
			if ident, _ := syntax.AsIdent(n); ident.Name() == name {
				out = append(out, n.Range())
			}
			continue
		case syntax.NodeSelect:
			sel, _ := syntax.AsSelect(n)
			if base := sel.Set(); base != nil {
				stack = append(stack, base)
			}
			if def := sel.Default(); def != nil {
				stack = append(stack, def)
			}
			continue
		case syntax.NodeKey:
			key, _ := syntax.AsKey(n)
			if segs := key.Segments(); len(segs) > 0 {
				if ident, ok := syntax.AsIdent(segs[0]); ok && ident.Name() == name {
					out = append(out, segs[0].Range())
				}
				for _, seg := range segs {
					if seg.Kind() == syntax.NodeDynamic {
						stack = append(stack, seg)
					}
				}
			}
			continue
		}
		stack = append(stack, n.Children()...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
