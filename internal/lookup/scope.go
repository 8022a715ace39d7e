package lookup

import (
	"log/slog"

	"nixlsp/internal/document"
	"nixlsp/internal/errors"
	"nixlsp/internal/paths"
	"nixlsp/internal/syntax"
)

// DefaultMaxImportDepth bounds import chains when no limit is configured.
const DefaultMaxImportDepth = 32

// Var is a named binding.
type Var struct {
	Name string
	// URI is the document that owns Key, Set and Value.
	URI string
	// Set is the node that introduces the binding: a let-in, an attribute
	// set or a lambda.
	Set *syntax.Node
	// Key is the identifier node that defines the name.
	Key *syntax.Node
	// Value is the bound expression. It is nil for lambda arguments,
	// inherited names and multi-segment keys.
	Value *syntax.Node
}

// Scope maps names to bindings.
type Scope map[string]*Var

func (s Scope) add(v *Var) {
	if _, exists := s[v.Name]; !exists {
		s[v.Name] = v
	}
}

// populate adds every entry and inherited name of b. Existing names are
// kept, so callers must go from the innermost scope outwards.
func populate(uri string, scope Scope, b syntax.Bindings) {
	for _, entry := range b.Entries() {
		key, ok := entry.Key()
		if !ok {
			continue
		}
		segs := key.Segments()
		if len(segs) == 0 {
			continue
		}
		ident, ok := syntax.AsIdent(segs[0])
		if !ok {
			continue
		}
		v := &Var{Name: ident.Name(), URI: uri, Set: b.Node(), Key: ident.Node()}
		if len(segs) == 1 {
			v.Value = entry.Value()
		}
		scope.add(v)
	}
	for _, inherit := range b.Inherits() {
		for _, ident := range inherit.Idents() {
			scope.add(&Var{Name: ident.Name(), URI: uri, Set: b.Node(), Key: ident.Node()})
		}
	}
}

// ScopeFor returns the lexical scope visible at node in the document at
// uri: let-in bindings, recursive attribute sets and lambda arguments of
// every enclosing construct. Inner bindings shadow outer ones.
func ScopeFor(uri string, node *syntax.Node) Scope {
	scope := make(Scope)
	for anc := range node.Ancestors() {
		switch anc.Kind() {
		case syntax.NodeLetIn:
			letIn, _ := syntax.AsLetIn(anc)
			populate(uri, scope, letIn)
		case syntax.NodeAttrSet:
			if set, _ := syntax.AsAttrSet(anc); set.Recursive() {
				populate(uri, scope, set)
			}
		case syntax.NodeLambda:
			lambda, _ := syntax.AsLambda(anc)
			addLambdaArgs(uri, scope, lambda)
		}
	}
	return scope
}

func addLambdaArgs(uri string, scope Scope, lambda syntax.Lambda) {
	arg := lambda.Arg()
	if ident, ok := syntax.AsIdent(arg); ok {
		scope.add(&Var{Name: ident.Name(), URI: uri, Set: lambda.Node(), Key: ident.Node()})
		return
	}
	pattern, ok := syntax.AsPattern(arg)
	if !ok {
		return
	}
	for _, entry := range pattern.Entries() {
		if ident, ok := entry.Name(); ok {
			scope.add(&Var{Name: ident.Name(), URI: uri, Set: lambda.Node(), Key: ident.Node()})
		}
	}
	if bind, ok := pattern.Bind(); ok {
		scope.add(&Var{Name: bind.Name(), URI: uri, Set: lambda.Node(), Key: bind.Node()})
	}
}

// Resolver follows attribute paths through bindings and simple imports.
type Resolver struct {
	store          *document.Store
	maxImportDepth int
	logger         *slog.Logger
}

// NewResolver creates a resolver reading documents from store. A
// non-positive maxImportDepth selects DefaultMaxImportDepth.
func NewResolver(store *document.Store, maxImportDepth int, logger *slog.Logger) *Resolver {
	if maxImportDepth <= 0 {
		maxImportDepth = DefaultMaxImportDepth
	}
	return &Resolver{store: store, maxImportDepth: maxImportDepth, logger: logger}
}

// Store returns the document store the resolver reads from.
func (r *Resolver) Store() *document.Store { return r.store }

// ScopeForIdent finds the identifier at offset and the scope its name is
// looked up in. For foo.bar.baz with the cursor on baz that is the scope
// of the attribute set foo.bar evaluates to, as far as it can be found
// without evaluation.
func (r *Resolver) ScopeForIdent(uri string, root *syntax.Node, offset int) (IdentInfo, Scope, bool) {
	info, ok := IdentAt(root, offset)
	if !ok {
		return IdentInfo{}, nil, false
	}
	scope := ScopeFor(uri, info.Ident.Node())
	for _, seg := range info.Path {
		v, ok := scope[seg]
		if !ok || v.Value == nil {
			r.logger.Debug("Path segment not resolvable",
				"code", errors.NotFound,
				"segment", seg,
				"uri", uri,
			)
			return IdentInfo{}, nil, false
		}
		scope = r.ScopeFromNode(v.URI, v.Value)
	}
	return info, scope, true
}

// Definition returns the binding of the identifier at offset.
func (r *Resolver) Definition(uri string, root *syntax.Node, offset int) (*Var, bool) {
	info, scope, ok := r.ScopeForIdent(uri, root, offset)
	if !ok {
		return nil, false
	}
	v, ok := scope[info.Name()]
	return v, ok
}

// ScopeFromNode returns the attributes of the attribute set node evaluates
// to when that can be seen syntactically. It looks through key-value
// wrappers, parentheses, let-in, with and assert bodies, `import <path>`
// and applications of imported functions. Anything else yields an empty
// scope.
func (r *Resolver) ScopeFromNode(uri string, node *syntax.Node) Scope {
	scope := make(Scope)
	visited := map[string]bool{uri: true}
	imports := 0
	// pendingArgs counts applications whose function is still being
	// resolved; each one lets the walk step into one lambda body.
	pendingArgs := 0

	for node != nil {
		switch node.Kind() {
		case syntax.NodeKeyValue:
			kv, _ := syntax.AsKeyValue(node)
			node = kv.Value()
			continue
		case syntax.NodeParen:
			paren, _ := syntax.AsParen(node)
			node = paren.Inner()
			continue
		case syntax.NodeLetIn:
			letIn, _ := syntax.AsLetIn(node)
			node = letIn.Body()
			continue
		case syntax.NodeWith:
			with, _ := syntax.AsWith(node)
			node = with.Body()
			continue
		case syntax.NodeAssert:
			assert, _ := syntax.AsAssert(node)
			node = assert.Body()
			continue
		case syntax.NodeLambda:
			if pendingArgs == 0 {
				return scope
			}
			pendingArgs--
			lambda, _ := syntax.AsLambda(node)
			node = lambda.Body()
			continue
		case syntax.NodeApply:
			apply, _ := syntax.AsApply(node)
			if !isImport(apply.Function()) {
				pendingArgs++
				node = apply.Function()
				continue
			}
			target, ok := r.importTarget(uri, apply.Argument())
			if !ok {
				return scope
			}
			if visited[target] {
				r.logger.Debug("Import cycle",
					"code", errors.ImportCycle,
					"from", uri,
					"target", target,
				)
				return scope
			}
			imports++
			if imports > r.maxImportDepth {
				r.logger.Debug("Import chain too deep",
					"code", errors.ImportTooDeep,
					"limit", r.maxImportDepth,
					"target", target,
				)
				return scope
			}
			doc, err := r.store.Load(target)
			if err != nil {
				r.logger.Debug("Import target unavailable",
					"code", errors.CodeOf(err),
					"target", target,
					"error", err.Error(),
				)
				return scope
			}
			visited[target] = true
			uri = target
			root, _ := syntax.AsRoot(doc.Root())
			node = root.Inner()
			continue
		case syntax.NodeAttrSet:
			set, _ := syntax.AsAttrSet(node)
			populate(uri, scope, set)
		}
		return scope
	}
	return scope
}

func isImport(n *syntax.Node) bool {
	ident, ok := syntax.AsIdent(n)
	return ok && ident.Name() == "import"
}

// importTarget resolves the argument of `import` to a document URI.
func (r *Resolver) importTarget(uri string, arg *syntax.Node) (string, bool) {
	if paren, ok := syntax.AsParen(arg); ok {
		arg = paren.Inner()
	}
	lit, ok := syntax.AsLiteral(arg)
	if !ok {
		r.logger.Debug("Import argument is not a path literal",
			"code", errors.MalformedImport,
			"uri", uri,
		)
		return "", false
	}
	value, err := lit.Value()
	if err != nil || value.Kind != syntax.ValuePath {
		r.logger.Debug("Import argument is not a path literal",
			"code", errors.MalformedImport,
			"uri", uri,
		)
		return "", false
	}
	target, ok := paths.ResolveNixPath(uri, value.Anchor.String(), value.Path)
	if !ok {
		r.logger.Debug("Import path not resolvable",
			"code", errors.MalformedImport,
			"uri", uri,
			"path", value.Path,
			"anchor", value.Anchor.String(),
		)
		return "", false
	}
	return target, true
}
