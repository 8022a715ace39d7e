// Package completion produces completion items from the documentation
// knowledge base and from the lexical scope at the cursor.
package completion

import (
	"log/slog"
	"sort"
	"strings"

	"nixlsp/internal/config"
	"nixlsp/internal/kb"
	"nixlsp/internal/lookup"
	"nixlsp/internal/syntax"
)

// ItemKind tells the client how to present an item.
type ItemKind int

const (
	// KindValue is a documented name at the typed level.
	KindValue ItemKind = iota
	// KindNamespace stands for a set of deeper names.
	KindNamespace
	// KindVariable is a binding in scope.
	KindVariable
)

// Item is one completion proposal. Applying it replaces Range with NewText.
type Item struct {
	Label         string
	Kind          ItemKind
	Range         syntax.Range
	NewText       string
	Documentation string
}

// Result is a completion response. It is always incomplete: the client
// asks again as more is typed.
type Result struct {
	Items      []Item
	Incomplete bool
}

// Engine answers completion requests.
type Engine struct {
	searcher  kb.Searcher
	resolver  *lookup.Resolver
	providers []PrefixProvider
	strict    bool
	scope     bool
	logger    *slog.Logger
}

// NewEngine creates an engine. A nil resolver disables scope completions.
// Without providers DefaultProviders(cfg.NamespacePrefixes) is used.
func NewEngine(searcher kb.Searcher, resolver *lookup.Resolver, cfg config.CompletionConfig, logger *slog.Logger, providers ...PrefixProvider) *Engine {
	if len(providers) == 0 {
		providers = DefaultProviders(cfg.NamespacePrefixes)
	}
	return &Engine{
		searcher:  searcher,
		resolver:  resolver,
		providers: providers,
		strict:    cfg.StrictNamespaceMatch,
		scope:     cfg.ScopeCompletions && resolver != nil,
		logger:    logger,
	}
}

// Complete returns the knowledge base items for the dotted path at offset
// followed by the scope items that are not already proposed.
func (e *Engine) Complete(uri string, root *syntax.Node, offset int) Result {
	res := Result{Incomplete: true}

	node := lookup.ClosestNodeTo(root, offset)
	if covering, path, ok := lookup.FullIdentName(node); ok {
		prefixes := collectPrefixes(node, e.providers)
		res.Items = e.Namespace(typedPath(covering, path), covering, prefixes)
	} else {
		e.logger.Debug("No dotted path at cursor", "uri", uri, "offset", offset)
	}

	if e.scope {
		labels := make(map[string]bool, len(res.Items))
		for _, it := range res.Items {
			labels[it.Label] = true
		}
		for _, it := range e.Scope(uri, root, offset) {
			if !labels[it.Label] {
				res.Items = append(res.Items, it)
			}
		}
	}
	return res
}

// typedPath adds an empty last segment when the path ends in a dot, so
// that `lib.` asks for the names directly below lib.
func typedPath(covering *syntax.Node, path []string) []string {
	var last *syntax.Node
	for el := range covering.DescendantsWithTokens() {
		if el.IsToken() && !el.Kind().IsTrivia() {
			last = el
		}
	}
	if last != nil && last.Kind() == syntax.TokenDot {
		return append(append([]string(nil), path...), "")
	}
	return path
}

// result is a classified knowledge base entry.
type result struct {
	entry   kb.DocEntry
	display string
	leaf    bool
}

// Namespace looks path up in the knowledge base, alone and under each
// prefix, and turns the hits into items replacing the whole of covering.
//
// Within the hits of one query, the match depth is the largest number of
// segments an entry shares with the query. An entry with exactly that many
// segments is a leaf; deeper entries stand for the namespace they have at
// that depth. Items with the same namespace collapse into one, and a leaf
// wins over a namespace of the same name.
func (e *Engine) Namespace(path []string, covering *syntax.Node, prefixes []string) []Item {
	if len(path) == 0 {
		return nil
	}
	rng, ok := lookup.PathRange(covering)
	if !ok {
		return nil
	}

	typed := strings.Join(path, ".")
	candidates := []string{typed}
	for _, p := range prefixes {
		candidates = append(candidates, p+"."+typed)
	}

	// Longest prefix under which each entry was found, used to shorten
	// labels.
	longest := make(map[string]string)
	groups := make(map[string][]kb.DocEntry, len(candidates))
	seen := make(map[string]bool)
	for i, c := range candidates {
		for _, entry := range e.searcher.Search(c, kb.MatchPrefix) {
			if i > 0 {
				if p := prefixes[i-1]; len(p) > len(longest[entry.Name]) {
					longest[entry.Name] = p
				}
			}
			if seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true
			groups[c] = append(groups[c], entry)
		}
	}

	var items []Item
	done := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if done[c] {
			continue
		}
		done[c] = true
		for _, r := range dedupe(e.classify(c, groups[c])) {
			label := stripNamespace(r.entry.Name, longest[r.entry.Name])
			it := Item{
				Label:   label,
				Kind:    KindNamespace,
				Range:   rng,
				NewText: r.entry.Name,
			}
			if r.leaf {
				it.Kind = KindValue
				it.Documentation = r.entry.Documentation
			}
			items = append(items, it)
		}
	}
	return items
}

// classify tags each hit of one candidate as a leaf or as the namespace
// it has at the match depth. Hits sharing no segment with the candidate
// are dropped.
func (e *Engine) classify(candidate string, entries []kb.DocEntry) []result {
	query := splitName(candidate)
	depth := 0
	for _, entry := range entries {
		if n := e.matchLen(query, splitName(entry.Name)); n > depth {
			depth = n
		}
	}
	if depth == 0 {
		return nil
	}

	var out []result
	for _, entry := range entries {
		segs := splitName(entry.Name)
		if e.matchLen(query, segs) == 0 {
			continue
		}
		r := result{entry: entry, leaf: len(segs) == depth}
		if r.leaf {
			r.display = strings.Join(segs, ".")
		} else {
			r.display = strings.Join(segs[:min(depth, len(segs))], ".")
		}
		out = append(out, r)
	}
	return out
}

// dedupe keeps one result per display name. A leaf replaces a namespace,
// and among namespaces the entry with the shortest name stays.
func dedupe(results []result) []result {
	var out []result
	index := make(map[string]int)
	for _, r := range results {
		if i, ok := index[r.display]; ok {
			switch {
			case out[i].leaf:
			case r.leaf, len(r.entry.Name) < len(out[i].entry.Name):
				out[i] = r
			}
			continue
		}
		index[r.display] = len(out)
		out = append(out, r)
	}
	return out
}

// matchLen counts the segments query and name share by position. Unless
// strict matching is configured the segments are only zipped, not
// compared. An empty query segment, left by a trailing dot, matches
// anything.
func (e *Engine) matchLen(query, name []string) int {
	n := min(len(query), len(name))
	if !e.strict {
		return n
	}
	for i := 0; i < n; i++ {
		if query[i] != "" && !strings.EqualFold(query[i], name[i]) {
			return i
		}
	}
	return n
}

// stripNamespace removes the namespace prefix from name. The knowledge
// base matches case-insensitively, so the prefix is compared the same way.
func stripNamespace(name, prefix string) string {
	if prefix == "" || len(name) <= len(prefix) || name[len(prefix)] != '.' {
		return name
	}
	if !strings.EqualFold(name[:len(prefix)], prefix) {
		return name
	}
	return name[len(prefix)+1:]
}

func splitName(name string) []string {
	return strings.Split(strings.ReplaceAll(name, "\n", ""), ".")
}

// Scope proposes the bindings visible at the identifier under the cursor
// whose names start with what has been typed. The identifier is replaced.
func (e *Engine) Scope(uri string, root *syntax.Node, offset int) []Item {
	if e.resolver == nil {
		return nil
	}
	info, scope, ok := e.resolver.ScopeForIdent(uri, root, offset)
	if !ok {
		return nil
	}
	typed := info.Name()
	rng := info.Ident.Node().Range()

	names := make([]string, 0, len(scope))
	for name := range scope {
		if strings.HasPrefix(name, typed) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	items := make([]Item, 0, len(names))
	for _, name := range names {
		items = append(items, Item{
			Label:   name,
			Kind:    KindVariable,
			Range:   rng,
			NewText: name,
		})
	}
	return items
}
