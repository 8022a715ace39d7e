package completion

import (
	"strings"

	"nixlsp/internal/lookup"
	"nixlsp/internal/syntax"
)

// PrefixProvider names the namespaces the user may have opened implicitly
// around node, for example through `with pkgs;`. A typed path is also
// looked up under each of them.
type PrefixProvider interface {
	Prefixes(node *syntax.Node) []string
}

// PrefixFunc adapts a function to PrefixProvider.
type PrefixFunc func(node *syntax.Node) []string

func (f PrefixFunc) Prefixes(node *syntax.Node) []string { return f(node) }

// StaticPrefixes are configured namespaces that apply everywhere.
type StaticPrefixes []string

func (s StaticPrefixes) Prefixes(*syntax.Node) []string { return s }

// WithNamespaces yields the namespace of every `with` expression whose body
// contains node, innermost first. Only identifiers and static select chains
// name a namespace.
type WithNamespaces struct{}

func (WithNamespaces) Prefixes(node *syntax.Node) []string {
	var out []string
	start := node.Range().Start
	for anc := range node.Ancestors() {
		with, ok := syntax.AsWith(anc)
		if !ok {
			continue
		}
		body := with.Body()
		if body == nil || start < body.Range().Start {
			continue
		}
		if path, ok := lookup.SelectPath(with.Namespace()); ok {
			out = append(out, strings.Join(path, "."))
		}
	}
	return out
}

// KeyNamespace yields the attribute path of the bindings around an
// attribute key, so that `enable` typed inside `services.nginx = { ... }`
// is also looked up as services.nginx.enable. A leading `config` segment,
// as written in modules, is also offered without it.
type KeyNamespace struct{}

func (KeyNamespace) Prefixes(node *syntax.Node) []string {
	for anc := range node.Ancestors() {
		if anc.Kind() != syntax.NodeKey {
			continue
		}
		kv := anc.Parent()
		if kv == nil || kv.Parent() == nil {
			return nil
		}
		ns := lookup.NamespaceForNode(kv.Parent())
		if len(ns) == 0 {
			return nil
		}
		out := []string{strings.Join(ns, ".")}
		if ns[0] == "config" && len(ns) > 1 {
			out = append(out, strings.Join(ns[1:], "."))
		}
		return out
	}
	return nil
}

// DefaultProviders returns the configured static prefixes followed by the
// `with` and key namespace providers.
func DefaultProviders(static []string) []PrefixProvider {
	return []PrefixProvider{StaticPrefixes(static), WithNamespaces{}, KeyNamespace{}}
}

// collectPrefixes queries every provider and drops blanks and duplicates,
// keeping the first occurrence.
func collectPrefixes(node *syntax.Node, providers []PrefixProvider) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range providers {
		for _, prefix := range p.Prefixes(node) {
			prefix = strings.Trim(strings.TrimSpace(prefix), ".")
			if prefix == "" || seen[prefix] {
				continue
			}
			seen[prefix] = true
			out = append(out, prefix)
		}
	}
	return out
}
