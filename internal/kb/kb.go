// Package kb is the documentation knowledge base: dotted names such as
// lib.strings.concatStrings or services.nginx.enable with rendered
// markdown, split into a values aggregate and an options aggregate. It is
// built once from the configured sources and read-only afterwards.
package kb

import (
	"fmt"
	"sort"
	"strings"
)

// DocEntry is one documented name.
type DocEntry struct {
	Name          string `json:"name" yaml:"name" toml:"name"`
	Documentation string `json:"documentation" yaml:"documentation" toml:"documentation"`
	Source        string `json:"source" yaml:"source" toml:"source"`
}

// MatchMode selects how Search compares names with the query. Every mode
// folds case.
type MatchMode int

const (
	// MatchPrefix matches names starting with the query.
	MatchPrefix MatchMode = iota
	// MatchContains matches names containing the query.
	MatchContains
	// MatchSuffix matches the name itself or a name ending in "." + query.
	MatchSuffix
)

func (m MatchMode) String() string {
	switch m {
	case MatchPrefix:
		return "prefix"
	case MatchContains:
		return "contains"
	case MatchSuffix:
		return "suffix"
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// ParseMatchMode parses the String form of a mode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "prefix":
		return MatchPrefix, nil
	case "contains":
		return MatchContains, nil
	case "suffix":
		return MatchSuffix, nil
	}
	return 0, fmt.Errorf("unknown match mode %q (want prefix, contains or suffix)", s)
}

// Searcher is the read side of the knowledge base.
type Searcher interface {
	Search(query string, mode MatchMode) []DocEntry
}

// Aggregate is a sorted, immutable set of entries.
type Aggregate struct {
	name    string
	entries []DocEntry
	folded  []string
}

// NewAggregate builds an aggregate. When two entries share a name the
// first one wins.
func NewAggregate(name string, entries []DocEntry) *Aggregate {
	seen := make(map[string]bool, len(entries))
	kept := make([]DocEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		fi, fj := strings.ToLower(kept[i].Name), strings.ToLower(kept[j].Name)
		if fi != fj {
			return fi < fj
		}
		return kept[i].Name < kept[j].Name
	})

	folded := make([]string, len(kept))
	for i, e := range kept {
		folded[i] = strings.ToLower(e.Name)
	}
	return &Aggregate{name: name, entries: kept, folded: folded}
}

// Name returns the aggregate name, "values" or "options".
func (a *Aggregate) Name() string { return a.name }

// Len returns the number of entries.
func (a *Aggregate) Len() int { return len(a.entries) }

// Entries returns all entries in name order. The slice must not be modified.
func (a *Aggregate) Entries() []DocEntry { return a.entries }

// Search returns the entries matching query in name order.
func (a *Aggregate) Search(query string, mode MatchMode) []DocEntry {
	q := strings.ToLower(query)
	var out []DocEntry

	switch mode {
	case MatchPrefix:
		i := sort.SearchStrings(a.folded, q)
		for ; i < len(a.folded) && strings.HasPrefix(a.folded[i], q); i++ {
			out = append(out, a.entries[i])
		}
	case MatchContains:
		for i, name := range a.folded {
			if strings.Contains(name, q) {
				out = append(out, a.entries[i])
			}
		}
	case MatchSuffix:
		if q == "" {
			return nil
		}
		for i, name := range a.folded {
			if name == q || strings.HasSuffix(name, "."+q) {
				out = append(out, a.entries[i])
			}
		}
	}
	return out
}

// KnowledgeBase holds the values and options aggregates.
type KnowledgeBase struct {
	Values  *Aggregate
	Options *Aggregate
}

// New builds a knowledge base from raw entries.
func New(values, options []DocEntry) *KnowledgeBase {
	return &KnowledgeBase{
		Values:  NewAggregate("values", values),
		Options: NewAggregate("options", options),
	}
}

// Empty returns a knowledge base without entries.
func Empty() *KnowledgeBase { return New(nil, nil) }

// Len returns the total number of entries.
func (kb *KnowledgeBase) Len() int { return kb.Values.Len() + kb.Options.Len() }

// Search queries values first, then options.
func (kb *KnowledgeBase) Search(query string, mode MatchMode) []DocEntry {
	out := kb.Values.Search(query, mode)
	return append(out, kb.Options.Search(query, mode)...)
}
