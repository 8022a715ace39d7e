package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nixlsp/internal/errors"
	"nixlsp/internal/lookup"
	"nixlsp/internal/syntax"
)

func (s *commentsSource) Build(ctx context.Context) ([]DocEntry, error) {
	files, err := s.nixFiles()
	if err != nil {
		return nil, err
	}
	root := s.path
	if len(files) == 1 && files[0] == s.path {
		root = filepath.Dir(s.path)
	}

	var entries []DocEntry
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.New(errors.SourceUnavailable, "source "+s.name+": cannot read "+file, err)
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			rel = filepath.Base(file)
		}
		var ns []string
		if file != s.path {
			ns = fileNamespace(rel)
		}
		entries = append(entries, s.fileEntries(syntax.Parse(string(data)), filepath.ToSlash(rel), ns)...)
	}
	return entries, nil
}

// fileNamespace turns a path relative to the source directory into name
// segments: strings.nix gives [strings], trivial/default.nix gives
// [trivial] and the top-level default.nix gives nothing.
func fileNamespace(rel string) []string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".nix")
	var out []string
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." {
			continue
		}
		out = append(out, seg)
	}
	if n := len(out); n > 0 && out[n-1] == "default" {
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// fileEntries documents every commented binding that belongs to the
// attribute set a file evaluates to. Bindings under let-in are local and
// skipped.
func (s *commentsSource) fileEntries(tree *syntax.Tree, rel string, ns []string) []DocEntry {
	var entries []DocEntry
	for n := range tree.Root().Descendants() {
		if n.Kind() != syntax.NodeKeyValue || !exported(n) {
			continue
		}
		doc := DocComment(n)
		if doc == "" {
			continue
		}
		segs := append(append([]string(nil), ns...), lookup.NamespaceForNode(n)...)
		full := s.qualify(strings.Join(segs, "."))
		line := strings.Count(tree.Source()[:n.Range().Start], "\n") + 1
		entries = append(entries, DocEntry{
			Name:   full,
			Source: s.name,
			Documentation: render(docFields{
				Name:         full,
				Description:  doc,
				Declarations: []string{fmt.Sprintf("`%s:%d`", rel, line)},
			}),
		})
	}
	return entries
}

// exported reports whether every key-value binding from n outwards sits
// directly in an attribute set and has a static key.
func exported(n *syntax.Node) bool {
	for anc := range n.Ancestors() {
		if anc.Kind() != syntax.NodeKeyValue {
			continue
		}
		if p := anc.Parent(); p == nil || p.Kind() != syntax.NodeAttrSet {
			return false
		}
		kv, _ := syntax.AsKeyValue(anc)
		key, ok := kv.Key()
		if !ok || len(key.Names()) != len(key.Segments()) {
			return false
		}
	}
	return true
}

// DocComment returns the cleaned comment block directly above a key-value
// node. A blank line ends the block; a comment trailing the previous binding
// on its line does not belong to it.
func DocComment(kv *syntax.Node) string {
	var rev []string
scan:
	for el := kv.PrevSibling(); el != nil; el = el.PrevSibling() {
		switch el.Kind() {
		case syntax.TokenWhitespace:
			if strings.Count(el.Text(), "\n") >= 2 {
				break scan
			}
		case syntax.TokenComment:
			if trailing(el) {
				break scan
			}
			rev = append(rev, el.Text())
		default:
			break scan
		}
	}
	if len(rev) == 0 {
		return ""
	}
	comments := make([]string, len(rev))
	for i, c := range rev {
		comments[len(rev)-1-i] = c
	}
	return cleanComment(comments)
}

// trailing reports whether a comment shares its line with the code before
// it.
func trailing(comment *syntax.Node) bool {
	for el := comment.PrevSibling(); el != nil; el = el.PrevSibling() {
		switch el.Kind() {
		case syntax.TokenWhitespace:
			if strings.Contains(el.Text(), "\n") {
				return false
			}
		case syntax.TokenComment:
			return false
		default:
			return true
		}
	}
	return false
}
