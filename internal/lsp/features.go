package lsp

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"nixlsp/internal/completion"
	"nixlsp/internal/kb"
	"nixlsp/internal/lookup"
	"nixlsp/internal/paths"
	"nixlsp/internal/rename"
	"nixlsp/internal/syntax"
)

func (s *Server) textDocumentCompletion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	return guard(s, "textDocument/completion", any(nil), func(log *slog.Logger) (any, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		res := s.completer.Complete(doc.URI, doc.Root(), doc.Offset(fromProtocolPosition(params.Position)))
		log.Debug("Completion",
			"uri", doc.URI,
			"items", len(res.Items),
		)

		items := make([]protocol.CompletionItem, 0, len(res.Items))
		for _, it := range res.Items {
			kind := completionKind(it.Kind)
			ci := protocol.CompletionItem{
				Label: it.Label,
				Kind:  &kind,
				TextEdit: protocol.TextEdit{
					Range:   toProtocolRange(doc.Span(it.Range)),
					NewText: it.NewText,
				},
			}
			if it.Documentation != "" {
				ci.Documentation = protocol.MarkupContent{
					Kind:  protocol.MarkupKindMarkdown,
					Value: it.Documentation,
				}
			}
			items = append(items, ci)
		}
		return &protocol.CompletionList{
			IsIncomplete: res.Incomplete,
			Items:        items,
		}, nil
	})
}

func completionKind(k completion.ItemKind) protocol.CompletionItemKind {
	switch k {
	case completion.KindNamespace:
		return protocol.CompletionItemKindModule
	case completion.KindVariable:
		return protocol.CompletionItemKindVariable
	}
	return protocol.CompletionItemKindValue
}

func (s *Server) textDocumentHover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	return guard(s, "textDocument/hover", (*protocol.Hover)(nil), func(log *slog.Logger) (*protocol.Hover, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		offset := doc.Offset(fromProtocolPosition(params.Position))
		covering, path, ok := lookup.FullIdentName(lookup.ClosestNodeTo(doc.Root(), offset))
		if !ok || len(path) == 0 {
			return nil, nil
		}
		name := strings.Join(path, ".")

		entries := s.kb.Search(name, kb.MatchSuffix)
		if len(entries) == 0 {
			log.Debug("No documentation", "name", name)
			return nil, nil
		}
		docs := make([]string, 0, len(entries))
		for _, e := range entries {
			docs = append(docs, e.Documentation)
		}

		hover := &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: strings.Join(docs, "\n\n"),
			},
		}
		if rng, ok := lookup.PathRange(covering); ok {
			r := toProtocolRange(doc.Span(rng))
			hover.Range = &r
		}
		return hover, nil
	})
}

func (s *Server) textDocumentDefinition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	return guard(s, "textDocument/definition", any(nil), func(log *slog.Logger) (any, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		v, ok := s.resolver.Definition(doc.URI, doc.Root(), doc.Offset(fromProtocolPosition(params.Position)))
		if !ok {
			return nil, nil
		}

		owner, ok := s.store.Get(v.URI)
		if !ok {
			var err error
			if owner, err = s.store.Load(v.URI); err != nil {
				log.Debug("Definition target unreadable", "uri", v.URI, "error", err)
				return nil, nil
			}
		}
		return protocol.Location{
			URI:   v.URI,
			Range: toProtocolRange(owner.Span(v.Key.Range())),
		}, nil
	})
}

func (s *Server) textDocumentPrepareRename(_ *glsp.Context, params *protocol.PrepareRenameParams) (any, error) {
	return guard(s, "textDocument/prepareRename", any(nil), func(log *slog.Logger) (any, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		offset := doc.Offset(fromProtocolPosition(params.Position))
		info, ok := lookup.IdentAt(doc.Root(), offset)
		if !ok {
			return nil, nil
		}
		if _, ok := s.renamer.Rename(doc.URI, doc.Root(), offset, info.Name()); !ok {
			return nil, nil
		}
		return toProtocolRange(doc.Span(info.Ident.Node().Range())), nil
	})
}

func (s *Server) textDocumentRename(_ *glsp.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	if !rename.IsValidIdent(params.NewName) {
		return nil, fmt.Errorf("%q is not a valid identifier", params.NewName)
	}
	return guard(s, "textDocument/rename", (*protocol.WorkspaceEdit)(nil), func(log *slog.Logger) (*protocol.WorkspaceEdit, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		edits, ok := s.renamer.Rename(doc.URI, doc.Root(), doc.Offset(fromProtocolPosition(params.Position)), params.NewName)
		if !ok {
			return nil, nil
		}

		changes := make(map[protocol.DocumentUri][]protocol.TextEdit, len(edits))
		for uri, list := range edits {
			out := make([]protocol.TextEdit, 0, len(list))
			for _, e := range list {
				out = append(out, protocol.TextEdit{
					Range:   toProtocolRange(doc.Span(e.Range)),
					NewText: e.NewText,
				})
			}
			changes[uri] = out
		}
		log.Debug("Rename",
			"uri", doc.URI,
			"edits", len(changes[doc.URI]),
		)
		return &protocol.WorkspaceEdit{Changes: changes}, nil
	})
}

func (s *Server) textDocumentDocumentLink(_ *glsp.Context, params *protocol.DocumentLinkParams) ([]protocol.DocumentLink, error) {
	return guard(s, "textDocument/documentLink", []protocol.DocumentLink(nil), func(log *slog.Logger) ([]protocol.DocumentLink, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		var links []protocol.DocumentLink
		for n := range doc.Root().Descendants() {
			target, ok := linkTarget(doc.URI, n)
			if !ok {
				continue
			}
			links = append(links, protocol.DocumentLink{
				Range:  toProtocolRange(doc.Span(n.Range())),
				Target: &target,
			})
		}
		return links, nil
	})
}

// linkTarget resolves a path literal to an existing file.
func linkTarget(uri string, n *syntax.Node) (protocol.DocumentUri, bool) {
	lit, ok := syntax.AsLiteral(n)
	if !ok {
		return "", false
	}
	v, err := lit.Value()
	if err != nil || v.Kind != syntax.ValuePath {
		return "", false
	}
	target, ok := paths.ResolveNixPath(uri, v.Anchor.String(), v.Path)
	if !ok {
		return "", false
	}
	p, err := paths.URIToPath(target)
	if err != nil {
		return "", false
	}
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return "", false
	}
	return target, true
}

func (s *Server) textDocumentSelectionRange(_ *glsp.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	return guard(s, "textDocument/selectionRange", []protocol.SelectionRange(nil), func(log *slog.Logger) ([]protocol.SelectionRange, error) {
		doc, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, nil
		}
		out := make([]protocol.SelectionRange, 0, len(params.Positions))
		for _, pos := range params.Positions {
			offset := doc.Offset(fromProtocolPosition(pos))
			var chain *protocol.SelectionRange
			for _, r := range selectionChain(doc.Root(), offset) {
				chain = &protocol.SelectionRange{
					Range:  toProtocolRange(doc.Span(r)),
					Parent: chain,
				}
			}
			if chain == nil {
				chain = &protocol.SelectionRange{Range: protocol.Range{Start: pos, End: pos}}
			}
			out = append(out, *chain)
		}
		return out, nil
	})
}

// selectionChain returns the distinct ranges of the elements enclosing
// offset, outermost first.
func selectionChain(root *syntax.Node, offset int) []syntax.Range {
	start := lookup.ClosestNodeTo(root, offset)
	if start == nil {
		start = root
	}
	var inner []syntax.Range
	for anc := range start.Ancestors() {
		r := anc.Range()
		if len(inner) > 0 && inner[len(inner)-1] == r {
			continue
		}
		inner = append(inner, r)
	}
	for i, j := 0, len(inner)-1; i < j; i, j = i+1, j-1 {
		inner[i], inner[j] = inner[j], inner[i]
	}
	return inner
}
