// Package scipindex exports the bindings of a tree of Nix files as a SCIP
// index: one document per file, a local symbol per binding and an
// occurrence for every identifier that resolves to a binding of the same
// file.
package scipindex

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"

	"nixlsp/internal/document"
	"nixlsp/internal/errors"
	"nixlsp/internal/kb"
	"nixlsp/internal/lookup"
	"nixlsp/internal/paths"
	"nixlsp/internal/syntax"
	"nixlsp/internal/version"
)

// Language is the SCIP language of every document.
const Language = "nix"

// Stats summarizes an indexing run.
type Stats struct {
	Documents   int
	Symbols     int
	Occurrences int
	ParseErrors int
	Skipped     int
	Duration    time.Duration
}

// Indexer builds SCIP indexes. It owns a document store so imports shared
// by several files are parsed once.
type Indexer struct {
	store    *document.Store
	resolver *lookup.Resolver
	logger   *slog.Logger
}

// NewIndexer creates an indexer following imports at most maxImportDepth
// levels deep.
func NewIndexer(maxImportDepth int, logger *slog.Logger) *Indexer {
	store := document.NewStore(logger)
	return &Indexer{
		store:    store,
		resolver: lookup.NewResolver(store, maxImportDepth, logger),
		logger:   logger,
	}
}

// Index indexes every .nix file below root. Files that cannot be read are
// logged and skipped. args are recorded as the tool arguments.
func (ix *Indexer) Index(ctx context.Context, root string, args []string) (*scippb.Index, Stats, error) {
	start := time.Now()
	var stats Stats

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, stats, errors.New(errors.IOFailure, "cannot resolve "+root, err)
	}
	files, err := paths.NixFiles(abs)
	if err != nil {
		return nil, stats, errors.New(errors.IOFailure, "cannot list Nix files in "+abs, err)
	}
	base := abs
	if len(files) == 1 && files[0] == abs {
		base = filepath.Dir(abs)
	}

	index := &scippb.Index{
		Metadata: &scippb.Metadata{
			Version: scippb.ProtocolVersion_UnspecifiedProtocolVersion,
			ToolInfo: &scippb.ToolInfo{
				Name:      version.Name,
				Version:   version.Version,
				Arguments: args,
			},
			ProjectRoot:          paths.PathToURI(base),
			TextDocumentEncoding: scippb.TextEncoding_UTF8,
		},
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		doc, err := ix.store.Load(paths.PathToURI(path))
		if err != nil {
			ix.logger.Warn("Skipping unreadable file",
				"path", path,
				"error", err.Error(),
			)
			stats.Skipped++
			continue
		}

		sdoc := ix.indexDocument(doc, filepath.ToSlash(rel))
		index.Documents = append(index.Documents, sdoc)
		stats.Documents++
		stats.Symbols += len(sdoc.Symbols)
		stats.Occurrences += len(sdoc.Occurrences)
		stats.ParseErrors += len(doc.Tree.Errors())
	}

	stats.Duration = time.Since(start)
	ix.logger.Info("Indexed Nix files",
		"root", base,
		"documents", stats.Documents,
		"symbols", stats.Symbols,
		"occurrences", stats.Occurrences,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return index, stats, nil
}

// symbolTable numbers the local symbols of one document.
type symbolTable struct {
	ids   map[*syntax.Node]string
	infos []*scippb.SymbolInformation
}

func (t *symbolTable) symbol(key *syntax.Node, kind scippb.SymbolInformation_Kind) string {
	if id, ok := t.ids[key]; ok {
		return id
	}
	id := "local " + strconv.Itoa(len(t.infos))
	t.ids[key] = id

	info := &scippb.SymbolInformation{
		Symbol:      id,
		DisplayName: key.Text(),
		Kind:        kind,
	}
	if kv := bindingOf(key); kv != nil {
		if doc := kb.DocComment(kv); doc != "" {
			info.Documentation = []string{doc}
		}
	}
	t.infos = append(t.infos, info)
	return id
}

func (ix *Indexer) indexDocument(doc *document.Document, rel string) *scippb.Document {
	out := &scippb.Document{
		Language:         Language,
		RelativePath:     rel,
		PositionEncoding: scippb.PositionEncoding_UTF16CodeUnitOffsetFromLineStart,
	}
	table := &symbolTable{ids: make(map[*syntax.Node]string)}
	root := doc.Root()

	for n := range root.Descendants() {
		if n.Kind() != syntax.NodeIdent {
			continue
		}
		v, resolved := ix.resolver.Definition(doc.URI, root, n.Range().Start)

		var occ *scippb.Occurrence
		switch {
		case resolved && v.Key == n:
			occ = &scippb.Occurrence{
				Symbol:      table.symbol(n, kindOf(v.Set)),
				SymbolRoles: int32(scippb.SymbolRole_Definition),
			}
		case bindingOf(n) != nil:
			occ = &scippb.Occurrence{
				Symbol:      table.symbol(n, scippb.SymbolInformation_Property),
				SymbolRoles: int32(scippb.SymbolRole_Definition),
			}
		case resolved && v.URI == doc.URI:
			occ = &scippb.Occurrence{Symbol: table.symbol(v.Key, kindOf(v.Set))}
		default:
			continue
		}
		occ.Range = scipRange(doc.Span(n.Range()))
		out.Occurrences = append(out.Occurrences, occ)
	}
	out.Symbols = table.infos
	return out
}

// bindingOf returns the key-value node whose key starts with ident.
func bindingOf(ident *syntax.Node) *syntax.Node {
	key, ok := syntax.AsKey(ident.Parent())
	if !ok {
		return nil
	}
	if segs := key.Segments(); len(segs) == 0 || segs[0] != ident {
		return nil
	}
	kv := key.Node().Parent()
	if kv == nil || kv.Kind() != syntax.NodeKeyValue {
		return nil
	}
	return kv
}

func kindOf(set *syntax.Node) scippb.SymbolInformation_Kind {
	switch set.Kind() {
	case syntax.NodeLambda:
		return scippb.SymbolInformation_Parameter
	case syntax.NodeAttrSet:
		return scippb.SymbolInformation_Property
	}
	return scippb.SymbolInformation_Variable
}

// scipRange encodes a span the SCIP way: three elements when it stays on
// one line, four otherwise.
func scipRange(s document.Span) []int32 {
	if s.Start.Line == s.End.Line {
		return []int32{int32(s.Start.Line), int32(s.Start.Character), int32(s.End.Character)}
	}
	return []int32{int32(s.Start.Line), int32(s.Start.Character), int32(s.End.Line), int32(s.End.Character)}
}

// Summary renders stats on one line for the CLI.
func (s Stats) Summary() string {
	return fmt.Sprintf("%d documents, %d symbols, %d occurrences (%d skipped, %d parse errors) in %s",
		s.Documents, s.Symbols, s.Occurrences, s.Skipped, s.ParseErrors, s.Duration.Round(time.Millisecond))
}
