// Package document keeps the parsed state of every Nix file the server
// knows about: documents opened by the editor and files read from disk
// while following imports.
package document

import (
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"nixlsp/internal/errors"
	"nixlsp/internal/paths"
	"nixlsp/internal/syntax"
)

// Document is an immutable snapshot of one file. Edits replace the whole
// snapshot.
type Document struct {
	URI     string
	Version int32
	Text    string
	Tree    *syntax.Tree
	Lines   *LineIndex
	// Opened is true for documents owned by the editor. Other documents
	// were loaded from disk and are refreshed when the file changes.
	Opened  bool
	modTime time.Time
	size    int64
}

// Parse builds a document from text.
func Parse(uri string, version int32, text string) *Document {
	return &Document{
		URI:     uri,
		Version: version,
		Text:    text,
		Tree:    syntax.Parse(text),
		Lines:   NewLineIndex(text),
	}
}

// Root returns the root syntax node.
func (d *Document) Root() *syntax.Node { return d.Tree.Root() }

// Offset converts a position to a byte offset.
func (d *Document) Offset(pos Position) int { return d.Lines.Offset(pos) }

// Span converts a syntax range to positions.
func (d *Document) Span(r syntax.Range) Span { return d.Lines.Span(r.Start, r.End) }

// Store maps URIs to documents. Readers share a lock; every update
// replaces a document atomically.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	logger *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		docs:   make(map[string]*Document),
		logger: logger,
	}
}

func (s *Store) put(doc *Document) {
	s.mu.Lock()
	s.docs[doc.URI] = doc
	s.mu.Unlock()
}

// Open parses text and stores it as an editor-owned document.
func (s *Store) Open(uri string, version int32, text string) *Document {
	doc := Parse(uri, version, text)
	doc.Opened = true
	s.put(doc)
	s.logger.Debug("Document opened",
		"uri", uri,
		"version", version,
		"parse_errors", len(doc.Tree.Errors()),
	)
	return doc
}

// Change replaces the document with a full reparse of text.
func (s *Store) Change(uri string, version int32, text string) *Document {
	doc := Parse(uri, version, text)
	doc.Opened = true
	s.put(doc)
	s.logger.Debug("Document changed",
		"uri", uri,
		"version", version,
		"parse_errors", len(doc.Tree.Errors()),
	)
	return doc
}

// Close forgets a document. Later lookups read the file from disk.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get returns the stored document for uri.
func (s *Store) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// Load returns the document for uri, reading and parsing the file when the
// store has no current copy. Editor-owned documents always win over disk.
func (s *Store) Load(uri string) (*Document, error) {
	doc, ok := s.Get(uri)
	if ok && doc.Opened {
		return doc, nil
	}

	path, err := paths.URIToPath(uri)
	if err != nil {
		return nil, errors.New(errors.MalformedImport, "cannot map "+uri+" to a file", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(errors.IOFailure, "cannot stat "+path, err)
	}
	if ok && doc.modTime.Equal(info.ModTime()) && doc.size == info.Size() {
		return doc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.IOFailure, "cannot read "+path, err)
	}
	loaded := Parse(uri, 0, string(data))
	loaded.modTime = info.ModTime()
	loaded.size = info.Size()

	s.mu.Lock()
	// An editor may have opened the file while we were reading it.
	if current, exists := s.docs[uri]; exists && current.Opened {
		s.mu.Unlock()
		return current, nil
	}
	s.docs[uri] = loaded
	s.mu.Unlock()

	s.logger.Debug("Document loaded from disk", "uri", uri, "bytes", len(data))
	return loaded, nil
}

// URIs returns the URIs of all stored documents, sorted.
func (s *Store) URIs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
