package lsp

import (
	"log/slog"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"nixlsp/internal/document"
	"nixlsp/internal/paths"
	"nixlsp/internal/version"
)

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	root := ""
	switch {
	case params.RootURI != nil && *params.RootURI != "":
		if p, err := paths.URIToPath(*params.RootURI); err == nil {
			root = p
		}
	case params.RootPath != nil:
		root = *params.RootPath
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()

	clientName := ""
	if params.ClientInfo != nil {
		clientName = params.ClientInfo.Name
	}
	s.logger.Info("Initializing",
		"client", clientName,
		"root", root,
	)

	return protocol.InitializeResult{
		Capabilities: s.capabilities(),
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    version.Name,
			Version: &version.Version,
		},
	}, nil
}

func (s *Server) capabilities() protocol.ServerCapabilities {
	caps := s.handler.CreateServerCapabilities()
	syncFull := protocol.TextDocumentSyncKindFull
	openClose := true
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &syncFull,
	}
	caps.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}
	prepare := true
	caps.RenameProvider = &protocol.RenameOptions{PrepareProvider: &prepare}
	return caps
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	s.logger.Debug("Client initialized")
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	s.logger.Info("Shutting down", "documents", len(s.store.URIs()))
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return notifyGuard(s, "textDocument/didOpen", func(log *slog.Logger) error {
		item := params.TextDocument
		doc := s.store.Open(item.URI, item.Version, item.Text)
		s.publishDiagnostics(ctx, doc)
		return nil
	})
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	return notifyGuard(s, "textDocument/didChange", func(log *slog.Logger) error {
		uri := params.TextDocument.URI
		text := ""
		if doc, ok := s.document(uri); ok {
			text = doc.Text
		}
		for _, change := range params.ContentChanges {
			text = applyChange(text, change)
		}
		doc := s.store.Change(uri, params.TextDocument.Version, text)
		s.publishDiagnostics(ctx, doc)
		return nil
	})
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	return notifyGuard(s, "textDocument/didClose", func(log *slog.Logger) error {
		uri := params.TextDocument.URI
		s.store.Close(uri)
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []protocol.Diagnostic{},
		})
		return nil
	})
}

// applyChange applies one content change to text. Changes without a range
// replace the whole text.
func applyChange(text string, change any) string {
	switch c := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return c.Text
	case *protocol.TextDocumentContentChangeEventWhole:
		return c.Text
	case protocol.TextDocumentContentChangeEvent:
		return applyRanged(text, c)
	case *protocol.TextDocumentContentChangeEvent:
		return applyRanged(text, *c)
	}
	return text
}

func applyRanged(text string, c protocol.TextDocumentContentChangeEvent) string {
	if c.Range == nil {
		return c.Text
	}
	lines := document.NewLineIndex(text)
	start := lines.Offset(fromProtocolPosition(c.Range.Start))
	end := lines.Offset(fromProtocolPosition(c.Range.End))
	if end < start {
		start, end = end, start
	}
	var b strings.Builder
	b.Grow(len(text) - (end - start) + len(c.Text))
	b.WriteString(text[:start])
	b.WriteString(c.Text)
	b.WriteString(text[end:])
	return b.String()
}
