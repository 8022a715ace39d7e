package lsp

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"nixlsp/internal/document"
)

func fromProtocolPosition(p protocol.Position) document.Position {
	return document.Position{Line: p.Line, Character: p.Character}
}

func toProtocolPosition(p document.Position) protocol.Position {
	return protocol.Position{Line: p.Line, Character: p.Character}
}

func toProtocolRange(s document.Span) protocol.Range {
	return protocol.Range{Start: toProtocolPosition(s.Start), End: toProtocolPosition(s.End)}
}

// Diagnostics converts the parse errors of doc. Every error becomes one
// diagnostic over the error's span.
func Diagnostics(doc *document.Document) []protocol.Diagnostic {
	errs := doc.Tree.Errors()
	out := make([]protocol.Diagnostic, 0, len(errs))
	severity := protocol.DiagnosticSeverityError
	source := DiagnosticSource
	for _, e := range errs {
		out = append(out, protocol.Diagnostic{
			Range:    toProtocolRange(doc.Span(e.Range)),
			Severity: &severity,
			Source:   &source,
			Message:  e.Message,
		})
	}
	return out
}

func (s *Server) publishDiagnostics(ctx *glsp.Context, doc *document.Document) {
	diags := Diagnostics(doc)
	version := protocol.UInteger(doc.Version)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     &version,
		Diagnostics: diags,
	})
	if len(diags) > 0 {
		s.logger.Debug("Published diagnostics",
			"uri", doc.URI,
			"count", len(diags),
		)
	}
}
