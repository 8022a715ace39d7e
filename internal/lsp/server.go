// Package lsp exposes the analysis core over the language server protocol.
package lsp

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"nixlsp/internal/completion"
	"nixlsp/internal/config"
	"nixlsp/internal/document"
	"nixlsp/internal/kb"
	"nixlsp/internal/lookup"
	"nixlsp/internal/rename"
	"nixlsp/internal/slogutil"
	"nixlsp/internal/version"
)

// DiagnosticSource names the server in published diagnostics.
const DiagnosticSource = version.Name

// Server holds the session state: open documents, the knowledge base and
// the engines that answer requests. glsp dispatches one message at a time.
type Server struct {
	handler   protocol.Handler
	store     *document.Store
	resolver  *lookup.Resolver
	kb        kb.Searcher
	completer *completion.Engine
	renamer   *rename.Engine
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string

	mu   sync.RWMutex
	root string
}

// Options configures a server.
type Options struct {
	Config *config.Config
	// KnowledgeBase is built before serving and only read afterwards. Nil
	// means an empty one.
	KnowledgeBase kb.Searcher
	Logger        *slog.Logger
	// Providers replace the default namespace prefix providers.
	Providers []completion.PrefixProvider
}

// New creates a server.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	searcher := opts.KnowledgeBase
	if searcher == nil {
		searcher = kb.Empty()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	sessionID := uuid.NewString()
	logger = logger.With("session_id", sessionID)

	store := document.NewStore(logger)
	resolver := lookup.NewResolver(store, cfg.Resolver.MaxImportDepth, logger)

	s := &Server{
		store:     store,
		resolver:  resolver,
		kb:        searcher,
		completer: completion.NewEngine(searcher, resolver, cfg.Completion, logger, opts.Providers...),
		renamer:   rename.NewEngine(resolver, logger),
		cfg:       cfg,
		logger:    logger,
		sessionID: sessionID,
	}
	s.handler = protocol.Handler{
		Initialize:                 s.initialize,
		Initialized:                s.initialized,
		Shutdown:                   s.shutdown,
		SetTrace:                   s.setTrace,
		TextDocumentDidOpen:        s.textDocumentDidOpen,
		TextDocumentDidChange:      s.textDocumentDidChange,
		TextDocumentDidClose:       s.textDocumentDidClose,
		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentRename:         s.textDocumentRename,
		TextDocumentPrepareRename:  s.textDocumentPrepareRename,
		TextDocumentDocumentLink:   s.textDocumentDocumentLink,
		TextDocumentSelectionRange: s.textDocumentSelectionRange,
	}
	return s
}

// Handler returns the protocol handler.
func (s *Server) Handler() *protocol.Handler { return &s.handler }

// Store returns the document store.
func (s *Server) Store() *document.Store { return s.store }

// SessionID identifies this server instance in logs.
func (s *Server) SessionID() string { return s.sessionID }

// Root returns the workspace root announced by the client, if any.
func (s *Server) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// RunStdio serves the protocol on stdin and stdout until the client exits.
func (s *Server) RunStdio() error {
	s.logger.Info("Language server starting",
		"version", version.Version,
		"commit", version.Commit,
	)
	return server.NewServer(&s.handler, version.Name, false).RunStdio()
}

// guard runs one request. A panic is logged with its stack and turns into
// the fallback result, so a bad request cannot take the session down.
func guard[T any](s *Server, method string, fallback T, fn func(log *slog.Logger) (T, error)) (result T, err error) {
	log := s.logger.With("request_id", uuid.NewString(), "method", method)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Request panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result, err = fallback, nil
		}
	}()

	result, err = fn(log)
	log.Debug("Handled request",
		"duration", time.Since(start),
		"error", err != nil,
	)
	return result, err
}

// notifyGuard is guard for notifications, which have no result.
func notifyGuard(s *Server, method string, fn func(log *slog.Logger) error) error {
	_, err := guard(s, method, struct{}{}, func(log *slog.Logger) (struct{}, error) {
		return struct{}{}, fn(log)
	})
	return err
}

// document returns the current snapshot of uri.
func (s *Server) document(uri protocol.DocumentUri) (*document.Document, bool) {
	return s.store.Get(string(uri))
}
