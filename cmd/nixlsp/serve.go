package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"nixlsp/internal/kb"
	"nixlsp/internal/lsp"
	"nixlsp/internal/slogutil"
	"nixlsp/internal/version"
)

var protocolVerbosity int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the language server protocol on stdio",
	Long: `Start the language server.

The server communicates with the editor over stdin and stdout using
JSON-RPC. Logs go to the nixlsp log directory (or --log-file), never to
stdout.

The documentation knowledge base is built from the sources configured in
.nixlsp/config.toml before the first request is answered. Cached sources
whose inputs are unchanged are reused.

Example usage:
  nixlsp serve
  nixlsp serve --log-file /tmp/nixlsp.log -vv

This command is typically started by an editor, not by users.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.PersistentFlags().IntVar(&protocolVerbosity, "protocol-verbosity", 0,
		"Verbosity of the JSON-RPC transport log on stderr (0 disables it)")
}

func runServe(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger, closeLogs, err := newLogger(cfg, slogutil.SubsystemServer)
	if err != nil {
		return err
	}
	defer closeLogs()

	// glsp logs the transport through commonlog, which writes to stderr.
	commonlog.Configure(protocolVerbosity, nil)

	logger.Info("Starting language server",
		"version", version.Version,
		"workspace", root,
	)

	ctx, cancel := signalContext()
	defer cancel()
	base, _, err := kb.LoadConfigured(ctx, cfg, root, logger)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}

	server := lsp.New(lsp.Options{
		Config:        cfg,
		KnowledgeBase: base,
		Logger:        logger,
	})
	if err := server.RunStdio(); err != nil {
		logger.Error("Language server error", "error", err.Error())
		return err
	}
	return nil
}
