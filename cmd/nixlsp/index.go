package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nixlsp/internal/scipindex"
	"nixlsp/internal/slogutil"
)

var indexOutput string

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Export the bindings of a Nix tree as a SCIP index",
	Long: `Parse every .nix file below dir (default: the workspace root) and write a
SCIP index with one document per file. Each binding becomes a local symbol
documented by the comment above it; every identifier that resolves to a
binding of the same file becomes an occurrence.

Hidden directories are skipped.

Examples:
  nixlsp index                       # Index the workspace into index.scip
  nixlsp index ./lib -o lib.scip     # Index a subtree`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexOutput, "output", "o", "index.scip", "Output file")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger, closeLogs, err := newLogger(cfg, slogutil.SubsystemIndex)
	if err != nil {
		return err
	}
	defer closeLogs()

	dir := root
	if len(args) == 1 {
		dir = args[0]
	}
	output := indexOutput
	if !filepath.IsAbs(output) {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		output = filepath.Join(wd, output)
	}

	ctx, cancel := signalContext()
	defer cancel()

	ix := scipindex.NewIndexer(cfg.Resolver.MaxImportDepth, logger)
	index, stats, err := ix.Index(ctx, dir, os.Args[1:])
	if err != nil {
		return err
	}
	if err := scipindex.Write(output, index); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %s\n", output, stats.Summary())
	return nil
}
