package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nixlsp/internal/config"
	"nixlsp/internal/kb"
	"nixlsp/internal/slogutil"
	"nixlsp/internal/storage"
)

var (
	kbForce  bool
	kbPrune  bool
	kbFormat string
	kbMode   string
	kbLimit  int
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the documentation knowledge base",
	Long: `Build, inspect and query the documentation knowledge base that feeds
completion and hover. Sources are configured under [[knowledgeBase.sources]]
in .nixlsp/config.toml.`,
}

var kbBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge base and refresh the cache",
	Long: `Build every configured source. Sources whose inputs are unchanged are
loaded from the cache unless --force is given.

Examples:
  nixlsp kb build              # Refresh changed sources
  nixlsp kb build --force      # Rebuild everything
  nixlsp kb build --prune      # Also drop blobs of removed sources`,
	RunE: runKBBuild,
}

var kbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached sources and whether they are current",
	RunE:  runKBStatus,
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Long: `Search documented names. Values are listed before options.

Examples:
  nixlsp kb search lib.strings.con
  nixlsp kb search --mode suffix concatStrings
  nixlsp kb search --mode contains nginx --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runKBSearch,
}

func init() {
	kbBuildCmd.Flags().BoolVar(&kbForce, "force", false, "Ignore cached blobs")
	kbBuildCmd.Flags().BoolVar(&kbPrune, "prune", false, "Delete blobs of sources no longer configured")
	kbStatusCmd.Flags().StringVar(&kbFormat, "format", "human", "Output format (json, human)")
	kbSearchCmd.Flags().StringVar(&kbFormat, "format", "human", "Output format (json, human)")
	kbSearchCmd.Flags().StringVar(&kbMode, "mode", "prefix", "Match mode (prefix, contains, suffix)")
	kbSearchCmd.Flags().IntVar(&kbLimit, "limit", 20, "Maximum number of results (0 for all)")

	kbCmd.AddCommand(kbBuildCmd)
	kbCmd.AddCommand(kbStatusCmd)
	kbCmd.AddCommand(kbSearchCmd)
	rootCmd.AddCommand(kbCmd)
}

// kbSetup loads the config and sources shared by the kb commands.
func kbSetup() (*config.Config, []kb.Source, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	sources, err := kb.SourcesFromConfig(cfg.KnowledgeBase.Sources, root)
	if err != nil {
		return nil, nil, err
	}
	return cfg, sources, nil
}

func runKBBuild(cmd *cobra.Command, args []string) error {
	cfg, sources, err := kbSetup()
	if err != nil {
		return err
	}
	logger, closeLogs, err := newLogger(cfg, slogutil.SubsystemIndex)
	if err != nil {
		return err
	}
	defer closeLogs()

	cache, err := kb.OpenCache(cfg.KnowledgeBase, logger)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	loader := kb.NewLoader(cache.Blobs, logger)
	loader.Force = kbForce
	base, reports := loader.Load(ctx, sources)

	out := cmd.OutOrStdout()
	writeReports(out, reports)
	fmt.Fprintf(out, "\n%d values, %d options\n", base.Values.Len(), base.Options.Len())

	if kbPrune {
		removed, err := loader.Prune(sources)
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		for _, name := range removed {
			fmt.Fprintf(out, "Pruned %s\n", name)
		}
	}

	if n := countFailed(reports); n > 0 {
		return fmt.Errorf("%d of %d sources failed", n, len(reports))
	}
	return nil
}

func writeReports(w io.Writer, reports []kb.LoadReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No knowledge base sources configured.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tAGGREGATE\tENTRIES\tORIGIN\tTIME")
	for _, r := range reports {
		origin := "built"
		switch {
		case r.Err != nil:
			origin = "failed: " + r.Err.Error()
		case r.FromCache:
			origin = "cache"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Source, r.Aggregate, r.Entries, origin, r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func countFailed(reports []kb.LoadReport) int {
	n := 0
	for _, r := range reports {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// SourceStatus is one line of `kb status`.
type SourceStatus struct {
	Name       string    `json:"name"`
	Configured bool      `json:"configured"`
	Cached     bool      `json:"cached"`
	Current    bool      `json:"current"`
	Entries    int       `json:"entries,omitempty"`
	Size       int       `json:"size,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// sourceStatuses joins configured sources with the cached blobs. Blobs of
// sources that are no longer configured are listed last.
func sourceStatuses(sources []kb.Source, blobs []storage.BlobInfo) []SourceStatus {
	byName := make(map[string]storage.BlobInfo, len(blobs))
	for _, b := range blobs {
		byName[b.Source] = b
	}

	out := make([]SourceStatus, 0, len(sources)+len(blobs))
	configured := make(map[string]bool, len(sources))
	for _, src := range sources {
		configured[src.Name()] = true
		st := SourceStatus{Name: src.Name(), Configured: true}
		fp, err := src.Fingerprint()
		if err != nil {
			st.Error = err.Error()
		}
		if b, ok := byName[src.Name()]; ok {
			st.Cached = true
			st.Current = err == nil && b.Fingerprint == fp
			st.Entries = b.Entries
			st.Size = b.CompressedSize
			st.UpdatedAt = b.UpdatedAt
		}
		out = append(out, st)
	}
	for _, b := range blobs {
		if configured[b.Source] {
			continue
		}
		out = append(out, SourceStatus{
			Name:      b.Source,
			Cached:    true,
			Entries:   b.Entries,
			Size:      b.CompressedSize,
			UpdatedAt: b.UpdatedAt,
		})
	}
	return out
}

func runKBStatus(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(kbFormat)
	if err != nil {
		return err
	}
	cfg, sources, err := kbSetup()
	if err != nil {
		return err
	}
	logger, closeLogs, err := newLogger(cfg, slogutil.SubsystemIndex)
	if err != nil {
		return err
	}
	defer closeLogs()

	cache, err := kb.OpenCache(cfg.KnowledgeBase, logger)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base cache: %w", err)
	}
	defer func() { _ = cache.Close() }()
	blobs, err := cache.Blobs.List()
	if err != nil {
		return err
	}
	statuses := sourceStatuses(sources, blobs)

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		return writeJSON(out, statuses)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No knowledge base sources configured or cached.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATE\tENTRIES\tSIZE\tUPDATED")
	for _, st := range statuses {
		updated := "-"
		if !st.UpdatedAt.IsZero() {
			updated = st.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", st.Name, st.state(), st.Entries, st.Size, updated)
	}
	return tw.Flush()
}

func (s SourceStatus) state() string {
	switch {
	case s.Error != "":
		return "unavailable"
	case !s.Configured:
		return "orphaned"
	case !s.Cached:
		return "not built"
	case !s.Current:
		return "stale"
	}
	return "current"
}

// SearchResult is one hit of `kb search`.
type SearchResult struct {
	Name          string `json:"name"`
	Source        string `json:"source,omitempty"`
	Documentation string `json:"documentation"`
}

func runKBSearch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(kbFormat)
	if err != nil {
		return err
	}
	mode, err := kb.ParseMatchMode(kbMode)
	if err != nil {
		return err
	}
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

	ctx, cancel := signalContext()
	defer cancel()
	base, _, err := kb.LoadConfigured(ctx, cfg, root, logger)
	if err != nil {
		return err
	}

	entries := base.Search(args[0], mode)
	if kbLimit > 0 && len(entries) > kbLimit {
		entries = entries[:kbLimit]
	}
	results := make([]SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, SearchResult{Name: e.Name, Source: e.Source, Documentation: e.Documentation})
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		return writeJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintf(out, "No entries match %q.\n", args[0])
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, firstLine(stripMarkdownHeader(r.Documentation), 72))
	}
	return tw.Flush()
}

// stripMarkdownHeader drops the "### `name`" heading rendered entries
// start with.
func stripMarkdownHeader(doc string) string {
	if !strings.HasPrefix(doc, "### ") {
		return doc
	}
	_, rest, _ := strings.Cut(doc, "\n")
	return rest
}
