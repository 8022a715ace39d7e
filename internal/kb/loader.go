package kb

import (
	"context"
	"log/slog"
	"time"

	"nixlsp/internal/config"
	"nixlsp/internal/errors"
	"nixlsp/internal/paths"
	"nixlsp/internal/storage"
)

// LoadReport describes what happened to one source during a load.
type LoadReport struct {
	Source    string
	Aggregate string
	Entries   int
	FromCache bool
	Duration  time.Duration
	// Err is set when the source was skipped.
	Err error
}

// Loader builds a knowledge base from sources, reusing cached blobs whose
// fingerprint still matches.
type Loader struct {
	cache  *storage.BlobCache
	logger *slog.Logger
	// Force ignores cached blobs and rebuilds every source.
	Force bool
}

// NewLoader creates a loader. A nil cache disables caching.
func NewLoader(cache *storage.BlobCache, logger *slog.Logger) *Loader {
	return &Loader{cache: cache, logger: logger}
}

// Load reads every source. A source that fails is logged and skipped, so
// the result is always usable.
func (l *Loader) Load(ctx context.Context, sources []Source) (*KnowledgeBase, []LoadReport) {
	began := time.Now()
	var values, options []DocEntry
	reports := make([]LoadReport, 0, len(sources))

	for _, src := range sources {
		start := time.Now()
		entries, fromCache, err := l.loadSource(ctx, src)
		report := LoadReport{
			Source:    src.Name(),
			Aggregate: src.Aggregate(),
			Entries:   len(entries),
			FromCache: fromCache,
			Duration:  time.Since(start),
			Err:       err,
		}
		reports = append(reports, report)

		if err != nil {
			l.logger.Warn("Skipping knowledge base source",
				"source", src.Name(),
				"code", errors.CodeOf(err),
				"error", err.Error(),
			)
			continue
		}
		l.logger.Debug("Loaded knowledge base source",
			"source", src.Name(),
			"entries", len(entries),
			"cached", fromCache,
			"duration", report.Duration,
		)
		if src.Aggregate() == config.AggregateOptions {
			options = append(options, entries...)
		} else {
			values = append(values, entries...)
		}
	}

	kb := New(values, options)
	l.logger.Info("Knowledge base ready",
		"values", kb.Values.Len(),
		"options", kb.Options.Len(),
		"sources", len(sources),
		"duration", time.Since(began),
	)
	return kb, reports
}

func (l *Loader) loadSource(ctx context.Context, src Source) ([]DocEntry, bool, error) {
	fp, err := src.Fingerprint()
	if err != nil {
		return nil, false, err
	}

	if l.cache != nil && !l.Force {
		if entries, ok := l.cached(src, fp); ok {
			return entries, true, nil
		}
	}

	entries, err := src.Build(ctx)
	if err != nil {
		return nil, false, err
	}
	if l.cache != nil {
		l.store(src, fp, entries)
	}
	return entries, false, nil
}

// cached returns the entries of a cached blob with fingerprint fp. Corrupt
// blobs are dropped so the next load starts clean.
func (l *Loader) cached(src Source, fp string) ([]DocEntry, bool) {
	blob, ok, err := l.cache.Get(src.Name())
	if err != nil {
		l.logger.Warn("Dropping unreadable cache blob",
			"source", src.Name(),
			"code", errors.CodeOf(err),
			"error", err.Error(),
		)
		l.drop(src)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if blob.Fingerprint != fp {
		l.logger.Debug("Cache blob is stale", "source", src.Name())
		return nil, false
	}
	entries, err := src.Unmarshal(blob.Payload)
	if err != nil {
		l.logger.Warn("Dropping undecodable cache blob",
			"source", src.Name(),
			"code", errors.CacheCorrupt,
			"error", err.Error(),
		)
		l.drop(src)
		return nil, false
	}
	return entries, true
}

func (l *Loader) store(src Source, fp string, entries []DocEntry) {
	payload, err := src.Marshal(entries)
	if err != nil {
		l.logger.Warn("Cannot encode cache blob", "source", src.Name(), "error", err.Error())
		return
	}
	if _, err := l.cache.Put(src.Name(), fp, payload, len(entries)); err != nil {
		l.logger.Warn("Cannot store cache blob", "source", src.Name(), "error", err.Error())
	}
}

func (l *Loader) drop(src Source) {
	if err := l.cache.Delete(src.Name()); err != nil {
		l.logger.Warn("Cannot delete cache blob", "source", src.Name(), "error", err.Error())
	}
}

// Prune deletes cached blobs of sources that are no longer configured and
// returns their names.
func (l *Loader) Prune(sources []Source) ([]string, error) {
	if l.cache == nil {
		return nil, nil
	}
	keep := make(map[string]bool, len(sources))
	for _, s := range sources {
		keep[s.Name()] = true
	}
	infos, err := l.cache.List()
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, info := range infos {
		if keep[info.Source] {
			continue
		}
		if err := l.cache.Delete(info.Source); err != nil {
			return pruned, err
		}
		pruned = append(pruned, info.Source)
	}
	return pruned, nil
}

// Cache is an open blob cache together with its database.
type Cache struct {
	DB    *storage.DB
	Blobs *storage.BlobCache
}

// OpenCache opens the blob cache in cfg.CacheDir, or in the nixlsp home
// when that is empty.
func OpenCache(cfg config.KnowledgeBaseConfig, logger *slog.Logger) (*Cache, error) {
	dir := cfg.CacheDir
	if dir == "" {
		home, err := paths.GetHome()
		if err != nil {
			return nil, err
		}
		dir = home
	}
	db, err := storage.Open(dir, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := storage.NewBlobCache(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{DB: db, Blobs: blobs}, nil
}

// Close releases the cache.
func (c *Cache) Close() error {
	c.Blobs.Close()
	return c.DB.Close()
}

// LoadConfigured builds the knowledge base from cfg. Relative source paths
// resolve against root. When the cache cannot be opened the sources are
// built without it.
func LoadConfigured(ctx context.Context, cfg *config.Config, root string, logger *slog.Logger) (*KnowledgeBase, []LoadReport, error) {
	sources, err := SourcesFromConfig(cfg.KnowledgeBase.Sources, root)
	if err != nil {
		return nil, nil, err
	}
	if len(sources) == 0 {
		return Empty(), nil, nil
	}

	var blobs *storage.BlobCache
	cache, err := OpenCache(cfg.KnowledgeBase, logger)
	if err != nil {
		logger.Warn("Knowledge base cache unavailable, building without it", "error", err.Error())
	} else {
		defer func() { _ = cache.Close() }()
		blobs = cache.Blobs
	}

	kb, reports := NewLoader(blobs, logger).Load(ctx, sources)
	return kb, reports, nil
}
