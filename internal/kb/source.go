package kb

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"nixlsp/internal/config"
	"nixlsp/internal/errors"
	"nixlsp/internal/paths"
)

// Source produces documentation entries for one aggregate. Each source owns
// the format of its cached blob and decides what invalidates it.
type Source interface {
	// Name identifies the source and keys its cache blob.
	Name() string
	// Aggregate is config.AggregateValues or config.AggregateOptions.
	Aggregate() string
	// Fingerprint summarizes the inputs. A cached blob is reused only when
	// its fingerprint is equal.
	Fingerprint() (string, error)
	// Build reads the inputs and produces the entries.
	Build(ctx context.Context) ([]DocEntry, error)
	Marshal(entries []DocEntry) ([]byte, error)
	Unmarshal(data []byte) ([]DocEntry, error)
}

// NewSource creates the source described by cfg. A relative path is
// resolved against baseDir.
func NewSource(cfg config.SourceConfig, baseDir string) (Source, error) {
	path := cfg.Path
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	b := base{name: cfg.Name, kind: cfg.Kind, path: path, prefix: cfg.Prefix, aggregate: cfg.AggregateFor()}

	switch cfg.Kind {
	case config.SourceKindOptions:
		return &optionsSource{b}, nil
	case config.SourceKindYAML:
		return &yamlSource{b}, nil
	case config.SourceKindTOML:
		return &tomlSource{b}, nil
	case config.SourceKindComments:
		return &commentsSource{b}, nil
	}
	return nil, errors.Newf(errors.ConfigInvalid, "source %s: unknown kind %q", cfg.Name, cfg.Kind)
}

// SourcesFromConfig creates every configured source.
func SourcesFromConfig(cfgs []config.SourceConfig, baseDir string) ([]Source, error) {
	out := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		src, err := NewSource(c, baseDir)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// base carries what every source kind shares.
type base struct {
	name      string
	kind      string
	path      string
	prefix    string
	aggregate string
}

func (b base) Name() string      { return b.name }
func (b base) Aggregate() string { return b.aggregate }

// qualify prepends the configured prefix to a dotted name.
func (b base) qualify(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "." + name
}

// fingerprint hashes the source settings together with the size and
// modification time of each input file.
func (b base) fingerprint(files []string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", b.kind, b.path, b.prefix)
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return "", errors.New(errors.SourceUnavailable, "source "+b.name+": cannot stat "+f, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", f, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (b base) readFile() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, errors.New(errors.SourceUnavailable, "source "+b.name+": cannot read "+b.path, err)
	}
	return data, nil
}

func (b base) malformed(err error) error {
	return errors.New(errors.SourceUnavailable, "source "+b.name+": malformed "+b.kind+" file "+b.path, err)
}

// jsonBlob is the cache format of sources that have no native one.
type jsonBlob struct{}

func (jsonBlob) Marshal(entries []DocEntry) ([]byte, error) { return json.Marshal(entries) }

func (jsonBlob) Unmarshal(data []byte) ([]DocEntry, error) {
	var entries []DocEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// optionsSource reads a NixOS or Home Manager options.json.
type optionsSource struct{ base }

type optionDecl struct {
	Description  json.RawMessage   `json:"description"`
	Type         string            `json:"type"`
	Default      json.RawMessage   `json:"default"`
	Example      json.RawMessage   `json:"example"`
	Declarations []json.RawMessage `json:"declarations"`
	ReadOnly     bool              `json:"readOnly"`
}

func (s *optionsSource) Fingerprint() (string, error) { return s.fingerprint([]string{s.path}) }

func (s *optionsSource) Build(ctx context.Context) ([]DocEntry, error) {
	data, err := s.readFile()
	if err != nil {
		return nil, err
	}
	var decls map[string]optionDecl
	if err := json.Unmarshal(data, &decls); err != nil {
		return nil, s.malformed(err)
	}

	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]DocEntry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := decls[name]
		full := s.qualify(name)
		var declared []string
		for _, raw := range d.Declarations {
			if text := declarationText(raw); text != "" {
				declared = append(declared, text)
			}
		}
		entries = append(entries, DocEntry{
			Name:   full,
			Source: s.name,
			Documentation: render(docFields{
				Name:         full,
				Description:  literalText(d.Description),
				Type:         d.Type,
				Default:      literalText(d.Default),
				Example:      literalText(d.Example),
				ReadOnly:     d.ReadOnly,
				Declarations: declared,
			}),
		})
	}
	return entries, nil
}

func (s *optionsSource) Marshal(entries []DocEntry) ([]byte, error) {
	return jsonBlob{}.Marshal(entries)
}

func (s *optionsSource) Unmarshal(data []byte) ([]DocEntry, error) {
	return jsonBlob{}.Unmarshal(data)
}

// declaredEntry is one item of a hand-written yaml or toml documentation
// list.
type declaredEntry struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description" toml:"description"`
	Type        string `yaml:"type" toml:"type"`
	Example     string `yaml:"example" toml:"example"`
}

type declaredFile struct {
	Entries []declaredEntry `yaml:"entries" toml:"entries"`
}

// blobFile wraps cached entries for formats that need a top-level table.
type blobFile struct {
	Entries []DocEntry `yaml:"entries" toml:"entries"`
}

func (b base) declaredEntries(f declaredFile) []DocEntry {
	entries := make([]DocEntry, 0, len(f.Entries))
	for _, e := range f.Entries {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		full := b.qualify(e.Name)
		entries = append(entries, DocEntry{
			Name:   full,
			Source: b.name,
			Documentation: render(docFields{
				Name:        full,
				Description: e.Description,
				Type:        e.Type,
				Example:     e.Example,
			}),
		})
	}
	return entries
}

// commentsSource documents the bindings of a directory of Nix files by the
// comments that precede them.
type commentsSource struct{ base }

// nixFiles lists the .nix files below the source directory in lexical
// order. A single file is also accepted.
func (s *commentsSource) nixFiles() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, errors.New(errors.SourceUnavailable, "source "+s.name+": cannot stat "+s.path, err)
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	files, err := paths.NixFiles(s.path)
	if err != nil {
		return nil, errors.New(errors.SourceUnavailable, "source "+s.name+": cannot walk "+s.path, err)
	}
	return files, nil
}

func (s *commentsSource) Fingerprint() (string, error) {
	files, err := s.nixFiles()
	if err != nil {
		return "", err
	}
	return s.fingerprint(files)
}

func (s *commentsSource) Marshal(entries []DocEntry) ([]byte, error) {
	return jsonBlob{}.Marshal(entries)
}

func (s *commentsSource) Unmarshal(data []byte) ([]DocEntry, error) {
	return jsonBlob{}.Unmarshal(data)
}
