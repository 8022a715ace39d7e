package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"nixlsp/internal/paths"
)

// CurrentConfigVersion is the schema version written by Save.
const CurrentConfigVersion = 1

// SupportedConfigVersions lists the schema versions LoadConfig accepts.
var SupportedConfigVersions = []int{1}

// ConfigFileName is the file searched for in the workspace and user config dirs.
const ConfigFileName = "config.toml"

// ConfigPathEnvVar points at an explicit config file and skips the search.
const ConfigPathEnvVar = "NIXLSP_CONFIG_PATH"

// Config represents the complete nixlsp configuration.
type Config struct {
	Version int `toml:"version" mapstructure:"version"`

	Logging       LoggingConfig       `toml:"logging" mapstructure:"logging"`
	Resolver      ResolverConfig      `toml:"resolver" mapstructure:"resolver"`
	Completion    CompletionConfig    `toml:"completion" mapstructure:"completion"`
	KnowledgeBase KnowledgeBaseConfig `toml:"knowledgeBase" mapstructure:"knowledgeBase"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `toml:"format" mapstructure:"format"`
	Level  string `toml:"level" mapstructure:"level"`
	// Server and Index override Level for one subsystem.
	Server     string `toml:"server,omitempty" mapstructure:"server"`
	Index      string `toml:"index,omitempty" mapstructure:"index"`
	MaxSize    string `toml:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `toml:"maxBackups" mapstructure:"maxBackups"`
	Stderr     bool   `toml:"stderr" mapstructure:"stderr"`
}

// ResolverConfig bounds import following.
type ResolverConfig struct {
	MaxImportDepth int `toml:"maxImportDepth" mapstructure:"maxImportDepth"`
}

// CompletionConfig tunes the namespace completion engine.
type CompletionConfig struct {
	// StrictNamespaceMatch requires every typed segment to equal the
	// corresponding entry segment (case-insensitively) before an entry is
	// classified.
	StrictNamespaceMatch bool `toml:"strictNamespaceMatch" mapstructure:"strictNamespaceMatch"`
	// ScopeCompletions adds in-scope bindings to single-segment completions.
	ScopeCompletions bool `toml:"scopeCompletions" mapstructure:"scopeCompletions"`
	// NamespacePrefixes are always tried in addition to the typed path,
	// for example "pkgs" or "lib".
	NamespacePrefixes []string `toml:"namespacePrefixes" mapstructure:"namespacePrefixes"`
}

// KnowledgeBaseConfig lists documentation sources and where their cache lives.
type KnowledgeBaseConfig struct {
	// CacheDir holds the SQLite blob cache. Empty means the nixlsp home.
	CacheDir string         `toml:"cacheDir,omitempty" mapstructure:"cacheDir"`
	Sources  []SourceConfig `toml:"sources" mapstructure:"sources"`
}

// Source kinds understood by the knowledge base loader.
const (
	SourceKindOptions  = "options"
	SourceKindYAML     = "yaml"
	SourceKindTOML     = "toml"
	SourceKindComments = "comments"
)

// Aggregates a source can feed.
const (
	AggregateValues  = "values"
	AggregateOptions = "options"
)

// SourceConfig declares one documentation source.
type SourceConfig struct {
	Name      string `toml:"name" mapstructure:"name"`
	Kind      string `toml:"kind" mapstructure:"kind"`
	Path      string `toml:"path" mapstructure:"path"`
	Aggregate string `toml:"aggregate,omitempty" mapstructure:"aggregate"`
	// Prefix is prepended to every name the source produces.
	Prefix string `toml:"prefix,omitempty" mapstructure:"prefix"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxBackups: 3,
		},
		Resolver: ResolverConfig{
			MaxImportDepth: 32,
		},
		Completion: CompletionConfig{
			StrictNamespaceMatch: false,
			ScopeCompletions:     true,
			NamespacePrefixes:    []string{},
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Sources: []SourceConfig{},
		},
	}
}

// LoadResult contains the loaded config and where it came from.
type LoadResult struct {
	Config       *Config
	ConfigPath   string // empty when defaults were used
	UsedDefaults bool
	EnvOverrides []EnvOverride
}

// LoadConfig loads configuration for a workspace, applying env overrides.
func LoadConfig(workspaceRoot string) (*Config, error) {
	result, err := LoadConfigWithDetails(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration and reports its origin.
// Search order: $NIXLSP_CONFIG_PATH, <workspace>/.nixlsp/config.toml,
// <user config dir>/config.toml.
func LoadConfigWithDetails(workspaceRoot string) (*LoadResult, error) {
	result := &LoadResult{}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		cfg, err := LoadConfigFromPath(envPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s=%s: %w", ConfigPathEnvVar, envPath, err)
		}
		result.Config = cfg
		result.ConfigPath = envPath
	} else {
		v := newViper()
		if workspaceRoot != "" {
			v.AddConfigPath(filepath.Join(workspaceRoot, paths.ProjectDirName))
		}
		if dir, err := paths.GetUserConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
			result.Config = DefaultConfig()
			result.UsedDefaults = true
		} else {
			cfg, err := decode(v)
			if err != nil {
				return nil, err
			}
			result.Config = cfg
			result.ConfigPath = v.ConfigFileUsed()
		}
	}

	result.EnvOverrides = ApplyEnvOverrides(result.Config)
	return result, nil
}

// LoadConfigFromPath loads a single config file without env overrides.
func LoadConfigFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	v.SetConfigType("toml")
	return v
}

// decode unmarshals on top of the defaults so omitted keys keep them.
func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigPath returns the workspace config file location.
func ConfigPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, paths.ProjectDirName, ConfigFileName)
}

// Save writes the configuration to <workspace>/.nixlsp/config.toml.
func (c *Config) Save(workspaceRoot string) error {
	return c.SaveTo(ConfigPath(workspaceRoot))
}

// SaveTo writes the configuration as TOML to path, creating parent dirs.
func (c *Config) SaveTo(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = "  "
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}

	if c.Resolver.MaxImportDepth < 1 {
		return &ConfigError{Field: "resolver.maxImportDepth", Message: "must be at least 1"}
	}

	seen := make(map[string]bool)
	for i, src := range c.KnowledgeBase.Sources {
		field := fmt.Sprintf("knowledgeBase.sources[%d]", i)
		if src.Name == "" {
			return &ConfigError{Field: field + ".name", Message: "must not be empty"}
		}
		if seen[src.Name] {
			return &ConfigError{Field: field + ".name", Message: "duplicate source name " + src.Name}
		}
		seen[src.Name] = true

		switch src.Kind {
		case SourceKindOptions, SourceKindYAML, SourceKindTOML, SourceKindComments:
		default:
			return &ConfigError{Field: field + ".kind", Message: "unknown source kind " + src.Kind}
		}
		if src.Path == "" {
			return &ConfigError{Field: field + ".path", Message: "must not be empty"}
		}
		switch src.Aggregate {
		case "", AggregateValues, AggregateOptions:
		default:
			return &ConfigError{Field: field + ".aggregate", Message: "must be values or options"}
		}
	}
	return nil
}

// AggregateFor returns the aggregate a source feeds. Options sources
// default to the options aggregate, everything else to values.
func (s SourceConfig) AggregateFor() string {
	if s.Aggregate != "" {
		return s.Aggregate
	}
	if s.Kind == SourceKindOptions {
		return AggregateOptions
	}
	return AggregateValues
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
