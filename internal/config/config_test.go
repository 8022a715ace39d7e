package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nixlsp/internal/paths"
)

// isolate points the user config dir at an empty temp dir and clears
// every override variable.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(paths.HomeEnvVar, t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	os.Unsetenv(ConfigPathEnvVar)
	for _, v := range GetSupportedEnvVars() {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentConfigVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentConfigVersion)
	}
	if cfg.Resolver.MaxImportDepth != 32 {
		t.Errorf("Resolver.MaxImportDepth = %d, want 32", cfg.Resolver.MaxImportDepth)
	}
	if cfg.Completion.StrictNamespaceMatch {
		t.Error("strict namespace matching should be off by default")
	}
	if !cfg.Completion.ScopeCompletions {
		t.Error("scope completions should be on by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unsupported version", func(c *Config) { c.Version = 7 }, "version"},
		{"json logs", func(c *Config) { c.Logging.Format = "json" }, ""},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero import depth", func(c *Config) { c.Resolver.MaxImportDepth = 0 }, "resolver.maxImportDepth"},
		{"valid source", func(c *Config) {
			c.KnowledgeBase.Sources = []SourceConfig{{Name: "nixos", Kind: SourceKindOptions, Path: "options.json"}}
		}, ""},
		{"unknown kind", func(c *Config) {
			c.KnowledgeBase.Sources = []SourceConfig{{Name: "x", Kind: "xml", Path: "x.xml"}}
		}, "knowledgeBase.sources[0].kind"},
		{"missing path", func(c *Config) {
			c.KnowledgeBase.Sources = []SourceConfig{{Name: "x", Kind: SourceKindYAML}}
		}, "knowledgeBase.sources[0].path"},
		{"duplicate name", func(c *Config) {
			c.KnowledgeBase.Sources = []SourceConfig{
				{Name: "lib", Kind: SourceKindComments, Path: "lib"},
				{Name: "lib", Kind: SourceKindYAML, Path: "lib.yaml"},
			}
		}, "knowledgeBase.sources[1].name"},
		{"bad aggregate", func(c *Config) {
			c.KnowledgeBase.Sources = []SourceConfig{{Name: "x", Kind: SourceKindTOML, Path: "x.toml", Aggregate: "types"}}
		}, "knowledgeBase.sources[0].aggregate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() returned unexpected error: %v", err)
				}
				return
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() error = %v (%T), want *ConfigError", err, err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "version", Message: "unsupported config version 99"}
	want := "config error in field 'version': unsupported config version 99"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSourceConfig_AggregateFor(t *testing.T) {
	tests := []struct {
		src  SourceConfig
		want string
	}{
		{SourceConfig{Kind: SourceKindOptions}, AggregateOptions},
		{SourceConfig{Kind: SourceKindComments}, AggregateValues},
		{SourceConfig{Kind: SourceKindYAML, Aggregate: AggregateOptions}, AggregateOptions},
	}
	for _, tt := range tests {
		if got := tt.src.AggregateFor(); got != tt.want {
			t.Errorf("AggregateFor(%+v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestLoadConfig_Default(t *testing.T) {
	isolate(t)

	result, err := LoadConfigWithDetails(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if !result.UsedDefaults {
		t.Error("UsedDefaults should be true when no config file exists")
	}
	if result.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty string", result.ConfigPath)
	}
	if diff := cmp.Diff(DefaultConfig(), result.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_FromWorkspace(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, ConfigPath(root), `
version = 1

[resolver]
maxImportDepth = 4

[completion]
namespacePrefixes = ["pkgs", "lib"]

[[knowledgeBase.sources]]
name = "nixos"
kind = "options"
path = "/run/current-system/options.json"

[[knowledgeBase.sources]]
name = "lib"
kind = "comments"
path = "/nix/var/nixpkgs/lib"
prefix = "lib"
`)

	result, err := LoadConfigWithDetails(root)
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	cfg := result.Config

	if result.UsedDefaults {
		t.Error("UsedDefaults should be false")
	}
	if result.ConfigPath != ConfigPath(root) {
		t.Errorf("ConfigPath = %q, want %q", result.ConfigPath, ConfigPath(root))
	}
	if cfg.Resolver.MaxImportDepth != 4 {
		t.Errorf("MaxImportDepth = %d, want 4", cfg.Resolver.MaxImportDepth)
	}
	if !cfg.Completion.ScopeCompletions {
		t.Error("omitted keys should keep their defaults")
	}
	if diff := cmp.Diff([]string{"pkgs", "lib"}, cfg.Completion.NamespacePrefixes); diff != "" {
		t.Errorf("NamespacePrefixes mismatch (-want +got):\n%s", diff)
	}
	wantSources := []SourceConfig{
		{Name: "nixos", Kind: "options", Path: "/run/current-system/options.json"},
		{Name: "lib", Kind: "comments", Path: "/nix/var/nixpkgs/lib", Prefix: "lib"},
	}
	if diff := cmp.Diff(wantSources, cfg.KnowledgeBase.Sources); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_UserConfigDir(t *testing.T) {
	isolate(t)
	userDir, err := paths.GetUserConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(userDir, ConfigFileName), "[logging]\nlevel = \"debug\"\n")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadConfigWithDetails_EnvConfigPath(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "custom.toml")
	writeFile(t, configPath, "[resolver]\nmaxImportDepth = 9\n")
	t.Setenv(ConfigPathEnvVar, configPath)

	result, err := LoadConfigWithDetails(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if result.ConfigPath != configPath {
		t.Errorf("ConfigPath = %q, want %q", result.ConfigPath, configPath)
	}
	if result.Config.Resolver.MaxImportDepth != 9 {
		t.Errorf("MaxImportDepth = %d, want 9", result.Config.Resolver.MaxImportDepth)
	}
}

func TestLoadConfigWithDetails_InvalidConfigPath(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := LoadConfigWithDetails(t.TempDir()); err == nil {
		t.Error("expected an error for a missing explicit config path")
	}
}

func TestLoadConfigFromPath_InvalidTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, configPath, "[resolver\nmaxImportDepth = ")

	if _, err := LoadConfigFromPath(configPath); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadConfigWithDetails_EnvOverridesApplied(t *testing.T) {
	isolate(t)
	t.Setenv("NIXLSP_RESOLVER_MAX_IMPORT_DEPTH", "8")
	t.Setenv("NIXLSP_LOG_LEVEL", "error")

	result, err := LoadConfigWithDetails(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if result.Config.Resolver.MaxImportDepth != 8 {
		t.Errorf("MaxImportDepth = %d, want 8", result.Config.Resolver.MaxImportDepth)
	}
	if result.Config.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want %q", result.Config.Logging.Level, "error")
	}
	if len(result.EnvOverrides) != 2 {
		t.Errorf("len(EnvOverrides) = %d, want 2", len(result.EnvOverrides))
	}
}

func TestApplyOverride(t *testing.T) {
	tests := []struct {
		path   string
		value  string
		ok     bool
		verify func(*Config) bool
	}{
		{"logging.stderr", "true", true, func(c *Config) bool { return c.Logging.Stderr }},
		{"logging.maxBackups", "7", true, func(c *Config) bool { return c.Logging.MaxBackups == 7 }},
		{"logging.maxBackups", "seven", false, func(c *Config) bool { return c.Logging.MaxBackups == 3 }},
		{"completion.strictNamespaceMatch", "yes", false, func(c *Config) bool { return !c.Completion.StrictNamespaceMatch }},
		{"completion.namespacePrefixes", "pkgs, lib,,", true, func(c *Config) bool {
			return strings.Join(c.Completion.NamespacePrefixes, "|") == "pkgs|lib"
		}},
		{"knowledgeBase.cacheDir", "/tmp/kb", true, func(c *Config) bool { return c.KnowledgeBase.CacheDir == "/tmp/kb" }},
		{"knowledgeBase", "x", false, func(*Config) bool { return true }},
		{"nonexistent.path", "x", false, func(*Config) bool { return true }},
	}

	for _, tt := range tests {
		t.Run(tt.path+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			if got := applyOverride(cfg, tt.path, tt.value); got != tt.ok {
				t.Errorf("applyOverride() = %v, want %v", got, tt.ok)
			}
			if !tt.verify(cfg) {
				t.Errorf("config not updated as expected: %+v", cfg)
			}
		})
	}
}

func TestGetSupportedEnvVars(t *testing.T) {
	vars := GetSupportedEnvVars()
	if len(vars) != len(envVarMappings) {
		t.Fatalf("len(vars) = %d, want %d", len(vars), len(envVarMappings))
	}
	for _, v := range vars {
		if !strings.HasPrefix(v, "NIXLSP_") {
			t.Errorf("%s lacks the NIXLSP_ prefix", v)
		}
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Completion.NamespacePrefixes = []string{"pkgs"}
	cfg.KnowledgeBase.Sources = []SourceConfig{
		{Name: "hm", Kind: SourceKindOptions, Path: "hm-options.json", Prefix: "programs"},
	}
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestSave_ErrorHandling(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "")

	// A regular file where the .nixlsp directory should be.
	if err := DefaultConfig().SaveTo(filepath.Join(file, "config.toml")); err == nil {
		t.Error("expected an error when the parent is a file")
	}
}
