package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// EnvOverride records one environment variable applied to the config.
type EnvOverride struct {
	EnvVar string
	Path   string
	Value  string
}

// envVarMappings maps environment variables to config paths.
var envVarMappings = map[string]string{
	"NIXLSP_LOG_LEVEL":                         "logging.level",
	"NIXLSP_LOGGING_LEVEL":                     "logging.level",
	"NIXLSP_LOGGING_FORMAT":                    "logging.format",
	"NIXLSP_LOGGING_SERVER":                    "logging.server",
	"NIXLSP_LOGGING_INDEX":                     "logging.index",
	"NIXLSP_LOGGING_STDERR":                    "logging.stderr",
	"NIXLSP_LOGGING_MAX_SIZE":                  "logging.maxSize",
	"NIXLSP_LOGGING_MAX_BACKUPS":               "logging.maxBackups",
	"NIXLSP_RESOLVER_MAX_IMPORT_DEPTH":         "resolver.maxImportDepth",
	"NIXLSP_COMPLETION_STRICT_NAMESPACE_MATCH": "completion.strictNamespaceMatch",
	"NIXLSP_COMPLETION_SCOPE_COMPLETIONS":      "completion.scopeCompletions",
	"NIXLSP_COMPLETION_NAMESPACE_PREFIXES":     "completion.namespacePrefixes",
	"NIXLSP_KNOWLEDGE_BASE_CACHE_DIR":          "knowledgeBase.cacheDir",
}

// ApplyEnvOverrides applies NIXLSP_* variables to cfg. Values that fail to
// parse are ignored.
func ApplyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride
	for _, envVar := range GetSupportedEnvVars() {
		value, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}
		path := envVarMappings[envVar]
		if applyOverride(cfg, path, value) {
			overrides = append(overrides, EnvOverride{EnvVar: envVar, Path: path, Value: value})
		}
	}
	return overrides
}

// applyOverride sets the field at path. It reports whether the path was
// known and the value parsed.
func applyOverride(cfg *Config, path, value string) bool {
	switch path {
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "logging.server":
		cfg.Logging.Server = value
	case "logging.index":
		cfg.Logging.Index = value
	case "logging.maxSize":
		cfg.Logging.MaxSize = value
	case "logging.stderr":
		return setBool(&cfg.Logging.Stderr, value)
	case "logging.maxBackups":
		return setInt(&cfg.Logging.MaxBackups, value)
	case "resolver.maxImportDepth":
		return setInt(&cfg.Resolver.MaxImportDepth, value)
	case "completion.strictNamespaceMatch":
		return setBool(&cfg.Completion.StrictNamespaceMatch, value)
	case "completion.scopeCompletions":
		return setBool(&cfg.Completion.ScopeCompletions, value)
	case "completion.namespacePrefixes":
		cfg.Completion.NamespacePrefixes = splitList(value)
	case "knowledgeBase.cacheDir":
		cfg.KnowledgeBase.CacheDir = value
	default:
		return false
	}
	return true
}

func setBool(dst *bool, value string) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	*dst = b
	return true
}

func setInt(dst *int, value string) bool {
	n, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	*dst = n
	return true
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetSupportedEnvVars returns the supported environment variables, sorted.
func GetSupportedEnvVars() []string {
	vars := make([]string, 0, len(envVarMappings))
	for v := range envVarMappings {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}
