package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"nixlsp/internal/config"
)

var (
	configFormat string
	configDiff   bool
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage configuration",
	Long:  `Commands for viewing, creating and understanding the nixlsp configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration nixlsp would use in this workspace, including
environment variable overrides.

Examples:
  nixlsp config show                  # Show full config
  nixlsp config show --format json    # Output as JSON
  nixlsp config show --diff           # Show only values differing from defaults`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .nixlsp/config.toml",
	RunE:  runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Long:  `List every NIXLSP_* environment variable and the config key it overrides.`,
	RunE:  runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (json, human)")
	configShowCmd.Flags().BoolVar(&configDiff, "diff", false, "Show only values that differ from defaults")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the JSON form of `config show`.
type ConfigShowResponse struct {
	ConfigPath   string                 `json:"configPath,omitempty"`
	UsedDefaults bool                   `json:"usedDefaults"`
	EnvOverrides []EnvOverrideInfo      `json:"envOverrides,omitempty"`
	Config       map[string]interface{} `json:"config"`
}

// EnvOverrideInfo describes one applied environment override.
type EnvOverrideInfo struct {
	EnvVar string `json:"envVar"`
	Path   string `json:"path"`
	Value  string `json:"value"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(configFormat)
	if err != nil {
		return err
	}
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	result, err := config.LoadConfigWithDetails(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	current, err := configMap(result.Config)
	if err != nil {
		return err
	}
	if configDiff {
		defaults, err := configMap(config.DefaultConfig())
		if err != nil {
			return err
		}
		current = computeDiff(current, defaults)
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		resp := ConfigShowResponse{
			ConfigPath:   result.ConfigPath,
			UsedDefaults: result.UsedDefaults,
			Config:       current,
		}
		for _, o := range result.EnvOverrides {
			resp.EnvOverrides = append(resp.EnvOverrides, EnvOverrideInfo(o))
		}
		return writeJSON(out, resp)
	}
	outputConfigHuman(out, result, current)
	return nil
}

func outputConfigHuman(w io.Writer, result *config.LoadResult, values map[string]interface{}) {
	if result.UsedDefaults {
		fmt.Fprintln(w, "Config: defaults (no config file found)")
	} else {
		fmt.Fprintf(w, "Config: %s\n", result.ConfigPath)
	}
	if len(result.EnvOverrides) > 0 {
		fmt.Fprintln(w, "Environment overrides:")
		for _, o := range result.EnvOverrides {
			fmt.Fprintf(w, "  %s=%s (%s)\n", o.EnvVar, o.Value, o.Path)
		}
	}
	fmt.Fprintln(w)

	lines := flatten("", values)
	if len(lines) == 0 {
		fmt.Fprintln(w, "All values are defaults.")
		return
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// flatten renders nested tables as sorted "a.b = value" lines.
func flatten(prefix string, values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := values[k].(map[string]interface{}); ok {
			lines = append(lines, flatten(path, nested)...)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s = %s", path, formatValue(values[k])))
	}
	return lines
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []map[string]interface{}:
		return fmt.Sprintf("(%d tables)", len(val))
	}
	return fmt.Sprintf("%v", v)
}

// configMap converts cfg to the generic table form of its TOML encoding,
// so keys match the file.
func configMap(cfg *config.Config) (map[string]interface{}, error) {
	data, err := cfg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	m := make(map[string]interface{})
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return m, nil
}

// computeDiff returns the entries of current that differ from defaults.
// Nested tables are compared key by key.
func computeDiff(current, defaults map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for key, value := range current {
		def, exists := defaults[key]
		if !exists {
			diff[key] = value
			continue
		}
		nested, ok := value.(map[string]interface{})
		defNested, defOk := def.(map[string]interface{})
		if ok && defOk {
			if sub := computeDiff(nested, defNested); len(sub) > 0 {
				diff[key] = sub
			}
			continue
		}
		if !isEqual(value, def) {
			diff[key] = value
		}
	}
	return diff
}

func isEqual(a, b interface{}) bool {
	return cmp.Equal(a, b)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	path := config.ConfigPath(root)
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Supported environment variables:")
	fmt.Fprintln(out)
	for _, envVar := range config.GetSupportedEnvVars() {
		value := os.Getenv(envVar)
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintf(out, "  %-42s %s\n", envVar, value)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-42s %s\n", config.ConfigPathEnvVar, "explicit config file path")
	return nil
}
