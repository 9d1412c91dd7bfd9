package cmd

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/logging"
)

const envPrefix = "CIVIC"

// setting is one config key as documented in config.yaml and `config show`.
type setting struct {
	Key     string // dotted viper key
	Comment string
	Secret  bool // never written to config.yaml, masked in output
}

var settings = []setting{
	{Key: "state_dir", Comment: "Directory for the database, PID file and server log"},
	{Key: "db_path", Comment: "SQLite database file"},
	{Key: "server.addr", Comment: "HTTP API listen address"},
	{Key: "log.level", Comment: "debug, info, warn or error"},
	{Key: "log.format", Comment: "text or json"},
	{Key: "auth.bcrypt_cost", Comment: "bcrypt cost for stored passwords (4-31)"},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "anthropic.model", Comment: "Model used for category suggestions. Without an API key, keyword rules are used"},
	{Key: "metrics.enabled", Comment: "Serve Prometheus metrics at /metrics"},
}

// envVar returns the environment variable viper reads for key.
func envVar(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "civic"), nil
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Settings come from CIVIC_* environment variables, then
~/.config/civic/config.yaml, then built-in defaults. Bare 'civic config'
shows the effective values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.yaml from the current effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show each setting, its value and where it came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfig(); err != nil {
			return err
		}
		ui.Success("Configuration is valid")
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config.yaml in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config.yaml")
	configCmd.AddCommand(configInitCmd, configShowCmd, configCheckCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// renderConfig builds config.yaml from the settings table, one commented
// entry per key, grouped by section. Secrets are left to the environment.
func renderConfig() ([]byte, error) {
	root := &yaml.Node{
		Kind:        yaml.MappingNode,
		HeadComment: "civic configuration\nEffective values and their sources: civic config show",
	}
	sections := map[string]*yaml.Node{}

	for _, s := range settings {
		section, name, nested := strings.Cut(s.Key, ".")
		parent := root
		if nested {
			parent = sections[section]
			if parent == nil {
				parent = &yaml.Node{Kind: yaml.MappingNode}
				root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: section}, parent)
				sections[section] = parent
			}
		} else {
			name = section
		}

		if s.Secret {
			parent.HeadComment = fmt.Sprintf("%s is read from %s", name, envVar(s.Key))
			continue
		}

		var value yaml.Node
		if err := value.Encode(viper.Get(s.Key)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.Key, err)
		}
		parent.Content = append(parent.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name, HeadComment: s.Comment},
			&value,
		)
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting %s", cfgPath)
	}

	data, err := renderConfig()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would write %s", cfgPath)
		fmt.Fprint(ui.Out, string(data))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Wrote %s", cfgPath)
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	fileValues := readConfigFileValues(cfgPath)
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, s := range settings {
		val := fmt.Sprint(viper.Get(s.Key))
		if s.Secret {
			val = maskSecret(viper.GetString(s.Key))
		}
		_ = table.Append([]string{s.Key, val, detectSource(s.Key, envVar(s.Key), fileValues)})
	}
	_ = table.Render()
	return nil
}

// checkConfig validates the settings the services depend on, reporting every
// bad key at once.
func checkConfig() error {
	var v apperr.Validator

	_, err := logging.ParseLevel(viper.GetString("log.level"))
	v.Check(err == nil, "log.level", "must be debug, info, warn or error")

	format := viper.GetString("log.format")
	v.Check(format == "text" || format == "json", "log.format", "must be text or json")

	cost := viper.GetInt("auth.bcrypt_cost")
	v.Check(cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost, "auth.bcrypt_cost",
		fmt.Sprintf("must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))

	_, _, err = net.SplitHostPort(viper.GetString("server.addr"))
	v.Check(err == nil, "server.addr", "must be host:port or :port")

	v.Require("db_path", viper.GetString("db_path"), "is required")

	return v.Err()
}

// maskSecret hides all but the last four characters of a secret.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// readConfigFileValues returns the dotted keys present in the YAML file.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys records leaf keys of a nested map in dot notation.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(key, nested, result)
			continue
		}
		result[key] = true
	}
}

// detectSource reports where viper resolved key from. Environment wins over
// the file, which wins over defaults.
func detectSource(key, env string, fileValues map[string]bool) string {
	switch {
	case os.Getenv(env) != "":
		return fmt.Sprintf("(env: %s)", env)
	case fileValues[key]:
		return "(file)"
	default:
		return "(default)"
	}
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'civic config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	edit := exec.Command(editor, cfgPath)
	edit.Stdin, edit.Stdout, edit.Stderr = os.Stdin, os.Stdout, os.Stderr
	return edit.Run()
}
