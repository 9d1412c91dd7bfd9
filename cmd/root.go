package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/auth"
	"github.com/joescharf/civic/internal/category"
	"github.com/joescharf/civic/internal/issues"
	"github.com/joescharf/civic/internal/llm"
	"github.com/joescharf/civic/internal/logging"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
	asEmail string
)

var rootCmd = &cobra.Command{
	Use:   "civic",
	Short: "Civic issue reporting - zone routing for Coimbatore District",
	Long: `civic records civic issues reported by citizens, classifies each one
into a zone of Coimbatore District from its GPS coordinates, routes it to
the regional official for that zone, and notifies the reporter when the
status changes.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/civic/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&asEmail, "as", "", "Act as the user with this email (default: local operator with ADMIN role)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "civic")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// A .env file in the working directory may supply CIVIC_* variables.
	// Variables already set in the environment win.
	_ = godotenv.Load()

	bindEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "civic"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// bindEnv maps nested keys to CIVIC_* variables, so server.addr reads
// CIVIC_SERVER_ADDR.
func bindEnv() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every config key with its default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "civic.db"))
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("auth.bcrypt_cost", 10)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("metrics.enabled", true)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Initialize store lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newLogger builds the service logger from config. Logs go to stderr so they
// never mix with command output.
func newLogger() (*slog.Logger, error) {
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	return logging.New(level, viper.GetString("log.format"), os.Stderr)
}

// app bundles the services a command needs.
type app struct {
	store     store.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	hasher    *auth.Hasher
	issues    *issues.Service
	accounts  *accounts.Service
	suggester *category.Suggester
}

func newApp() (*app, error) {
	if err := checkConfig(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if viper.GetBool("metrics.enabled") {
		m = metrics.New()
	}

	var model category.Model
	if key := viper.GetString("anthropic.api_key"); key != "" {
		model = llm.NewClient(key, viper.GetString("anthropic.model"))
	}

	hasher := auth.NewHasher(viper.GetInt("auth.bcrypt_cost"))
	return &app{
		store:     s,
		logger:    logger,
		metrics:   m,
		hasher:    hasher,
		issues:    issues.NewService(s, logger, m),
		accounts:  accounts.NewService(s, hasher, logger, m),
		suggester: category.NewSuggester(model, logger),
	}, nil
}

// actor returns the identity selected with --as, or the local operator.
func (a *app) actor(ctx context.Context) (models.Actor, error) {
	if asEmail == "" {
		return models.OperatorActor(), nil
	}
	u, err := a.accounts.UserByEmail(ctx, asEmail)
	if err != nil {
		return models.Actor{}, fmt.Errorf("--as %s: %w", asEmail, err)
	}
	return u.Actor(), nil
}
