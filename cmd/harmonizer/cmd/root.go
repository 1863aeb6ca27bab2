// Package cmd implements the harmonizer CLI command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crosspoll/harmonizer/internal/cmd/globals"
	"github.com/crosspoll/harmonizer/internal/config"
	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/logging"
)

var (
	configFile  string
	storePath   string
	themesPath  string
	globalFlags *globals.Flags

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
	// BuiltBy is the build system identifier.
	BuiltBy = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "harmonizer",
	Short: "Survey schema reconciliation CLI",
	Long: `Harmonizer reconciles heterogeneous per-period survey tables into one
harmonized dataset: it collects the universe of raw column keys, obtains
candidate canonical mappings from naming oracles, selects a single
authoritative mapping, applies it uniformly across periods, and reshapes
the result (explode, theme labeling, flatten) with a final
type-inference pass.

Tables live in a SQLite store between stages, so every stage can be run
independently and resumed from stored state.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute(version, commit, date, builtBy string) {
	Version = version
	Commit = commit
	Date = date
	BuiltBy = builtBy

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, constants.CommandTimeout)
	defer cancelTimeout()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddGroup(&cobra.Group{
		ID:    "pipeline",
		Title: "Pipeline Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.harmonizer.yaml)")
	rootCmd.PersistentFlags().StringVar(&storePath, "db", "",
		"SQLite store path (default $HARMONIZER_DB or "+constants.DefaultStorePath+")")
	rootCmd.PersistentFlags().StringVar(&themesPath, "themes", "",
		"theme table YAML (default $HARMONIZER_THEMES or the embedded table)")
	globalFlags = globals.AddFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".harmonizer")
	}

	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	config.BindEnv()

	if err := viper.ReadInConfig(); err == nil && globalFlags != nil && globalFlags.Verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	configureLogging()
}

// configureLogging sets up the logging system based on configuration.
func configureLogging() {
	level := zerolog.InfoLevel
	if globalFlags != nil && globalFlags.Verbose {
		level = zerolog.DebugLevel
	}
	if globalFlags != nil && globalFlags.Quiet {
		level = zerolog.WarnLevel
	}
	if envLevel := config.GetString(config.EnvLogLevel); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(envLevel); err == nil {
			level = parsed
		}
	}

	cfg := &logging.Config{
		Level:     level.String(),
		Format:    config.GetString(config.EnvLogFormat),
		Output:    "stderr",
		AddCaller: level <= zerolog.DebugLevel,
	}
	if cfg.Format == "" {
		cfg.Format = "auto"
	}

	logging.Configure(cfg)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local is loaded first so its values win; godotenv never
// overrides variables that are already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		if err := godotenv.Load(envFile); err == nil {
			if globalFlags != nil && globalFlags.Verbose {
				fmt.Fprintf(os.Stderr, "Loaded %s\n", envFile)
			}
		}
	}
}
