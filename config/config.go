package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/meysamhadeli/gitshape/diffshape"
	"github.com/meysamhadeli/gitshape/diffshape/models"
	"github.com/meysamhadeli/gitshape/logging"
	"github.com/meysamhadeli/gitshape/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config represents the structure of the configuration file
type Config struct {
	Version          string   `mapstructure:"version"`
	Algorithm        int      `mapstructure:"algorithm"`
	MaxChars         int      `mapstructure:"max_chars"`
	PerFileHunkCap   int      `mapstructure:"per_file_hunk_cap"`
	MaxHunks         int      `mapstructure:"max_hunks"`
	PreviewLines     int      `mapstructure:"preview_lines"`
	MinPreviewLines  int      `mapstructure:"min_preview_lines"`
	PreviewLineChars int      `mapstructure:"preview_line_chars"`
	Workers          int      `mapstructure:"workers"`
	Theme            string   `mapstructure:"theme"`
	LogLevel         string   `mapstructure:"log_level"`
	LogFormat        string   `mapstructure:"log_format"`
	Model            string   `mapstructure:"model"`
	NoisePatterns    []string `mapstructure:"noise_patterns"`
	DefaultNoise     bool     `mapstructure:"default_noise"`
	IgnoreFile       string   `mapstructure:"ignore_file"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Version:          "0.4.0",
	Algorithm:        models.StrategySemanticJSON.Number(),
	MaxChars:         models.DefaultMaxChars,
	PerFileHunkCap:   models.DefaultPerFileHunkCap,
	MaxHunks:         models.DefaultMaxHunks,
	PreviewLines:     models.DefaultPreviewLines,
	MinPreviewLines:  models.DefaultMinPreviewLines,
	PreviewLineChars: models.DefaultPreviewLineChars,
	Workers:          0,
	Theme:            "dracula",
	LogLevel:         "warn",
	LogFormat:        logging.FormatText,
	Model:            "gpt-4o",
	DefaultNoise:     true,
	IgnoreFile:       utils.IgnoreFileName,
}

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "GITSHAPE"

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// LoadConfigs initializes the configuration from .env, file, environment and flags, in increasing priority.
func LoadConfigs(rootCmd *cobra.Command, cwd string) (*Config, error) {
	if err := LoadDotEnv(cwd); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	bindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	} else {
		// gitshape-config.yaml, .yml or .json in the working directory
		v.SetConfigName("gitshape-config")
		v.AddConfigPath(cwd)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if rootCmd != nil {
		bindFlags(v, rootCmd)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &config, nil
}

// LoadDotEnv loads a .env file from cwd into the process environment.
// A missing file is not an error and variables already set are kept.
func LoadDotEnv(cwd string) error {
	path := filepath.Join(cwd, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", DefaultConfig.Version)
	v.SetDefault("algorithm", DefaultConfig.Algorithm)
	v.SetDefault("max_chars", DefaultConfig.MaxChars)
	v.SetDefault("per_file_hunk_cap", DefaultConfig.PerFileHunkCap)
	v.SetDefault("max_hunks", DefaultConfig.MaxHunks)
	v.SetDefault("preview_lines", DefaultConfig.PreviewLines)
	v.SetDefault("min_preview_lines", DefaultConfig.MinPreviewLines)
	v.SetDefault("preview_line_chars", DefaultConfig.PreviewLineChars)
	v.SetDefault("workers", DefaultConfig.Workers)
	v.SetDefault("theme", DefaultConfig.Theme)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
	v.SetDefault("log_format", DefaultConfig.LogFormat)
	v.SetDefault("model", DefaultConfig.Model)
	v.SetDefault("noise_patterns", []string{})
	v.SetDefault("default_noise", DefaultConfig.DefaultNoise)
	v.SetDefault("ignore_file", DefaultConfig.IgnoreFile)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("algorithm", "GITSHAPE_ALGORITHM")
	_ = v.BindEnv("max_chars", "GITSHAPE_MAX_CHARS")
	_ = v.BindEnv("per_file_hunk_cap", "GITSHAPE_PER_FILE_HUNK_CAP")
	_ = v.BindEnv("max_hunks", "GITSHAPE_MAX_HUNKS")
	_ = v.BindEnv("preview_lines", "GITSHAPE_PREVIEW_LINES")
	_ = v.BindEnv("min_preview_lines", "GITSHAPE_MIN_PREVIEW_LINES")
	_ = v.BindEnv("preview_line_chars", "GITSHAPE_PREVIEW_LINE_CHARS")
	_ = v.BindEnv("workers", "GITSHAPE_WORKERS")
	_ = v.BindEnv("theme", "GITSHAPE_THEME")
	_ = v.BindEnv("log_level", "GITSHAPE_LOG_LEVEL")
	_ = v.BindEnv("log_format", "GITSHAPE_LOG_FORMAT")
	_ = v.BindEnv("model", "GITSHAPE_MODEL")
	_ = v.BindEnv("noise_patterns", "GITSHAPE_NOISE_PATTERNS")
	_ = v.BindEnv("default_noise", "GITSHAPE_DEFAULT_NOISE")
	_ = v.BindEnv("ignore_file", "GITSHAPE_IGNORE_FILE")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(v *viper.Viper, rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	for _, key := range []string{
		"algorithm", "max_chars", "per_file_hunk_cap", "max_hunks", "preview_lines",
		"min_preview_lines", "preview_line_chars", "workers", "theme", "log_level",
		"log_format", "model",
	} {
		if f := flags.Lookup(key); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	// Use PersistentFlags so that these flags are available in all subcommands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().IntP("algorithm", "a", DefaultConfig.Algorithm, "Shaping algorithm: 1 full diff, 2 selective files, 3 selective hunks, 4 semantic JSON.")
	rootCmd.PersistentFlags().IntP("max_chars", "m", DefaultConfig.MaxChars, "Maximum characters of the shaped payload.")
	rootCmd.PersistentFlags().Int("per_file_hunk_cap", DefaultConfig.PerFileHunkCap, "Maximum hunks taken from a single file.")
	rootCmd.PersistentFlags().Int("max_hunks", DefaultConfig.MaxHunks, "Maximum hunk previews in the semantic JSON document.")
	rootCmd.PersistentFlags().Int("preview_lines", DefaultConfig.PreviewLines, "Changed lines per hunk preview before fitting.")
	rootCmd.PersistentFlags().Int("min_preview_lines", DefaultConfig.MinPreviewLines, "Smallest preview the fitter may shrink to.")
	rootCmd.PersistentFlags().Int("preview_line_chars", DefaultConfig.PreviewLineChars, "Maximum characters of one preview line.")
	rootCmd.PersistentFlags().Int("workers", DefaultConfig.Workers, "Scoring workers (0 uses all CPUs).")

	rootCmd.PersistentFlags().String("theme", DefaultConfig.Theme, "Set customize theme for highlighting payloads. (e.g., 'dracula', 'github', 'monokai')")
	rootCmd.PersistentFlags().String("log_level", DefaultConfig.LogLevel, "Log level: debug, info, warn or error.")
	rootCmd.PersistentFlags().String("log_format", DefaultConfig.LogFormat, "Log format: text or json.")
	rootCmd.PersistentFlags().String("model", DefaultConfig.Model, "Model used for the token cost estimate, such as 'gpt-4o'.")

	// Version flag
	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")
}

// Options converts the configuration to engine options.
func (c *Config) Options() models.Options {
	return models.Options{
		Strategy:         models.Strategy(c.Algorithm),
		MaxChars:         c.MaxChars,
		PerFileHunkCap:   c.PerFileHunkCap,
		MaxHunks:         c.MaxHunks,
		PreviewLines:     c.PreviewLines,
		MinPreviewLines:  c.MinPreviewLines,
		PreviewLineChars: c.PreviewLineChars,
		Workers:          c.Workers,
	}.WithDefaults()
}

// Validate checks the configuration before any diff is read.
func (c *Config) Validate() error {
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("invalid configuration: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// EngineConfig builds the engine tables from the ignore file in cwd, then
// configured patterns, then the built-in noise rules (unless disabled). The
// first matching rule decides, so a "!pattern" in the ignore file can keep
// a path the built-in rules would drop.
func (c *Config) EngineConfig(cwd string, logger *slog.Logger) (diffshape.Config, error) {
	cfg := diffshape.DefaultConfig()
	cfg.Logger = logger

	rules := []diffshape.NoiseRule{}
	if c.IgnoreFile != "" {
		patterns, err := utils.GetIgnorePatterns(cwd, c.IgnoreFile)
		if err != nil {
			return cfg, err
		}
		rules = append(rules, diffshape.GlobRules(c.IgnoreFile, patterns)...)
	}
	rules = append(rules, diffshape.GlobRules("config", c.NoisePatterns)...)
	if c.DefaultNoise {
		rules = append(rules, cfg.Noise.Rules...)
	}
	cfg.Noise.Rules = rules
	return cfg, nil
}
