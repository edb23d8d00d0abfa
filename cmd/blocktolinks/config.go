package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	blocktolinks "github.com/marcelofinamorvieira/datocms-plugin-block-to-links"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
)

const (
	CommandAnalyze = "analyze"
	CommandConvert = "convert"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config holds everything one invocation needs. Values come from the
// defaults, then the YAML file given with -config, then the flags.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	Token    string `yaml:"token"`
	PageSize int    `yaml:"page_size"`

	// SourceType is the id or api key of the block type to convert.
	SourceType       string        `yaml:"source_type"`
	Mode             string        `yaml:"mode"`
	ForceLocalized   bool          `yaml:"force_localized"`
	SkipDestructive  bool          `yaml:"skip_destructive"`
	NameSuffix       string        `yaml:"name_suffix"`
	DeleteSourceType bool          `yaml:"delete_source_type"`
	BatchSize        int           `yaml:"batch_size"`
	BatchPause       time.Duration `yaml:"batch_pause"`

	// CheckpointDir stores mapping checkpoints as files. CheckpointDSN
	// stores them in Postgres instead; setting both is an error.
	CheckpointDir string `yaml:"checkpoint_dir"`
	CheckpointDSN string `yaml:"checkpoint_dsn"`

	// ProgressAddr, if set, serves progress events over websockets on
	// /progress.
	ProgressAddr string `yaml:"progress_addr"`
	LogPath      string `yaml:"log_path"`

	// LogFormat is LogFormatJSON (zerolog lines) or LogFormatText (slog
	// text lines).
	LogFormat string `yaml:"log_format"`
	Verbose   bool   `yaml:"verbose"`

	File string `yaml:"-"`
}

func NewConfig() *Config {
	return &Config{
		BaseURL:    "https://site-api.datocms.com",
		PageSize:   constants.DefaultPageSize,
		Mode:       dast.Replace.String(),
		BatchSize:  constants.DefaultBatchSize,
		BatchPause: constants.DefaultBatchPause,
		LogFormat:  LogFormatJSON,
	}
}

// Load reads a YAML file over c. Keys missing from the file keep their
// current value.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.SourceType == "" {
		return errors.New("source type not set")
	}
	if c.Token == "" {
		return constants.ErrNoToken
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base url %q", c.BaseURL)
	}
	if u.Scheme != constants.HTTPScheme && u.Scheme != constants.HTTPSecureScheme {
		return fmt.Errorf("invalid base url scheme %q", u.Scheme)
	}
	if _, err := c.mode(); err != nil {
		return err
	}
	if c.CheckpointDir != "" && c.CheckpointDSN != "" {
		return errors.New("checkpoint_dir and checkpoint_dsn are mutually exclusive")
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatText {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", c.LogFormat)
	}
	if c.BatchSize < 0 || c.PageSize < 0 {
		return errors.New("batch_size and page_size must not be negative")
	}
	return nil
}

func (c *Config) mode() (dast.Mode, error) {
	switch c.Mode {
	case "", dast.Replace.String():
		return dast.Replace, nil
	case dast.Augment.String():
		return dast.Augment, nil
	default:
		return dast.Replace, fmt.Errorf("invalid mode: %s (must be 'replace' or 'augment')", c.Mode)
	}
}

// Options converts c to converter options. c must be valid.
func (c *Config) Options() blocktolinks.Options {
	mode, _ := c.mode()
	opts := blocktolinks.DefaultOptions()
	opts.Mode = mode
	opts.ForceLocalized = c.ForceLocalized
	opts.SkipDestructive = c.SkipDestructive
	opts.NameSuffix = c.NameSuffix
	opts.Verbose = c.Verbose
	opts.DeleteSourceType = c.DeleteSourceType
	if c.BatchSize > 0 {
		opts.BatchSize = c.BatchSize
	}
	opts.BatchPause = c.BatchPause
	return opts
}

func (c *Config) bind(flagSet *flag.FlagSet) {
	flagSet.StringVar(&c.BaseURL, "url", c.BaseURL, "Content API base URL")
	flagSet.StringVar(&c.Token, "token", c.Token, "API token (default: $BLOCKTOLINKS_TOKEN)")
	flagSet.IntVar(&c.PageSize, "page-size", c.PageSize, "Records read per page")
	flagSet.StringVar(&c.SourceType, "source", c.SourceType, "Id or api key of the block type to convert")
	flagSet.StringVar(&c.Mode, "mode", c.Mode, "Structured text mode: replace or augment")
	flagSet.BoolVar(&c.ForceLocalized, "force-localized", c.ForceLocalized, "Create every destination field localized")
	flagSet.BoolVar(&c.SkipDestructive, "skip-destructive", c.SkipDestructive, "Never delete or rename fields")
	flagSet.StringVar(&c.NameSuffix, "suffix", c.NameSuffix, "Suffix appended to the destination type name and api key")
	flagSet.BoolVar(&c.DeleteSourceType, "delete-source", c.DeleteSourceType, "Delete the block type once nothing uses it")
	flagSet.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "Records created concurrently")
	flagSet.DurationVar(&c.BatchPause, "batch-pause", c.BatchPause, "Pause between record batches")
	flagSet.StringVar(&c.CheckpointDir, "checkpoint-dir", c.CheckpointDir, "Directory for mapping checkpoints")
	flagSet.StringVar(&c.CheckpointDSN, "checkpoint-dsn", c.CheckpointDSN, "PostgreSQL DSN for mapping checkpoints")
	flagSet.StringVar(&c.ProgressAddr, "progress-addr", c.ProgressAddr, "Address serving progress events on /progress")
	flagSet.StringVar(&c.LogPath, "log", c.LogPath, "Log file (default: stderr)")
	flagSet.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: json or text")
	flagSet.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable debug logging")
}

const usage = `command required

Usage: blocktolinks [flags] <command>

Commands:
  analyze   Report the fields and records holding the block type
  convert   Convert the block type into a record type

Examples:
  blocktolinks -source hero analyze
  blocktolinks -source hero -checkpoint-dir .checkpoints convert
  blocktolinks -config migrate.yaml -mode augment convert`

// Parse returns the command and configuration given by args.
func Parse(args []string) (string, *Config, error) {
	var file string
	probe := flag.NewFlagSet("blocktolinks", flag.ContinueOnError)
	probe.StringVar(&file, "config", "", "YAML configuration file")
	NewConfig().bind(probe)
	if err := probe.Parse(args); err != nil {
		return "", nil, err
	}

	config := NewConfig()
	if file != "" {
		if err := config.Load(file); err != nil {
			return "", nil, err
		}
		config.File = file
	}

	// Flags win over the file, so parse again into the loaded values.
	flagSet := flag.NewFlagSet("blocktolinks", flag.ContinueOnError)
	flagSet.String("config", file, "YAML configuration file")
	config.bind(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return "", nil, err
	}
	if config.Token == "" {
		config.Token = os.Getenv("BLOCKTOLINKS_TOKEN")
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		return "", nil, errors.New(usage)
	}
	switch remaining[0] {
	case CommandAnalyze, CommandConvert:
	default:
		return "", nil, fmt.Errorf("unknown command: %s\n\nValid commands: analyze, convert", remaining[0])
	}

	if err := config.Validate(); err != nil {
		return "", nil, err
	}
	return remaining[0], config, nil
}
