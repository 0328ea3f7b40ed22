package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chaincrawl/pkg/config"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/selector"
	"chaincrawl/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings files",
	Long: `Manage chaincrawl settings. These control how a run behaves; the entries
themselves live in the entries file (config.yaml by default).

Settings can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CHAINCRAWL_*, also read from .env)
  - Settings file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example settings file",
	Long: `Create an example settings file with all available options.

The file will be created in the current directory as '.chaincrawl.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Long: `Show the settings a run would use, after flags, environment variables,
the settings file and defaults are combined.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings and entries",
	Long: `Validate the settings and the entries file without fetching anything.

This command checks:
  - YAML syntax of both files
  - Setting values and ranges
  - Every entry has a url and an image selector
  - Every selector expression compiles`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

const exampleSettings = `# chaincrawl settings
#
# Every value can also be set with an environment variable, for example
# CHAINCRAWL_OUTPUT_DIR or CHAINCRAWL_DELAY_MAX, or from the command line.

crawl:
  # Entries to crawl, and where their progress is recorded
  entries_file: "config.yaml"

  # One directory per entry is created under this root
  output_dir: "output"

  # Random pause between pages, in seconds
  delay_min: 1
  delay_max: 3

  # Stop the run at the first failed entry
  strict: false

http:
  timeout: 30s
  # user_agent: "Mozilla/5.0 ..."

  # Attempts per page for network errors, 429 and 5xx responses
  max_attempts: 3

render:
  # Render every page in headless Chrome; entries can also set render: true
  enabled: false
  timeout: 60s

rate_limit:
  # Hard ceiling on requests per minute, 0 disables it
  requests_per_minute: 0

output:
  # Write a JSON file with page URL, title and text next to every asset
  save_metadata: false

logging:
  # debug, info, warn, error
  level: "info"

  # Also append logs to this file
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".chaincrawl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil && !forceInit {
		ui.PrintError("Settings file already exists", configPath)
		fmt.Println("\nTo overwrite it, run again with --force")
		return os.ErrExist
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create settings directory", err.Error())
			return err
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleSettings), 0644); err != nil {
		ui.PrintError("Failed to create settings file", err.Error())
		return err
	}

	ui.PrintSuccess("Settings file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'chaincrawl --add-blank' to create an entries file with a template entry")
	fmt.Println("2. Fill in the entry's url and selectors, then try them with 'chaincrawl test <entry>'")
	fmt.Println("3. Start crawling with 'chaincrawl run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (CHAINCRAWL_*)")
	if configFile != "" {
		fmt.Printf("3. Settings file: %s\n", configFile)
	} else {
		fmt.Println("3. Settings file: first of ./.chaincrawl.yaml, ~/.config/chaincrawl/config.yaml, ~/.chaincrawl.yaml")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}
	ui.PrintSuccess("Settings are valid")

	ui.PrintInfo("Validating entries", cfg.Crawl.EntriesFile)
	store, err := openStore(cfg, logger.NewNopLogger())
	if err != nil {
		return err
	}

	var problems []error
	if err := store.Validate(); err != nil {
		problems = append(problems, err)
	}

	eval := selector.New()
	for _, name := range store.Names() {
		entry, err := store.Get(name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		for _, expr := range []string{entry.NextPage, entry.Title, entry.Image, entry.Text} {
			if expr == "" {
				continue
			}
			if err := eval.Check(expr); err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", name, err))
			}
		}
	}

	if len(problems) > 0 {
		err := errors.Join(problems...)
		ui.PrintError("Entries have errors:")
		fmt.Println(err)
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("%d entries are valid", len(store.Names())))

	fmt.Println("\nConfiguration summary:")
	lo, hi := cfg.Crawl.DelayBounds()
	fmt.Printf("  Output directory: %s\n", cfg.Crawl.OutputDir)
	fmt.Printf("  Delay: %s to %s\n", lo, hi)
	fmt.Printf("  Max attempts: %d\n", cfg.HTTP.MaxAttempts)
	if cfg.RateLimit.RequestsPerMinute > 0 {
		fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	}
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
