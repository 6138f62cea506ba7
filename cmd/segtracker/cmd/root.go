package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"segmentation-tracker/cmd/segtracker/config"
	"segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

var (
	cfgFile string
	profile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// appConfig is loaded once flags are parsed
	appConfig *config.Config
	initErr   error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "segtracker",
	Short: "Segmentation batch tracker",
	Long: `Segtracker tracks annotation batches assigned to the segmentation team,
reconciles them against uploaded mask archives and reports team progress.

Examples:
  segtracker serve --config segtracker.yaml
  segtracker sync --auto-create
  segtracker metrics team --output-format json
  segtracker batch create --assignee Flor
  segtracker seed load --file batches.json --force`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&profile, "profile", "", "configuration profile: default, demo, strict, server")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringP("output-format", "f", "console", "output format: console, json, csv")
	pf.StringP("output-file", "o", "", "output file path (default: stdout)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("driver", "mongo", "store driver: mongo or memory")

	viper.BindPFlag("verbose", pf.Lookup("verbose"))
	viper.BindPFlag("output.format", pf.Lookup("output-format"))
	viper.BindPFlag("output.file", pf.Lookup("output-file"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("store.driver", pf.Lookup("driver"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	initErr = nil
	config.SetDefaults(viper.GetViper())

	if profile != "" {
		if err := config.ApplyProfile(viper.GetViper(), profile); err != nil {
			initErr = err
			return
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			initErr = errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("check that the file exists and is valid yaml, json or toml")
			return
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("SEGTRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig decodes the merged configuration and installs the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	if initErr != nil {
		return initErr
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if verbose && !cmd.Flags().Changed("log-level") && cfg.Log.Level == logger.InfoLevel {
		debug := logger.DebugConfig()
		cfg.Log.Level = debug.Level
		cfg.Log.CallerInfo = debug.CallerInfo
	}

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", cfg.Log, err)
	}
	logger.SetGlobalLogger(log)

	appConfig = cfg
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
