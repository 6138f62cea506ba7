package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"segmentation-tracker/internal/batches"
	"segmentation-tracker/internal/matcher"
	"segmentation-tracker/internal/metrics"
	"segmentation-tracker/internal/reconciler"
	"segmentation-tracker/internal/reporter"
	"segmentation-tracker/internal/roster"
	"segmentation-tracker/internal/store/mongostore"
	"segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// Store drivers
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// StoreConfig selects the storage backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// StoresConfig addresses the three logical stores independently
type StoresConfig struct {
	Batches mongostore.Config `mapstructure:"batches"`
	Catalog mongostore.Config `mapstructure:"catalog"`
	Roster  mongostore.Config `mapstructure:"roster"`
}

// MatcherConfig is the filename matcher plus the pass option that
// lives next to it in configuration files.
type MatcherConfig struct {
	matcher.MatchingConfig `mapstructure:",squash"`
	RefreshFileInfo        bool `mapstructure:"refresh_file_info"`
}

// AutoCreateConfig controls batches created from catalog files
type AutoCreateConfig struct {
	DefaultAssignee string `mapstructure:"default_assignee"`
}

// BatchesConfig is the batch service plus its seed and expected lists
type BatchesConfig struct {
	batches.Config `mapstructure:",squash"`
	SeedFile       string   `mapstructure:"seed_file"`
	Expected       []string `mapstructure:"expected"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BasePath        string        `mapstructure:"base_path"`
	CatalogLimit    int           `mapstructure:"catalog_limit"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OutputConfig controls CLI report rendering
type OutputConfig struct {
	Format         string `mapstructure:"format"`
	File           string `mapstructure:"file"`
	MaxRows        int    `mapstructure:"max_rows"`
	Style          string `mapstructure:"style"`
	IncludeResults bool   `mapstructure:"include_results"`
}

// Config is the full application configuration
type Config struct {
	Store      StoreConfig       `mapstructure:"store"`
	Stores     StoresConfig      `mapstructure:"stores"`
	Matcher    MatcherConfig     `mapstructure:"matcher"`
	Reconciler reconciler.Config `mapstructure:"reconciler"`
	AutoCreate AutoCreateConfig  `mapstructure:"autocreate"`
	Metrics    metrics.Config    `mapstructure:"metrics"`
	Roster     roster.Config     `mapstructure:"roster"`
	Batches    BatchesConfig     `mapstructure:"batches"`
	Server     ServerConfig      `mapstructure:"server"`
	Output     OutputConfig      `mapstructure:"output"`
	Log        logger.Config     `mapstructure:"log"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverMongo)

	setStoreDefaults(v, "batches", "segmentacion_db", "batches")
	setStoreDefaults(v, "catalog", "QUALITY_IEMSA", "training_metrics.masks.files")
	setStoreDefaults(v, "roster", "Quality_dashboard", "segmentadores")

	m := matcher.DefaultMatchingConfig()
	v.SetDefault("matcher.extensions", m.Extensions)
	v.SetDefault("matcher.file_list_limit", m.FileListLimit)
	v.SetDefault("matcher.strict_boundaries", m.StrictBoundaries)
	v.SetDefault("matcher.refresh_file_info", false)

	r := reconciler.DefaultConfig()
	v.SetDefault("reconciler.detect_anomalies", r.DetectAnomalies)
	v.SetDefault("reconciler.progress_log_interval", r.ProgressLogInterval)
	v.SetDefault("autocreate.default_assignee", "")

	mc := metrics.DefaultConfig()
	v.SetDefault("metrics.recent_limit", mc.RecentLimit)
	v.SetDefault("metrics.missing_date_sentinel", mc.MissingDateSentinel)
	v.SetDefault("metrics.unassigned_label", mc.UnassignedLabel)

	v.SetDefault("roster.defaults", roster.DefaultConfig().Defaults)

	b := batches.DefaultConfig()
	v.SetDefault("batches.default_per_page", b.DefaultPerPage)
	v.SetDefault("batches.min_per_page", b.MinPerPage)
	v.SetDefault("batches.max_per_page", b.MaxPerPage)
	v.SetDefault("batches.seed_file", "batches.json")
	v.SetDefault("batches.expected", []string{})

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.catalog_limit", 100)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	rc := reporter.DefaultReportConfig()
	v.SetDefault("output.format", string(rc.Format))
	v.SetDefault("output.file", "")
	v.SetDefault("output.max_rows", rc.MaxRows)
	v.SetDefault("output.style", rc.Style)
	v.SetDefault("output.include_results", false)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", string(lc.Level))
	v.SetDefault("log.format", string(lc.Format))
	v.SetDefault("log.output", string(lc.Output))
	v.SetDefault("log.file", "")
	v.SetDefault("log.disable_timestamp", false)
	v.SetDefault("log.caller_info", false)
}

func setStoreDefaults(v *viper.Viper, name, database, collection string) {
	prefix := "stores." + name + "."
	v.SetDefault(prefix+"uri", "mongodb://localhost:27017")
	v.SetDefault(prefix+"database", database)
	v.SetDefault(prefix+"collection", collection)
	v.SetDefault(prefix+"timeout", 5*time.Second)
}

// Load decodes v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", v.ConfigFileUsed(), err).
			WithSuggestion("check the config file syntax and value types")
	}
	cfg.Batches.Expected = normalizeList(cfg.Batches.Expected)
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeList trims items and splits comma-joined values from env vars
func normalizeList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// MatchingConfig returns the matcher configuration
func (c *Config) MatchingConfig() *matcher.MatchingConfig {
	return c.Matcher.MatchingConfig.Clone()
}

// ReconcilerConfig merges matcher.refresh_file_info and
// autocreate.default_assignee into the reconciler configuration.
func (c *Config) ReconcilerConfig() *reconciler.Config {
	r := c.Reconciler
	r.RefreshFileInfo = c.Matcher.RefreshFileInfo
	r.DefaultAssignee = strings.TrimSpace(c.AutoCreate.DefaultAssignee)
	return &r
}

// ReportConfig creates a report configuration for the specified output format
func (c *Config) ReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	if format == "" {
		format = c.Output.Format
	}
	config.Format = reporter.OutputFormat(format)
	config.MaxRows = c.Output.MaxRows
	config.Style = c.Output.Style
	config.IncludeResults = c.Output.IncludeResults

	switch config.Format {
	case reporter.FormatJSON:
		config.IncludeResults = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludeAnomalies = false
	}
	return config
}

// ValidateConfig validates every component configuration and reports all
// problems at once.
func ValidateConfig(c *Config) error {
	var problems []string
	check := func(setting string, err error) {
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", setting, err))
		}
	}

	switch c.Store.Driver {
	case DriverMongo:
		check("stores.batches", c.Stores.Batches.Validate())
		check("stores.catalog", c.Stores.Catalog.Validate())
		check("stores.roster", c.Stores.Roster.Validate())
	case DriverMemory:
	default:
		check("store.driver", fmt.Errorf("unknown driver %q (want %s or %s)", c.Store.Driver, DriverMongo, DriverMemory))
	}

	check("matcher", c.MatchingConfig().Validate())
	check("reconciler", c.ReconcilerConfig().Validate())
	check("metrics", c.Metrics.Validate())
	check("roster", c.Roster.Validate())
	check("batches", c.Batches.Config.Validate())
	check("log", c.Log.Validate())
	check("output", c.ReportConfig("").Validate())

	if c.Server.Addr == "" {
		check("server.addr", fmt.Errorf("address is required"))
	}
	if c.Server.CatalogLimit < 0 {
		check("server.catalog_limit", fmt.Errorf("cannot be negative: %d", c.Server.CatalogLimit))
	}
	if c.AutoCreate.DefaultAssignee != "" && len(c.Roster.Defaults) > 0 &&
		!contains(c.Roster.Defaults, c.AutoCreate.DefaultAssignee) {
		// the live roster is checked again when batches are created
		check("autocreate.default_assignee", fmt.Errorf("%q is not in roster.defaults", c.AutoCreate.DefaultAssignee))
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.ConfigurationError(errors.CodeInvalidConfig, "config", strings.Join(problems, "; "),
		fmt.Errorf("%d invalid setting(s)", len(problems)))
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

// Profile is a named set of defaults layered under the config file
type Profile struct {
	Name        string
	Description string
	Settings    map[string]interface{}
}

// GetProfiles returns the built-in configuration profiles
func GetProfiles() []Profile {
	return []Profile{
		{
			Name:        "default",
			Description: "MongoDB on localhost with the production database names",
			Settings:    map[string]interface{}{},
		},
		{
			Name:        "demo",
			Description: "in-memory stores and debug logging, nothing persists",
			Settings: map[string]interface{}{
				"store.driver": DriverMemory,
				"log.level":    string(logger.DebugLevel),
			},
		},
		{
			Name:        "strict",
			Description: "matcher requires identifier boundaries and refreshes file info",
			Settings: map[string]interface{}{
				"matcher.strict_boundaries": true,
				"matcher.refresh_file_info": true,
			},
		},
		{
			Name:        "server",
			Description: "JSON logs on stdout for the long-running API",
			Settings: map[string]interface{}{
				"log.format": string(logger.ServerConfig().Format),
				"log.output": string(logger.ServerConfig().Output),
			},
		},
	}
}

// ApplyProfile layers the named profile's settings as defaults on v
func ApplyProfile(v *viper.Viper, name string) error {
	for _, p := range GetProfiles() {
		if p.Name == name {
			for key, value := range p.Settings {
				v.SetDefault(key, value)
			}
			return nil
		}
	}
	names := make([]string, 0, len(GetProfiles()))
	for _, p := range GetProfiles() {
		names = append(names, p.Name)
	}
	return errors.ConfigurationError(errors.CodeInvalidConfig, "profile", name, nil).
		WithSuggestion("available profiles: " + strings.Join(names, ", "))
}
