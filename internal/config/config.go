package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"marketlens/domain/dataframe"
	"marketlens/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Database DatabaseConfig
	Server   ServerConfig
	Engine   EngineConfig
	Export   ExportConfig
	LogLevel string
}

// DataConfig says where the dataframe and lookup tables come from
type DataConfig struct {
	File         string
	Sheet        string
	Schema       string
	Table        string
	LookupFile   string
	Dependencies []DependencyPair
}

// DependencyPair is one derived-from-data facet dependency, e.g. region:country
type DependencyPair struct {
	Independent string
	Dependent   string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// EngineConfig tunes the filter and aggregation core
type EngineConfig struct {
	StrictFields bool
	MemoSize     int
	WeightFloor  float64
}

// ExportConfig holds export sink settings
type ExportConfig struct {
	Dir string
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LoadWithEnvFile reads the given .env files when they exist and then calls
// Load. Variables already set in the environment win.
func LoadWithEnvFile(paths ...string) (*Config, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to read %s", path)
		}
	}
	return Load()
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	dataConfig, err := loadDataConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load data configuration")
	}
	config.Data = *dataConfig

	config.Database = *loadDatabaseConfig()
	config.Server = *loadServerConfig()
	config.Engine = *loadEngineConfig()
	config.Export = ExportConfig{Dir: getEnvOrDefault("EXPORT_DIR", "./exports")}
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", "INFO")

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDataConfig() (*DataConfig, error) {
	deps, err := ParseDependencies(getEnvOrDefault("DEPENDENCIES", "region:country"))
	if err != nil {
		return nil, err
	}
	return &DataConfig{
		File:         getEnvOrDefault("DATA_FILE", ""),
		Sheet:        getEnvOrDefault("DATA_SHEET", ""),
		Schema:       getEnvOrDefault("DATA_SCHEMA", "infer"),
		Table:        getEnvOrDefault("DATA_TABLE", ""),
		LookupFile:   getEnvOrDefault("LOOKUP_FILE", ""),
		Dependencies: deps,
	}, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "")),
		URL:    getEnvOrDefault("DATABASE_URL", ""),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		StrictFields: getEnvBoolOrDefault("STRICT_FIELDS", false),
		MemoSize:     getEnvIntOrDefault("MEMO_SIZE", 256),
		WeightFloor:  getEnvFloatOrDefault("WEIGHT_FLOOR", 1e-6),
	}
}

// ParseDependencies reads "a:b,c:d" into dependency pairs
func ParseDependencies(s string) ([]DependencyPair, error) {
	var pairs []DependencyPair
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, errors.ConfigInvalid("dependency " + strconv.Quote(item) + " must look like independent:dependent")
		}
		pairs = append(pairs, DependencyPair{
			Independent: strings.TrimSpace(parts[0]),
			Dependent:   strings.TrimSpace(parts[1]),
		})
	}
	return pairs, nil
}

// UsesDatabase reports whether the dataframe is read from a table
func (c *Config) UsesDatabase() bool {
	return c.Data.File == "" && c.Data.Table != ""
}

func validateConfig(config *Config) error {
	if config.Data.File == "" && config.Data.Table == "" {
		return errors.ConfigInvalid("DATA_FILE or DATA_TABLE is required")
	}
	if config.Data.Schema != "infer" {
		if _, err := dataframe.SchemaFor(config.Data.Schema); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, err)
		}
	}
	switch config.Database.Driver {
	case "", DriverPostgres, DriverSQLite:
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite")
	}
	if config.UsesDatabase() && (config.Database.Driver == "" || config.Database.URL == "") {
		return errors.ConfigInvalid("DATABASE_DRIVER and DATABASE_URL are required to read DATA_TABLE")
	}
	if config.Engine.MemoSize <= 0 {
		return errors.ConfigInvalid("MEMO_SIZE must be positive")
	}
	if config.Engine.WeightFloor <= 0 {
		return errors.ConfigInvalid("WEIGHT_FLOOR must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
