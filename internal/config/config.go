package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	// .env only seeds the process environment, real variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := defaultConfig
	_loaded = &cfg

	configFile := os.Getenv("PREPDECK_CONFIG_FILE")
	if configFile == "" {
		configFile = "prepdeck.yaml"
	}

	log.Printf("Attempting to load config file: %s", configFile)

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	if err := ApplyEnvOverrides(); err != nil {
		log.Printf("Failed to apply environment overrides: %v", err)
	}

	log.Printf("Final config - store driver: %s, DB Host: %s, DB Database: %s, graph enabled: %t",
		_loaded.Common.Store.Driver,
		_loaded.Common.Postgres.Host,
		_loaded.Common.Postgres.Database,
		_loaded.Common.Graph.Enabled)
}

// LoadDefault installs the defaults without reading any file or environment.
func LoadDefault() {
	cfg := defaultConfig
	_loaded = &cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := defaultConfig

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// ApplyEnvOverrides overlays PREPDECK_* environment variables on the loaded config.
// Variables that are not set leave the current value untouched.
func ApplyEnvOverrides() error {
	if _loaded == nil {
		return nil
	}

	if err := env.Parse(&_loaded.Common); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxRequestSize:  1048576,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Auth: authConfig{
			JWTSecret: "prepdeck_dev_secret", // Development only
			Issuer:    "prepdeck",
			TokenTTL:  7 * 24 * time.Hour,
		},
		Store: storeConfig{
			Driver: "postgres",
		},
		Postgres: postgresConfig{
			User:               "postgres",
			Password:           "postgres",
			Host:               "localhost",
			Port:               5432,
			Database:           "prepdeck",
			SSLMode:            "disable",
			MaxOpenConnections: 10,
		},
		Graph: graphConfig{
			Enabled:  false,
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		API: apiConfig{
			LegacyListShape: false,
		},
		Audit: auditConfig{
			Enabled: true,
		},
	},
}

type Common struct {
	Log      logConfig      `yaml:"log"`
	Http     httpConfig     `yaml:"http"`
	Auth     authConfig     `yaml:"auth"`
	Store    storeConfig    `yaml:"store"`
	Postgres postgresConfig `yaml:"postgres"`
	Graph    graphConfig    `yaml:"graph"`
	API      apiConfig      `yaml:"api"`
	Audit    auditConfig    `yaml:"audit"`
}

type logConfig struct {
	Level  string `yaml:"level" env:"PREPDECK_LOG_LEVEL"`
	Format string `yaml:"format" env:"PREPDECK_LOG_FORMAT"` // "json" or "console"
}

type httpConfig struct {
	Host            string        `yaml:"host" env:"PREPDECK_HTTP_HOST"`
	Port            int           `yaml:"port" env:"PREPDECK_HTTP_PORT"`
	MaxRequestSize  int64         `yaml:"max_request_size" env:"PREPDECK_HTTP_MAX_REQUEST_SIZE"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"PREPDECK_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"PREPDECK_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PREPDECK_HTTP_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"PREPDECK_HTTP_ALLOWED_ORIGINS" envSeparator:","`
}

// Addr returns the listen address.
func (c httpConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type authConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"PREPDECK_JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"PREPDECK_JWT_ISSUER"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"PREPDECK_JWT_TTL"`
}

type storeConfig struct {
	Driver string `yaml:"driver" env:"PREPDECK_STORE_DRIVER"` // "postgres" or "memory"
}

type postgresConfig struct {
	User               string `yaml:"user" env:"PREPDECK_DB_USER"`
	Password           string `yaml:"password" env:"PREPDECK_DB_PASSWORD"`
	Host               string `yaml:"host" env:"PREPDECK_DB_HOST"`
	Port               int    `yaml:"port" env:"PREPDECK_DB_PORT"`
	Database           string `yaml:"database" env:"PREPDECK_DB_NAME"`
	SSLMode            string `yaml:"ssl_mode" env:"PREPDECK_DB_SSLMODE"`
	MaxOpenConnections int    `yaml:"max_open_connections" env:"PREPDECK_DB_MAX_OPEN_CONNECTIONS"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
		url.QueryEscape(c.SSLMode),
	)
}

type graphConfig struct {
	Enabled  bool   `yaml:"enabled" env:"PREPDECK_GRAPH_ENABLED"`
	URI      string `yaml:"uri" env:"PREPDECK_NEO4J_URI"`
	Username string `yaml:"username" env:"PREPDECK_NEO4J_USERNAME"`
	Password string `yaml:"password" env:"PREPDECK_NEO4J_PASSWORD"`
	Database string `yaml:"database" env:"PREPDECK_NEO4J_DATABASE"`
}

type apiConfig struct {
	// LegacyListShape returns my-sessions as a bare JSON array instead of the
	// {success, sessions} envelope used by every other route.
	LegacyListShape bool `yaml:"legacy_list_shape" env:"PREPDECK_API_LEGACY_LIST_SHAPE"`
}

type auditConfig struct {
	Enabled bool `yaml:"enabled" env:"PREPDECK_AUDIT_ENABLED"`
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	return mustLoaded().Common.Log
}

func Http() httpConfig {
	return mustLoaded().Common.Http
}

func Auth() authConfig {
	return mustLoaded().Common.Auth
}

func Store() storeConfig {
	return mustLoaded().Common.Store
}

func Postgres() postgresConfig {
	return mustLoaded().Common.Postgres
}

func Graph() graphConfig {
	return mustLoaded().Common.Graph
}

func API() apiConfig {
	return mustLoaded().Common.API
}

func Audit() auditConfig {
	return mustLoaded().Common.Audit
}

// Get returns the full configuration
func Get() *Config {
	return mustLoaded()
}

func mustLoaded() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}
