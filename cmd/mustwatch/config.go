package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the server. It is read from a yaml, toml,
// ini or json file and then overridden by environment variables.
type Config struct {
	DB   DBConfig   `yaml:"db" toml:"db" json:"db" ini:"db"`
	HTTP HTTPConfig `yaml:"http" toml:"http" json:"http" ini:"http"`
	Log  LogConfig  `yaml:"log" toml:"log" json:"log" ini:"log"`
	API  APIConfig  `yaml:"api" toml:"api" json:"api" ini:"api"`
}

type DBConfig struct {
	Driver   string `yaml:"driver" toml:"driver" json:"driver" ini:"driver" validate:"oneof=mysql postgres sqlite3"`
	DSN      string `yaml:"dsn" toml:"dsn" json:"dsn" ini:"dsn"`
	Host     string `yaml:"host" toml:"host" json:"host" ini:"host"`
	Port     string `yaml:"port" toml:"port" json:"port" ini:"port" validate:"omitempty,numeric"`
	User     string `yaml:"user" toml:"user" json:"user" ini:"user"`
	Password string `yaml:"password" toml:"password" json:"password" ini:"password"`
	Name     string `yaml:"name" toml:"name" json:"name" ini:"name" validate:"required_without=DSN"`
	// Schema tables are discovered in. Defaults to Name for MySQL and to
	// "public" for Postgres.
	Schema  string `yaml:"schema" toml:"schema" json:"schema" ini:"schema"`
	SSLMode string `yaml:"sslmode" toml:"sslmode" json:"sslmode" ini:"sslmode"`

	MaxOpenConns       int `yaml:"max_open_conns" toml:"max_open_conns" json:"max_open_conns" ini:"max_open_conns" validate:"gte=0"`
	MaxIdleConns       int `yaml:"max_idle_conns" toml:"max_idle_conns" json:"max_idle_conns" ini:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeSec int `yaml:"conn_max_lifetime_sec" toml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec" ini:"conn_max_lifetime_sec" validate:"gte=0"`
}

type HTTPConfig struct {
	Addr               string `yaml:"addr" toml:"addr" json:"addr" ini:"addr" validate:"required"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec" json:"shutdown_timeout_sec" ini:"shutdown_timeout_sec" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level" ini:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" json:"format" ini:"format" validate:"oneof=text json"`
}

type APIConfig struct {
	PKConvention string   `yaml:"pk_convention" toml:"pk_convention" json:"pk_convention" ini:"pk_convention" validate:"oneof=table_id id"`
	Associations []string `yaml:"associations" toml:"associations" json:"associations" ini:"associations" delim:"," validate:"unique,dive,required,alphanum"`
	Exclude      []string `yaml:"exclude" toml:"exclude" json:"exclude" ini:"exclude" delim:","`
}

func defaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Driver:             "mysql",
			Host:               "localhost",
			Name:               "mustwatch",
			SSLMode:            "disable",
			MaxOpenConns:       50,
			MaxIdleConns:       30,
			ConnMaxLifetimeSec: 180,
		},
		HTTP: HTTPConfig{
			Addr:               ":8000",
			ShutdownTimeoutSec: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		API: APIConfig{
			PKConvention: "table_id",
			Associations: []string{"ator"},
		},
	}
}

// loadConfig reads config from path (skipped when path is empty), applies
// environment variables and validates the result
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := decodeConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg, os.LookupEnv)

	if cfg.DB.Port == "" {
		switch cfg.DB.Driver {
		case "mysql":
			cfg.DB.Port = "3306"
		case "postgres":
			cfg.DB.Port = "5432"
		}
	}
	if cfg.DB.Schema == "" {
		cfg.DB.Schema = cfg.DB.Name
		if cfg.DB.Driver == "postgres" {
			cfg.DB.Schema = "public"
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func decodeConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read config file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	case ".toml":
		err = toml.Unmarshal(b, cfg)
	case ".json":
		err = json.Unmarshal(b, cfg)
	case ".ini":
		var f *ini.File
		f, err = ini.Load(b)
		if err == nil {
			err = f.MapTo(cfg)
		}
	default:
		return errors.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	return errors.Wrapf(err, "cannot decode config file %s", path)
}

// applyEnv overrides config with environment variables. Empty values are
// ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	vars := map[string]*string{
		"DB_DRIVER": &cfg.DB.Driver,
		"DB_DSN":    &cfg.DB.DSN,
		"DB_HOST":   &cfg.DB.Host,
		"DB_PORT":   &cfg.DB.Port,
		"DB_USER":   &cfg.DB.User,
		"DB_PSWD":   &cfg.DB.Password,
		"DB_NAME":   &cfg.DB.Name,
		"DB_SCHEMA": &cfg.DB.Schema,
		"HTTP_ADDR": &cfg.HTTP.Addr,
		"LOG_LEVEL": &cfg.Log.Level,
	}
	for k, p := range vars {
		if v, ok := lookup(k); ok && v != "" {
			*p = v
		}
	}
	if v, ok := lookup("API_ASSOCIATIONS"); ok && v != "" {
		cfg.API.Associations = strings.Split(v, ",")
	}
	if v, ok := lookup("DB_MAX_OPEN_CONNS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DB.MaxOpenConns = n
		}
	}
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
