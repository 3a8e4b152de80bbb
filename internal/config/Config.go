package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 5000
	DefaultDatabase        = "test"
	DefaultConnectAttempts = 5
	DefaultConnectTimeout  = 10 * time.Second
)

// Config holds everything the process needs to boot.
type Config struct {
	DBURI           string        `yaml:"db_uri" validate:"required"`
	DBName          string        `yaml:"db_name" validate:"required"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ConnectAttempts uint64        `yaml:"connect_attempts" validate:"min=1"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	AMQPURL         string        `yaml:"amqp_url" validate:"omitempty,url"`
	Development     bool          `yaml:"development"`
	Debug           bool          `yaml:"debug"`
	LogPath         string        `yaml:"log_path"`
}

// Addr returns the address the web server listens on.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Load builds a Config from defaults, the optional YAML file and the environment.
// envFile is loaded with godotenv if it exists; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:            DefaultPort,
		ConnectAttempts: DefaultConnectAttempts,
		ConnectTimeout:  DefaultConnectTimeout,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if cfg.DBName == "" {
		cfg.DBName = databaseFromURI(cfg.DBURI)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.DBURI, "DB_URI")
	setString(&c.DBName, "DB_NAME")
	setString(&c.Host, "WEBSERVER_IP")
	setString(&c.AMQPURL, "AMQP_URL")
	setString(&c.LogPath, "LOG_PATH")

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := os.LookupEnv("DB_CONNECT_ATTEMPTS"); ok && v != "" {
		attempts, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DB_CONNECT_ATTEMPTS %q: %w", v, err)
		}
		c.ConnectAttempts = attempts
	}
	if v, ok := os.LookupEnv("DB_CONNECT_TIMEOUT"); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DB_CONNECT_TIMEOUT %q: %w", v, err)
		}
		c.ConnectTimeout = timeout
	}
	if v, ok := os.LookupEnv("ENVIRONMENT"); ok && v != "" {
		c.Development = strings.EqualFold(v, "development")
	}
	if v, ok := os.LookupEnv("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG %q: %w", v, err)
		}
		c.Debug = debug
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// databaseFromURI returns the database named in the connection string path,
// falling back to DefaultDatabase like the mongo shell does.
func databaseFromURI(uri string) string {
	cs, err := connstring.Parse(uri)
	if err != nil || cs.Database == "" {
		return DefaultDatabase
	}
	return cs.Database
}
