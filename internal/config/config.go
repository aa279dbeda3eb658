// Package config loads the process configuration from environment
// variables using kelseyhightower/envconfig, covering every external
// collaborator and operational knob the indexer depends on.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the indexer reads at startup. Field tags
// carry both the envconfig variable name (Load) and a yaml key
// (LoadFile), so the same struct serves either source.
type Config struct {
	Bitcoind struct {
		Endpoint string `envconfig:"BITCOIND_ENDPOINT" yaml:"endpoint" required:"true"`
		Username string `envconfig:"BITCOIND_USERNAME" yaml:"username"`
		Password string `envconfig:"BITCOIND_PASSWORD" yaml:"password"`
	} `yaml:"bitcoind"`

	ElectrsEndpoint string `envconfig:"ELECTRS_ENDPOINT" yaml:"electrs_endpoint" required:"true"`
	OrdEndpoint     string `envconfig:"ORD_ENDPOINT" yaml:"ord_endpoint" required:"true"`

	Pgsql struct {
		User   string `envconfig:"PGSQL_USER" yaml:"user" required:"true"`
		Passwd string `envconfig:"PGSQL_PASSWD" yaml:"passwd"`
		DB     string `envconfig:"PGSQL_DB" yaml:"db" required:"true"`
		Host   string `envconfig:"PGSQL_HOST" yaml:"host" default:"localhost"`
		Port   int    `envconfig:"PGSQL_PORT" yaml:"port" default:"5432"`
	} `yaml:"pgsql"`

	Mysql struct {
		User   string `envconfig:"MYSQL_USER" yaml:"user" required:"true"`
		Passwd string `envconfig:"MYSQL_PASSWD" yaml:"passwd"`
		DB     string `envconfig:"MYSQL_DB" yaml:"db" required:"true"`
		Host   string `envconfig:"MYSQL_HOST" yaml:"host" default:"localhost"`
		Port   int    `envconfig:"MYSQL_PORT" yaml:"port" default:"3306"`
	} `yaml:"mysql"`

	RedisURL string `envconfig:"REDIS_URL" yaml:"redis_url" default:"redis://localhost:6379/0"`

	CoreStartBlockHeight int64 `envconfig:"CORE_START_BLOCK_HEIGHT" yaml:"core_start_block_height" required:"true"`
	OTCStartBlockHeight  int64 `envconfig:"OTC_START_BLOCK_HEIGHT" yaml:"otc_start_block_height" required:"true"`

	AlertWebhookURL string `envconfig:"ALERT_WEBHOOK_URL" yaml:"alert_webhook_url"`
	BarkTokens      string `envconfig:"BARK_TOKENS" yaml:"bark_tokens"`

	LogLevel    string `envconfig:"LOG_LEVEL" yaml:"log_level" default:"info"`
	SnapshotDir string `envconfig:"SNAPSHOT_DIR" yaml:"snapshot_dir" default:"./snapshot"`
}

// Load reads the process configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("orc20", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads the process configuration from a YAML file instead of
// the environment, for deployments that prefer a checked-in config over
// per-process env vars. Any field the file omits keeps its Go zero
// value; unlike Load, LoadFile applies no required-field or default-value
// enforcement.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// PostgresDSN builds a libpq-style connection string for pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.Pgsql.User, c.Pgsql.Passwd, c.Pgsql.Host, c.Pgsql.Port, c.Pgsql.DB)
}

// MySQLDSN builds a go-sql-driver/mysql DSN for the read-only upstream
// client.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.Mysql.User, c.Mysql.Passwd, c.Mysql.Host, c.Mysql.Port, c.Mysql.DB)
}
