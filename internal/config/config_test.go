package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	env := map[string]string{
		"BITCOIND_ENDPOINT":      "http://localhost:8332",
		"ELECTRS_ENDPOINT":       "http://localhost:3000",
		"ORD_ENDPOINT":           "http://localhost:8080",
		"PGSQL_USER":             "orc20",
		"PGSQL_DB":               "orc20",
		"MYSQL_USER":             "orc20",
		"MYSQL_DB":               "ord",
		"CORE_START_BLOCK_HEIGHT": "800000",
		"OTC_START_BLOCK_HEIGHT":  "820000",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	_ = os.Unsetenv("PGSQL_HOST")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pgsql.Host != "localhost" {
		t.Errorf("Pgsql.Host = %q, want localhost", cfg.Pgsql.Host)
	}
	if cfg.Pgsql.Port != 5432 {
		t.Errorf("Pgsql.Port = %d, want 5432", cfg.Pgsql.Port)
	}
	if cfg.Mysql.Port != 3306 {
		t.Errorf("Mysql.Port = %d, want 3306", cfg.Mysql.Port)
	}
	if cfg.CoreStartBlockHeight != 800000 {
		t.Errorf("CoreStartBlockHeight = %d, want 800000", cfg.CoreStartBlockHeight)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected error when required env vars are unset")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
bitcoind:
  endpoint: http://localhost:8332
electrs_endpoint: http://localhost:3000
ord_endpoint: http://localhost:8080
pgsql:
  user: orc20
  db: orc20
  host: db.internal
  port: 5433
mysql:
  user: orc20
  db: ord
core_start_block_height: 800000
otc_start_block_height: 820000
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Pgsql.Host != "db.internal" || cfg.Pgsql.Port != 5433 {
		t.Errorf("Pgsql = %+v, want host=db.internal port=5433", cfg.Pgsql)
	}
	if cfg.CoreStartBlockHeight != 800000 {
		t.Errorf("CoreStartBlockHeight = %d, want 800000", cfg.CoreStartBlockHeight)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPostgresDSN(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := "postgres://orc20:@localhost:5432/orc20"
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
}
