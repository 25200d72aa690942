package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/tabload/internal/config"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(name string) (string, bool) {
		if name == "DATABASE_URL" {
			return "postgres://user:pw@db.example:5432/warehouse?sslmode=disable", true
		}
		v, ok := env[name]
		return v, ok
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func TestServiceOptions(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"LOAD_INFER_SIZE":   "500",
		"LOAD_CHUNK_SIZE":   "2000",
		"LOAD_TIMEOUT":      "5m",
		"LOAD_WRITER_WAIT":  "10s",
		"API_PAGE_SIZE":     "50",
		"API_MAX_PAGE_SIZE": "200",
	})

	opts := ServiceOptions(cfg)
	if opts.InferSize != 500 || opts.ChunkSize != 2000 {
		t.Errorf("infer/chunk = %d/%d, want 500/2000", opts.InferSize, opts.ChunkSize)
	}
	if opts.LoadTimeout != 5*time.Minute || opts.WriterWait != 10*time.Second {
		t.Errorf("timeout/wait = %v/%v", opts.LoadTimeout, opts.WriterWait)
	}
	if opts.PageSize != 50 || opts.MaxPageSize != 200 {
		t.Errorf("page sizes = %d/%d, want 50/200", opts.PageSize, opts.MaxPageSize)
	}
}

func TestPoolConfig(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"DB_MAX_CONNS":          "7",
		"DB_MIN_CONNS":          "2",
		"DB_MAX_CONN_LIFETIME":  "2h",
		"DB_MAX_CONN_IDLE_TIME": "1m",
	})

	pc, err := PoolConfig(cfg)
	if err != nil {
		t.Fatalf("PoolConfig() error = %v", err)
	}
	if pc.MaxConns != 7 || pc.MinConns != 2 {
		t.Errorf("conns = %d/%d, want 7/2", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != 2*time.Hour || pc.MaxConnIdleTime != time.Minute {
		t.Errorf("lifetimes = %v/%v", pc.MaxConnLifetime, pc.MaxConnIdleTime)
	}
	if pc.ConnConfig.Database != "warehouse" || pc.ConnConfig.Host != "db.example" {
		t.Errorf("conn = %s@%s", pc.ConnConfig.Database, pc.ConnConfig.Host)
	}
}

func TestPoolConfigInvalidURL(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Database.URL = "postgres://%zz"

	if _, err := PoolConfig(cfg); err == nil {
		t.Error("PoolConfig() accepted an invalid URL")
	}
}

func TestDatabaseName(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@host/app":         "app",
		"postgresql://host:5432/":         "",
		"host=localhost dbname=app":       "",
		"postgres://host/app?sslmode=off": "app",
	}
	for dsn, want := range tests {
		if got := databaseName(dsn); got != want {
			t.Errorf("databaseName(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TABLOAD_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TABLOAD_TEST_VALUE", "from-env")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("TABLOAD_TEST_VALUE"); got != "from-file" {
		t.Errorf("TABLOAD_TEST_VALUE = %q, want file value to win", got)
	}

	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("LoadEnv() with a missing named file returned nil")
	}
}
