package database

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultBusyTimeout = 5 * time.Second

// Config locates the SQLite file that holds the imported dataset, the
// operator accounts and the pipeline run history.
type Config struct {
	Path string
	// BusyTimeout is how long a writer waits on a locked database. A run
	// re-importing outputs can overlap with API reads.
	BusyTimeout time.Duration
}

func DefaultConfig() Config {
	cfg := Config{BusyTimeout: DefaultBusyTimeout}
	if p := os.Getenv("DEALFLOW_DB_PATH"); p != "" {
		cfg.Path = p
		return cfg
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	cfg.Path = filepath.Join(home, ".dealflow", "data.db")
	return cfg
}

func (c Config) inMemory() bool {
	return c.Path == ":memory:"
}

// DSN encodes the connection pragmas so every pooled connection gets them,
// not just the first one.
func (c Config) DSN() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	if c.inMemory() {
		return "file::memory:?cache=shared&" + q.Encode()
	}
	q.Set("_journal_mode", "WAL")
	return "file:" + c.Path + "?" + q.Encode()
}

func EnsureDataDir(cfg Config) error {
	if cfg.inMemory() {
		return nil
	}
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", cfg.Path, err)
	}
	return db, nil
}

func MustOpen(cfg Config) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	return db
}
