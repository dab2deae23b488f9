// Package settings implements the runtime-mutable key/value store:
// retention/scheduling/subfolder/performance flags plus per-file
// size-history entries used by the file-op layer's completeness check.
// Values are JSON-encoded in sqlite, written as upserts keyed by setting
// name, with a defaults table overlaid by persisted overrides.
package settings

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Defaults gives every key the orchestrator and supervisor read a defined
// fallback before any override is persisted.
var Defaults = map[string]any{
	"repeat_forever":           true,
	"repeat_after_minutes":     30,
	"finished_retention_days":  15,
	"enable_delete":            false,
	"demo_mode":                false,
	"include_sample":           false,
	"include_sub":              true,
	"include_other":            false,
	"parallel_extractions":     1,
	"cpu_cores_per_extraction": 2,
	"file_stability_hours":     24,
}

// FileStatus is the persisted size-history entry for one absolute path,
// keyed as "file_status:<absolute-path>" in the settings table.
type FileStatus struct {
	Size        int64 `json:"size"`
	LastCheckTs int64 `json:"last_check_ts"`
}

// Store is the single-writer-many-reader settings KV. Reads/writes are
// serialised by a mutex, matching the "shared resources" contract: the
// settings KV is single-writer-many-reader, writes are CAS-style upserts
// keyed by setting name.
type Store struct {
	mu   sync.Mutex
	conn *sql.DB
}

// Open connects to (creating if absent) the sqlite settings database at
// path and applies pending goose migrations.
func Open(path string) (*Store, error) {
	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000", path)
	conn, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping settings database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run settings migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the raw persisted value for key, or Defaults[key] if nothing
// has been written yet. The second return reports whether a default exists
// for an unknown key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err == nil {
		var v any
		if jsonErr := json.Unmarshal([]byte(raw), &v); jsonErr == nil {
			return v, true
		}
	}

	v, ok := Defaults[key]
	return v, ok
}

// Set upserts key with value, JSON-encoded, via ON CONFLICT DO UPDATE.
func (s *Store) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.conn.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, string(encoded))
	if err != nil {
		return fmt.Errorf("persist setting %q: %w", key, err)
	}
	return nil
}

// GetAll returns the defaults overlaid by every persisted override.
func (s *Store) GetAll() (map[string]any, error) {
	result := make(map[string]any, len(Defaults))
	for k, v := range Defaults {
		result[k] = v
	}

	s.mu.Lock()
	rows, err := s.conn.Query(`SELECT key, value FROM settings`)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		result[key] = v
	}
	return result, rows.Err()
}

func fileStatusKey(path string) string {
	return "file_status:" + path
}

// FileStatusFor returns the last recorded size/timestamp for path, and
// whether one has been recorded before.
func (s *Store) FileStatusFor(path string) (FileStatus, bool) {
	raw, ok := s.Get(fileStatusKey(path))
	if !ok {
		return FileStatus{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return FileStatus{}, false
	}
	fs := FileStatus{}
	if size, ok := m["size"].(float64); ok {
		fs.Size = int64(size)
	}
	if ts, ok := m["last_check_ts"].(float64); ok {
		fs.LastCheckTs = int64(ts)
	}
	return fs, true
}

// RecordFileStatus persists the current size/timestamp observation for path.
func (s *Store) RecordFileStatus(path string, size int64, observedAt time.Time) error {
	return s.Set(fileStatusKey(path), FileStatus{Size: size, LastCheckTs: observedAt.Unix()})
}

// ClearFileStatus removes a path's size-history entry.
func (s *Store) ClearFileStatus(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(`DELETE FROM settings WHERE key = ?`, fileStatusKey(path))
	return err
}

// Bool/Int typed accessors, matching the table's declared types.

func (s *Store) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

func (s *Store) Int(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// IsFirstRun reports whether the metadata table lacks the "initialized"
// marker.
func (s *Store) IsFirstRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var value string
	err := s.conn.QueryRow(`SELECT value FROM settings_metadata WHERE key = 'initialized'`).Scan(&value)
	return err != nil || strings.TrimSpace(value) != "true"
}

// MarkInitialized records that first-run setup has completed.
func (s *Store) MarkInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(`
		INSERT INTO settings_metadata (key, value) VALUES ('initialized', 'true')
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`)
	return err
}
