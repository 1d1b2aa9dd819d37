package settings

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vidmentor/internal/logging"
	"vidmentor/internal/pubsub"
	"vidmentor/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// OriginInstall tags the changes written while materializing defaults.
const OriginInstall = "install"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	allKeys                 = "*"
)

// Change describes one Set. Old is null when the key had never been stored.
type Change struct {
	Key    string          `json:"key"`
	Old    json.RawMessage `json:"old"`
	New    json.RawMessage `json:"new"`
	Origin string          `json:"origin"`
	At     time.Time       `json:"at"`
}

// Subscription is returned by Subscribe.
type Subscription = pubsub.Subscription[string, Change]

// Store manages settings persistence backed by SQLite.
type Store struct {
	db        *sql.DB
	path      string
	installed bool
	hub       *pubsub.Bus[string, Change]
	logger    *slog.Logger
	now       func() time.Time
	seed      func(*Settings)
}

// Option customizes Open.
type Option func(*Store)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(logger, "settings") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInstallSeed adjusts the defaults written at first install.
func WithInstallSeed(seed func(*Settings)) Option {
	return func(s *Store) { s.seed = seed }
}

// Open initializes or connects to the settings database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	ctx = ensureContext(ctx)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure settings directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(nil, "settings"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	store.hub = pubsub.New[string, Change](store.logger)

	created, err := store.initSchema(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if created {
		if err := store.install(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		store.installed = true
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Installed reports whether Open created the database and wrote defaults.
func (s *Store) Installed() bool { return s.installed }

func (s *Store) initSchema(ctx context.Context) (bool, error) {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return false, fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return true, s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return false, fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset settings)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return false, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *Store) install(ctx context.Context) error {
	defaults := Default()
	if s.seed != nil {
		s.seed(&defaults)
	}
	values, err := defaults.Values()
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		for _, key := range Keys() {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO settings (key, value, origin, updated_at) VALUES (?, ?, ?, ?)",
				key, string(values[key]), OriginInstall, stamp,
			); err != nil {
				return fmt.Errorf("materialize default %s: %w", key, err)
			}
		}
		return tx.Commit()
	})
}

// Get returns the stored value for key, or its default when absent. Unknown
// keys with nothing stored return nil.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	ctx = ensureContext(ctx)
	var value string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		raw, _ := defaultValue(key)
		return raw, nil
	case err != nil:
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// GetAll returns every stored key, with defaults filled in for any top-level
// key that is absent.
func (s *Store) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	ctx = ensureContext(ctx)
	out := make(map[string]json.RawMessage, len(Keys()))
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return err
			}
			out[key] = json.RawMessage(value)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	for _, key := range Keys() {
		if _, ok := out[key]; ok {
			continue
		}
		if raw, ok := defaultValue(key); ok {
			out[key] = raw
		}
	}
	return out, nil
}

// GetMany returns only the requested keys. Keys with neither a stored value
// nor a default are omitted.
func (s *Store) GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		value, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		out[key] = value
	}
	return out, nil
}

// Set replaces the value stored under key and notifies subscribers.
func (s *Store) Set(ctx context.Context, key string, value any, origin string) error {
	ctx = ensureContext(ctx)
	key = strings.TrimSpace(key)
	if key == "" {
		return services.Wrap(services.ErrValidation, "settings", "set", "no key provided", nil)
	}
	if !KnownKey(key) {
		return services.Wrap(services.ErrValidation, "settings", "set", fmt.Sprintf("unknown setting %q", key), nil)
	}
	raw, err := encodeValue(value)
	if err != nil {
		return services.Wrap(services.ErrValidation, "settings", "set", "encode value", err)
	}
	change, err := s.write(ctx, key, raw, origin)
	if err != nil {
		return err
	}
	s.publish(change)
	return nil
}

// update applies a read-modify-write to one key of the typed record.
func (s *Store) update(ctx context.Context, key string, origin string, mutate func(*Settings) error) (Settings, error) {
	var result Settings
	var change Change
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		old, err := readTx(ctx, tx, key)
		if err != nil {
			return err
		}
		current, err := FromValues(map[string]json.RawMessage{key: old})
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := mutate(&current); err != nil {
			return err
		}
		values, err := current.Values()
		if err != nil {
			return err
		}
		change, err = s.writeTx(ctx, tx, key, old, values[key], origin)
		if err != nil {
			return err
		}
		result = current
		return tx.Commit()
	})
	if err != nil {
		return Settings{}, err
	}
	s.publish(change)
	return result, nil
}

func (s *Store) write(ctx context.Context, key string, value json.RawMessage, origin string) (Change, error) {
	var change Change
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		old, err := readTx(ctx, tx, key)
		if err != nil {
			return err
		}
		change, err = s.writeTx(ctx, tx, key, old, value, origin)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return Change{}, fmt.Errorf("set setting %s: %w", key, err)
	}
	return change, nil
}

func readTx(ctx context.Context, tx *sql.Tx, key string) (json.RawMessage, error) {
	var value string
	err := tx.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

func (s *Store) writeTx(ctx context.Context, tx *sql.Tx, key string, old, value json.RawMessage, origin string) (Change, error) {
	at := s.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (key, value, origin, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, origin = excluded.origin, updated_at = excluded.updated_at`,
		key, string(value), origin, at.Format(time.RFC3339Nano),
	); err != nil {
		return Change{}, err
	}
	if old == nil {
		old = json.RawMessage("null")
	}
	return Change{Key: key, Old: old, New: value, Origin: origin, At: at}, nil
}

// Subscribe registers handler for every change.
func (s *Store) Subscribe(handler func(Change)) *Subscription {
	return s.hub.Subscribe(allKeys, handler)
}

// SubscribeKey registers handler for changes to one key.
func (s *Store) SubscribeKey(key string, handler func(Change)) *Subscription {
	return s.hub.Subscribe(key, handler)
}

// Unsubscribe removes a subscription.
func (s *Store) Unsubscribe(sub *Subscription) {
	s.hub.Unsubscribe(sub)
}

func (s *Store) publish(change Change) {
	s.logger.Debug("setting changed",
		logging.String("key", change.Key),
		logging.String(logging.FieldOrigin, change.Origin),
	)
	s.hub.Publish(change.Key, change)
	s.hub.Publish(allKeys, change)
}

func encodeValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("invalid json")
		}
		return raw, nil
	}
	return json.Marshal(value)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
