package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultListLimit bounds List when the caller passes a non-positive limit.
	DefaultListLimit = 50
)

// Open creates or connects to the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an entry. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if s == nil {
		return 0, nil
	}
	if strings.TrimSpace(entry.Name) == "" {
		return 0, errors.New("history entry requires a name")
	}
	if entry.Kind == "" {
		return 0, errors.New("history entry requires a kind")
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	var id int64
	err := retryOnBusy(ensureContext(ctx), func() error {
		res, err := s.db.ExecContext(ensureContext(ctx),
			`INSERT INTO events (
                kind, name, package_kind, status, detail, bytes, fingerprint, correlation_id, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(entry.Kind),
			entry.Name,
			nullableString(entry.PackageKind),
			entry.Status,
			nullableString(entry.Detail),
			nullableInt(entry.Bytes),
			nullableString(entry.Fingerprint),
			nullableString(entry.CorrelationID),
			created.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	return id, nil
}

// List returns the newest entries first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, kind, name, package_kind, status, detail, bytes, fingerprint, correlation_id, created_at
         FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Clear removes every entry and reports how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM events")
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return removed, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		kind        string
		packageKind sql.NullString
		detail      sql.NullString
		bytes       sql.NullInt64
		fingerprint sql.NullString
		correlation sql.NullString
		created     string
	)
	if err := scanner.Scan(&entry.ID, &kind, &entry.Name, &packageKind, &entry.Status,
		&detail, &bytes, &fingerprint, &correlation, &created); err != nil {
		return Entry{}, fmt.Errorf("scan history entry: %w", err)
	}
	entry.Kind = Kind(kind)
	entry.PackageKind = packageKind.String
	entry.Detail = detail.String
	entry.Bytes = bytes.Int64
	entry.Fingerprint = fingerprint.String
	entry.CorrelationID = correlation.String
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
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

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}
