package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shelfsync/internal/merge"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store is a single-file destination backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for created and edited times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates or opens the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild the mirror)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
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

// DefineDatabase creates or replaces a database and its columns.
func (s *Store) DefineDatabase(ctx context.Context, schema store.Schema) error {
	id := store.NormalizeID(schema.DatabaseID)
	if id == "" {
		return fmt.Errorf("database id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin define tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO databases (id, title) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title`, id, schema.Title); err != nil {
		return fmt.Errorf("upsert database: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM properties WHERE database_id = ?", id); err != nil {
		return fmt.Errorf("clear properties: %w", err)
	}
	for _, prop := range schema.Properties {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO properties (database_id, id, name, type) VALUES (?, ?, ?, ?)",
			id, prop.ID, prop.Name, string(prop.Type)); err != nil {
			return fmt.Errorf("insert property %s: %w", prop.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit define: %w", err)
	}
	return nil
}

// Describe implements store.Store.
func (s *Store) Describe(ctx context.Context, databaseID string) (store.Schema, error) {
	id := store.NormalizeID(databaseID)
	schema := store.Schema{DatabaseID: id, Properties: map[string]store.Property{}}
	err := s.db.QueryRowContext(ctx, "SELECT title FROM databases WHERE id = ?", id).Scan(&schema.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Schema{}, services.Wrap(services.ErrSchema, "sqlite", "describe", "database "+id+" not defined", nil)
	}
	if err != nil {
		return store.Schema{}, fmt.Errorf("read database: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, type FROM properties WHERE database_id = ?", id)
	if err != nil {
		return store.Schema{}, fmt.Errorf("read properties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var prop store.Property
		var typ string
		if err := rows.Scan(&prop.ID, &prop.Name, &typ); err != nil {
			return store.Schema{}, fmt.Errorf("scan property: %w", err)
		}
		prop.Type = store.PropertyType(typ)
		schema.Properties[prop.ID] = prop
	}
	return schema, rows.Err()
}

// Query implements store.Store. Time filters run in SQL; property filters
// run on decoded values.
func (s *Store) Query(ctx context.Context, databaseID string, filter store.Filter) ([]store.Record, error) {
	id := store.NormalizeID(databaseID)
	schema, err := s.Describe(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, prop := range []string{filter.EmptyProperty, matchProperty(filter.Equals)} {
		if prop == "" {
			continue
		}
		if _, ok := schema.Property(prop); !ok {
			return nil, services.Wrap(services.ErrSchema, "sqlite", "query", "unknown property "+prop, nil)
		}
	}

	query := "SELECT id, database_id, properties_json, created_at, updated_at FROM records WHERE database_id = ?"
	args := []any{id}
	if !filter.CreatedAfter.IsZero() {
		query += " AND created_at > ?"
		args = append(args, formatTime(filter.CreatedAfter))
	}
	if !filter.EditedAfter.IsZero() {
		query += " AND updated_at > ?"
		args = append(args, formatTime(filter.EditedAfter))
	}
	if filter.SortByEdited {
		query += " ORDER BY updated_at DESC, id"
	} else {
		query += " ORDER BY created_at, id"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if filter.EmptyProperty != "" && !rec.Properties[filter.EmptyProperty].IsEmpty() {
			continue
		}
		if filter.Equals != nil && !matches(rec.Properties[filter.Equals.Property], filter.Equals.Value) {
			continue
		}
		out = append(out, *rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, rows.Err()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	id = store.NormalizeID(id)
	row := s.db.QueryRowContext(ctx,
		"SELECT id, database_id, properties_json, created_at, updated_at FROM records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "sqlite", "get", "record "+id, nil)
	}
	return rec, err
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, databaseID string, props merge.Properties, deco store.Decoration) (string, error) {
	databaseID = store.NormalizeID(databaseID)
	schema, err := s.Describe(ctx, databaseID)
	if err != nil {
		return "", err
	}
	clean, err := sanitize(schema, props)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	ts := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, database_id, properties_json, cover_url, icon, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, databaseID, string(payload), nullable(deco.CoverURL), nullable(deco.Icon), ts, ts); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// Update implements store.Store. Listed properties overwrite stored ones;
// others are left alone.
func (s *Store) Update(ctx context.Context, id string, props merge.Properties, deco store.Decoration) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	schema, err := s.Describe(ctx, current.DatabaseID)
	if err != nil {
		return err
	}
	clean, err := sanitize(schema, props)
	if err != nil {
		return err
	}
	for k, v := range clean {
		current.Properties[k] = v
	}
	payload, err := json.Marshal(current.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE records SET properties_json = ?, updated_at = ?,
		 cover_url = COALESCE(?, cover_url), icon = COALESCE(?, icon)
		 WHERE id = ?`,
		string(payload), formatTime(s.now()), nullable(deco.CoverURL), nullable(deco.Icon), current.ID); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// Decoration returns the stored cover and icon of a record.
func (s *Store) Decoration(ctx context.Context, id string) (store.Decoration, error) {
	var cover, icon sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT cover_url, icon FROM records WHERE id = ?", store.NormalizeID(id)).Scan(&cover, &icon)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Decoration{}, services.Wrap(services.ErrNotFound, "sqlite", "decoration", "record "+id, nil)
	}
	if err != nil {
		return store.Decoration{}, fmt.Errorf("read decoration: %w", err)
	}
	return store.Decoration{CoverURL: cover.String, Icon: icon.String}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*store.Record, error) {
	var (
		rec              store.Record
		payload          string
		created, updated string
	)
	if err := row.Scan(&rec.ID, &rec.DatabaseID, &payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec.Properties = merge.Properties{}
	if err := json.Unmarshal([]byte(payload), &rec.Properties); err != nil {
		return nil, fmt.Errorf("decode properties for %s: %w", rec.ID, err)
	}
	rec.CreatedTime = parseTime(created)
	rec.LastEditedTime = parseTime(updated)
	return &rec, nil
}

// sanitize rejects unknown properties, drops read-only ones, and coerces
// multi-select values the same way the Notion adapter does.
func sanitize(schema store.Schema, props merge.Properties) (merge.Properties, error) {
	out := make(merge.Properties, len(props))
	for _, id := range props.Keys() {
		prop, ok := schema.Property(id)
		if !ok {
			return nil, services.Wrap(services.ErrSchema, "sqlite", "write", fmt.Sprintf("property %s not in database %s", id, schema.DatabaseID), nil)
		}
		if !prop.Type.Writable() {
			continue
		}
		v := props[id]
		switch prop.Type {
		case store.TypeMultiSelect:
			v = merge.List(store.CleanOptions(v.Items)...)
		case store.TypeSelect:
			v = merge.Text(store.CleanMultiSelect(v.String()))
		}
		out[id] = v
	}
	return out, nil
}

func matchProperty(m *store.Match) string {
	if m == nil {
		return ""
	}
	return m.Property
}

func matches(v merge.Value, want string) bool {
	want = strings.TrimSpace(want)
	switch v.Kind {
	case merge.KindList, merge.KindRelation:
		for _, item := range v.Items {
			if item == want {
				return true
			}
		}
		return false
	case merge.KindNumber:
		n, err := strconv.ParseFloat(want, 64)
		return err == nil && v.Number != nil && *v.Number == n
	default:
		return v.String() == want
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
