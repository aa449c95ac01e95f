// Package sqlite provides a SQLite-backed store.Store using mattn/go-sqlite3.
// Embeddings are stored as little-endian float32 BLOBs; tags and trace ids
// as JSON text columns. Timestamps are UTC RFC3339Nano strings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/store"
)

// Config holds configuration for the SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the required embedding length for active bullets.
	// Writes with a different length fail with ErrDimensionMismatch.
	Dimensions uint
}

// SQLiteStore implements store.Store.
type SQLiteStore struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// New opens (and if needed creates) the bullet database.
func New(c Config, logger *zap.Logger) (*SQLiteStore, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite bullet store initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
	)

	return &SQLiteStore{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bullets (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			embedding BLOB,
			helpful_count INTEGER NOT NULL DEFAULT 0 CHECK (helpful_count >= 0),
			harmful_count INTEGER NOT NULL DEFAULT 0 CHECK (harmful_count >= 0),
			created_at TEXT NOT NULL,
			last_touched_at TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			version INTEGER NOT NULL DEFAULT 0,
			duplicate_of TEXT,
			source_trace_ids TEXT NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		return fmt.Errorf("creating bullets table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			selected_bullet_ids TEXT NOT NULL DEFAULT '[]',
			used_bullet_ids TEXT NOT NULL DEFAULT '[]',
			misleading_bullet_ids TEXT NOT NULL DEFAULT '[]',
			success INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating traces table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_bullets_active_kind ON bullets(active, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_bullets_last_touched ON bullets(last_touched_at)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_created ON traces(created_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers work
// inside and outside transactions.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const bulletColumns = `id, kind, title, body, tags, embedding, helpful_count, harmful_count,
	created_at, last_touched_at, active, version, duplicate_of, source_trace_ids`

func serializeFloat32(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func scanBullet(row interface{ Scan(dest ...any) error }) (*playbook.Bullet, error) {
	var (
		b                    playbook.Bullet
		kind                 string
		tagsJSON, tracesJSON string
		embBlob              []byte
		createdAt, touchedAt string
		active               int
		duplicateOf          sql.NullString
	)
	err := row.Scan(
		&b.ID, &kind, &b.Title, &b.Body, &tagsJSON, &embBlob,
		&b.HelpfulCount, &b.HarmfulCount, &createdAt, &touchedAt,
		&active, &b.Version, &duplicateOf, &tracesJSON,
	)
	if err != nil {
		return nil, err
	}

	b.Kind = playbook.Kind(kind)
	b.Active = active != 0
	if duplicateOf.Valid {
		b.DuplicateOf = duplicateOf.String
	}
	if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
		return nil, fmt.Errorf("parsing tags for bullet %s: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(tracesJSON), &b.SourceTraceIDs); err != nil {
		return nil, fmt.Errorf("parsing source trace ids for bullet %s: %w", b.ID, err)
	}
	if b.Embedding, err = deserializeFloat32(embBlob); err != nil {
		return nil, fmt.Errorf("parsing embedding for bullet %s: %w", b.ID, err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for bullet %s: %w", b.ID, err)
	}
	if b.LastTouchedAt, err = parseTime(touchedAt); err != nil {
		return nil, fmt.Errorf("parsing last_touched_at for bullet %s: %w", b.ID, err)
	}

	return &b, nil
}

func getBullet(ctx context.Context, q querier, id string) (*playbook.Bullet, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bulletColumns+` FROM bullets WHERE id = ?`, id)
	b, err := scanBullet(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", playbook.ErrStoreUnavailable, err)
	}
	return b, nil
}

func listBullets(ctx context.Context, q querier, activeOnly bool) ([]*playbook.Bullet, error) {
	query := `SELECT ` + bulletColumns + ` FROM bullets ORDER BY id`
	if activeOnly {
		query = `SELECT ` + bulletColumns + ` FROM bullets WHERE active = 1 ORDER BY id`
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", playbook.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var bullets []*playbook.Bullet
	for rows.Next() {
		b, err := scanBullet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bullet: %w", err)
		}
		bullets = append(bullets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bullets: %w", err)
	}
	return bullets, nil
}

func countActive(ctx context.Context, q querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bullets WHERE active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", playbook.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Begin opens a write transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", playbook.ErrStoreUnavailable, err)
	}
	return &sqliteTx{tx: tx, dimensions: s.dimensions}, nil
}

// Get retrieves a bullet by id, active or not.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*playbook.Bullet, error) {
	return getBullet(ctx, s.db, id)
}

// ListActive returns all active bullets ordered by id ascending.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]*playbook.Bullet, error) {
	return listBullets(ctx, s.db, true)
}

// ListAll returns every bullet ordered by id ascending.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*playbook.Bullet, error) {
	return listBullets(ctx, s.db, false)
}

// CountActive returns the number of active bullets.
func (s *SQLiteStore) CountActive(ctx context.Context) (int, error) {
	return countActive(ctx, s.db)
}

// ListTraces returns up to limit traces, newest first.
func (s *SQLiteStore) ListTraces(ctx context.Context, limit int) ([]playbook.Trace, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, selected_bullet_ids, used_bullet_ids, misleading_bullet_ids, success, created_at
		FROM traces ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", playbook.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var traces []playbook.Trace
	for rows.Next() {
		var (
			t                                  playbook.Trace
			selectedJSON, usedJSON, misledJSON string
			success                            int
			createdAt                          string
		)
		if err := rows.Scan(&t.ID, &t.Query, &selectedJSON, &usedJSON, &misledJSON, &success, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning trace: %w", err)
		}
		t.Success = success != 0
		if err := json.Unmarshal([]byte(selectedJSON), &t.SelectedBulletIDs); err != nil {
			return nil, fmt.Errorf("parsing selected ids for trace %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(usedJSON), &t.UsedBulletIDs); err != nil {
			return nil, fmt.Errorf("parsing used ids for trace %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(misledJSON), &t.MisleadingBulletIDs); err != nil {
			return nil, fmt.Errorf("parsing misleading ids for trace %s: %w", t.ID, err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for trace %s: %w", t.ID, err)
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating traces: %w", err)
	}
	return traces, nil
}

// Compact hard-deletes inactive bullets whose last touch precedes the cutoff.
func (s *SQLiteStore) Compact(ctx context.Context, olderThan time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", playbook.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	cutoff := formatTime(olderThan)
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM bullets WHERE active = 0 AND last_touched_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying compaction candidates: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating compaction candidates: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bullets WHERE active = 0 AND last_touched_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("deleting inactive bullets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing compaction: %w", err)
	}

	s.logger.Info("compacted inactive bullets",
		zap.Int("removed", len(ids)),
	)
	return ids, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)
