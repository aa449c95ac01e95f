// Package sqlitevec provides a SQLite-backed index.Index using sqlite-vec.
// The vec0 virtual table handles KNN queries; a mapping table carries the
// string bullet ids and kinds that vec0's integer rowids can't.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/index"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

// overfetch widens KNN queries so equal-distance neighbours past the cut
// can still take part in the id tie-break.
const overfetch = 128

// Index implements index.Index using SQLite with sqlite-vec.
type Index struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding vector length. Must be non-zero.
	Dimensions uint
}

// New creates a sqlite-vec backed index.
func New(c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so a mapping table carries
	// the bullet id and kind for each embedding row.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_bullets (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			bullet_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bullet mapping table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Nearest runs a KNN query over the vec0 table. Kind scoping is pushed into
// the query as a rowid constraint, so a scoped search never loses its match
// behind closer entries of other kinds; the (similarity desc, id asc)
// ordering contract is resolved in Go.
func (x *Index) Nearest(ctx context.Context, embedding []float32, kind playbook.Kind, limit int) ([]index.Match, error) {
	if uint(len(embedding)) != x.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", index.ErrDimension, len(embedding), x.dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT
			b.bullet_id,
			b.kind,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_bullets b ON b.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?`
	args := []any{serializeFloat32(embedding), limit + overfetch}
	if kind != "" {
		query += `
			AND ve.rowid IN (SELECT rowid FROM vec_bullets WHERE kind = ?)`
		args = append(args, string(kind))
	}
	query += `
		ORDER BY ve.distance`

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []index.Match
	for rows.Next() {
		var bulletID, entryKind string
		var distance float64
		if err := rows.Scan(&bulletID, &entryKind, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		matches = append(matches, index.Match{
			ID:   bulletID,
			Kind: playbook.Kind(entryKind),
			// cosine distance is 1 - similarity
			Similarity: 1.0 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Upsert inserts or replaces an entry.
func (x *Index) Upsert(ctx context.Context, entry index.Entry) error {
	if uint(len(entry.Embedding)) != x.dimensions {
		return fmt.Errorf("%w: entry %s has %d, want %d", index.ErrDimension, entry.ID, len(entry.Embedding), x.dimensions)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func upsertTx(ctx context.Context, tx *sql.Tx, entry index.Entry) error {
	embBlob := serializeFloat32(entry.Embedding)

	var existingRowID int64
	err := tx.QueryRowContext(ctx,
		`SELECT rowid FROM vec_bullets WHERE bullet_id = ?`, entry.ID,
	).Scan(&existingRowID)

	switch err {
	case nil:
		if _, err := tx.ExecContext(ctx,
			`UPDATE vec_bullets SET kind = ? WHERE rowid = ?`,
			string(entry.Kind), existingRowID,
		); err != nil {
			return fmt.Errorf("updating bullet %s: %w", entry.ID, err)
		}

		// vec0 does not support UPDATE, so replace via DELETE + INSERT.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for bullet %s: %w", entry.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			existingRowID, embBlob,
		); err != nil {
			return fmt.Errorf("re-inserting embedding for bullet %s: %w", entry.ID, err)
		}
	case sql.ErrNoRows:
		result, err := tx.ExecContext(ctx,
			`INSERT INTO vec_bullets(bullet_id, kind) VALUES (?, ?)`,
			entry.ID, string(entry.Kind),
		)
		if err != nil {
			return fmt.Errorf("inserting bullet %s: %w", entry.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for bullet %s: %w", entry.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, embBlob,
		); err != nil {
			return fmt.Errorf("inserting embedding for bullet %s: %w", entry.ID, err)
		}
	default:
		return fmt.Errorf("checking for existing bullet %s: %w", entry.ID, err)
	}

	return nil
}

// Remove drops an entry by bullet id.
func (x *Index) Remove(ctx context.Context, id string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM vec_bullets WHERE bullet_id = ?`, id,
	).Scan(&rowID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying rowid for deletion: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_bullets WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting bullet %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rebuild replaces the whole index with the given entries.
func (x *Index) Rebuild(ctx context.Context, entries []index.Entry) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_bullets`); err != nil {
		return fmt.Errorf("clearing bullets: %w", err)
	}

	for _, entry := range entries {
		if uint(len(entry.Embedding)) != x.dimensions {
			return fmt.Errorf("%w: entry %s has %d, want %d", index.ErrDimension, entry.ID, len(entry.Embedding), x.dimensions)
		}
		if err := upsertTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.logger.Debug("rebuilt sqlite-vec index",
		zap.Int("entries", len(entries)),
	)
	return nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	return x.db.Close()
}

// Ensure Index implements index.Index.
var _ index.Index = (*Index)(nil)
