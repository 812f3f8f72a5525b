// Package database persists computed fingerprints so a re-run does not
// re-hash unchanged files. Entries are keyed by (path, size, mtime); any
// mismatch falls back to a full re-hash of that file.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"imagededup/logging"
	"imagededup/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	format TEXT,
	width INTEGER,
	height INTEGER,
	exact_hash TEXT NOT NULL,
	perceptual_hash TEXT NOT NULL,
	capture_time TEXT,
	camera_make TEXT,
	camera_model TEXT,
	orientation INTEGER,
	name_tokens TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exact_hash ON fingerprints(exact_hash);`

// Checkpoint is the resumable on-disk fingerprint index.
type Checkpoint struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the checkpoint database. A corrupt or unreadable
// store is wiped and recreated rather than partially trusted; only a store
// that cannot even be rebuilt is an error.
func Open(path string) (*Checkpoint, error) {
	cp, err := open(path)
	if err == nil {
		return cp, nil
	}

	corruption := &types.IndexCorruption{Path: path, Err: err}
	logging.LogWarning("%v - rebuilding from scratch", corruption)
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("rebuild checkpoint: %w", corruption)
	}
	cp, err = open(path)
	if err != nil {
		return nil, fmt.Errorf("rebuild checkpoint: %w", err)
	}
	return cp, nil
}

func open(path string) (*Checkpoint, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Checkpoint{db: db, path: path}, nil
}

// Close closes the underlying database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// Lookup returns the stored record for a file when size and mtime still
// match. Unreadable rows count as misses so corruption forces a re-hash,
// never a wrong answer.
func (c *Checkpoint) Lookup(path string, size int64, mtime time.Time) (types.ImageRecord, bool) {
	var (
		rec         types.ImageRecord
		storedSize  int64
		storedMtime int64
		pHashHex    string
		captureTime sql.NullString
		tokens      sql.NullString
	)

	row := c.db.QueryRow(`
		SELECT size, mtime, format, width, height, exact_hash, perceptual_hash,
		       capture_time, camera_make, camera_model, orientation, name_tokens
		FROM fingerprints WHERE path = ?`, path)
	err := row.Scan(&storedSize, &storedMtime, &rec.Format, &rec.Width, &rec.Height,
		&rec.ExactHash, &pHashHex, &captureTime, &rec.Exif.CameraMake,
		&rec.Exif.CameraModel, &rec.Exif.Orientation, &tokens)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.LogWarning("checkpoint row for %s unreadable, re-hashing: %v", path, err)
		}
		return rec, false
	}

	if storedSize != size || storedMtime != mtime.UnixNano() {
		return rec, false
	}

	pHash, err := strconv.ParseUint(pHashHex, 16, 64)
	if err != nil {
		logging.LogWarning("checkpoint hash for %s unreadable, re-hashing: %v", path, err)
		return rec, false
	}
	rec.Path = path
	rec.ByteSize = size
	rec.ModTime = mtime
	rec.PerceptualHash = pHash
	if captureTime.Valid && captureTime.String != "" {
		if ts, err := time.Parse(time.RFC3339Nano, captureTime.String); err == nil {
			rec.Exif.CaptureTime = &ts
		}
	}
	if tokens.Valid && tokens.String != "" {
		if err := json.Unmarshal([]byte(tokens.String), &rec.NameTokens); err != nil {
			rec.NameTokens = nil
		}
	}
	return rec, true
}

// Store upserts the fingerprint for a file.
func (c *Checkpoint) Store(rec types.ImageRecord) error {
	var captureTime string
	if rec.Exif.CaptureTime != nil {
		captureTime = rec.Exif.CaptureTime.Format(time.RFC3339Nano)
	}
	tokens, _ := json.Marshal(rec.NameTokens)

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO fingerprints (
			path, size, mtime, format, width, height, exact_hash, perceptual_hash,
			capture_time, camera_make, camera_model, orientation, name_tokens, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Path,
		rec.ByteSize,
		rec.ModTime.UnixNano(),
		rec.Format,
		rec.Width,
		rec.Height,
		rec.ExactHash,
		strconv.FormatUint(rec.PerceptualHash, 16),
		captureTime,
		rec.Exif.CameraMake,
		rec.Exif.CameraModel,
		rec.Exif.Orientation,
		string(tokens),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cannot store fingerprint for %s: %w", rec.Path, err)
	}
	return nil
}

// Stats returns counters for the end-of-run summary.
func (c *Checkpoint) Stats() (total int, uniqueHashes int, err error) {
	if err = c.db.QueryRow("SELECT COUNT(*) FROM fingerprints").Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	if err = c.db.QueryRow("SELECT COUNT(DISTINCT exact_hash) FROM fingerprints").Scan(&uniqueHashes); err != nil {
		return 0, 0, fmt.Errorf("failed to count unique hashes: %w", err)
	}
	return total, uniqueHashes, nil
}
