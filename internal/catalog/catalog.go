// Package catalog maintains a SQLite index of committed chunk files. The
// index is a convenience for listing and tooling; the chunk files themselves
// remain the source of truth, and every catalog failure is non-fatal to the
// capture pipeline.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/Sumatoshi-tech/daqstream/internal/capture"
)

// schema holds one row per committed chunk, keyed like the chunk file name.
const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	boot_id        INTEGER NOT NULL,
	seq_start      INTEGER NOT NULL,
	file           TEXT    NOT NULL,
	sample_count   INTEGER NOT NULL,
	sample_rate_hz REAL    NOT NULL,
	opened_at      INTEGER NOT NULL,
	closed_at      INTEGER NOT NULL,
	committed_at   INTEGER NOT NULL,
	PRIMARY KEY (boot_id, seq_start)
);
`

// Catalog is a chunk index backed by a SQLite database file. Safe for
// concurrent use by the consumer and the CLI listing command.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	// The consumer and CLI may touch the catalog concurrently; a single
	// connection sidesteps SQLITE_BUSY on the shared file.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Record inserts one committed chunk, replacing a previous row with the
// same (boot id, seq_start). Implements capture.ChunkRecorder.
func (c *Catalog) Record(rec capture.ChunkRecord) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO chunks
		 (boot_id, seq_start, file, sample_count, sample_rate_hz, opened_at, closed_at, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(rec.BootID),
		int64(rec.SeqStart),
		rec.File,
		rec.SampleCount,
		rec.SampleRateHz,
		rec.OpenedAt.Unix(),
		rec.ClosedAt.Unix(),
		rec.CommittedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record chunk seq=%d: %w", rec.SeqStart, err)
	}

	return nil
}

// Recent returns up to limit chunks, most recently committed first.
func (c *Catalog) Recent(limit int) ([]capture.ChunkRecord, error) {
	rows, err := c.db.Query(
		`SELECT boot_id, seq_start, file, sample_count, sample_rate_hz, opened_at, closed_at, committed_at
		 FROM chunks
		 ORDER BY committed_at DESC, seq_start DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent chunks: %w", err)
	}
	defer rows.Close()

	var recs []capture.ChunkRecord

	for rows.Next() {
		var (
			rec                    capture.ChunkRecord
			bootID, seqStart       int64
			opened, closed, commit int64
		)

		err = rows.Scan(&bootID, &seqStart, &rec.File, &rec.SampleCount, &rec.SampleRateHz, &opened, &closed, &commit)
		if err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}

		rec.BootID = uint64(bootID)
		rec.SeqStart = uint64(seqStart)
		rec.OpenedAt = time.Unix(opened, 0)
		rec.ClosedAt = time.Unix(closed, 0)
		rec.CommittedAt = time.Unix(commit, 0)

		recs = append(recs, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}

	return recs, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}
