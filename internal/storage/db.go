package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pendencias/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS inbound_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  externalId TEXT NOT NULL,
  name TEXT NOT NULL,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(source, externalId)
);
CREATE INDEX IF NOT EXISTS idx_inbound_status ON inbound_files(status);
CREATE INDEX IF NOT EXISTS idx_inbound_source_status ON inbound_files(source, status);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  format TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  errorKind TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT '',
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(ctx context.Context, run internal.RunRow) error {
	timingsJSON, _ := json.Marshal(run.Timings)
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO runs (traceId, source, format, status, errorKind, error, timingsJson, countsJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Source, run.Format, run.Status, run.ErrorKind, run.Error, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) ListRuns(ctx context.Context, limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, traceId, source, format, status, errorKind, error, timingsJson, countsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.RunRow{}
	for rows.Next() {
		var r internal.RunRow
		var timingsJSON, countsJSON string
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Source, &r.Format, &r.Status, &r.ErrorKind, &r.Error, &timingsJSON, &countsJSON, &r.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &r.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &r.Counts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) UpsertInbound(source, externalID, name, receivedAt, hash, rawRef, status string) (internal.InboundRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO inbound_files (source, externalId, name, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source, externalId) DO UPDATE SET
  name=excluded.name,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, source, externalID, name, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.InboundRow{}, err
	}

	row, err := d.GetInbound(source, externalID)
	if err != nil {
		return internal.InboundRow{}, err
	}
	if row == nil {
		return internal.InboundRow{}, errors.New("failed to upsert inbound file")
	}
	return *row, nil
}

func (d *DB) GetInbound(source, externalID string) (*internal.InboundRow, error) {
	var row internal.InboundRow
	err := d.conn.QueryRow(`
SELECT id, source, externalId, name, receivedAt, hash, status, rawRef
FROM inbound_files WHERE source = ? AND externalId = ?
`, source, externalID).Scan(
		&row.ID, &row.Source, &row.ExternalID, &row.Name, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListInboundByStatus(status string, limit int) ([]internal.InboundRow, error) {
	return d.listInbound(`WHERE status = ?`, status, limit)
}

// ListInboundBySource is ListInboundByStatus restricted to one source.
func (d *DB) ListInboundBySource(source, status string, limit int) ([]internal.InboundRow, error) {
	return d.listInbound(`WHERE source = ? AND status = ?`, source, status, limit)
}

func (d *DB) listInbound(where string, args ...any) ([]internal.InboundRow, error) {
	rows, err := d.conn.Query(`
SELECT id, source, externalId, name, receivedAt, hash, status, rawRef
FROM inbound_files `+where+` ORDER BY receivedAt ASC, id ASC LIMIT ?
`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.InboundRow
	for rows.Next() {
		var row internal.InboundRow
		if err := rows.Scan(&row.ID, &row.Source, &row.ExternalID, &row.Name, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateInboundStatus(id int, status string) error {
	_, err := d.conn.Exec(`UPDATE inbound_files SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
