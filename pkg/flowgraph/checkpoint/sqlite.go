package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id    TEXT    NOT NULL,
	node_id   TEXT    NOT NULL,
	sequence  INTEGER NOT NULL,
	timestamp TEXT    NOT NULL,
	data      BLOB    NOT NULL,
	PRIMARY KEY (run_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run_seq ON checkpoints(run_id, sequence);
`

// SQLiteStore persists checkpoints to a single SQLite file.
// It is the default store for resumable CLI runs.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a checkpoint database at path.
// ":memory:" is accepted; the store then keeps a single connection so all
// calls share one database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(runID, nodeID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if data == nil {
		data = []byte{}
	}

	_, err := s.db.Exec(`
		INSERT INTO checkpoints (run_id, node_id, sequence, timestamp, data)
		VALUES (
			?1, ?2,
			COALESCE((SELECT MAX(sequence) FROM checkpoints WHERE run_id = ?1), 0) + 1,
			?3, ?4
		)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			sequence  = (SELECT MAX(sequence) FROM checkpoints WHERE run_id = excluded.run_id) + 1,
			timestamp = excluded.timestamp,
			data      = excluded.data
	`, runID, nodeID, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(runID, nodeID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM checkpoints WHERE run_id = ? AND node_id = ?`,
		runID, nodeID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT node_id, sequence, timestamp, LENGTH(data)
		FROM checkpoints
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info      Info
			timestamp string
		)
		if err := rows.Scan(&info.NodeID, &info.Sequence, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		info.RunID = runID
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`SELECT DISTINCT run_id FROM checkpoints ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(runID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(
		`DELETE FROM checkpoints WHERE run_id = ? AND node_id = ?`, runID, nodeID,
	); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
