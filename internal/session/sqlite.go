package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps sessions in a local sqlite file. It is the dev-mode
// backend with the same contract as DynamoStore.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLiteStore opens (creating if needed) the sessions table at path.
func OpenSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		session_id        TEXT PRIMARY KEY,
		access_key_id     TEXT NOT NULL,
		secret_access_key TEXT NOT NULL,
		session_token     TEXT DEFAULT '',
		expiry            TEXT,
		created_at        TEXT NOT NULL,
		additional_data   TEXT DEFAULT ''
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Put writes a session row; write failures propagate.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	var expiry sql.NullString
	if rec.Expiry != nil {
		expiry = sql.NullString{String: rec.Expiry.UTC().Format(time.RFC3339), Valid: true}
	}

	additional := ""
	if len(rec.AdditionalData) > 0 {
		data, err := json.Marshal(rec.AdditionalData)
		if err != nil {
			return fmt.Errorf("marshaling additional data: %w", err)
		}
		additional = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (session_id, access_key_id, secret_access_key, session_token, expiry, created_at, additional_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.AccessKeyID, rec.SecretAccessKey, rec.SessionToken,
		expiry, rec.CreatedAt.UTC().Format(time.RFC3339), additional,
	)
	if err != nil {
		return fmt.Errorf("writing session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get reads a session row, collapsing all failures into ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	var rec Record
	var expiry sql.NullString
	var createdAt, additional string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, access_key_id, secret_access_key, session_token, expiry, created_at, additional_data
		 FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&rec.SessionID, &rec.AccessKeyID, &rec.SecretAccessKey, &rec.SessionToken, &expiry, &createdAt, &additional)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		}
		return nil, ErrNotFound
	}

	if expiry.Valid {
		if t, perr := time.Parse(time.RFC3339, expiry.String); perr == nil {
			rec.Expiry = &t
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if additional != "" {
		var data map[string]string
		if jerr := json.Unmarshal([]byte(additional), &data); jerr == nil {
			rec.AdditionalData = data
		}
	}

	return &rec, nil
}
