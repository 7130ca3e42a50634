package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeForge/internal/port/database"
)

// Store implements database.Store using PostgreSQL, the durable mirror of
// the in-memory session state the runtime keeps authoritative (§4.1).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Sessions ---

func (s *Store) SaveSessionState(ctx context.Context, sessionID string, projectType string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, project_type, state)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET project_type = $2, state = $3, updated_at = now()`,
		sessionID, projectType, data)
	if err != nil {
		return fmt.Errorf("save session state %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) LoadSessionState(ctx context.Context, sessionID string) (string, []byte, error) {
	var projectType string
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT project_type, state FROM sessions WHERE id = $1`, sessionID,
	).Scan(&projectType, &data)
	if err != nil {
		return "", nil, notFoundWrap(err, "load session state %s", sessionID)
	}
	return projectType, data, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return execExpectOne(tag, err, "delete session %s", sessionID)
}

// --- VCS objects ---

func (s *Store) SaveVCSObject(ctx context.Context, sessionID, kind, hash string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vcs_objects (session_id, kind, hash, data)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, hash) DO NOTHING`,
		sessionID, kind, hash, data)
	if err != nil {
		return fmt.Errorf("save vcs object %s/%s: %w", sessionID, hash, err)
	}
	return nil
}

func (s *Store) LoadVCSObjects(ctx context.Context, sessionID string) ([]database.VCSObjectRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, hash, data FROM vcs_objects WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load vcs objects %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []database.VCSObjectRow
	for rows.Next() {
		var row database.VCSObjectRow
		if err := rows.Scan(&row.Kind, &row.Hash, &row.Data); err != nil {
			return nil, fmt.Errorf("scan vcs object: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) SaveHead(ctx context.Context, sessionID, commitHash string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vcs_heads (session_id, commit_hash)
		 VALUES ($1, $2)
		 ON CONFLICT (session_id) DO UPDATE SET commit_hash = $2`,
		sessionID, commitHash)
	if err != nil {
		return fmt.Errorf("save head %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) LoadHead(ctx context.Context, sessionID string) (string, bool, error) {
	var commitHash string
	err := s.pool.QueryRow(ctx,
		`SELECT commit_hash FROM vcs_heads WHERE session_id = $1`, sessionID,
	).Scan(&commitHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load head %s: %w", sessionID, err)
	}
	return commitHash, true, nil
}

var _ database.Store = (*Store)(nil)
