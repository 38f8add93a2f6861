package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hafeefas/investment-simulator/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Each user's ledger is one JSONB document plus a revision column; the
// conditional write is an UPDATE guarded by `revision = expected`, so the
// compare-and-set is atomic at the database.
//
// Schema:
//
//	CREATE TABLE ledgers (
//	    user_id  TEXT PRIMARY KEY,
//	    doc      JSONB NOT NULL,
//	    revision BIGINT NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*model.Ledger, error) {
	var doc []byte
	var revision int64

	err := s.pool.QueryRow(ctx,
		`SELECT doc, revision FROM ledgers WHERE user_id = $1`, userID).
		Scan(&doc, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLedgerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger %s: %w", userID, err)
	}

	var l model.Ledger
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", userID, err)
	}
	// The revision column is authoritative for the CAS; keep the document
	// in agreement with it.
	l.Revision = revision
	return &l, nil
}

func (s *PostgresStore) Create(ctx context.Context, l *model.Ledger) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", l.UserID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledgers (user_id, doc, revision) VALUES ($1, $2, $3)`,
		l.UserID, doc, l.Revision)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return ErrLedgerExists
	}
	if err != nil {
		return fmt.Errorf("create ledger %s: %w", l.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ConditionalPut(ctx context.Context, l *model.Ledger, expectedRevision int64) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", l.UserID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ledgers SET doc = $2, revision = $3
		 WHERE user_id = $1 AND revision = $4`,
		l.UserID, doc, l.Revision, expectedRevision)
	if err != nil {
		return fmt.Errorf("put ledger %s: %w", l.UserID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the user is unknown or another writer got there
	// first. Distinguish so the caller retries only real conflicts.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledgers WHERE user_id = $1)`, l.UserID).
		Scan(&exists); err != nil {
		return fmt.Errorf("put ledger %s: %w", l.UserID, err)
	}
	if !exists {
		return ErrLedgerNotFound
	}
	return ErrRevisionConflict
}
