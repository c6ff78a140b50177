package approval

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const requestColumns = "id, subject_type, subject_id, from_status, to_status, requester_id, status, COALESCE(comment, ''), decider_id, decided_at, created_at"

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.SubjectType, &r.SubjectID, &r.FromStatus, &r.ToStatus, &r.RequesterID, &r.Status, &r.Comment, &r.DeciderID, &r.DecidedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

// CreateRequest relies on the partial unique index over pending requests
// per subject to enforce the at-most-one-pending invariant.
func (s *Store) CreateRequest(ctx context.Context, tenantID string, req Request) (Request, error) {
	created, err := scanRequest(s.DB.QueryRow(ctx, `
    INSERT INTO approval_requests (tenant_id, subject_type, subject_id, from_status, to_status, requester_id, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+requestColumns+`
  `, tenantID, req.SubjectType, req.SubjectID, req.FromStatus, req.ToStatus, req.RequesterID, req.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Request{}, ErrDuplicatePending
		}
		return Request{}, err
	}
	return created, nil
}

func (s *Store) GetRequest(ctx context.Context, tenantID, requestID string) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, `
    SELECT `+requestColumns+`
    FROM approval_requests
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, requestID))
}

func (s *Store) MarkDecided(ctx context.Context, tenantID, requestID string, status RequestStatus, deciderID, comment string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE approval_requests
    SET status = $1, decider_id = $2, comment = $3, decided_at = now()
    WHERE tenant_id = $4 AND id = $5 AND status = $6
  `, status, deciderID, nullIfEmpty(comment), tenantID, requestID, StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListPending(ctx context.Context, tenantID string, limit, offset int) ([]Request, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM approval_requests WHERE tenant_id = $1 AND status = $2", tenantID, StatusPending).Scan(&total); err != nil {
		total = 0
	}

	rows, err := s.DB.Query(ctx, `
    SELECT `+requestColumns+`
    FROM approval_requests
    WHERE tenant_id = $1 AND status = $2
    ORDER BY created_at
    LIMIT $3 OFFSET $4
  `, tenantID, StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.SubjectType, &r.SubjectID, &r.FromStatus, &r.ToStatus, &r.RequesterID, &r.Status, &r.Comment, &r.DeciderID, &r.DecidedAt, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		requests = append(requests, r)
	}
	return requests, total, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
