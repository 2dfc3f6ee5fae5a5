package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkit/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `id, type, payload, status, submitted_at, resolved_at, approved_by`

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.Type, &req.Payload, &req.Status,
		&req.SubmittedAt, &req.ResolvedAt, &req.ApprovedBy)
	return &req, err
}

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = StatusPending
	req.SubmittedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO registration_requests (id, type, payload, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.Type, req.Payload, req.Status, req.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert registration request: %w", err)
	}
	return nil
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM registration_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration request: %w", err)
	}
	return req, nil
}

func (r *requestRepoPG) List(ctx context.Context, status string) ([]*Request, error) {
	query := `SELECT ` + requestCols + ` FROM registration_requests`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registration requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *requestRepoPG) MarkApproved(ctx context.Context, id, approvedBy uuid.UUID) error {
	return r.resolve(ctx, id, approvedBy, StatusApproved)
}

func (r *requestRepoPG) MarkRejected(ctx context.Context, id, approvedBy uuid.UUID) error {
	return r.resolve(ctx, id, approvedBy, StatusRejected)
}

// resolve flips a pending request to a terminal status. The status guard in
// the WHERE clause makes double resolution impossible even under races.
func (r *requestRepoPG) resolve(ctx context.Context, id, approvedBy uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE registration_requests
		SET status = $2, approved_by = $3, resolved_at = $4
		WHERE id = $1 AND status = $5`,
		id, status, approvedBy, time.Now().UTC(), StatusPending)
	if err != nil {
		return fmt.Errorf("resolve registration request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrNotPending
	}
	return nil
}
