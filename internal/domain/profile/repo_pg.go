package profile

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

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const profileCols = `p.user_id, p.email, p.first_name, p.last_name, p.role,
	p.facility_id, f.name, p.created_at, p.updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var role *string
	err := row.Scan(&p.UserID, &p.Email, &p.FirstName, &p.LastName, &role,
		&p.FacilityID, &p.FacilityName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if role != nil {
		p.Role = Role(*role)
	}
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	var role *string
	if p.Role.IsSet() {
		s := string(p.Role)
		role = &s
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO profiles (user_id, email, first_name, last_name, role, facility_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.UserID, p.Email, p.FirstName, p.LastName, role, p.FacilityID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *profileRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+profileCols+`
		FROM profiles p
		LEFT JOIN facilities f ON f.id = p.facility_id
		WHERE p.user_id = $1`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *profileRepoPG) UpdateNames(ctx context.Context, userID uuid.UUID, firstName, lastName *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles
		SET first_name = $2, last_name = $3, updated_at = $4
		WHERE user_id = $1`,
		userID, firstName, lastName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update profile names: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepoPG) SetRole(ctx context.Context, userID uuid.UUID, role Role) error {
	var val *string
	if role.IsSet() {
		s := string(role)
		val = &s
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles SET role = $2, updated_at = $3 WHERE user_id = $1`,
		userID, val, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set profile role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepoPG) SetFacility(ctx context.Context, userID uuid.UUID, facilityID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles SET facility_id = $2, updated_at = $3 WHERE user_id = $1`,
		userID, facilityID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set profile facility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepoPG) ListByRoles(ctx context.Context, roles []Role) ([]*Profile, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+profileCols+`
		FROM profiles p
		LEFT JOIN facilities f ON f.id = p.facility_id
		WHERE p.role = ANY($1)
		ORDER BY p.created_at`, names)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profileRepoPG) Delete(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
