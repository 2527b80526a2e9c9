package postgres

import (
	"context"
	"database/sql"
	"strings"

	"medical-record-access/internal/domain/identity"
)

type ActorsRepo struct {
	db *sql.DB
}

func NewActorsRepo(db *sql.DB) *ActorsRepo {
	return &ActorsRepo{db: db}
}

func (r *ActorsRepo) Create(ctx context.Context, a identity.Actor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actors (id, role, display_name, category, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`,
		a.ID,
		string(a.Role),
		a.DisplayName,
		a.Category,
		a.CreatedAt,
	)
	if err != nil {
		return unavailable(identity.ErrUnavailable, err)
	}
	return nil
}

func (r *ActorsRepo) GetByID(ctx context.Context, id string) (identity.Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return identity.Actor{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, role, display_name, category, created_at
		FROM actors
		WHERE id = $1
	`, id)

	var a identity.Actor
	var role string

	if err := row.Scan(&a.ID, &role, &a.DisplayName, &a.Category, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return identity.Actor{}, ErrNotFound
		}
		return identity.Actor{}, unavailable(identity.ErrUnavailable, err)
	}

	a.Role = identity.Role(role)
	return a, nil
}

func (r *ActorsRepo) ListByRole(ctx context.Context, role identity.Role) ([]identity.Actor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, role, display_name, category, created_at
		FROM actors
		WHERE role = $1
		ORDER BY created_at ASC
	`, string(role))
	if err != nil {
		return nil, unavailable(identity.ErrUnavailable, err)
	}
	defer rows.Close()

	out := make([]identity.Actor, 0)
	for rows.Next() {
		var a identity.Actor
		var rr string
		if err := rows.Scan(&a.ID, &rr, &a.DisplayName, &a.Category, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Role = identity.Role(rr)
		out = append(out, a)
	}
	return out, rows.Err()
}
