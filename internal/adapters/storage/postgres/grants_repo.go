package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medical-record-access/internal/domain/grants"
)

type GrantsRepo struct {
	db *sql.DB
}

func NewGrantsRepo(db *sql.DB) *GrantsRepo {
	return &GrantsRepo{db: db}
}

const grantColumns = `
	id, requester_id, subject_id, purpose, requested_duration_days,
	status, scope_limited, note,
	created_at, updated_at, expires_at, version
`

func (r *GrantsRepo) Create(ctx context.Context, g grants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (
			id, requester_id, subject_id, purpose, requested_duration_days,
			status, scope_limited, note,
			created_at, updated_at, expires_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		g.ID,
		g.RequesterID,
		g.SubjectID,
		g.Purpose,
		g.RequestedDurationDays,
		string(g.Status),
		g.ScopeLimited,
		g.Note,
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.ExpiresAt),
		g.Version,
	)
	if err != nil {
		return unavailable(grants.ErrUnavailable, err)
	}
	return nil
}

// Update con chequeo optimista: si la versión guardada no coincide, otra
// transición ganó primero.
func (r *GrantsRepo) Update(ctx context.Context, g grants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			status = $3,
			scope_limited = $4,
			note = $5,
			updated_at = $6,
			expires_at = $7,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		g.ID,
		g.Version,
		string(g.Status),
		g.ScopeLimited,
		g.Note,
		g.UpdatedAt,
		toNullTime(g.ExpiresAt),
	)
	if err != nil {
		return unavailable(grants.ErrUnavailable, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		// Puede ser id inexistente o versión vieja; distinguimos releyendo.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM access_grants WHERE id = $1)`, g.ID,
		).Scan(&exists); err != nil {
			return unavailable(grants.ErrUnavailable, err)
		}
		if exists {
			return grants.ErrConflict
		}
		return ErrNotFound
	}
	return nil
}

func (r *GrantsRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return grants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE id = $1
	`, id)

	g, err := scanGrant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return grants.Grant{}, ErrNotFound
		}
		return grants.Grant{}, unavailable(grants.ErrUnavailable, err)
	}
	return g, nil
}

func (r *GrantsRepo) ListBySubject(ctx context.Context, subjectID string) ([]grants.Grant, error) {
	return r.list(ctx, `subject_id = $1`, subjectID)
}

func (r *GrantsRepo) ListByRequester(ctx context.Context, requesterID string) ([]grants.Grant, error) {
	return r.list(ctx, `requester_id = $1`, requesterID)
}

func (r *GrantsRepo) list(ctx context.Context, where, arg string) ([]grants.Grant, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE `+where+`
		ORDER BY created_at ASC
	`, arg)
	if err != nil {
		return nil, unavailable(grants.ErrUnavailable, err)
	}
	defer rows.Close()

	out := make([]grants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, unavailable(grants.ErrUnavailable, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetActiveGrant: status y expires_at salen de la misma fila en una sola
// query; el snapshot del par es consistente.
func (r *GrantsRepo) GetActiveGrant(ctx context.Context, requesterID, subjectID string, now time.Time) (grants.Grant, error) {
	requesterID = strings.TrimSpace(requesterID)
	subjectID = strings.TrimSpace(subjectID)
	if requesterID == "" || subjectID == "" {
		return grants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE requester_id = $1
		  AND subject_id = $2
		  AND status = 'approved'
		  AND expires_at > $3
		ORDER BY updated_at DESC
		LIMIT 1
	`, requesterID, subjectID, now)

	g, err := scanGrant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return grants.Grant{}, ErrNotFound
		}
		return grants.Grant{}, unavailable(grants.ErrUnavailable, err)
	}
	return g, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (grants.Grant, error) {
	var g grants.Grant
	var status string
	var expiresAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.RequesterID,
		&g.SubjectID,
		&g.Purpose,
		&g.RequestedDurationDays,
		&status,
		&g.ScopeLimited,
		&g.Note,
		&g.CreatedAt,
		&g.UpdatedAt,
		&expiresAt,
		&g.Version,
	); err != nil {
		return grants.Grant{}, err
	}

	g.Status = grants.Status(status)
	if expiresAt.Valid {
		t := expiresAt.Time
		g.ExpiresAt = &t
	}
	return g, nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
