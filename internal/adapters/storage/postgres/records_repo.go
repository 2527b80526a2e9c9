package postgres

import (
	"context"
	"database/sql"
	"strings"

	"medical-record-access/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (id, owner_id, title, category, verified, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		rec.ID,
		rec.OwnerID,
		rec.Title,
		rec.Category,
		rec.Verified,
		rec.Notes,
		rec.CreatedAt,
	)
	if err != nil {
		return unavailable(records.ErrUnavailable, err)
	}
	return nil
}

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, category, verified, notes, created_at
		FROM records
		WHERE id = $1
	`, id)

	var rec records.Record
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Title,
		&rec.Category,
		&rec.Verified,
		&rec.Notes,
		&rec.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return records.Record{}, ErrNotFound
		}
		return records.Record{}, unavailable(records.ErrUnavailable, err)
	}
	return rec, nil
}

func (r *RecordsRepo) ListByOwner(ctx context.Context, ownerID string) ([]records.Record, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, title, category, verified, notes, created_at
		FROM records
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, unavailable(records.ErrUnavailable, err)
	}
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		var rec records.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.Title,
			&rec.Category,
			&rec.Verified,
			&rec.Notes,
			&rec.CreatedAt,
		); err != nil {
			return nil, unavailable(records.ErrUnavailable, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
