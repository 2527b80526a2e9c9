package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"medical-record-access/internal/domain/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append: la tabla no tiene UPDATE ni DELETE en ningún camino de código.
func (r *AuditRepo) Append(ctx context.Context, e audit.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor_id, action, target_subject_id, details, origin_address, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		e.ActorID,
		string(e.Action),
		e.TargetSubjectID,
		e.Details,
		e.OriginAddress,
		e.Timestamp,
	)
	if err != nil {
		return unavailable(audit.ErrUnavailable, err)
	}
	return nil
}

func (r *AuditRepo) Query(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if f.ActorID != "" {
		conditions = append(conditions, "actor_id = $"+strconv.Itoa(argIdx))
		args = append(args, f.ActorID)
		argIdx++
	}
	if f.Action != "" {
		conditions = append(conditions, "action = $"+strconv.Itoa(argIdx))
		args = append(args, string(f.Action))
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, action, target_subject_id, details, origin_address, ts
		FROM audit_log
		`+where+`
		ORDER BY ts DESC
		LIMIT $`+strconv.Itoa(argIdx),
		args...,
	)
	if err != nil {
		return nil, unavailable(audit.ErrUnavailable, err)
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		var action string
		if err := rows.Scan(
			&e.ID,
			&e.ActorID,
			&action,
			&e.TargetSubjectID,
			&e.Details,
			&e.OriginAddress,
			&e.Timestamp,
		); err != nil {
			return nil, unavailable(audit.ErrUnavailable, err)
		}
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
