package grants

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, g Grant) error

	// Update aplica un chequeo optimista sobre Version: si la versión
	// guardada no coincide devuelve ErrConflict.
	Update(ctx context.Context, g Grant) error

	GetByID(ctx context.Context, id string) (Grant, error)
	ListBySubject(ctx context.Context, subjectID string) ([]Grant, error)
	ListByRequester(ctx context.Context, requesterID string) ([]Grant, error)

	// GetActiveGrant devuelve el grant approved y no vencido para el par
	// (requester, subject), si existe.
	GetActiveGrant(ctx context.Context, requesterID, subjectID string, now time.Time) (Grant, error)
}
