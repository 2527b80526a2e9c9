package audit

import "context"

type Repository interface {
	// Append agrega una entrada. No existe update ni delete.
	Append(ctx context.Context, e Entry) error

	// Query devuelve entradas que matchean el filtro, más recientes primero.
	Query(ctx context.Context, f Filter) ([]Entry, error)
}
