package identity

import "context"

type Repository interface {
	Create(ctx context.Context, a Actor) error
	GetByID(ctx context.Context, id string) (Actor, error)
	ListByRole(ctx context.Context, role Role) ([]Actor, error)
}
