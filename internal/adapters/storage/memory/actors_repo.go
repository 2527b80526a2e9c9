package memory

import (
	"context"
	"errors"
	"sync"

	"medical-record-access/internal/domain/identity"
)

var ErrNotFound = errors.New("not found")

type actorRepo struct {
	mu   sync.RWMutex
	byID map[string]identity.Actor
}

func NewActorsRepo() identity.Repository {
	return &actorRepo{
		byID: make(map[string]identity.Actor),
	}
}

func (r *actorRepo) Create(ctx context.Context, a identity.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		return errors.New("actor id required")
	}
	if _, exists := r.byID[a.ID]; exists {
		return errors.New("actor already exists")
	}
	r.byID[a.ID] = a
	return nil
}

func (r *actorRepo) GetByID(ctx context.Context, id string) (identity.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return identity.Actor{}, ErrNotFound
	}
	return a, nil
}

func (r *actorRepo) ListByRole(ctx context.Context, role identity.Role) ([]identity.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]identity.Actor, 0)
	for _, a := range r.byID {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out, nil
}
