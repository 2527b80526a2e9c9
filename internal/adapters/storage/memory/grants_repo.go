package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"medical-record-access/internal/domain/grants"
)

type grantRepo struct {
	mu   sync.Mutex
	byID map[string]grants.Grant
}

func NewGrantsRepo() grants.Repository {
	return &grantRepo{
		byID: make(map[string]grants.Grant),
	}
}

func (r *grantRepo) Create(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = g
	return nil
}

// Update chequea la versión bajo el mismo lock: de dos transiciones
// concurrentes sobre el mismo grant, exactamente una gana.
func (r *grantRepo) Update(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	stored, exists := r.byID[g.ID]
	if !exists {
		return ErrNotFound
	}
	if stored.Version != g.Version {
		return grants.ErrConflict
	}

	g.Version++
	r.byID[g.ID] = g
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return grants.Grant{}, ErrNotFound
	}
	return g, nil
}

func (r *grantRepo) ListBySubject(ctx context.Context, subjectID string) ([]grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.SubjectID == subjectID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *grantRepo) ListByRequester(ctx context.Context, requesterID string) ([]grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.RequesterID == requesterID {
			out = append(out, g)
		}
	}
	return out, nil
}

// GetActiveGrant lee status y expires_at del mismo snapshot (un solo value
// bajo lock): no hay lecturas "a medias" del par. Si hubiera más de un
// approved vigente para el par, gana el más reciente por UpdatedAt.
func (r *grantRepo) GetActiveGrant(ctx context.Context, requesterID, subjectID string, now time.Time) (grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var winner grants.Grant
	has := false

	for _, g := range r.byID {
		if g.RequesterID != requesterID || g.SubjectID != subjectID {
			continue
		}
		if !g.Active(now) {
			continue
		}

		if !has || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			has = true
		}
	}

	if !has {
		return grants.Grant{}, ErrNotFound
	}
	return winner, nil
}
