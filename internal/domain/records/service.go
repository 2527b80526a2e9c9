package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("storage unavailable")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Title    string
	Category string
	Notes    string

	// Verified lo fija el gateway según quién crea: true si el creador es
	// un requester con grant activo, false si es el propio subject.
	Verified bool
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Record, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Record{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Title) == "" {
		return Record{}, ErrInvalidInput
	}

	rec := Record{
		ID:        uuid.NewString(),
		OwnerID:   strings.TrimSpace(ownerID),
		Title:     strings.TrimSpace(in.Title),
		Category:  strings.ToLower(strings.TrimSpace(in.Category)),
		Verified:  in.Verified,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByOwner(ctx, ownerID)
}
