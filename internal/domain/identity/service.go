package identity

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

type RegisterInput struct {
	Role        Role
	DisplayName string
	Category    string
}

// Register da de alta un actor. Credenciales/password quedan fuera de este
// core: acá solo vive la identidad y su rol.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Actor, error) {
	if !ValidRole(in.Role) {
		return Actor{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return Actor{}, ErrInvalidInput
	}

	a := Actor{
		ID:          uuid.NewString(),
		Role:        in.Role,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		CreatedAt:   s.now(),
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Actor{}, err
	}
	return a, nil
}

// GetByID relee el actor del store. Los handlers lo llaman en cada request:
// el rol nunca se cachea entre requests.
func (s *Service) GetByID(ctx context.Context, id string) (Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Actor{}, ErrInvalidInput
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Actor{}, err
	}
	return a, nil
}

func (s *Service) ListByRole(ctx context.Context, role Role) ([]Actor, error) {
	if !ValidRole(role) {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByRole(ctx, role)
}
