package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/platform/logger"
	"medical-record-access/internal/platform/metrics"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrUnavailable  = errors.New("storage unavailable")
)

const defaultQueryLimit = 50

// Service es el único escritor del audit log.
type Service struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

type RecordInput struct {
	ActorID         string
	Action          Action
	TargetSubjectID string
	Details         string
	OriginAddress   string
}

// Record agrega una entrada. El error de storage se propaga tal cual:
// para el caller, una mutación cuyo audit falló es una mutación fallida.
func (s *Service) Record(ctx context.Context, in RecordInput) (Entry, error) {
	if strings.TrimSpace(in.ActorID) == "" || in.Action == "" {
		return Entry{}, ErrInvalidInput
	}

	e := Entry{
		ID:              uuid.NewString(),
		ActorID:         strings.TrimSpace(in.ActorID),
		Action:          in.Action,
		TargetSubjectID: strings.TrimSpace(in.TargetSubjectID),
		Details:         strings.TrimSpace(in.Details),
		OriginAddress:   strings.TrimSpace(in.OriginAddress),
		Timestamp:       s.now(),
	}

	if err := s.repo.Append(ctx, e); err != nil {
		s.log.Error("audit.append_failed", map[string]any{
			"actor_id": e.ActorID, "action": string(e.Action), "err": err.Error(),
		})
		return Entry{}, err
	}

	metrics.AuditEntries.WithLabelValues(string(e.Action)).Inc()
	return e, nil
}

// Query devuelve entradas más recientes primero. Un supervisor puede ver
// todo; cualquier otro actor solo sus propias entradas.
func (s *Service) Query(ctx context.Context, actor identity.Actor, f Filter) ([]Entry, error) {
	if actor.Role != identity.RoleSupervisor {
		if f.ActorID != "" && f.ActorID != actor.ID {
			return nil, ErrForbidden
		}
		f.ActorID = actor.ID
	}

	if f.Limit <= 0 {
		f.Limit = defaultQueryLimit
	}

	return s.repo.Query(ctx, f)
}
