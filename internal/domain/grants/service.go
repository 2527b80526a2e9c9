package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medical-record-access/internal/domain/audit"
	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/platform/logger"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrBadState      = errors.New("invalid state")
	ErrInvalidTarget = errors.New("invalid target")
	ErrConflict      = errors.New("version conflict")
	ErrUnavailable   = errors.New("storage unavailable")
)

// ActorLookup evita importar el service de identity completo (rompe ciclos).
type ActorLookup interface {
	GetByID(ctx context.Context, id string) (identity.Actor, error)
}

// AuditRecorder es el único camino de escritura al audit log. Toda transición
// exitosa agrega exactamente una entrada; si la entrada falla, la operación
// entera se reporta como fallida.
type AuditRecorder interface {
	Record(ctx context.Context, in audit.RecordInput) (audit.Entry, error)
}

// Service es el único escritor del grant store.
type Service struct {
	repo     Repository
	actors   ActorLookup
	recorder AuditRecorder
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, actors ActorLookup, recorder AuditRecorder, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		actors:   actors,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

type RequestInput struct {
	SubjectID    string
	Purpose      string
	DurationDays int
	ScopeLimited bool // sugerencia del requester; el subject decide al aprobar
	Note         string
}

// Request crea un grant en estado pending. Solo un requester puede crearlo,
// solo a su propio nombre, solo apuntando a un actor con rol subject.
func (s *Service) Request(ctx context.Context, actor identity.Actor, origin string, in RequestInput) (Grant, error) {
	subjectID := strings.TrimSpace(in.SubjectID)
	purpose := strings.TrimSpace(in.Purpose)

	if subjectID == "" || purpose == "" {
		return Grant{}, ErrInvalidInput
	}
	if in.DurationDays <= 0 {
		return Grant{}, ErrInvalidInput
	}
	if actor.Role != identity.RoleRequester {
		return Grant{}, ErrForbidden
	}
	if subjectID == actor.ID {
		return Grant{}, ErrInvalidInput
	}

	subject, err := s.actors.GetByID(ctx, subjectID)
	if err != nil || subject.Role != identity.RoleSubject {
		return Grant{}, ErrInvalidTarget
	}

	// Un solo pending por par (requester, subject): un segundo pedido
	// mientras hay uno abierto es conflicto, no duplicado silencioso.
	existing, err := s.repo.ListByRequester(ctx, actor.ID)
	if err != nil {
		return Grant{}, err
	}
	for _, g := range existing {
		if g.SubjectID == subjectID && g.Status == StatusPending {
			return Grant{}, ErrBadState
		}
	}

	now := s.now()
	g := Grant{
		ID:                    uuid.NewString(),
		RequesterID:           actor.ID,
		SubjectID:             subjectID,
		Purpose:               purpose,
		RequestedDurationDays: in.DurationDays,
		Status:                StatusPending,
		ScopeLimited:          in.ScopeLimited,
		Note:                  strings.TrimSpace(in.Note),
		CreatedAt:             now,
		UpdatedAt:             now,
		Version:               1,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}

	if err := s.audit(ctx, actor.ID, audit.ActionRequested, subjectID, origin,
		fmt.Sprintf("requester %s asked access to subject %s for %d days", actor.ID, subjectID, in.DurationDays),
	); err != nil {
		return Grant{}, err
	}

	s.log.Info("grant.requested", map[string]any{
		"grant_id": g.ID, "requester_id": actor.ID, "subject_id": subjectID,
	})
	return g, nil
}

type ApproveInput struct {
	// ScopeLimited es la decisión del subject al aprobar; pisa lo pedido.
	ScopeLimited bool
}

// Approve transiciona pending -> approved y fija expires_at.
// Un grant denied o vencido NO se puede re-aprobar: requiere un Request nuevo.
func (s *Service) Approve(ctx context.Context, actor identity.Actor, origin, grantID string, in ApproveInput) (Grant, error) {
	g, err := s.getForDecision(ctx, actor, grantID)
	if err != nil {
		return Grant{}, err
	}

	if g.Status != StatusPending {
		return Grant{}, ErrBadState
	}

	now := s.now()
	expires := now.AddDate(0, 0, g.RequestedDurationDays)

	g.Status = StatusApproved
	g.ScopeLimited = in.ScopeLimited
	g.ExpiresAt = &expires
	g.UpdatedAt = now

	if err := s.update(ctx, g); err != nil {
		return Grant{}, err
	}

	if err := s.audit(ctx, actor.ID, audit.ActionApproved, g.SubjectID, origin,
		fmt.Sprintf("subject %s approved access for requester %s: %d days, scope_limited=%t",
			g.SubjectID, g.RequesterID, g.RequestedDurationDays, g.ScopeLimited),
	); err != nil {
		return Grant{}, err
	}

	s.log.Info("grant.approved", map[string]any{
		"grant_id": g.ID, "requester_id": g.RequesterID, "subject_id": g.SubjectID,
		"expires_at": expires, "scope_limited": g.ScopeLimited,
	})
	return g, nil
}

// Deny transiciona pending -> denied.
func (s *Service) Deny(ctx context.Context, actor identity.Actor, origin, grantID string) (Grant, error) {
	g, err := s.getForDecision(ctx, actor, grantID)
	if err != nil {
		return Grant{}, err
	}

	if g.Status != StatusPending {
		return Grant{}, ErrBadState
	}

	now := s.now()
	g.Status = StatusDenied
	g.UpdatedAt = now

	if err := s.update(ctx, g); err != nil {
		return Grant{}, err
	}

	if err := s.audit(ctx, actor.ID, audit.ActionDenied, g.SubjectID, origin,
		fmt.Sprintf("subject %s denied access for requester %s", g.SubjectID, g.RequesterID),
	); err != nil {
		return Grant{}, err
	}

	s.log.Info("grant.denied", map[string]any{
		"grant_id": g.ID, "requester_id": g.RequesterID, "subject_id": g.SubjectID,
	})
	return g, nil
}

// Revoke transiciona approved -> revoked, en cualquier momento (incluso con
// el grant ya vencido de facto: el status guardado sigue siendo approved).
func (s *Service) Revoke(ctx context.Context, actor identity.Actor, origin, grantID string) (Grant, error) {
	g, err := s.getForDecision(ctx, actor, grantID)
	if err != nil {
		return Grant{}, err
	}

	if g.Status != StatusApproved {
		return Grant{}, ErrBadState
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now

	if err := s.update(ctx, g); err != nil {
		return Grant{}, err
	}

	if err := s.audit(ctx, actor.ID, audit.ActionRevoked, g.SubjectID, origin,
		fmt.Sprintf("subject %s revoked access for requester %s", g.SubjectID, g.RequesterID),
	); err != nil {
		return Grant{}, err
	}

	s.log.Info("grant.revoked", map[string]any{
		"grant_id": g.ID, "requester_id": g.RequesterID, "subject_id": g.SubjectID,
	})
	return g, nil
}

// Get devuelve un grant visible para el actor: las partes o un supervisor.
func (s *Service) Get(ctx context.Context, actor identity.Actor, grantID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Grant{}, err
		}
		return Grant{}, ErrNotFound
	}

	if actor.Role != identity.RoleSupervisor && actor.ID != g.RequesterID && actor.ID != g.SubjectID {
		return Grant{}, ErrForbidden
	}
	return g, nil
}

// ListBySubject: el propio subject o un supervisor.
func (s *Service) ListBySubject(ctx context.Context, actor identity.Actor, subjectID string) ([]Grant, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrInvalidInput
	}
	if actor.Role != identity.RoleSupervisor && actor.ID != subjectID {
		return nil, ErrForbidden
	}
	return s.repo.ListBySubject(ctx, subjectID)
}

// ListByRequester: el propio requester o un supervisor.
func (s *Service) ListByRequester(ctx context.Context, actor identity.Actor, requesterID string) ([]Grant, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrInvalidInput
	}
	if actor.Role != identity.RoleSupervisor && actor.ID != requesterID {
		return nil, ErrForbidden
	}
	return s.repo.ListByRequester(ctx, requesterID)
}

// ActiveGrant expone la consulta que usa el decision engine.
// Lee status y expires_at en un solo fetch: no hay lecturas "a medias".
func (s *Service) ActiveGrant(ctx context.Context, requesterID, subjectID string, now time.Time) (Grant, error) {
	requesterID = strings.TrimSpace(requesterID)
	subjectID = strings.TrimSpace(subjectID)
	if requesterID == "" || subjectID == "" {
		return Grant{}, ErrNotFound
	}
	g, err := s.repo.GetActiveGrant(ctx, requesterID, subjectID, now)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Grant{}, err
		}
		return Grant{}, ErrNotFound
	}
	if !g.Active(now) {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// getForDecision busca el grant y valida que el actor pueda decidir sobre él:
// el subject objetivo o un supervisor.
func (s *Service) getForDecision(ctx context.Context, actor identity.Actor, grantID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Grant{}, err
		}
		return Grant{}, ErrNotFound
	}

	if actor.Role != identity.RoleSupervisor && actor.ID != g.SubjectID {
		return Grant{}, ErrForbidden
	}
	return g, nil
}

func (s *Service) update(ctx context.Context, g Grant) error {
	err := s.repo.Update(ctx, g)
	if err == nil {
		return nil
	}
	// Perdedor de una transición concurrente: para el caller es un estado
	// inválido, no un error de infraestructura.
	if errors.Is(err, ErrConflict) {
		return ErrBadState
	}
	return err
}

func (s *Service) audit(ctx context.Context, actorID string, action audit.Action, subjectID, origin, details string) error {
	_, err := s.recorder.Record(ctx, audit.RecordInput{
		ActorID:         actorID,
		Action:          action,
		TargetSubjectID: subjectID,
		Details:         details,
		OriginAddress:   origin,
	})
	return err
}
