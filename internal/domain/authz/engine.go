// Package authz centraliza la decisión de acceso a registros protegidos.
// Toda lectura de un registro pasa por Decide; no hay chequeos inline
// repartidos por los handlers.
package authz

import (
	"context"
	"strings"
	"time"

	"medical-record-access/internal/domain/grants"
	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/platform/metrics"
)

// Reasons legibles por máquina: van al audit log y al mensaje HTTP.
const (
	ReasonSupervisorOverride = "supervisor override"
	ReasonOwner              = "owner"
	ReasonActiveGrant        = "active grant"
	ReasonNoActiveGrant      = "no active grant"
	ReasonOutOfScope         = "out of scope"
	ReasonRoleNotPermitted   = "role not permitted"
)

type Decision struct {
	Allow  bool
	Reason string
}

func allow(reason string) Decision {
	metrics.AuthzDecisions.WithLabelValues("allow", reason).Inc()
	return Decision{Allow: true, Reason: reason}
}

func deny(reason string) Decision {
	metrics.AuthzDecisions.WithLabelValues("deny", reason).Inc()
	return Decision{Allow: false, Reason: reason}
}

// GrantSource evita importar el service de grants completo (rompe ciclos).
type GrantSource interface {
	ActiveGrant(ctx context.Context, requesterID, subjectID string, now time.Time) (grants.Grant, error)
}

type Engine struct {
	grants GrantSource
}

func NewEngine(src GrantSource) *Engine {
	return &Engine{grants: src}
}

// Decide evalúa, en orden y con primera coincidencia:
//  1. supervisor => allow (override administrativo; queda visible en audit)
//  2. el actor es el propio subject => allow
//  3. requester con grant approved y no vencido => allow, salvo que el grant
//     sea scope-limited y la categoría del recurso no matchee la categoría
//     declarada del requester
//  4. cualquier otro caso => deny
//
// El límite de expiración es estricto: now == expires_at ya NO otorga acceso.
// Sin efectos secundarios; el caller decide qué auditar.
func (e *Engine) Decide(ctx context.Context, actor identity.Actor, subjectID, resourceCategory string, now time.Time) Decision {
	if actor.Role == identity.RoleSupervisor {
		return allow(ReasonSupervisorOverride)
	}

	if actor.ID == subjectID {
		return allow(ReasonOwner)
	}

	if actor.Role == identity.RoleRequester {
		g, err := e.grants.ActiveGrant(ctx, actor.ID, subjectID, now)
		if err != nil || !g.Active(now) {
			return deny(ReasonNoActiveGrant)
		}
		if g.ScopeLimited && resourceCategory != "" && !categoryMatches(actor.Category, resourceCategory) {
			return deny(ReasonOutOfScope)
		}
		return allow(ReasonActiveGrant)
	}

	return deny(ReasonRoleNotPermitted)
}

func categoryMatches(declared, resource string) bool {
	return strings.EqualFold(strings.TrimSpace(declared), strings.TrimSpace(resource))
}
