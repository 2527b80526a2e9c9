package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/middleware"
)

// ActorLookup evita importar el service de identity completo (rompe ciclos).
type ActorLookup interface {
	GetByID(ctx context.Context, id string) (identity.Actor, error)
}

func RegisterRoutes(r chi.Router, svc *Service, actors ActorLookup) {
	// Supervisor: log completo con filtros
	r.Get("/audit", queryAuditHandler(svc, actors, false))

	// Cualquier actor: solo sus propias entradas
	r.Get("/me/audit", queryAuditHandler(svc, actors, true))
}

type entryResponse struct {
	ID              string    `json:"id"`
	ActorID         string    `json:"actor_id"`
	Action          Action    `json:"action"`
	TargetSubjectID string    `json:"target_subject_id,omitempty"`
	Details         string    `json:"details,omitempty"`
	OriginAddress   string    `json:"origin_address,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// queryAuditHandler godoc
// @Summary Consultar el audit log
// @Description Lista entradas del audit log, más recientes primero. `/audit` exige rol supervisor (filtros: actor_id, action, limit); `/me/audit` devuelve solo las entradas del actor autenticado.
// @Tags audit
// @Produce json
// @Param actor_id query string false "Filtrar por actor (solo /audit)"
// @Param action query string false "Filtrar por acción (requested, approved, record_accessed, ...)"
// @Param limit query int false "Máximo de entradas (default 50)"
// @Success 200 {array} entryResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /audit [get]
func queryAuditHandler(svc *Service, actors ActorLookup, selfOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.ActorID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		actor, err := actors.GetByID(r.Context(), claims.ActorID)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		f := Filter{
			Action: Action(strings.TrimSpace(r.URL.Query().Get("action"))),
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				f.Limit = n
			}
		}

		if selfOnly {
			f.ActorID = actor.ID
		} else {
			if actor.Role != identity.RoleSupervisor {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			f.ActorID = strings.TrimSpace(r.URL.Query().Get("actor_id"))
		}

		items, err := svc.Query(r.Context(), actor, f)
		if err != nil {
			switch {
			case errors.Is(err, ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, ErrUnavailable):
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, entryResponse{
				ID:              e.ID,
				ActorID:         e.ActorID,
				Action:          e.Action,
				TargetSubjectID: e.TargetSubjectID,
				Details:         e.Details,
				OriginAddress:   e.OriginAddress,
				Timestamp:       e.Timestamp,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
