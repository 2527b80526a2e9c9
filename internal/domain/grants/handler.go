package grants

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service, actors ActorLookup) {
	r.Route("/grants", func(gr chi.Router) {
		gr.Post("/", requestGrantHandler(svc, actors))
		gr.Get("/{grantID}", getGrantHandler(svc, actors))
		gr.Post("/{grantID}/approve", approveGrantHandler(svc, actors))
		gr.Post("/{grantID}/deny", denyGrantHandler(svc, actors))
		gr.Post("/{grantID}/revoke", revokeGrantHandler(svc, actors))
	})

	// Cada actor ve los grants donde es parte
	r.Get("/me/grants", listMyGrantsHandler(svc, actors))

	// Subject (o supervisor): grants sobre un subject puntual
	r.Get("/subjects/{subjectID}/grants", listGrantsBySubjectHandler(svc, actors))
}

type requestGrantRequest struct {
	SubjectID    string `json:"subject_id"`
	Purpose      string `json:"purpose"`
	DurationDays int    `json:"requested_duration_days"`
	ScopeLimited bool   `json:"scope_limited"`
	Note         string `json:"note"`
}

type approveGrantRequest struct {
	ScopeLimited bool `json:"scope_limited"`
}

type grantResponse struct {
	ID                    string     `json:"id"`
	RequesterID           string     `json:"requester_id"`
	SubjectID             string     `json:"subject_id"`
	Purpose               string     `json:"purpose"`
	RequestedDurationDays int        `json:"requested_duration_days"`
	Status                Status     `json:"status"`
	ScopeLimited          bool       `json:"scope_limited"`
	Note                  string     `json:"note,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
}

// requestGrantHandler godoc
// @Summary Pedir acceso delegado
// @Description Un requester pide acceso time-boxed a los registros de un subject. Queda pending hasta que el subject apruebe o deniegue. Un solo pending por par (requester, subject).
// @Tags grants
// @Accept json
// @Produce json
// @Param payload body requestGrantRequest true "subject_id, purpose y requested_duration_days son obligatorios"
// @Success 201 {object} grantResponse
// @Failure 400 {string} string "invalid json / duración no positiva"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden / invalid target"
// @Failure 409 {string} string "ya hay un pedido pending para ese subject"
// @Router /grants [post]
func requestGrantHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		var req requestGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.Request(r.Context(), actor, r.RemoteAddr, RequestInput{
			SubjectID:    req.SubjectID,
			Purpose:      req.Purpose,
			DurationDays: req.DurationDays,
			ScopeLimited: req.ScopeLimited,
			Note:         req.Note,
		})
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g, time.Now()))
	}
}

// approveGrantHandler godoc
// @Summary Aprobar un pedido de acceso
// @Description El subject del grant (o un supervisor) aprueba un pedido pending. Fija expires_at = ahora + días pedidos. El flag scope_limited del body es la decisión final del subject, pisa lo que haya pedido el requester. Un grant denied o vencido no se puede re-aprobar.
// @Tags grants
// @Accept json
// @Produce json
// @Param grantID path string true "ID del grant"
// @Param payload body approveGrantRequest false "Decisión de scope del subject"
// @Success 200 {object} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "el grant no está pending"
// @Router /grants/{grantID}/approve [post]
func approveGrantHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		var req approveGrantRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Approve(r.Context(), actor, r.RemoteAddr, grantID, ApproveInput{
			ScopeLimited: req.ScopeLimited,
		})
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

func denyGrantHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Deny(r.Context(), actor, r.RemoteAddr, grantID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

func revokeGrantHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Revoke(r.Context(), actor, r.RemoteAddr, grantID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

func getGrantHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Get(r.Context(), actor, grantID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g, time.Now()))
	}
}

func listMyGrantsHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		var (
			items []Grant
			err   error
		)
		switch actor.Role {
		case identity.RoleSubject:
			items, err = svc.ListBySubject(r.Context(), actor, actor.ID)
		default:
			items, err = svc.ListByRequester(r.Context(), actor, actor.ID)
		}
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeGrantList(w, r, items)
	}
}

func listGrantsBySubjectHandler(svc *Service, actors ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		subjectID := chi.URLParam(r, "subjectID")
		items, err := svc.ListBySubject(r.Context(), actor, subjectID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeGrantList(w, r, items)
	}
}

func writeGrantList(w http.ResponseWriter, r *http.Request, items []Grant) {
	// status=pending,approved (CSV opcional), sobre el status derivado
	allowed := parseStatusFilter(r.URL.Query().Get("status"))
	now := time.Now()

	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		resp := toGrantResponse(g, now)
		if len(allowed) > 0 {
			if _, ok := allowed[resp.Status]; !ok {
				continue
			}
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrInvalidTarget):
		http.Error(w, "invalid target", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func resolveActor(w http.ResponseWriter, r *http.Request, actors ActorLookup) (identity.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.ActorID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return identity.Actor{}, false
	}

	// Rol siempre releído del store; nunca del token ni de un cache.
	actor, err := actors.GetByID(r.Context(), claims.ActorID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return identity.Actor{}, false
	}
	return actor, true
}

// toGrantResponse expone el status DERIVADO (approved vencido => expired)
// para que el reporting nunca diverja del predicado de expiración.
func toGrantResponse(g Grant, now time.Time) grantResponse {
	return grantResponse{
		ID:                    g.ID,
		RequesterID:           g.RequesterID,
		SubjectID:             g.SubjectID,
		Purpose:               g.Purpose,
		RequestedDurationDays: g.RequestedDurationDays,
		Status:                g.EffectiveStatus(now),
		ScopeLimited:          g.ScopeLimited,
		Note:                  g.Note,
		CreatedAt:             g.CreatedAt,
		UpdatedAt:             g.UpdatedAt,
		ExpiresAt:             g.ExpiresAt,
	}
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := map[Status]struct{}{}
	for _, p := range parts {
		s := Status(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
