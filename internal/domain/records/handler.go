package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medical-record-access/internal/domain/audit"
	"medical-record-access/internal/domain/authz"
	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/middleware"
)

// ActorLookup evita importar el service de identity completo (rompe ciclos).
type ActorLookup interface {
	GetByID(ctx context.Context, id string) (identity.Actor, error)
}

// AuditRecorder registra cada acceso de consecuencia. Si el registro de
// auditoría falla, el request entero se reporta como fallido.
type AuditRecorder interface {
	Record(ctx context.Context, in audit.RecordInput) (audit.Entry, error)
}

func RegisterRoutes(r chi.Router, svc *Service, actors ActorLookup, engine *authz.Engine, recorder AuditRecorder) {
	r.Route("/subjects/{subjectID}/records", func(rr chi.Router) {
		rr.Post("/", createRecordHandler(svc, actors, engine, recorder))
		rr.Get("/", listRecordsHandler(svc, actors, engine, recorder))
		rr.Get("/{recordID}", getRecordHandler(svc, actors, engine, recorder))
		rr.Get("/{recordID}/download", downloadRecordHandler(svc, actors, engine, recorder))
	})
}

type createRecordRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	Verified  bool      `json:"verified"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// createRecordHandler godoc
// @Summary Crear registro de un subject
// @Description Crea un registro protegido. El subject dueño siempre puede. Un requester necesita un grant activo sobre el subject (y, si el grant es scope-limited, que la categoría del registro matchee su especialidad); en ese caso el registro queda marcado `verified`. Autenticación: `X-Debug-Actor-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags records
// @Accept json
// @Produce json
// @Param subjectID path string true "ID del subject dueño"
// @Param payload body createRecordRequest true "Datos del registro"
// @Success 201 {object} recordResponse
// @Failure 400 {string} string "invalid json / título requerido"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "razón de la denegación"
// @Failure 404 {string} string "subject not found"
// @Router /subjects/{subjectID}/records [post]
func createRecordHandler(svc *Service, actors ActorLookup, engine *authz.Engine, recorder AuditRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		subjectID := chi.URLParam(r, "subjectID")
		subject, err := actors.GetByID(r.Context(), subjectID)
		if err != nil || subject.Role != identity.RoleSubject {
			http.Error(w, "subject not found", http.StatusNotFound)
			return
		}

		var req createRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		// Creador externo al dueño: pasa por el decision engine, con la
		// categoría del registro nuevo para respetar scope limitado.
		if actor.ID != subject.ID {
			d := engine.Decide(r.Context(), actor, subject.ID, req.Category, time.Now())
			if !d.Allow {
				http.Error(w, d.Reason, http.StatusForbidden)
				return
			}
		}

		rec, err := svc.Create(r.Context(), subject.ID, CreateInput{
			Title:    req.Title,
			Category: req.Category,
			Notes:    req.Notes,
			Verified: actor.Role == identity.RoleRequester,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrUnavailable):
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		if !auditOrFail(w, r, recorder, actor.ID, audit.ActionRecordCreated, subject.ID,
			fmt.Sprintf("record %s created by %s", rec.ID, actor.ID)) {
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// listRecordsHandler godoc
// @Summary Listar registros de un subject
// @Description Lista los registros del subject. El dueño y los supervisores ven todo; un requester necesita grant activo y, si es scope-limited, solo ve registros de su especialidad declarada.
// @Tags records
// @Produce json
// @Param subjectID path string true "ID del subject dueño"
// @Success 200 {array} recordResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "razón de la denegación"
// @Failure 404 {string} string "subject not found"
// @Router /subjects/{subjectID}/records [get]
func listRecordsHandler(svc *Service, actors ActorLookup, engine *authz.Engine, recorder AuditRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := resolveActor(w, r, actors)
		if !ok {
			return
		}

		subjectID := chi.URLParam(r, "subjectID")
		subject, err := actors.GetByID(r.Context(), subjectID)
		if err != nil || subject.Role != identity.RoleSubject {
			http.Error(w, "subject not found", http.StatusNotFound)
			return
		}

		now := time.Now()
		d := engine.Decide(r.Context(), actor, subject.ID, "", now)
		if !d.Allow {
			http.Error(w, d.Reason, http.StatusForbidden)
			return
		}

		items, err := svc.ListByOwner(r.Context(), subject.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// Grant con scope limitado: se filtra registro por registro contra
		// la categoría declarada del requester.
		if actor.ID != subject.ID && actor.Role == identity.RoleRequester {
			visible := make([]Record, 0, len(items))
			for _, rec := range items {
				if engine.Decide(r.Context(), actor, subject.ID, rec.Category, now).Allow {
					visible = append(visible, rec)
				}
			}
			items = visible
		}

		if !auditOrFail(w, r, recorder, actor.ID, audit.ActionRecordAccessed, subject.ID,
			fmt.Sprintf("listed %d records of subject %s", len(items), subject.ID)) {
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getRecordHandler(svc *Service, actors ActorLookup, engine *authz.Engine, recorder AuditRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, actor, ok := fetchGuarded(w, r, svc, actors, engine)
		if !ok {
			return
		}

		if !auditOrFail(w, r, recorder, actor.ID, audit.ActionRecordAccessed, rec.OwnerID,
			fmt.Sprintf("record %s accessed by %s", rec.ID, actor.ID)) {
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

// downloadRecordHandler sirve el registro como attachment. El contenido
// binario (archivos adjuntos) vive en el storage externo; acá se exporta la
// ficha del registro.
func downloadRecordHandler(svc *Service, actors ActorLookup, engine *authz.Engine, recorder AuditRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, actor, ok := fetchGuarded(w, r, svc, actors, engine)
		if !ok {
			return
		}

		if !auditOrFail(w, r, recorder, actor.ID, audit.ActionRecordDownloaded, rec.OwnerID,
			fmt.Sprintf("record %s downloaded by %s", rec.ID, actor.ID)) {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "record-"+rec.ID+".json"))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toRecordResponse(rec))
	}
}

// fetchGuarded resuelve actor + registro y corre el decision engine con la
// categoría real del registro. Chequea permisos antes de confirmar existencia
// para no filtrar qué registros existen.
func fetchGuarded(w http.ResponseWriter, r *http.Request, svc *Service, actors ActorLookup, engine *authz.Engine) (Record, identity.Actor, bool) {
	actor, ok := resolveActor(w, r, actors)
	if !ok {
		return Record{}, identity.Actor{}, false
	}

	subjectID := chi.URLParam(r, "subjectID")
	subject, err := actors.GetByID(r.Context(), subjectID)
	if err != nil || subject.Role != identity.RoleSubject {
		http.Error(w, "subject not found", http.StatusNotFound)
		return Record{}, identity.Actor{}, false
	}

	d := engine.Decide(r.Context(), actor, subject.ID, "", time.Now())
	if !d.Allow {
		http.Error(w, d.Reason, http.StatusForbidden)
		return Record{}, identity.Actor{}, false
	}

	recordID := chi.URLParam(r, "recordID")
	rec, err := svc.GetByID(r.Context(), recordID)
	if err != nil || rec.OwnerID != subject.ID {
		http.Error(w, "record not found", http.StatusNotFound)
		return Record{}, identity.Actor{}, false
	}

	// Segundo pase con la categoría real: un grant scope-limited puede
	// permitir el subject pero no este registro puntual.
	d = engine.Decide(r.Context(), actor, subject.ID, rec.Category, time.Now())
	if !d.Allow {
		http.Error(w, d.Reason, http.StatusForbidden)
		return Record{}, identity.Actor{}, false
	}

	return rec, actor, true
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

func auditOrFail(w http.ResponseWriter, r *http.Request, recorder AuditRecorder, actorID string, action audit.Action, subjectID, details string) bool {
	_, err := recorder.Record(r.Context(), audit.RecordInput{
		ActorID:         actorID,
		Action:          action,
		TargetSubjectID: subjectID,
		Details:         details,
		OriginAddress:   r.RemoteAddr,
	})
	if err != nil {
		// Un acceso sin rastro de auditoría no es un éxito parcial.
		http.Error(w, "audit unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Title:     rec.Title,
		Category:  rec.Category,
		Verified:  rec.Verified,
		Notes:     rec.Notes,
		CreatedAt: rec.CreatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
