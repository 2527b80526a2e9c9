package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/actors", func(ar chi.Router) {
		ar.Post("/", registerActorHandler(svc))
		ar.Get("/", listActorsHandler(svc))
		ar.Get("/{actorID}", getActorHandler(svc))
	})
}

type registerActorRequest struct {
	Role        Role   `json:"role" enums:"subject,requester,supervisor"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}

type actorResponse struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// registerActorHandler godoc
// @Summary Registrar actor
// @Description Da de alta un actor con rol fijo (subject, requester o supervisor). Las credenciales viven en el identity provider externo, no acá.
// @Tags actors
// @Accept json
// @Produce json
// @Param payload body registerActorRequest true "Datos del actor"
// @Success 201 {object} actorResponse
// @Failure 400 {string} string "invalid json / rol inválido"
// @Router /actors [post]
func registerActorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerActorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Register(r.Context(), RegisterInput{
			Role:        req.Role,
			DisplayName: req.DisplayName,
			Category:    req.Category,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toActorResponse(a))
	}
}

func getActorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "actorID")

		a, err := svc.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toActorResponse(a))
	}
}

func listActorsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := Role(strings.TrimSpace(r.URL.Query().Get("role")))
		if role == "" {
			http.Error(w, "role query param required", http.StatusBadRequest)
			return
		}

		items, err := svc.ListByRole(r.Context(), role)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, "unknown role", http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]actorResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toActorResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toActorResponse(a Actor) actorResponse {
	return actorResponse{
		ID:          a.ID,
		Role:        a.Role,
		DisplayName: a.DisplayName,
		Category:    a.Category,
		CreatedAt:   a.CreatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
