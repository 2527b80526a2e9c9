package grants

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusRevoked  Status = "revoked"

	// StatusExpired es SOLO derivado: nunca se persiste. Un grant approved
	// cuyo expires_at ya pasó sigue guardado como approved; la expiración
	// es un predicado evaluado al momento de decidir, no un sweep.
	StatusExpired Status = "expired"
)

// Grant es un pedido (o instancia) de acceso delegado, time-boxed,
// de un requester sobre los registros de un subject.
type Grant struct {
	ID string

	RequesterID string // quien pide acceso
	SubjectID   string // dueño de los registros

	Purpose               string
	RequestedDurationDays int

	Status Status

	// ScopeLimited restringe los registros visibles a los que matcheen la
	// categoría declarada del requester. El valor lo fija el subject al
	// aprobar; lo que pidió el requester es solo sugerencia.
	ScopeLimited bool

	Note string

	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt se setea si y solo si Status == approved.
	ExpiresAt *time.Time

	// Version para chequeo optimista en updates: de dos transiciones
	// concurrentes sobre el mismo grant gana exactamente una.
	Version int
}

// Active indica si el grant otorga acceso en el instante now.
func (g Grant) Active(now time.Time) bool {
	return g.Status == StatusApproved && g.ExpiresAt != nil && now.Before(*g.ExpiresAt)
}

// EffectiveStatus devuelve el status derivado: approved vencido => expired.
// Es la única fuente de verdad para reporting; nunca se materializa.
func (g Grant) EffectiveStatus(now time.Time) Status {
	if g.Status == StatusApproved && g.ExpiresAt != nil && !now.Before(*g.ExpiresAt) {
		return StatusExpired
	}
	return g.Status
}
