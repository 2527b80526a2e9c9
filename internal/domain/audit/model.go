package audit

import "time"

type Action string

const (
	ActionRequested        Action = "requested"
	ActionApproved         Action = "approved"
	ActionDenied           Action = "denied"
	ActionRevoked          Action = "revoked"
	ActionRecordCreated    Action = "record_created"
	ActionRecordAccessed   Action = "record_accessed"
	ActionRecordDownloaded Action = "record_downloaded"

	// Emitidas por la superficie de identidad/credenciales, que vive fuera
	// de este servicio; el log las acepta y filtra igual que al resto.
	ActionProfileUpdated  Action = "profile_updated"
	ActionPasswordChanged Action = "password_changed"
)

// Entry es una fila inmutable del audit log: se crea exactamente una vez
// por evento y nunca se modifica ni se borra.
type Entry struct {
	ID string

	ActorID string
	Action  Action

	// TargetSubjectID es el subject cuyos registros/grants tocó el evento.
	// Vacío cuando el evento no apunta a un subject.
	TargetSubjectID string

	Details       string
	OriginAddress string

	Timestamp time.Time
}

// Filter acota la consulta del log. ActorID vacío = todos (solo supervisor).
type Filter struct {
	ActorID string
	Action  Action
	Limit   int
}
