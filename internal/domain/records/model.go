package records

import "time"

// Record es un registro protegido, propiedad exclusiva de un subject.
// Nunca se borra en este core.
type Record struct {
	ID      string
	OwnerID string // subject dueño; los requesters solo leen, nunca poseen

	Title string

	// Category es la clasificación libre del registro (ej: "cardiology").
	// Contra esto matchean los grants con scope limitado.
	Category string

	// Verified se setea true automáticamente cuando lo creó un requester,
	// false cuando lo subió el propio subject.
	Verified bool

	Notes string

	CreatedAt time.Time
}
