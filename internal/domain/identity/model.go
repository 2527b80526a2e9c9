package identity

import "time"

// Role define los roles soportados. Cerrado: no hay roles dinámicos.
// @Enum subject, requester, supervisor
type Role string

const (
	// RoleSubject es el dueño de los registros protegidos.
	RoleSubject Role = "subject"
	// RoleRequester pide acceso delegado a registros de un subject.
	RoleRequester Role = "requester"
	// RoleSupervisor tiene override administrativo (acceso a audit log).
	RoleSupervisor Role = "supervisor"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleSubject, RoleRequester, RoleSupervisor:
		return true
	default:
		return false
	}
}

// Actor representa un usuario del sistema con rol fijo.
type Actor struct {
	ID   string
	Role Role

	DisplayName string

	// Category es la especialidad declarada del requester
	// (ej: "cardiology"). Se usa en grants con scope limitado.
	Category string

	CreatedAt time.Time
}
