package auth

// Claims representa la información extraída del token.
// ActorID referencia un Actor registrado; el rol NUNCA viaja en el token,
// se relee del identity store en cada request.
type Claims struct {
	ActorID string
	Email   string
}
