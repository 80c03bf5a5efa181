package models

type Recipient struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"nombre"`
	MemberNumber int            `json:"numeroSocio"`
	Points       int            `json:"puntos"`
	Active       bool           `json:"activo"`
	Subscribed   bool           `json:"suscrito"`
	Province     string         `json:"provincia,omitempty"`
	City         string         `json:"localidad,omitempty"`
	FCMTokens    []string       `json:"fcmTokens,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// EndpointCount reports how many usable delivery endpoints the recipient has
// for the given channel. Zero means the recipient is skipped, not an error.
func (r *Recipient) EndpointCount(ch Channel) int {
	switch ch {
	case ChannelPush:
		return len(r.FCMTokens)
	case ChannelEmail:
		if r.Email != "" {
			return 1
		}
	}
	return 0
}

// Vars returns the recipient's base render variables. Extra variables and
// per-dispatch overrides are layered on top by the batcher.
func (r *Recipient) Vars() map[string]any {
	return map[string]any{
		"nombre":       r.Name,
		"numero_socio": r.MemberNumber,
		"puntos":       r.Points,
		"email":        r.Email,
	}
}
