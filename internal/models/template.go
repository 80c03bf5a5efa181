package models

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

func (c Channel) IsValid() bool {
	return c == ChannelPush || c == ChannelEmail
}

// Template is the unified schema: one record holds both channel variants.
// JSON keys match the document shapes the admin tooling writes.
type Template struct {
	ID            string   `json:"id"`
	PushTitle     string   `json:"titulo_push,omitempty"`
	PushBody      string   `json:"cuerpo_push,omitempty"`
	EmailTitle    string   `json:"titulo_email,omitempty"`
	EmailBody     string   `json:"cuerpo_email,omitempty"`
	SuggestedVars []string `json:"variables_sugeridas,omitempty"`
}

// LegacyTemplate is the older per-channel schema. Email records carry
// titulo/cuerpo; push records carry titulo_push/cuerpo_push. Both are stored
// keyed by (id, channel) and normalized into Title/Body on read.
type LegacyTemplate struct {
	ID      string  `json:"id"`
	Channel Channel `json:"channel"`
	Title   string  `json:"titulo"`
	Body    string  `json:"cuerpo"`
}
