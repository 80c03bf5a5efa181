package delivery

import "context"

// EndpointResult is the itemized outcome for one push endpoint within a
// multicast call.
type EndpointResult struct {
	Token   string `json:"token"`
	OK      bool   `json:"ok"`
	Invalid bool   `json:"invalid"` // endpoint permanently dead, prune it
	Error   string `json:"error,omitempty"`
}

type PushResult struct {
	Success int              `json:"success"`
	Failure int              `json:"failure"`
	Results []EndpointResult `json:"results"`
}

// InvalidTokens returns the endpoints the gateway reported as permanently
// unregistered. Transient failures are not included.
func (r *PushResult) InvalidTokens() []string {
	var out []string
	for _, res := range r.Results {
		if res.Invalid {
			out = append(out, res.Token)
		}
	}
	return out
}

// PushGateway sends one rendered notification to all of a recipient's
// endpoints in a single multicast call.
type PushGateway interface {
	SendPush(ctx context.Context, tokens []string, title, body string) (*PushResult, error)
}

// EmailProvider sends one message per recipient; bulk APIs are not assumed.
type EmailProvider interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}
