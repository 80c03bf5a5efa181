package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/config"
)

// Gateway error codes that mean the endpoint is gone for good, as opposed to
// a transient delivery failure.
var permanentErrors = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
}

type pushRequest struct {
	RegistrationIDs []string         `json:"registration_ids"`
	Notification    pushNotification `json:"notification"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id,omitempty"`
		Error     string `json:"error,omitempty"`
	} `json:"results"`
}

// GatewayClient talks to the push gateway's multicast HTTP endpoint.
type GatewayClient struct {
	client    *http.Client
	url       string
	serverKey string
	log       zerolog.Logger
}

func NewGatewayClient(cfg config.PushConfig, log zerolog.Logger) *GatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayClient{
		client:    &http.Client{Timeout: timeout},
		url:       cfg.URL,
		serverKey: cfg.ServerKey,
		log:       log,
	}
}

// SendPush multicasts one notification to every token in a single call and
// maps the gateway's per-position results back onto the tokens.
func (c *GatewayClient) SendPush(ctx context.Context, tokens []string, title, body string) (*PushResult, error) {
	payload, err := json.Marshal(pushRequest{
		RegistrationIDs: tokens,
		Notification:    pushNotification{Title: title, Body: body},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push gateway status %d: %s", resp.StatusCode, raw)
	}

	var parsed pushResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}

	result := &PushResult{
		Success: parsed.Success,
		Failure: parsed.Failure,
		Results: make([]EndpointResult, 0, len(tokens)),
	}
	for i, token := range tokens {
		er := EndpointResult{Token: token, OK: true}
		if i < len(parsed.Results) {
			if e := parsed.Results[i].Error; e != "" {
				er.OK = false
				er.Error = e
				er.Invalid = permanentErrors[e]
			}
		}
		result.Results = append(result.Results, er)
	}

	c.log.Debug().
		Int("endpoints", len(tokens)).
		Int("success", result.Success).
		Int("failure", result.Failure).
		Dur("duration", time.Since(start)).
		Msg("push multicast sent")

	return result, nil
}
