package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osanchezp/loyaltynotify/internal/config"
)

func gatewayFor(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGatewayClient(config.PushConfig{
		URL:       srv.URL,
		ServerKey: "server-key",
		Timeout:   5 * time.Second,
	}, zerolog.Nop())
}

func TestSendPushMapsPositionalResults(t *testing.T) {
	var gotAuth string
	var gotReq pushRequest
	client := gatewayFor(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"success": 1,
			"failure": 2,
			"results": []map[string]any{
				{"message_id": "m1"},
				{"error": "NotRegistered"},
				{"error": "Unavailable"},
			},
		})
	})

	res, err := client.SendPush(context.Background(), []string{"t1", "t2", "t3"}, "Hola", "Cuerpo")

	require.NoError(t, err)
	assert.Equal(t, "key=server-key", gotAuth)
	assert.Equal(t, []string{"t1", "t2", "t3"}, gotReq.RegistrationIDs)
	assert.Equal(t, "Hola", gotReq.Notification.Title)

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Failure)
	require.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].OK)
	assert.False(t, res.Results[1].OK)
	assert.True(t, res.Results[1].Invalid, "NotRegistered means the endpoint is dead")
	assert.False(t, res.Results[2].OK)
	assert.False(t, res.Results[2].Invalid, "transient errors are not prune candidates")
	assert.Equal(t, []string{"t2"}, res.InvalidTokens())
}

func TestSendPushGatewayError(t *testing.T) {
	client := gatewayFor(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.SendPush(context.Background(), []string{"t1"}, "Hola", "Cuerpo")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendPushBadResponseBody(t *testing.T) {
	client := gatewayFor(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("esto no es json"))
	})

	_, err := client.SendPush(context.Background(), []string{"t1"}, "Hola", "Cuerpo")
	assert.Error(t, err)
}

func TestSendPushShortResultsDefaultToOK(t *testing.T) {
	client := gatewayFor(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": 2, "failure": 0})
	})

	res, err := client.SendPush(context.Background(), []string{"t1", "t2"}, "Hola", "Cuerpo")

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].OK)
	assert.True(t, res.Results[1].OK)
	assert.Empty(t, res.InvalidTokens())
}

func TestSendEmailCanceledContext(t *testing.T) {
	client := NewSMTPClient(config.SMTPConfig{Host: "localhost", Port: 2525, From: "noreply@example.com"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.SendEmail(ctx, "ana@example.com", "Asunto", "<p>Hola</p>")
	assert.ErrorIs(t, err, context.Canceled)
}
