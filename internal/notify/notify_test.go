package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifySendsPush(t *testing.T) {
	var got pushRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewPushClient(srv.URL, "secret-key")
	err := c.Notify(context.Background(), 42, "Clip ready", "Your animation is ready!", "https://clips.test/my-videos?job=abc")
	require.NoError(t, err)

	assert.Equal(t, "secret-key", apiKey)
	assert.Equal(t, int64(42), got.TargetFID)
	assert.Equal(t, "Clip ready", got.Title)
	assert.Equal(t, "https://clips.test/my-videos?job=abc", got.TargetURL)
}

func TestNotifySurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "fid not registered", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewPushClient(srv.URL, "secret-key")
	err := c.Notify(context.Background(), 42, "t", "b", "https://clips.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestNotifyUnconfigured(t *testing.T) {
	c := NewPushClient("", "")
	assert.Error(t, c.Notify(context.Background(), 42, "t", "b", "l"))
}
