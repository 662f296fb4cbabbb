package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wabroadcast/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSession(t *testing.T) {
	var gotPath, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-Api-Key")
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", 5*time.Second)
	require.NoError(t, c.StartSession(context.Background(), "device-1"))
	assert.Equal(t, "/api/sessions/device-1/start", gotPath)
	assert.Equal(t, "test-key", gotAPIKey)
}

func TestStopSessionErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("session manager crashed"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", 5*time.Second)
	err := c.StopSession(context.Background(), "device-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "session manager crashed")
}

func TestDeleteSession(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", 5*time.Second)
	require.NoError(t, c.DeleteSession(context.Background(), "device-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestGetSessionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/device-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(types.Session{
			DeviceID:    "device-1",
			Status:      types.SessionStatusWorking,
			PhoneNumber: "+15551234567",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", 5*time.Second)
	session, err := c.GetSessionStatus(context.Background(), "device-1")
	require.NoError(t, err)
	assert.Equal(t, types.SessionStatusWorking, session.Status)
	assert.Equal(t, "+15551234567", session.PhoneNumber)
}

func TestSendBroadcastAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/broadcasts", r.URL.Path)

		var req types.BroadcastRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"group-1@g.us"}, req.TargetGroups)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.BroadcastResponse{MessageID: req.MessageID, Accepted: true})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", 5*time.Second)
	resp, err := c.SendBroadcast(context.Background(), types.BroadcastRequest{
		MessageID:    "m-1",
		DeviceID:     "device-1",
		Body:         "hello",
		TargetGroups: []string{"group-1@g.us"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "m-1", resp.MessageID)
}

func TestSendBroadcastRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(types.BroadcastResponse{Accepted: false, Error: "session not working"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", 5*time.Second)
	resp, err := c.SendBroadcast(context.Background(), types.BroadcastRequest{MessageID: "m-1"})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Accepted)
	assert.Contains(t, err.Error(), "session not working")
}

func TestClientHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL, "", 5*time.Second)
	err := c.StartSession(ctx, "device-1")
	assert.Error(t, err)
}
