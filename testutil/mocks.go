package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch id and Helix responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
	hits     atomic.Int64
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Hits returns the number of requests served.
func (m *MockTwitchServer) Hits() int { return int(m.hits.Load()) }

// MockValidateResponse adds a handler for /oauth2/validate. A 200 status
// answers with login and scopes; other statuses answer with an error body.
func (m *MockTwitchServer) MockValidateResponse(status int, login string, scopes []string) {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": "invalid access token"}) //nolint:errcheck // test mock response
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"client_id":  "cid",
			"login":      login,
			"scopes":     scopes,
			"user_id":    "1",
			"expires_in": 3600,
		})
	}
}

// MockUsersResponse adds a handler for /helix/users that answers every
// requested id found in users (id → login), in request order.
func (m *MockTwitchServer) MockUsersResponse(users map[string]string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]string{}
		for _, id := range r.URL.Query()["id"] {
			if login, ok := users[id]; ok {
				data = append(data, map[string]string{"id": id, "login": login, "display_name": login})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data}) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
