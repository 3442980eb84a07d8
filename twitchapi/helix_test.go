package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/onnwee/chat-bridge/chat"
	"github.com/onnwee/chat-bridge/testutil"
)

func TestResolveAccountsKeepsOrderAndDropsUnknown(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockUsersResponse(map[string]string{"1": "Alpha", "2": "beta", "3": "gamma"})
	hc := &HelixClient{ClientID: "cid", BaseURL: srv.URL + "/helix"}

	got, err := hc.ResolveAccounts(context.Background(), []string{"3", "404", "1"})
	if err != nil {
		t.Fatalf("ResolveAccounts() error = %v", err)
	}
	want := []chat.Account{{ID: "3", Login: "gamma"}, {ID: "1", Login: "alpha"}}
	if len(got) != len(want) {
		t.Fatalf("ResolveAccounts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("account[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGetUsersByIDBatches(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	var requests atomic.Int32
	srv.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()["id"]
		if len(q) > 100 {
			t.Errorf("batch of %d ids exceeds limit", len(q))
		}
		data := make([]User, 0, len(q))
		for _, id := range q {
			data = append(data, User{ID: id, Login: "u" + id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
	hc := &HelixClient{ClientID: "cid", BaseURL: srv.URL + "/helix"}

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}
	users, err := hc.GetUsersByID(context.Background(), append(ids, "1", ""))
	if err != nil {
		t.Fatalf("GetUsersByID() error = %v", err)
	}
	if len(users) != 250 {
		t.Errorf("got %d users, want 250", len(users))
	}
	if requests.Load() != 3 {
		t.Errorf("made %d requests, want 3", requests.Load())
	}
}

func TestGetUsersByIDRefreshesAppTokenOn401(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	var tokenCalls atomic.Int32
	srv.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		n := tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("app-%d", n),
			"expires_in":   3600,
			"token_type":   "bearer",
		})
	}
	srv.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer app-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Client-Id") != "cid" {
			t.Errorf("Client-Id header = %q", r.Header.Get("Client-Id"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []User{{ID: "1", Login: "one"}}})
	}
	hc := &HelixClient{
		ClientID:       "cid",
		BaseURL:        srv.URL + "/helix",
		AppTokenSource: &TokenSource{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL + "/oauth2/token"},
	}

	users, err := hc.GetUsersByID(context.Background(), []string{"1"})
	if err != nil {
		t.Fatalf("GetUsersByID() error = %v", err)
	}
	if len(users) != 1 || users[0].Login != "one" {
		t.Errorf("users = %v", users)
	}
	if tokenCalls.Load() != 2 {
		t.Errorf("token fetched %d times, want 2", tokenCalls.Load())
	}
}

func TestGetUsersByIDServerError(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}
	hc := &HelixClient{ClientID: "cid", BaseURL: srv.URL + "/helix"}
	if _, err := hc.GetUsersByID(context.Background(), []string{"1"}); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestGetUsersByIDEmpty(t *testing.T) {
	hc := &HelixClient{BaseURL: "http://127.0.0.1:1"}
	users, err := hc.GetUsersByID(context.Background(), nil)
	if err != nil || len(users) != 0 {
		t.Fatalf("GetUsersByID(nil) = %v, %v", users, err)
	}
}

var _ chat.AccountResolver = (*HelixClient)(nil)
