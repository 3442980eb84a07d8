package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheck(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	if got := check(context.Background(), ok.URL); got != 0 {
		t.Errorf("check(ok) = %d, want 0", got)
	}
	if got := check(context.Background(), bad.URL); got != 1 {
		t.Errorf("check(503) = %d, want 1", got)
	}
	if got := check(context.Background(), "http://127.0.0.1:1"); got != 1 {
		t.Errorf("check(unreachable) = %d, want 1", got)
	}
}
