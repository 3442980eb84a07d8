// Package twitchapi contains minimal helpers to interact with Twitch: Helix
// user lookups with an app access token and user token validation.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/onnwee/chat-bridge/chat"
)

// DefaultHelixURL is the Helix API base.
const DefaultHelixURL = "https://api.twitch.tv/helix"

// maxUsersPerRequest is the Helix limit on id/login query parameters.
const maxUsersPerRequest = 100

var errUnauthorized = errors.New("helix unauthorized")

// User is the subset of a Helix user the bridge needs.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// HelixClient resolves Twitch users.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string
	HTTPClient     *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return strings.TrimRight(hc.BaseURL, "/")
	}
	return DefaultHelixURL
}

// GetUsersByID looks ids up in batches of 100. Unknown ids are omitted.
func (hc *HelixClient) GetUsersByID(ctx context.Context, ids []string) ([]User, error) {
	ids = lo.Uniq(lo.Compact(ids))
	var users []User
	for _, batch := range lo.Chunk(ids, maxUsersPerRequest) {
		got, err := hc.getUsers(ctx, batch)
		if errors.Is(err, errUnauthorized) && hc.AppTokenSource != nil {
			// app tokens expire or get revoked; fetch a new one once
			hc.AppTokenSource.Invalidate()
			got, err = hc.getUsers(ctx, batch)
		}
		if err != nil {
			return nil, err
		}
		users = append(users, got...)
	}
	return users, nil
}

func (hc *HelixClient) getUsers(ctx context.Context, ids []string) ([]User, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+"/users?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", hc.ClientID)
	if hc.AppTokenSource != nil {
		tok, err := hc.AppTokenSource.Get(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errUnauthorized
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("helix users: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode helix users: %w", err)
	}
	return body.Data, nil
}

// ResolveAccounts implements chat.AccountResolver, keeping the order of ids.
func (hc *HelixClient) ResolveAccounts(ctx context.Context, ids []string) ([]chat.Account, error) {
	users, err := hc.GetUsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(users, func(u User) string { return u.ID })
	return lo.FilterMap(ids, func(id string, _ int) (chat.Account, bool) {
		u, ok := byID[id]
		return chat.Account{ID: u.ID, Login: strings.ToLower(u.Login)}, ok
	}), nil
}
