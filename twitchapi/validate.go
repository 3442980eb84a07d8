package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/onnwee/chat-bridge/chat"
	"github.com/onnwee/chat-bridge/telemetry"
)

// DefaultIDURL is the Twitch identity service base.
const DefaultIDURL = "https://id.twitch.tv"

// Validator checks user tokens against /oauth2/validate. It implements
// chat.CredentialGate.
type Validator struct {
	BaseURL    string
	HTTPClient *http.Client
}

type validateResponse struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	Scopes    []string `json:"scopes"`
	UserID    string   `json:"user_id"`
	ExpiresIn int      `json:"expires_in"`
}

// Validate reports Valid when Twitch accepts token for account with every
// required scope, Invalid when Twitch rejects it or it belongs to someone
// else, and Indeterminate when no verdict could be obtained.
func (v *Validator) Validate(ctx context.Context, account chat.Account, token string, scopes []string) (chat.Validity, error) {
	res, err := v.validate(ctx, account, token, scopes)
	telemetry.IncLabel(telemetry.TokenValidations, res.String())
	return res, err
}

func (v *Validator) validate(ctx context.Context, account chat.Account, token string, scopes []string) (chat.Validity, error) {
	if i := strings.LastIndex(token, "oauth:"); i >= 0 {
		token = token[i+len("oauth:"):]
	}
	base := v.BaseURL
	if base == "" {
		base = DefaultIDURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/oauth2/validate", nil)
	if err != nil {
		return chat.Indeterminate, err
	}
	req.Header.Set("Authorization", "OAuth "+token)
	hc := v.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return chat.Indeterminate, fmt.Errorf("validate token: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return chat.Invalid, nil
	default:
		return chat.Indeterminate, fmt.Errorf("validate token: unexpected status %s", resp.Status)
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return chat.Indeterminate, fmt.Errorf("decode validate response: %w", err)
	}
	if !strings.EqualFold(body.Login, account.Login) {
		slog.Warn("token belongs to a different account",
			slog.String("expected", account.Wire()),
			slog.String("actual", strings.ToLower(body.Login)))
		return chat.Invalid, nil
	}
	if missing, _ := lo.Difference(scopes, body.Scopes); len(missing) > 0 {
		slog.Warn("token missing required scopes",
			slog.String("account", account.Wire()),
			slog.Any("missing", missing))
		return chat.Invalid, nil
	}
	return chat.Valid, nil
}
