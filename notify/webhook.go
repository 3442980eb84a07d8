// Package notify delivers chat events to operators outside the process.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/chat-bridge/chat"
)

// Webhook posts credential-expired notices to a Discord-compatible webhook
// URL as {"content": "..."}. Other events are ignored.
type Webhook struct {
	chat.NopListener

	// URL receives notices for tenants missing from TenantURLs.
	URL        string
	TenantURLs map[string]string
	HTTPClient *http.Client
	// Timeout bounds one delivery; default 10s.
	Timeout time.Duration
}

// ExpiredMessage is the operator-facing text of an expiry notice.
func ExpiredMessage(account chat.Account) string {
	return fmt.Sprintf("Token for client %s has expired! Please update the token", account.Login)
}

// urlFor returns the webhook for tenant, or "" when none applies.
func (w *Webhook) urlFor(tenant string) string {
	if u, ok := w.TenantURLs[tenant]; ok && u != "" {
		return u
	}
	return w.URL
}

func (w *Webhook) CredentialExpired(ctx context.Context, key chat.Key, account chat.Account) {
	url := w.urlFor(key.Tenant)
	if url == "" {
		slog.Debug("no expiry webhook for tenant", slog.String("tenant", key.Tenant))
		return
	}
	if err := w.post(ctx, url, ExpiredMessage(account)); err != nil {
		slog.Warn("expiry webhook failed",
			slog.String("key", key.String()),
			slog.Any("err", err),
			slog.String("component", "notify"))
	}
}

// Post sends content to the default webhook URL.
func (w *Webhook) Post(ctx context.Context, content string) error {
	return w.post(ctx, w.URL, content)
}

func (w *Webhook) post(ctx context.Context, url, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := w.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
