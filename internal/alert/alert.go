// Package alert implements a best-effort push notifier fired on
// unrecoverable Store errors and reprocess-exhaustion failures.
package alert

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhiying8710/orc20-indexer/pkg/logging"
)

// barkBaseURL is the Bark push gateway every configured token posts
// through: https://api.day.app/{token}/{title}/{body}.
const barkBaseURL = "https://api.day.app"

// Notifier sends best-effort alerts to every configured Bark token. A
// Notifier with no tokens configured is a no-op, so callers never need
// to check whether alerting is enabled before calling Notify.
type Notifier struct {
	webhookURL string
	tokens     []string
	httpClient *http.Client
	log        *logging.Logger
}

// New builds a Notifier from the webhook URL and a comma-separated list
// of Bark tokens. Per the original indexer's alert behavior, alerting
// is only active when both are configured.
func New(webhookURL, barkTokens string, log *logging.Logger) *Notifier {
	var tokens []string
	for _, t := range strings.Split(barkTokens, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return &Notifier{
		webhookURL: webhookURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Notify pushes message to every configured Bark token. Failures are
// logged, never returned: alerting must never be the reason an
// unrecoverable error goes unreported.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if n.webhookURL == "" || len(n.tokens) == 0 {
		return
	}
	for _, token := range n.tokens {
		target := fmt.Sprintf("%s/%s/orc20_indexer/%s", barkBaseURL, token, url.PathEscape(message))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			n.logFailure(token, err)
			continue
		}
		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.logFailure(token, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			n.logFailure(token, fmt.Errorf("status %d", resp.StatusCode))
			continue
		}
		if n.log != nil {
			n.log.Info("alert sent", "token", token)
		}
	}
}

func (n *Notifier) logFailure(token string, err error) {
	if n.log != nil {
		n.log.Warn("alert delivery failed", "token", token, "err", err)
	}
}
