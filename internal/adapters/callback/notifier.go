// Package callback reports job outcomes to the Harmony callback endpoint.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Notifier posts results to "<callback>/response".
type Notifier struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// New creates a Notifier.
func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		client: &fasthttp.Client{
			Name:                "gdalsubset",
			MaxIdleConnDuration: time.Minute,
		},
		timeout: timeout,
	}
}

// Complete tells Harmony where the staged result lives.
func (n *Notifier) Complete(ctx context.Context, callback, resultURL string) error {
	return n.post(ctx, callback, url.Values{"redirect": {resultURL}})
}

// Fail reports a failure message.
func (n *Notifier) Fail(ctx context.Context, callback, message string) error {
	return n.post(ctx, callback, url.Values{"error": {message}})
}

// ResponseURL builds the callback URL for the given query.
func ResponseURL(callback string, q url.Values) string {
	return strings.TrimSuffix(callback, "/") + "/response?" + q.Encode()
}

func (n *Notifier) post(ctx context.Context, callback string, q url.Values) error {
	if callback == "" {
		return nil
	}
	target := ResponseURL(callback, q)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(fasthttp.MethodPost)

	timeout := n.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	if err := n.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("post callback: status %d: %s", code, strings.TrimSpace(string(resp.Body())))
	}

	slog.InfoContext(ctx, "callback sent", "callback", callback, "query", q.Encode())
	return nil
}
