// Package payment is the boundary to the mobile-money provider: push
// requests out, asynchronous callbacks in, and the reconciliation that
// matches a callback to its payment. Provider wire formats never leak past
// this package.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// PushRequest is the provider-neutral push-payment request.
type PushRequest struct {
	Amount           decimal.Decimal
	MSISDN           string
	AccountReference string
	Description      string
}

// PushResponse carries the provider-issued request identifier that later
// callbacks echo back.
type PushResponse struct {
	RequestID string
	Message   string
}

// CallbackResult is the single internal shape every provider envelope is
// parsed into before it reaches the reconciler.
type CallbackResult struct {
	// ProviderRef is the request id issued at initiation, when the provider
	// echoes it. AccountReference is the order number, when echoed instead.
	ProviderRef      string
	AccountReference string
	ResultCode       int
	ResultDesc       string
	Amount           decimal.Decimal
	HasAmount        bool
	PayerPhone       string
	TransactionID    string
	ReceiptNumber    string
}

// Success reports whether the provider settled the payment.
func (c *CallbackResult) Success() bool {
	return c.ResultCode == 0
}

// Provider is the capability both mobile-money integrations implement. The
// initiate/callback/idempotency contract is identical across providers;
// only the wire payloads differ.
type Provider interface {
	Name() string
	Push(ctx context.Context, req PushRequest) (*PushResponse, error)
	ParseCallback(body []byte) (*CallbackResult, error)
}

// ProviderError is an application-level rejection from the provider (a
// non-2xx response). It is never retried.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider rejected request (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider rejected request (%d)", e.StatusCode)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doWithRetry sends the request, retrying exactly once on a network-level
// failure. Application-level rejections come back as a response and are
// never retried.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if IsTimeout(err) {
			// A timed-out push may still complete on the provider side;
			// surface it without retrying so the payment stays pending.
			return nil, err
		}
	}

	return nil, lastErr
}

// IsTimeout reports whether err is a network timeout rather than a plain
// connection failure.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
