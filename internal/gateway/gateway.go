// Package gateway is the client side of the external payment gateway.
// The gateway is asked to start a payment and later reports the result
// asynchronously to the booking webhook.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/iliyamo/ticket-booking/internal/metrics"
)

// PaymentRequest asks the gateway to charge Amount for BookingID and to
// post the outcome to WebhookURL.
type PaymentRequest struct {
	BookingID  string
	Amount     decimal.Decimal
	WebhookURL string
}

// Ack is the gateway's answer to a payment start, passed back to the
// client untouched.  Body is always valid JSON.
type Ack struct {
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the gateway accepted the request.
func (a *Ack) OK() bool { return a.StatusCode >= 200 && a.StatusCode < 300 }

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("payment gateway unavailable")

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("gateway responded %d", e.code) }

// HTTPClient posts payment requests as JSON.  Calls go through a circuit
// breaker so a gateway that keeps failing is skipped for a cool-down
// period instead of holding request goroutines for the full timeout.
type HTTPClient struct {
	url     string
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewHTTPClient returns a client for the gateway endpoint url.
func NewHTTPClient(url string, timeout time.Duration, m *metrics.Metrics) *HTTPClient {
	st := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("gateway: breaker %s %s -> %s", name, from, to)
		},
	}
	return &HTTPClient{
		url:     url,
		hc:      &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
		metrics: m,
	}
}

type payload struct {
	BookingID  string      `json:"bookingId"`
	Amount     json.Number `json:"amount"`
	WebhookURL string      `json:"webhookUrl"`
}

// StartPayment sends req to the gateway.  Any HTTP response, including
// a non-2xx one, is returned as an Ack; only transport failures and an
// open breaker produce an error.
func (c *HTTPClient) StartPayment(ctx context.Context, req PaymentRequest) (*Ack, error) {
	body, err := json.Marshal(payload{
		BookingID:  req.BookingID,
		Amount:     json.Number(req.Amount.String()),
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}

	var ack *Ack
	start := time.Now()
	_, err = c.cb.Execute(func() (interface{}, error) {
		a, err := c.post(ctx, body)
		if err != nil {
			return nil, err
		}
		ack = a
		if a.StatusCode >= 500 {
			return nil, &statusError{code: a.StatusCode}
		}
		return nil, nil
	})
	elapsed := time.Since(start).Seconds()

	var se *statusError
	switch {
	case err == nil, errors.As(err, &se):
		c.metrics.GatewayCall("ok", elapsed)
		return ack, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.GatewayCall("error", elapsed)
		return nil, ErrUnavailable
	default:
		c.metrics.GatewayCall("error", elapsed)
		return nil, err
	}
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (*Ack, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	return &Ack{StatusCode: resp.StatusCode, Body: normalize(raw)}, nil
}

// normalize makes sure the body can be forwarded as JSON.  Empty bodies
// become {} and anything else that is not JSON is wrapped as a message.
func normalize(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"message": string(raw)})
	return wrapped
}
