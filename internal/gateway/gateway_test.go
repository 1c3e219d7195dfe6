package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/metrics"
)

func TestStartPayment_ForwardsAck(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"Payment processed"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, metrics.New(prometheus.NewRegistry()))
	ack, err := c.StartPayment(context.Background(), PaymentRequest{
		BookingID:  "b1",
		Amount:     decimal.RequireFromString("150.50"),
		WebhookURL: "https://api.example.com/bookings/webhook",
	})
	require.NoError(t, err)
	assert.True(t, ack.OK())
	assert.JSONEq(t, `{"message":"Payment processed"}`, string(ack.Body))

	assert.Equal(t, "b1", got["bookingId"])
	assert.Equal(t, 150.5, got["amount"])
	assert.Equal(t, "https://api.example.com/bookings/webhook", got["webhookUrl"])
}

func TestStartPayment_ServerErrorIsAnAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	ack, err := c.StartPayment(context.Background(), PaymentRequest{BookingID: "b1", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, ack.OK())
	assert.Equal(t, http.StatusBadGateway, ack.StatusCode)
	assert.JSONEq(t, `{"message":"upstream down"}`, string(ack.Body))
}

func TestStartPayment_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	for i := 0; i < 5; i++ {
		_, err := c.StartPayment(context.Background(), PaymentRequest{BookingID: "b1", Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}
	_, err := c.StartPayment(context.Background(), PaymentRequest{BookingID: "b1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))
}

func TestStartPayment_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second, nil)
	_, err := c.StartPayment(context.Background(), PaymentRequest{BookingID: "b1", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestNormalize(t *testing.T) {
	assert.JSONEq(t, `{}`, string(normalize(nil)))
	assert.JSONEq(t, `{"a":1}`, string(normalize([]byte(` {"a":1} `))))
	assert.JSONEq(t, `{"message":"oops"}`, string(normalize([]byte("oops"))))
}
