package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/router"
	"github.com/iliyamo/ticket-booking/internal/service"
	"github.com/iliyamo/ticket-booking/internal/utils"
)

const jwtSecret = "jwt-secret"

type stub struct{ lastUser string }

func (s *stub) Reserve(_ context.Context, in service.ReserveInput) (*service.ReserveResult, error) {
	s.lastUser = in.UserID
	return &service.ReserveResult{BookingID: "b1", Status: model.BookingPending}, nil
}

func (s *stub) Start(context.Context, service.StartPaymentInput) (*gateway.Ack, error) {
	return &gateway.Ack{StatusCode: 200, Body: []byte(`{}`)}, nil
}

func (s *stub) Get(_ context.Context, id, userID string) (*model.Booking, error) {
	s.lastUser = userID
	return &model.Booking{ID: id, UserID: userID, Status: model.BookingPending}, nil
}

func (s *stub) ListTickets(context.Context, string) ([]service.TicketAvailability, error) {
	return nil, nil
}

func (s *stub) Confirm(context.Context, service.Notification) (service.Outcome, error) {
	return service.Confirmed, nil
}

func newServer(t *testing.T, limiter echo.MiddlewareFunc) (*echo.Echo, *stub) {
	t.Helper()
	s := &stub{}
	reg := prometheus.NewRegistry()
	metrics.New(reg).Reservation("ok")

	e := echo.New()
	router.RegisterRoutes(e, nil, reg)
	router.RegisterPublic(e, handler.NewEventHandler(s), nil)
	router.RegisterBookings(e,
		handler.NewBookingHandler(s, s, s),
		handler.NewWebhookHandler(s, "whsec", "X-Stripe-Signature"),
		jwtSecret, limiter)
	return e, s
}

func bearer(t *testing.T, user string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(jwtSecret, user, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBookingRoutesRequireToken(t *testing.T) {
	e, s := newServer(t, nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/bookings/b1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/bookings/b1", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, "u7"))
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u7", s.lastUser)
}

func TestWebhookBypassesJWT(t *testing.T) {
	e, _ := newServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/bookings/webhook", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/bookings/webhook",
		strings.NewReader(`{"type":"payment_succeeded","data":{"bookingId":"b1","transactionId":"x"}}`))
	req.Header.Set("X-Stripe-Signature", "whsec")
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Success")
}

func TestLimiterOnlyGuardsWrites(t *testing.T) {
	var hits []string
	limiter := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hits = append(hits, c.Path())
			return next(c)
		}
	}
	e, _ := newServer(t, limiter)
	auth := bearer(t, "u1")

	for _, r := range []struct{ method, path, body string }{
		{http.MethodPost, "/bookings/reserve", `{"eventId":"e1","ticketIds":["t1"]}`},
		{http.MethodPost, "/bookings/pay", `{"bookingId":"b1"}`},
		{http.MethodGet, "/bookings/b1", ""},
	} {
		req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, auth)
		assert.Equal(t, http.StatusOK, serve(e, req).Code, r.path)
	}
	assert.Equal(t, []string{"/bookings/reserve", "/bookings/pay"}, hits)
}

func TestOperationalRoutes(t *testing.T) {
	e, _ := newServer(t, nil)

	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking_reservations_total")

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/events/e1/tickets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
