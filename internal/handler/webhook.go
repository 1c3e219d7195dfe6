package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/service"
)

// maxWebhookBody caps how much of a notification is read.
const maxWebhookBody = 64 << 10

// WebhookHandler receives payment notifications from the gateway.  It is
// mounted outside the JWT group; the shared signature is its only guard.
type WebhookHandler struct {
	confirmations Confirmer
	secret        []byte
	header        string
}

// NewWebhookHandler verifies notifications by comparing the value of
// header against secret.
func NewWebhookHandler(confirmations Confirmer, secret, header string) *WebhookHandler {
	if confirmations == nil {
		panic("nil service passed to NewWebhookHandler")
	}
	return &WebhookHandler{confirmations: confirmations, secret: []byte(secret), header: header}
}

type notification struct {
	Type string `json:"type"`
	Data struct {
		BookingID     string `json:"bookingId"`
		TransactionID string `json:"transactionId"`
	} `json:"data"`
}

// Handle handles POST /bookings/webhook.
func (h *WebhookHandler) Handle(c echo.Context) error {
	sig := c.Request().Header.Get(h.header)
	if len(h.secret) == 0 || subtle.ConstantTimeCompare([]byte(sig), h.secret) != 1 {
		return message(c, http.StatusForbidden, "Invalid signature")
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid JSON")
	}
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return message(c, http.StatusBadRequest, "Invalid JSON")
	}

	out, err := h.confirmations.Confirm(c.Request().Context(), service.Notification{
		Type:          n.Type,
		BookingID:     n.Data.BookingID,
		TransactionID: n.Data.TransactionID,
	})
	if err != nil {
		switch service.KindOf(err) {
		case service.KindBadRequest, service.KindNotFound:
			return fail(c, err)
		case service.KindConflict, service.KindInvalidState:
			return message(c, http.StatusConflict, "Processing error")
		default:
			c.Logger().Errorf("webhook %s: %v", n.Data.BookingID, err)
			return message(c, http.StatusInternalServerError, "Processing error")
		}
	}
	switch out {
	case service.Ignored:
		return message(c, http.StatusOK, "Ignored")
	case service.AlreadyConfirmed:
		return message(c, http.StatusOK, "Already confirmed")
	default:
		return message(c, http.StatusOK, "Success")
	}
}
