package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/screenseat/booking-engine/api"
	"github.com/screenseat/booking-engine/internal/domain"
)

const signatureHeader = "x-signature"

// PaymentWebhookHandler applies asynchronous gateway outcomes. The
// gateway retries on any non-2xx response, so well-formed payloads
// that cannot be applied (unknown payment, unknown outcome value) are
// acknowledged and ignored rather than rejected.
func (app *application) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("could not read request body"))
		return
	}

	err = app.verifyWebhookSignature(r, body)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSignatureMissing):
			app.codedErrorResponse(w, r, http.StatusUnauthorized, CodeSignatureMissing, "signature header is missing")
		default:
			app.codedErrorResponse(w, r, http.StatusUnauthorized, CodeSignatureInvalid, "signature verification failed")
		}

		return
	}

	var input api.PaymentWebhookRequest

	err = json.Unmarshal(body, &input)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("body contains badly-formed JSON"))
		return
	}

	outcome, known := domain.ParseGatewayOutcome(input.Status)
	if !known {
		app.logger.Warn("ignoring unknown gateway outcome",
			"paymentId", input.PaymentId, "status", input.Status)
		app.acknowledge(w, r)
		return
	}

	payment, err := app.paymentRepo.GetByID(r.Context(), input.PaymentId)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.logger.Warn("ignoring webhook for unknown payment", "paymentId", input.PaymentId)
			app.acknowledge(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if payment.BookingID != input.BookingId {
		app.logger.Warn("ignoring webhook with mismatched booking",
			"paymentId", input.PaymentId, "bookingId", input.BookingId)
		app.acknowledge(w, r)
		return
	}

	result, err := app.paymentRepo.ApplyOutcome(r.Context(), input.PaymentId, outcome)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if !result.Applied {
		app.logger.Info("gateway outcome already settled, ignoring replay",
			"paymentId", input.PaymentId, "status", result.Payment.Status)
		app.acknowledge(w, r)
		return
	}

	app.logger.Info("gateway outcome applied",
		"paymentId", input.PaymentId, "outcome", outcome, "bookingConfirmed", result.BookingConfirmed)

	if result.BookingConfirmed {
		app.publishBookingEvent(r.Context(), domain.BookingEventConfirmed, result.Booking)
	}

	app.acknowledge(w, r)
}

// verifyWebhookSignature checks the hex HMAC-SHA256 of the raw body
// against the shared gateway secret.
func (app *application) verifyWebhookSignature(r *http.Request, body []byte) error {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return domain.ErrSignatureMissing
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(app.config.gateway.webhookSecret))
	mac.Write(body)

	if !hmac.Equal(provided, mac.Sum(nil)) {
		return domain.ErrSignatureInvalid
	}

	return nil
}

func (app *application) acknowledge(w http.ResponseWriter, r *http.Request) {
	err := app.writeJSON(w, http.StatusOK, api.WebhookAckResponse{Received: true}, nil)
	if err != nil {
		app.logError(r, err)
	}
}
