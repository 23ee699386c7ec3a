package app

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/screenseat/booking-engine/api"
	"github.com/screenseat/booking-engine/internal/domain"
)

func (app *application) CreatePaymentAttempt(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	booking, ok := app.fetchOwnedBooking(w, r, userId)
	if !ok {
		return
	}

	switch booking.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusExpired:
		app.codedErrorResponse(w, r, http.StatusConflict, CodeBookingClosed,
			"payments cannot be started for a cancelled or expired booking")
		return
	}

	paid, err := app.paymentRepo.SumSuccessful(r.Context(), booking.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	remaining := domain.RemainingBalance(booking.TotalAmount, paid)
	if remaining == 0 {
		app.codedErrorResponse(w, r, http.StatusConflict, CodeAlreadyPaid,
			"the booking is already fully paid")
		return
	}

	payment := &domain.Payment{
		BookingID: booking.ID,
		Amount:    remaining,
		Status:    domain.PaymentStatusDelayed,
		GatewayID: uuid.NewString(),
	}

	err = app.paymentRepo.CreateAttempt(r.Context(), payment)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	redirectUrl, err := app.paymentProvider.CreateRedirect(r.Context(), booking, payment)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.logger.Info("payment attempt created",
		"bookingId", booking.ID, "paymentId", payment.ID, "amount", payment.Amount)

	resp := api.CreatePaymentAttemptResponse{
		PaymentAttempt: toPaymentAttempt(payment),
		RedirectUrl:    redirectUrl,
	}

	app.writeJSON(w, http.StatusCreated, resp, nil)
}

func (app *application) ListPaymentAttempts(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	booking, ok := app.fetchOwnedBooking(w, r, userId)
	if !ok {
		return
	}

	payments, err := app.paymentRepo.ListByBooking(r.Context(), booking.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.PaymentListResponse{
		Payments: make([]api.PaymentAttempt, 0, len(payments)),
	}

	for i := range payments {
		resp.Payments = append(resp.Payments, toPaymentAttempt(&payments[i]))
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func toPaymentAttempt(payment *domain.Payment) api.PaymentAttempt {
	return api.PaymentAttempt{
		PaymentId: payment.ID,
		Amount:    payment.Amount,
		Status:    string(payment.Status),
		CreatedAt: payment.CreatedAt,
	}
}
