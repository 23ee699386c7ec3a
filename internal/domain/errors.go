package domain

import "errors"

var (
	ErrRecordNotFound        = errors.New("record not found")
	ErrShowtimeNotFound      = errors.New("showtime not found or inactive")
	ErrSeatNotInStudio       = errors.New("seat does not belong to the showtime's studio")
	ErrSeatBlocked           = errors.New("seat is blocked")
	ErrSeatUnavailable       = errors.New("seat is already taken")
	ErrIdempotencyKeyReused  = errors.New("idempotency key already used with a different request payload")
	ErrIdempotencyConflict   = errors.New("idempotency key written concurrently")
	ErrReferenceExhausted    = errors.New("could not allocate a unique booking reference")
	ErrBookingFinalized      = errors.New("cannot cancel a confirmed or claimed booking")
	ErrBookingNotConfirmable = errors.New("cannot confirm a cancelled or expired booking")
	ErrOnlyConfirmedClaimed  = errors.New("only a confirmed booking can be claimed")
	ErrBookingClosed         = errors.New("booking is cancelled or expired")
	ErrSignatureMissing      = errors.New("webhook signature header missing")
	ErrSignatureInvalid      = errors.New("webhook signature mismatch")
)
