package domain

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet leaves out 0/O/1/I so a reference survives being
// read over the phone.
const (
	referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referenceLength   = 8

	// ReferenceMaxAttempts bounds collision retries before the
	// generator gives up with ErrReferenceExhausted.
	ReferenceMaxAttempts = 5
)

// NewBookingReference produces a short external booking identifier.
// References are presented to users and gateways instead of row ids;
// uniqueness is enforced by the store, the caller retries on collision.
func NewBookingReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes for booking reference: %w", err)
	}

	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}

	return string(buf), nil
}
