package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_ids", validateSeatIDs)

	return validator
}

// validateSeatIDs accepts a non-empty []int of positive, pairwise
// distinct seat ids.
func validateSeatIDs(fl validator.FieldLevel) bool {
	seatIDs, ok := fl.Field().Interface().([]int)
	if !ok || len(seatIDs) == 0 {
		return false
	}

	seen := make(map[int]bool, len(seatIDs))

	for _, id := range seatIDs {
		if id < 1 || seen[id] {
			return false
		}
		seen[id] = true
	}

	return true
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "seat_ids":
		return "must be a non-empty list of distinct positive seat ids"
	default:
		return "is invalid"
	}
}
