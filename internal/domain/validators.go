package domain

import (
	"fmt"
	"regexp"
)

var playerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)

// ValidatePlayerID checks that a player identifier is present and well formed.
func ValidatePlayerID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !playerIDRegex.MatchString(id) {
		return fmt.Errorf("%s must be 1-64 alphanumeric, dash or underscore characters", field)
	}
	return nil
}

// ValidateTableID checks that a table identifier is present.
func ValidateTableID(id string) error {
	if id == "" {
		return fmt.Errorf("tableId is required")
	}
	return nil
}

// ValidateHandID checks that a hand identifier is present.
func ValidateHandID(id string) error {
	if id == "" {
		return fmt.Errorf("handId is required")
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is strictly positive.
func ValidatePositiveAmount(field string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, amount)
	}
	return nil
}

// ValidateNonNegativeAmount checks that an amount is zero or positive.
func ValidateNonNegativeAmount(field string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%s must not be negative, got %d", field, amount)
	}
	return nil
}
