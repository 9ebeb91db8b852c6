package router

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stringPtr returns a trimmed pointer or nil when the input is empty.
func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	return stringPtr(id.String())
}

func optionalUUIDPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	return uuidPtr(*id)
}

func int64Ptr(value int64) *int64 {
	return &value
}

// centsPtr converts a money amount to minor units, rounding half away from zero.
func centsPtr(amount decimal.Decimal) *int64 {
	return int64Ptr(amount.Shift(2).Round(0).IntPart())
}
