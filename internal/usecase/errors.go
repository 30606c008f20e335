package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable      = errors.New("understanding provider unavailable")
	ErrMalformedDateOrTime      = errors.New("malformed date or time")
	ErrSlotConflict             = errors.New("time slot is already taken")
	ErrNoMatchingAppointment    = errors.New("no matching scheduled appointment")
	ErrInvalidAppointmentFilter = errors.New("invalid appointment filter")
)

// Slot fields named by MalformedSlotError
const (
	SlotFieldDoctor = "doctor"
	SlotFieldDate   = "date"
	SlotFieldTime   = "time"
)

// MalformedSlotError names the extracted field that failed syntactic validation.
type MalformedSlotError struct {
	Field string
	Value string
}

func (e *MalformedSlotError) Error() string {
	return fmt.Sprintf("malformed %s %q", e.Field, e.Value)
}

func (e *MalformedSlotError) Unwrap() error {
	return ErrMalformedDateOrTime
}
