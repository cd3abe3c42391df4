package app

import "errors"

// BookingErrorKind classifies why a booking was rejected. The kind travels
// end-to-end so the API layer never parses error messages.
type BookingErrorKind string

const (
	BookingErrSlotTaken    BookingErrorKind = "slot_taken"
	BookingErrLinkExpired  BookingErrorKind = "link_expired"
	BookingErrLinkInactive BookingErrorKind = "link_inactive"
	BookingErrInvalidSlot  BookingErrorKind = "invalid_slot"
	BookingErrFailed       BookingErrorKind = "booking_failed"
)

// BookingError is a rejected booking with an explicit kind and a human
// message.
type BookingError struct {
	Kind    BookingErrorKind
	Message string
}

func (e *BookingError) Error() string { return e.Message }

func newBookingError(kind BookingErrorKind, msg string) *BookingError {
	return &BookingError{Kind: kind, Message: msg}
}

// AsBookingError unwraps err into a BookingError if it is one.
func AsBookingError(err error) (*BookingError, bool) {
	var be *BookingError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ErrSlotConflict is returned by the store when inserting an interview
// violates the active-slot uniqueness backstop.
var ErrSlotConflict = errors.New("interviewer already booked at that time")

// ErrNotFound is returned by the store for missing records.
var ErrNotFound = errors.New("not found")
