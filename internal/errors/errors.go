package appErrors

import (
	"errors"
	"fmt"
)

// Sentinels matched by callers on message text as well as identity.
var (
	ErrNotOwner          = errors.New("Ownable: caller is not the owner")
	ErrOffsetOutOfBounds = errors.New("offset out of bounds")
	ErrZeroDonation      = errors.New("donation value must be greater than zero")
	ErrInvalidAmount     = errors.New("donation value must be a whole number of base units")
	ErrDonationNotFound  = errors.New("donation index out of range")
	ErrMissingCaller     = errors.New("missing caller address")
)

// ErrInvalidAddress is returned for structurally invalid identities
type ErrInvalidAddress struct {
	Value string
}

func (e *ErrInvalidAddress) Error() string {
	return fmt.Sprintf("invalid address %q", e.Value)
}

func NewInvalidAddress(value string) error {
	return &ErrInvalidAddress{Value: value}
}

// ErrFundraiserNotFound is returned when an identifier resolves to nothing
type ErrFundraiserNotFound struct {
	FundraiserID int64
}

func (e *ErrFundraiserNotFound) Error() string {
	return fmt.Sprintf("fundraiser with ID %d not found", e.FundraiserID)
}

// Helper constructor
func NewFundraiserNotFound(id int64) error {
	return &ErrFundraiserNotFound{FundraiserID: id}
}

// ErrUnavailable wraps a storage or transport failure. It is the only
// transient kind: the operation had no effect and may be resubmitted.
type ErrUnavailable struct {
	Op  string
	Err error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *ErrUnavailable) Unwrap() error {
	return e.Err
}

func NewUnavailable(op string, err error) error {
	return &ErrUnavailable{Op: op, Err: err}
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var u *ErrUnavailable
	return errors.As(err, &u)
}

// IsNotFound reports whether err is a missing fundraiser.
func IsNotFound(err error) bool {
	var nf *ErrFundraiserNotFound
	return errors.As(err, &nf)
}

// IsInvalidAddress reports whether err is a rejected identity.
func IsInvalidAddress(err error) bool {
	var ia *ErrInvalidAddress
	return errors.As(err, &ia)
}
