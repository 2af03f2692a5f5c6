package ledger

import (
	"errors"
)

var (
	ErrUnauthorized        = errors.New("Unauthorized")
	ErrNotFound            = errors.New("NotFound")
	ErrInvalidState        = errors.New("InvalidState")
	ErrInvalidInput        = errors.New("InvalidInput")
	ErrInsufficientPayment = errors.New("InsufficientPayment")
	ErrInsufficientFee     = errors.New("InsufficientFee")
	ErrNoSeats             = errors.New("NoSeats")
	ErrSeatTaken           = errors.New("SeatTaken")
	ErrSeatOutOfRange      = errors.New("SeatOutOfRange")
	ErrPriceCapExceeded    = errors.New("PriceCapExceeded")
	ErrSelfPurchase        = errors.New("SelfPurchase")
	ErrAlreadyCheckedIn    = errors.New("AlreadyCheckedIn")
	ErrAlreadyRefunded     = errors.New("AlreadyRefunded")
	ErrNotEligible         = errors.New("NotEligible")
	ErrNothingToWithdraw   = errors.New("NothingToWithdraw")
)

// ErrCorruptJournal is returned when a journal fails to replay or verify.
var ErrCorruptJournal = errors.New("journal does not reproduce ledger state")

var kinds = []error{
	ErrUnauthorized,
	ErrNotFound,
	ErrInvalidState,
	ErrInvalidInput,
	ErrInsufficientPayment,
	ErrInsufficientFee,
	ErrNoSeats,
	ErrSeatTaken,
	ErrSeatOutOfRange,
	ErrPriceCapExceeded,
	ErrSelfPurchase,
	ErrAlreadyCheckedIn,
	ErrAlreadyRefunded,
	ErrNotEligible,
	ErrNothingToWithdraw,
}

// Code returns the error kind name for err, "" for nil and "Internal" for
// anything that is not a ledger rejection.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "Internal"
}

// IsRejection reports whether err is a business-rule rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	c := Code(err)
	return c != "" && c != "Internal"
}
