package harberger

import (
	"errors"
	"fmt"

	"pacochain/native/common"
)

var (
	// ErrInsufficientBond rejects listings whose bond does not cover the
	// minimum fraction of the stated price.
	ErrInsufficientBond = errors.New("harberger: bond below minimum fraction of stated price")
	// ErrInvalidDelta rejects empty alterations, non-positive resulting prices
	// and bond withdrawals larger than the bond.
	ErrInvalidDelta = errors.New("harberger: invalid price or bond delta")
	// ErrIntentExpiredOrMissing guards consent-gated transfers.
	ErrIntentExpiredOrMissing = errors.New("Intent to receive expired.")
	// ErrUnauthorized is returned when the caller may not act on the asset.
	ErrUnauthorized = errors.New("harberger: caller not authorized")
	// ErrPaymentTransferFailed wraps any failure of the payment token.
	ErrPaymentTransferFailed = errors.New("harberger: payment transfer failed")
	// ErrSaleNotActive blocks minting while the sale flag is off.
	ErrSaleNotActive = errors.New("harberger: sale not active")
	// ErrListingNotFound is returned for unknown asset ids.
	ErrListingNotFound = errors.New("harberger: listing not found")
	// ErrPriceLimitExceeded protects buyers against a price above their limit.
	ErrPriceLimitExceeded = errors.New("harberger: current price exceeds buyer limit")
	// ErrInvalidAmount rejects negative or out-of-range amounts.
	ErrInvalidAmount = errors.New("harberger: invalid amount")

	errNilState    = errors.New("harberger engine: state not configured")
	errNilPayments = errors.New("harberger engine: payments not configured")
	errInvalidArgs = errors.New("harberger engine: invalid params")
)

func errInvalidParams(reason string) error {
	return fmt.Errorf("%w: %s", errInvalidArgs, reason)
}

// Error codes exposed to clients.
const (
	CodeInsufficientBond       = "INSUFFICIENT_BOND"
	CodeInvalidDelta           = "INVALID_DELTA"
	CodeIntentExpiredOrMissing = "INTENT_EXPIRED_OR_MISSING"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodePaymentTransferFailed  = "PAYMENT_TRANSFER_FAILED"
	CodeSaleNotActive          = "SALE_NOT_ACTIVE"
	CodeListingNotFound        = "LISTING_NOT_FOUND"
	CodePriceLimitExceeded     = "PRICE_LIMIT_EXCEEDED"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeModulePaused           = "MODULE_PAUSED"
	CodeInternal               = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInsufficientBond, CodeInsufficientBond},
	{ErrInvalidDelta, CodeInvalidDelta},
	{ErrIntentExpiredOrMissing, CodeIntentExpiredOrMissing},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrPaymentTransferFailed, CodePaymentTransferFailed},
	{ErrSaleNotActive, CodeSaleNotActive},
	{ErrListingNotFound, CodeListingNotFound},
	{ErrPriceLimitExceeded, CodePriceLimitExceeded},
	{ErrInvalidAmount, CodeInvalidAmount},
	{common.ErrModulePaused, CodeModulePaused},
}

// Code maps an error returned by the engine to its stable taxonomy string.
// Unknown errors map to CodeInternal and nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
