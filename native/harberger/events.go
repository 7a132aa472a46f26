package harberger

import (
	"math/big"
	"strconv"

	"pacochain/core/types"
	"pacochain/crypto"
)

const (
	EventTypeMinted             = "harberger.minted"
	EventTypeAltered            = "harberger.altered"
	EventTypeSold               = "harberger.sold"
	EventTypeTransferred        = "harberger.transferred"
	EventTypeIntentSet          = "harberger.intent.set"
	EventTypeIntentCancelled    = "harberger.intent.cancelled"
	EventTypeLiquidationStarted = "harberger.liquidation.started"
	EventTypeLiquidationCleared = "harberger.liquidation.cleared"
	EventTypeFeesReaped         = "harberger.fees.reaped"
	EventTypeRefundCredited     = "harberger.refund.credited"
	EventTypeRefundWithdrawn    = "harberger.refund.withdrawn"
)

// harbergerEvent adapts a types.Event to the events.Emitter contract.
type harbergerEvent struct {
	evt *types.Event
}

func (e harbergerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e harbergerEvent) Event() *types.Event { return e.evt }

// NewMintedEvent describes a freshly minted listing.
func NewMintedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeMinted, l) }

// NewAlteredEvent describes a listing after an owner alteration.
func NewAlteredEvent(l *Listing, priceDelta, bondDelta *big.Int) *types.Event {
	evt := newListingEvent(EventTypeAltered, l)
	evt.Attributes["priceDelta"] = zeroIfNil(priceDelta).String()
	evt.Attributes["bondDelta"] = zeroIfNil(bondDelta).String()
	return evt
}

// NewSoldEvent describes a forced purchase settled at price.
func NewSoldEvent(l *Listing, seller [20]byte, price *big.Int) *types.Event {
	evt := newListingEvent(EventTypeSold, l)
	evt.Attributes["seller"] = formatAccount(seller)
	evt.Attributes["price"] = zeroIfNil(price).String()
	return evt
}

// NewTransferredEvent describes a consent-gated transfer.
func NewTransferredEvent(l *Listing, from [20]byte) *types.Event {
	evt := newListingEvent(EventTypeTransferred, l)
	evt.Attributes["from"] = formatAccount(from)
	return evt
}

// NewLiquidationStartedEvent is emitted the first time accrual exhausts a bond.
func NewLiquidationStartedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeLiquidationStarted, l)
}

// NewLiquidationClearedEvent is emitted when an owner rescues a liquidating
// listing.
func NewLiquidationClearedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeLiquidationCleared, l)
}

func NewIntentSetEvent(i *EscrowIntent) *types.Event {
	return newIntentEvent(EventTypeIntentSet, i)
}

func NewIntentCancelledEvent(i *EscrowIntent) *types.Event {
	return newIntentEvent(EventTypeIntentCancelled, i)
}

// NewFeesReapedEvent summarises a reaper batch.
func NewFeesReapedEvent(ids []uint64, total *big.Int, treasury [20]byte) *types.Event {
	attrs := map[string]string{
		"assets":   strconv.Itoa(len(ids)),
		"total":    zeroIfNil(total).String(),
		"treasury": formatAccount(treasury),
	}
	return &types.Event{Type: EventTypeFeesReaped, Attributes: attrs}
}

func NewRefundCreditedEvent(id uint64, account [20]byte, amount, balance *big.Int) *types.Event {
	return newRefundEvent(EventTypeRefundCredited, account, amount, balance, id)
}

func NewRefundWithdrawnEvent(account [20]byte, amount *big.Int) *types.Event {
	return newRefundEvent(EventTypeRefundWithdrawn, account, amount, big.NewInt(0), 0)
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["assetId"] = strconv.FormatUint(l.ID, 10)
	attrs["owner"] = formatAccount(l.Owner)
	attrs["statedPrice"] = zeroIfNil(l.StatedPrice).String()
	attrs["bond"] = zeroIfNil(l.Bond).String()
	attrs["liquidationStartedAt"] = strconv.FormatUint(l.LiquidationStartedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newIntentEvent(eventType string, i *EscrowIntent) *types.Event {
	attrs := make(map[string]string)
	if i == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["assetId"] = strconv.FormatUint(i.AssetID, 10)
	attrs["recipient"] = formatAccount(i.Recipient)
	attrs["priceDelta"] = zeroIfNil(i.PriceDelta).String()
	attrs["bondDelta"] = zeroIfNil(i.BondDelta).String()
	attrs["expiry"] = strconv.FormatUint(i.Expiry, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newRefundEvent(eventType string, account [20]byte, amount, balance *big.Int, id uint64) *types.Event {
	attrs := map[string]string{
		"account": formatAccount(account),
		"amount":  zeroIfNil(amount).String(),
		"balance": zeroIfNil(balance).String(),
	}
	if id != 0 {
		attrs["assetId"] = strconv.FormatUint(id, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAccount(addr [20]byte) string {
	return crypto.AddressFromRaw(crypto.PacoPrefix, addr).String()
}
