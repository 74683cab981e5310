package types

import (
	"github.com/dendisuhubdy/xmr-btc-swap/common"
)

// Offer describes the negotiated terms of a single swap: how much XMR Alice
// is providing, how much BTC Bob is providing in exchange, and the relative
// timelocks that govern cancellation and punishment on the Bitcoin side.
//
// Unlike the teacher lineage's Offer, this is not an entry in a marketplace
// order book (no min/max range, no nonce, no semver-versioned wire format):
// spec.md has no notion of offer discovery, only a single already-agreed-upon
// swap between two already-connected peers.
type Offer struct {
	ID ID `json:"id"`

	XMRAmount common.MoneroAmount  `json:"xmrAmount"`
	BTCAmount common.BitcoinAmount `json:"btcAmount"`

	ExchangeRate common.ExchangeRate `json:"exchangeRate"`

	CancelTimelock uint64 `json:"cancelTimelock"`
	PunishTimelock uint64 `json:"punishTimelock"`
}

// NewOffer constructs an Offer and assigns it a fresh ID.
func NewOffer(xmrAmount common.MoneroAmount, btcAmount common.BitcoinAmount,
	rate common.ExchangeRate, cancelTimelock, punishTimelock uint64) *Offer {
	return &Offer{
		ID:             NewID(),
		XMRAmount:      xmrAmount,
		BTCAmount:      btcAmount,
		ExchangeRate:   rate,
		CancelTimelock: cancelTimelock,
		PunishTimelock: punishTimelock,
	}
}
