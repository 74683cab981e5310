package alice

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	"github.com/dendisuhubdy/xmr-btc-swap/net/message"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/backend"
)

// SwapState is the handle a network dispatcher outside this package uses
// to drive an Alice-side swap (the Monero holder): generate the opening
// keys message and route every subsequent message from p to it.
type SwapState interface {
	ID() types.ID
	Stage() Stage
	Done() <-chan struct{}
	SendKeysMessage() (*message.SendKeysMessage, error)
	HandleMessage(p peer.ID, msg message.Message) error

	// Cancel broadcasts TxCancel, Alice's unilateral exit once she holds a
	// counter-signed copy of it. A no-op if the swap has already
	// concluded; returns an error if TxCancel was never built (too early
	// in the protocol).
	Cancel() error
	// Punish broadcasts TxPunish once punish_timelock has elapsed since
	// TxCancel confirmed and Bob never refunded, claiming the locked
	// Bitcoin outright. Only Alice can take this path.
	Punish() error
}

// NewSwapState begins tracking a new swap in which the caller plays Alice
// against the counterparty p, for the given offer.
func NewSwapState(b backend.Backend, offer *types.Offer, p peer.ID) (SwapState, error) {
	return newSwapState(b, offer, p)
}

// SendKeysMessage generates this swap's keys-and-proof and returns the
// message to send to the counterparty to begin the key exchange.
func (s *swapState) SendKeysMessage() (*message.SendKeysMessage, error) {
	return s.sendKeysMessage()
}

// Stage returns the swap's current stage.
func (s *swapState) Stage() Stage {
	s.Lock()
	defer s.Unlock()
	return s.stage
}

// Cancel broadcasts TxCancel. See cancelPath for what happens after.
func (s *swapState) Cancel() error {
	return s.cancelPath()
}

// Punish broadcasts TxPunish directly, for an operator who already knows
// punish_timelock has elapsed and doesn't want to wait on
// awaitPunishTimelock's own watch.
func (s *swapState) Punish() error {
	return s.punish()
}
