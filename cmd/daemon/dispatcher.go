package main

import (
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	"github.com/dendisuhubdy/xmr-btc-swap/net/message"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/alice"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/backend"
)

// swapHandler is swapd's net.Handler: it runs the Alice (Monero-holder,
// maker) side of the protocol, accepting a new swap from any peer that
// opens with a SendKeysMessage and routing every later message on that
// peer's stream to the matching in-progress swap. One active swap per
// peer at a time, matching net.Host's one-stream-per-peer model.
type swapHandler struct {
	mu    sync.Mutex
	back  backend.Backend
	offer *types.Offer
	swaps map[peer.ID]alice.SwapState
	byID  map[types.ID]alice.SwapState
}

func newSwapHandler(b backend.Backend, offer *types.Offer) *swapHandler {
	return &swapHandler{
		back:  b,
		offer: offer,
		swaps: make(map[peer.ID]alice.SwapState),
		byID:  make(map[types.ID]alice.SwapState),
	}
}

// Cancel broadcasts TxCancel for the ongoing swap id, Alice's manual exit
// once she no longer wants to wait on T1/T2 firing on their own. Backs the
// rpc package's "swap_cancel" request.
func (h *swapHandler) Cancel(id types.ID) error {
	s, err := h.lookup(id)
	if err != nil {
		return err
	}
	return s.Cancel()
}

// Punish broadcasts TxPunish for the ongoing swap id. Backs the rpc
// package's "swap_punish" request.
func (h *swapHandler) Punish(id types.ID) error {
	s, err := h.lookup(id)
	if err != nil {
		return err
	}
	return s.Punish()
}

func (h *swapHandler) lookup(id types.ID) (alice.SwapState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.byID[id]
	if !ok {
		return nil, fmt.Errorf("no active swap with id %s", id)
	}
	return s, nil
}

// HandleMessage implements net.Handler.
func (h *swapHandler) HandleMessage(p peer.ID, msg message.Message) error {
	h.mu.Lock()
	s, ok := h.swaps[p]
	if !ok {
		keysMsg, isKeys := msg.(*message.SendKeysMessage)
		if !isKeys {
			h.mu.Unlock()
			return fmt.Errorf("no active swap with peer %s for message type %s", p, msg.Type())
		}

		newSwap, err := alice.NewSwapState(h.back, h.offer, p)
		if err != nil {
			h.mu.Unlock()
			return fmt.Errorf("failed to start swap with peer %s: %w", p, err)
		}

		ourKeys, err := newSwap.SendKeysMessage()
		if err != nil {
			h.mu.Unlock()
			return fmt.Errorf("failed to generate keys message for peer %s: %w", p, err)
		}

		if err := h.back.Host().SendMessage(p, ourKeys); err != nil {
			h.mu.Unlock()
			return fmt.Errorf("failed to send keys message to peer %s: %w", p, err)
		}

		h.swaps[p] = newSwap
		h.byID[newSwap.ID()] = newSwap
		s = newSwap
		h.mu.Unlock()

		log.Infof("started swap %s as alice with peer %s", newSwap.ID(), p)
		return s.HandleMessage(p, keysMsg)
	}
	h.mu.Unlock()

	return s.HandleMessage(p, msg)
}
