package swap

import (
	"time"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
)

// Info is the persisted record of a single swap: enough to resume a
// driver loop from a crash without re-negotiating anything with the
// counterparty. Grounded on the shape implied by
// bingcicle-atomic-swap/protocol/swap/manager.go's Info usage
// (info.OfferID, info.Status, info.EndTime), generalized with the
// BTC/XMR amounts and role this swap's state machines need.
type Info struct {
	SwapID types.ID
	Role   types.Role
	Status types.Status

	XMRAmount common.MoneroAmount
	BTCAmount common.BitcoinAmount

	CancelTimelock uint64
	PunishTimelock uint64

	StartTime time.Time
	EndTime   *time.Time

	// StateData is the role-specific state machine's own serialized
	// snapshot (the snapshotData JSON record that protocol/alice and
	// protocol/bob write at every stage transition).
	// Keeping this opaque here lets protocol/swap stay ignorant of
	// protocol/alice and protocol/bob's concrete state shapes.
	StateData []byte
}
