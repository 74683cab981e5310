// Package bob implements the BTC-holder side of the swap: Bob starts with
// Bitcoin and wants Monero. Grounded on the state transitions in
// original_source/swap/src/protocol/bob/swap.rs (BobState's
// Started/BtcLocked/XmrLockProofReceived/XmrLocked/EncSigSent/
// BtcRedeemed happy path, and its CancelTimelockExpired/BtcCancelled/
// BtcRefunded/BtcPunished recovery branch), expressed with the same
// Stage-plus-swapState shape protocol/alice uses for the mirror role.
package bob

// Stage identifies where a swap has progressed to, from Bob's side.
type Stage byte

const (
	// StageStarted is the initial stage: keys have not yet been
	// exchanged.
	StageStarted Stage = iota
	// StageKeysExchanged means both parties have exchanged and verified
	// their keys-and-proof messages.
	StageKeysExchanged
	// StageBTCLockSent means Bob has broadcast TxLock but it has not yet
	// reached the required number of confirmations.
	StageBTCLockSent
	// StageBTCLocked means TxLock has confirmed; the exchange of
	// signatures over TxCancel starts from this stage.
	StageBTCLocked
	// StageXMRLocked means Alice's Monero lock transfer has been
	// observed and confirmed on chain by Bob's own wallet watch.
	StageXMRLocked
	// StageEncSigSent means Bob has sent his adaptor-encrypted signature
	// over TxRedeem to Alice.
	StageEncSigSent
	// StageBTCRedeemed means Alice published her completed TxRedeem and
	// Bob has recovered her Monero spend key share and swept the joint
	// output. Terminal, successful.
	StageBTCRedeemed
	// StageBTCCancelled means Bob broadcast the pre-signed TxCancel
	// because Alice never locked her Monero (or never produced a valid
	// redeem path) in time.
	StageBTCCancelled
	// StageBTCRefunded means Bob completed and broadcast TxRefund,
	// reclaiming his Bitcoin. Terminal, successful recovery.
	StageBTCRefunded
	// StageBTCPunished means Bob never refunded in time and Alice
	// punished him, taking the Bitcoin outright. Terminal, failed.
	StageBTCPunished
	// StageSafelyAborted means the swap exited before either party
	// locked any funds. Terminal, no funds at risk.
	StageSafelyAborted
)

// String ...
func (s Stage) String() string {
	switch s {
	case StageStarted:
		return "Started"
	case StageKeysExchanged:
		return "KeysExchanged"
	case StageBTCLockSent:
		return "BTCLockSent"
	case StageBTCLocked:
		return "BTCLocked"
	case StageXMRLocked:
		return "XMRLocked"
	case StageEncSigSent:
		return "EncSigSent"
	case StageBTCRedeemed:
		return "BTCRedeemed"
	case StageBTCCancelled:
		return "BTCCancelled"
	case StageBTCRefunded:
		return "BTCRefunded"
	case StageBTCPunished:
		return "BTCPunished"
	case StageSafelyAborted:
		return "SafelyAborted"
	default:
		return "unknown"
	}
}

// IsTerminal returns whether the stage ends the swap's driver loop.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageBTCRedeemed, StageBTCRefunded, StageBTCPunished, StageSafelyAborted:
		return true
	default:
		return false
	}
}
