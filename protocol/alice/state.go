// Package alice implements the XMR-holder side of the swap: Alice starts
// with Monero and wants Bitcoin. Grounded on the state transitions in
// original_source/swap/src/protocol/alice/swap.rs (AliceState's
// Started/BtcLocked/XmrLockTransactionSent/XmrLocked/
// XmrLockTransferProofSent/EncSigLearned/BtcRedeemTransactionPublished/
// BtcRedeemed happy path, and its CancelTimelockExpired/BtcCancelled/
// BtcRefunded/BtcPunishable/SafelyAborted recovery branch), expressed in
// the Go idiom noot-atomic-swap/protocol/bob/swap_state.go uses: a single
// mutable swapState plus a byte-tagged Stage for reporting and
// persistence, rather than a Rust-style data-carrying enum.
package alice

// Stage identifies where a swap has progressed to. It is coarser than the
// underlying swapState's fields (which carry the actual transaction
// hashes and keys); Stage exists for logging, persistence and the
// operator-facing status queries in cmd/daemon.
type Stage byte

const (
	// StageStarted is the initial stage: keys have not yet been
	// exchanged.
	StageStarted Stage = iota
	// StageKeysExchanged means both parties have exchanged and verified
	// their keys-and-proof messages.
	StageKeysExchanged
	// StageBTCLocked means Bob's TxLock has reached the required number
	// of confirmations.
	StageBTCLocked
	// StageXMRLockSent means Alice's Monero lock transfer has been
	// submitted, but has not yet reached the required number of
	// confirmations.
	StageXMRLockSent
	// StageXMRLocked means Alice has refreshed her wallet after the lock
	// transfer and sent Bob its transaction hash. The transfer's
	// confirmation count is not checked before this stage is entered.
	StageXMRLocked
	// StageEncSigReceived means Bob's adaptor-encrypted signature over
	// TxRedeem has been received and validated.
	StageEncSigReceived
	// StageBTCRedeemed means Alice has broadcast her completed TxRedeem
	// and claimed her Bitcoin. Terminal, successful.
	StageBTCRedeemed
	// StageBTCCancelled means TxCancel was broadcast because Bob never
	// sent his encrypted signature in time.
	StageBTCCancelled
	// StageBTCRefunded means Bob's TxRefund was observed on chain and
	// Alice has recovered his Monero spend key share and reclaimed the
	// joint Monero output. Terminal, successful recovery.
	StageBTCRefunded
	// StageBTCPunished means Bob never refunded either, and Alice
	// broadcast TxPunish to claim the Bitcoin outright. Terminal.
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
	case StageBTCLocked:
		return "BTCLocked"
	case StageXMRLockSent:
		return "XMRLockSent"
	case StageXMRLocked:
		return "XMRLocked"
	case StageEncSigReceived:
		return "EncSigReceived"
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
