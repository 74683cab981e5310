package protocol

import (
	"fmt"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	mcrypto "github.com/dendisuhubdy/xmr-btc-swap/crypto/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/monero"
)

// GetClaimKeypair sums a party's own spend/view key shares with the
// counterparty's (extracted from a published Bitcoin refund or redeem
// transaction's adaptor secret) into the joint Monero key pair.
func GetClaimKeypair(
	counterpartySpend *mcrypto.PrivateSpendKey,
	ourSpend *mcrypto.PrivateSpendKey,
	counterpartyView *mcrypto.PrivateViewKey,
	ourView *mcrypto.PrivateViewKey,
) *mcrypto.PrivateKeyPair {
	sk := mcrypto.SumPrivateSpendKeys(counterpartySpend, ourSpend)
	vk := mcrypto.SumPrivateViewKeys(counterpartyView, ourView)
	return mcrypto.NewPrivateKeyPair(sk, vk)
}

// ClaimMonero generates a wallet from the joint key pair, opens it, and
// sweeps its balance to sweepTo, the step both XmrRefunded (Alice
// regaining her XMR after Bob defaults) and Bob's own Monero-claim path
// take once they hold the joint spend key.
func ClaimMonero(
	env common.Environment,
	id types.ID,
	xmrClient monero.Client,
	restoreHeight uint64,
	kp *mcrypto.PrivateKeyPair,
	sweepTo mcrypto.Address,
) error {
	walletName := fmt.Sprintf("swap-deposit-wallet-%s", id)

	if err := xmrClient.GenerateFromKeys(kp, walletName, "", env, restoreHeight); err != nil {
		return fmt.Errorf("failed to generate wallet from joint keys: %w", err)
	}

	if err := xmrClient.OpenWallet(walletName, ""); err != nil {
		return fmt.Errorf("failed to open joint wallet: %w", err)
	}
	defer xmrClient.CloseWallet() //nolint:errcheck

	if err := xmrClient.Refresh(); err != nil {
		return fmt.Errorf("failed to refresh joint wallet: %w", err)
	}

	if _, err := xmrClient.SweepAll(sweepTo, 0); err != nil {
		return fmt.Errorf("failed to sweep joint wallet: %w", err)
	}

	return nil
}
