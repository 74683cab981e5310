package main

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// keystore is the minimal stand-in for the out-of-scope collaborator
// btc/electrum_wallet.go's doc comment describes as owning signing-key
// management: a single long-lived Bitcoin keypair, reused as swapd's
// change/redeem address. A production deployment would back this with an
// HD wallet and its own UTXO-confirmation watcher (see AddUTXO/SetUTXOs
// on the electrum wallet); this daemon wiring only needs something that
// satisfies btc.Wallet's NewAddress collaborator today.
type keystore struct {
	priv *btcec.PrivateKey
	addr btcutil.Address
}

func newKeystore(netParams *chaincfg.Params) (*keystore, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keystore key: %w", err)
	}

	pubKeyHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, netParams)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keystore address: %w", err)
	}

	return &keystore{priv: priv, addr: addr}, nil
}

func (k *keystore) address() (btcutil.Address, error) {
	return k.addr, nil
}
