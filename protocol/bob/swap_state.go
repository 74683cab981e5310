package bob

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dendisuhubdy/xmr-btc-swap/btc"
	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/adaptor"
	mcrypto "github.com/dendisuhubdy/xmr-btc-swap/crypto/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/secp256k1"
	"github.com/dendisuhubdy/xmr-btc-swap/net/message"
	pcommon "github.com/dendisuhubdy/xmr-btc-swap/protocol"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/backend"
	pswap "github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
)

var log = logging.Logger("bob")

// watchWalletFile is the filename given to the view-only wallet Bob opens
// to watch the joint Monero address for Alice's lock transfer.
const watchWalletFile = "bob-swap-watch"

// swapState drives a single swap from Bob's side: he holds Bitcoin and
// wants Monero. Grounded on protocol/alice/swap_state.go's shape, mirrored
// to the opposite role: Bob funds and broadcasts TxLock, sends his own
// adaptor-encrypted contribution to TxRedeem once Alice's Monero lock
// confirms, and recovers her Monero spend key share once she publishes her
// completed TxRedeem.
type swapState struct {
	backend.Backend
	sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	info  *pswap.Info
	offer *types.Offer
	peer  peer.ID

	stage Stage

	netParams *chaincfg.Params

	// our keys for this session
	keysAndProof *pcommon.KeysAndProof

	// Alice's keys for this session, learned from her SendKeysMessage and
	// checked against her DLEq proof before any funds move
	aliceSecp256k1Pub *secp256k1.PublicKey
	aliceSpendPub     [32]byte
	aliceViewKey      *mcrypto.PrivateViewKey
	aliceBTCAddr      btcutil.Address

	// our own Bitcoin refund address
	bobBTCAddr btcutil.Address

	lockScript []byte
	lockTxHash chainhash.Hash
	lockValue  common.BitcoinAmount

	cancelScript   []byte
	cancelTx       *wire.MsgTx
	cancelTxHash   chainhash.Hash
	cancelValue    common.BitcoinAmount
	bobCancelSig   []byte
	aliceCancelSig []byte

	xmrLockAddress   mcrypto.Address
	xmrRestoreHeight uint64

	aliceRefundEncSig *adaptor.EncryptedSignature
	refundTx          *wire.MsgTx

	redeemTx        *wire.MsgTx
	bobRedeemEncSig *adaptor.EncryptedSignature

	// cancelExpired is closed once cancel_timelock relative blocks have
	// passed since lockTxHash confirmed. watcherOnce guards starting the
	// single background goroutine that watches for it. See
	// protocol/alice/swap_state.go's startCancelWatcher for why this
	// reuses WaitForConfirmations instead of a dedicated subscription
	// type on btc.Wallet.
	cancelExpired chan struct{}
	watcherOnce   sync.Once

	done chan struct{}
}

// newSwapState constructs a swapState for a swap Bob has agreed to, and
// registers it with the backend's swap manager.
func newSwapState(b backend.Backend, offer *types.Offer, p peer.ID) (*swapState, error) {
	bobBTCAddr, err := b.BTCWallet().NewAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get a refund address: %w", err)
	}

	info := &pswap.Info{
		SwapID:         offer.ID,
		Role:           types.RoleBob,
		Status:         types.Ongoing,
		XMRAmount:      offer.XMRAmount,
		BTCAmount:      offer.BTCAmount,
		CancelTimelock: offer.CancelTimelock,
		PunishTimelock: offer.PunishTimelock,
		StartTime:      time.Now(),
	}

	if err := b.SwapManager().AddSwap(info); err != nil {
		return nil, fmt.Errorf("failed to register swap: %w", err)
	}

	ctx, cancel := context.WithCancel(b.Ctx())

	return &swapState{
		Backend:       b,
		ctx:           ctx,
		cancel:        cancel,
		info:          info,
		offer:         offer,
		peer:          p,
		stage:         StageStarted,
		netParams:     btc.NetParamsForEnvironment(b.Env()),
		bobBTCAddr:    bobBTCAddr,
		cancelExpired: make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// ID returns the swap's unique ID.
func (s *swapState) ID() types.ID { return s.info.SwapID }

// Done returns a channel closed once the swap reaches a terminal stage.
func (s *swapState) Done() <-chan struct{} { return s.done }

// snapshotData is the JSON record persisted into info.StateData by
// persistLocked after every stage transition. See
// protocol/alice/swap_state.go's snapshotData for the scope this does and
// does not cover: it lets a restarted daemon report a swap's last known
// stage, not rejoin its cryptographic session mid-flight.
type snapshotData struct {
	Stage          string
	LockTxHash     string
	CancelTxHash   string
	XMRLockAddress string
	RestoreHeight  uint64
}

// persistLocked snapshots the swap's current stage and writes it via
// SwapManager().WriteSwapToDB. Callers must hold s.Lock().
func (s *swapState) persistLocked() {
	data, err := json.Marshal(snapshotData{
		Stage:          s.stage.String(),
		LockTxHash:     s.lockTxHash.String(),
		CancelTxHash:   s.cancelTxHash.String(),
		XMRLockAddress: string(s.xmrLockAddress),
		RestoreHeight:  s.xmrRestoreHeight,
	})
	if err != nil {
		log.Warnf("swap %s: failed to marshal state snapshot: %s", s.ID(), err)
		return
	}

	s.info.StateData = data
	if err := s.SwapManager().WriteSwapToDB(s.info); err != nil {
		log.Warnf("swap %s: failed to persist state: %s", s.ID(), err)
	}
}

// sendKeysMessage generates Bob's session key material and returns the
// message advertising it to Alice.
func (s *swapState) sendKeysMessage() (*message.SendKeysMessage, error) {
	kp, err := pcommon.GenerateKeysAndProof()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keys: %w", err)
	}

	s.Lock()
	s.keysAndProof = kp
	s.Unlock()

	viewKeyBytes := kp.PrivateKeyPair.ViewKey().Bytes()
	spendPub := kp.PrivateKeyPair.SpendKey().Public()

	return &message.SendKeysMessage{
		SwapID:             s.ID().String(),
		PublicSpendKey:     hex.EncodeToString(spendPub[:]),
		PrivateViewKey:     hex.EncodeToString(viewKeyBytes[:]),
		DLEqProof:          hex.EncodeToString(kp.DLEqProof.Proof()),
		Secp256k1PublicKey: kp.Secp256k1PublicKey.String(),
		BitcoinAddress:     s.bobBTCAddr.String(),
	}, nil
}

// HandleMessage implements net.Handler.
func (s *swapState) HandleMessage(_ peer.ID, msg message.Message) error {
	s.Lock()
	defer s.Unlock()

	switch m := msg.(type) {
	case *message.SendKeysMessage:
		if err := s.handleSendKeysMessage(m); err != nil {
			return err
		}
		go func() {
			if err := s.lockBTC(); err != nil {
				log.Errorf("swap %s: failed to lock btc: %s", s.ID(), err)
			}
		}()
		return nil
	case *message.SendCancelSignature:
		return s.handleSendCancelSignature(m)
	case *message.EncryptedSignatureMessage:
		return s.handleEncryptedSignatureMessage(m)
	case *message.NotifyXMRLock:
		return s.handleNotifyXMRLock(m)
	case *message.NotifyXMRLockProof:
		return s.handleNotifyXMRLockProof(m)
	case *message.NotifyBTCRedeemed:
		return s.handleNotifyBTCRedeemed(m)
	default:
		return fmt.Errorf("unexpected message type in stage %s: %T", s.stage, msg)
	}
}

// handleSendKeysMessage verifies Alice's DLEq proof and records her
// session keys. Funding TxLock is kicked off by HandleMessage once this
// returns successfully, not by this method itself, so it can be unit
// tested without exercising the network. Callers must hold s.Lock().
func (s *swapState) handleSendKeysMessage(msg *message.SendKeysMessage) error {
	if s.stage != StageStarted {
		return fmt.Errorf("received SendKeysMessage in unexpected stage %s", s.stage)
	}

	proofBytes, err := hex.DecodeString(msg.DLEqProof)
	if err != nil {
		return fmt.Errorf("invalid dleq proof encoding: %w", err)
	}

	spendPubBytes, err := hex.DecodeString(msg.PublicSpendKey)
	if err != nil || len(spendPubBytes) != 32 {
		return fmt.Errorf("invalid public spend key encoding")
	}
	var spendPub [32]byte
	copy(spendPub[:], spendPubBytes)

	secpPubBytes, err := hex.DecodeString(msg.Secp256k1PublicKey)
	if err != nil {
		return fmt.Errorf("invalid secp256k1 public key encoding: %w", err)
	}
	secpPub, err := secp256k1.NewPublicKeyFromCompressed(secpPubBytes)
	if err != nil {
		return fmt.Errorf("invalid secp256k1 public key: %w", err)
	}

	if _, err := pcommon.VerifyKeysAndProof(proofBytes, secpPub, spendPub); err != nil {
		return fmt.Errorf("failed to verify alice's keys: %w", err)
	}

	viewKeyBytes, err := hex.DecodeString(msg.PrivateViewKey)
	if err != nil || len(viewKeyBytes) != 32 {
		return fmt.Errorf("invalid private view key encoding")
	}
	viewKey, err := mcrypto.NewPrivateViewKeyFromBytes(viewKeyBytes)
	if err != nil {
		return fmt.Errorf("invalid private view key: %w", err)
	}

	aliceAddr, err := btcutil.DecodeAddress(msg.BitcoinAddress, s.netParams)
	if err != nil {
		return fmt.Errorf("invalid bitcoin address: %w", err)
	}

	s.aliceSecp256k1Pub = secpPub
	s.aliceSpendPub = spendPub
	s.aliceViewKey = viewKey
	s.aliceBTCAddr = aliceAddr
	s.stage = StageKeysExchanged
	s.persistLocked()

	log.Infof("swap %s: verified alice's keys, funding bitcoin lock", s.ID())
	return nil
}

// lockBTC selects UTXOs covering the swap amount plus fees, builds TxLock,
// and broadcasts it. Coin selection and signing the wallet's own funding
// inputs is the wallet implementation's concern, not this state machine's;
// BuildTxLock only needs to know which outpoints to spend and where change
// goes.
func (s *swapState) lockBTC() error {
	s.Lock()
	lockValue := s.offer.BTCAmount
	alicePub := s.aliceSecp256k1Pub.BTCECPublicKey()
	bobPub := s.keysAndProof.Secp256k1PublicKey.BTCECPublicKey()
	s.Unlock()

	fee := s.BTCWallet().TransactionFee(400)
	inputs, total, err := s.BTCWallet().SelectUTXOs(lockValue + fee)
	if err != nil {
		return fmt.Errorf("failed to select utxos to fund lock transaction: %w", err)
	}

	changeAddr, err := s.BTCWallet().NewAddress()
	if err != nil {
		return fmt.Errorf("failed to get a change address: %w", err)
	}
	changeScript, err := txscript.PayToAddrScript(changeAddr)
	if err != nil {
		return fmt.Errorf("failed to build change script: %w", err)
	}

	changeValue := total - lockValue - fee

	lockTx, lockScript, err := btc.BuildTxLock(inputs, changeScript, changeValue, alicePub, bobPub, lockValue)
	if err != nil {
		return fmt.Errorf("failed to build lock transaction: %w", err)
	}

	txHash, err := s.BTCWallet().Broadcast(lockTx)
	if err != nil {
		return fmt.Errorf("failed to broadcast lock transaction: %w", err)
	}

	s.Lock()
	s.lockTxHash = txHash
	s.lockScript = lockScript
	s.lockValue = lockValue
	s.stage = StageBTCLockSent
	s.persistLocked()
	s.Unlock()

	if err := s.Host().SendMessage(s.peer, &message.NotifyBTCLock{TxHash: txHash.String()}); err != nil {
		return fmt.Errorf("failed to notify alice of btc lock: %w", err)
	}

	return s.awaitBTCLockAndProceed(txHash, lockScript)
}

// awaitBTCLockAndProceed waits for TxLock's first confirmation, then
// starts the cancel_timelock expiry watcher (Invariant 1): Bob has already
// funded TxLock at this point, so the relevant recovery from here on is
// cancel/refund, not a safe abort.
func (s *swapState) awaitBTCLockAndProceed(lockTxHash chainhash.Hash, lockScript []byte) error {
	if err := s.BTCWallet().WaitForConfirmations(s.ctx, lockTxHash, 1); err != nil {
		return fmt.Errorf("failed waiting for btc lock confirmation: %w", err)
	}

	s.Lock()
	s.stage = StageBTCLocked
	s.persistLocked()
	s.Unlock()

	s.startCancelWatcher(lockTxHash)

	return s.signAndSendCancelSignature()
}

// startCancelWatcher begins watching, on a background goroutine, for
// cancel_timelock relative blocks to pass since lockTxHash confirmed; it
// closes cancelExpired once they have. Safe to call more than once: only
// the first call starts the goroutine.
func (s *swapState) startCancelWatcher(lockTxHash chainhash.Hash) {
	s.watcherOnce.Do(func() {
		go func() {
			if err := s.BTCWallet().WaitForConfirmations(s.ctx, lockTxHash, s.offer.CancelTimelock); err == nil {
				close(s.cancelExpired)
			}
		}()
	})
}

// cancelExpiredNow reports whether T1 has already fired, without blocking.
func (s *swapState) cancelExpiredNow() bool {
	select {
	case <-s.cancelExpired:
		return true
	default:
		return false
	}
}

// signAndSendCancelSignature builds TxCancel, signs it, and sends the
// signature to Alice so either side can unilaterally broadcast it later.
func (s *swapState) signAndSendCancelSignature() error {
	s.Lock()

	fee := s.BTCWallet().TransactionFee(250)
	cancelTx, cancelWitnessScript, err := btc.BuildTxCancel(
		s.lockTxHash, 0, s.lockValue,
		s.aliceSecp256k1Pub.BTCECPublicKey(), s.keysAndProof.Secp256k1PublicKey.BTCECPublicKey(),
		int64(s.offer.CancelTimelock), int64(s.offer.PunishTimelock), fee,
	)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to build cancel transaction: %w", err)
	}

	sig, err := btc.SignWitness(s.keysAndProof.Secp256k1PrivateKey, cancelTx, 0, s.lockScript, int64(s.lockValue))
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to sign cancel transaction: %w", err)
	}

	s.cancelTx = cancelTx
	s.cancelTxHash = cancelTx.TxHash()
	s.cancelScript = cancelWitnessScript
	s.cancelValue = s.lockValue - fee
	s.bobCancelSig = sig
	s.Unlock()

	return s.Host().SendMessage(s.peer, &message.SendCancelSignature{
		Signature: hex.EncodeToString(sig),
	})
}

// handleSendCancelSignature records Alice's signature over TxCancel.
// Callers must hold s.Lock().
func (s *swapState) handleSendCancelSignature(msg *message.SendCancelSignature) error {
	sig, err := hex.DecodeString(msg.Signature)
	if err != nil {
		return fmt.Errorf("invalid cancel signature encoding: %w", err)
	}

	s.aliceCancelSig = sig
	return nil
}

// handleEncryptedSignatureMessage records Alice's adaptor-encrypted
// contribution to TxRefund, keyed to Bob's own secp256k1/Monero point. Bob
// can complete and broadcast TxRefund himself at any time after TxCancel
// confirms, using his own secret as the decryption key; this only happens
// if Alice never locks her Monero, or if Alice never redeems in time.
// Callers must hold s.Lock().
func (s *swapState) handleEncryptedSignatureMessage(msg *message.EncryptedSignatureMessage) error {
	if s.stage != StageBTCLocked {
		return fmt.Errorf("received EncryptedSignatureMessage in unexpected stage %s", s.stage)
	}

	sigBytes, err := hex.DecodeString(msg.EncryptedSig)
	if err != nil {
		return fmt.Errorf("invalid encrypted signature encoding: %w", err)
	}

	encSig, err := adaptor.DecodeEncryptedSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("failed to decode encrypted signature: %w", err)
	}

	fee := s.BTCWallet().TransactionFee(200)
	refundTx, err := btc.BuildTxRefund(s.cancelTxHash, s.cancelValue, s.bobBTCAddr, fee)
	if err != nil {
		return fmt.Errorf("failed to build refund transaction: %w", err)
	}

	hash, err := btc.WitnessSigHash(refundTx, 0, s.cancelScript, int64(s.cancelValue))
	if err != nil {
		return fmt.Errorf("failed to compute refund sighash: %w", err)
	}
	var hashArr [32]byte
	copy(hashArr[:], hash)

	if err := adaptor.EncVerify(
		s.aliceSecp256k1Pub.BTCECPublicKey(), s.keysAndProof.Secp256k1PublicKey.BTCECPublicKey(),
		hashArr, encSig,
	); err != nil {
		return fmt.Errorf("alice's encrypted signature failed verification: %w", err)
	}

	s.aliceRefundEncSig = encSig
	s.refundTx = refundTx

	log.Infof("swap %s: received and verified alice's refund signature", s.ID())
	return nil
}

// handleNotifyXMRLock records the joint address Alice reports, and
// estimates the restore height to scan from once a watch wallet is
// opened. Callers must hold s.Lock().
func (s *swapState) handleNotifyXMRLock(msg *message.NotifyXMRLock) error {
	if s.stage != StageBTCLocked {
		return fmt.Errorf("received NotifyXMRLock in unexpected stage %s", s.stage)
	}

	s.xmrLockAddress = mcrypto.Address(msg.Address)

	height, err := s.XMRClient().GetHeight()
	if err != nil {
		return fmt.Errorf("failed to fetch current monero chain height: %w", err)
	}
	// scan a small buffer of blocks before the current tip, since Alice's
	// transfer may have been submitted slightly before this message
	// arrives.
	const scanBuffer = 10
	if height > scanBuffer {
		height -= scanBuffer
	}
	s.xmrRestoreHeight = height
	s.persistLocked()

	return nil
}

// handleNotifyXMRLockProof opens a view-only wallet on the joint address
// and races Alice's transfer confirming against T1 expiry, then sends
// Bob's adaptor-encrypted contribution to TxRedeem. Callers must hold
// s.Lock().
func (s *swapState) handleNotifyXMRLockProof(msg *message.NotifyXMRLockProof) error {
	if s.stage != StageBTCLocked {
		return fmt.Errorf("received NotifyXMRLockProof in unexpected stage %s", s.stage)
	}

	jointViewKey := mcrypto.SumPrivateViewKeys(s.aliceViewKey, s.keysAndProof.PrivateKeyPair.ViewKey())

	go func() {
		if err := s.watchAndSendRedeemEncSig(jointViewKey); err != nil {
			log.Errorf("swap %s: failed to watch xmr lock and redeem: %s", s.ID(), err)
		}
	}()

	log.Infof("swap %s: watching for alice's xmr transfer, txHash=%s", s.ID(), msg.TxHash)
	return nil
}

// watchAndSendRedeemEncSig races Alice's Monero transfer confirming
// against T1 expiry, biased toward cancelling: if T1 has already fired by
// the time the watch wallet would start scanning, there is no point
// risking a transfer that confirms too late to safely redeem against, so
// Bob cancels immediately instead of launching the wallet scan at all.
func (s *swapState) watchAndSendRedeemEncSig(jointViewKey *mcrypto.PrivateViewKey) error {
	s.Lock()
	addr := s.xmrLockAddress
	restoreHeight := s.xmrRestoreHeight
	amount := s.offer.XMRAmount
	s.Unlock()

	if s.cancelExpiredNow() {
		return s.cancelPath()
	}

	if err := s.XMRClient().GenerateViewOnlyWalletFromKeys(
		jointViewKey, addr, watchWalletFile, "", restoreHeight,
	); err != nil {
		return fmt.Errorf("failed to open view-only wallet on joint address: %w", err)
	}

	transferSeen := make(chan error, 1)
	go func() {
		transferSeen <- s.XMRClient().WatchForTransfer(s.ctx, amount, 1)
	}()

	select {
	case <-s.cancelExpired:
		return s.cancelPath()
	case err := <-transferSeen:
		if err != nil {
			return fmt.Errorf("failed waiting for xmr transfer: %w", err)
		}
	case <-s.ctx.Done():
		return s.ctx.Err()
	}

	s.Lock()
	s.stage = StageXMRLocked
	s.persistLocked()
	s.Unlock()

	return s.buildAndSendRedeemEncSig()
}

// buildAndSendRedeemEncSig builds TxRedeem (spending TxLock's output
// directly to Alice's own address) and sends her Bob's adaptor-encrypted
// contribution to it, encrypted under Alice's own secp256k1/Monero point.
// Alice can complete it trivially with her own secret; publishing the
// completed TxRedeem is what lets Bob recover her Monero secret from chain.
func (s *swapState) buildAndSendRedeemEncSig() error {
	s.Lock()

	fee := s.BTCWallet().TransactionFee(200)
	redeemTx, err := btc.BuildTxRedeem(s.lockTxHash, s.lockValue, s.aliceBTCAddr, fee)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to build redeem transaction: %w", err)
	}

	hash, err := btc.WitnessSigHash(redeemTx, 0, s.lockScript, int64(s.lockValue))
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to compute redeem sighash: %w", err)
	}
	var hashArr [32]byte
	copy(hashArr[:], hash)

	encSig, err := adaptor.EncSign(
		s.keysAndProof.Secp256k1PrivateKey.BTCECPrivateKey(),
		s.aliceSecp256k1Pub.BTCECPublicKey(),
		hashArr,
	)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to encrypt-sign redeem transaction: %w", err)
	}

	s.redeemTx = redeemTx
	s.bobRedeemEncSig = encSig
	s.stage = StageEncSigSent
	s.persistLocked()
	s.Unlock()

	return s.Host().SendMessage(s.peer, &message.EncryptedSignatureMessage{
		EncryptedSig: hex.EncodeToString(encSig.Encode()),
	})
}

// handleNotifyBTCRedeemed is Bob's reward path: Alice has published her
// completed TxRedeem. He extracts her completed signature from its
// witness, recovers her Monero spend key share from the gap between it and
// his stored encrypted contribution, and sweeps the jointly-held Monero
// output to himself. Callers must hold s.Lock().
func (s *swapState) handleNotifyBTCRedeemed(msg *message.NotifyBTCRedeemed) error {
	if s.bobRedeemEncSig == nil {
		return fmt.Errorf("received NotifyBTCRedeemed before a redeem signature was ever sent")
	}

	if s.stage.IsTerminal() {
		return nil
	}

	redeemTxHash, err := chainhash.NewHashFromStr(msg.TxHash)
	if err != nil {
		return fmt.Errorf("invalid redeem tx hash: %w", err)
	}

	tx, err := s.BTCWallet().GetRawTransaction(*redeemTxHash)
	if err != nil {
		return fmt.Errorf("failed to fetch redeem transaction: %w", err)
	}

	if len(tx.TxIn) == 0 || len(tx.TxIn[0].Witness) < 3 {
		return fmt.Errorf("redeem transaction has an unexpected witness shape")
	}

	// MultisigWitness lays out [dummy, aliceSig, bobSig, script]; Alice
	// completed our encrypted contribution into the second signature slot.
	bobSigBytes := tx.TxIn[0].Witness[2]
	fullSig, err := ecdsa.ParseDERSignature(bobSigBytes[:len(bobSigBytes)-1])
	if err != nil {
		return fmt.Errorf("failed to parse completed redeem signature: %w", err)
	}

	aliceSecret, err := adaptor.Recover(s.bobRedeemEncSig, fullSig)
	if err != nil {
		return fmt.Errorf("failed to recover alice's secret: %w", err)
	}

	aliceSpendKey, err := pcommon.SpendKeyFromAdaptorSecret(aliceSecret)
	if err != nil {
		return fmt.Errorf("recovered secret is not a valid spend key: %w", err)
	}

	kp := pcommon.GetClaimKeypair(
		aliceSpendKey,
		s.keysAndProof.PrivateKeyPair.SpendKey(),
		s.aliceViewKey,
		s.keysAndProof.PrivateKeyPair.ViewKey(),
	)

	sweepTo, err := s.XMRClient().GetAddress(0)
	if err != nil {
		return fmt.Errorf("failed to get a sweep destination address: %w", err)
	}

	if err := pcommon.ClaimMonero(
		s.Env(), s.ID(), s.XMRClient(), s.xmrRestoreHeight, kp, mcrypto.Address(sweepTo.Address),
	); err != nil {
		return fmt.Errorf("failed to claim monero: %w", err)
	}

	s.stage = StageBTCRedeemed
	s.info.Status = types.Success
	s.persistLocked()
	if err := s.SwapManager().CompleteOngoingSwap(s.info); err != nil {
		log.Warnf("swap %s: failed to mark swap complete: %s", s.ID(), err)
	}

	log.Infof("swap %s: recovered alice's monero spend key share and claimed the joint output", s.ID())
	s.cancel()
	close(s.done)
	return nil
}

// cancelPath broadcasts the already-signed TxCancel and then, once it
// confirms, takes the refund path if Alice ever sent her encrypted refund
// signature. Without that signature it returns an error right after the
// broadcast (Alice unilaterally punishing is the only other outcome once
// TxCancel lands, and that requires no action from Bob). Idempotent: calling it more than once, or after the swap has
// already concluded another way, is a no-op.
func (s *swapState) cancelPath() error {
	s.Lock()
	if s.stage.IsTerminal() || s.stage == StageBTCCancelled {
		s.Unlock()
		return nil
	}

	cancelTx := s.cancelTx
	if cancelTx == nil {
		s.Unlock()
		return fmt.Errorf("cannot cancel: no cancel transaction was ever built")
	}
	witness := btc.MultisigWitness(s.lockScript, s.aliceCancelSig, s.bobCancelSig)

	s.stage = StageBTCCancelled
	s.persistLocked()
	hasRefundSig := s.aliceRefundEncSig != nil
	s.Unlock()

	cancelTx.TxIn[0].Witness = witness
	if _, err := s.BTCWallet().Broadcast(cancelTx); err != nil {
		log.Warnf("swap %s: failed to broadcast cancel transaction (already published?): %s", s.ID(), err)
	} else {
		log.Infof("swap %s: broadcast cancel transaction", s.ID())
	}

	if !hasRefundSig {
		return fmt.Errorf("cannot refund: no refund signature received from alice")
	}

	if err := s.BTCWallet().WaitForConfirmations(s.ctx, s.cancelTxHash, 1); err != nil {
		return fmt.Errorf("failed waiting for cancel tx confirmation: %w", err)
	}

	return s.refund()
}

// refund completes and broadcasts TxRefund using Alice's stored encrypted
// contribution, decrypted with Bob's own secret. This is Bob's fallback if
// Alice never completes the swap: her refund contribution was sent as soon
// as TxCancel's signatures were exchanged, so Bob can take this path any
// time after TxCancel confirms, without needing Alice to still be online.
func (s *swapState) refund() error {
	s.Lock()
	if s.stage.IsTerminal() {
		s.Unlock()
		return nil
	}

	if s.aliceRefundEncSig == nil {
		s.Unlock()
		return fmt.Errorf("cannot refund: no refund signature received from alice")
	}
	refundTx := s.refundTx

	adaptorSecret := new(big.Int).SetBytes(s.keysAndProof.Secp256k1PrivateKey.Bytes())
	aliceSig := adaptor.Decrypt(s.aliceRefundEncSig, adaptorSecret)
	aliceSigBytes := append(aliceSig.Serialize(), byte(txscript.SigHashAll))

	bobSigBytes, err := btc.SignWitness(s.keysAndProof.Secp256k1PrivateKey, refundTx, 0, s.cancelScript, int64(s.cancelValue))
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to sign refund transaction: %w", err)
	}

	refundTx.TxIn[0].Witness = btc.CancelRedeemWitness(s.cancelScript, aliceSigBytes, bobSigBytes)
	s.Unlock()

	txHash, err := s.BTCWallet().Broadcast(refundTx)
	if err != nil {
		return fmt.Errorf("failed to broadcast refund transaction: %w", err)
	}

	s.Lock()
	s.stage = StageBTCRefunded
	s.info.Status = types.Refunded
	s.persistLocked()
	s.Unlock()

	if err := s.SwapManager().CompleteOngoingSwap(s.info); err != nil {
		log.Warnf("swap %s: failed to mark swap complete: %s", s.ID(), err)
	}

	if err := s.Host().SendMessage(s.peer, &message.NotifyBTCRefunded{TxHash: txHash.String()}); err != nil {
		log.Warnf("swap %s: failed to notify alice of refund: %s", s.ID(), err)
	}

	log.Infof("swap %s: refunded bitcoin, txHash=%s", s.ID(), txHash)
	s.cancel()
	close(s.done)
	return nil
}

// abort exits the swap before any funds have moved, the only stage where
// this is a safe no-op for both sides.
func (s *swapState) abort() error {
	s.Lock()
	defer s.Unlock()

	if s.stage != StageStarted && s.stage != StageKeysExchanged {
		return fmt.Errorf("cannot safely abort swap in stage %s", s.stage)
	}

	s.stage = StageSafelyAborted
	s.info.Status = types.Aborted
	s.persistLocked()
	if err := s.SwapManager().CompleteOngoingSwap(s.info); err != nil {
		log.Warnf("swap %s: failed to mark swap aborted: %s", s.ID(), err)
	}

	s.cancel()
	close(s.done)
	return nil
}
