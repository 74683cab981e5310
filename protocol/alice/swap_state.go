package alice

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

var log = logging.Logger("alice")

// swapState drives a single swap from Alice's side: she holds Monero and
// wants Bitcoin. Grounded on noot-atomic-swap/protocol/bob/swap_state.go's
// field/method shape and mewmix-atomic-swap/protocol/xmrmaker/swap_state.go's
// backend.Backend embedding (xmrmaker plays this same XMR-holder role in
// the teacher lineage's ETH pairing).
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

	// Bob's keys for this session, learned from his SendKeysMessage and
	// checked against his DLEq proof before any funds move
	bobSecp256k1Pub *secp256k1.PublicKey
	bobSpendPub     [32]byte
	bobViewKey      *mcrypto.PrivateViewKey
	bobBTCAddr      btcutil.Address

	// our own Bitcoin redemption address
	aliceBTCAddr btcutil.Address

	lockScript []byte
	lockTxHash chainhash.Hash
	lockValue  common.BitcoinAmount

	cancelScript     []byte
	cancelTx         *wire.MsgTx
	cancelTxHash     chainhash.Hash
	cancelValue      common.BitcoinAmount
	aliceCancelSig   []byte
	bobCancelSig     []byte
	refundEncSigSent bool

	xmrLockAddress   mcrypto.Address
	xmrRestoreHeight uint64

	// encSigCh carries Bob's EncryptedSignatureMessage to the goroutine
	// racing it against cancelExpired once Alice's Monero lock proof has
	// been sent. Buffered so handleEncryptedSignatureMessage never blocks
	// on it while holding s.Lock().
	encSigCh chan *message.EncryptedSignatureMessage

	// cancelExpired is closed once cancel_timelock relative blocks have
	// passed since lockTxHash confirmed. watcherOnce guards starting the
	// single background goroutine that watches for it.
	cancelExpired chan struct{}
	watcherOnce   sync.Once

	bobRedeemEncSig *adaptor.EncryptedSignature

	refundTx          *wire.MsgTx
	aliceRefundEncSig *adaptor.EncryptedSignature

	done chan struct{}
}

// newSwapState constructs a swapState for a swap Alice has agreed to, and
// registers it with the backend's swap manager.
func newSwapState(b backend.Backend, offer *types.Offer, p peer.ID) (*swapState, error) {
	aliceBTCAddr, err := b.BTCWallet().NewAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get a redemption address: %w", err)
	}

	info := &pswap.Info{
		SwapID:         offer.ID,
		Role:           types.RoleAlice,
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
		aliceBTCAddr:  aliceBTCAddr,
		encSigCh:      make(chan *message.EncryptedSignatureMessage, 1),
		cancelExpired: make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// ID returns the swap's unique ID.
func (s *swapState) ID() types.ID { return s.info.SwapID }

// Done returns a channel closed once the swap reaches a terminal stage.
func (s *swapState) Done() <-chan struct{} { return s.done }

// snapshotData is the JSON record persisted into info.StateData by
// persistLocked after every stage transition: the crash-safe, role-specific
// half of Invariant 5 ("persists state after each successful transition").
// It captures enough to report and resume bookkeeping around a swap that
// survives a restart, not the in-memory session keys: keysAndProof never
// leaves the process, so a restarted daemon can report a swap's last known
// stage but cannot rejoin its cryptographic session mid-flight.
type snapshotData struct {
	Stage          string
	LockTxHash     string
	CancelTxHash   string
	XMRLockAddress string
	RestoreHeight  uint64
}

// persistLocked snapshots the swap's current stage and writes it via
// SwapManager().WriteSwapToDB, the call every stage transition makes so a
// crash never silently loses progress. Callers must hold s.Lock().
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

// sendKeysMessage generates Alice's session key material and returns the
// message advertising it to Bob.
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
		BitcoinAddress:     s.aliceBTCAddr.String(),
	}, nil
}

// HandleMessage implements net.Handler. It is invoked for every message
// received on this swap's stream, and dispatches on message type the way
// noot-atomic-swap/protocol/bob's swapState does via its own HandleMessage.
func (s *swapState) HandleMessage(_ peer.ID, msg message.Message) error {
	s.Lock()
	defer s.Unlock()

	switch m := msg.(type) {
	case *message.SendKeysMessage:
		return s.handleSendKeysMessage(m)
	case *message.NotifyBTCLock:
		return s.handleNotifyBTCLock(m)
	case *message.SendCancelSignature:
		return s.handleSendCancelSignature(m)
	case *message.EncryptedSignatureMessage:
		return s.handleEncryptedSignatureMessage(m)
	case *message.NotifyBTCRefunded:
		return s.handleNotifyBTCRefunded(m)
	default:
		return fmt.Errorf("unexpected message type in stage %s: %T", s.stage, msg)
	}
}

// handleSendKeysMessage verifies Bob's DLEq proof and records his session
// keys. Callers must hold s.Lock().
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
		return fmt.Errorf("failed to verify bob's keys: %w", err)
	}

	viewKeyBytes, err := hex.DecodeString(msg.PrivateViewKey)
	if err != nil || len(viewKeyBytes) != 32 {
		return fmt.Errorf("invalid private view key encoding")
	}
	viewKey, err := mcrypto.NewPrivateViewKeyFromBytes(viewKeyBytes)
	if err != nil {
		return fmt.Errorf("invalid private view key: %w", err)
	}

	bobAddr, err := btcutil.DecodeAddress(msg.BitcoinAddress, s.netParams)
	if err != nil {
		return fmt.Errorf("invalid bitcoin address: %w", err)
	}

	s.bobSecp256k1Pub = secpPub
	s.bobSpendPub = spendPub
	s.bobViewKey = viewKey
	s.bobBTCAddr = bobAddr
	s.stage = StageKeysExchanged
	s.persistLocked()

	log.Infof("swap %s: verified bob's keys, awaiting his bitcoin lock", s.ID())
	return nil
}

// handleNotifyBTCLock is called once Bob tells us he's broadcast TxLock.
// Waiting for confirmations and everything that follows happens off the
// message-handling goroutine so a slow confirmation wait never blocks
// delivery of other messages on this stream.
func (s *swapState) handleNotifyBTCLock(msg *message.NotifyBTCLock) error {
	if s.stage != StageKeysExchanged {
		return fmt.Errorf("received NotifyBTCLock in unexpected stage %s", s.stage)
	}

	lockTxHash, err := chainhash.NewHashFromStr(msg.TxHash)
	if err != nil {
		return fmt.Errorf("invalid lock tx hash: %w", err)
	}

	lockScript, err := btc.LockScript(s.bobSecp256k1Pub.BTCECPublicKey(), s.keysAndProof.Secp256k1PublicKey.BTCECPublicKey())
	if err != nil {
		return fmt.Errorf("failed to rebuild lock script: %w", err)
	}

	go func() {
		if err := s.awaitBTCLockAndProceed(*lockTxHash, lockScript); err != nil {
			log.Errorf("swap %s: failed to proceed past btc lock: %s", s.ID(), err)
		}
	}()

	return nil
}

// awaitBTCLockAndProceed waits for TxLock's first confirmation, bounded by
// LockConfirmTimeout: Bob stalling before broadcasting, or broadcasting a
// transaction that never confirms, must not strand Alice indefinitely
// before she has committed anything of her own. On timeout she safely
// aborts instead of treating it as a step failure (Scenario 4).
func (s *swapState) awaitBTCLockAndProceed(lockTxHash chainhash.Hash, lockScript []byte) error {
	waitCtx := s.ctx
	if timeout := s.LockConfirmTimeout(); timeout > 0 {
		var waitCancel context.CancelFunc
		waitCtx, waitCancel = context.WithTimeout(s.ctx, timeout)
		defer waitCancel()
	}

	if err := s.BTCWallet().WaitForConfirmations(waitCtx, lockTxHash, 1); err != nil {
		if waitCtx.Err() == context.DeadlineExceeded {
			log.Warnf("swap %s: btc lock did not confirm within %s, aborting safely", s.ID(), s.LockConfirmTimeout())
			return s.abort()
		}
		return fmt.Errorf("failed waiting for btc lock confirmation: %w", err)
	}

	s.Lock()
	s.lockTxHash = lockTxHash
	s.lockScript = lockScript
	s.lockValue = s.offer.BTCAmount
	s.stage = StageBTCLocked
	s.persistLocked()
	s.Unlock()

	s.startCancelWatcher(lockTxHash)

	return s.signAndSendCancelSignature()
}

// startCancelWatcher begins watching, on a background goroutine, for
// cancel_timelock relative blocks to pass since lockTxHash confirmed; it
// closes cancelExpired once they have. Safe to call more than once: only
// the first call starts the goroutine. This is what lets every later
// suspension point race an incoming message against T1 expiry (Invariant
// 1) by select-ing on cancelExpired alongside whatever it's otherwise
// waiting on, reusing btc.Wallet's existing WaitForConfirmations instead of
// a dedicated subscription type.
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

// signAndSendCancelSignature builds the deterministic TxCancel both
// parties can independently compute once TxLock's txid is known, signs
// it, and sends the signature to Bob so either side can unilaterally
// broadcast TxCancel later.
func (s *swapState) signAndSendCancelSignature() error {
	s.Lock()

	fee := s.BTCWallet().TransactionFee(250)
	cancelTx, cancelWitnessScript, err := btc.BuildTxCancel(
		s.lockTxHash, 0, s.lockValue,
		s.keysAndProof.Secp256k1PublicKey.BTCECPublicKey(), s.bobSecp256k1Pub.BTCECPublicKey(),
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
	s.aliceCancelSig = sig
	s.Unlock()

	return s.Host().SendMessage(s.peer, &message.SendCancelSignature{
		Signature: hex.EncodeToString(sig),
	})
}

// handleSendCancelSignature records Bob's signature over TxCancel. Once
// both signatures are in hand, Alice commits to the refund path (she only
// ever produces her encrypted refund signature once) and proceeds to
// locking her Monero, unless T1 has already expired, in which case she
// takes the cancel path instead of ever sending it. Callers must hold
// s.Lock().
func (s *swapState) handleSendCancelSignature(msg *message.SendCancelSignature) error {
	sig, err := hex.DecodeString(msg.Signature)
	if err != nil {
		return fmt.Errorf("invalid cancel signature encoding: %w", err)
	}

	s.bobCancelSig = sig

	if s.aliceCancelSig == nil || s.refundEncSigSent {
		return nil
	}
	s.refundEncSigSent = true

	go func() {
		if s.cancelExpiredNow() {
			if err := s.cancelPath(); err != nil {
				log.Errorf("swap %s: failed to run cancel path: %s", s.ID(), err)
			}
			return
		}

		if err := s.buildAndSendRefundEncSig(); err != nil {
			log.Errorf("swap %s: failed to send refund encrypted signature: %s", s.ID(), err)
			return
		}

		if err := s.lockXMR(); err != nil {
			log.Errorf("swap %s: failed to lock xmr: %s", s.ID(), err)
		}
	}()

	return nil
}

// buildAndSendRefundEncSig builds TxRefund (spending TxCancel's output
// back to Bob) and sends Bob Alice's adaptor-encrypted contribution to it,
// encrypted under Bob's own secp256k1/Monero point. Bob can complete it
// trivially with his own secret at any time after TxCancel confirms;
// publishing the completed TxRefund is what later lets Alice recover his
// Monero spend key share.
func (s *swapState) buildAndSendRefundEncSig() error {
	s.Lock()

	fee := s.BTCWallet().TransactionFee(200)
	refundTx, err := btc.BuildTxRefund(s.cancelTxHash, s.cancelValue, s.bobBTCAddr, fee)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to build refund transaction: %w", err)
	}

	hash, err := btc.WitnessSigHash(refundTx, 0, s.cancelScript, int64(s.cancelValue))
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to compute refund sighash: %w", err)
	}
	var hashArr [32]byte
	copy(hashArr[:], hash)

	encSig, err := adaptor.EncSign(
		s.keysAndProof.Secp256k1PrivateKey.BTCECPrivateKey(),
		s.bobSecp256k1Pub.BTCECPublicKey(),
		hashArr,
	)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to encrypt-sign refund transaction: %w", err)
	}

	s.refundTx = refundTx
	s.aliceRefundEncSig = encSig
	s.Unlock()

	return s.Host().SendMessage(s.peer, &message.EncryptedSignatureMessage{
		EncryptedSig: hex.EncodeToString(encSig.Encode()),
	})
}

// lockXMR transfers Alice's XMR into the joint spend/view address shared
// with Bob, tells him where to watch, refreshes her wallet and sends him
// the transfer's hash. It does not wait for the transfer to confirm before
// sending that proof. If T1 has already expired by the time we're about to commit
// Alice's own Monero, she takes the cancel path instead: Bob's BTC is
// already locked and Alice has already sent her refund signature, so he
// can recover it independently via TxCancel/TxRefund regardless.
func (s *swapState) lockXMR() error {
	if s.cancelExpiredNow() {
		return s.cancelPath()
	}

	s.Lock()
	aliceSpendPub := s.keysAndProof.PrivateKeyPair.SpendKey().Public()
	jointSpendPub, err := mcrypto.SumPublicSpendKeys(aliceSpendPub, s.bobSpendPub)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to sum spend keys: %w", err)
	}

	jointViewKey := mcrypto.SumPrivateViewKeys(s.bobViewKey, s.keysAndProof.PrivateKeyPair.ViewKey())
	jointViewPub := jointViewKey.Public()
	addr := mcrypto.AddressFromPublicKeys(jointSpendPub, jointViewPub, s.Env())
	amount := s.offer.XMRAmount
	s.xmrLockAddress = addr
	s.Unlock()

	restoreHeight, err := s.XMRClient().GetHeight()
	if err != nil {
		return fmt.Errorf("failed to fetch current monero chain height: %w", err)
	}

	txResp, err := s.XMRClient().Transfer(addr, 0, amount)
	if err != nil {
		return fmt.Errorf("failed to transfer xmr to joint address: %w", err)
	}

	log.Infof("swap %s: locked xmr, txHash=%s fee=%d", s.ID(), txResp.TxHash, txResp.Fee)

	s.Lock()
	s.xmrRestoreHeight = restoreHeight
	s.stage = StageXMRLockSent
	s.persistLocked()
	s.Unlock()

	if err := s.Host().SendMessage(s.peer, &message.NotifyXMRLock{Address: string(addr)}); err != nil {
		return fmt.Errorf("failed to notify bob of xmr lock: %w", err)
	}

	if err := s.XMRClient().Refresh(); err != nil {
		return fmt.Errorf("failed to refresh after xmr lock: %w", err)
	}

	if err := s.Host().SendMessage(s.peer, &message.NotifyXMRLockProof{TxHash: txResp.TxHash}); err != nil {
		return fmt.Errorf("failed to send xmr lock proof: %w", err)
	}

	s.Lock()
	s.stage = StageXMRLocked
	s.persistLocked()
	s.Unlock()

	log.Infof("swap %s: xmr locked and proof sent, awaiting bob's redeem signature", s.ID())

	return s.awaitEncSigOrCancel()
}

// awaitEncSigOrCancel races Bob's EncryptedSignatureMessage against T1
// expiry, biased toward cancelling: once Alice has sent her Monero there is
// nothing further to protect by waiting, so if T1 has already fired by the
// time she reaches this point she cancels immediately rather than risking
// a redeem signature that arrives after she can no longer safely use it.
func (s *swapState) awaitEncSigOrCancel() error {
	if s.cancelExpiredNow() {
		return s.cancelPath()
	}

	select {
	case <-s.cancelExpired:
		return s.cancelPath()
	case msg := <-s.encSigCh:
		return s.processEncSig(msg)
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// handleEncryptedSignatureMessage hands Bob's adaptor-encrypted redeem
// contribution to awaitEncSigOrCancel's race instead of processing it
// inline, so a message arriving exactly as T1 expires can't jump the queue
// ahead of the cancel branch. Callers must hold s.Lock().
func (s *swapState) handleEncryptedSignatureMessage(msg *message.EncryptedSignatureMessage) error {
	if s.stage != StageXMRLocked {
		return fmt.Errorf("received EncryptedSignatureMessage in unexpected stage %s", s.stage)
	}

	select {
	case s.encSigCh <- msg:
	default:
	}

	return nil
}

// processEncSig verifies Bob's adaptor-encrypted contribution to TxRedeem
// and immediately redeems.
func (s *swapState) processEncSig(msg *message.EncryptedSignatureMessage) error {
	sigBytes, err := hex.DecodeString(msg.EncryptedSig)
	if err != nil {
		return fmt.Errorf("invalid encrypted signature encoding: %w", err)
	}

	encSig, err := adaptor.DecodeEncryptedSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("failed to decode encrypted signature: %w", err)
	}

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

	if err := adaptor.EncVerify(
		s.bobSecp256k1Pub.BTCECPublicKey(), s.keysAndProof.Secp256k1PublicKey.BTCECPublicKey(),
		hashArr, encSig,
	); err != nil {
		s.Unlock()
		return fmt.Errorf("bob's encrypted signature failed verification: %w", err)
	}

	s.bobRedeemEncSig = encSig
	s.stage = StageEncSigReceived
	s.persistLocked()
	s.Unlock()

	return s.redeem(redeemTx)
}

// redeem decrypts Bob's signature over TxRedeem using our own secp256k1
// private key (the very adaptor secret the signature was encrypted
// under), combines it with our own plain signature, and broadcasts
// TxRedeem. Publishing it is what lets Bob later recover Alice's Monero
// spend key share from the chain.
func (s *swapState) redeem(redeemTx *wire.MsgTx) error {
	s.Lock()
	adaptorSecret := new(big.Int).SetBytes(s.keysAndProof.Secp256k1PrivateKey.Bytes())
	bobRedeemEncSig := s.bobRedeemEncSig
	lockScript := s.lockScript
	lockValue := s.lockValue
	s.Unlock()

	bobSig := adaptor.Decrypt(bobRedeemEncSig, adaptorSecret)
	bobSigBytes := append(bobSig.Serialize(), byte(txscript.SigHashAll))

	aliceSigBytes, err := btc.SignWitness(s.keysAndProof.Secp256k1PrivateKey, redeemTx, 0, lockScript, int64(lockValue))
	if err != nil {
		return fmt.Errorf("failed to sign redeem transaction: %w", err)
	}

	redeemTx.TxIn[0].Witness = btc.MultisigWitness(lockScript, aliceSigBytes, bobSigBytes)

	txHash, err := s.BTCWallet().Broadcast(redeemTx)
	if err != nil {
		return fmt.Errorf("failed to broadcast redeem transaction: %w", err)
	}

	s.Lock()
	s.stage = StageBTCRedeemed
	s.info.Status = types.Success
	s.persistLocked()
	s.Unlock()

	if err := s.SwapManager().CompleteOngoingSwap(s.info); err != nil {
		log.Warnf("swap %s: failed to mark swap complete: %s", s.ID(), err)
	}

	if err := s.Host().SendMessage(s.peer, &message.NotifyBTCRedeemed{TxHash: txHash.String()}); err != nil {
		log.Warnf("swap %s: failed to notify bob of redeem: %s", s.ID(), err)
	}

	log.Infof("swap %s: redeemed bitcoin, txHash=%s", s.ID(), txHash)
	s.cancel()
	close(s.done)
	return nil
}

// cancelPath broadcasts the already-signed TxCancel (built back in
// signAndSendCancelSignature) and then waits for either Bob's refund or
// the punish timelock, whichever comes first. Idempotent: calling it more
// than once, or after the swap has already concluded another way, is a
// no-op.
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
	s.Unlock()

	cancelTx.TxIn[0].Witness = witness
	if _, err := s.BTCWallet().Broadcast(cancelTx); err != nil {
		log.Warnf("swap %s: failed to broadcast cancel transaction (already published?): %s", s.ID(), err)
	} else {
		log.Infof("swap %s: broadcast cancel transaction, awaiting refund or punish timelock", s.ID())
	}

	return s.awaitPunishTimelock()
}

// awaitPunishTimelock waits for punish_timelock relative blocks to pass
// since TxCancel confirmed, then punishes, unless the swap has already
// concluded another way (most likely Bob's TxRefund arriving first via
// handleNotifyBTCRefunded, cancelling s.ctx having no bearing on that race
// since both are driven independently; IsTerminal is the actual guard).
func (s *swapState) awaitPunishTimelock() error {
	if err := s.BTCWallet().WaitForConfirmations(s.ctx, s.cancelTxHash, s.offer.PunishTimelock); err != nil {
		return nil
	}

	s.Lock()
	if s.stage.IsTerminal() {
		s.Unlock()
		return nil
	}
	s.Unlock()

	return s.punish()
}

// punish broadcasts TxPunish via CancelScript's OP_ELSE branch, which
// requires only Alice's signature: Bob never refunded within
// punish_timelock of TxCancel confirming, so Alice takes the Bitcoin
// outright.
func (s *swapState) punish() error {
	s.Lock()
	if s.stage.IsTerminal() {
		s.Unlock()
		return nil
	}

	fee := s.BTCWallet().TransactionFee(150)
	punishTx, err := btc.BuildTxPunish(s.cancelTxHash, s.cancelValue, s.aliceBTCAddr, int64(s.offer.PunishTimelock), fee)
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to build punish transaction: %w", err)
	}

	sig, err := btc.SignWitness(s.keysAndProof.Secp256k1PrivateKey, punishTx, 0, s.cancelScript, int64(s.cancelValue))
	if err != nil {
		s.Unlock()
		return fmt.Errorf("failed to sign punish transaction: %w", err)
	}
	punishTx.TxIn[0].Witness = btc.CancelPunishWitness(s.cancelScript, sig)
	s.Unlock()

	txHash, err := s.BTCWallet().Broadcast(punishTx)
	if err != nil {
		return fmt.Errorf("failed to broadcast punish transaction: %w", err)
	}

	s.Lock()
	s.stage = StageBTCPunished
	s.info.Status = types.Punished
	s.persistLocked()
	s.Unlock()

	if err := s.SwapManager().CompleteOngoingSwap(s.info); err != nil {
		log.Warnf("swap %s: failed to mark swap complete: %s", s.ID(), err)
	}

	log.Infof("swap %s: punished bob, txHash=%s", s.ID(), txHash)
	s.cancel()
	close(s.done)
	return nil
}

// handleNotifyBTCRefunded is Alice's recovery path after Bob publishes his
// completed TxRefund instead of sending an encrypted redeem signature: she
// extracts her own completed signature from the published transaction's
// witness, recovers Bob's Monero spend key share from the gap between it
// and her stored encrypted contribution, and sweeps the jointly-held
// Monero output to herself. Callers must hold s.Lock().
func (s *swapState) handleNotifyBTCRefunded(msg *message.NotifyBTCRefunded) error {
	if s.aliceRefundEncSig == nil {
		return fmt.Errorf("received NotifyBTCRefunded before a refund signature was ever sent")
	}

	if s.stage.IsTerminal() {
		return nil
	}

	refundTxHash, err := chainhash.NewHashFromStr(msg.TxHash)
	if err != nil {
		return fmt.Errorf("invalid refund tx hash: %w", err)
	}

	tx, err := s.BTCWallet().GetRawTransaction(*refundTxHash)
	if err != nil {
		return fmt.Errorf("failed to fetch refund transaction: %w", err)
	}

	if len(tx.TxIn) == 0 || len(tx.TxIn[0].Witness) < 2 {
		return fmt.Errorf("refund transaction has an unexpected witness shape")
	}

	// CancelRedeemWitness lays out [dummy, aliceSig, bobSig, selector,
	// script]; Bob completed our encrypted contribution into the first
	// signature slot.
	aliceSigBytes := tx.TxIn[0].Witness[1]
	fullSig, err := ecdsa.ParseDERSignature(aliceSigBytes[:len(aliceSigBytes)-1])
	if err != nil {
		return fmt.Errorf("failed to parse completed refund signature: %w", err)
	}

	bobSecret, err := adaptor.Recover(s.aliceRefundEncSig, fullSig)
	if err != nil {
		return fmt.Errorf("failed to recover bob's secret: %w", err)
	}

	bobSpendKey, err := pcommon.SpendKeyFromAdaptorSecret(bobSecret)
	if err != nil {
		return fmt.Errorf("recovered secret is not a valid spend key: %w", err)
	}

	kp := pcommon.GetClaimKeypair(
		bobSpendKey,
		s.keysAndProof.PrivateKeyPair.SpendKey(),
		s.bobViewKey,
		s.keysAndProof.PrivateKeyPair.ViewKey(),
	)

	sweepTo, err := s.XMRClient().GetAddress(0)
	if err != nil {
		return fmt.Errorf("failed to get a sweep destination address: %w", err)
	}

	if err := pcommon.ClaimMonero(
		s.Env(), s.ID(), s.XMRClient(), s.xmrRestoreHeight, kp, mcrypto.Address(sweepTo.Address),
	); err != nil {
		return fmt.Errorf("failed to claim refunded monero: %w", err)
	}

	s.stage = StageBTCRefunded
	s.info.Status = types.Refunded
	s.persistLocked()
	if err := s.SwapManager().CompleteOngoingSwap(s.info); err != nil {
		log.Warnf("swap %s: failed to mark swap complete: %s", s.ID(), err)
	}

	log.Infof("swap %s: recovered bob's monero spend key share and reclaimed the joint output", s.ID())
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
