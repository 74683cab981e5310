// Package message defines the wire messages exchanged between Alice and
// Bob over the swap's peer connection. Adapted from
// noot-atomic-swap/net/message/message.go: same Type-byte-prefixed JSON
// envelope, same Message interface, generalized from the ETH/XMR message
// set to the key-exchange, lock-notification and adaptor-signature
// messages this swap's state machines need.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type represents the type of a network message.
type Type byte

const (
	SendKeysType Type = iota
	NotifyBTCLockType
	NotifyXMRLockType
	NotifyXMRLockProofType
	EncryptedSignatureType
	NotifyReadyType
	NotifyBTCRedeemedType
	NotifyBTCRefundedType
	SendCancelSignatureType
	NilType
)

// String ...
func (t Type) String() string {
	switch t {
	case SendKeysType:
		return "SendKeysMessage"
	case NotifyBTCLockType:
		return "NotifyBTCLock"
	case NotifyXMRLockType:
		return "NotifyXMRLock"
	case NotifyXMRLockProofType:
		return "NotifyXMRLockProof"
	case EncryptedSignatureType:
		return "EncryptedSignature"
	case NotifyReadyType:
		return "NotifyReady"
	case NotifyBTCRedeemedType:
		return "NotifyBTCRedeemed"
	case NotifyBTCRefundedType:
		return "NotifyBTCRefunded"
	case SendCancelSignatureType:
		return "SendCancelSignature"
	default:
		return "unknown"
	}
}

// Message must be implemented by all network messages.
type Message interface {
	String() string
	Encode() ([]byte, error)
	Type() Type
}

// DecodeMessage decodes the given bytes into a Message.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, errors.New("invalid message bytes")
	}

	switch Type(b[0]) {
	case SendKeysType:
		var m *SendKeysMessage
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case NotifyBTCLockType:
		var m *NotifyBTCLock
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case NotifyXMRLockType:
		var m *NotifyXMRLock
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case NotifyXMRLockProofType:
		var m *NotifyXMRLockProof
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case EncryptedSignatureType:
		var m *EncryptedSignatureMessage
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case NotifyReadyType:
		var m *NotifyReady
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case NotifyBTCRedeemedType:
		var m *NotifyBTCRedeemed
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case NotifyBTCRefundedType:
		var m *NotifyBTCRefunded
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case SendCancelSignatureType:
		var m *SendCancelSignature
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.New("invalid message type")
	}
}

// SendKeysMessage is exchanged by both parties at the start of the swap:
// it carries each party's public spend key share, the DLEq proof tying it
// to their Bitcoin signing key, and their *private* view key share in the
// clear. Unlike the spend key, a view key alone grants no spend authority,
// so sharing it openly is how the two parties assemble the joint wallet's
// full private view key (the sum of both shares) without either one ever
// learning the other's spend secret.
type SendKeysMessage struct {
	SwapID             string
	PublicSpendKey     string
	PrivateViewKey     string
	DLEqProof          string
	Secp256k1PublicKey string
	BitcoinAddress     string
}

// String ...
func (m *SendKeysMessage) String() string {
	return fmt.Sprintf(
		"SendKeysMessage SwapID=%s PublicSpendKey=%s DLEqProof=%s Secp256k1PublicKey=%s BitcoinAddress=%s", //nolint:lll
		m.SwapID, m.PublicSpendKey, m.DLEqProof, m.Secp256k1PublicKey, m.BitcoinAddress,
	)
}

// Encode ...
func (m *SendKeysMessage) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(SendKeysType)}, b...), nil
}

// Type ...
func (m *SendKeysMessage) Type() Type { return SendKeysType }

// NotifyBTCLock is sent by Bob to Alice after broadcasting TxLock.
type NotifyBTCLock struct {
	TxHash string
}

// String ...
func (m *NotifyBTCLock) String() string {
	return fmt.Sprintf("NotifyBTCLock TxHash=%s", m.TxHash)
}

// Encode ...
func (m *NotifyBTCLock) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(NotifyBTCLockType)}, b...), nil
}

// Type ...
func (m *NotifyBTCLock) Type() Type { return NotifyBTCLockType }

// NotifyXMRLock is sent by Alice to Bob after sending the XMR lock
// transfer.
type NotifyXMRLock struct {
	Address string
}

// String ...
func (m *NotifyXMRLock) String() string {
	return fmt.Sprintf("NotifyXMRLock Address=%s", m.Address)
}

// Encode ...
func (m *NotifyXMRLock) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(NotifyXMRLockType)}, b...), nil
}

// Type ...
func (m *NotifyXMRLock) Type() Type { return NotifyXMRLockType }

// NotifyXMRLockProof carries the hash of Alice's lock transfer. Alice sends
// it right after submitting the transfer, without waiting for
// confirmations, and leaves TxKey empty; Bob confirms the funds through his
// own view-only wallet watch.
type NotifyXMRLockProof struct {
	TxHash string
	TxKey  string
}

// String ...
func (m *NotifyXMRLockProof) String() string {
	return fmt.Sprintf("NotifyXMRLockProof TxHash=%s", m.TxHash)
}

// Encode ...
func (m *NotifyXMRLockProof) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(NotifyXMRLockProofType)}, b...), nil
}

// Type ...
func (m *NotifyXMRLockProof) Type() Type { return NotifyXMRLockProofType }

// EncryptedSignatureMessage carries Bob's adaptor-encrypted signature over
// TxRedeem, encrypted under Alice's Monero spend key share point. Alice
// decrypts it with her own Monero secret, combines it with her own
// signature, and broadcasts TxRedeem to claim her Bitcoin; publishing it
// reveals her Monero secret to Bob in the process.
type EncryptedSignatureMessage struct {
	EncryptedSig string
}

// String ...
func (m *EncryptedSignatureMessage) String() string {
	return "EncryptedSignatureMessage"
}

// Encode ...
func (m *EncryptedSignatureMessage) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(EncryptedSignatureType)}, b...), nil
}

// Type ...
func (m *EncryptedSignatureMessage) Type() Type { return EncryptedSignatureType }

// NotifyReady is sent by Bob to Alice once he has received and validated
// her encrypted signature, meaning he is ready to redeem at any time.
type NotifyReady struct{}

// String ...
func (m *NotifyReady) String() string { return "NotifyReady" }

// Encode ...
func (m *NotifyReady) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(NotifyReadyType)}, b...), nil
}

// Type ...
func (m *NotifyReady) Type() Type { return NotifyReadyType }

// NotifyBTCRedeemed is sent by Alice to Bob after publishing her completed
// TxRedeem, so Bob can stop watching the chain and instead go recover his
// Monero secret from the notified transaction directly.
type NotifyBTCRedeemed struct {
	TxHash string
}

// String ...
func (m *NotifyBTCRedeemed) String() string {
	return fmt.Sprintf("NotifyBTCRedeemed TxHash=%s", m.TxHash)
}

// Encode ...
func (m *NotifyBTCRedeemed) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(NotifyBTCRedeemedType)}, b...), nil
}

// Type ...
func (m *NotifyBTCRedeemed) Type() Type { return NotifyBTCRedeemedType }

// NotifyBTCRefunded is sent by Bob to Alice after publishing his completed
// TxRefund, so Alice can immediately extract his Monero spend key share
// from the refund witness instead of waiting to discover it independently.
type NotifyBTCRefunded struct {
	TxHash string
}

// String ...
func (m *NotifyBTCRefunded) String() string {
	return fmt.Sprintf("NotifyBTCRefunded TxHash=%s", m.TxHash)
}

// Encode ...
func (m *NotifyBTCRefunded) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(NotifyBTCRefundedType)}, b...), nil
}

// Type ...
func (m *NotifyBTCRefunded) Type() Type { return NotifyBTCRefundedType }

// SendCancelSignature carries the sender's signature over TxCancel,
// spending TxLock's 2-of-2 output. Both parties compute the same TxCancel
// deterministically once TxLock confirms and exchange their signature for
// it up front, so that either one can unilaterally assemble and broadcast
// TxCancel later without needing the counterparty to still be online.
type SendCancelSignature struct {
	Signature string
}

// String ...
func (m *SendCancelSignature) String() string { return "SendCancelSignature" }

// Encode ...
func (m *SendCancelSignature) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(SendCancelSignatureType)}, b...), nil
}

// Type ...
func (m *SendCancelSignature) Type() Type { return SendCancelSignatureType }
