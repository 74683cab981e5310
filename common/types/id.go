// Package types holds the identifiers and status enums shared between the
// protocol state machines, the checkpointer, and the network layer.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID is the opaque, 128-bit swap identifier. It is generated once per swap
// and never reused; it never collides with and is never re-derived from any
// on-chain transaction hash (those are 32 bytes on both Bitcoin and Monero,
// this is 16).
type ID [16]byte

// EmptyID is the zero-value ID, indicating "no swap".
var EmptyID = ID{}

// NewID generates a new random swap ID.
func NewID() ID {
	var id ID
	copy(id[:], uuid.New()[:])
	return id
}

// IsZero returns true if the ID is unset.
func (id ID) IsZero() bool {
	return id == EmptyID
}

// String returns the hex-encoded ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON ...
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON ...
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := IDFromHex(s)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}

// IDFromHex decodes a hex-encoded string into an ID.
func IDFromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, err
	}

	if len(b) != len(ID{}) {
		return ID{}, fmt.Errorf("invalid swap id length: got %d bytes, want %d", len(b), len(ID{}))
	}

	var id ID
	copy(id[:], b)
	return id, nil
}
