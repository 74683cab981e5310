package common

import (
	"fmt"
	"math"
)

var numMoneroUnits = math.Pow(10, 12)

const satoshisPerBTC = 1e8

// MoneroAmount represents some amount of piconero (the smallest denomination of monero)
type MoneroAmount uint64

// MoneroToPiconero converts an amount of standard monero and returns it as a MoneroAmount
func MoneroToPiconero(amount float64) MoneroAmount {
	return MoneroAmount(amount * numMoneroUnits)
}

// Uint64 ...
func (a MoneroAmount) Uint64() uint64 {
	return uint64(a)
}

// AsMonero converts the piconero MoneroAmount into standard units
func (a MoneroAmount) AsMonero() float64 {
	return float64(a) / numMoneroUnits
}

// BitcoinAmount represents some amount of bitcoin in satoshis, the smallest denomination.
type BitcoinAmount int64

// BTCToSatoshi converts a standard BTC amount into a BitcoinAmount.
func BTCToSatoshi(amount float64) BitcoinAmount {
	return BitcoinAmount(amount * satoshisPerBTC)
}

// Uint64 returns the amount as a uint64 of satoshis.
func (a BitcoinAmount) Uint64() uint64 {
	return uint64(a)
}

// AsBTC converts the satoshi BitcoinAmount into standard units.
func (a BitcoinAmount) AsBTC() float64 {
	return float64(a) / satoshisPerBTC
}

// String ...
func (a BitcoinAmount) String() string {
	return fmt.Sprintf("%.8f", a.AsBTC())
}

// ExchangeRate represents the price of 1 XMR in BTC, supplied by the rate
// oracle. It is used only for logging/quote decisions, never for consensus.
type ExchangeRate float64

// ToBTC converts an amount of XMR into the equivalent amount of BTC at this
// exchange rate.
func (r ExchangeRate) ToBTC(xmr float64) float64 {
	return xmr * float64(r)
}

// Reverse reverses a byte slice and returns a new slice with the result.
// Used to flip endianness between the dleq/adaptor scalar encoding and
// whatever a witness or wire encoding expects.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

