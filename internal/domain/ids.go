package domain

import (
	"github.com/gagliardetto/solana-go"
)

// TokenID identifies a mint. Only equality and hashing are meaningful.
type TokenID = solana.PublicKey

// VenueID identifies a market-making protocol.
type VenueID = solana.PublicKey

// Clock is the chain reading every quote is pure with respect to.
type Clock struct {
	Slot          uint64 `json:"slot"`
	UnixTimestamp int64  `json:"unixTimestamp"`
	Epoch         uint64 `json:"epoch"`
}
