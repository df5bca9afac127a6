// Package common contains common constants and variables used across services
package common

import "github.com/gagliardetto/solana-go"

var (
	TokenProgramID  = solana.TokenProgramID
	Token2022ID     = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	ATAProgramID    = solana.SPLAssociatedTokenAccountProgramID
	SystemProgramID = solana.SystemProgramID

	// Venue programs known out of the box. The venue table can add more.
	RaydiumAMMProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	MeteoraDAMMv2ID     = solana.MustPublicKeyFromBase58("cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG")
	MeteoraDLMMID       = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")
)

const (
	// SlotsPerEpoch is the mainnet epoch length used when only a slot is known.
	SlotsPerEpoch uint64 = 432_000

	DefaultMinProfit   uint64 = 40_000
	DefaultMaxEdges           = 20_000
	DefaultSlippageBps uint16 = 50
)
