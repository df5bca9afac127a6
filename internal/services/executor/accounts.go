package executor

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

type ataKey struct {
	wallet       solana.PublicKey
	mint         solana.PublicKey
	tokenProgram solana.PublicKey
}

var (
	ataCache   = make(map[ataKey]solana.PublicKey)
	ataCacheMu sync.RWMutex
)

// TokenProgramOf returns the pool's token program, the legacy program when
// the snapshot left it unset.
func TokenProgramOf(p domain.Pool) solana.PublicKey {
	if p.TokenProgram.IsZero() {
		return common.TokenProgramID
	}
	return p.TokenProgram
}

// AssociatedTokenAccount derives the wallet's associated account for mint
// under tokenProgram.
func AssociatedTokenAccount(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	key := ataKey{wallet: wallet, mint: mint, tokenProgram: tokenProgram}

	ataCacheMu.RLock()
	if cached, ok := ataCache[key]; ok {
		ataCacheMu.RUnlock()
		return cached, nil
	}
	ataCacheMu.RUnlock()

	ata, _, err := solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			tokenProgram[:],
			mint[:],
		},
		common.ATAProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, err
	}

	ataCacheMu.Lock()
	ataCache[key] = ata
	ataCacheMu.Unlock()

	return ata, nil
}

// StepAccounts are the accounts a swap invoker needs for one step.
type StepAccounts struct {
	Payer              solana.PublicKey `json:"payer"`
	Market             solana.PublicKey `json:"market"`
	InputMint          solana.PublicKey `json:"inputMint"`
	OutputMint         solana.PublicKey `json:"outputMint"`
	InputTokenProgram  solana.PublicKey `json:"inputTokenProgram"`
	OutputTokenProgram solana.PublicKey `json:"outputTokenProgram"`
	UserInput          solana.PublicKey `json:"userInput"`
	UserOutput         solana.PublicKey `json:"userOutput"`
	InputVault         solana.PublicKey `json:"inputVault"`
	OutputVault        solana.PublicKey `json:"outputVault"`
}

func accountsFor(payer solana.PublicKey, e *domain.Edge) (StepAccounts, error) {
	acc := StepAccounts{
		Payer:              payer,
		InputMint:          e.Left.Mint,
		OutputMint:         e.Right.Mint,
		InputTokenProgram:  TokenProgramOf(e.Left),
		OutputTokenProgram: TokenProgramOf(e.Right),
		InputVault:         e.Left.Vault,
		OutputVault:        e.Right.Vault,
	}
	if e.Market != nil {
		acc.Market = e.Market.Address
	}

	var err error
	if acc.UserInput, err = AssociatedTokenAccount(payer, acc.InputMint, acc.InputTokenProgram); err != nil {
		return StepAccounts{}, err
	}
	if acc.UserOutput, err = AssociatedTokenAccount(payer, acc.OutputMint, acc.OutputTokenProgram); err != nil {
		return StepAccounts{}, err
	}
	return acc, nil
}
