package persistence

import (
	"fmt"
	"math/big"
	"sort"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/clmm"
	"github.com/hxuan190/arb-engine/internal/amm/dlmm"
	"github.com/hxuan190/arb-engine/internal/amm/transferfee"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

// StoredMarket is the persisted and wire form of a market. The seed file,
// the bolt bucket and the markets API all use it.
type StoredMarket struct {
	Address         string      `json:"address"`
	Venue           string      `json:"venue"`
	Kind            string      `json:"kind"`
	Left            StoredPool  `json:"left"`
	Right           StoredPool  `json:"right"`
	Active          bool        `json:"active"`
	LastUpdatedSlot uint64      `json:"lastUpdatedSlot"`
	CL              *StoredCL   `json:"clState,omitempty"`
	Bins            *StoredBins `json:"binState,omitempty"`
	Removed         bool        `json:"removed,omitempty"`
}

type StoredPool struct {
	Mint         string              `json:"mint"`
	Amount       uint64              `json:"amount"`
	Vault        string              `json:"vault,omitempty"`
	TokenProgram string              `json:"tokenProgram,omitempty"`
	TransferFee  *transferfee.Config `json:"transferFee,omitempty"`
}

type StoredCL struct {
	SqrtPrice        string          `json:"sqrtPrice"` // u128 as decimal string
	SqrtMinPrice     string          `json:"sqrtMinPrice"`
	SqrtMaxPrice     string          `json:"sqrtMaxPrice"`
	Liquidity        string          `json:"liquidity"`
	Status           uint8           `json:"status"`
	ActivationType   uint8           `json:"activationType"`
	ActivationPoint  uint64          `json:"activationPoint"`
	WhitelistedVault string          `json:"whitelistedVault,omitempty"`
	CollectFeeMode   uint8           `json:"collectFeeMode"`
	BaseFee          clmm.BaseFee    `json:"baseFee"`
	DynamicFee       clmm.DynamicFee `json:"dynamicFee"`
	Version          uint8           `json:"version"`
}

type StoredBins struct {
	ActiveID        int32                   `json:"activeId"`
	BinStep         uint16                  `json:"binStep"`
	Status          uint8                   `json:"status"`
	ActivationType  uint8                   `json:"activationType"`
	ActivationPoint uint64                  `json:"activationPoint"`
	Parameters      dlmm.StaticParameters   `json:"parameters"`
	Variables       dlmm.VariableParameters `json:"variables"`
	Bitmap          [16]uint64              `json:"bitmap"`
	Extension       *dlmm.BitmapExtension   `json:"extension,omitempty"`
	BinArrays       []dlmm.BinArray         `json:"binArrays"`
}

func MarketToStored(m *domain.Market) (*StoredMarket, error) {
	stored := &StoredMarket{
		Address:         m.Address.String(),
		Venue:           m.Venue.String(),
		Kind:            m.State.Kind.String(),
		Left:            poolToStored(m.Left),
		Right:           poolToStored(m.Right),
		Active:          m.Active,
		LastUpdatedSlot: m.LastUpdatedSlot,
	}

	switch m.State.Kind {
	case domain.CurveConcentrated:
		if m.State.CL == nil {
			return nil, fmt.Errorf("%w: market %s has no concentrated state", common.ErrInvalidAccountData, m.Address)
		}
		cl, err := clToStored(m.State.CL)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", m.Address, err)
		}
		stored.CL = cl
	case domain.CurveBinArray:
		if m.State.Bins == nil {
			return nil, fmt.Errorf("%w: market %s has no bin state", common.ErrInvalidAccountData, m.Address)
		}
		stored.Bins = binsToStored(m.State.Bins)
	}
	return stored, nil
}

func StoredToMarket(stored *StoredMarket) (*domain.Market, error) {
	address, err := solana.PublicKeyFromBase58(stored.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	venue, err := solana.PublicKeyFromBase58(stored.Venue)
	if err != nil {
		return nil, fmt.Errorf("invalid venue: %w", err)
	}
	kind, err := domain.ParseCurveKind(stored.Kind)
	if err != nil {
		return nil, err
	}
	left, err := storedToPool(stored.Left)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := storedToPool(stored.Right)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	m := &domain.Market{
		Address:         address,
		Venue:           venue,
		Left:            left,
		Right:           right,
		State:           domain.MarketState{Kind: kind},
		Active:          stored.Active,
		LastUpdatedSlot: stored.LastUpdatedSlot,
	}

	switch kind {
	case domain.CurveConcentrated:
		if stored.CL == nil {
			return nil, fmt.Errorf("%w: missing clState", common.ErrInvalidAccountData)
		}
		if m.State.CL, err = storedToCL(stored.CL); err != nil {
			return nil, err
		}
	case domain.CurveBinArray:
		if stored.Bins == nil {
			return nil, fmt.Errorf("%w: missing binState", common.ErrInvalidAccountData)
		}
		m.State.Bins = storedToBins(stored.Bins)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func poolToStored(p domain.Pool) StoredPool {
	stored := StoredPool{
		Mint:        p.Mint.String(),
		Amount:      p.Amount,
		TransferFee: p.TransferFee,
	}
	if !p.Vault.IsZero() {
		stored.Vault = p.Vault.String()
	}
	if !p.TokenProgram.IsZero() {
		stored.TokenProgram = p.TokenProgram.String()
	}
	return stored
}

func storedToPool(stored StoredPool) (domain.Pool, error) {
	mint, err := solana.PublicKeyFromBase58(stored.Mint)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("invalid mint: %w", err)
	}
	p := domain.Pool{Mint: mint, Amount: stored.Amount, TransferFee: stored.TransferFee}
	if stored.Vault != "" {
		if p.Vault, err = solana.PublicKeyFromBase58(stored.Vault); err != nil {
			return domain.Pool{}, fmt.Errorf("invalid vault: %w", err)
		}
	}
	if stored.TokenProgram != "" {
		if p.TokenProgram, err = solana.PublicKeyFromBase58(stored.TokenProgram); err != nil {
			return domain.Pool{}, fmt.Errorf("invalid tokenProgram: %w", err)
		}
	}
	if p.TransferFee != nil {
		if err := p.TransferFee.Validate(); err != nil {
			return domain.Pool{}, err
		}
	}
	return p, nil
}

func clToStored(p *clmm.Pool) (*StoredCL, error) {
	stored := &StoredCL{
		Status:          uint8(p.Status),
		ActivationType:  uint8(p.ActivationType),
		ActivationPoint: p.ActivationPoint,
		CollectFeeMode:  uint8(p.CollectFeeMode),
		BaseFee:         p.BaseFee,
		DynamicFee:      p.DynamicFee,
		Version:         p.Version,
	}
	if !p.WhitelistedVault.IsZero() {
		stored.WhitelistedVault = p.WhitelistedVault.String()
	}

	var err error
	for _, f := range []struct {
		dst *string
		src *uint256.Int
	}{
		{&stored.SqrtPrice, p.SqrtPrice},
		{&stored.SqrtMinPrice, p.SqrtMinPrice},
		{&stored.SqrtMaxPrice, p.SqrtMaxPrice},
		{&stored.Liquidity, p.Liquidity},
	} {
		if *f.dst, err = u128String(f.src); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

func storedToCL(stored *StoredCL) (*clmm.Pool, error) {
	p := &clmm.Pool{
		Status:          clmm.Status(stored.Status),
		ActivationType:  clmm.ActivationType(stored.ActivationType),
		ActivationPoint: stored.ActivationPoint,
		CollectFeeMode:  clmm.CollectFeeMode(stored.CollectFeeMode),
		BaseFee:         stored.BaseFee,
		DynamicFee:      stored.DynamicFee,
		Version:         stored.Version,
	}
	var err error
	if stored.WhitelistedVault != "" {
		if p.WhitelistedVault, err = solana.PublicKeyFromBase58(stored.WhitelistedVault); err != nil {
			return nil, fmt.Errorf("invalid whitelistedVault: %w", err)
		}
	}
	for _, f := range []struct {
		dst **uint256.Int
		src string
	}{
		{&p.SqrtPrice, stored.SqrtPrice},
		{&p.SqrtMinPrice, stored.SqrtMinPrice},
		{&p.SqrtMaxPrice, stored.SqrtMaxPrice},
		{&p.Liquidity, stored.Liquidity},
	} {
		if *f.dst, err = parseU128(f.src); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func binsToStored(p *dlmm.Pool) *StoredBins {
	stored := &StoredBins{
		ActiveID:        p.ActiveID,
		BinStep:         p.BinStep,
		Status:          uint8(p.Status),
		ActivationType:  uint8(p.ActivationType),
		ActivationPoint: p.ActivationPoint,
		Parameters:      p.Parameters,
		Variables:       p.Variables,
		Bitmap:          p.Bitmap,
		Extension:       p.Extension,
		BinArrays:       make([]dlmm.BinArray, 0, len(p.BinArrays)),
	}
	for _, arr := range p.BinArrays {
		stored.BinArrays = append(stored.BinArrays, *arr)
	}
	sort.Slice(stored.BinArrays, func(i, j int) bool { return stored.BinArrays[i].Index < stored.BinArrays[j].Index })
	return stored
}

func storedToBins(stored *StoredBins) *dlmm.Pool {
	p := &dlmm.Pool{
		ActiveID:        stored.ActiveID,
		BinStep:         stored.BinStep,
		Status:          dlmm.Status(stored.Status),
		ActivationType:  dlmm.ActivationType(stored.ActivationType),
		ActivationPoint: stored.ActivationPoint,
		Parameters:      stored.Parameters,
		Variables:       stored.Variables,
		Bitmap:          stored.Bitmap,
		Extension:       stored.Extension,
		BinArrays:       make(map[int64]*dlmm.BinArray, len(stored.BinArrays)),
	}
	for i := range stored.BinArrays {
		arr := stored.BinArrays[i]
		p.BinArrays[arr.Index] = &arr
		// a fetched array is by definition one the bitmap knows about
		p.SetLiquidity(arr.Index, true)
	}
	return p
}

// u128String renders an on-chain u128 in decimal.
func u128String(v *uint256.Int) (string, error) {
	if v == nil {
		return "", nil
	}
	if v.BitLen() > 128 {
		return "", fmt.Errorf("%w: %s exceeds u128", common.ErrInvalidAccountData, v.Dec())
	}
	u := bin.Uint128{Lo: v[0], Hi: v[1]}
	return u.BigInt().String(), nil
}

func parseU128(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok || value.Sign() < 0 || value.BitLen() > 128 {
		return nil, fmt.Errorf("%w: %q is not a u128", common.ErrInvalidAccountData, s)
	}
	u := bigIntToUint128(value)
	return &uint256.Int{u.Lo, u.Hi, 0, 0}, nil
}

func bigIntToUint128(value *big.Int) bin.Uint128 {
	lo := new(big.Int).And(value, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(value, 64)
	return bin.Uint128{Lo: lo.Uint64(), Hi: hi.Uint64()}
}
