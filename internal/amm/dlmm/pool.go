// Package dlmm implements the bin-array venue curve: liquidity discretised into
// constant-price bins grouped 70 to an array, traversed through a bitmap of
// non-empty arrays.
//
// Token X is the left (base) side. Swapping X for Y walks the active bin
// downwards; Y for X walks it upwards.
package dlmm

import (
	"fmt"
	"math"

	"github.com/hxuan190/arb-engine/internal/common"
)

const (
	MaxBinPerArray = 70
	BasisPointMax  = 10_000
	FeePrecision   = 1_000_000_000
	MaxFeeRate     = 100_000_000

	MinBinID int32 = -443_636
	MaxBinID int32 = 443_636

	// internal bitmap covers array indexes [-512, 511]
	bitmapHalf = 512
	// each extension word group covers 512 more indexes per side
	extensionGroups = 12

	MinBinArrayIndex int64 = -bitmapHalf - extensionGroups*bitmapHalf
	MaxBinArrayIndex int64 = bitmapHalf - 1 + extensionGroups*bitmapHalf

	variableFeeScaling = 100_000_000_000
)

type Status uint8

const (
	StatusEnabled Status = iota
	StatusDisabled
)

type ActivationType uint8

const (
	ActivationSlot ActivationType = iota
	ActivationTimestamp
)

// Bin holds the reserves priced at a single bin id.
type Bin struct {
	AmountX uint64 `json:"amountX"`
	AmountY uint64 `json:"amountY"`
}

// BinArray is a run of 70 consecutive bins starting at Index*70.
type BinArray struct {
	Index int64               `json:"index"`
	Bins  [MaxBinPerArray]Bin `json:"bins"`
}

// StaticParameters are the pool's fixed fee settings.
type StaticParameters struct {
	BaseFactor               uint16 `json:"baseFactor"`
	FilterPeriod             uint16 `json:"filterPeriod"`
	DecayPeriod              uint16 `json:"decayPeriod"`
	ReductionFactor          uint16 `json:"reductionFactor"`
	VariableFeeControl       uint32 `json:"variableFeeControl"`
	MaxVolatilityAccumulator uint32 `json:"maxVolatilityAccumulator"`
	BaseFeePowerFactor       uint8  `json:"baseFeePowerFactor"`
}

// VariableParameters is the volatility state carried between swaps.
type VariableParameters struct {
	VolatilityAccumulator uint32 `json:"volatilityAccumulator"`
	VolatilityReference   uint32 `json:"volatilityReference"`
	IndexReference        int32  `json:"indexReference"`
	LastUpdateTimestamp   int64  `json:"lastUpdateTimestamp"`
}

// BitmapExtension extends the internal bitmap beyond [-512, 511].
type BitmapExtension struct {
	Positive [extensionGroups][8]uint64 `json:"positive"`
	Negative [extensionGroups][8]uint64 `json:"negative"`
}

// Pool is a bin-array pool snapshot together with the bin arrays that were
// fetched for it.
type Pool struct {
	ActiveID        int32
	BinStep         uint16
	Status          Status
	ActivationType  ActivationType
	ActivationPoint uint64
	Parameters      StaticParameters
	Variables       VariableParameters
	Bitmap          [16]uint64
	Extension       *BitmapExtension
	BinArrays       map[int64]*BinArray
}

// SwapContext is the clock reading a quote is pure with respect to.
type SwapContext struct {
	Slot      uint64
	Timestamp int64
}

// Quote is the result of a single swap computation.
type Quote struct {
	AmountIn    uint64
	AmountOut   uint64
	Fee         uint64
	EndActiveID int32
	BinsCrossed int
	PartialFill bool
	ConsumedIn  uint64
}

// BinArrayIndex returns the array holding bin id.
func BinArrayIndex(id int32) int64 {
	idx := int64(id) / MaxBinPerArray
	if id < 0 && int64(id)%MaxBinPerArray != 0 {
		idx--
	}
	return idx
}

// BinArrayBounds returns the lowest and highest bin ids in array idx.
func BinArrayBounds(idx int64) (int32, int32) {
	lower := idx * MaxBinPerArray
	return int32(lower), int32(lower + MaxBinPerArray - 1)
}

// Clone returns a copy with its own extension and bin arrays.
func (p *Pool) Clone() *Pool {
	cp := *p
	if p.Extension != nil {
		ext := *p.Extension
		cp.Extension = &ext
	}
	if p.BinArrays != nil {
		cp.BinArrays = make(map[int64]*BinArray, len(p.BinArrays))
		for idx, arr := range p.BinArrays {
			if arr == nil {
				cp.BinArrays[idx] = nil
				continue
			}
			a := *arr
			cp.BinArrays[idx] = &a
		}
	}
	return &cp
}

// Validate checks the account invariants the curve relies on.
func (p *Pool) Validate() error {
	if p.BinStep == 0 || p.BinStep > BasisPointMax {
		return fmt.Errorf("%w: bin step %d", common.ErrInvalidAccountData, p.BinStep)
	}
	if p.ActiveID < MinBinID || p.ActiveID > MaxBinID {
		return fmt.Errorf("%w: active id %d out of range", common.ErrInvalidAccountData, p.ActiveID)
	}
	for idx, arr := range p.BinArrays {
		if arr == nil || arr.Index != idx {
			return fmt.Errorf("%w: bin array %d keyed as %d", common.ErrInvalidAccountData, arrIndex(arr), idx)
		}
	}
	return nil
}

func arrIndex(arr *BinArray) int64 {
	if arr == nil {
		return 0
	}
	return arr.Index
}

func (p *Pool) checkTradable(ctx SwapContext) error {
	if p.Status != StatusEnabled {
		return common.ErrPoolDisabled
	}
	point := ctx.Slot
	if p.ActivationType == ActivationTimestamp {
		point = 0
		if ctx.Timestamp > 0 {
			point = uint64(ctx.Timestamp)
		}
	}
	if point < p.ActivationPoint {
		return common.ErrPoolNotActivated
	}
	return nil
}

// PriceHint is the active-bin price, output per unit input.
func (p *Pool) PriceHint(swapForY bool) float64 {
	price := math.Pow(1+float64(p.BinStep)/BasisPointMax, float64(p.ActiveID))
	if swapForY {
		return price
	}
	if price == 0 {
		return 0
	}
	return 1 / price
}
