// Package mathutil holds the overflow-checked 256-bit helpers shared by the
// venue curves. Every helper reports ErrMathOverflow instead of wrapping.
package mathutil

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/common"
)

// Pre-computed constants (avoid allocation on every call)
var (
	Q64      = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	Q128     = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	BpsDenom = uint256.NewInt(10_000)
	MaxU128  = new(uint256.Int).Sub(Q128, uint256.NewInt(1))
)

var uint256Pool = sync.Pool{
	New: func() interface{} {
		return new(uint256.Int)
	},
}

// GetU256 gets a uint256.Int from the pool
func GetU256() *uint256.Int {
	return uint256Pool.Get().(*uint256.Int)
}

// PutU256 returns a uint256.Int to the pool
func PutU256(v *uint256.Int) {
	v.Clear()
	uint256Pool.Put(v)
}

// MulDiv returns floor(x*y/d) with a 512-bit intermediate.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, common.ErrMathOverflow
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, common.ErrMathOverflow
	}
	return z, nil
}

// MulDivCeil returns ceil(x*y/d).
func MulDivCeil(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	rem := GetU256()
	defer PutU256(rem)
	if !rem.MulMod(x, y, d).IsZero() {
		if _, overflow := z.AddOverflow(z, uint256.NewInt(1)); overflow {
			return nil, common.ErrMathOverflow
		}
	}
	return z, nil
}

// CeilDiv returns ceil(x/d).
func CeilDiv(x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, common.ErrMathOverflow
	}
	q, r := new(uint256.Int), GetU256()
	defer PutU256(r)
	q.DivMod(x, d, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// MulDivU64 is MulDiv on u64 operands with a u64 result.
func MulDivU64(x, y, d uint64) (uint64, error) {
	z, err := MulDiv(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if err != nil {
		return 0, err
	}
	return ToU64(z)
}

// MulDivCeilU64 is MulDivCeil on u64 operands with a u64 result.
func MulDivCeilU64(x, y, d uint64) (uint64, error) {
	z, err := MulDivCeil(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if err != nil {
		return 0, err
	}
	return ToU64(z)
}

// ToU64 narrows z, failing when it does not fit.
func ToU64(z *uint256.Int) (uint64, error) {
	if !z.IsUint64() {
		return 0, common.ErrMathOverflow
	}
	return z.Uint64(), nil
}

// FromBig converts a non-negative big.Int, failing on overflow.
func FromBig(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	if b.Sign() < 0 {
		return nil, common.ErrMathOverflow
	}
	z, overflow := uint256.FromBig(b)
	if overflow {
		return nil, common.ErrMathOverflow
	}
	return z, nil
}

// SignedDiff returns a-b as a signed big.Int. Two's-complement uint256
// subtraction is reinterpreted through Sign.
func SignedDiff(a, b uint64) *big.Int {
	d := new(uint256.Int).Sub(uint256.NewInt(a), uint256.NewInt(b))
	if d.Sign() >= 0 {
		return d.ToBig()
	}
	return new(big.Int).Neg(new(uint256.Int).Neg(d).ToBig())
}

// Float returns z as a float64 for price hints only.
func Float(z *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(z.ToBig()).Float64()
	return f
}

// Q64ToFloat converts a Q64.64 fixed-point value to float64.
func Q64ToFloat(z *uint256.Int) float64 {
	return Float(z) / 18446744073709551616.0
}
