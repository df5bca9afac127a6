// Package transferfee models the Token-2022 transfer-fee extension: decoding it
// from mint account data and applying it to amounts moving in and out of a
// venue.
package transferfee

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
)

const (
	MaxFeeBasisPoints uint16 = 10_000

	baseMintLen          = 82
	accountTypeOffset    = 165
	accountTypeMint      = 1
	extensionTransferFee = 1
	transferFeeConfigLen = 108
)

// TransferFee is one epoch-scoped fee setting.
type TransferFee struct {
	Epoch                  uint64 `json:"epoch"`
	MaximumFee             uint64 `json:"maximumFee"`
	TransferFeeBasisPoints uint16 `json:"transferFeeBasisPoints"`
}

// Config mirrors the on-chain TransferFeeConfig extension.
type Config struct {
	TransferFeeConfigAuthority solana.PublicKey `json:"-"`
	WithdrawWithheldAuthority  solana.PublicKey `json:"-"`
	WithheldAmount             uint64           `json:"-"`
	OlderTransferFee           TransferFee      `json:"olderTransferFee"`
	NewerTransferFee           TransferFee      `json:"newerTransferFee"`
}

// ParseMintExtension extracts the transfer-fee config from raw mint account
// data. A plain SPL mint, or a Token-2022 mint without the extension, yields
// (nil, nil).
func ParseMintExtension(data []byte) (*Config, error) {
	if len(data) <= baseMintLen {
		return nil, nil
	}
	if len(data) <= accountTypeOffset {
		return nil, fmt.Errorf("%w: mint data length %d", common.ErrInvalidAccountData, len(data))
	}
	if data[accountTypeOffset] != accountTypeMint {
		return nil, fmt.Errorf("%w: account type %d is not a mint", common.ErrInvalidAccountData, data[accountTypeOffset])
	}

	offset := accountTypeOffset + 1
	for offset+4 <= len(data) {
		typ := bin.LE.Uint16(data[offset:])
		length := int(bin.LE.Uint16(data[offset+2:]))
		if typ == 0 {
			break
		}
		start := offset + 4
		end := start + length
		if end > len(data) {
			return nil, fmt.Errorf("%w: extension %d overruns account", common.ErrInvalidAccountData, typ)
		}
		if typ == extensionTransferFee {
			if length != transferFeeConfigLen {
				return nil, fmt.Errorf("%w: transfer fee extension length %d", common.ErrInvalidAccountData, length)
			}
			cfg := new(Config)
			if err := bin.NewBorshDecoder(data[start:end]).Decode(cfg); err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrInvalidAccountData, err)
			}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		offset = end
	}
	return nil, nil
}

func (c *Config) Validate() error {
	if c.OlderTransferFee.TransferFeeBasisPoints > MaxFeeBasisPoints ||
		c.NewerTransferFee.TransferFeeBasisPoints > MaxFeeBasisPoints {
		return fmt.Errorf("%w: transfer fee above 100%%", common.ErrInvalidAccountData)
	}
	return nil
}

// EpochFee returns the fee in force for epoch.
func (c *Config) EpochFee(epoch uint64) TransferFee {
	if epoch >= c.NewerTransferFee.Epoch {
		return c.NewerTransferFee
	}
	return c.OlderTransferFee
}

// Fee is the amount withheld when amount is transferred.
func (f TransferFee) Fee(amount uint64) (uint64, error) {
	if f.TransferFeeBasisPoints == 0 || amount == 0 {
		return 0, nil
	}
	raw, err := mathutil.MulDivCeilU64(amount, uint64(f.TransferFeeBasisPoints), uint64(MaxFeeBasisPoints))
	if err != nil {
		return 0, err
	}
	return min(raw, f.MaximumFee), nil
}

// PreFeeAmount returns the smallest transfer whose post-fee amount is at
// least postFee.
func (f TransferFee) PreFeeAmount(postFee uint64) (uint64, error) {
	switch {
	case f.TransferFeeBasisPoints == 0 || postFee == 0:
		return postFee, nil
	case f.TransferFeeBasisPoints == MaxFeeBasisPoints:
		if postFee > ^uint64(0)-f.MaximumFee {
			return 0, common.ErrMathOverflow
		}
		return postFee + f.MaximumFee, nil
	}
	raw, err := mathutil.MulDivCeilU64(postFee, uint64(MaxFeeBasisPoints), uint64(MaxFeeBasisPoints-f.TransferFeeBasisPoints))
	if err != nil {
		return 0, err
	}
	if raw-postFee >= f.MaximumFee {
		if postFee > ^uint64(0)-f.MaximumFee {
			return 0, common.ErrMathOverflow
		}
		return postFee + f.MaximumFee, nil
	}
	return raw, nil
}

// ExcludeFee returns what arrives when amount is sent. A nil config is a
// mint without the extension.
func (c *Config) ExcludeFee(epoch, amount uint64) (net uint64, fee uint64, err error) {
	if c == nil {
		return amount, 0, nil
	}
	fee, err = c.EpochFee(epoch).Fee(amount)
	if err != nil {
		return 0, 0, err
	}
	return amount - fee, fee, nil
}

// IncludeFee returns what must be sent so that amount arrives.
func (c *Config) IncludeFee(epoch, amount uint64) (gross uint64, fee uint64, err error) {
	if c == nil {
		return amount, 0, nil
	}
	gross, err = c.EpochFee(epoch).PreFeeAmount(amount)
	if err != nil {
		return 0, 0, err
	}
	return gross, gross - amount, nil
}
