package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/amm/cpmm"
	appcommon "github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

// VenueEntry is one [[venue]] table of the venue file.
type VenueEntry struct {
	// ID defaults to the program id.
	ID        string     `toml:"id"`
	Name      string     `toml:"name"`
	Family    string     `toml:"family"`
	ProgramID string     `toml:"program_id"`
	Fees      *cpmm.Fees `toml:"fees"`
}

type venueFile struct {
	Venues []VenueEntry `toml:"venue"`
}

// Venue is a decoded, validated venue entry.
type Venue struct {
	ID        domain.VenueID
	Name      string
	Family    domain.CurveKind
	ProgramID solana.PublicKey
	Fees      cpmm.Fees
}

type VenuesConfig struct {
	Path   string
	Venues []Venue
}

func (c *VenuesConfig) Key() string {
	return VENUES_CONFIG_KEY
}

func (c *VenuesConfig) Load() error {
	c.Path = common.GetEnvOrDefault("VENUES_FILE", "./config/venues.toml")
	if _, err := os.Stat(c.Path); errors.Is(err, os.ErrNotExist) {
		c.Venues = DefaultVenues()
		return c.Validate()
	}
	var file venueFile
	if _, err := toml.DecodeFile(c.Path, &file); err != nil {
		return fmt.Errorf("decode %s: %w", c.Path, err)
	}
	venues, err := ParseVenues(file.Venues)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	c.Venues = venues
	return c.Validate()
}

func (c *VenuesConfig) Validate() error {
	if len(c.Venues) == 0 {
		return errors.New("no venues configured")
	}
	seen := make(map[domain.VenueID]struct{}, len(c.Venues))
	for _, v := range c.Venues {
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("duplicate venue %s", v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	return nil
}

// ParseVenues decodes raw entries. Constant-product entries without a
// fees table get cpmm.DefaultFees.
func ParseVenues(entries []VenueEntry) ([]Venue, error) {
	venues := make([]Venue, 0, len(entries))
	for i, e := range entries {
		program, err := solana.PublicKeyFromBase58(e.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("venue %d program_id: %w", i, err)
		}
		id := program
		if e.ID != "" {
			if id, err = solana.PublicKeyFromBase58(e.ID); err != nil {
				return nil, fmt.Errorf("venue %d id: %w", i, err)
			}
		}
		family, err := domain.ParseCurveKind(e.Family)
		if err != nil {
			return nil, fmt.Errorf("venue %d: %w", i, err)
		}
		fees := cpmm.DefaultFees()
		if e.Fees != nil {
			fees = *e.Fees
		}
		if family == domain.CurveConstantProduct {
			if err := fees.Validate(); err != nil {
				return nil, fmt.Errorf("venue %d fees: %w", i, err)
			}
		}
		name := e.Name
		if name == "" {
			name = program.Short(4)
		}
		venues = append(venues, Venue{ID: id, Name: name, Family: family, ProgramID: program, Fees: fees})
	}
	return venues, nil
}

// DefaultVenues covers the three curve families with their mainnet programs.
func DefaultVenues() []Venue {
	return []Venue{
		{ID: appcommon.RaydiumAMMProgramID, Name: "raydium-amm", Family: domain.CurveConstantProduct, ProgramID: appcommon.RaydiumAMMProgramID, Fees: cpmm.DefaultFees()},
		{ID: appcommon.MeteoraDAMMv2ID, Name: "meteora-damm-v2", Family: domain.CurveConcentrated, ProgramID: appcommon.MeteoraDAMMv2ID},
		{ID: appcommon.MeteoraDLMMID, Name: "meteora-dlmm", Family: domain.CurveBinArray, ProgramID: appcommon.MeteoraDLMMID},
	}
}
