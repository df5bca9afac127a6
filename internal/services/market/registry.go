// Package market is the venue dispatch table: it maps each edge's venue to
// one of the curve families and turns amounts into quotes, applying
// Token-2022 transfer fees on both legs.
package market

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/arb-engine/internal/amm/cpmm"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/domain"
)

const MARKET_REGISTRY = "market.Registry"

// Venue is one registered market-making protocol.
type Venue struct {
	ID        domain.VenueID   `json:"id"`
	Name      string           `json:"name"`
	Family    domain.CurveKind `json:"family"`
	ProgramID solana.PublicKey `json:"programId"`
	// CPFees only applies to constant-product venues.
	CPFees cpmm.Fees `json:"cpFees"`
}

// EdgeQuote is a quote as seen by the trader's token accounts.
type EdgeQuote struct {
	// AmountIn leaves the trader, transfer fee included.
	AmountIn uint64 `json:"amountIn"`
	// AmountOut reaches the trader, transfer fee removed.
	AmountOut      uint64 `json:"amountOut"`
	VenueFee       uint64 `json:"venueFee"`
	TransferFeeIn  uint64 `json:"transferFeeIn"`
	TransferFeeOut uint64 `json:"transferFeeOut"`
	PartialFill    bool   `json:"partialFill,omitempty"`
}

type Registry struct {
	container.BaseDIInstance

	mu         sync.RWMutex
	venues     map[domain.VenueID]*Venue
	validators []MarketValidator
	swapper    solana.PublicKey
}

func NewRegistry(venues ...Venue) (*Registry, error) {
	r := &Registry{}
	r.init()
	for _, v := range venues {
		if err := r.Register(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) init() {
	r.venues = make(map[domain.VenueID]*Venue)
	r.validators = defaultValidators()
}

func (r *Registry) ID() string {
	return MARKET_REGISTRY
}

func (r *Registry) Configure(c container.IContainer) error {
	venuesConf := c.GetConfig(config.VENUES_CONFIG_KEY).(*config.VenuesConfig)
	rpcConf := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)

	r.init()
	r.swapper = rpcConf.Payer
	for _, v := range venuesConf.Venues {
		if err := r.Register(Venue{ID: v.ID, Name: v.Name, Family: v.Family, ProgramID: v.ProgramID, CPFees: v.Fees}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Start() error {
	return nil
}

func (r *Registry) Stop() error {
	return nil
}

// SetSwapper sets the wallet concentrated pools check against their
// whitelisted vault.
func (r *Registry) SetSwapper(swapper solana.PublicKey) {
	r.mu.Lock()
	r.swapper = swapper
	r.mu.Unlock()
}

func (r *Registry) Register(v Venue) error {
	if v.Family == domain.CurveConstantProduct {
		if err := v.CPFees.Validate(); err != nil {
			return fmt.Errorf("venue %s: %w", v.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[v.ID] = &v
	return nil
}

func (r *Registry) Venue(id domain.VenueID) (Venue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[id]
	if !ok {
		return Venue{}, false
	}
	return *v, true
}

// Venues lists registered venues ordered by name.
func (r *Registry) Venues() []Venue {
	r.mu.RLock()
	out := make([]Venue, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, *v)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) dispatcher(clock domain.Clock) *dispatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	venues := make(map[domain.VenueID]*Venue, len(r.venues))
	for id, v := range r.venues {
		venues[id] = v
	}
	return &dispatcher{venues: venues, clock: clock, swapper: r.swapper}
}

// QuoteExactIn quotes supplying amountIn of edge.Left.Mint.
func (r *Registry) QuoteExactIn(edge *domain.Edge, amountIn uint64, clock domain.Clock) (EdgeQuote, error) {
	return r.dispatcher(clock).exactIn(edge, amountIn)
}

// QuoteExactOut quotes what must be supplied to receive amountOut of
// edge.Right.Mint.
func (r *Registry) QuoteExactOut(edge *domain.Edge, amountOut uint64, clock domain.Clock) (EdgeQuote, error) {
	return r.dispatcher(clock).exactOut(edge, amountOut)
}

// Mints returns the market's canonical (base, quote) pair.
func (r *Registry) Mints(edge *domain.Edge) (domain.TokenID, domain.TokenID) {
	if edge.Market != nil {
		return edge.Market.Left.Mint, edge.Market.Right.Mint
	}
	if edge.Forward() {
		return edge.Left.Mint, edge.Right.Mint
	}
	return edge.Right.Mint, edge.Left.Mint
}

// Bind freezes the venue table and clock for one scan.
func (r *Registry) Bind(clock domain.Clock) *ScanQuoter {
	return &ScanQuoter{d: r.dispatcher(clock)}
}

// IsMarketReady reports whether a market can be turned into edges.
func (r *Registry) IsMarketReady(m *domain.Market) bool {
	if m == nil || !m.Active {
		return false
	}
	r.mu.RLock()
	v, ok := r.venues[m.Venue]
	r.mu.RUnlock()
	if !ok || v.Family != m.State.Kind {
		return false
	}
	for _, validator := range r.validators {
		if validator.SupportsCurve(m.State.Kind) {
			return validator.IsReady(m)
		}
	}
	return false
}

// ScanQuoter is the clock-bound quote function a search consumes.
type ScanQuoter struct {
	d *dispatcher
}

func (q *ScanQuoter) Quote(edge *domain.Edge, amountIn uint64) (uint64, error) {
	res, err := q.d.exactIn(edge, amountIn)
	if err != nil {
		return 0, err
	}
	return res.AmountOut, nil
}

func (q *ScanQuoter) Clock() domain.Clock {
	return q.d.clock
}

func unknownVenue(id domain.VenueID) error {
	return fmt.Errorf("%w: %s", common.ErrUnknownVenue, id)
}
