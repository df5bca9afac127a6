package http

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/http/httputil"
	"github.com/hxuan190/arb-engine/internal/services/arbitrage"
	"github.com/hxuan190/arb-engine/internal/services/scanner"
)

// ArbitrageChecker is the part of the scanner the API exposes.
type ArbitrageChecker interface {
	Check(ctx context.Context, req scanner.Request) (*scanner.Result, error)
	Recent(limit int) []*domain.Opportunity
}

type ArbitrageHandler struct {
	checker ArbitrageChecker
}

func NewArbitrageHandler(checker ArbitrageChecker) *ArbitrageHandler {
	return &ArbitrageHandler{checker: checker}
}

func (h *ArbitrageHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.check)
	pub.GET("/recent", h.recent)
}

func (h *ArbitrageHandler) Root() string {
	return "/arbitrage"
}

// ArbitrageRequest holds the optional overrides of an on-demand search
type ArbitrageRequest struct {
	// Mint the cycle must start and end in. Empty searches every token.
	StartToken string `form:"startToken" example:"So11111111111111111111111111111111111111112"`

	// Input amount in base units of the start token
	Amount string `form:"amount" example:"1000000000"`

	// Minimum profit in base units. May be negative.
	MinProfit string `form:"minProfit" example:"40000"`

	// Search strategy
	Strategy string `form:"strategy" enums:"auto,cross,triangular,both" example:"auto"`
}

// HopInfo is one swap of a cycle
type HopInfo struct {
	Venue      string  `json:"venue" example:"cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"`
	Direction  string  `json:"direction" enums:"left_to_right,right_to_left" example:"left_to_right"`
	InputMint  string  `json:"inputMint" example:"So11111111111111111111111111111111111111112"`
	OutputMint string  `json:"outputMint" example:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`
	PriceHint  float64 `json:"priceHint" example:"152.4"`
}

// ArbitrageResponse describes the best cycle of one search
type ArbitrageResponse struct {
	// Whether a cycle cleared the minimum profit
	Found bool `json:"found" example:"true"`

	StartToken  string    `json:"startToken,omitempty" example:"So11111111111111111111111111111111111111112"`
	StartAmount string    `json:"startAmount,omitempty" example:"1000000000"`
	FinalAmount string    `json:"finalAmount,omitempty" example:"1000512000"`
	Profit      string    `json:"profit,omitempty" example:"512000"`
	Hops        []HopInfo `json:"hops,omitempty"`
	TokenPath   []string  `json:"tokenPath,omitempty"`

	// Strategy that actually ran
	Strategy string `json:"strategy" example:"cross"`
	Quotes   int    `json:"quotes" example:"48"`
	Edges    int    `json:"edges" example:"212"`

	Slot            uint64 `json:"slot" example:"312000000"`
	SnapshotVersion uint64 `json:"snapshotVersion" example:"1042"`
	Cached          bool   `json:"cached" example:"false"`
}

func parseArbitrageRequest(c *gin.Context) (scanner.Request, bool) {
	var raw ArbitrageRequest
	if err := c.ShouldBindQuery(&raw); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return scanner.Request{}, false
	}

	var req scanner.Request
	if raw.StartToken != "" {
		mint, err := solana.PublicKeyFromBase58(raw.StartToken)
		if err != nil {
			httputil.HandleBadRequest(c, "invalid startToken address")
			return req, false
		}
		req.StartToken = &mint
	}
	if raw.Amount != "" {
		amount, err := strconv.ParseUint(raw.Amount, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			httputil.HandleBadRequest(c, "invalid amount: exceeds 18446744073709551615, the largest balance a token account holds")
			return req, false
		}
		if err != nil || amount == 0 {
			httputil.HandleBadRequest(c, "invalid amount: must be a positive 64-bit integer")
			return req, false
		}
		req.StartAmount = amount
	}
	if raw.MinProfit != "" {
		minProfit, ok := new(big.Int).SetString(raw.MinProfit, 10)
		if !ok {
			httputil.HandleBadRequest(c, "invalid minProfit: must be an integer")
			return req, false
		}
		req.MinProfit = minProfit
	}
	strategy, err := arbitrage.ParseStrategy(raw.Strategy)
	if err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return req, false
	}
	req.Strategy = strategy
	return req, true
}

func buildArbitrageResponse(res *scanner.Result) ArbitrageResponse {
	resp := ArbitrageResponse{
		Strategy:        res.Stats.Strategy.String(),
		Quotes:          res.Stats.Quotes,
		Edges:           res.Stats.Edges,
		Slot:            res.Clock.Slot,
		SnapshotVersion: res.SnapshotVersion,
		Cached:          res.Cached,
	}
	path := res.Path
	if path == nil {
		return resp
	}

	resp.Found = true
	resp.StartToken = path.StartToken().String()
	resp.StartAmount = strconv.FormatUint(path.StartAmount, 10)
	resp.FinalAmount = strconv.FormatUint(path.FinalAmount, 10)
	resp.Profit = path.Profit.String()
	resp.Hops = make([]HopInfo, 0, len(path.Edges))
	for _, e := range path.Edges {
		resp.Hops = append(resp.Hops, HopInfo{
			Venue:      e.Venue.String(),
			Direction:  e.Direction.String(),
			InputMint:  e.Left.Mint.String(),
			OutputMint: e.Right.Mint.String(),
			PriceHint:  e.PriceHint,
		})
	}
	for _, mint := range path.Tokens() {
		resp.TokenPath = append(resp.TokenPath, mint.String())
	}
	return resp
}

// @Summary Search for an arbitrage cycle
// @Description Searches the current market snapshot for the most profitable two- or three-hop cycle.
// @Description Every quote of a search uses the same clock reading. Identical searches against the
// @Description same snapshot and slot are served from a short-lived cache.
// @Description
// @Description **Amount Format:** smallest token units of the start token.
// @Tags arbitrage
// @Produce json
// @Param startToken query string false "Start token mint (base58). Empty searches from every token"
// @Param amount query string false "Start amount in base units. Defaults to ARB_START_AMOUNT" example("1000000000")
// @Param minProfit query string false "Minimum profit in base units, may be negative. Defaults to ARB_MIN_PROFIT" example("40000")
// @Param strategy query string false "Search strategy" Enums(auto, cross, triangular, both)
// @Success 200 {object} ArbitrageResponse "Search result. found is false when no cycle clears the minimum"
// @Failure 400 {object} map[string]string "Invalid request parameters"
// @Failure 413 {object} map[string]string "Snapshot exceeds the edge limit"
// @Failure 422 {object} map[string]string "Snapshot holds a market of an unknown venue or with invalid state"
// @Failure 500 {object} map[string]string "Search aborted"
// @Router /api/v1/arbitrage [get]
func (h *ArbitrageHandler) check(c *gin.Context) {
	req, ok := parseArbitrageRequest(c)
	if !ok {
		return
	}

	res, err := h.checker.Check(c.Request.Context(), req)
	if err != nil {
		httputil.HandleError(c, fmt.Errorf("search failed: %w", err))
		return
	}
	httputil.HandleSuccess(c, buildArbitrageResponse(res))
}

// @Summary Recent opportunities
// @Description Lists the latest opportunities found by the background scanner, newest first.
// @Tags arbitrage
// @Produce json
// @Param limit query int false "Maximum number of entries (max 100)" default(20)
// @Success 200 {array} domain.Opportunity
// @Router /api/v1/arbitrage/recent [get]
func (h *ArbitrageHandler) recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	httputil.HandleSuccess(c, h.checker.Recent(limit))
}
