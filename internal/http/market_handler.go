package http

import (
	"io"
	gohttp "net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/arb-engine/internal/adapters/persistence"
	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/http/httputil"
	"github.com/hxuan190/arb-engine/internal/services/snapshot"
)

const maxMarketBody = 32 << 20

// MarketStore is the part of the snapshot service the API exposes.
type MarketStore interface {
	Current() *snapshot.Snapshot
	Get(address solana.PublicKey) (*domain.Market, bool)
	Upsert(markets ...*domain.Market) (int, error)
	Remove(address solana.PublicKey) bool
}

type MarketHandler struct {
	store MarketStore
}

func NewMarketHandler(store MarketStore) *MarketHandler {
	return &MarketHandler{store: store}
}

func (h *MarketHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/stats", h.getStats)
	pub.GET("/list", h.listMarkets)
	pub.GET("/:address", h.getMarket)

	admin.POST("", h.upsertMarkets)
	admin.DELETE("/:address", h.removeMarket)
}

func (h *MarketHandler) Root() string {
	return "/markets"
}

// MarketStatsResponse summarises the current snapshot
type MarketStatsResponse struct {
	// Markets held, ready or not
	MarketCount int `json:"market_count" example:"1247"`

	// Markets that passed readiness checks and became edges
	ReadyCount int `json:"ready_count" example:"1180"`

	// Directed edges in the snapshot
	EdgeCount int `json:"edge_count" example:"2360"`

	// Snapshot version, bumped on every rebuild
	Version uint64 `json:"version" example:"1042"`
}

// @Summary Snapshot statistics
// @Tags markets
// @Produce json
// @Success 200 {object} MarketStatsResponse
// @Router /api/v1/markets/stats [get]
func (h *MarketHandler) getStats(c *gin.Context) {
	snap := h.store.Current()
	if snap == nil {
		httputil.HandleSuccess(c, MarketStatsResponse{})
		return
	}
	httputil.HandleSuccess(c, MarketStatsResponse{
		MarketCount: snap.Total,
		ReadyCount:  len(snap.Markets),
		EdgeCount:   len(snap.Edges),
		Version:     snap.Version,
	})
}

// MarketInfo contains basic information about a ready market
type MarketInfo struct {
	Address    string `json:"address" example:"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"`
	Venue      string `json:"venue" example:"cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"`
	Kind       string `json:"kind" enums:"constant_product,concentrated,bin_array" example:"constant_product"`
	TokenMintA string `json:"token_mint_a" example:"So11111111111111111111111111111111111111112"`
	TokenMintB string `json:"token_mint_b" example:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`
	Slot       uint64 `json:"slot" example:"312000000"`
}

// MarketListResponse contains a page of ready markets
type MarketListResponse struct {
	Markets []MarketInfo `json:"markets"`
	Total   int          `json:"total" example:"1180"`
	Page    int          `json:"page" example:"1"`
	Limit   int          `json:"limit" example:"100"`
	Pages   int          `json:"pages" example:"12"`
}

// @Summary List ready markets
// @Description Markets of the current snapshot, ordered by address.
// @Tags markets
// @Produce json
// @Param page query int false "Page number (1-indexed)" default(1)
// @Param limit query int false "Markets per page (max 500)" default(100)
// @Success 200 {object} MarketListResponse
// @Router /api/v1/markets/list [get]
func (h *MarketHandler) listMarkets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	var all []*domain.Market
	if snap := h.store.Current(); snap != nil {
		all = snap.Markets
	}
	total := len(all)
	pages := (total + limit - 1) / limit
	offset := min((page-1)*limit, total)
	end := min(offset+limit, total)

	markets := make([]MarketInfo, 0, end-offset)
	for _, m := range all[offset:end] {
		markets = append(markets, MarketInfo{
			Address:    m.Address.String(),
			Venue:      m.Venue.String(),
			Kind:       m.State.Kind.String(),
			TokenMintA: m.Left.Mint.String(),
			TokenMintB: m.Right.Mint.String(),
			Slot:       m.LastUpdatedSlot,
		})
	}

	httputil.HandleSuccess(c, MarketListResponse{
		Markets: markets,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
	})
}

// @Summary Get market state
// @Description Full stored state of one market, ready or not.
// @Tags markets
// @Produce json
// @Param address path string true "Market address (base58)"
// @Success 200 {object} persistence.StoredMarket
// @Failure 400 {object} map[string]string "Invalid address"
// @Failure 404 {object} map[string]string "Unknown market"
// @Router /api/v1/markets/{address} [get]
func (h *MarketHandler) getMarket(c *gin.Context) {
	address, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		httputil.HandleBadRequest(c, "invalid market address")
		return
	}
	m, ok := h.store.Get(address)
	if !ok {
		httputil.HandleNotFound(c, "market not found")
		return
	}
	stored, err := persistence.MarketToStored(m)
	if err != nil {
		httputil.HandleInternalError(c, err.Error())
		return
	}
	httputil.HandleSuccess(c, stored)
}

// MarketUpsertResponse reports how many submitted markets were applied
type MarketUpsertResponse struct {
	Submitted int `json:"submitted" example:"3"`
	Applied   int `json:"applied" example:"2"`
}

// @Summary Upsert markets
// @Description Stores a JSON array of markets in the seed-file format. Updates older than the stored
// @Description slot are ignored. The whole batch is rejected if any market fails validation.
// @Tags markets
// @Accept json
// @Produce json
// @Param markets body []persistence.StoredMarket true "Markets"
// @Success 200 {object} MarketUpsertResponse
// @Failure 400 {object} map[string]string "Malformed or invalid market"
// @Router /api/v1/admin/markets [post]
func (h *MarketHandler) upsertMarkets(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMarketBody))
	if err != nil {
		httputil.HandleBadRequest(c, "failed to read body")
		return
	}
	markets, err := persistence.DecodeMarkets(body)
	if err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return
	}
	applied, err := h.store.Upsert(markets...)
	if err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return
	}
	httputil.HandleSuccess(c, MarketUpsertResponse{Submitted: len(markets), Applied: applied})
}

// @Summary Remove market
// @Tags markets
// @Param address path string true "Market address (base58)"
// @Success 204
// @Failure 404 {object} map[string]string "Unknown market"
// @Router /api/v1/admin/markets/{address} [delete]
func (h *MarketHandler) removeMarket(c *gin.Context) {
	address, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		httputil.HandleBadRequest(c, "invalid market address")
		return
	}
	if !h.store.Remove(address) {
		httputil.HandleNotFound(c, "market not found")
		return
	}
	c.Status(gohttp.StatusNoContent)
}
