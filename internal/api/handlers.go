package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"slabwise/server/config"
	"slabwise/server/internal/database"
	"slabwise/server/internal/decision"
	"slabwise/server/internal/export"
	"slabwise/server/internal/importer"
	"slabwise/server/internal/marketplace"
	"slabwise/server/internal/models"
	"slabwise/server/internal/pricing"
)

type Handler struct {
	db       *database.Database
	logger   *logrus.Logger
	config   *config.Config
	repricer *pricing.Repricer
	fetcher  *marketplace.Fetcher
	importer *importer.Importer
}

// EconomicsOverride lets a request tweak individual economics assumptions
// without changing server configuration. Unset fields keep the configured
// value.
type EconomicsOverride struct {
	PlatformFeeRate    *float64 `form:"fee_rate"`
	AvgShipCost        *float64 `form:"ship_cost"`
	GradingCost        *float64 `form:"grading_cost"`
	GradingShipInsure  *float64 `form:"grading_ship_insure"`
	TimePenaltyRate    *float64 `form:"time_penalty_rate"`
	SlabLiftMinDollars *float64 `form:"lift_min_dollars"`
	SlabLiftMinPct     *float64 `form:"lift_min_pct"`
}

type FetchRequest struct {
	ItemID        *int64 `json:"item_id"`
	IncludeActive bool   `json:"include_active"`
}

type SheetImportRequest struct {
	SheetID string `json:"sheet_id" binding:"required"`
	GID     string `json:"gid"`
}

func NewHandler(db *database.Database, cfg *config.Config, repricer *pricing.Repricer, fetcher *marketplace.Fetcher, imp *importer.Importer, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:       db,
		logger:   logger,
		config:   cfg,
		repricer: repricer,
		fetcher:  fetcher,
		importer: imp,
	}
}

func (h *Handler) economics(c *gin.Context) decision.Economics {
	eco := decision.Economics{
		PlatformFeeRate:    h.config.Economics.PlatformFeeRate,
		AvgShipCost:        h.config.Economics.AvgShipCost,
		GradingCost:        h.config.Economics.GradingCost,
		GradingShipInsure:  h.config.Economics.GradingShipInsure,
		TimePenaltyRate:    h.config.Economics.TimePenaltyRate,
		SlabLiftMinDollars: h.config.Economics.SlabLiftMinDollars,
		SlabLiftMinPct:     h.config.Economics.SlabLiftMinPct,
	}

	var ov EconomicsOverride
	if err := c.ShouldBindQuery(&ov); err != nil {
		h.logger.WithError(err).Warn("Failed to parse economics overrides")
		return eco
	}
	if ov.PlatformFeeRate != nil {
		eco.PlatformFeeRate = *ov.PlatformFeeRate
	}
	if ov.AvgShipCost != nil {
		eco.AvgShipCost = *ov.AvgShipCost
	}
	if ov.GradingCost != nil {
		eco.GradingCost = *ov.GradingCost
	}
	if ov.GradingShipInsure != nil {
		eco.GradingShipInsure = *ov.GradingShipInsure
	}
	if ov.TimePenaltyRate != nil {
		eco.TimePenaltyRate = *ov.TimePenaltyRate
	}
	if ov.SlabLiftMinDollars != nil {
		eco.SlabLiftMinDollars = *ov.SlabLiftMinDollars
	}
	if ov.SlabLiftMinPct != nil {
		eco.SlabLiftMinPct = *ov.SlabLiftMinPct
	}
	return eco
}

// buildQueue assembles the decision queue for the unsold inventory.
func (h *Handler) buildQueue(eco decision.Economics) ([]models.QueueEntry, error) {
	items, err := h.db.GetUnsoldItems()
	if err != nil {
		return nil, err
	}

	entries := make([]models.QueueEntry, 0, len(items))
	for _, item := range items {
		sugg, err := h.db.GetSuggestion(item.ID)
		if err != nil {
			return nil, err
		}

		prices, err := h.db.GetSoldPricesNewestFirst(item.ID)
		if err != nil {
			return nil, err
		}
		label, pct := pricing.Trend(prices)

		entries = append(entries, models.QueueEntry{
			Item:       item,
			Suggestion: sugg,
			Decision:   decision.Decide(decision.Input{Item: item, Suggestion: sugg}, eco),
			TrendLabel: label,
			TrendPct:   pct,
		})
	}
	return entries, nil
}

func (h *Handler) GetItems(c *gin.Context) {
	items, err := h.db.GetAllItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get items")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get items"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) GetItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	item, err := h.db.GetItem(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get item"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	sugg, err := h.db.GetSuggestion(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get suggestion")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suggestion"})
		return
	}

	prices, err := h.db.GetSoldPricesNewestFirst(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get sold prices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sold prices"})
		return
	}
	label, pct := pricing.Trend(prices)

	c.JSON(http.StatusOK, gin.H{
		"item":        item,
		"suggestion":  sugg,
		"decision":    decision.Decide(decision.Input{Item: item, Suggestion: sugg}, h.economics(c)),
		"trend_label": label,
		"trend_pct":   pct,
	})
}

func (h *Handler) GetItemEvidence(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	evidence, err := h.db.GetEvidence(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get evidence")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get evidence"})
		return
	}
	c.JSON(http.StatusOK, evidence)
}

func (h *Handler) GetDecisionQueue(c *gin.Context) {
	entries, err := h.buildQueue(h.economics(c))
	if err != nil {
		h.logger.WithError(err).Error("Failed to build decision queue")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build decision queue"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) ExportDecisionQueue(c *gin.Context) {
	entries, err := h.buildQueue(h.economics(c))
	if err != nil {
		h.logger.WithError(err).Error("Failed to build decision queue")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build decision queue"})
		return
	}

	filename := fmt.Sprintf("decision-queue-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteDecisionQueue(c.Writer, entries); err != nil {
		h.logger.WithError(err).Error("Failed to write decision queue export")
	}
}

func (h *Handler) TriggerReprice(c *gin.Context) {
	stats, err := h.repricer.RepriceAll(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Reprice run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reprice run failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) TriggerFetch(c *gin.Context) {
	if h.fetcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Marketplace credentials not configured"})
		return
	}

	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid fetch request"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		var err error
		if req.ItemID != nil {
			err = h.fetcher.FetchItem(ctx, *req.ItemID, req.IncludeActive)
		} else {
			err = h.fetcher.FetchAll(ctx, req.IncludeActive)
		}
		if err != nil {
			h.logger.WithError(err).Error("Comp fetch failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "fetch started"})
}

func (h *Handler) ImportSheet(c *gin.Context) {
	var req SheetImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sheet_id is required"})
		return
	}

	n, err := h.importer.ImportSheet(c.Request.Context(), req.SheetID, req.GID)
	if err != nil {
		h.logger.WithError(err).Error("Sheet import failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sheet import failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

// ImportCSV accepts a raw CSV body and replaces the inventory with it.
func (h *Handler) ImportCSV(c *gin.Context) {
	n, err := h.importer.ImportCSV(c.Request.Body)
	if err != nil {
		h.logger.WithError(err).Error("CSV import failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

// MarkSold accepts a raw CSV body of realized sales and applies them.
func (h *Handler) MarkSold(c *gin.Context) {
	n, err := h.importer.MarkSoldCSV(c.Request.Body)
	if err != nil {
		h.logger.WithError(err).Error("Mark-sold import failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
