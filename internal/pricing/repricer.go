package pricing

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"slabwise/server/config"
	"slabwise/server/internal/database"
	"slabwise/server/internal/models"
)

// Repricer recomputes price suggestions from stored comps. A full run fans
// the inventory out over a worker pool; each item's write is atomic, so a
// crashed run leaves every already-processed item consistent.
type Repricer struct {
	store  *database.Database
	config *config.Config
	logger *logrus.Logger
}

func NewRepricer(store *database.Database, cfg *config.Config, logger *logrus.Logger) *Repricer {
	return &Repricer{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// RepriceStats summarizes a recompute run.
type RepriceStats struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Cleared   int `json:"cleared"`
	Failed    int `json:"failed"`
}

func (r *Repricer) options() Options {
	return Options{
		EvidenceCap:           r.config.Pricing.EvidenceCap,
		ActiveCap:             r.config.Pricing.ActiveCap,
		HighConfidenceCount:   r.config.Pricing.HighConfidenceCount,
		MediumConfidenceCount: r.config.Pricing.MediumConfidenceCount,
		QualifiedKeywords:     r.config.Pricing.QualifiedKeywords,
	}
}

// RepriceAll recomputes suggestions for the whole unsold inventory.
func (r *Repricer) RepriceAll(ctx context.Context) (RepriceStats, error) {
	items, err := r.store.GetUnsoldItems()
	if err != nil {
		return RepriceStats{}, err
	}

	workers := r.config.Pricing.WorkerCount
	if workers < 1 {
		workers = 1
	}

	work := make(chan *models.Item)
	var mu sync.Mutex
	var stats RepriceStats
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				updated, err := r.RepriceItem(item)
				mu.Lock()
				stats.Processed++
				switch {
				case err != nil:
					stats.Failed++
				case updated:
					stats.Updated++
				default:
					stats.Cleared++
				}
				mu.Unlock()
				if err != nil {
					r.logger.WithError(err).WithField("item_id", item.ID).Error("Failed to reprice item")
				}
			}
		}()
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return stats, ctx.Err()
		case work <- item:
		}
	}
	close(work)
	wg.Wait()

	r.logger.WithFields(logrus.Fields{
		"processed": stats.Processed,
		"updated":   stats.Updated,
		"cleared":   stats.Cleared,
		"failed":    stats.Failed,
	}).Info("Reprice run complete")
	return stats, nil
}

// RepriceItem recomputes one item's suggestion from its stored comps.
// Returns false when the item has no sold evidence left; its suggestion is
// then removed rather than left stale.
func (r *Repricer) RepriceItem(item *models.Item) (bool, error) {
	opts := r.options().withDefaults()

	sold, err := r.store.GetComps(item.ID, models.ListingTypeSold, opts.EvidenceCap*2)
	if err != nil {
		return false, err
	}
	active, err := r.store.GetComps(item.ID, models.ListingTypeActive, opts.ActiveCap*2)
	if err != nil {
		return false, err
	}
	// Offers are asking prices like active listings; they join the anchor
	// side, never the FMV basis.
	offers, err := r.store.GetComps(item.ID, models.ListingTypeOffer, opts.ActiveCap*2)
	if err != nil {
		return false, err
	}
	active = append(active, offers...)

	res := Aggregate(item, sold, active, opts)
	if !res.Suggestion.HasEvidence() {
		return false, r.store.DeleteSuggestion(item.ID)
	}

	return true, r.store.SaveSuggestion(res.Suggestion, res.Evidence)
}

// Trend labels the direction of an item's sold prices: the median of the
// five most recent sales against the median of the five before them, with
// an 8 percent dead band. Fewer than eight usable prices is insufficient
// signal.
func Trend(pricesDesc []float64) (string, *float64) {
	var vals []float64
	for _, p := range pricesDesc {
		if p > 0 {
			vals = append(vals, p)
		}
	}
	if len(vals) < 8 {
		return "insufficient", nil
	}

	recent := vals[:5]
	end := 10
	if end > len(vals) {
		end = len(vals)
	}
	prior := vals[5:end]
	if len(prior) < 3 {
		return "insufficient", nil
	}

	recentMed := middleOf(recent)
	priorMed := middleOf(prior)
	if priorMed <= 0 {
		return "insufficient", nil
	}

	pct := (recentMed - priorMed) / priorMed * 100.0
	label := "flat"
	switch {
	case pct >= 8:
		label = "rising"
	case pct <= -8:
		label = "falling"
	}
	return label, round1(pct)
}

// middleOf is the upper median: even-sized windows take the higher of the
// two middle values.
func middleOf(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}
