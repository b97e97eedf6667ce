package marketplace

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"slabwise/server/config"
	"slabwise/server/internal/database"
	"slabwise/server/internal/ingest"
	"slabwise/server/internal/models"
)

// Fetcher pulls marketplace comps for the unsold inventory and hands them
// to the ingest queue. Targets are fetched with bounded parallelism; one
// failing query never aborts the run.
type Fetcher struct {
	client *Client
	store  *database.Database
	queue  *ingest.ListingQueue
	config *config.Config
	logger *logrus.Logger
}

func NewFetcher(client *Client, store *database.Database, queue *ingest.ListingQueue, cfg *config.Config, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		store:  store,
		queue:  queue,
		config: cfg,
		logger: logger,
	}
}

// FetchAll runs comp acquisition for every unsold item. includeActive also
// pulls live listings for the anchor-price signal.
func (f *Fetcher) FetchAll(ctx context.Context, includeActive bool) error {
	items, err := f.store.GetUnsoldItems()
	if err != nil {
		return err
	}

	maxParallel := f.config.Marketplace.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for _, item := range items {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(item *models.Item) {
			defer wg.Done()
			defer func() { <-sem }()
			f.fetchItem(ctx, item, includeActive)
		}(item)
	}

	wg.Wait()
	return nil
}

// FetchItem runs comp acquisition for a single item.
func (f *Fetcher) FetchItem(ctx context.Context, itemID int64, includeActive bool) error {
	item, err := f.store.GetItem(itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	f.fetchItem(ctx, item, includeActive)
	return nil
}

func (f *Fetcher) fetchItem(ctx context.Context, item *models.Item, includeActive bool) {
	queries := QueryCandidates(item.Title, item.Issue, item.Year)
	seen := make(map[string]bool)
	var listings []*models.Listing

	collect := func(results []ItemSummary, listingType, query string) {
		for i := range results {
			l := f.buildListing(item, &results[i], listingType, query)
			if l == nil {
				continue
			}
			key := listingType + "|" + dedupeKey(&results[i])
			if seen[key] {
				continue
			}
			seen[key] = true
			listings = append(listings, l)
		}
	}

	for _, q := range queries {
		sold, err := f.client.Search(ctx, q, f.config.Marketplace.ResultLimit, true)
		if err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{
				"item_id": item.ID,
				"query":   q,
			}).Warn("Sold comp query failed")
			continue
		}
		collect(sold, models.ListingTypeSold, q)

		if includeActive {
			active, err := f.client.Search(ctx, q, f.config.Marketplace.ResultLimit, false)
			if err != nil {
				f.logger.WithError(err).WithFields(logrus.Fields{
					"item_id": item.ID,
					"query":   q,
				}).Warn("Active comp query failed")
				continue
			}
			collect(active, models.ListingTypeActive, q)
		}
	}

	if len(listings) == 0 {
		return
	}

	f.logger.WithFields(logrus.Fields{
		"item_id":  item.ID,
		"listings": len(listings),
	}).Info("Fetched marketplace listings")

	batchSize := f.config.BatchProcessing.MaxBatchSize
	if batchSize < 1 {
		batchSize = len(listings)
	}
	for start := 0; start < len(listings); start += batchSize {
		end := start + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := f.queue.Push(listings[start:end]); err != nil {
			f.logger.WithError(err).Error("Failed to enqueue listing batch")
			return
		}
	}
}

// buildListing converts a marketplace result to a listing, or nil when the
// result fails the strict title/issue match or carries no usable price.
func (f *Fetcher) buildListing(item *models.Item, res *ItemSummary, listingType, query string) *models.Listing {
	if !StrictTitleIssueMatch(item.Title, item.Issue, item.Year, res.Title) {
		return nil
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(res.Price.Value), 64)
	if err != nil || price <= 0 {
		return nil
	}

	shipping := 0.0
	if len(res.ShippingOptions) > 0 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(res.ShippingOptions[0].ShippingCost.Value), 64); err == nil {
			shipping = v
		}
	}

	var soldDate *string
	if listingType == models.ListingTypeSold && res.ItemEndDate != "" {
		d := res.ItemEndDate
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			d = t.Format("2006-01-02")
		}
		soldDate = &d
	}

	var url *string
	if res.ItemWebURL != "" {
		u := res.ItemWebURL
		url = &u
	}

	raw, _ := json.Marshal(map[string]interface{}{
		"title":     res.Title,
		"url":       res.ItemWebURL,
		"condition": res.Condition,
		"query":     query,
	})

	return &models.Listing{
		ItemID:      item.ID,
		Source:      "ebay",
		ListingType: listingType,
		Title:       res.Title,
		Issue:       item.Issue,
		Price:       price,
		Shipping:    shipping,
		SoldDate:    soldDate,
		URL:         url,
		RawPayload:  string(raw),
	}
}

func dedupeKey(res *ItemSummary) string {
	if u := strings.TrimSpace(res.ItemWebURL); u != "" {
		return u
	}
	return strings.ToLower(strings.TrimSpace(res.Title))
}
