package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slabwise/server/config"
	"slabwise/server/internal/models"
	"slabwise/server/internal/parse"
	"slabwise/server/internal/scoring"
)

// BatchProcessor consumes listing batches from the queue, parses grade
// signals, scores each listing against its target item, and stores the
// survivors as comps. Inserts are idempotent: a listing already present
// under the identity index is ignored.
type BatchProcessor struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    *config.Config
	queue     *ListingQueue
	work      chan []*models.Listing
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewBatchProcessor(db *gorm.DB, queue *ListingQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
		work:   make(chan []*models.Listing),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the queue once and fans batches out to the worker
// pool, so every batch is processed exactly once.
func (p *BatchProcessor) Start() {
	p.queue.Subscribe(func(batch []*models.Listing) error {
		select {
		case p.work <- batch:
			return nil
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	})

	for i := 0; i < p.config.BatchProcessing.ProcessorCount; i++ {
		p.waitGroup.Add(1)
		go p.processLoop()
	}
}

// Stop gracefully shuts down the processor
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

func (p *BatchProcessor) processLoop() {
	defer p.waitGroup.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case batch := <-p.work:
			if err := p.processBatch(batch); err != nil {
				p.logger.WithError(err).Error("Failed to process listing batch")
			}
		}
	}
}

// processBatch converts a batch of listings to comps and inserts them with
// transaction and retry logic.
func (p *BatchProcessor) processBatch(batch []*models.Listing) error {
	comps, dropped := p.buildComps(batch)
	if len(comps) == 0 {
		p.logger.WithFields(logrus.Fields{
			"batch_size": len(batch),
			"dropped":    dropped,
		}).Info("No listings in batch survived scoring")
		return nil
	}

	var err error
	for attempt := 0; attempt <= p.config.BatchProcessing.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, p.config.BatchProcessing.MaxRetries)
			time.Sleep(time.Duration(p.config.BatchProcessing.RetryDelay) * time.Second)
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(comps)
			if res.Error != nil {
				return fmt.Errorf("failed to insert comps batch: %w", res.Error)
			}
			return nil
		})

		if err == nil {
			p.logger.WithFields(logrus.Fields{
				"stored":  len(comps),
				"dropped": dropped,
			}).Info("Successfully processed listing batch")
			return nil
		}

		p.logger.Errorf("Batch processing failed: %v", err)
	}

	return fmt.Errorf("failed to process batch after %d attempts: %w", p.config.BatchProcessing.MaxRetries, err)
}

// buildComps parses and scores every listing in the batch. Listings that
// score below the match floor, or whose target item no longer exists, are
// dropped.
func (p *BatchProcessor) buildComps(batch []*models.Listing) ([]*models.Comp, int) {
	targets := make(map[int64]*scoring.Target)
	dropped := 0
	comps := make([]*models.Comp, 0, len(batch))

	for _, l := range batch {
		target, ok := targets[l.ItemID]
		if !ok {
			var item models.Item
			if err := p.db.First(&item, l.ItemID).Error; err != nil {
				p.logger.WithError(err).WithField("item_id", l.ItemID).Warn("Dropping listing for unknown item")
				targets[l.ItemID] = nil
				dropped++
				continue
			}
			t := scoring.TargetForItem(&item)
			target = &t
			targets[l.ItemID] = target
		}
		if target == nil {
			dropped++
			continue
		}

		comp := compFromListing(l)
		score := scoring.Score(*target, comp)
		if score < p.config.Pricing.MinMatchScore {
			dropped++
			continue
		}
		comp.MatchScore = &score
		comps = append(comps, comp)
	}

	return comps, dropped
}

// listingPayload is the subset of the raw marketplace payload the parser
// can use to fill gaps the title left.
type listingPayload struct {
	Grade     *string `json:"grade"`
	Condition *string `json:"condition"`
}

func compFromListing(l *models.Listing) *models.Comp {
	var payload *parse.Payload
	if l.RawPayload != "" {
		var lp listingPayload
		if err := json.Unmarshal([]byte(l.RawPayload), &lp); err == nil {
			payload = &parse.Payload{Grade: lp.Grade, Condition: lp.Condition}
		}
	}

	sig := parse.ParseListing(l.Title, payload)

	issue := l.Issue
	if issue == nil {
		issue = sig.IssueNumber
	}

	return &models.Comp{
		ItemID:       l.ItemID,
		Source:       l.Source,
		ListingType:  l.ListingType,
		Title:        l.Title,
		Issue:        issue,
		GradeNumeric: sig.GradeNumeric,
		GradeCompany: sig.GradeCompany,
		IsRaw:        sig.IsRaw,
		IsSigned:     sig.IsSigned,
		Price:        l.Price,
		Shipping:     l.Shipping,
		SoldDate:     l.SoldDate,
		URL:          l.URL,
		RawPayload:   l.RawPayload,
	}
}
