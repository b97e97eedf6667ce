package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"slabwise/server/internal/marketplace"
	"slabwise/server/internal/pricing"
)

// JobType represents the scheduled job kinds
type JobType int

const (
	JobTypeActiveFetch JobType = iota
	JobTypeSoldFetch
	JobTypeReprice
)

func (j JobType) String() string {
	switch j {
	case JobTypeActiveFetch:
		return "active_fetch"
	case JobTypeSoldFetch:
		return "sold_fetch"
	case JobTypeReprice:
		return "reprice"
	default:
		return "unknown"
	}
}

// Scheduler drives the periodic comp refresh: active listings hourly for
// the anchor signal, a full sold sweep plus reprice at midnight. Jobs run
// under one mutex so fetch and reprice never overlap.
type Scheduler struct {
	fetcher  *marketplace.Fetcher
	repricer *pricing.Repricer
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex
}

func NewScheduler(fetcher *marketplace.Fetcher, repricer *pricing.Repricer, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		fetcher:  fetcher,
		repricer: repricer,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs runs all jobs that are scheduled for the given time
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	// Midnight: full sold sweep, then recompute every suggestion
	if t.Hour() == 0 && t.Minute() == 0 {
		s.runJob(JobTypeSoldFetch, func(ctx context.Context) error {
			return s.fetcher.FetchAll(ctx, true)
		})
		s.runJob(JobTypeReprice, func(ctx context.Context) error {
			_, err := s.repricer.RepriceAll(ctx)
			return err
		})
		return
	}

	// On the hour: refresh active listings for the anchor price
	if t.Minute() == 0 {
		s.runJob(JobTypeActiveFetch, func(ctx context.Context) error {
			return s.fetcher.FetchAll(ctx, true)
		})
	}
}

func (s *Scheduler) runJob(jobType JobType, fn func(context.Context) error) {
	if s.fetcher == nil && jobType != JobTypeReprice {
		s.logger.WithField("job_type", jobType.String()).Debug("Skipping job, marketplace not configured")
		return
	}

	s.logger.WithField("job_type", jobType.String()).Info("Starting scheduled job")

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Minute)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.WithError(err).WithField("job_type", jobType.String()).Error("Scheduled job failed")
		return
	}
	s.logger.WithField("job_type", jobType.String()).Info("Scheduled job completed successfully")
}
