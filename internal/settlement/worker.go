package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/paystream/settlement-api/pkg/errs"
	"github.com/rs/zerolog/log"
)

const (
	defaultBatchSize = 50

	// maxCycleOffset bounds the cumulative pagination offset so a cycle
	// terminates even under a pathological backlog of permanently
	// failing earnings.
	maxCycleOffset = 10000
)

// RunReleaseCycle sweeps all earnings eligible at opts.Now and attempts
// to release each one independently. Failures are classified and
// counted; one failing earning never aborts the batch.
//
// The offset advances unconditionally by the batch size each page.
// Released earnings leave the eligible set while failed and skipped
// ones remain, so re-querying from zero would re-fetch the same failing
// page forever. The flip side is that one cycle cannot fully drain a
// backlog larger than the offset ceiling; the scheduling assumption is
// frequent cycles, not huge backlogs.
func (s *Service) RunReleaseCycle(opts CycleOptions) CycleMetrics {
	logger := log.With().Str("component", "release_worker").Logger()

	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var metrics CycleMetrics

	for offset := 0; offset < maxCycleOffset; offset += opts.BatchSize {
		page, err := s.db.ListReleasableEarnings(opts.Now, offset, opts.BatchSize)
		if err != nil {
			logger.Error().Err(err).Int("offset", offset).Msg("failed to fetch releasable earnings page")
			break
		}
		if len(page) == 0 {
			break
		}

		for _, earning := range page {
			metrics.Attempted++

			err := s.Release(earning.EarningID)
			switch {
			case err == nil:
				metrics.Released++
			case errors.Is(err, errs.ErrAlreadyRunning):
				metrics.AlreadyRunning++
			case errs.IsSkippable(err):
				// Business-expected: not yet eligible or funds not
				// available. Retried on a future cycle.
				logger.Debug().
					Err(err).
					Str("earning_id", earning.EarningID).
					Msg("earning skipped")
				metrics.Skipped++
			default:
				logger.Error().
					Err(err).
					Str("earning_id", earning.EarningID).
					Str("seller_company_id", earning.SellerCompanyID).
					Msg("earning release failed")
				metrics.Failed++
			}
		}
	}

	logger.Info().
		Int("attempted", metrics.Attempted).
		Int("released", metrics.Released).
		Int("skipped", metrics.Skipped).
		Int("already_running", metrics.AlreadyRunning).
		Int("failed", metrics.Failed).
		Msg("release cycle completed")

	return metrics
}

// Processor periodically runs release cycles until its context is
// cancelled. Multiple processors against the same database are safe;
// correctness rests on the idempotency guard, not on scheduling.
type Processor struct {
	service      *Service
	processDelay time.Duration
	batchSize    int
}

func NewProcessor(service *Service) *Processor {
	return &Processor{
		service:      service,
		processDelay: 5 * time.Minute,
		batchSize:    defaultBatchSize,
	}
}

// Start begins the release processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "release_processor").Logger()
	logger.Info().Dur("interval", p.processDelay).Msg("starting release processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down release processor")
			return
		case <-ticker.C:
			p.service.RunReleaseCycle(CycleOptions{BatchSize: p.batchSize})
		}
	}
}
