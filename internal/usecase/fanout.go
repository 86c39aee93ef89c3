package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"papertrends/internal/domain"
	"papertrends/internal/infrastructure/publish"
	"papertrends/internal/ports"
)

// RetryPolicy bounds per-channel delivery attempts for transient errors.
type RetryPolicy struct {
	Attempts    int
	BackoffBase time.Duration
}

// Fanout delivers one announcement to every configured channel. Channels are
// independent: one channel's failure never blocks the others. The ledger
// write for a candidate happens once, after all its channels finish, iff at
// least one reported success.
type Fanout struct {
	publishers []ports.Publisher
	ledger     ports.Ledger
	retry      RetryPolicy
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFanout wires the channel adapters and the ledger.
func NewFanout(publishers []ports.Publisher, ledger ports.Ledger, retry RetryPolicy, log *slog.Logger) *Fanout {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &Fanout{
		publishers: publishers,
		ledger:     ledger,
		retry:      retry,
		logger:     log,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Deliver attempts every channel concurrently and records the paper in the
// ledger when any channel succeeded. The returned error is ledger I/O only;
// per-channel failures live in the results.
func (f *Fanout) Deliver(ctx context.Context, a domain.Announcement) ([]domain.PublishResult, error) {
	results := make([]domain.PublishResult, len(f.publishers))

	var wg sync.WaitGroup
	for i, pub := range f.publishers {
		wg.Add(1)
		go func(i int, pub ports.Publisher) {
			defer wg.Done()
			results[i] = f.attempt(ctx, pub, a)
		}(i, pub)
	}
	wg.Wait()

	succeeded := false
	for _, res := range results {
		if res.Outcome == domain.OutcomeSuccess {
			succeeded = true
			break
		}
	}

	if succeeded {
		// Single ledger write per candidate, serialized after the channel
		// attempts; a crash before this line means a re-announcement next
		// run, which is the accepted at-least-once contract.
		if err := f.ledger.Record(ctx, a.Candidate.PaperID, f.now().UTC()); err != nil {
			return results, fmt.Errorf("ledger record %s: %w", a.Candidate.PaperID, err)
		}
	}

	return results, nil
}

// attempt runs one channel's bounded retry loop.
func (f *Fanout) attempt(ctx context.Context, pub ports.Publisher, a domain.Announcement) domain.PublishResult {
	result := domain.PublishResult{
		Channel: pub.Name(),
		PaperID: a.Candidate.PaperID,
	}

	var lastErr error
	for attempt := 0; attempt < f.retry.Attempts; attempt++ {
		if attempt > 0 {
			backoff := f.retry.BackoffBase << (attempt - 1)
			if err := f.sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}

		result.Attempts++
		err := pub.Publish(ctx, a)
		if err == nil {
			result.Outcome = domain.OutcomeSuccess
			f.debug("channel delivered", "channel", pub.Name(), "paper_id", a.Candidate.PaperID,
				"attempts", result.Attempts)
			return result
		}

		lastErr = err
		if !publish.IsRetriable(err) {
			f.warn("channel failed permanently", "channel", pub.Name(),
				"paper_id", a.Candidate.PaperID, "error", err)
			break
		}
		f.debug("channel attempt failed", "channel", pub.Name(),
			"paper_id", a.Candidate.PaperID, "attempt", result.Attempts, "error", err)
	}

	result.Outcome = domain.OutcomeFailed
	result.Err = lastErr
	if result.Err != nil && publish.IsRetriable(result.Err) {
		f.warn("channel retry budget exhausted", "channel", pub.Name(),
			"paper_id", a.Candidate.PaperID, "attempts", result.Attempts, "error", lastErr)
	}
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Fanout) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}

func (f *Fanout) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
