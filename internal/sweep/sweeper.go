package sweep

import (
	"context"
	"errors"
	"log"
	"time"

	"docflow/internal/domain"
	"docflow/internal/domain/documents"
	"docflow/internal/infra/lease"
)

const leaseName = "document-expiry-sweep"

// Expirer is the slice of the lifecycle service the sweeper drives.
type Expirer interface {
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]documents.Document, error)
	CheckExpiry(ctx context.Context, documentID string, now time.Time) (documents.Document, error)
}

type Sweeper struct {
	Lifecycle Expirer
	Lease     lease.Lease
	Holder    string
	LeaseTTL  time.Duration
	BatchSize int
	Clock     func() time.Time
}

type Result struct {
	Skipped bool
	Scanned int
	Expired int
	Failed  int
}

// RunOnce expires every APPROVED document whose next review date has passed,
// up to BatchSize documents. It returns a skipped result when another
// replica holds the sweep lease.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if s == nil || s.Lifecycle == nil {
		return Result{}, errors.New("sweeper lifecycle is required")
	}
	if s.Lease != nil {
		ok, err := s.Lease.Acquire(ctx, leaseName, s.Holder, s.leaseTTL())
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{Skipped: true}, nil
		}
		defer func() {
			if err := s.Lease.Release(context.WithoutCancel(ctx), leaseName, s.Holder); err != nil && !errors.Is(err, lease.ErrNotHeld) {
				log.Printf("sweep: release lease: %v", err)
			}
		}()
	}

	now := s.now()
	due, err := s.Lifecycle.ListDueForExpiry(ctx, now, s.BatchSize)
	if err != nil {
		return Result{}, err
	}
	result := Result{Scanned: len(due)}
	for _, doc := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		out, err := s.Lifecycle.CheckExpiry(ctx, doc.ID, now)
		switch {
		case err == nil:
			if out.Status == documents.StatusExpired {
				result.Expired++
			}
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidTransition):
			// moved on since it was listed
		default:
			result.Failed++
			log.Printf("sweep: expire document %s: %v", doc.ID, err)
		}
	}
	return result, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	s.runAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s.runAndLog(ctx)
	}
}

func (s *Sweeper) runAndLog(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("sweep: run failed: %v", err)
		}
		return
	}
	if result.Skipped {
		log.Printf("sweep: lease held by another replica; skipping")
		return
	}
	if result.Expired > 0 || result.Failed > 0 {
		log.Printf("sweep: scanned=%d expired=%d failed=%d", result.Scanned, result.Expired, result.Failed)
	}
}

func (s *Sweeper) leaseTTL() time.Duration {
	if s.LeaseTTL <= 0 {
		return time.Minute
	}
	return s.LeaseTTL
}

func (s *Sweeper) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock()
}
