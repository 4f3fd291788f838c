package ordersvc

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper cancels booked orders that were never picked up within the TTL,
// restoring each book's quantity. Orders are processed one transaction at a
// time; a failure on one order is logged and does not stop the batch.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)

	// Run sweeps on every tick until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration)
}

type sweeper struct {
	r   Repo
	ttl time.Duration
	log *slog.Logger
	now func() time.Time
}

func NewSweeper(r Repo, ttl time.Duration, log *slog.Logger) Sweeper {
	return &sweeper{r: r, ttl: ttl, log: log, now: time.Now}
}

func (s *sweeper) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.ttl)

	ids, err := s.r.ListExpiredBooked(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		ok, err := s.r.CancelBooked(ctx, id, cutoff)
		if err != nil {
			s.log.Error("sweep: cancel failed", "order_id", id, "err", err)
			continue
		}
		if !ok {
			// Accepted between the scan and the cancel.
			continue
		}
		cancelled++
		s.log.Info("order cancelled due to timeout", "order_id", id)
	}
	return cancelled, nil
}

func (s *sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.SweepExpired(ctx); err != nil {
				s.log.Error("sweep failed", "err", err)
			} else if n > 0 {
				s.log.Info("sweep done", "cancelled", n)
			}
		}
	}
}
