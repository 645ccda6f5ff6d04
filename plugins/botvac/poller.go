package botvac

import (
	"context"
	"log"
	"time"
)

// Poller refreshes every managed robot on a fixed interval and hands the
// resulting snapshots to an optional publisher.
type Poller struct {
	manager   *Manager
	interval  time.Duration
	publisher SnapshotPublisher

	// onRound, when set, receives the failure count of every round.
	onRound func(failed, total int)
}

func NewPoller(manager *Manager, interval time.Duration, publisher SnapshotPublisher) *Poller {
	return &Poller{manager: manager, interval: interval, publisher: publisher}
}

// Run polls until ctx is done. A non-positive interval disables polling.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one refresh round and returns the number of failed robots.
func (p *Poller) Poll(ctx context.Context) int {
	failed := 0
	results := p.manager.Refresh(ctx)
	for _, result := range results {
		if result.Err != nil {
			failed++
			log.Printf("botvac poll %s failed: %v", result.Serial, result.Err)
			continue
		}
		if p.publisher == nil {
			continue
		}
		if err := p.publisher.Publish(ctx, result.Serial, result.Name, result.Snapshot); err != nil {
			log.Printf("botvac publish %s failed: %v", result.Serial, err)
		}
	}
	if p.onRound != nil {
		p.onRound(failed, len(results))
	}
	return failed
}
