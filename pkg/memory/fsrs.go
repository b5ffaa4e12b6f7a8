package memory

import (
	"context"
	"math"
	"sync"
	"time"
)

// DecayManager applies exponential forgetting to episodes:
// S' = S * e^(-t/stability), with t in hours since the last review.
type DecayManager struct {
	mu               sync.Mutex
	threshold        float64
	defaultStability float64
	interval         time.Duration
	now              func() time.Time
	cancel           context.CancelFunc
	done             chan struct{}

	totalDecayed   int64
	totalForgotten int64
}

// NewDecayManager creates a decay manager. Episodes whose strength falls
// below threshold are forgotten.
func NewDecayManager(threshold, defaultStability float64, interval time.Duration) *DecayManager {
	if defaultStability <= 0 {
		defaultStability = 168
	}
	return &DecayManager{
		threshold:        threshold,
		defaultStability: defaultStability,
		interval:         interval,
		now:              time.Now,
	}
}

// UpdateStrength decays ep to the current time and moves its review mark.
func (d *DecayManager) UpdateStrength(ep *Episode) {
	now := d.now()
	if ep.Stability <= 0 {
		ep.Stability = d.defaultStability
	}
	elapsed := now.Sub(ep.LastReview).Hours()
	if elapsed > 0 {
		ep.Strength *= math.Exp(-elapsed / ep.Stability)
	}
	ep.LastReview = now
}

// BoostStrength resets strength after a recall and grows stability by half.
func (d *DecayManager) BoostStrength(ep *Episode) {
	if ep.Stability <= 0 {
		ep.Stability = d.defaultStability
	}
	ep.Strength = 1.0
	ep.LastReview = d.now()
	ep.Stability *= 1.5
}

// InitEpisode sets initial decay parameters for a new episode.
func (d *DecayManager) InitEpisode(ep *Episode) {
	ep.Strength = 1.0
	ep.Stability = d.defaultStability
	ep.LastReview = d.now()
}

// DecayEpisodes applies decay to a batch and splits it into survivors and
// the ids that fell below threshold.
func (d *DecayManager) DecayEpisodes(episodes []*Episode) (updated []*Episode, forgotten []EntryID) {
	updated = make([]*Episode, 0, len(episodes))

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ep := range episodes {
		d.UpdateStrength(ep)
		if ep.Strength < d.threshold {
			forgotten = append(forgotten, ep.ID)
			d.totalForgotten++
		} else {
			updated = append(updated, ep)
			d.totalDecayed++
		}
	}
	return updated, forgotten
}

// Start runs process every interval until ctx is cancelled or Stop is called.
// A non-positive interval disables the loop.
func (d *DecayManager) Start(parent context.Context, process func(ctx context.Context) error) {
	if d.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = process(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the decay loop and waits for it to exit.
func (d *DecayManager) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
		d.cancel = nil
	}
}

// Stats returns decay counters.
func (d *DecayManager) Stats() (decayed, forgotten int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalDecayed, d.totalForgotten
}
