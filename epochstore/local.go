package epochstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	Epoch     uint64
	UpdatedAt time.Time
}

// Local keeps region epochs in-process (default).
// Optional cleanup loop prunes regions that have not been invalidated within
// the retention window; a pruned region reads as epoch 0 again, which only
// widens what readers treat as stale.
type Local struct {
	mu     sync.RWMutex
	epochs map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	retention time.Duration
}

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{
		epochs:    make(map[string]localEntry),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Snapshot(_ context.Context, region string) (uint64, error) {
	s.mu.RLock()
	e, ok := s.epochs[region]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return e.Epoch, nil
}

func (s *Local) Bump(_ context.Context, region string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.epochs[region]
	e.Epoch++
	e.UpdatedAt = now
	s.epochs[region] = e
	s.mu.Unlock()
	return e.Epoch, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.epochs {
		if !e.UpdatedAt.IsZero() && e.UpdatedAt.Before(cutoff) {
			delete(s.epochs, k)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		if s.ticker != nil {
			s.ticker.Stop() // stop ticker before waiting
		}
		s.wg.Wait()
	}
	return nil
}
