package store

import (
	"sync"
	"time"
)

// Sweeper periodically drops expired entries from a Store.
type Sweeper struct {
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// StartSweeper runs sweep every interval until Stop. A non-positive interval
// returns a Sweeper that never ticks.
func StartSweeper(interval time.Duration, sweep func()) *Sweeper {
	s := &Sweeper{}
	if interval <= 0 || sweep == nil {
		return s
	}
	s.ticker = time.NewTicker(interval)
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
	return s
}

// Stop is safe to call multiple times.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		if s.stopCh == nil {
			return
		}
		s.ticker.Stop() // stop ticker before waiting
		close(s.stopCh)
		s.wg.Wait()
	})
}
