package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PeriodicJob runs fn on a fixed interval until stopped. fn also runs once on Start.
type PeriodicJob struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fn       func(context.Context)

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewPeriodicJob(name string, interval time.Duration, fn func(context.Context)) *PeriodicJob {
	return &PeriodicJob{
		name:     name,
		interval: interval,
		timeout:  interval * 5,
		fn:       fn,
	}
}

// Start is a no-op if the job is already running.
func (j *PeriodicJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.done = make(chan struct{})

	j.wg.Add(1)
	go j.run(j.done)
	log.Debug().Str("job", j.name).Dur("interval", j.interval).Msg("periodic job started")
}

// Stop halts the job and waits for an in-progress run to return.
func (j *PeriodicJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.done)
	j.mu.Unlock()

	j.wg.Wait()
	log.Debug().Str("job", j.name).Msg("periodic job stopped")
}

func (j *PeriodicJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *PeriodicJob) run(done <-chan struct{}) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			j.runOnce()
		}
	}
}

func (j *PeriodicJob) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.fn(ctx)
}
