package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pool runs the worker on a fixed interval while the process serves HTTP.
// Deployments that poll via cron hit the queue endpoint instead and leave
// the pool disabled.
type Pool struct {
	worker   *Worker
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewPool(worker *Worker, interval time.Duration, log zerolog.Logger) *Pool {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Pool{
		worker:   worker,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("starting campaign queue poller")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()
}

func (p *Pool) Stop() {
	p.log.Info().Msg("stopping campaign queue poller")
	close(p.stop)
	p.wg.Wait()
	p.log.Info().Msg("campaign queue poller stopped")
}

func (p *Pool) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := p.worker.RunOnce(ctx)
			if err != nil {
				p.log.Error().Err(err).Msg("queue poll pass failed")
				continue
			}
			if processed > 0 {
				p.log.Info().Int("processed", processed).Msg("queue poll pass finished")
			}
		}
	}
}
