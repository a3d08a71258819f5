// Package report delivers settled trades to downstream sinks without
// holding up the matching engine.
package report

import (
	"context"
	"errors"
	"sync"

	"dex/internal/common"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultWorkers = 1
	defaultBuffer  = 128
)

// Dispatcher is a pool of workers draining a buffered queue of trades into
// every sink. With a single worker, sinks see trades in settlement order.
type Dispatcher struct {
	n     int               // number of workers
	tasks chan common.Trade // queued trades
	sinks []Sink
	t     *tomb.Tomb

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers. They stop when ctx is cancelled or
// Close is called.
func NewDispatcher(ctx context.Context, workers, buffer int, sinks ...Sink) *Dispatcher {
	if workers < 1 {
		workers = defaultWorkers
	}
	if buffer < 0 {
		buffer = defaultBuffer
	}

	t, _ := tomb.WithContext(ctx)
	d := &Dispatcher{
		n:     workers,
		tasks: make(chan common.Trade, buffer),
		sinks: sinks,
		t:     t,
	}
	for id := 0; id < d.n; id++ {
		t.Go(func() error {
			return d.worker(id)
		})
	}
	return d
}

// ReportTrade queues a trade. It blocks while the queue is full, and drops
// the trade once the dispatcher is shutting down.
func (d *Dispatcher) ReportTrade(trade common.Trade) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		log.Warn().Stringer("trade", trade.ID).Msg("dispatcher closed, trade report dropped")
		return
	}
	select {
	case d.tasks <- trade:
	case <-d.t.Dying():
		log.Warn().Stringer("trade", trade.ID).Msg("dispatcher dying, trade report dropped")
	}
}

// Close stops accepting trades, waits for the queue to drain and returns
// the first fatal worker error, if any.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	err := d.t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Workers wait on queued trades and hand each to every sink. A failing sink
// is logged and does not stop delivery to the others.
func (d *Dispatcher) worker(id int) error {
	for {
		select {
		case <-d.t.Dying():
			return nil
		case trade, ok := <-d.tasks:
			if !ok {
				return nil
			}
			for _, sink := range d.sinks {
				if err := sink.Deliver(trade); err != nil {
					log.Error().
						Err(err).
						Int("worker", id).
						Stringer("trade", trade.ID).
						Msg("trade report not delivered")
				}
			}
		}
	}
}
