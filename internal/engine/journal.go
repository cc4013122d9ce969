package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"trade_core/internal/domain"
	"trade_core/internal/event"
	"trade_core/internal/infra/storage"
)

// JournalEngineName is the registry name of the order and trade journal.
const JournalEngineName = "journal"

const journalQueueSize = 4096

// JournalEngine persists order and trade events. The bus handler only
// enqueues; a dedicated goroutine does the database writes.
type JournalEngine struct {
	bus    *event.Bus
	store  *storage.Storage
	logger *slog.Logger

	orderHandler *event.Handler
	tradeHandler *event.Handler

	queue     chan domain.Payload
	stop      chan struct{}
	wg        conc.WaitGroup
	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewJournalEngine registers on bus and starts the writer.
func NewJournalEngine(bus *event.Bus, store *storage.Storage, logger *slog.Logger) *JournalEngine {
	j := &JournalEngine{
		bus:    bus,
		store:  store,
		logger: logger.With(slog.String("engine", JournalEngineName)),
		queue:  make(chan domain.Payload, journalQueueSize),
		stop:   make(chan struct{}),
	}
	j.orderHandler = event.NewHandler("journal.order", j.enqueue)
	j.tradeHandler = event.NewHandler("journal.trade", j.enqueue)
	bus.Register(event.TypeOrder, j.orderHandler)
	bus.Register(event.TypeTrade, j.tradeHandler)

	j.wg.Go(j.run)
	return j
}

func (j *JournalEngine) Name() string { return JournalEngineName }

// Store returns the journal storage for queries.
func (j *JournalEngine) Store() *storage.Storage {
	return j.store
}

// Dropped returns the number of records skipped because the queue was full.
func (j *JournalEngine) Dropped() int64 {
	return j.dropped.Load()
}

func (j *JournalEngine) enqueue(ev event.Event) error {
	switch ev.Data.(type) {
	case *domain.OrderData, *domain.TradeData:
	default:
		return fmt.Errorf("unexpected payload %T on %s", ev.Data, ev.Type)
	}

	select {
	case j.queue <- ev.Data:
	default:
		j.dropped.Add(1)
		j.logger.Warn("Journal queue full, record dropped", slog.String("event_type", string(ev.Type)))
	}
	return nil
}

func (j *JournalEngine) run() {
	for {
		select {
		case <-j.stop:
			for {
				select {
				case p := <-j.queue:
					j.write(p)
				default:
					return
				}
			}
		case p := <-j.queue:
			j.write(p)
		}
	}
}

func (j *JournalEngine) write(p domain.Payload) {
	var err error
	switch rec := p.(type) {
	case *domain.OrderData:
		err = j.store.SaveOrder(rec)
	case *domain.TradeData:
		err = j.store.SaveTrade(rec)
	}
	if err != nil {
		j.logger.Error("Failed to journal record", slog.Any("error", err))
	}
}

// Close unregisters, flushes the queue and closes the database.
func (j *JournalEngine) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.bus.Unregister(event.TypeOrder, j.orderHandler)
		j.bus.Unregister(event.TypeTrade, j.tradeHandler)
		close(j.stop)
		j.wg.Wait()
		err = j.store.Close()
	})
	return err
}
