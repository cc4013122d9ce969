package event

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"trade_core/internal/domain"
)

const (
	defaultPollInterval = time.Second
	defaultJoinTimeout  = time.Second
)

// Config configures the bus goroutines.
type Config struct {
	// TimerInterval is the sleep between two timer events. A non-positive
	// value is a misuse: the timer goroutine then floods the queue.
	TimerInterval time.Duration
	// PollInterval bounds how long the dispatch goroutine waits on an empty queue.
	PollInterval time.Duration
	// JoinTimeout bounds how long Stop waits for each goroutine.
	JoinTimeout time.Duration
}

// DefaultConfig returns a one second timer.
func DefaultConfig() Config {
	return Config{
		TimerInterval: time.Second,
		PollInterval:  defaultPollInterval,
		JoinTimeout:   defaultJoinTimeout,
	}
}

// ShutdownReport tells whether each goroutine exited within its join timeout.
type ShutdownReport struct {
	DispatchStopped bool
	TimerStopped    bool
}

// Clean reports whether both goroutines terminated.
func (r ShutdownReport) Clean() bool {
	return r.DispatchStopped && r.TimerStopped
}

// Bus is a FIFO event dispatcher with one dispatch goroutine and one timer
// goroutine. Put is safe from any goroutine and never blocks.
type Bus struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	qmu    sync.Mutex
	queue  []Event
	notify chan struct{}

	// Handler lists are copy-on-write: registration replaces the slice,
	// dispatch reads a snapshot under the read lock.
	regMu    sync.RWMutex
	handlers map[Type][]*Handler
	general  []*Handler

	lifeMu     sync.Mutex
	active     bool
	stop       chan struct{}
	dispatchWG *conc.WaitGroup
	timerWG    *conc.WaitGroup

	// Closed when the last dispatch goroutine returns. It outlives an
	// unclean Stop so that Start never runs two dispatchers.
	dispatchDone chan struct{}
}

// NewBus creates a stopped bus.
func NewBus(cfg Config, logger *slog.Logger) *Bus {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "eventbus")),
		notify:   make(chan struct{}, 1),
		handlers: make(map[Type][]*Handler),
	}
	b.metrics = newMetrics(b.QueueLen)
	return b
}

// Metrics returns the bus counters.
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}

// Start launches the dispatch and timer goroutines. Starting an active bus is
// a no-op. While the dispatch goroutine of an unclean Stop is still inside a
// handler, Start logs a warning and leaves the bus inactive.
func (b *Bus) Start() {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	if b.active {
		return
	}
	if b.dispatchDone != nil {
		select {
		case <-b.dispatchDone:
		default:
			b.logger.Warn("Event bus not restarted, previous dispatch goroutine still running")
			return
		}
	}
	b.active = true
	b.stop = make(chan struct{})
	b.dispatchWG = &conc.WaitGroup{}
	b.timerWG = &conc.WaitGroup{}

	stop, done := b.stop, make(chan struct{})
	b.dispatchDone = done
	b.dispatchWG.Go(func() {
		defer close(done)
		b.run(stop)
	})
	b.timerWG.Go(func() { b.runTimer(stop) })
	b.logger.Info("Event bus started", slog.Duration("timer_interval", b.cfg.TimerInterval))
}

// Stop signals both goroutines and waits for each up to JoinTimeout. A
// goroutine that does not exit in time is reported and logged, never raised.
// Stopping an inactive bus is a no-op. Events still queued stay queued.
func (b *Bus) Stop() ShutdownReport {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	if !b.active {
		return ShutdownReport{DispatchStopped: true, TimerStopped: true}
	}
	b.active = false
	close(b.stop)

	report := ShutdownReport{
		DispatchStopped: b.join("dispatch", b.dispatchWG),
		TimerStopped:    b.join("timer", b.timerWG),
	}
	if report.Clean() {
		b.logger.Info("Event bus stopped")
	}
	return report
}

func (b *Bus) join(name string, wg *conc.WaitGroup) bool {
	done := make(chan *panics.Recovered, 1)
	go func() { done <- wg.WaitAndRecover() }()

	timer := time.NewTimer(b.cfg.JoinTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r != nil {
			b.logger.Error("Event bus goroutine panicked",
				slog.String("goroutine", name),
				slog.Any("panic", r.Value),
				slog.String("stack", string(r.Stack)))
		}
		return true
	case <-timer.C:
		b.logger.Warn("Event bus goroutine did not stop in time",
			slog.String("goroutine", name),
			slog.Duration("timeout", b.cfg.JoinTimeout))
		return false
	}
}

// Active reports whether the bus goroutines are running.
func (b *Bus) Active() bool {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()
	return b.active
}

// Put enqueues ev. It never blocks and may be called from inside a handler.
func (b *Bus) Put(ev Event) {
	b.qmu.Lock()
	b.queue = append(b.queue, ev)
	b.qmu.Unlock()

	b.metrics.recordPut()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// QueueLen returns the number of events waiting for dispatch.
func (b *Bus) QueueLen() int {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return len(b.queue)
}

func (b *Bus) pop() (Event, bool) {
	b.qmu.Lock()
	defer b.qmu.Unlock()

	if len(b.queue) == 0 {
		return Event{}, false
	}
	ev := b.queue[0]
	b.queue[0] = Event{}
	b.queue = b.queue[1:]
	if len(b.queue) == 0 {
		b.queue = nil
	}
	return ev, true
}

// run is the dispatch loop. It is the only goroutine that invokes handlers.
func (b *Bus) run(stop <-chan struct{}) {
	poll := time.NewTimer(b.cfg.PollInterval)
	defer poll.Stop()

	for {
		for {
			select {
			case <-stop:
				return
			default:
			}
			ev, ok := b.pop()
			if !ok {
				break
			}
			b.process(ev)
		}

		select {
		case <-stop:
			return
		case <-b.notify:
		case <-poll.C:
		}
		poll.Reset(b.cfg.PollInterval)
	}
}

func (b *Bus) runTimer(stop <-chan struct{}) {
	for {
		timer := time.NewTimer(b.cfg.TimerInterval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		b.Put(New(TypeTimer, nil))
	}
}

// process invokes the type handlers, then the general handlers, each in
// registration order.
func (b *Bus) process(ev Event) {
	start := time.Now()

	b.regMu.RLock()
	typed := b.handlers[ev.Type]
	general := b.general
	b.regMu.RUnlock()

	for _, h := range typed {
		b.invoke(h, ev)
	}
	for _, h := range general {
		b.invoke(h, ev)
	}

	b.metrics.recordDispatch(time.Since(start))
}

func (b *Bus) invoke(h *Handler, ev Event) {
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = h.fn(ev) })

	herr := &domain.HandlerError{EventType: string(ev.Type), Handler: h.name}
	attrs := []any{
		slog.String("event_type", string(ev.Type)),
		slog.String("handler", h.name),
	}
	if r := pc.Recovered(); r != nil {
		herr.Panicked = true
		herr.Err = fmt.Errorf("%v", r.Value)
		attrs = append(attrs, slog.String("error_kind", "panic"), slog.String("stack", string(r.Stack)))
	} else if err != nil {
		herr.Err = err
		attrs = append(attrs, slog.String("error_kind", fmt.Sprintf("%T", err)))
	} else {
		return
	}

	b.metrics.recordHandlerFailure()
	attrs = append(attrs, slog.Any("error", herr))
	b.logger.Error("Event handler failed", attrs...)
}

// Register adds h to the handlers of typ. Registering twice is a no-op.
func (b *Bus) Register(typ Type, h *Handler) {
	if h == nil {
		return
	}
	b.regMu.Lock()
	defer b.regMu.Unlock()

	list := b.handlers[typ]
	if slices.Contains(list, h) {
		return
	}
	b.handlers[typ] = append(slices.Clip(list), h)
}

// Unregister removes h from typ. The type entry is dropped once empty.
func (b *Bus) Unregister(typ Type, h *Handler) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	list, ok := b.handlers[typ]
	if !ok {
		return
	}
	i := slices.Index(list, h)
	if i < 0 {
		return
	}
	next := slices.Delete(slices.Clone(list), i, i+1)
	if len(next) == 0 {
		delete(b.handlers, typ)
		return
	}
	b.handlers[typ] = next
}

// RegisterGeneral adds h to the handlers invoked for every event, timer included.
func (b *Bus) RegisterGeneral(h *Handler) {
	if h == nil {
		return
	}
	b.regMu.Lock()
	defer b.regMu.Unlock()

	if slices.Contains(b.general, h) {
		return
	}
	b.general = append(slices.Clip(b.general), h)
}

// UnregisterGeneral removes a general handler.
func (b *Bus) UnregisterGeneral(h *Handler) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	i := slices.Index(b.general, h)
	if i < 0 {
		return
	}
	b.general = slices.Delete(slices.Clone(b.general), i, i+1)
}

// HandlerCount returns the number of handlers registered for typ.
func (b *Bus) HandlerCount(typ Type) int {
	b.regMu.RLock()
	defer b.regMu.RUnlock()
	return len(b.handlers[typ])
}
