package event

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkBus_Process measures dispatch of one event to one handler,
// excluding queue overhead.
func BenchmarkBus_Process(b *testing.B) {
	bus := NewBus(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus.Register(TypeTick, NewHandler("noop", func(Event) error { return nil }))
	ev := NewCustom(TypeTick, nil)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.process(ev)
	}
}

// BenchmarkBus_FullPipeline measures end-to-end Put to handler delivery.
func BenchmarkBus_FullPipeline(b *testing.B) {
	cfg := DefaultConfig()
	cfg.TimerInterval = time.Hour
	bus := NewBus(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var seen atomic.Int64
	bus.Register(TypeTick, NewHandler("count", func(Event) error {
		seen.Add(1)
		return nil
	}))
	bus.Start()
	defer bus.Stop()

	ev := NewCustom(TypeTick, nil)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.Put(ev)
	}
	for seen.Load() < int64(b.N) {
		time.Sleep(time.Microsecond)
	}
}
