// Package engine hosts MainEngine, the facade that owns the bus, the adapters
// and the internal engines, together with the built-in engines.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// Engine is an internal component bound to the main engine and the bus.
type Engine interface {
	Name() string
	Close() error
}

// Factory builds an engine. It may register handlers on bus and keep m for
// commands and queries.
type Factory func(m *MainEngine, bus *event.Bus) (Engine, error)

// App is a pluggable application: metadata plus the engine that runs it.
type App struct {
	Name        string
	DisplayName string
	NewEngine   Factory
}

// LogEngineName is the registry name of the log sink.
const LogEngineName = "log"

// LogEngine writes log events to the structured logger. It is the only sink
// for messages published through WriteLog.
type LogEngine struct {
	bus     *event.Bus
	logger  *slog.Logger
	handler *event.Handler
}

// NewLogEngine registers the sink on bus.
func NewLogEngine(bus *event.Bus, logger *slog.Logger) *LogEngine {
	e := &LogEngine{bus: bus, logger: logger}
	e.handler = event.NewHandler("log.sink", e.processLogEvent)
	bus.Register(event.TypeLog, e.handler)
	return e
}

func (e *LogEngine) Name() string { return LogEngineName }

func (e *LogEngine) Close() error {
	e.bus.Unregister(event.TypeLog, e.handler)
	return nil
}

func (e *LogEngine) processLogEvent(ev event.Event) error {
	log, ok := ev.Data.(*domain.LogData)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev.Data, ev.Type)
	}
	e.logger.Log(context.Background(), log.Level, log.Msg,
		slog.String("source", log.Source),
		slog.Time("logged_at", log.Time))
	return nil
}
