package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"gotsol/core/events"
	"gotsol/core/state"
	"gotsol/core/types"
	"gotsol/native/common"
	"gotsol/native/merchant"
	"gotsol/observability"
	"gotsol/storage"
)

// ModuleMerchant is the pause-guard name of the merchant module.
const ModuleMerchant = "merchant"

// EventSink receives the events of a committed state transition.
type EventSink interface {
	HandleEvents(ctx context.Context, evts []types.Event) error
}

// StateProcessor executes merchant operations one at a time against a
// journaled view of the database. A transition either commits every write in
// one batch and publishes its events, or leaves no trace at all.
type StateProcessor struct {
	mu     sync.RWMutex
	db     storage.Database
	params merchant.Params
	clock  clockwork.Clock
	pauses common.PauseView
	sinks  []EventSink
	logger *slog.Logger
	tracer trace.Tracer
}

// Option customises a StateProcessor.
type Option func(*StateProcessor)

// WithClock sets the time source stamped into records and events.
func WithClock(clock clockwork.Clock) Option {
	return func(sp *StateProcessor) {
		if clock != nil {
			sp.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sp *StateProcessor) {
		if logger != nil {
			sp.logger = logger
		}
	}
}

// WithTracer sets the tracer used for apply spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(sp *StateProcessor) {
		if tracer != nil {
			sp.tracer = tracer
		}
	}
}

// WithPauses installs the pause view consulted before every mutation.
func WithPauses(pauses common.PauseView) Option {
	return func(sp *StateProcessor) { sp.pauses = pauses }
}

// WithSinks appends committed-event sinks.
func WithSinks(sinks ...EventSink) Option {
	return func(sp *StateProcessor) {
		for _, sink := range sinks {
			if sink != nil {
				sp.sinks = append(sp.sinks, sink)
			}
		}
	}
}

// NewStateProcessor validates params and binds the processor to db.
func NewStateProcessor(db storage.Database, params merchant.Params, opts ...Option) (*StateProcessor, error) {
	if db == nil {
		return nil, fmt.Errorf("state processor: database required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	sp := &StateProcessor{
		db:     db,
		params: params,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("gotsol"),
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp, nil
}

// Params returns the merchant parameters the processor was built with.
func (sp *StateProcessor) Params() merchant.Params { return sp.params }

func (sp *StateProcessor) configureMerchantEngine(manager *state.Manager, emitter events.Emitter) *merchant.Engine {
	engine := merchant.NewEngine()
	engine.SetParams(sp.params)
	engine.SetState(manager)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return sp.clock.Now().Unix() })
	return engine
}

// Apply runs fn as a single atomic state transition named operation. On
// success the writes are committed and the emitted events are returned and
// delivered to every sink. On failure nothing is written or emitted.
func (sp *StateProcessor) Apply(ctx context.Context, operation string, fn func(*merchant.Engine) error) ([]types.Event, error) {
	if err := common.Guard(sp.pauses, ModuleMerchant); err != nil {
		return nil, err
	}
	ctx, span := sp.tracer.Start(ctx, "processor.apply", trace.WithAttributes(attribute.String("operation", operation)))
	defer span.End()

	start := sp.clock.Now()
	committed, writes, err := sp.commit(operation, fn)
	if err != nil {
		sp.observeFailure(ctx, span, operation, start, err)
		return nil, err
	}

	observability.Apply().Observe(operation, "", sp.clock.Since(start))
	span.SetAttributes(attribute.Int("writes", writes), attribute.Int("events", len(committed)))
	sp.logger.DebugContext(ctx, "state transition committed",
		slog.String("operation", operation),
		slog.Int("writes", writes),
		slog.Int("events", len(committed)))
	sp.deliver(ctx, committed)
	return committed, nil
}

// commit runs fn against a fresh journal under the write lock. The journal is
// discarded unless fn returns cleanly, including when fn panics.
func (sp *StateProcessor) commit(operation string, fn func(*merchant.Engine) error) ([]types.Event, int, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	journal := storage.NewJournal(sp.db)
	buffer := &events.Buffer{}
	committed := false
	defer func() {
		if !committed {
			journal.Discard()
			buffer.Reset()
		}
	}()

	engine := sp.configureMerchantEngine(state.NewManager(journal), buffer)
	if err := fn(engine); err != nil {
		return nil, 0, err
	}
	writes := journal.Len()
	if err := journal.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit %s: %w", operation, err)
	}
	committed = true
	return buffer.Drain(), writes, nil
}

func (sp *StateProcessor) observeFailure(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	_, name, class, ok := merchant.Code(err)
	if !ok {
		class = merchant.ClassInternal
		name = "Internal"
	}
	observability.Apply().Observe(operation, string(class), sp.clock.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, name)
	level := slog.LevelInfo
	if !ok {
		level = slog.LevelError
	}
	sp.logger.Log(ctx, level, "state transition rejected",
		slog.String("operation", operation),
		slog.String("code", name),
		slog.Any("error", err))
}

func (sp *StateProcessor) deliver(ctx context.Context, evts []types.Event) {
	if len(evts) == 0 {
		return
	}
	for _, sink := range sp.sinks {
		if err := sink.HandleEvents(ctx, evts); err != nil {
			sp.logger.ErrorContext(ctx, "event sink failed", slog.Any("error", err))
		}
	}
}

// View runs a read-only function against committed state. Writes made by fn
// are discarded.
func (sp *StateProcessor) View(fn func(*merchant.Engine, *state.Manager) error) error {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	journal := storage.NewJournal(sp.db)
	defer journal.Discard()
	manager := state.NewManager(journal)
	return fn(sp.configureMerchantEngine(manager, events.NoopEmitter{}), manager)
}

// Genesis applies ledger allocations atomically. It is meant for node
// bootstrap and tests and bypasses the pause guard.
func (sp *StateProcessor) Genesis(fn func(*state.Manager) error) error {
	if fn == nil {
		return errors.New("genesis: nil function")
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	journal := storage.NewJournal(sp.db)
	if err := fn(state.NewManager(journal)); err != nil {
		journal.Discard()
		return err
	}
	return journal.Commit()
}
