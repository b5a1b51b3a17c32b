// Package relay assembles the message relay: the debounce buffer, the
// hand-off registry, the routing policy and the lifecycle worker, wired
// behind one facade.
package relay

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/buffer"
	"github.com/macienko/GemsChatbot/command"
	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/handoff"
	"github.com/macienko/GemsChatbot/history"
	"github.com/macienko/GemsChatbot/query"
	"github.com/macienko/GemsChatbot/ratelimit"
	"github.com/macienko/GemsChatbot/route"
	sqlstore "github.com/macienko/GemsChatbot/store/sql"
	"github.com/macienko/GemsChatbot/worker"
)

// Relay is the assembled service. Inbound webhook traffic goes through
// HandleInbound; Start runs the lifecycle worker until the context ends.
type Relay struct {
	cfg    core.Config
	logger core.Logger

	buffer   *buffer.Store
	registry handoff.Registry
	history  *history.Store
	policy   *route.Policy
	console  *route.OperatorConsole
	commands *command.Commands
	queries  Queries
	pipeline *worker.Pipeline
	worker   *worker.Worker
}

// Queries bundles the relay's read side: active hand-offs, the archived
// message log and the responder's conversation history.
type Queries struct {
	ListHandoffs        *query.ListHandoffsQuery
	GetHandoff          *query.GetHandoffQuery
	RecentMessages      *query.RecentMessagesQuery
	ConversationHistory *query.ConversationHistoryQuery
}

type Option func(*relayOptions)

type relayOptions struct {
	logger       core.Logger
	registry     handoff.Registry
	counterStore ratelimit.CounterStore
	archive      core.MessageArchive
	transport    core.TransportSender
	responder    core.Responder
	dispatcher   worker.Dispatcher
	now          func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(o *relayOptions) { o.logger = logger }
}

// WithRegistry swaps the hand-off backing; the default is the in-process
// memory registry.
func WithRegistry(registry handoff.Registry) Option {
	return func(o *relayOptions) { o.registry = registry }
}

// WithCounterStore swaps the daily-limit counter backing; the default is
// the in-process memory store.
func WithCounterStore(store ratelimit.CounterStore) Option {
	return func(o *relayOptions) { o.counterStore = store }
}

func WithArchive(archive core.MessageArchive) Option {
	return func(o *relayOptions) { o.archive = archive }
}

func WithTransport(transport core.TransportSender) Option {
	return func(o *relayOptions) { o.transport = transport }
}

func WithResponder(responder core.Responder) Option {
	return func(o *relayOptions) { o.responder = responder }
}

// WithDispatcher replaces the goroutine-per-task dispatcher, e.g. with the
// queue-backed one in adapters/gojob.
func WithDispatcher(dispatcher worker.Dispatcher) Option {
	return func(o *relayOptions) { o.dispatcher = dispatcher }
}

// WithStores wires the durable registry, counter store and message
// archive from one repository factory. Hand-off state then survives
// restarts and lookups fail closed while the database is unreachable.
func WithStores(factory *sqlstore.RepositoryFactory) Option {
	return func(o *relayOptions) {
		if factory == nil {
			return
		}
		o.registry = factory.HandoffStore()
		o.counterStore = factory.MessageCountStore()
		o.archive = factory.MessageStore()
	}
}

// WithNow injects the clock used by the buffer, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *relayOptions) { o.now = now }
}

func New(cfg core.Config, opts ...Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := relayOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&resolved)
	}
	if resolved.transport == nil {
		return nil, core.BadInputError("relay: transport is required", nil)
	}
	if resolved.responder == nil {
		return nil, core.BadInputError("relay: responder is required", nil)
	}

	logger := resolved.logger
	if logger == nil {
		logger = glog.Nop()
	}
	registry := resolved.registry
	if registry == nil {
		registry = handoff.NewMemoryRegistry()
	}
	counterStore := resolved.counterStore
	if counterStore == nil {
		counterStore = ratelimit.NewMemoryCounterStore()
	}

	bufferStore := buffer.NewStore(buffer.Options{Now: resolved.now, Logger: logger})
	historyStore := history.NewStore()
	operators := core.NewStaticOperatorDirectory(cfg.Operators)
	limiter := ratelimit.NewDailyPolicy(counterStore, cfg.Limits.DailyMessages)

	escalator := &route.Escalator{
		Operators: operators,
		Transport: resolved.transport,
		Logger:    logger,
	}
	pipeline := &worker.Pipeline{
		Responder:        resolved.responder,
		Transport:        resolved.transport,
		Limiter:          limiter,
		Escalation:       escalator,
		Archive:          resolved.archive,
		EscalationPhrase: cfg.EscalationPhrase,
		Logger:           logger,
	}
	console := &route.OperatorConsole{
		Registry:  registry,
		Transport: resolved.transport,
		History:   historyStore,
		Archive:   resolved.archive,
		Logger:    logger,
	}
	commands := command.NewCommands(console)
	policy := &route.Policy{
		Buffer:    bufferStore,
		Registry:  registry,
		Commands:  commands,
		Operators: operators,
		Transport: resolved.transport,
		History:   historyStore,
		Archive:   resolved.archive,
		Logger:    logger,
	}

	lifecycle, err := worker.New(worker.Options{
		Buffer:         bufferStore,
		Registry:       registry,
		Processor:      pipeline,
		Transport:      resolved.transport,
		Dispatch:       resolved.dispatcher,
		Logger:         logger,
		IdleThreshold:  cfg.Buffer.IdleThreshold(),
		Tick:           cfg.Worker.Tick(),
		SweepPeriod:    cfg.Worker.SweepEvery(),
		HandoffTimeout: cfg.Handoff.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	queries := Queries{
		ListHandoffs:        query.NewListHandoffsQuery(registry),
		GetHandoff:          query.NewGetHandoffQuery(registry),
		ConversationHistory: query.NewConversationHistoryQuery(historyStore),
	}
	// The archived-message query needs the durable archive; the handler
	// stays nil-safe when the relay runs without one.
	if reader, ok := resolved.archive.(query.MessageReader); ok {
		queries.RecentMessages = query.NewRecentMessagesQuery(reader)
	} else {
		queries.RecentMessages = query.NewRecentMessagesQuery(nil)
	}

	return &Relay{
		cfg:      cfg,
		logger:   logger,
		buffer:   bufferStore,
		registry: registry,
		history:  historyStore,
		policy:   policy,
		console:  console,
		commands: commands,
		queries:  queries,
		pipeline: pipeline,
		worker:   lifecycle,
	}, nil
}

// HandleInbound routes one inbound message: operator command, forward
// across an active hand-off, or the debounce buffer.
func (r *Relay) HandleInbound(ctx context.Context, msg core.InboundMessage) (route.Outcome, error) {
	if r == nil || r.policy == nil {
		return route.OutcomeIgnored, core.BadInputError("relay: relay is not configured", nil)
	}
	return r.policy.HandleInbound(ctx, msg)
}

// Run blocks on the lifecycle worker until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if r == nil || r.worker == nil {
		return core.BadInputError("relay: relay is not configured", nil)
	}
	return r.worker.Run(ctx)
}

// Start runs the lifecycle worker on its own goroutine.
func (r *Relay) Start(ctx context.Context) {
	if r == nil || r.worker == nil {
		return
	}
	r.worker.Start(ctx)
}

// Worker exposes the lifecycle loop for callers that drive draining and
// sweeping themselves.
func (r *Relay) Worker() *worker.Worker {
	if r == nil {
		return nil
	}
	return r.worker
}

// Processor exposes the per-sender pipeline, the unit a queue consumer
// executes when dispatching is queue-backed.
func (r *Relay) Processor() worker.Processor {
	if r == nil {
		return nil
	}
	return r.pipeline
}

// Commands exposes the operator console handlers.
func (r *Relay) Commands() *command.Commands {
	if r == nil {
		return nil
	}
	return r.commands
}

// Queries exposes the read-side handlers.
func (r *Relay) Queries() Queries {
	if r == nil {
		return Queries{}
	}
	return r.queries
}

func (r *Relay) Registry() handoff.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Relay) History() *history.Store {
	if r == nil {
		return nil
	}
	return r.history
}

func (r *Relay) Config() core.Config {
	if r == nil {
		return core.Config{}
	}
	return r.cfg
}
