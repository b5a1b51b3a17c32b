package worker

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/buffer"
	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/handoff"
)

// Dispatcher schedules one sender's drained buffer for processing. Work
// items are independent and must not block each other; processing failures
// stay inside the dispatched work.
type Dispatcher interface {
	Dispatch(ctx context.Context, sender string, combined string) error
}

// GoDispatcher processes each work item on its own goroutine.
type GoDispatcher struct {
	Processor Processor
	Logger    core.Logger
}

func (d *GoDispatcher) Dispatch(ctx context.Context, sender string, combined string) error {
	if d == nil || d.Processor == nil {
		return core.BadInputError("worker: dispatcher processor is required", nil)
	}
	go func() {
		if err := d.Processor.Process(ctx, sender, combined); err != nil {
			logger := d.Logger
			if logger == nil {
				logger = glog.Nop()
			}
			if core.IsRateLimited(err) {
				logger.Info("buffered messages dropped by daily limit", "sender", sender)
				return
			}
			logger.Error("buffered message processing failed", "sender", sender, "error", err)
		}
	}()
	return nil
}

// Options configures a Worker. Zero durations fall back to the relay
// defaults (1s tick, 60s sweep, 30s idle threshold, 30m hand-off timeout).
type Options struct {
	Buffer    *buffer.Store
	Registry  handoff.Registry
	Processor Processor
	Transport core.TransportSender
	Dispatch  Dispatcher
	Logger    core.Logger

	IdleThreshold  time.Duration
	Tick           time.Duration
	SweepPeriod    time.Duration
	HandoffTimeout time.Duration
}

// Worker is the single long-lived lifecycle loop. Each tick drains every
// idle buffer and fans the entries out to independent tasks; each sweep
// expires stale hand-offs and notifies both parties.
//
// A drained sender may message again before its task finishes, so that
// task and the sender's next buffer can run concurrently. That reordering
// window is accepted rather than eliminated.
type Worker struct {
	buffer    *buffer.Store
	registry  handoff.Registry
	processor Processor
	transport core.TransportSender
	dispatch  Dispatcher
	logger    core.Logger

	idleThreshold  time.Duration
	tick           time.Duration
	sweepPeriod    time.Duration
	handoffTimeout time.Duration
}

func New(opts Options) (*Worker, error) {
	if opts.Buffer == nil || opts.Registry == nil || opts.Processor == nil {
		return nil, core.BadInputError("worker: buffer, registry and processor are required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = &GoDispatcher{Processor: opts.Processor, Logger: logger}
	}
	worker := &Worker{
		buffer:         opts.Buffer,
		registry:       opts.Registry,
		processor:      opts.Processor,
		transport:      opts.Transport,
		dispatch:       dispatch,
		logger:         logger,
		idleThreshold:  opts.IdleThreshold,
		tick:           opts.Tick,
		sweepPeriod:    opts.SweepPeriod,
		handoffTimeout: opts.HandoffTimeout,
	}
	if worker.idleThreshold <= 0 {
		worker.idleThreshold = 30 * time.Second
	}
	if worker.tick <= 0 {
		worker.tick = time.Second
	}
	if worker.sweepPeriod <= 0 {
		worker.sweepPeriod = time.Minute
	}
	if worker.handoffTimeout <= 0 {
		worker.handoffTimeout = 30 * time.Minute
	}
	return worker, nil
}

// Run blocks until ctx is cancelled, draining buffers every tick and
// sweeping expired hand-offs every sweep period.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return core.BadInputError("worker: worker is nil", nil)
	}
	w.logger.Info("lifecycle worker started",
		"tick", w.tick,
		"sweep_period", w.sweepPeriod,
		"idle_threshold", w.idleThreshold,
		"handoff_timeout", w.handoffTimeout,
	)

	tick := time.NewTicker(w.tick)
	sweep := time.NewTicker(w.sweepPeriod)
	defer tick.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("lifecycle worker stopped")
			return ctx.Err()
		case <-tick.C:
			w.DrainOnce(ctx)
		case <-sweep.C:
			w.SweepOnce(ctx)
		}
	}
}

// Start runs the worker loop on its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		_ = w.Run(ctx)
	}()
}

// DrainOnce removes every idle buffer entry and dispatches one processing
// task per sender. Each sender's failure stays inside its dispatched work
// and never reaches the loop or other senders' tasks.
func (w *Worker) DrainOnce(ctx context.Context) {
	for _, entry := range w.buffer.DrainReady(w.idleThreshold) {
		if err := w.dispatch.Dispatch(ctx, entry.Sender, entry.Combined); err != nil {
			w.logger.Error("dispatch failed", "sender", entry.Sender, "error", err)
		}
	}
}

// SweepOnce expires stale hand-offs and tells both parties the claim
// lapsed.
func (w *Worker) SweepOnce(ctx context.Context) {
	expired, err := w.registry.CleanupExpired(ctx, w.handoffTimeout)
	if err != nil {
		w.logger.Warn("hand-off sweep failed", "error", err)
		return
	}
	for _, record := range expired {
		w.logger.Info("auto-released hand-off", "customer", record.Customer, "operator", record.Operator)
		if w.transport == nil {
			continue
		}
		if _, err := w.transport.Send(ctx, record.Operator,
			"Chat with "+record.Customer+" auto-released after inactivity.", ""); err != nil {
			w.logger.Warn("auto-release notice failed", "operator", record.Operator, "error", err)
		}
		if _, err := w.transport.Send(ctx, record.Customer,
			"You're back with our assistant. How can I help?", ""); err != nil {
			w.logger.Warn("auto-release notice failed", "customer", record.Customer, "error", err)
		}
	}
}
