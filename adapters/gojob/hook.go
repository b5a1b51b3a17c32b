package gojob

import (
	"context"

	jobworker "github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
)

// LoggerHook logs queue worker lifecycle events.
type LoggerHook struct {
	Logger core.Logger
}

func (h *LoggerHook) OnStart(_ context.Context, event jobworker.Event) {
	h.log().Debug("processing job started", "job_id", eventJobID(event), "attempt", event.Attempt)
}

func (h *LoggerHook) OnSuccess(_ context.Context, event jobworker.Event) {
	h.log().Info("processing job succeeded",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"duration", event.Duration,
	)
}

func (h *LoggerHook) OnFailure(_ context.Context, event jobworker.Event) {
	h.log().Error("processing job failed",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"error", event.Err,
	)
}

func (h *LoggerHook) OnRetry(_ context.Context, event jobworker.Event) {
	h.log().Warn("processing job scheduled for retry",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"delay", event.Delay,
	)
}

func eventJobID(event jobworker.Event) string {
	if event.Message != nil {
		return event.Message.JobID
	}
	if event.Delivery != nil && event.Delivery.Message() != nil {
		return event.Delivery.Message().JobID
	}
	return ""
}

func (h *LoggerHook) log() core.Logger {
	if h == nil || h.Logger == nil {
		return glog.Nop()
	}
	return h.Logger
}

var _ jobworker.Hook = (*LoggerHook)(nil)
