// Package worker drives the relay's background lifecycle: the recurring
// tick that drains idle buffers into per-sender processing tasks, and the
// coarser sweep that expires stale hand-offs.
package worker

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
)

// Processor handles one sender's drained buffer end to end.
type Processor interface {
	Process(ctx context.Context, sender string, combined string) error
}

const (
	defaultDeliveryTimeout = 30 * time.Second
	defaultVideoSettle     = 3 * time.Second

	limitReachedReply = "You've reached your daily message limit. Please try again tomorrow."
)

// Pipeline turns one drained buffer into responder replies delivered over
// the transport. Media replies are confirmed delivered before the next
// item goes out so a caption never overtakes its video.
type Pipeline struct {
	Responder  core.Responder
	Transport  core.TransportSender
	Limiter    core.RateLimiter
	Escalation core.EscalationNotifier
	Archive    core.MessageArchive

	// EscalationPhrase marks a reply that should fan out to operators.
	EscalationPhrase string

	DeliveryTimeout time.Duration
	VideoSettle     time.Duration

	Logger core.Logger

	// Sleep is injectable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (p *Pipeline) Process(ctx context.Context, sender string, combined string) error {
	if p == nil || p.Responder == nil || p.Transport == nil {
		return core.BadInputError("worker: pipeline is not configured", nil)
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return core.BadInputError("worker: sender is required", nil)
	}

	if p.Limiter != nil {
		allowed, err := p.Limiter.Allow(ctx, sender)
		if err != nil {
			return core.ProcessingError(err, sender)
		}
		if !allowed {
			p.logger().Info("daily message limit reached", "sender", sender)
			if _, err := p.Transport.Send(ctx, sender, limitReachedReply, ""); err != nil {
				p.logger().Warn("limit notice delivery failed", "sender", sender, "error", err)
			}
			// The sender already got the notice; callers must not retry
			// this drain or the notice repeats.
			return core.RateLimitedError(sender)
		}
	}

	replies, err := p.Responder.Respond(ctx, sender, combined)
	if err != nil {
		return core.ProcessingError(err, sender)
	}

	escalated := false
	for _, reply := range replies {
		if p.EscalationPhrase != "" && strings.Contains(reply.Body, p.EscalationPhrase) {
			escalated = true
		}
		if err := p.deliver(ctx, sender, reply); err != nil {
			return err
		}
	}

	if escalated && p.Escalation != nil {
		if err := p.Escalation.NotifyEscalation(ctx, sender, combined); err != nil {
			p.logger().Warn("escalation fan-out failed", "sender", sender, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) deliver(ctx context.Context, sender string, reply core.ReplyItem) error {
	switch {
	case reply.VideoURL != "":
		body := reply.Body
		if body == "" {
			body = " "
		}
		if err := p.sendAndConfirm(ctx, sender, body, reply.VideoURL); err != nil {
			return err
		}
		p.sleep(p.videoSettle())
	case reply.ImageURL != "":
		if err := p.sendAndConfirm(ctx, sender, reply.Body, reply.ImageURL); err != nil {
			return err
		}
	case reply.Body != "":
		if err := p.sendAndConfirm(ctx, sender, reply.Body, ""); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) sendAndConfirm(ctx context.Context, sender string, body string, mediaURL string) error {
	deliveryID, err := p.Transport.Send(ctx, sender, body, mediaURL)
	if err != nil {
		return core.SendError(err, sender)
	}
	if p.Archive != nil && strings.TrimSpace(body) != "" {
		if archiveErr := p.Archive.Record(ctx, sender, core.MessageDirectionOutgoing, body); archiveErr != nil {
			p.logger().Warn("message archive failed", "sender", sender, "error", archiveErr)
		}
	}
	status, err := p.Transport.AwaitDelivery(ctx, deliveryID, p.deliveryTimeout())
	if err != nil {
		p.logger().Warn("delivery confirmation failed", "sender", sender, "delivery_id", deliveryID, "error", err)
		return nil
	}
	if status == core.DeliveryStatusFailed || status == core.DeliveryStatusUndelivered {
		p.logger().Warn("message not delivered", "sender", sender, "delivery_id", deliveryID, "status", status)
	}
	return nil
}

func (p *Pipeline) deliveryTimeout() time.Duration {
	if p != nil && p.DeliveryTimeout > 0 {
		return p.DeliveryTimeout
	}
	return defaultDeliveryTimeout
}

func (p *Pipeline) videoSettle() time.Duration {
	if p != nil && p.VideoSettle > 0 {
		return p.VideoSettle
	}
	return defaultVideoSettle
}

func (p *Pipeline) sleep(d time.Duration) {
	if p != nil && p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (p *Pipeline) logger() core.Logger {
	if p == nil || p.Logger == nil {
		return glog.Nop()
	}
	return p.Logger
}
