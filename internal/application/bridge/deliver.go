package bridge

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/application/filter"
	"github.com/erp/chatbridge/internal/application/retry"
	"github.com/erp/chatbridge/internal/domain/message"
	"github.com/erp/chatbridge/internal/domain/shared"
	"github.com/erp/chatbridge/internal/infrastructure/logger"
	"github.com/erp/chatbridge/internal/infrastructure/telemetry"
)

// drainLoop is the only goroutine that touches the session buffer
func (c *Coordinator) drainLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.absorb()
			if n := c.buffer.Total(); n > 0 {
				c.logger.Warn("shutting down with undelivered messages", zap.Int("count", n))
			}
			return nil
		case msg := <-c.handoff:
			c.enqueue(msg)
		case <-ticker.C:
			if err := c.drainOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// absorb moves everything waiting on the hand-off channel into the buffer
func (c *Coordinator) absorb() {
	for {
		select {
		case msg := <-c.handoff:
			c.enqueue(msg)
		default:
			return
		}
	}
}

func (c *Coordinator) enqueue(msg message.Message) {
	if evicted, dropped := c.buffer.Push(msg.BufferKey(), msg); dropped {
		c.drop(evicted.Source(), OutcomeAborted)
		c.rec.RecordBufferOverflow()
		c.logger.Warn("session buffer full, oldest message dropped",
			zap.String("message_id", evicted.ID().String()),
			zap.String("buffer_key", msg.BufferKey()),
		)
	}
	newLifecycle(c.logger, message.StageDedupChecked).to(message.StageBuffered,
		zap.String("message_id", msg.ID().String()),
		zap.String("buffer_key", msg.BufferKey()),
	)
	c.updateDepth()
}

func (c *Coordinator) updateDepth() {
	n := c.buffer.Total()
	c.depth.Store(int64(n))
	c.rec.SetBufferDepth(n)
}

// drainOnce delivers everything buffered, session by session in first-seen
// order. A fatal adapter error stops the drain and is returned.
func (c *Coordinator) drainOnce(ctx context.Context) error {
	c.absorb()

	for _, key := range c.buffer.Keys() {
		pending := c.buffer.Drain(key)
		c.updateDepth()

		for i, msg := range pending {
			if ctx.Err() != nil {
				for _, rest := range pending[i:] {
					c.drop(rest.Source(), OutcomeAborted)
				}
				c.logger.Warn("shutdown during drain, messages not forwarded",
					zap.String("buffer_key", key),
					zap.Int("count", len(pending)-i),
				)
				return nil
			}
			if err := c.process(ctx, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// process takes one buffered message from CORRELATING to a terminal stage.
// Only a fatal adapter error is returned.
func (c *Coordinator) process(ctx context.Context, msg message.Message) error {
	start := time.Now()
	source := msg.Source()
	target := source.Opposite()

	ctx, span := telemetry.StartSpan(ctx, "bridge.deliver", telemetry.WithAttributes(
		attribute.String("message.id", msg.ID().String()),
		attribute.String("bridge.source", source.String()),
		attribute.String("bridge.session_id", msg.SessionID()),
	))
	defer span.End()

	ctx = logger.WithContext(ctx, c.logger.With(
		zap.String("message_id", msg.ID().String()),
		zap.Stringer("source", source),
	))
	log := logger.L(ctx)
	lc := newLifecycle(log, message.StageBuffered)

	finish := func(outcome Outcome) {
		c.rec.ObserveDelivery(target.String(), time.Since(start))
		span.SetAttributes(attribute.String("bridge.outcome", string(outcome)))
		if outcome == OutcomeDelivered {
			c.delivered.Add(1)
			c.rec.RecordOutcome(source.String(), string(outcome))
			lc.to(message.StageDelivered)
			return
		}
		c.drop(source, outcome)
		lc.to(message.StageDropped, zap.String("reason", string(outcome)))
	}

	lc.to(message.StageCorrelating)
	if !msg.HasOrderNumbers() {
		log.Warn("no order number found, message cannot be routed",
			zap.String("session_id", msg.SessionID()),
			zap.Error(shared.Unroutable("no order number in %q", msg.Content())),
		)
		finish(OutcomeUnroutable)
		return nil
	}
	orders := msg.OrderNumbers()
	log = log.With(zap.Strings("order_numbers", orders))

	var send func(ctx context.Context) error
	switch source {
	case message.SourceSideA:
		if err := c.deps.Correlator.RegisterOrders(ctx, orders, msg.SessionID()); err != nil {
			// The request is still forwarded; only the reply route is lost.
			log.Error("registering orders failed, reply will not be routable",
				zap.String("session_id", msg.SessionID()),
				zap.Error(err),
			)
			telemetry.RecordError(span, err)
		}
		body := msg.Content()
		send = func(ctx context.Context) error {
			return c.deps.SideB.SendMessage(ctx, body)
		}

	case message.SourceSideB:
		primary, _ := msg.PrimaryOrder()
		sessionID, ok, err := c.deps.Correlator.ResolveSession(ctx, primary)
		if err != nil {
			log.Error("resolving reply session failed", zap.Error(err))
			telemetry.RecordError(span, err)
			finish(OutcomeStoreError)
			return nil
		}
		if !ok {
			log.Warn("no session registered for order, reply dropped",
				zap.Error(shared.Unroutable("order %s has no session", primary)),
			)
			finish(OutcomeUnroutable)
			return nil
		}
		body := filter.SanitizeReply(msg.Content())
		if body == "" {
			log.Warn("reply is empty after sanitising", zap.String("session_id", sessionID))
			finish(OutcomeUnroutable)
			return nil
		}
		log = log.With(zap.String("session_id", sessionID))
		span.SetAttributes(attribute.String("bridge.session_id", sessionID))
		send = func(ctx context.Context) error {
			return c.deps.SideA.SendMessage(ctx, sessionID, body)
		}
	}

	lc.to(message.StageDelivering)
	attempts, err := c.cfg.Retry.Do(ctx, func(attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := c.adapterContext(ctx)
		defer cancel()
		err := send(callCtx)
		c.rec.RecordSendAttempt(target.String(), err)
		return err
	}, func(attempt int, err error, next time.Duration) {
		log.Warn("send failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
		telemetry.AddEvent(span, "send.retry", attribute.Int("attempt", attempt))
		lc.to(message.StageDelivering, zap.Int("attempt", attempt+1))
	})

	switch {
	case err == nil:
		log.Info("message delivered",
			zap.Stringer("target", target),
			zap.Int("attempts", attempts),
		)
		finish(OutcomeDelivered)
		return nil
	case shared.IsFatal(err):
		telemetry.RecordError(span, err)
		finish(OutcomeFatal)
		return err
	case errors.Is(err, retry.ErrExhausted):
		telemetry.RecordError(span, err)
		log.Error("delivery failed, message dropped",
			zap.Stringer("target", target),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		finish(OutcomeExhausted)
		return nil
	default:
		log.Warn("delivery aborted by shutdown", zap.Int("attempts", attempts), zap.Error(err))
		finish(OutcomeAborted)
		return nil
	}
}
