package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/application/dedup"
	"github.com/erp/chatbridge/internal/application/filter"
	"github.com/erp/chatbridge/internal/domain/message"
	"github.com/erp/chatbridge/internal/domain/shared"
)

// pollSideA runs one Side A cycle. A failed session listing ends the cycle;
// a failed fetch skips only that session. Only fatal errors are returned.
func (c *Coordinator) pollSideA(ctx context.Context) error {
	handles, err := c.listSessions(ctx)
	if err != nil {
		if shared.IsFatal(err) {
			return err
		}
		c.rec.RecordPollError(string(message.SourceSideA))
		c.logger.Warn("listing unread sessions failed", zap.Error(err))
		return nil
	}

	for _, h := range handles {
		if ctx.Err() != nil {
			return nil
		}

		sessionID, ok := c.deps.SideA.ResolveSessionID(ctx, h)
		if !ok {
			c.logger.Debug("skipping unmonitored session", zap.String("display_name", h.DisplayName))
			continue
		}

		raws, err := c.fetchSession(ctx, h)
		if err != nil {
			if shared.IsFatal(err) {
				return err
			}
			c.rec.RecordPollError(string(message.SourceSideA))
			c.logger.Warn("fetching session messages failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			continue
		}

		for _, raw := range raws {
			c.intake(ctx, message.SourceSideA, sessionID, raw)
		}
	}
	return nil
}

// pollSideB runs one Side B cycle
func (c *Coordinator) pollSideB(ctx context.Context) error {
	callCtx, cancel := c.adapterContext(ctx)
	raws, err := c.deps.SideB.FetchRecentMessages(callCtx, c.cfg.SideBWindow)
	cancel()
	if err != nil {
		if shared.IsFatal(err) {
			return err
		}
		c.rec.RecordPollError(string(message.SourceSideB))
		c.logger.Warn("fetching vendor replies failed", zap.Error(err))
		return nil
	}

	for _, raw := range raws {
		if ctx.Err() != nil {
			return nil
		}
		c.intake(ctx, message.SourceSideB, "", raw)
	}
	return nil
}

func (c *Coordinator) listSessions(ctx context.Context) ([]message.SessionHandle, error) {
	callCtx, cancel := c.adapterContext(ctx)
	defer cancel()
	return c.deps.SideA.ListSessionsWithUnread(callCtx)
}

func (c *Coordinator) fetchSession(ctx context.Context, h message.SessionHandle) ([]message.RawMessage, error) {
	callCtx, cancel := c.adapterContext(ctx)
	defer cancel()
	return c.deps.SideA.FetchRecentMessages(callCtx, h, c.cfg.SideAWindow)
}

// intake moves one fetched message through FILTERED and DEDUP_CHECKED and
// hands it to the drainer. Rejected and duplicate messages end here.
func (c *Coordinator) intake(ctx context.Context, source message.Source, sessionID string, raw message.RawMessage) {
	fields := []zap.Field{zap.Stringer("source", source), zap.String("session_id", sessionID)}
	lc := newLifecycle(c.logger.With(fields...), message.StageDiscovered)

	if !c.acceptance(source).Accept(raw.Sender, raw.Body) {
		lc.to(message.StageDropped, zap.String("reason", "filtered"))
		return
	}
	lc.to(message.StageFiltered)

	queue := dedup.SideBQueue
	if source == message.SourceSideA {
		queue = dedup.SideAQueue(sessionID)
	}
	if c.deps.Dedup.IsProcessed(ctx, queue, raw.Body) {
		lc.to(message.StageDropped, zap.String("reason", "duplicate"))
		return
	}
	lc.to(message.StageDedupChecked)

	// An unmarked body would be forwarded again on every cycle; leave it
	// for the next cycle instead.
	if err := c.deps.Dedup.MarkProcessed(ctx, queue, raw.Body); err != nil {
		c.drop(source, OutcomeStoreError)
		lc.to(message.StageDropped, zap.String("reason", string(OutcomeStoreError)))
		c.logger.Error("marking message processed failed, will retry next cycle",
			append(fields, zap.String("queue", queue), zap.Error(err))...)
		return
	}

	opts := []message.Option{
		message.WithSender(raw.Sender),
		message.WithOrderNumbers(c.deps.Correlator.ExtractOrderNumbers(raw.Body)),
	}
	if sessionID != "" {
		opts = append(opts, message.WithSessionID(sessionID))
	}
	msg, err := message.New(source, raw.Body, opts...)
	if err != nil {
		c.drop(source, OutcomeUnroutable)
		lc.to(message.StageDropped, zap.String("reason", string(OutcomeUnroutable)))
		c.logger.Warn("discarding malformed message", append(fields, zap.Error(err))...)
		return
	}

	select {
	case c.handoff <- msg:
	case <-ctx.Done():
		c.drop(source, OutcomeAborted)
		lc.to(message.StageDropped, zap.String("reason", string(OutcomeAborted)))
		c.logger.Warn("shutdown before hand-off, message not forwarded",
			zap.String("message_id", msg.ID().String()),
			zap.String("session_id", sessionID),
		)
	}
}

func (c *Coordinator) acceptance(source message.Source) *filter.Acceptance {
	if source == message.SourceSideA {
		return c.deps.SideAFilter
	}
	return c.deps.SideBFilter
}

func (c *Coordinator) drop(source message.Source, outcome Outcome) {
	c.dropped.Add(1)
	c.rec.RecordOutcome(string(source), string(outcome))
}
