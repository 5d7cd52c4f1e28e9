package correlation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/domain/shared"
)

const (
	orderKeyPrefix   = "order:"
	sessionKeyPrefix = "session_orders:"
)

// Correlator routes Side B replies back to the Side A session that asked.
//
// An order number belongs to the session that registered it last. If two
// sessions ask about the same order, replies go to the most recent one.
type Correlator struct {
	extractor *Extractor
	store     shared.KeyValueStore
	logger    *zap.Logger
}

// NewCorrelator creates a correlator
func NewCorrelator(extractor *Extractor, store shared.KeyValueStore, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		extractor: extractor,
		store:     store,
		logger:    logger.Named("correlator"),
	}
}

// ExtractOrderNumbers is a pure lookup over the configured patterns
func (c *Correlator) ExtractOrderNumbers(text string) []string {
	return c.extractor.Extract(text)
}

// RegisterOrders assigns every order to sessionID, overwriting earlier owners.
// Empty input is a no-op.
func (c *Correlator) RegisterOrders(ctx context.Context, orders []string, sessionID string) error {
	if len(orders) == 0 || sessionID == "" {
		return nil
	}
	for _, order := range orders {
		prev, existed, err := c.store.Get(ctx, orderKeyPrefix+order)
		if err == nil && existed && prev != sessionID {
			c.logger.Warn("order reassigned to another session",
				zap.String("order_number", order),
				zap.String("previous_session_id", prev),
				zap.String("session_id", sessionID),
			)
		}
		if err := c.store.Set(ctx, orderKeyPrefix+order, sessionID); err != nil {
			return fmt.Errorf("register order %s: %w", order, err)
		}
		if err := c.store.AddMember(ctx, sessionKeyPrefix+sessionID, order); err != nil {
			return fmt.Errorf("index order %s: %w", order, err)
		}
	}
	return nil
}

// ResolveSession returns the session that owns order
func (c *Correlator) ResolveSession(ctx context.Context, order string) (string, bool, error) {
	sessionID, ok, err := c.store.Get(ctx, orderKeyPrefix+order)
	if err != nil {
		return "", false, fmt.Errorf("resolve order %s: %w", order, err)
	}
	return sessionID, ok, nil
}

// OrdersForSession lists the orders sessionID currently owns. Orders since
// reassigned to another session are filtered out.
func (c *Correlator) OrdersForSession(ctx context.Context, sessionID string) ([]string, error) {
	members, err := c.store.Members(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", sessionID, err)
	}
	out := make([]string, 0, len(members))
	for _, order := range members {
		owner, ok, err := c.ResolveSession(ctx, order)
		if err != nil {
			return nil, err
		}
		if ok && owner == sessionID {
			out = append(out, order)
		}
	}
	return out, nil
}
