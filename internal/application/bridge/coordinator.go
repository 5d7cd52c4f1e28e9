// Package bridge relays order-support requests from Side A to Side B and
// routes Side B replies back to the Side A session that asked.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/chatbridge/internal/application/buffer"
	"github.com/erp/chatbridge/internal/application/correlation"
	"github.com/erp/chatbridge/internal/application/dedup"
	"github.com/erp/chatbridge/internal/application/filter"
	"github.com/erp/chatbridge/internal/domain/message"
	"github.com/erp/chatbridge/internal/domain/shared"
)

// Worker names
const (
	WorkerSideA   = "side_a_poller"
	WorkerSideB   = "side_b_poller"
	WorkerDrainer = "drainer"
)

// ErrAlreadyStarted is returned by a second call to Start
var ErrAlreadyStarted = errors.New("bridge: coordinator already started")

// Dependencies are the collaborators the coordinator drives
type Dependencies struct {
	SideA       shared.SessionAdapter
	SideB       shared.FeedAdapter
	Dedup       *dedup.Store
	Correlator  *correlation.Correlator
	SideAFilter *filter.Acceptance
	SideBFilter *filter.Acceptance
	Recorder    Recorder
}

// Coordinator owns the pipeline: two pollers feed accepted messages over a
// bounded channel to a single drainer, which alone owns the session buffer.
type Coordinator struct {
	deps    Dependencies
	cfg     Config
	logger  *zap.Logger
	rec     Recorder
	limiter *rate.Limiter

	handoff chan message.Message
	buffer  *buffer.SessionBuffer[message.Message]

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	started atomic.Bool

	mu      sync.Mutex
	fatal   []error
	running map[string]bool

	delivered atomic.Int64
	dropped   atomic.Int64
	depth     atomic.Int64
}

// NewCoordinator creates a coordinator. Zero config fields fall back to DefaultConfig.
func NewCoordinator(deps Dependencies, cfg Config, logger *zap.Logger) *Coordinator {
	cfg = withDefaults(cfg)
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}

	return &Coordinator{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.Named("bridge"),
		rec:     rec,
		limiter: rate.NewLimiter(limit, 1),
		handoff: make(chan message.Message, cfg.HandoffCapacity),
		buffer:  buffer.New[message.Message](cfg.BufferMaxLength),
		done:    make(chan struct{}),
		running: make(map[string]bool, 3),
	}
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SideAWindow <= 0 {
		cfg.SideAWindow = def.SideAWindow
	}
	if cfg.SideBWindow <= 0 {
		cfg.SideBWindow = def.SideBWindow
	}
	if cfg.SideAPollInterval <= 0 {
		cfg.SideAPollInterval = def.SideAPollInterval
	}
	if cfg.SideBPollInterval <= 0 {
		cfg.SideBPollInterval = def.SideBPollInterval
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = def.AdapterTimeout
	}
	if cfg.HandoffCapacity <= 0 {
		cfg.HandoffCapacity = def.HandoffCapacity
	}
	if cfg.BufferMaxLength <= 0 {
		cfg.BufferMaxLength = def.BufferMaxLength
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	return cfg
}

// Start launches the three worker loops
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(3)
	go c.runWorker(ctx, WorkerSideA, func(ctx context.Context) error {
		return c.pollLoop(ctx, c.cfg.SideAPollInterval, c.pollSideA)
	})
	go c.runWorker(ctx, WorkerSideB, func(ctx context.Context) error {
		return c.pollLoop(ctx, c.cfg.SideBPollInterval, c.pollSideB)
	})
	go c.runWorker(ctx, WorkerDrainer, c.drainLoop)

	go func() {
		c.wg.Wait()
		close(c.done)
	}()

	c.logger.Info("bridge coordinator started",
		zap.Int("side_a_window", c.cfg.SideAWindow),
		zap.Int("side_b_window", c.cfg.SideBWindow),
		zap.Int("max_attempts", c.cfg.Retry.MaxAttempts),
		zap.Duration("retry_delay", c.cfg.Retry.Delay),
		zap.Duration("send_interval", c.cfg.SendInterval),
	)
	return nil
}

// Stop cancels the workers and waits for them to return. In-flight adapter
// calls are allowed to finish; ctx bounds how long Stop waits.
func (c *Coordinator) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if !c.started.Load() {
		return nil
	}

	select {
	case <-c.done:
		c.logger.Info("bridge coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once every worker has returned
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until every worker has returned and reports the fatal
// errors that stopped any of them.
func (c *Coordinator) Wait() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.fatal...)
}

// Stats is a point-in-time view of the coordinator
type Stats struct {
	Workers     map[string]bool `json:"workers"`
	Delivered   int64           `json:"delivered"`
	Dropped     int64           `json:"dropped"`
	BufferDepth int64           `json:"buffer_depth"`
}

// Stats returns current counters and worker liveness
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	workers := make(map[string]bool, len(c.running))
	for k, v := range c.running {
		workers[k] = v
	}
	c.mu.Unlock()

	return Stats{
		Workers:     workers,
		Delivered:   c.delivered.Load(),
		Dropped:     c.dropped.Load(),
		BufferDepth: c.depth.Load(),
	}
}

func (c *Coordinator) runWorker(ctx context.Context, name string, fn func(context.Context) error) {
	defer c.wg.Done()

	c.setRunning(name, true)
	defer c.setRunning(name, false)

	if err := fn(ctx); err != nil {
		c.logger.Error("worker stopped on fatal error",
			zap.String("worker", name),
			zap.Error(err),
		)
		c.mu.Lock()
		c.fatal = append(c.fatal, fmt.Errorf("%s: %w", name, err))
		c.mu.Unlock()
		return
	}
	c.logger.Debug("worker exited", zap.String("worker", name))
}

func (c *Coordinator) setRunning(name string, running bool) {
	c.mu.Lock()
	c.running[name] = running
	c.mu.Unlock()
	c.rec.SetWorkerRunning(name, running)
}

// pollLoop runs poll immediately and then once per interval. Only a fatal
// error ends the loop.
func (c *Coordinator) pollLoop(ctx context.Context, interval time.Duration, poll func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := poll(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// adapterContext detaches an adapter call from shutdown and bounds it
// with the adapter timeout. Values such as the active span are kept.
func (c *Coordinator) adapterContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cfg.AdapterTimeout)
}
