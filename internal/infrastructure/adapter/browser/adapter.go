// Package browser implements the Side B feed adapter by driving the vendor's
// web chat page over the Chrome DevTools Protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/domain/message"
	"github.com/erp/chatbridge/internal/domain/shared"
)

const defaultPageTimeout = 30 * time.Second

// Config describes how to reach the page and where its elements are
type Config struct {
	// RemoteURL is the DevTools endpoint of a running Chrome, e.g. ws://127.0.0.1:9222.
	// It is ignored when Launch is set.
	RemoteURL string
	// Launch starts a local Chrome instead of attaching to RemoteURL
	Launch   bool
	Headless bool
	// PageURL is opened on Start when set; otherwise the tab is used as is
	PageURL string

	ItemSelector    string
	SenderSelector  string
	ContentSelector string
	InputSelector   string
	// SendSelector is the send button; empty submits with Enter
	SendSelector string

	PageTimeout time.Duration
	Logger      *zap.Logger
}

// Adapter is a single browser tab on the vendor chat
type Adapter struct {
	config *Config
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	// one page action at a time; fetch and send share the tab
	mu sync.Mutex
}

// New creates the adapter. No browser connection is made until Start.
func New(config *Config) (*Adapter, error) {
	if config == nil {
		config = &Config{}
	}
	if config.ItemSelector == "" || config.ContentSelector == "" || config.InputSelector == "" {
		return nil, errors.New("browser: item, content and input selectors are required")
	}
	if !config.Launch && config.RemoteURL == "" {
		return nil, errors.New("browser: remote url is required unless launch is set")
	}
	if config.PageTimeout == 0 {
		config.PageTimeout = defaultPageTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Adapter{config: config, logger: logger.Named("browser")}
	a.initAllocator()

	a.tabCtx, a.tabCancel = chromedp.NewContext(a.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			a.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	return a, nil
}

func (a *Adapter) initAllocator() {
	if !a.config.Launch {
		a.allocCtx, a.allocCancel = chromedp.NewRemoteAllocator(context.Background(), a.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	a.allocCtx, a.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Start opens the tab and loads the chat page
func (a *Adapter) Start(ctx context.Context) error {
	// The first Run allocates the browser and tab for the lifetime of the
	// context it is given, so it must be the tab context itself.
	a.mu.Lock()
	err := chromedp.Run(a.tabCtx)
	a.mu.Unlock()
	if err != nil {
		return shared.Fatal(fmt.Errorf("connect to browser: %w", err))
	}

	actions := []chromedp.Action{}
	if a.config.PageURL != "" {
		actions = append(actions, chromedp.Navigate(a.config.PageURL))
	}
	actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))

	if err := a.run(ctx, actions...); err != nil {
		return fmt.Errorf("open vendor chat page: %w", err)
	}
	a.logger.Info("vendor chat page ready",
		zap.String("page_url", a.config.PageURL),
		zap.Bool("launched", a.config.Launch),
	)
	return nil
}

type item struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// FetchRecentMessages reads the last window chat items, oldest first
func (a *Adapter) FetchRecentMessages(ctx context.Context, window int) ([]message.RawMessage, error) {
	var items []item
	script := fetchScript(a.config.ItemSelector, a.config.SenderSelector, a.config.ContentSelector, window)
	if err := a.run(ctx, chromedp.Evaluate(script, &items)); err != nil {
		return nil, fmt.Errorf("read chat items: %w", err)
	}
	return toRawMessages(items), nil
}

// SendMessage types body into the input box and submits it
func (a *Adapter) SendMessage(ctx context.Context, body string) error {
	var cleared bool
	actions := []chromedp.Action{
		chromedp.WaitVisible(a.config.InputSelector, chromedp.ByQuery),
		chromedp.Focus(a.config.InputSelector, chromedp.ByQuery),
		chromedp.Evaluate(clearScript(a.config.InputSelector), &cleared),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !cleared {
				return fmt.Errorf("input %s not found", a.config.InputSelector)
			}
			return input.InsertText(body).Do(ctx)
		}),
	}
	if a.config.SendSelector != "" {
		actions = append(actions, chromedp.Click(a.config.SendSelector, chromedp.ByQuery, chromedp.NodeVisible))
	} else {
		actions = append(actions, chromedp.KeyEvent(kb.Enter))
	}

	if err := a.run(ctx, actions...); err != nil {
		return fmt.Errorf("send to vendor chat: %w", err)
	}
	return nil
}

// run executes actions on the tab within the page timeout. Cancelling ctx
// cancels the actions but never the tab itself.
func (a *Adapter) run(ctx context.Context, actions ...chromedp.Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tabCtx.Err() != nil {
		return shared.Fatal(errors.New("browser tab is closed"))
	}

	runCtx, cancel := context.WithTimeout(a.tabCtx, a.config.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	return a.classify(err)
}

// classify treats a lost browser as fatal; element lookups, script errors
// and timeouts are transient
func (a *Adapter) classify(err error) error {
	if a.tabCtx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext) {
		return shared.Fatal(err)
	}
	if strings.Contains(err.Error(), "websocket") || strings.Contains(err.Error(), "connection refused") {
		return shared.Fatal(err)
	}
	return shared.Transient(err)
}

// Close releases the tab and the allocator. A launched browser is shut down;
// an attached one is left running.
func (a *Adapter) Close() error {
	if a.tabCancel != nil {
		a.tabCancel()
	}
	if a.allocCancel != nil {
		a.allocCancel()
	}
	return nil
}

func toRawMessages(items []item) []message.RawMessage {
	out := make([]message.RawMessage, 0, len(items))
	for _, it := range items {
		body := strings.TrimSpace(it.Body)
		if body == "" {
			continue
		}
		out = append(out, message.RawMessage{
			Sender: strings.TrimSpace(it.Sender),
			Body:   body,
		})
	}
	return out
}

var _ shared.FeedAdapter = (*Adapter)(nil)
