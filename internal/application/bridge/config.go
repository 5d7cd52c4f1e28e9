package bridge

import (
	"time"

	"github.com/erp/chatbridge/internal/application/retry"
)

// Config holds coordinator timing and sizing
type Config struct {
	SideAWindow       int
	SideBWindow       int
	SideAPollInterval time.Duration
	SideBPollInterval time.Duration
	DrainInterval     time.Duration
	// SendInterval is the minimum gap between two adapter sends
	SendInterval time.Duration
	// AdapterTimeout bounds each adapter call. Calls are not cancelled on shutdown.
	AdapterTimeout  time.Duration
	HandoffCapacity int
	BufferMaxLength int
	Retry           retry.Policy
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		SideAWindow:       5,
		SideBWindow:       10,
		SideAPollInterval: 2 * time.Second,
		SideBPollInterval: 3 * time.Second,
		DrainInterval:     time.Second,
		SendInterval:      4 * time.Second,
		AdapterTimeout:    30 * time.Second,
		HandoffCapacity:   256,
		BufferMaxLength:   1000,
		Retry:             retry.DefaultPolicy(),
	}
}
