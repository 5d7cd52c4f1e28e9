// Package message holds the unit of work that flows through the bridge.
package message

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies which chat surface a message came from.
type Source string

const (
	// SourceSideA is the internal group chat.
	SourceSideA Source = "side_a"
	// SourceSideB is the vendor customer-service chat.
	SourceSideB Source = "side_b"
)

// IsValid reports whether s is a known source
func (s Source) IsValid() bool {
	return s == SourceSideA || s == SourceSideB
}

// Opposite returns the side a message from s is delivered to
func (s Source) Opposite() Source {
	if s == SourceSideA {
		return SourceSideB
	}
	return SourceSideA
}

func (s Source) String() string {
	return string(s)
}

var (
	ErrInvalidSource  = errors.New("message: invalid source")
	ErrEmptyContent   = errors.New("message: content cannot be empty")
	ErrMissingSession = errors.New("message: side A message requires a session id")
)

// Message is an immutable chat message accepted by a poller.
// All fields are read through accessors; OrderNumbers returns a copy.
type Message struct {
	id           uuid.UUID
	content      string
	sender       string
	source       Source
	sessionID    string
	orderNumbers []string
	timestamp    time.Time
}

// Option customises a Message at construction time
type Option func(*Message)

// WithSessionID sets the stable session id the message belongs to
func WithSessionID(sessionID string) Option {
	return func(m *Message) {
		m.sessionID = sessionID
	}
}

// WithSender records the sender display name
func WithSender(sender string) Option {
	return func(m *Message) {
		m.sender = sender
	}
}

// WithOrderNumbers attaches extracted order numbers
func WithOrderNumbers(orders []string) Option {
	return func(m *Message) {
		m.orderNumbers = slices.Clone(orders)
	}
}

// WithTimestamp overrides the creation time
func WithTimestamp(ts time.Time) Option {
	return func(m *Message) {
		m.timestamp = ts
	}
}

// New creates a new Message
func New(source Source, content string, opts ...Option) (Message, error) {
	if !source.IsValid() {
		return Message{}, ErrInvalidSource
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}

	m := Message{
		id:        uuid.New(),
		content:   content,
		source:    source,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	if source == SourceSideA && m.sessionID == "" {
		return Message{}, ErrMissingSession
	}
	return m, nil
}

func (m Message) ID() uuid.UUID        { return m.id }
func (m Message) Content() string      { return m.content }
func (m Message) Sender() string       { return m.sender }
func (m Message) Source() Source       { return m.source }
func (m Message) SessionID() string    { return m.sessionID }
func (m Message) Timestamp() time.Time { return m.timestamp }

// OrderNumbers returns a copy of the extracted order numbers
func (m Message) OrderNumbers() []string {
	return slices.Clone(m.orderNumbers)
}

// HasOrderNumbers reports whether at least one order number was extracted
func (m Message) HasOrderNumbers() bool {
	return len(m.orderNumbers) > 0
}

// PrimaryOrder returns the first extracted order number, used to route replies
func (m Message) PrimaryOrder() (string, bool) {
	if len(m.orderNumbers) == 0 {
		return "", false
	}
	return m.orderNumbers[0], true
}

// BufferKey returns the session buffer key for this message.
// Side B replies share a single key.
func (m Message) BufferKey() string {
	if m.source == SourceSideB {
		return SideBBufferKey
	}
	return m.sessionID
}

// SideBBufferKey is the buffer key used for every Side B reply
const SideBBufferKey = "__side_b__"
