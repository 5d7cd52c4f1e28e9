package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error taxonomy of the bridge pipeline.
//
// Concrete errors wrap one of these with fmt.Errorf("%w: %w", sentinel, cause)
// and callers classify them with errors.Is.
var (
	// ErrTransientAdapter is an I/O hiccup reading or writing a chat surface.
	// Sends are retried; fetches wait for the next poll cycle.
	ErrTransientAdapter = NewDomainError("TRANSIENT_ADAPTER", "Chat adapter temporarily unavailable")
	// ErrStore means the dedup or correlation store could not be reached.
	ErrStore = NewDomainError("STORE_UNAVAILABLE", "Backing store unavailable")
	// ErrUnroutable marks a message that has no order number or no owning session.
	ErrUnroutable = NewDomainError("UNROUTABLE", "Message cannot be routed")
	// ErrFatalAdapter means the adapter can never recover, e.g. the browser is gone.
	// It stops the worker that observed it.
	ErrFatalAdapter = NewDomainError("FATAL_ADAPTER", "Chat adapter failed permanently")
)
