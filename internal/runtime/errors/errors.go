package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired     = sterrors.New("docflow: configuration is required")
	ErrLoggerRequired     = sterrors.New("docflow: logger is required")
	ErrHandlerRequired    = sterrors.New("docflow: handler function is required")
	ErrCallbackRequired   = sterrors.New("docflow: callback function is required")
	ErrProcessorRequired  = sterrors.New("docflow: processor is required")
	ErrPublisherRequired  = sterrors.New("docflow: publisher is required")
	ErrSubscriberRequired = sterrors.New("docflow: subscriber is required")
	ErrTopicRequired      = sterrors.New("docflow: topic is required")
	ErrDocumentRequired   = sterrors.New("docflow: document is required")
	ErrCodecRequired      = sterrors.New("docflow: codec is required")

	ErrDocumentTypeRequired  = sterrors.New("docflow: document type is required")
	ErrDocumentPointerNeeded = sterrors.New("docflow: document type must be a pointer")
	ErrUnsupportedDocument   = sterrors.New("docflow: document type not supported by codec")

	ErrNoConnectors       = sterrors.New("docflow: processor has no connectors")
	ErrNoSockets          = sterrors.New("docflow: processor has no sockets")
	ErrConnectorNotFound  = sterrors.New("docflow: connector not found")
	ErrSocketNotFound     = sterrors.New("docflow: socket not found")
	ErrAmbiguousTerminal  = sterrors.New("docflow: terminal name required when more than one exists and no default is set")
	ErrDuplicateTerminal  = sterrors.New("docflow: terminal name already exists")
	ErrDuplicateProcessor = sterrors.New("docflow: processor name already registered")
	ErrNotAccepting       = sterrors.New("docflow: processor is not accepting input")

	// ErrProtocolMismatch is matched by every ProtocolMismatchError.
	ErrProtocolMismatch = sterrors.New("docflow: protocol mismatch")
	// ErrInvalidState is matched by every InvalidStateError.
	ErrInvalidState = sterrors.New("docflow: invalid state")
	// ErrDocumentHandler is matched by every DocumentHandlerError.
	ErrDocumentHandler = sterrors.New("docflow: document handler failed")
)

// ProtocolMismatchError is returned by wiring operations when the socket and
// connector protocols are not compatible. No attachment is made.
type ProtocolMismatchError struct {
	Socket            string
	SocketProtocol    string
	Connector         string
	ConnectorProtocol string
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("docflow: protocol mismatch: socket %s(%s) cannot feed connector %s(%s)",
		e.Socket, e.SocketProtocol, e.Connector, e.ConnectorProtocol)
}

func (e *ProtocolMismatchError) Is(target error) bool {
	return target == ErrProtocolMismatch
}

// InvalidStateError reports a lifecycle operation requested from a state that
// does not allow it.
type InvalidStateError struct {
	Processor string
	Operation string
	State     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("docflow: processor %q cannot %s while %s", e.Processor, e.Operation, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// DocumentHandlerError wraps a failure raised while one document was being
// handled. It is logged to the document log and never returned to senders.
type DocumentHandlerError struct {
	Processor string
	Connector string
	Err       error
}

func (e *DocumentHandlerError) Error() string {
	return fmt.Sprintf("docflow: handler %s.%s failed: %v", e.Processor, e.Connector, e.Err)
}

func (e *DocumentHandlerError) Unwrap() error {
	return e.Err
}

func (e *DocumentHandlerError) Is(target error) bool {
	return target == ErrDocumentHandler
}

// ConfigValidationError wraps the aggregated result of config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "docflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
