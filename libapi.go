package docflow

import (
	"google.golang.org/protobuf/proto"

	"github.com/drblury/docflow/bridge"
	runtimepkg "github.com/drblury/docflow/internal/runtime"
	ce "github.com/drblury/docflow/internal/runtime/cloudevents"
	codecpkg "github.com/drblury/docflow/internal/runtime/codec"
	configpkg "github.com/drblury/docflow/internal/runtime/config"
	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	idspkg "github.com/drblury/docflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/docflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/docflow/internal/runtime/metadata"
	transportpkg "github.com/drblury/docflow/internal/runtime/transport"
	"github.com/drblury/docflow/transport"
)

type (
	Config            = configpkg.Config
	Graph             = runtimepkg.Graph
	GraphDependencies = runtimepkg.GraphDependencies

	Protocol     = runtimepkg.Protocol
	State        = runtimepkg.State
	Document     = runtimepkg.Document
	HandlerFunc  = runtimepkg.HandlerFunc
	CallbackFunc = runtimepkg.CallbackFunc

	Node            = runtimepkg.Node
	Processor       = runtimepkg.Processor
	ProcessorConfig = runtimepkg.ProcessorConfig
	Generator       = runtimepkg.Generator
	GeneratorConfig = runtimepkg.GeneratorConfig
	Connector       = runtimepkg.Connector
	Socket          = runtimepkg.Socket
	Option          = runtimepkg.Option
	TerminalOption  = runtimepkg.TerminalOption

	LifecycleHooks = runtimepkg.LifecycleHooks
	GeneratorHooks = runtimepkg.GeneratorHooks

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	HandlerMiddleware      = runtimepkg.HandlerMiddleware
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig
	PanicError             = runtimepkg.PanicError

	// Document lifecycle hooks
	DocumentContext = runtimepkg.DocumentContext
	DocumentHooks   = runtimepkg.DocumentHooks

	// Introspection
	TerminalInfo           = runtimepkg.TerminalInfo
	ProcessorInfo          = runtimepkg.ProcessorInfo
	ProgressInfo           = runtimepkg.ProgressInfo
	ConnectorStats         = runtimepkg.ConnectorStats
	ConnectorStatsSnapshot = runtimepkg.ConnectorStatsSnapshot
	EngineMetrics          = runtimepkg.EngineMetrics

	// Error classification
	ErrorClassifier = runtimepkg.ErrorClassifier
	ErrorCategory   = runtimepkg.ErrorCategory

	ProtocolMismatchError = errspkg.ProtocolMismatchError
	InvalidStateError     = errspkg.InvalidStateError
	DocumentHandlerError  = errspkg.DocumentHandlerError
	ConfigValidationError = errspkg.ConfigValidationError

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	// Document codecs
	Codec       = codecpkg.Codec
	CodecFunc   = codecpkg.Func
	ProtoFormat = codecpkg.Format

	// CloudEvents envelope
	Event = ce.Event

	// Bridge processors
	Sink         = bridge.Sink
	SinkConfig   = bridge.SinkConfig
	Source       = bridge.Source
	SourceConfig = bridge.SourceConfig

	// Transports
	Transport             = transport.Transport
	TransportFactory      = transportpkg.Factory
	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

var (
	Any = runtimepkg.Any

	NewProtocol  = runtimepkg.NewProtocol
	Compatible   = runtimepkg.Compatible
	NewProcessor = runtimepkg.NewProcessor
	NewGenerator = runtimepkg.NewGenerator
	NewMonitor   = runtimepkg.NewMonitor
	NewGraph     = runtimepkg.NewGraph
	ProcessorOf  = runtimepkg.ProcessorOf

	AsDefault       = runtimepkg.AsDefault
	WithDescription = runtimepkg.WithDescription

	WithLogger               = runtimepkg.WithLogger
	WithDocumentLogger       = runtimepkg.WithDocumentLogger
	WithHooks                = runtimepkg.WithHooks
	WithMiddleware           = runtimepkg.WithMiddleware
	WithoutDefaultMiddleware = runtimepkg.WithoutDefaultMiddleware
	WithDocumentHooks        = runtimepkg.WithDocumentHooks
	WithMetrics              = runtimepkg.WithMetrics
	WithClock                = runtimepkg.WithClock
	WithErrorClassifier      = runtimepkg.WithErrorClassifier

	ValidateConfig   = configpkg.ValidateConfig
	NewEngineMetrics = runtimepkg.NewEngineMetrics

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	RecovererMiddleware     = runtimepkg.RecovererMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	TimeoutMiddleware       = runtimepkg.TimeoutMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	LogDocumentsMiddleware  = runtimepkg.LogDocumentsMiddleware
	DocumentHooksMiddleware = runtimepkg.DocumentHooksMiddleware

	// Document lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	// Codecs
	JSONCodec   = codecpkg.JSON
	StructCodec = codecpkg.Struct

	// CloudEvents
	NewCloudEvent    = ce.New
	EncodeCloudEvent = ce.Encode
	DecodeCloudEvent = ce.Decode

	// Bridge
	NewSink          = bridge.NewSink
	NewSource        = bridge.NewSource
	ConnectTransport = bridge.Connect

	// Transport registry
	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build
	DefaultTransportFactory  = transportpkg.DefaultFactory

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrHandlerRequired    = errspkg.ErrHandlerRequired
	ErrCallbackRequired   = errspkg.ErrCallbackRequired
	ErrProcessorRequired  = errspkg.ErrProcessorRequired
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrSubscriberRequired = errspkg.ErrSubscriberRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrDocumentRequired   = errspkg.ErrDocumentRequired
	ErrNoConnectors       = errspkg.ErrNoConnectors
	ErrNoSockets          = errspkg.ErrNoSockets
	ErrConnectorNotFound  = errspkg.ErrConnectorNotFound
	ErrSocketNotFound     = errspkg.ErrSocketNotFound
	ErrAmbiguousTerminal  = errspkg.ErrAmbiguousTerminal
	ErrDuplicateTerminal  = errspkg.ErrDuplicateTerminal
	ErrDuplicateProcessor = errspkg.ErrDuplicateProcessor
	ErrNotAccepting       = errspkg.ErrNotAccepting
	ErrProtocolMismatch   = errspkg.ErrProtocolMismatch
	ErrInvalidState       = errspkg.ErrInvalidState
	ErrDocumentHandler    = errspkg.ErrDocumentHandler
	ErrMessageTooLarge    = bridge.ErrMessageTooLarge
	ErrUnknownTransport   = transport.ErrUnknownTransport

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Processor states.
const (
	StateIdle     = runtimepkg.StateIdle
	StateRunning  = runtimepkg.StateRunning
	StateStopping = runtimepkg.StateStopping
	StateStopped  = runtimepkg.StateStopped
	StateAborting = runtimepkg.StateAborting
	StateAborted  = runtimepkg.StateAborted
)

// Default terminal names used when a terminal is created without one.
const (
	DefaultConnectorName = runtimepkg.DefaultConnectorName
	DefaultSocketName    = runtimepkg.DefaultSocketName
)

// Protobuf wire formats for ProtoCodec and StructCodec.
const (
	ProtoBinary = codecpkg.Binary
	ProtoJSON   = codecpkg.ProtoJSON
)

// Error category constants for ErrorClassifier.
const (
	ErrorCategoryNone     = runtimepkg.ErrorCategoryNone
	ErrorCategoryPanic    = runtimepkg.ErrorCategoryPanic
	ErrorCategoryCanceled = runtimepkg.ErrorCategoryCanceled
	ErrorCategoryHandler  = runtimepkg.ErrorCategoryHandler
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// TypedJSONCodec decodes JSON documents into fresh values of T, which must be
// a pointer type.
func TypedJSONCodec[T any]() (Codec, error) {
	return codecpkg.TypedJSON[T]()
}

func ProtoCodec[T proto.Message](prototype T, format ProtoFormat) (Codec, error) {
	return codecpkg.Proto(prototype, format)
}
