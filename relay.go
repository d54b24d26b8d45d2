package relay

import "github.com/MuhammadAslam635/referable-dev-sub000/core"

type Config = core.Config

type RelayConfig = core.RelayConfig

type WebhookConfig = core.WebhookConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type MessageTransport = core.MessageTransport
type RateLimitPolicy = core.RateLimitPolicy
type DirectoryStore = core.DirectoryStore
type MessageStore = core.MessageStore
type ReplyContextStore = core.ReplyContextStore
type ActivitySink = core.ActivitySink

type Business = core.Business
type Client = core.Client
type Message = core.Message
type ReplyContext = core.ReplyContext
type TransportNumber = core.TransportNumber

type InboundMessage = core.InboundMessage

type RelayOutcome = core.RelayOutcome

type UpsertBusinessInput = core.UpsertBusinessInput
type UpsertClientInput = core.UpsertClientInput
type PurchaseNumberRequest = core.PurchaseNumberRequest

type ConversationFilter = core.ConversationFilter
type ActivityFilter = core.ActivityFilter
type NumberFilter = core.NumberFilter

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTransport         = core.WithTransport
	WithRateLimitPolicy   = core.WithRateLimitPolicy
	WithDirectoryStore    = core.WithDirectoryStore
	WithMessageStore      = core.WithMessageStore
	WithReplyContextStore = core.WithReplyContextStore
	WithActivitySink      = core.WithActivitySink
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
