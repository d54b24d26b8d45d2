package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	persistenceClient any
	repositoryFactory any
	transport         MessageTransport
	rateLimitPolicy   RateLimitPolicy
	directoryStore    DirectoryStore
	messageStore      MessageStore
	replyContextStore ReplyContextStore
	activitySink      ActivitySink
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithTransport(transport MessageTransport) Option {
	return func(b *serviceBuilder) {
		b.transport = transport
	}
}

func WithRateLimitPolicy(policy RateLimitPolicy) Option {
	return func(b *serviceBuilder) {
		b.rateLimitPolicy = policy
	}
}

func WithDirectoryStore(store DirectoryStore) Option {
	return func(b *serviceBuilder) {
		b.directoryStore = store
	}
}

func WithMessageStore(store MessageStore) Option {
	return func(b *serviceBuilder) {
		b.messageStore = store
	}
}

func WithReplyContextStore(store ReplyContextStore) Option {
	return func(b *serviceBuilder) {
		b.replyContextStore = store
	}
}

func WithActivitySink(sink ActivitySink) Option {
	return func(b *serviceBuilder) {
		b.activitySink = sink
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("relay", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return relayErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	relay := map[string]any{}
	if includeZero || cfg.Relay.ContextTTLMinutes != 0 {
		relay["context_ttl_minutes"] = cfg.Relay.ContextTTLMinutes
	}
	if includeZero || cfg.Relay.SendTimeoutSeconds != 0 {
		relay["send_timeout_seconds"] = cfg.Relay.SendTimeoutSeconds
	}
	if includeZero || cfg.Relay.SweepIntervalMinutes != 0 {
		relay["sweep_interval_minutes"] = cfg.Relay.SweepIntervalMinutes
	}
	if includeZero || strings.TrimSpace(cfg.Relay.ExpiryNotice) != "" {
		relay["expiry_notice"] = cfg.Relay.ExpiryNotice
	}
	if includeZero || cfg.Relay.ActivityTTLDays != 0 {
		relay["activity_ttl_days"] = cfg.Relay.ActivityTTLDays
	}
	if includeZero || cfg.Relay.ActivityRowCap != 0 {
		relay["activity_row_cap"] = cfg.Relay.ActivityRowCap
	}
	if len(relay) > 0 {
		layer["relay"] = relay
	}

	webhook := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.PublicURL) != "" {
		webhook["public_url"] = cfg.Webhook.PublicURL
	}
	if includeZero || cfg.Webhook.SkipVerification {
		webhook["skip_verification"] = cfg.Webhook.SkipVerification
	}
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}
	return layer
}
