package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the composition root for the relay engine. It owns the
// configuration, the stores, and the routing pipeline; webhook and command
// surfaces call into it rather than into the parts directly.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	transport         MessageTransport
	rateLimitPolicy   RateLimitPolicy
	directoryStore    DirectoryStore
	messageStore      MessageStore
	replyContextStore ReplyContextStore
	activitySink      ActivitySink
	resolver          *PartyResolver
	sender            *Sender
	router            *Router
	sweeper           *Sweeper
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Transport         MessageTransport
	RateLimitPolicy   RateLimitPolicy
	DirectoryStore    DirectoryStore
	MessageStore      MessageStore
	ReplyContextStore ReplyContextStore
	ActivitySink      ActivitySink
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.directoryStore == nil || builder.messageStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				if builder.directoryStore == nil {
					builder.directoryStore = stores.DirectoryStore()
				}
				if builder.messageStore == nil {
					builder.messageStore = stores.MessageStore()
				}
				if builder.replyContextStore == nil {
					builder.replyContextStore = stores.ReplyContextStore()
				}
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.directoryStore == nil {
				builder.directoryStore = stores.DirectoryStore()
			}
			if builder.messageStore == nil {
				builder.messageStore = stores.MessageStore()
			}
			if builder.replyContextStore == nil {
				builder.replyContextStore = stores.ReplyContextStore()
			}
		}
	}
	if builder.activitySink == nil && builder.repositoryFactory != nil {
		if sinkProvider, ok := builder.repositoryFactory.(interface{ ActivitySink() ActivitySink }); ok {
			builder.activitySink = sinkProvider.ActivitySink()
		}
	}
	if builder.replyContextStore == nil {
		builder.replyContextStore = NewMemoryReplyContextStore(finalConfig.Relay.ContextTTL())
	}

	resolver := NewPartyResolver(builder.directoryStore)
	sender := &Sender{
		Transport: builder.transport,
		Policy:    builder.rateLimitPolicy,
		Timeout:   finalConfig.Relay.SendTimeout(),
		Logger:    logger,
	}
	router := &Router{
		Resolver:     resolver,
		Contexts:     builder.replyContextStore,
		Messages:     builder.messageStore,
		Sender:       sender,
		Activity:     builder.activitySink,
		Logger:       logger,
		ExpiryNotice: finalConfig.Relay.ExpiryNoticeBody(),
	}
	sweeper := &Sweeper{
		Contexts:  builder.replyContextStore,
		Activity:  builder.activitySink,
		Logger:    logger,
		Interval:  finalConfig.Relay.SweepInterval(),
		Retention: finalConfig.Relay.ActivityRetention(),
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		transport:         builder.transport,
		rateLimitPolicy:   builder.rateLimitPolicy,
		directoryStore:    builder.directoryStore,
		messageStore:      builder.messageStore,
		replyContextStore: builder.replyContextStore,
		activitySink:      builder.activitySink,
		resolver:          resolver,
		sender:            sender,
		router:            router,
		sweeper:           sweeper,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Sweeper() *Sweeper {
	if s == nil {
		return nil
	}
	return s.sweeper
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Transport:         s.transport,
		RateLimitPolicy:   s.rateLimitPolicy,
		DirectoryStore:    s.directoryStore,
		MessageStore:      s.messageStore,
		ReplyContextStore: s.replyContextStore,
		ActivitySink:      s.activitySink,
	}
}

// ProcessInbound routes one verified inbound message through the relay. The
// returned outcome describes what happened even when a downstream send or
// write failed; the error is reserved for messages the relay cannot
// attribute at all.
func (s *Service) ProcessInbound(ctx context.Context, msg InboundMessage) (outcome RelayOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id":         msg.ProviderID,
		"provider_message_id": msg.ProviderMessageID,
	}
	defer func() {
		if outcome.Route != "" {
			fields["route"] = string(outcome.Route)
		}
		if outcome.Business.ID != "" {
			fields["business_id"] = outcome.Business.ID
		}
		if outcome.Client != nil {
			fields["client_id"] = outcome.Client.ID
		}
		if outcome.Duplicate {
			fields["deduplicated"] = true
		}
		s.observeOperation(ctx, startedAt, "process_inbound", err, fields)
	}()

	if s == nil || s.router == nil {
		err = s.mapError(fmt.Errorf("core: relay router is not configured"))
		return RelayOutcome{}, err
	}
	outcome, err = s.router.Route(ctx, msg)
	if err != nil {
		err = s.mapError(err)
		return outcome, err
	}
	return outcome, nil
}

// SweepExpiredContexts removes reply contexts whose window has lapsed. The
// read path already treats expired rows as absent, so this only reclaims
// storage.
func (s *Service) SweepExpiredContexts(ctx context.Context) (purged int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["purged"] = purged
		s.observeOperation(ctx, startedAt, "sweep_contexts", err, fields)
	}()

	if s == nil || s.sweeper == nil {
		err = s.mapError(fmt.Errorf("core: context sweeper is not configured"))
		return 0, err
	}
	purged, err = s.sweeper.RunOnce(ctx)
	if err != nil {
		err = s.mapError(err)
		return purged, err
	}
	return purged, nil
}

func (s *Service) UpsertBusiness(ctx context.Context, in UpsertBusinessInput) (business Business, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if business.ID != "" {
			fields["business_id"] = business.ID
		}
		s.observeOperation(ctx, startedAt, "upsert_business", err, fields)
	}()

	if s == nil || s.directoryStore == nil {
		err = s.mapError(fmt.Errorf("core: directory store is required"))
		return Business{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		err = s.mapError(fmt.Errorf("core: business name is required"))
		return Business{}, err
	}
	transportNumber, normErr := NormalizePhone(in.TransportNumber)
	if normErr != nil {
		err = s.mapError(fmt.Errorf("core: transport number: %w", normErr))
		return Business{}, err
	}
	in.TransportNumber = transportNumber
	if strings.TrimSpace(in.ForwardingNumber) != "" {
		forwardingNumber, normErr := NormalizePhone(in.ForwardingNumber)
		if normErr != nil {
			err = s.mapError(fmt.Errorf("core: forwarding number: %w", normErr))
			return Business{}, err
		}
		in.ForwardingNumber = forwardingNumber
	} else {
		in.ForwardingNumber = ""
	}

	business, err = s.directoryStore.UpsertBusiness(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return Business{}, err
	}
	return business, nil
}

func (s *Service) UpsertClient(ctx context.Context, in UpsertClientInput) (client Client, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"business_id": in.BusinessID,
	}
	defer func() {
		if client.ID != "" {
			fields["client_id"] = client.ID
		}
		s.observeOperation(ctx, startedAt, "upsert_client", err, fields)
	}()

	if s == nil || s.directoryStore == nil {
		err = s.mapError(fmt.Errorf("core: directory store is required"))
		return Client{}, err
	}
	if strings.TrimSpace(in.BusinessID) == "" {
		err = s.mapError(fmt.Errorf("core: business id is required"))
		return Client{}, err
	}
	phone, normErr := NormalizePhone(in.Phone)
	if normErr != nil {
		err = s.mapError(fmt.Errorf("core: client phone: %w", normErr))
		return Client{}, err
	}
	in.Phone = phone
	in.Name = strings.TrimSpace(in.Name)

	client, err = s.directoryStore.UpsertClient(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return Client{}, err
	}
	return client, nil
}

func (s *Service) GetBusiness(ctx context.Context, id string) (Business, error) {
	if s == nil || s.directoryStore == nil {
		return Business{}, s.mapError(fmt.Errorf("core: directory store is required"))
	}
	business, err := s.directoryStore.GetBusiness(ctx, id)
	if err != nil {
		return Business{}, s.mapError(err)
	}
	return business, nil
}

func (s *Service) GetMessage(ctx context.Context, id string) (Message, error) {
	if s == nil || s.messageStore == nil {
		return Message{}, s.mapError(fmt.Errorf("core: message store is required"))
	}
	message, err := s.messageStore.Get(ctx, id)
	if err != nil {
		return Message{}, s.mapError(err)
	}
	return message, nil
}

func (s *Service) ListConversation(ctx context.Context, filter ConversationFilter) (page MessagePage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"business_id": filter.BusinessID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_conversation", err, fields)
	}()

	if s == nil || s.messageStore == nil {
		err = s.mapError(fmt.Errorf("core: message store is required"))
		return MessagePage{}, err
	}
	if strings.TrimSpace(filter.BusinessID) == "" {
		err = s.mapError(fmt.Errorf("core: business id is required"))
		return MessagePage{}, err
	}
	page, err = s.messageStore.ListConversation(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return MessagePage{}, err
	}
	return page, nil
}

func (s *Service) ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil || s.activitySink == nil {
		return ActivityPage{}, s.mapError(fmt.Errorf("core: activity sink is required"))
	}
	page, err := s.activitySink.List(ctx, filter)
	if err != nil {
		return ActivityPage{}, s.mapError(err)
	}
	return page, nil
}

// ListNumbers surfaces the provider numbers available to the account. It is
// an onboarding helper; the relay itself only sends from numbers already
// recorded on a business.
func (s *Service) ListNumbers(ctx context.Context, filter NumberFilter) (numbers []TransportNumber, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["count"] = len(numbers)
		s.observeOperation(ctx, startedAt, "list_numbers", err, fields)
	}()

	transport, err := s.requireTransport()
	if err != nil {
		return nil, err
	}
	fields["provider_id"] = transport.Kind()
	numbers, err = transport.ListNumbers(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return numbers, nil
}

func (s *Service) PurchaseNumber(ctx context.Context, req PurchaseNumberRequest) (number TransportNumber, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if number.Number != "" {
			fields["number"] = number.Number
		}
		s.observeOperation(ctx, startedAt, "purchase_number", err, fields)
	}()

	transport, err := s.requireTransport()
	if err != nil {
		return TransportNumber{}, err
	}
	fields["provider_id"] = transport.Kind()
	if strings.TrimSpace(req.Number) == "" && strings.TrimSpace(req.AreaCode) == "" {
		wrapped := s.errorFactory(
			"purchase request needs a phone number or an area code",
			goerrors.CategoryBadInput,
		).WithTextCode("RELAY_BAD_INPUT")
		err = wrapped.WithMetadata(map[string]any{"provider_id": transport.Kind()})
		return TransportNumber{}, err
	}
	if strings.TrimSpace(req.Number) != "" {
		normalized, normErr := NormalizePhone(req.Number)
		if normErr != nil {
			err = s.mapError(normErr)
			return TransportNumber{}, err
		}
		req.Number = normalized
	}

	number, err = transport.PurchaseNumber(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return TransportNumber{}, err
	}
	return number, nil
}

func (s *Service) requireTransport() (MessageTransport, error) {
	if s == nil || s.transport == nil {
		return nil, s.mapError(fmt.Errorf("core: message transport is not configured"))
	}
	return s.transport, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
