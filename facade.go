package relay

import (
	"context"
	"fmt"

	relaycommand "github.com/MuhammadAslam635/referable-dev-sub000/command"
	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	relayquery "github.com/MuhammadAslam635/referable-dev-sub000/query"
)

// CommandQueryService is what a host application hands to NewFacade. The
// activity read path is deliberately absent: deployments without an
// activity sink still get the full command surface, and the facade
// resolves an activity reader separately when one is reachable.
type CommandQueryService interface {
	relaycommand.MutatingService
	relayquery.ConversationReader
	relayquery.DirectoryReader
	relayquery.NumberReader
}

type Commands struct {
	ProcessInbound *relaycommand.ProcessInboundCommand
	SweepContexts  *relaycommand.SweepContextsCommand
	UpsertBusiness *relaycommand.UpsertBusinessCommand
	UpsertClient   *relaycommand.UpsertClientCommand
	PurchaseNumber *relaycommand.PurchaseNumberCommand
}

type Queries struct {
	ListConversation *relayquery.ListConversationQuery
	ListActivity     *relayquery.ListActivityQuery
	GetMessage       *relayquery.GetMessageQuery
	GetBusiness      *relayquery.GetBusinessQuery
	ListNumbers      *relayquery.ListNumbersQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	activityReader relayquery.ActivityReader
}

// WithActivityReader points activity queries at a dedicated reader, for
// example a read replica, instead of whatever the service resolves to.
func WithActivityReader(reader relayquery.ActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.activityReader
	if reader == nil {
		reader = resolveActivityReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ProcessInbound: relaycommand.NewProcessInboundCommand(service),
		SweepContexts:  relaycommand.NewSweepContextsCommand(service),
		UpsertBusiness: relaycommand.NewUpsertBusinessCommand(service),
		UpsertClient:   relaycommand.NewUpsertClientCommand(service),
		PurchaseNumber: relaycommand.NewPurchaseNumberCommand(service),
	}
	facade.queries = Queries{
		ListConversation: relayquery.NewListConversationQuery(service),
		ListActivity:     relayquery.NewListActivityQuery(reader),
		GetMessage:       relayquery.NewGetMessageQuery(service),
		GetBusiness:      relayquery.NewGetBusinessQuery(service),
		ListNumbers:      relayquery.NewListNumbersQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveActivityReader finds an activity read path without widening the
// CommandQueryService contract. *core.Service satisfies ActivityReader
// directly; custom services can expose their sink through Dependencies().
// When neither works the ListActivity query reports its missing reader at
// call time.
func resolveActivityReader(service CommandQueryService) relayquery.ActivityReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(relayquery.ActivityReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.ActivitySink == nil {
		return nil
	}
	if reader, ok := deps.ActivitySink.(relayquery.ActivityReader); ok {
		return reader
	}
	return activitySinkReader{sink: deps.ActivitySink}
}

type activitySinkReader struct {
	sink core.ActivitySink
}

func (r activitySinkReader) ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	return r.sink.List(ctx, filter)
}
