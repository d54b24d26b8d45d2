package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

// MutatingService is the slice of the relay service the command surface
// needs. *core.Service satisfies it.
type MutatingService interface {
	ProcessInbound(ctx context.Context, msg core.InboundMessage) (core.RelayOutcome, error)
	SweepExpiredContexts(ctx context.Context) (int, error)
	UpsertBusiness(ctx context.Context, in core.UpsertBusinessInput) (core.Business, error)
	UpsertClient(ctx context.Context, in core.UpsertClientInput) (core.Client, error)
	PurchaseNumber(ctx context.Context, req core.PurchaseNumberRequest) (core.TransportNumber, error)
}

type ProcessInboundCommand struct {
	service MutatingService
}

func NewProcessInboundCommand(service MutatingService) *ProcessInboundCommand {
	return &ProcessInboundCommand{service: service}
}

func (c *ProcessInboundCommand) Execute(ctx context.Context, msg ProcessInboundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: relay service is required")
	}
	outcome, err := c.service.ProcessInbound(ctx, msg.Message)
	if err != nil {
		return err
	}
	storeResult(ctx, outcome)
	return nil
}

type SweepContextsCommand struct {
	service MutatingService
}

func NewSweepContextsCommand(service MutatingService) *SweepContextsCommand {
	return &SweepContextsCommand{service: service}
}

func (c *SweepContextsCommand) Execute(ctx context.Context, msg SweepContextsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sweep service is required")
	}
	purged, err := c.service.SweepExpiredContexts(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, purged)
	return nil
}

type UpsertBusinessCommand struct {
	service MutatingService
}

func NewUpsertBusinessCommand(service MutatingService) *UpsertBusinessCommand {
	return &UpsertBusinessCommand{service: service}
}

func (c *UpsertBusinessCommand) Execute(ctx context.Context, msg UpsertBusinessMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: directory service is required")
	}
	out, err := c.service.UpsertBusiness(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpsertClientCommand struct {
	service MutatingService
}

func NewUpsertClientCommand(service MutatingService) *UpsertClientCommand {
	return &UpsertClientCommand{service: service}
}

func (c *UpsertClientCommand) Execute(ctx context.Context, msg UpsertClientMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: directory service is required")
	}
	out, err := c.service.UpsertClient(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PurchaseNumberCommand struct {
	service MutatingService
}

func NewPurchaseNumberCommand(service MutatingService) *PurchaseNumberCommand {
	return &PurchaseNumberCommand{service: service}
}

func (c *PurchaseNumberCommand) Execute(ctx context.Context, msg PurchaseNumberMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: number service is required")
	}
	out, err := c.service.PurchaseNumber(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
