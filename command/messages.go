package command

import (
	"strings"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

const (
	TypeProcessInbound = "relay.command.inbound.process"
	TypeSweepContexts  = "relay.command.context.sweep"
	TypeUpsertBusiness = "relay.command.directory.upsert_business"
	TypeUpsertClient   = "relay.command.directory.upsert_client"
	TypePurchaseNumber = "relay.command.number.purchase"
)

// ProcessInboundMessage carries one verified inbound SMS into the relay
// router. Verification (signatures, dedup claims) happens upstream in the
// webhook processor; by the time a message reaches this command it is
// trusted.
type ProcessInboundMessage struct {
	Message core.InboundMessage
}

func (ProcessInboundMessage) Type() string { return TypeProcessInbound }

func (m ProcessInboundMessage) Validate() error {
	if strings.TrimSpace(m.Message.From) == "" {
		return commandValidationError("from", "sender number is required")
	}
	if strings.TrimSpace(m.Message.To) == "" {
		return commandValidationError("to", "destination number is required")
	}
	return nil
}

// SweepContextsMessage asks the relay to purge expired reply contexts. It
// carries no payload; the sweep horizon comes from service configuration.
type SweepContextsMessage struct{}

func (SweepContextsMessage) Type() string { return TypeSweepContexts }

func (SweepContextsMessage) Validate() error { return nil }

type UpsertBusinessMessage struct {
	Input core.UpsertBusinessInput
}

func (UpsertBusinessMessage) Type() string { return TypeUpsertBusiness }

func (m UpsertBusinessMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return commandValidationError("name", "business name is required")
	}
	if strings.TrimSpace(m.Input.TransportNumber) == "" {
		return commandValidationError("transport_number", "transport number is required")
	}
	return nil
}

type UpsertClientMessage struct {
	Input core.UpsertClientInput
}

func (UpsertClientMessage) Type() string { return TypeUpsertClient }

func (m UpsertClientMessage) Validate() error {
	if strings.TrimSpace(m.Input.BusinessID) == "" {
		return commandValidationError("business_id", "business id is required")
	}
	if strings.TrimSpace(m.Input.Phone) == "" {
		return commandValidationError("phone", "client phone is required")
	}
	return nil
}

type PurchaseNumberMessage struct {
	Request core.PurchaseNumberRequest
}

func (PurchaseNumberMessage) Type() string { return TypePurchaseNumber }

func (m PurchaseNumberMessage) Validate() error {
	if strings.TrimSpace(m.Request.Number) == "" && strings.TrimSpace(m.Request.AreaCode) == "" {
		return commandValidationError("number", "number or area code is required")
	}
	return nil
}
