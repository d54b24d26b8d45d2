package webhooks

import (
	"context"
	"fmt"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

// MessageParser maps a raw provider delivery into the canonical inbound
// shape.
type MessageParser func(req core.InboundRequest) (core.InboundMessage, error)

// InboundRelay is the slice of the relay service the webhook pipeline
// needs.
type InboundRelay interface {
	ProcessInbound(ctx context.Context, msg core.InboundMessage) (core.RelayOutcome, error)
}

// RelayHandler runs a parsed delivery through the relay service. Routing
// outcomes the service reports without an error (expired windows, unknown
// senders, send failures) are acknowledged with their reason in the result
// metadata; only parse and infrastructure failures surface as errors for
// the processor's retry bookkeeping.
type RelayHandler struct {
	Service InboundRelay
	Parser  MessageParser
	Ack     func() core.InboundResult
	Logger  core.Logger
}

func NewRelayHandler(service InboundRelay, template ProviderWebhookTemplate) *RelayHandler {
	return &RelayHandler{
		Service: service,
		Parser:  template.Parser,
		Ack:     template.Ack,
	}
}

func (h *RelayHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.Service == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: relay handler requires a service")
	}
	parser := h.Parser
	if parser == nil {
		parser = ParseJSONInbound
	}
	msg, err := parser(req)
	if err != nil {
		return core.InboundResult{}, err
	}

	outcome, err := h.Service.ProcessInbound(ctx, msg)
	if err != nil {
		// The message store's unique constraint can report a duplicate the
		// claim pre-check missed when two deliveries race. Already accepted,
		// so acknowledge instead of scheduling a retry.
		if core.IsDuplicate(err) {
			result := h.ack()
			result.Metadata = ensureMetadata(result.Metadata)
			result.Metadata["deduped"] = true
			return result, nil
		}
		return core.InboundResult{}, err
	}

	result := h.ack()
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["route"] = string(outcome.Route)
	result.Metadata["forwarded"] = outcome.Forwarded
	if outcome.Duplicate {
		result.Metadata["deduped"] = true
	}
	if outcome.Reason != "" {
		result.Metadata["reason"] = outcome.Reason
	}
	if outcome.Message.ID != "" {
		result.Metadata["message_id"] = outcome.Message.ID
	}
	return result, nil
}

func (h *RelayHandler) ack() core.InboundResult {
	if h != nil && h.Ack != nil {
		return h.Ack()
	}
	return PlainAck()
}

// NewRelayProcessor wires a full inbound pipeline for one gateway: the
// template's verifier and dedup key extraction in front, the relay service
// behind the claim.
func NewRelayProcessor(service InboundRelay, ledger DeliveryLedger, template ProviderWebhookTemplate, logger core.Logger) *Processor {
	handler := NewRelayHandler(service, template)
	handler.Logger = logger
	processor := NewProcessor(template.Verifier, ledger, handler)
	if template.Extractor != nil {
		processor.ExtractID = template.Extractor
	}
	processor.Logger = logger
	return processor
}
