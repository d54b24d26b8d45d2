package relay

import (
	"github.com/MuhammadAslam635/referable-dev-sub000/adapters/gologger"
	twiliogateway "github.com/MuhammadAslam635/referable-dev-sub000/adapters/twilio"
	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	"github.com/MuhammadAslam635/referable-dev-sub000/transport"
	"github.com/MuhammadAslam635/referable-dev-sub000/webhooks"
)

func TwilioTransport(cfg twiliogateway.Config) (core.MessageTransport, error) {
	return twiliogateway.NewTransportFromConfig(cfg)
}

func TwilioTransportFactory() transport.TransportFactory {
	return twiliogateway.Factory()
}

func MemoryTransport() *transport.MemoryTransport {
	return transport.NewMemoryTransport()
}

func DefaultTransportRegistry() *transport.Registry {
	return transport.NewDefaultRegistry()
}

func TwilioWebhookTemplate(cfg webhooks.TwilioGatewayConfig) webhooks.ProviderWebhookTemplate {
	return webhooks.NewTwilioWebhookTemplate(cfg)
}

func HMACWebhookTemplate(providerID, header, secret, encoding string) webhooks.ProviderWebhookTemplate {
	return webhooks.NewHMACGatewayTemplate(providerID, header, secret, encoding)
}

func TokenWebhookTemplate(providerID, header, token string) webhooks.ProviderWebhookTemplate {
	return webhooks.NewTokenGatewayTemplate(providerID, header, token)
}

// WebhookProcessor assembles the inbound pipeline for one gateway against a
// built relay service. The pipeline logs under the relay.webhooks component
// of the service's logger tree.
func WebhookProcessor(svc *Service, ledger webhooks.DeliveryLedger, template webhooks.ProviderWebhookTemplate) *webhooks.Processor {
	var (
		provider core.LoggerProvider
		logger   core.Logger
		relaySvc webhooks.InboundRelay
	)
	if svc != nil {
		deps := svc.Dependencies()
		provider = deps.LoggerProvider
		logger = deps.Logger
		relaySvc = svc
	}
	component := gologger.Component(provider, logger, gologger.WebhooksLoggerName)
	return webhooks.NewRelayProcessor(relaySvc, ledger, template, component)
}
