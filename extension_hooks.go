package relay

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	"github.com/MuhammadAslam635/referable-dev-sub000/transport"
	"github.com/MuhammadAslam635/referable-dev-sub000/webhooks"
)

// TransportPack groups the gateway wiring one integration ships: ready
// transports to register directly and factories for kinds built from
// configuration at startup.
type TransportPack struct {
	Name       string
	Transports []core.MessageTransport
	Factories  map[string]transport.TransportFactory
}

// WebhookTemplatePack groups inbound pipeline templates. Each template
// claims one provider id; two packs cannot claim the same provider.
type WebhookTemplatePack struct {
	Name      string
	Templates []webhooks.ProviderWebhookTemplate
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	transportPacks    map[string]TransportPack
	webhookPacks      map[string]WebhookTemplatePack
	providerTemplates map[string]webhooks.ProviderWebhookTemplate
	bundles           map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		transportPacks:    map[string]TransportPack{},
		webhookPacks:      map[string]WebhookTemplatePack{},
		providerTemplates: map[string]webhooks.ProviderWebhookTemplate{},
		bundles:           map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterTransportPack(pack TransportPack) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("relay: transport pack name is required")
	}
	if len(pack.Transports) == 0 && len(pack.Factories) == 0 {
		return fmt.Errorf("relay: transport pack %q has no transports or factories", name)
	}

	normalized := TransportPack{
		Name:       name,
		Transports: append([]core.MessageTransport(nil), pack.Transports...),
	}
	if len(pack.Factories) > 0 {
		normalized.Factories = make(map[string]transport.TransportFactory, len(pack.Factories))
		for kind, factory := range pack.Factories {
			normalized.Factories[kind] = factory
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.transportPacks[name]; exists {
		return fmt.Errorf("relay: transport pack %q already registered", name)
	}
	h.transportPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterWebhookTemplatePack(pack WebhookTemplatePack) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("relay: webhook template pack name is required")
	}
	if len(pack.Templates) == 0 {
		return fmt.Errorf("relay: webhook template pack %q has no templates", name)
	}

	normalized := WebhookTemplatePack{
		Name:      name,
		Templates: make([]webhooks.ProviderWebhookTemplate, 0, len(pack.Templates)),
	}
	for _, template := range pack.Templates {
		providerID := strings.TrimSpace(strings.ToLower(template.ProviderID))
		if providerID == "" {
			return fmt.Errorf("relay: webhook template pack %q has a template without a provider id", name)
		}
		template.ProviderID = providerID
		normalized.Templates = append(normalized.Templates, template)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.webhookPacks[name]; exists {
		return fmt.Errorf("relay: webhook template pack %q already registered", name)
	}
	for _, template := range normalized.Templates {
		if _, claimed := h.providerTemplates[template.ProviderID]; claimed {
			return fmt.Errorf("relay: provider %q already has a webhook template", template.ProviderID)
		}
	}
	for _, template := range normalized.Templates {
		h.providerTemplates[template.ProviderID] = template
	}
	h.webhookPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("relay: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("relay: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("relay: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyTransportPacks registers every pack into the registry, instances
// first. Pack order and factory order within a pack are name sorted so
// duplicate kind conflicts surface deterministically.
func (h *ExtensionHooks) ApplyTransportPacks(registry *transport.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("relay: transport registry is required")
	}

	packs := h.TransportPacks()
	for _, pack := range packs {
		for _, gateway := range pack.Transports {
			if gateway == nil {
				return fmt.Errorf("relay: transport pack %q contains nil transport", pack.Name)
			}
			if err := registry.Register(gateway); err != nil {
				return err
			}
		}
		kinds := make([]string, 0, len(pack.Factories))
		for kind := range pack.Factories {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			factory := pack.Factories[kind]
			if factory == nil {
				return fmt.Errorf("relay: transport pack %q contains nil factory for kind %q", pack.Name, kind)
			}
			if err := registry.RegisterFactory(kind, factory); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) TransportPacks() []TransportPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.transportPacks))
	for name := range h.transportPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]TransportPack, 0, len(names))
	for _, name := range names {
		pack := h.transportPacks[name]
		copied := TransportPack{
			Name:       pack.Name,
			Transports: append([]core.MessageTransport(nil), pack.Transports...),
		}
		if len(pack.Factories) > 0 {
			copied.Factories = make(map[string]transport.TransportFactory, len(pack.Factories))
			for kind, factory := range pack.Factories {
				copied.Factories[kind] = factory
			}
		}
		out = append(out, copied)
	}
	return out
}

// WebhookTemplate resolves the inbound pipeline registered for a provider.
func (h *ExtensionHooks) WebhookTemplate(providerID string) (webhooks.ProviderWebhookTemplate, bool) {
	if h == nil {
		return webhooks.ProviderWebhookTemplate{}, false
	}
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	h.mu.RLock()
	defer h.mu.RUnlock()
	template, ok := h.providerTemplates[providerID]
	return template, ok
}

func (h *ExtensionHooks) WebhookTemplates() []webhooks.ProviderWebhookTemplate {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	providerIDs := make([]string, 0, len(h.providerTemplates))
	for providerID := range h.providerTemplates {
		providerIDs = append(providerIDs, providerID)
	}
	sort.Strings(providerIDs)

	out := make([]webhooks.ProviderWebhookTemplate, 0, len(providerIDs))
	for _, providerID := range providerIDs {
		out = append(out, h.providerTemplates[providerID])
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
