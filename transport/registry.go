package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

// TransportFactory builds a gateway transport from wiring-time config.
// Factories run lazily: Build consults them only for kinds with no
// registered instance.
type TransportFactory func(config map[string]any) (core.MessageTransport, error)

// Registry holds the SMS gateway transports available to the relay, keyed
// by kind. A deployment usually registers exactly one real gateway and
// keeps the memory transport around for smoke checks.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]core.MessageTransport
	factories  map[string]TransportFactory
}

func NewRegistry() *Registry {
	return &Registry{
		transports: map[string]core.MessageTransport{},
		factories:  map[string]TransportFactory{},
	}
}

// NewDefaultRegistry seeds the registry with the memory transport and a
// guard factory for the Twilio kind, so Build("twilio") before the real
// adapter is wired yields a transport that fails sends with a clear
// message instead of a nil lookup.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewMemoryTransport())
	_ = registry.RegisterFactory(KindTwilio, defaultUnsupportedFactory(KindTwilio))
	_ = registry.RegisterFactory(KindNoop, defaultUnsupportedFactory(KindNoop))
	return registry
}

func (r *Registry) Register(transport core.MessageTransport) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	if transport == nil {
		return fmt.Errorf("transport: transport is nil")
	}
	kind := normalizeKind(transport.Kind())
	if kind == "" {
		return fmt.Errorf("transport: transport kind is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transports[kind]; exists {
		return fmt.Errorf("transport: transport kind %q already registered", kind)
	}
	r.transports[kind] = transport
	return nil
}

func (r *Registry) RegisterFactory(kind string, factory TransportFactory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("transport: transport kind is required")
	}
	if factory == nil {
		return fmt.Errorf("transport: transport factory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("transport: transport factory kind %q already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

func (r *Registry) Build(kind string, config map[string]any) (core.MessageTransport, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return nil, fmt.Errorf("transport: transport kind is required")
	}

	r.mu.RLock()
	transport, ok := r.transports[kind]
	factory := r.factories[kind]
	r.mu.RUnlock()
	if ok {
		return transport, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("transport: transport kind %q not registered", kind)
	}
	built, err := factory(cloneMap(config))
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil transport", kind)
	}
	return built, nil
}

func (r *Registry) Get(kind string) (core.MessageTransport, bool) {
	if r == nil {
		return nil, false
	}
	kind = normalizeKind(kind)
	r.mu.RLock()
	defer r.mu.RUnlock()
	transport, ok := r.transports[kind]
	return transport, ok
}

func (r *Registry) List() []core.MessageTransport {
	if r == nil {
		return []core.MessageTransport{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.transports))
	for kind := range r.transports {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	result := make([]core.MessageTransport, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, r.transports[kind])
	}
	return result
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}

func defaultUnsupportedFactory(kind string) TransportFactory {
	return func(config map[string]any) (core.MessageTransport, error) {
		reason := ""
		if raw, ok := config["reason"]; ok && raw != nil {
			reason = strings.TrimSpace(fmt.Sprint(raw))
		}
		return NewUnsupportedTransport(kind, reason), nil
	}
}

func cloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}
