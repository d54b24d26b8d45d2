package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrBusinessNotFound            = errors.New("core: business not found")
	ErrClientNotFound              = errors.New("core: client not found")
	ErrMessageNotFound             = errors.New("core: message not found")
	ErrDuplicateMessage            = errors.New("core: duplicate provider message id")
	ErrReplyContextNotFound        = errors.New("core: reply context not found")
	ErrInvalidRelayRouteTransition = errors.New("core: invalid relay route transition")
	ErrInvalidMessageTransition    = errors.New("core: invalid message status transition")
	ErrInvalidBusiness             = errors.New("core: invalid business")
	ErrInvalidClient               = errors.New("core: invalid client")
)

type Business struct {
	ID                string
	Name              string
	TransportNumber   string
	ForwardingNumber  string
	ForwardingEnabled bool
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (b Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidBusiness)
	}
	if strings.TrimSpace(b.TransportNumber) == "" {
		return fmt.Errorf("%w: empty transport number", ErrInvalidBusiness)
	}
	if b.ForwardingEnabled && strings.TrimSpace(b.ForwardingNumber) == "" {
		return fmt.Errorf("%w: forwarding enabled without forwarding number", ErrInvalidBusiness)
	}
	return nil
}

// CanForward reports whether inbound client messages should be relayed to
// the owner. Both the flag and the number must be present.
func (b Business) CanForward() bool {
	return b.ForwardingEnabled && strings.TrimSpace(b.ForwardingNumber) != ""
}

type Client struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.BusinessID) == "" {
		return fmt.Errorf("%w: empty business id", ErrInvalidClient)
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: empty phone", ErrInvalidClient)
	}
	return nil
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageStatus string

const (
	MessageStatusReceived    MessageStatus = "received"
	MessageStatusRelayed     MessageStatus = "relayed"
	MessageStatusRelayFailed MessageStatus = "relay_failed"
	MessageStatusSent        MessageStatus = "sent"
)

// Message is an append-only record of one SMS that crossed the relay.
// ClientID is empty when the sender could not be matched to a known client.
type Message struct {
	ID                string
	BusinessID        string
	ClientID          string
	Direction         MessageDirection
	FromNumber        string
	ToNumber          string
	Body              string
	ProviderMessageID string
	Status            MessageStatus
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (m *Message) TransitionTo(status MessageStatus, now time.Time) error {
	if m == nil {
		return nil
	}
	if m.Status == status {
		m.UpdatedAt = now
		return nil
	}
	if !messageTransitionAllowed(m.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidMessageTransition, m.Status, status)
	}
	m.Status = status
	m.UpdatedAt = now
	return nil
}

func messageTransitionAllowed(current, next MessageStatus) bool {
	allowed := map[MessageStatus]map[MessageStatus]struct{}{
		MessageStatusReceived: {
			MessageStatusRelayed:     {},
			MessageStatusRelayFailed: {},
		},
		MessageStatusRelayed:     {},
		MessageStatusRelayFailed: {},
		MessageStatusSent:        {},
	}
	_, ok := allowed[current][next]
	return ok
}

// ReplyContext maps an owner's forwarding number back to the client whose
// message was most recently relayed there. At most one non-expired context
// exists per (business, client) pair.
type ReplyContext struct {
	ID                    string
	BusinessID            string
	ClientID              string
	ClientPhone           string
	ForwardingNumber      string
	TransportNumber       string
	LastProviderMessageID string
	ExpiresAt             time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Active reports whether the context is still usable at the given instant.
// Expiry is checked at read time; a stale row behaves exactly like a
// missing one regardless of sweeper timing.
func (r *ReplyContext) Active(now time.Time) bool {
	if r == nil {
		return false
	}
	return r.ExpiresAt.After(now)
}

type RelayRoute string

const (
	RouteUnclassified  RelayRoute = "unclassified"
	RouteClientToOwner RelayRoute = "client_to_owner"
	RouteOwnerToClient RelayRoute = "owner_to_client"
	RouteUnroutable    RelayRoute = "unroutable"
)

// RelayEvent tracks the routing of one inbound delivery from arrival to its
// terminal classification.
type RelayEvent struct {
	ID         string
	BusinessID string
	Route      RelayRoute
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (e *RelayEvent) TransitionTo(route RelayRoute, reason string, now time.Time) error {
	if e == nil {
		return nil
	}
	if e.Route == route {
		e.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			e.Reason = strings.TrimSpace(reason)
		}
		return nil
	}
	if !relayRouteTransitionAllowed(e.Route, route) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRelayRouteTransition, e.Route, route)
	}
	e.Route = route
	e.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		e.Reason = strings.TrimSpace(reason)
	}
	return nil
}

func relayRouteTransitionAllowed(current, next RelayRoute) bool {
	allowed := map[RelayRoute]map[RelayRoute]struct{}{
		RouteUnclassified: {
			RouteClientToOwner: {},
			RouteOwnerToClient: {},
			RouteUnroutable:    {},
		},
		RouteOwnerToClient: {
			RouteUnroutable: {},
		},
		RouteClientToOwner: {},
		RouteUnroutable:    {},
	}
	_, ok := allowed[current][next]
	return ok
}

type ActivityStatus string

const (
	ActivityStatusOK    ActivityStatus = "ok"
	ActivityStatusWarn  ActivityStatus = "warn"
	ActivityStatusError ActivityStatus = "error"
)

type ActivityEntry struct {
	ID        string
	Actor     string
	Action    string
	Object    string
	Channel   string
	Status    ActivityStatus
	Metadata  map[string]any
	CreatedAt time.Time
}
