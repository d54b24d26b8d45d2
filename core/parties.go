package core

import (
	"context"
	"fmt"
)

type OriginKind string

const (
	OriginOwner   OriginKind = "owner"
	OriginClient  OriginKind = "client"
	OriginUnknown OriginKind = "unknown"
)

// Origin classifies who sent an inbound message to a business's transport
// number. Client is set only for OriginClient.
type Origin struct {
	Kind   OriginKind
	Client *Client
}

// PartyResolver answers the two identity questions the router needs: which
// business owns a destination number, and who the sender is relative to
// that business. All matching happens on canonical numbers.
type PartyResolver struct {
	Directory DirectoryStore
}

func NewPartyResolver(directory DirectoryStore) *PartyResolver {
	return &PartyResolver{Directory: directory}
}

// ByDestination maps an inbound To number onto the business whose transport
// number it is. A destination that does not normalize or does not match any
// business means the message is not ours.
func (r *PartyResolver) ByDestination(ctx context.Context, to string) (Business, error) {
	if r == nil || r.Directory == nil {
		return Business{}, fmt.Errorf("core: party resolver not configured")
	}
	normalized, err := NormalizePhone(to)
	if err != nil {
		return Business{}, fmt.Errorf("core: resolve destination: %w", err)
	}
	return r.Directory.BusinessByTransportNumber(ctx, normalized)
}

// ByOrigin classifies the sender. The owner's forwarding number is checked
// before any client lookup so an owner who is also saved as a client of
// their own business still routes as the owner. An unmatched or
// unparseable sender is OriginUnknown, which is a valid outcome, not an
// error.
func (r *PartyResolver) ByOrigin(ctx context.Context, business Business, from string) (Origin, error) {
	if r == nil || r.Directory == nil {
		return Origin{}, fmt.Errorf("core: party resolver not configured")
	}
	normalized, err := NormalizePhone(from)
	if err != nil {
		return Origin{Kind: OriginUnknown}, nil
	}

	if business.ForwardingNumber != "" && SamePhone(business.ForwardingNumber, normalized) {
		return Origin{Kind: OriginOwner}, nil
	}

	client, err := r.Directory.ClientByPhone(ctx, business.ID, normalized)
	if err != nil {
		if IsNotFound(err) {
			return Origin{Kind: OriginUnknown}, nil
		}
		return Origin{}, fmt.Errorf("core: resolve origin: %w", err)
	}
	return Origin{Kind: OriginClient, Client: &client}, nil
}
