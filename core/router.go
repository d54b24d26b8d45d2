package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ActionMessageForwarded = "relay.message.forwarded"
	ActionMessageLogged    = "relay.message.logged"
	ActionReplyDelivered   = "relay.reply.delivered"
	ActionSendFailed       = "relay.send.failed"
	ActionWindowExpired    = "relay.window.expired"
	ActionOptOutDetected   = "relay.optout.detected"
	ActionContextPurged    = "relay.context.purged"
)

const (
	ReasonDuplicate          = "duplicate"
	ReasonForwardingDisabled = "forwarding_disabled"
	ReasonUnknownSender      = "unknown_sender"
	ReasonWindowExpired      = "window_expired"
	ReasonSendFailed         = "send_failed"
)

// Router classifies one inbound message and drives it to a terminal state.
// It never fails the surrounding webhook for a send that could not be
// completed; those outcomes are logged, audited, and reported on the
// RelayOutcome instead. The reply-context write is ordered strictly after
// the forwarding send succeeds.
type Router struct {
	Resolver *PartyResolver
	Contexts ReplyContextStore
	Messages MessageStore
	Sender   *Sender
	Activity ActivitySink
	Logger   Logger

	ExpiryNotice string
	Now          func() time.Time
}

func NewRouter(resolver *PartyResolver, contexts ReplyContextStore, messages MessageStore, sender *Sender) *Router {
	return &Router{
		Resolver: resolver,
		Contexts: contexts,
		Messages: messages,
		Sender:   sender,
	}
}

// Route processes one verified, ledger-claimed inbound message. It returns
// an error only when the message cannot be attributed (unknown destination,
// unparseable input) or when a pre-send store read fails; downstream send
// and persistence failures resolve to a success return with the failure
// recorded on the outcome.
func (r *Router) Route(ctx context.Context, msg InboundMessage) (RelayOutcome, error) {
	if r == nil || r.Resolver == nil || r.Contexts == nil || r.Messages == nil || r.Sender == nil {
		return RelayOutcome{}, fmt.Errorf("core: router is not configured")
	}
	msg.ProviderMessageID = strings.TrimSpace(msg.ProviderMessageID)
	if msg.ProviderMessageID == "" {
		return RelayOutcome{}, fmt.Errorf("core: provider message id is required")
	}
	if strings.TrimSpace(msg.From) == "" || strings.TrimSpace(msg.To) == "" {
		return RelayOutcome{}, fmt.Errorf("core: message from and to numbers are required")
	}
	// Persisted rows carry canonical numbers. Unparseable values stay raw:
	// a bad destination fails attribution below, a bad sender is logged as
	// an unknown party.
	if normalized, normErr := NormalizePhone(msg.To); normErr == nil {
		msg.To = normalized
	}
	if normalized, normErr := NormalizePhone(msg.From); normErr == nil {
		msg.From = normalized
	}

	if existing, err := r.Messages.GetByProviderMessageID(ctx, msg.ProviderMessageID); err == nil {
		return RelayOutcome{
			Route:     RouteUnclassified,
			Message:   existing,
			Duplicate: true,
			Reason:    ReasonDuplicate,
		}, nil
	} else if !IsNotFound(err) {
		return RelayOutcome{}, fmt.Errorf("core: duplicate check: %w", err)
	}

	business, err := r.Resolver.ByDestination(ctx, msg.To)
	if err != nil {
		return RelayOutcome{}, err
	}

	origin, err := r.Resolver.ByOrigin(ctx, business, msg.From)
	if err != nil {
		return RelayOutcome{}, err
	}

	event := RelayEvent{
		BusinessID: business.ID,
		Route:      RouteUnclassified,
		CreatedAt:  r.now(),
	}

	if origin.Kind == OriginOwner {
		return r.routeOwnerReply(ctx, business, msg, event)
	}
	return r.routeClientMessage(ctx, business, origin, msg, event)
}

// routeOwnerReply handles a message sent from the owner's forwarding number
// to their own transport number. With an active reply window the body goes
// to the window's client; without one the owner gets the expiry notice so
// the lost reply is never silently dropped.
func (r *Router) routeOwnerReply(ctx context.Context, business Business, msg InboundMessage, event RelayEvent) (RelayOutcome, error) {
	outcome := RelayOutcome{Business: business}
	now := r.now()

	if err := event.TransitionTo(RouteOwnerToClient, "", now); err != nil {
		return RelayOutcome{}, err
	}

	replyContext, err := r.Contexts.FindActiveByForwardingNumber(ctx, business.ForwardingNumber, now)
	if err != nil {
		if !IsNotFound(err) {
			return RelayOutcome{}, fmt.Errorf("core: reply context lookup: %w", err)
		}
		if err := event.TransitionTo(RouteUnroutable, ReasonWindowExpired, now); err != nil {
			return RelayOutcome{}, err
		}
		return r.finishExpiredWindow(ctx, business, msg, outcome)
	}

	sendResult, sendErr := r.Sender.Send(ctx, r.rateLimitKey(business, msg), SendRequest{
		To:   replyContext.ClientPhone,
		From: replyContext.TransportNumber,
		Body: msg.Body,
	})
	if sendErr != nil {
		outcome.Route = event.Route
		outcome.Reason = ReasonSendFailed
		outcome.Message = r.appendMessage(ctx, AppendMessageInput{
			BusinessID:        business.ID,
			ClientID:          replyContext.ClientID,
			Direction:         DirectionInbound,
			FromNumber:        msg.From,
			ToNumber:          msg.To,
			Body:              msg.Body,
			ProviderMessageID: msg.ProviderMessageID,
			Status:            MessageStatusRelayFailed,
			Metadata:          map[string]any{"reason": ReasonSendFailed, "error": sendErr.Error()},
		})
		r.recordActivity(ctx, ActivityEntry{
			Actor:   msg.From,
			Action:  ActionSendFailed,
			Object:  outcome.Message.ID,
			Channel: "sms",
			Status:  ActivityStatusError,
			Metadata: map[string]any{
				"business_id": business.ID,
				"client_id":   replyContext.ClientID,
				"route":       string(event.Route),
				"error":       sendErr.Error(),
			},
		})
		return outcome, nil
	}

	refreshed, refreshErr := r.Contexts.Refresh(ctx, replyContext.ID, msg.ProviderMessageID)
	if refreshErr != nil {
		r.logStoreFailure(ctx, "reply context refresh failed", refreshErr, business.ID)
		refreshed = replyContext
	}

	outbound := r.appendMessage(ctx, AppendMessageInput{
		BusinessID:        business.ID,
		ClientID:          replyContext.ClientID,
		Direction:         DirectionOutbound,
		FromNumber:        replyContext.TransportNumber,
		ToNumber:          replyContext.ClientPhone,
		Body:              msg.Body,
		ProviderMessageID: sendResult.ProviderMessageID,
		Status:            MessageStatusSent,
		Metadata:          map[string]any{"context_id": refreshed.ID},
	})
	r.appendMessage(ctx, AppendMessageInput{
		BusinessID:        business.ID,
		ClientID:          replyContext.ClientID,
		Direction:         DirectionInbound,
		FromNumber:        msg.From,
		ToNumber:          msg.To,
		Body:              msg.Body,
		ProviderMessageID: msg.ProviderMessageID,
		Status:            MessageStatusRelayed,
		Metadata:          map[string]any{"context_id": refreshed.ID},
	})

	outcome.Route = event.Route
	outcome.Delivered = true
	outcome.Message = outbound
	outcome.ContextID = refreshed.ID
	r.recordActivity(ctx, ActivityEntry{
		Actor:   msg.From,
		Action:  ActionReplyDelivered,
		Object:  outbound.ID,
		Channel: "sms",
		Status:  ActivityStatusOK,
		Metadata: map[string]any{
			"business_id":         business.ID,
			"client_id":           replyContext.ClientID,
			"context_id":          refreshed.ID,
			"route":               string(event.Route),
			"provider_message_id": sendResult.ProviderMessageID,
		},
	})
	return outcome, nil
}

// finishExpiredWindow is the unroutable terminal: the owner replied after
// the window closed. The notice send is best effort; its failure is logged
// and never escalated.
func (r *Router) finishExpiredWindow(ctx context.Context, business Business, msg InboundMessage, outcome RelayOutcome) (RelayOutcome, error) {
	outcome.Route = RouteUnroutable
	outcome.Reason = ReasonWindowExpired

	noticeResult, noticeErr := r.Sender.Send(ctx, r.rateLimitKey(business, msg), SendRequest{
		To:   business.ForwardingNumber,
		From: business.TransportNumber,
		Body: r.expiryNoticeBody(),
	})
	if noticeErr != nil {
		r.logStoreFailure(ctx, "expiry notice send failed", noticeErr, business.ID)
	} else {
		outcome.NoticeSent = true
		r.appendMessage(ctx, AppendMessageInput{
			BusinessID:        business.ID,
			Direction:         DirectionOutbound,
			FromNumber:        business.TransportNumber,
			ToNumber:          business.ForwardingNumber,
			Body:              r.expiryNoticeBody(),
			ProviderMessageID: noticeResult.ProviderMessageID,
			Status:            MessageStatusSent,
			Metadata:          map[string]any{"notice": ReasonWindowExpired},
		})
	}

	outcome.Message = r.appendMessage(ctx, AppendMessageInput{
		BusinessID:        business.ID,
		Direction:         DirectionInbound,
		FromNumber:        msg.From,
		ToNumber:          msg.To,
		Body:              msg.Body,
		ProviderMessageID: msg.ProviderMessageID,
		Status:            MessageStatusReceived,
		Metadata:          map[string]any{"reason": ReasonWindowExpired},
	})
	r.recordActivity(ctx, ActivityEntry{
		Actor:   msg.From,
		Action:  ActionWindowExpired,
		Object:  outcome.Message.ID,
		Channel: "sms",
		Status:  ActivityStatusWarn,
		Metadata: map[string]any{
			"business_id": business.ID,
			"route":       string(RouteUnroutable),
			"notice_sent": outcome.NoticeSent,
		},
	})
	return outcome, nil
}

// routeClientMessage handles messages from clients and strangers. Known
// clients are forwarded when the business allows it, and only a successful
// forward opens a reply window. Unknown senders are logged with no client
// reference and never trigger a send.
func (r *Router) routeClientMessage(ctx context.Context, business Business, origin Origin, msg InboundMessage, event RelayEvent) (RelayOutcome, error) {
	outcome := RelayOutcome{Business: business, Client: origin.Client}
	now := r.now()

	if err := event.TransitionTo(RouteClientToOwner, "", now); err != nil {
		return RelayOutcome{}, err
	}
	outcome.Route = event.Route

	optOut := IsOptOutMessage(msg.Body)
	outcome.OptOut = optOut

	clientID := ""
	if origin.Client != nil {
		clientID = origin.Client.ID
	}

	if optOut {
		r.recordActivity(ctx, ActivityEntry{
			Actor:   msg.From,
			Action:  ActionOptOutDetected,
			Object:  msg.ProviderMessageID,
			Channel: "sms",
			Status:  ActivityStatusWarn,
			Metadata: map[string]any{
				"business_id": business.ID,
				"client_id":   clientID,
				"body":        msg.Body,
			},
		})
	}

	if origin.Kind == OriginUnknown || !business.CanForward() {
		reason := ReasonForwardingDisabled
		if origin.Kind == OriginUnknown {
			reason = ReasonUnknownSender
		}
		outcome.Reason = reason
		outcome.Message = r.appendMessage(ctx, AppendMessageInput{
			BusinessID:        business.ID,
			ClientID:          clientID,
			Direction:         DirectionInbound,
			FromNumber:        msg.From,
			ToNumber:          msg.To,
			Body:              msg.Body,
			ProviderMessageID: msg.ProviderMessageID,
			Status:            MessageStatusReceived,
			Metadata:          map[string]any{"reason": reason},
		})
		r.recordActivity(ctx, ActivityEntry{
			Actor:   msg.From,
			Action:  ActionMessageLogged,
			Object:  outcome.Message.ID,
			Channel: "sms",
			Status:  ActivityStatusOK,
			Metadata: map[string]any{
				"business_id": business.ID,
				"client_id":   clientID,
				"route":       string(event.Route),
				"reason":      reason,
			},
		})
		return outcome, nil
	}

	notice := ForwardingNotice(origin.Client, msg.From, msg.Body)
	sendResult, sendErr := r.Sender.Send(ctx, r.rateLimitKey(business, msg), SendRequest{
		To:   business.ForwardingNumber,
		From: business.TransportNumber,
		Body: notice,
	})
	if sendErr != nil {
		outcome.Reason = ReasonSendFailed
		outcome.Message = r.appendMessage(ctx, AppendMessageInput{
			BusinessID:        business.ID,
			ClientID:          clientID,
			Direction:         DirectionInbound,
			FromNumber:        msg.From,
			ToNumber:          msg.To,
			Body:              msg.Body,
			ProviderMessageID: msg.ProviderMessageID,
			Status:            MessageStatusRelayFailed,
			Metadata:          map[string]any{"reason": ReasonSendFailed, "error": sendErr.Error()},
		})
		r.recordActivity(ctx, ActivityEntry{
			Actor:   msg.From,
			Action:  ActionSendFailed,
			Object:  outcome.Message.ID,
			Channel: "sms",
			Status:  ActivityStatusError,
			Metadata: map[string]any{
				"business_id": business.ID,
				"client_id":   clientID,
				"route":       string(event.Route),
				"error":       sendErr.Error(),
			},
		})
		return outcome, nil
	}

	replyContext, upsertErr := r.Contexts.Upsert(ctx, UpsertReplyContextInput{
		BusinessID:        business.ID,
		ClientID:          clientID,
		ClientPhone:       origin.Client.Phone,
		ForwardingNumber:  business.ForwardingNumber,
		TransportNumber:   business.TransportNumber,
		ProviderMessageID: msg.ProviderMessageID,
	})
	if upsertErr != nil {
		r.logStoreFailure(ctx, "reply context upsert failed", upsertErr, business.ID)
	} else {
		outcome.ContextID = replyContext.ID
	}

	outcome.Forwarded = true
	outcome.Message = r.appendMessage(ctx, AppendMessageInput{
		BusinessID:        business.ID,
		ClientID:          clientID,
		Direction:         DirectionInbound,
		FromNumber:        msg.From,
		ToNumber:          msg.To,
		Body:              msg.Body,
		ProviderMessageID: msg.ProviderMessageID,
		Status:            MessageStatusRelayed,
		Metadata:          map[string]any{"context_id": outcome.ContextID},
	})
	r.appendMessage(ctx, AppendMessageInput{
		BusinessID:        business.ID,
		ClientID:          clientID,
		Direction:         DirectionOutbound,
		FromNumber:        business.TransportNumber,
		ToNumber:          business.ForwardingNumber,
		Body:              notice,
		ProviderMessageID: sendResult.ProviderMessageID,
		Status:            MessageStatusSent,
		Metadata:          map[string]any{"context_id": outcome.ContextID},
	})
	r.recordActivity(ctx, ActivityEntry{
		Actor:   msg.From,
		Action:  ActionMessageForwarded,
		Object:  outcome.Message.ID,
		Channel: "sms",
		Status:  ActivityStatusOK,
		Metadata: map[string]any{
			"business_id":         business.ID,
			"client_id":           clientID,
			"context_id":          outcome.ContextID,
			"route":               string(event.Route),
			"provider_message_id": msg.ProviderMessageID,
		},
	})
	return outcome, nil
}

// ForwardingNotice renders the owner-facing relay body: the sender's
// identity followed by the original message, untouched.
func ForwardingNotice(client *Client, from, body string) string {
	identity := strings.TrimSpace(from)
	if client != nil {
		if name := strings.TrimSpace(client.Name); name != "" {
			identity = fmt.Sprintf("%s (%s)", name, identity)
		}
	}
	return fmt.Sprintf("From %s: %s", identity, body)
}

func (r *Router) appendMessage(ctx context.Context, in AppendMessageInput) Message {
	message, duplicate, err := r.Messages.Append(ctx, in)
	if err != nil {
		r.logStoreFailure(ctx, "message append failed", err, in.BusinessID)
		return Message{}
	}
	if duplicate && r.Logger != nil {
		r.Logger.Info("message append deduplicated",
			"business_id", in.BusinessID,
			"provider_message_id", in.ProviderMessageID,
		)
	}
	return message
}

func (r *Router) recordActivity(ctx context.Context, entry ActivityEntry) {
	if r == nil || r.Activity == nil {
		return
	}
	entry.Metadata = RedactSensitiveMap(entry.Metadata)
	if entry.Channel == "" {
		entry.Channel = "sms"
	}
	if err := r.Activity.Record(ctx, entry); err != nil {
		r.logStoreFailure(ctx, "activity record failed", err, entry.Object)
	}
}

func (r *Router) logStoreFailure(ctx context.Context, message string, err error, object string) {
	if r == nil || r.Logger == nil {
		return
	}
	logger := r.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, "error", err, "object", object)
}

func (r *Router) rateLimitKey(business Business, msg InboundMessage) RateLimitKey {
	providerID := strings.TrimSpace(msg.ProviderID)
	if providerID == "" && r.Sender != nil && r.Sender.Transport != nil {
		providerID = r.Sender.Transport.Kind()
	}
	return RateLimitKey{
		ProviderID: providerID,
		ScopeType:  "business",
		ScopeID:    business.ID,
		BucketKey:  business.TransportNumber,
	}
}

func (r *Router) expiryNoticeBody() string {
	if r != nil && strings.TrimSpace(r.ExpiryNotice) != "" {
		return r.ExpiryNotice
	}
	return DefaultExpiryNotice
}

func (r *Router) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
