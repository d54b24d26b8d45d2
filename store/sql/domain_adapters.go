package sqlstore

import (
	"strings"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	"github.com/MuhammadAslam635/referable-dev-sub000/webhooks"
	"github.com/google/uuid"
)

func (r *businessRecord) toDomain() core.Business {
	if r == nil {
		return core.Business{}
	}
	return core.Business{
		ID:                r.ID,
		Name:              r.Name,
		TransportNumber:   r.TransportNumber,
		ForwardingNumber:  r.ForwardingNumber,
		ForwardingEnabled: r.ForwardingEnabled,
		Metadata:          copyAnyMap(r.Metadata),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r *clientRecord) toDomain() core.Client {
	if r == nil {
		return core.Client{}
	}
	return core.Client{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		Name:       r.Name,
		Phone:      r.Phone,
		Metadata:   copyAnyMap(r.Metadata),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func newMessageRecord(in core.AppendMessageInput, now time.Time) *messageRecord {
	record := &messageRecord{
		ID:                uuid.NewString(),
		BusinessID:        strings.TrimSpace(in.BusinessID),
		Direction:         string(in.Direction),
		FromNumber:        strings.TrimSpace(in.FromNumber),
		ToNumber:          strings.TrimSpace(in.ToNumber),
		Body:              in.Body,
		ProviderMessageID: strings.TrimSpace(in.ProviderMessageID),
		Status:            string(in.Status),
		Metadata:          copyAnyMap(in.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if clientID := strings.TrimSpace(in.ClientID); clientID != "" {
		record.ClientID = &clientID
	}
	return record
}

func (r *messageRecord) toDomain() core.Message {
	if r == nil {
		return core.Message{}
	}
	message := core.Message{
		ID:                r.ID,
		BusinessID:        r.BusinessID,
		Direction:         core.MessageDirection(r.Direction),
		FromNumber:        r.FromNumber,
		ToNumber:          r.ToNumber,
		Body:              r.Body,
		ProviderMessageID: r.ProviderMessageID,
		Status:            core.MessageStatus(r.Status),
		Metadata:          copyAnyMap(r.Metadata),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.ClientID != nil {
		message.ClientID = strings.TrimSpace(*r.ClientID)
	}
	return message
}

func newReplyContextRecord(in core.UpsertReplyContextInput, expiresAt, now time.Time) *replyContextRecord {
	return &replyContextRecord{
		ID:                    uuid.NewString(),
		BusinessID:            strings.TrimSpace(in.BusinessID),
		ClientID:              strings.TrimSpace(in.ClientID),
		ClientPhone:           strings.TrimSpace(in.ClientPhone),
		ForwardingNumber:      strings.TrimSpace(in.ForwardingNumber),
		TransportNumber:       strings.TrimSpace(in.TransportNumber),
		LastProviderMessageID: strings.TrimSpace(in.ProviderMessageID),
		ExpiresAt:             expiresAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (r *replyContextRecord) toDomain() core.ReplyContext {
	if r == nil {
		return core.ReplyContext{}
	}
	return core.ReplyContext{
		ID:                    r.ID,
		BusinessID:            r.BusinessID,
		ClientID:              r.ClientID,
		ClientPhone:           r.ClientPhone,
		ForwardingNumber:      r.ForwardingNumber,
		TransportNumber:       r.TransportNumber,
		LastProviderMessageID: r.LastProviderMessageID,
		ExpiresAt:             r.ExpiresAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func (r *webhookDeliveryRecord) toDomain() webhooks.DeliveryRecord {
	if r == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         r.ID,
		ClaimID:    r.ClaimID,
		ProviderID: r.ProviderID,
		DeliveryID: r.DeliveryID,
		Status:     r.Status,
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.NextAttemptAt != nil {
		value := *r.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
