package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type businessRecord struct {
	bun.BaseModel `bun:"table:relay_businesses,alias:rb"`

	ID                string         `bun:"id,pk"`
	Name              string         `bun:"name,notnull"`
	TransportNumber   string         `bun:"transport_number,notnull"`
	ForwardingNumber  string         `bun:"forwarding_number"`
	ForwardingEnabled bool           `bun:"forwarding_enabled,notnull"`
	Metadata          map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt         *time.Time     `bun:"deleted_at,soft_delete"`
}

type clientRecord struct {
	bun.BaseModel `bun:"table:relay_clients,alias:rc"`

	ID         string         `bun:"id,pk"`
	BusinessID string         `bun:"business_id,notnull"`
	Name       string         `bun:"name"`
	Phone      string         `bun:"phone,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt  *time.Time     `bun:"deleted_at,soft_delete"`
}

// messageRecord rows are append-only; provider_message_id carries a unique
// index so a redelivered webhook cannot write a second row.
type messageRecord struct {
	bun.BaseModel `bun:"table:relay_messages,alias:rm"`

	ID                string         `bun:"id,pk"`
	BusinessID        string         `bun:"business_id,notnull"`
	ClientID          *string        `bun:"client_id"`
	Direction         string         `bun:"direction,notnull"`
	FromNumber        string         `bun:"from_number,notnull"`
	ToNumber          string         `bun:"to_number,notnull"`
	Body              string         `bun:"body"`
	ProviderMessageID string         `bun:"provider_message_id"`
	Status            string         `bun:"status,notnull"`
	Metadata          map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type replyContextRecord struct {
	bun.BaseModel `bun:"table:relay_reply_contexts,alias:rrc"`

	ID                    string    `bun:"id,pk"`
	BusinessID            string    `bun:"business_id,notnull"`
	ClientID              string    `bun:"client_id,notnull"`
	ClientPhone           string    `bun:"client_phone,notnull"`
	ForwardingNumber      string    `bun:"forwarding_number,notnull"`
	TransportNumber       string    `bun:"transport_number,notnull"`
	LastProviderMessageID string    `bun:"last_provider_message_id"`
	ExpiresAt             time.Time `bun:"expires_at,nullzero,notnull"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:relay_activity_entries,alias:rae"`

	ID        string         `bun:"id,pk"`
	Actor     string         `bun:"actor,notnull"`
	ActorType string         `bun:"actor_type,notnull"`
	Action    string         `bun:"action,notnull"`
	Object    string         `bun:"object"`
	Channel   string         `bun:"channel,notnull"`
	Status    string         `bun:"status,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// webhookDeliveryRecord backs the durable delivery ledger. claim_id rotates
// on every successful claim so a holder whose lease lapsed cannot finish a
// delivery someone else reclaimed.
type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:relay_webhook_deliveries,alias:rwd"`

	ID             string     `bun:"id,pk"`
	ClaimID        string     `bun:"claim_id,notnull"`
	ProviderID     string     `bun:"provider_id,notnull"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastError      string     `bun:"last_error"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	Payload        []byte     `bun:"payload"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:relay_rate_limit_state,alias:rrls"`

	ID             string         `bun:"id,pk"`
	ProviderID     string         `bun:"provider_id,notnull"`
	ScopeType      string         `bun:"scope_type,notnull"`
	ScopeID        string         `bun:"scope_id,notnull"`
	BucketKey      string         `bun:"bucket_key,notnull"`
	Limit          int            `bun:"limit_value,notnull"`
	Remaining      int            `bun:"remaining,notnull"`
	ResetAt        *time.Time     `bun:"reset_at,nullzero"`
	RetryAfter     *int           `bun:"retry_after_secs"`
	ThrottledUntil *time.Time     `bun:"throttled_until,nullzero"`
	LastStatus     int            `bun:"last_status"`
	Attempts       int            `bun:"attempts"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
