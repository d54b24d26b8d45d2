package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SendRequest is one outbound SMS handed to a transport adapter. Numbers
// are canonical (+<digits>) by the time they reach the transport.
type SendRequest struct {
	To       string
	From     string
	Body     string
	Metadata map[string]any
}

type SendResult struct {
	ProviderMessageID string
	Status            string
	Metadata          map[string]any
}

type NumberFilter struct {
	AreaCode string
	Contains string
	Limit    int
}

type TransportNumber struct {
	Number       string
	ProviderSID  string
	FriendlyName string
	Capabilities []string
	Metadata     map[string]any
}

type PurchaseNumberRequest struct {
	Number       string
	AreaCode     string
	FriendlyName string
	Metadata     map[string]any
}

// MessageTransport is the capability the relay holds on the SMS provider.
// It is constructor-injected; nothing in the engine reaches for a global
// client.
type MessageTransport interface {
	Kind() string
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	ListNumbers(ctx context.Context, filter NumberFilter) ([]TransportNumber, error)
	PurchaseNumber(ctx context.Context, req PurchaseNumberRequest) (TransportNumber, error)
}

// InboundMessage is a provider webhook delivery after parsing and signature
// verification, before any routing decision.
type InboundMessage struct {
	ProviderID        string
	ProviderMessageID string
	From              string
	To                string
	Body              string
	ReceivedAt        time.Time
	Metadata          map[string]any
}

// RelayOutcome reports what one inbound delivery caused. Client is nil for
// unknown senders; Message is the persisted inbound row except on the
// owner-to-client path, where it is the persisted outbound row.
type RelayOutcome struct {
	Route      RelayRoute
	Business   Business
	Client     *Client
	Message    Message
	Duplicate  bool
	Forwarded  bool
	Delivered  bool
	NoticeSent bool
	OptOut     bool
	ContextID  string
	Reason     string
	Metadata   map[string]any
}

type InboundRequest struct {
	ProviderID string
	Surface    string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted    bool
	StatusCode  int
	Body        []byte
	ContentType string
	Metadata    map[string]any
}

type UpsertBusinessInput struct {
	ID                string
	Name              string
	TransportNumber   string
	ForwardingNumber  string
	ForwardingEnabled bool
	Metadata          map[string]any
}

type UpsertClientInput struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	Metadata   map[string]any
}

type DirectoryStore interface {
	UpsertBusiness(ctx context.Context, in UpsertBusinessInput) (Business, error)
	UpsertClient(ctx context.Context, in UpsertClientInput) (Client, error)
	GetBusiness(ctx context.Context, id string) (Business, error)
	BusinessByTransportNumber(ctx context.Context, number string) (Business, error)
	BusinessByForwardingNumber(ctx context.Context, number string) (Business, error)
	ClientByPhone(ctx context.Context, businessID, phone string) (Client, error)
	ListClients(ctx context.Context, businessID string) ([]Client, error)
}

type AppendMessageInput struct {
	BusinessID        string
	ClientID          string
	Direction         MessageDirection
	FromNumber        string
	ToNumber          string
	Body              string
	ProviderMessageID string
	Status            MessageStatus
	Metadata          map[string]any
}

type ConversationFilter struct {
	BusinessID string
	ClientID   string
	Direction  MessageDirection
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

type MessagePage struct {
	Items   []Message
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

// MessageStore is append-only. Append reports duplicate=true when the
// provider message id was already recorded; the existing row is returned
// and no second row is written.
type MessageStore interface {
	Append(ctx context.Context, in AppendMessageInput) (Message, bool, error)
	Get(ctx context.Context, id string) (Message, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (Message, error)
	ListConversation(ctx context.Context, filter ConversationFilter) (MessagePage, error)
}

type UpsertReplyContextInput struct {
	BusinessID        string
	ClientID          string
	ClientPhone       string
	ForwardingNumber  string
	TransportNumber   string
	ProviderMessageID string
}

// ReplyContextStore keeps the reply window state. Upsert replaces any
// existing (business, client) context with a fresh one; lookups take the
// caller's clock so expiry is enforced at read time.
type ReplyContextStore interface {
	Upsert(ctx context.Context, in UpsertReplyContextInput) (ReplyContext, error)
	FindActiveByForwardingNumber(ctx context.Context, forwardingNumber string, now time.Time) (ReplyContext, error)
	Refresh(ctx context.Context, contextID, providerMessageID string) (ReplyContext, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type ActivityFilter struct {
	Actor   string
	Action  string
	Object  string
	Status  ActivityStatus
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

type ActivityPage struct {
	Items   []ActivityEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type ActivitySink interface {
	Record(ctx context.Context, entry ActivityEntry) error
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

type StoreProvider interface {
	DirectoryStore() DirectoryStore
	MessageStore() MessageStore
	ReplyContextStore() ReplyContextStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type RateLimitKey struct {
	ProviderID string
	ScopeType  string
	ScopeID    string
	BucketKey  string
}

type ProviderResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
	Metadata   map[string]any
}

type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res ProviderResponseMeta) error
}

type WebhookHandler interface {
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// RelayService is the operation surface command handlers and webhook
// processors program against.
type RelayService interface {
	ProcessInbound(ctx context.Context, msg InboundMessage) (RelayOutcome, error)
	SweepExpiredContexts(ctx context.Context) (int, error)
	UpsertBusiness(ctx context.Context, in UpsertBusinessInput) (Business, error)
	UpsertClient(ctx context.Context, in UpsertClientInput) (Client, error)
	GetBusiness(ctx context.Context, id string) (Business, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	ListConversation(ctx context.Context, filter ConversationFilter) (MessagePage, error)
	ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
	ListNumbers(ctx context.Context, filter NumberFilter) ([]TransportNumber, error)
	PurchaseNumber(ctx context.Context, req PurchaseNumberRequest) (TransportNumber, error)
}
