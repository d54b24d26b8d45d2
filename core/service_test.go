package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var errFactoryBroken = errors.New("store factory broken")

type stubStoreBundle struct {
	directory *memoryDirectoryStore
	messages  *memoryMessageStore
	contexts  *MemoryReplyContextStore
	activity  *memoryActivitySink
}

func newStubStoreBundle() *stubStoreBundle {
	return &stubStoreBundle{
		directory: newMemoryDirectoryStore(),
		messages:  newMemoryMessageStore(),
		contexts:  NewMemoryReplyContextStore(time.Hour),
		activity:  newMemoryActivitySink(),
	}
}

func (b *stubStoreBundle) DirectoryStore() DirectoryStore { return b.directory }

func (b *stubStoreBundle) MessageStore() MessageStore { return b.messages }

func (b *stubStoreBundle) ReplyContextStore() ReplyContextStore { return b.contexts }

func (b *stubStoreBundle) ActivitySink() ActivitySink { return b.activity }

type stubStoreFactory struct {
	bundle   *stubStoreBundle
	client   any
	buildErr error
}

func (f *stubStoreFactory) BuildStores(persistenceClient any) (StoreProvider, error) {
	f.client = persistenceClient
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return f.bundle, nil
}

func (f *stubStoreFactory) ActivitySink() ActivitySink {
	return f.bundle.activity
}

func newRelayService(t *testing.T) (*Service, *stubStoreBundle, *stubTransport) {
	t.Helper()
	bundle := newStubStoreBundle()
	transport := &stubTransport{kind: "twilio"}
	svc, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithDirectoryStore(bundle.directory),
		WithMessageStore(bundle.messages),
		WithReplyContextStore(bundle.contexts),
		WithActivitySink(bundle.activity),
		WithTransport(transport),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, bundle, transport
}

func TestService_ProcessInbound_ForwardsClientMessage(t *testing.T) {
	ctx := context.Background()
	svc, bundle, transport := newRelayService(t)

	business, err := svc.UpsertBusiness(ctx, UpsertBusinessInput{
		Name:              "  Brightline Dental  ",
		TransportNumber:   "(555) 999-0000",
		ForwardingNumber:  "555-777-0000",
		ForwardingEnabled: true,
	})
	if err != nil {
		t.Fatalf("upsert business: %v", err)
	}
	client, err := svc.UpsertClient(ctx, UpsertClientInput{
		BusinessID: business.ID,
		Name:       "Dana Cruz",
		Phone:      "+1 (555) 123-0000",
	})
	if err != nil {
		t.Fatalf("upsert client: %v", err)
	}

	outcome, err := svc.ProcessInbound(ctx, InboundMessage{
		ProviderID:        "twilio",
		ProviderMessageID: "SM_in_1",
		From:              client.Phone,
		To:                business.TransportNumber,
		Body:              "Hi, is my order ready?",
		ReceivedAt:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("process inbound: %v", err)
	}
	if outcome.Route != RouteClientToOwner {
		t.Fatalf("expected client-to-owner route, got %q", outcome.Route)
	}
	if !outcome.Forwarded {
		t.Fatalf("expected message to be forwarded")
	}
	if outcome.Client == nil || outcome.Client.ID != client.ID {
		t.Fatalf("expected outcome client %q, got %+v", client.ID, outcome.Client)
	}
	requests := transport.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected one forward send, got %d", len(requests))
	}
	if requests[0].To != "+15557770000" {
		t.Fatalf("expected forward to owner number, got %q", requests[0].To)
	}
	if got := len(bundle.messages.All()); got != 2 {
		t.Fatalf("expected inbound and outbound rows, got %d", got)
	}
}

func TestService_ProcessInbound_UnmappedDestinationFails(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelayService(t)

	_, err := svc.ProcessInbound(ctx, InboundMessage{
		ProviderID:        "twilio",
		ProviderMessageID: "SM_in_1",
		From:              "+15551230000",
		To:                "+15550009999",
		Body:              "hello",
	})
	if err == nil {
		t.Fatalf("expected unmapped destination error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected mapped rich error, got %T", err)
	}
	if richErr.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not found category, got %q", richErr.Category)
	}
}

func TestService_UpsertBusiness_NormalizesNumbers(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelayService(t)

	business, err := svc.UpsertBusiness(ctx, UpsertBusinessInput{
		Name:              "Brightline Dental",
		TransportNumber:   "555.999.0000",
		ForwardingNumber:  "+1 555 777 0000",
		ForwardingEnabled: true,
	})
	if err != nil {
		t.Fatalf("upsert business: %v", err)
	}
	if business.TransportNumber != "+15559990000" {
		t.Fatalf("expected canonical transport number, got %q", business.TransportNumber)
	}
	if business.ForwardingNumber != "+15557770000" {
		t.Fatalf("expected canonical forwarding number, got %q", business.ForwardingNumber)
	}
}

func TestService_UpsertBusiness_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelayService(t)

	if _, err := svc.UpsertBusiness(ctx, UpsertBusinessInput{
		Name:            "   ",
		TransportNumber: "+15559990000",
	}); err == nil {
		t.Fatalf("expected missing name error")
	}

	_, err := svc.UpsertBusiness(ctx, UpsertBusinessInput{
		Name:            "Brightline Dental",
		TransportNumber: "not-a-number",
	})
	if err == nil {
		t.Fatalf("expected invalid transport number error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected mapped rich error, got %T", err)
	}
	if richErr.TextCode != RelayErrorInvalidPhone {
		t.Fatalf("expected %s, got %s", RelayErrorInvalidPhone, richErr.TextCode)
	}
}

func TestService_UpsertClient_NormalizesPhone(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelayService(t)

	business, err := svc.UpsertBusiness(ctx, UpsertBusinessInput{
		Name:            "Brightline Dental",
		TransportNumber: "+15559990000",
	})
	if err != nil {
		t.Fatalf("upsert business: %v", err)
	}

	client, err := svc.UpsertClient(ctx, UpsertClientInput{
		BusinessID: business.ID,
		Name:       "  Dana Cruz  ",
		Phone:      "(555) 123-0000",
	})
	if err != nil {
		t.Fatalf("upsert client: %v", err)
	}
	if client.Phone != "+15551230000" {
		t.Fatalf("expected canonical client phone, got %q", client.Phone)
	}
	if client.Name != "Dana Cruz" {
		t.Fatalf("expected trimmed client name, got %q", client.Name)
	}

	if _, err := svc.UpsertClient(ctx, UpsertClientInput{
		Phone: "+15551230000",
	}); err == nil {
		t.Fatalf("expected missing business id error")
	}
}

func TestService_ListConversation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelayService(t)

	if _, err := svc.ListConversation(ctx, ConversationFilter{}); err == nil {
		t.Fatalf("expected missing business id error")
	}

	business, err := svc.UpsertBusiness(ctx, UpsertBusinessInput{
		Name:              "Brightline Dental",
		TransportNumber:   "+15559990000",
		ForwardingNumber:  "+15557770000",
		ForwardingEnabled: true,
	})
	if err != nil {
		t.Fatalf("upsert business: %v", err)
	}
	if _, err := svc.UpsertClient(ctx, UpsertClientInput{
		BusinessID: business.ID,
		Phone:      "+15551230000",
	}); err != nil {
		t.Fatalf("upsert client: %v", err)
	}
	if _, err := svc.ProcessInbound(ctx, InboundMessage{
		ProviderID:        "twilio",
		ProviderMessageID: "SM_in_1",
		From:              "+15551230000",
		To:                "+15559990000",
		Body:              "Hi there",
	}); err != nil {
		t.Fatalf("process inbound: %v", err)
	}

	page, err := svc.ListConversation(ctx, ConversationFilter{BusinessID: business.ID})
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected relayed pair in conversation, got %d rows", len(page.Items))
	}
}

func TestService_NumberProvisioning(t *testing.T) {
	ctx := context.Background()
	svc, _, transport := newRelayService(t)

	purchased, err := svc.PurchaseNumber(ctx, PurchaseNumberRequest{
		AreaCode:     "555",
		FriendlyName: "relay line",
	})
	if err != nil {
		t.Fatalf("purchase number: %v", err)
	}
	if purchased.ProviderSID == "" {
		t.Fatalf("expected provider sid on purchased number")
	}

	numbers, err := svc.ListNumbers(ctx, NumberFilter{})
	if err != nil {
		t.Fatalf("list numbers: %v", err)
	}
	if len(numbers) != 1 || numbers[0].Number != purchased.Number {
		t.Fatalf("expected purchased number listed, got %+v", numbers)
	}
	if transport.Kind() != "twilio" {
		t.Fatalf("expected twilio transport kind, got %q", transport.Kind())
	}
}

func TestService_PurchaseNumber_RequiresNumberOrAreaCode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelayService(t)

	_, err := svc.PurchaseNumber(ctx, PurchaseNumberRequest{})
	if err == nil {
		t.Fatalf("expected bad input error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != RelayErrorBadInput {
		t.Fatalf("expected %s, got %s", RelayErrorBadInput, richErr.TextCode)
	}
	if richErr.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input category, got %q", richErr.Category)
	}
}

func TestService_NumberOperationsRequireTransport(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(Config{}, WithLogger(stubLogger{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.ListNumbers(ctx, NumberFilter{}); err == nil {
		t.Fatalf("expected missing transport error")
	}
	_, err = svc.PurchaseNumber(ctx, PurchaseNumberRequest{Number: "+15550001111"})
	if err == nil {
		t.Fatalf("expected missing transport error")
	}
	if !strings.Contains(err.Error(), "transport") {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestService_SweepExpiredContexts(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	contexts := NewMemoryReplyContextStore(time.Hour)
	contexts.Now = func() time.Time { return start }
	activity := newMemoryActivitySink()
	svc, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithReplyContextStore(contexts),
		WithActivitySink(activity),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.Sweeper().Now = func() time.Time { return start.Add(2 * time.Hour) }

	if _, err := contexts.Upsert(ctx, UpsertReplyContextInput{
		BusinessID:        "biz_1",
		ClientID:          "client_1",
		ClientPhone:       "+15551230000",
		ForwardingNumber:  "+15557770000",
		TransportNumber:   "+15559990000",
		ProviderMessageID: "SM_in_1",
	}); err != nil {
		t.Fatalf("seed context: %v", err)
	}

	purged, err := svc.SweepExpiredContexts(ctx)
	if err != nil {
		t.Fatalf("sweep contexts: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged context, got %d", purged)
	}
	if entries := activity.byAction(ActionContextPurged); len(entries) != 1 {
		t.Fatalf("expected purge audit entry, got %d", len(entries))
	}
}

func TestNewService_BuildsStoresFromRepositoryFactory(t *testing.T) {
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	factory := &stubStoreFactory{bundle: newStubStoreBundle()}

	svc, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithPersistenceClient(persistenceClient),
		WithRepositoryFactory(factory),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if factory.client != persistenceClient {
		t.Fatalf("expected persistence client handed to factory")
	}

	deps := svc.Dependencies()
	if deps.DirectoryStore != DirectoryStore(factory.bundle.directory) {
		t.Fatalf("expected factory directory store")
	}
	if deps.MessageStore != MessageStore(factory.bundle.messages) {
		t.Fatalf("expected factory message store")
	}
	if deps.ReplyContextStore != ReplyContextStore(factory.bundle.contexts) {
		t.Fatalf("expected factory reply context store")
	}
	if deps.ActivitySink != ActivitySink(factory.bundle.activity) {
		t.Fatalf("expected factory activity sink")
	}
}

func TestNewService_FactoryBuildFailureSurfaces(t *testing.T) {
	factory := &stubStoreFactory{
		bundle:   newStubStoreBundle(),
		buildErr: errFactoryBroken,
	}
	_, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithRepositoryFactory(factory),
	)
	if err == nil {
		t.Fatalf("expected store build error")
	}
}

func TestNewService_AcceptsStoreProvider(t *testing.T) {
	bundle := newStubStoreBundle()

	svc, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithRepositoryFactory(bundle),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.DirectoryStore != DirectoryStore(bundle.directory) {
		t.Fatalf("expected provider directory store")
	}
	if deps.ActivitySink != ActivitySink(bundle.activity) {
		t.Fatalf("expected provider activity sink")
	}
}
