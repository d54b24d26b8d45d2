package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryDirectoryStore struct {
	mu         sync.Mutex
	next       int
	businesses map[string]Business
	clients    map[string]Client
}

func newMemoryDirectoryStore() *memoryDirectoryStore {
	return &memoryDirectoryStore{
		businesses: map[string]Business{},
		clients:    map[string]Client{},
	}
}

func (s *memoryDirectoryStore) UpsertBusiness(_ context.Context, in UpsertBusinessInput) (Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		for existingID, existing := range s.businesses {
			if existing.TransportNumber == in.TransportNumber {
				id = existingID
				break
			}
		}
	}
	now := time.Now().UTC()
	record := s.businesses[id]
	if id == "" {
		s.next++
		id = fmt.Sprintf("biz_%d", s.next)
		record.CreatedAt = now
	}
	record.ID = id
	record.Name = in.Name
	record.TransportNumber = in.TransportNumber
	record.ForwardingNumber = in.ForwardingNumber
	record.ForwardingEnabled = in.ForwardingEnabled
	record.Metadata = cloneFields(in.Metadata)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.businesses[id] = record
	return record, nil
}

func (s *memoryDirectoryStore) UpsertClient(_ context.Context, in UpsertClientInput) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		for existingID, existing := range s.clients {
			if existing.BusinessID == in.BusinessID && existing.Phone == in.Phone {
				id = existingID
				break
			}
		}
	}
	now := time.Now().UTC()
	record := s.clients[id]
	if id == "" {
		s.next++
		id = fmt.Sprintf("client_%d", s.next)
		record.CreatedAt = now
	}
	record.ID = id
	record.BusinessID = in.BusinessID
	record.Name = in.Name
	record.Phone = in.Phone
	record.Metadata = cloneFields(in.Metadata)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.clients[id] = record
	return record, nil
}

func (s *memoryDirectoryStore) GetBusiness(_ context.Context, id string) (Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.businesses[id]
	if !ok {
		return Business{}, fmt.Errorf("%w: %s", ErrBusinessNotFound, id)
	}
	return record, nil
}

func (s *memoryDirectoryStore) BusinessByTransportNumber(_ context.Context, number string) (Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.businesses {
		if record.TransportNumber == number {
			return record, nil
		}
	}
	return Business{}, fmt.Errorf("%w: transport number %s", ErrBusinessNotFound, number)
}

func (s *memoryDirectoryStore) BusinessByForwardingNumber(_ context.Context, number string) (Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.businesses {
		if record.ForwardingNumber == number {
			return record, nil
		}
	}
	return Business{}, fmt.Errorf("%w: forwarding number %s", ErrBusinessNotFound, number)
}

func (s *memoryDirectoryStore) ClientByPhone(_ context.Context, businessID, phone string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.clients {
		if record.BusinessID == businessID && record.Phone == phone {
			return record, nil
		}
	}
	return Client{}, fmt.Errorf("%w: %s", ErrClientNotFound, phone)
}

func (s *memoryDirectoryStore) ListClients(_ context.Context, businessID string) ([]Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Client{}
	for _, record := range s.clients {
		if record.BusinessID == businessID {
			out = append(out, record)
		}
	}
	return out, nil
}

type memoryMessageStore struct {
	mu         sync.Mutex
	next       int
	byID       map[string]Message
	byProvider map[string]string
	order      []string
	failAppend error
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{
		byID:       map[string]Message{},
		byProvider: map[string]string{},
	}
}

func (s *memoryMessageStore) Append(_ context.Context, in AppendMessageInput) (Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return Message{}, false, s.failAppend
	}
	if in.ProviderMessageID != "" {
		if id, ok := s.byProvider[in.ProviderMessageID]; ok {
			return s.byID[id], true, nil
		}
	}
	s.next++
	now := time.Now().UTC()
	record := Message{
		ID:                fmt.Sprintf("msg_%d", s.next),
		BusinessID:        in.BusinessID,
		ClientID:          in.ClientID,
		Direction:         in.Direction,
		FromNumber:        in.FromNumber,
		ToNumber:          in.ToNumber,
		Body:              in.Body,
		ProviderMessageID: in.ProviderMessageID,
		Status:            in.Status,
		Metadata:          cloneFields(in.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.byID[record.ID] = record
	if in.ProviderMessageID != "" {
		s.byProvider[in.ProviderMessageID] = record.ID
	}
	s.order = append(s.order, record.ID)
	return record, false, nil
}

func (s *memoryMessageStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return record, nil
}

func (s *memoryMessageStore) GetByProviderMessageID(_ context.Context, providerMessageID string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byProvider[providerMessageID]
	if !ok {
		return Message{}, fmt.Errorf("%w: provider message id %s", ErrMessageNotFound, providerMessageID)
	}
	return s.byID[id], nil
}

func (s *memoryMessageStore) ListConversation(_ context.Context, filter ConversationFilter) (MessagePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []Message{}
	for _, id := range s.order {
		record := s.byID[id]
		if filter.BusinessID != "" && record.BusinessID != filter.BusinessID {
			continue
		}
		if filter.ClientID != "" && record.ClientID != filter.ClientID {
			continue
		}
		if filter.Direction != "" && record.Direction != filter.Direction {
			continue
		}
		items = append(items, record)
	}
	return MessagePage{Items: items, Page: 1, PerPage: len(items), Total: len(items)}, nil
}

func (s *memoryMessageStore) All() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

type memoryActivitySink struct {
	mu         sync.Mutex
	entries    []ActivityEntry
	failRecord error
}

func newMemoryActivitySink() *memoryActivitySink {
	return &memoryActivitySink{}
}

func (s *memoryActivitySink) Record(_ context.Context, entry ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecord != nil {
		return s.failRecord
	}
	entry.Metadata = cloneFields(entry.Metadata)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryActivitySink) List(_ context.Context, filter ActivityFilter) (ActivityPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []ActivityEntry{}
	for _, entry := range s.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.Actor != "" && entry.Actor != filter.Actor {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		items = append(items, entry)
	}
	return ActivityPage{Items: items, Page: 1, PerPage: len(items), Total: len(items)}, nil
}

func (s *memoryActivitySink) byAction(action string) []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ActivityEntry{}
	for _, entry := range s.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

type stubTransport struct {
	mu       sync.Mutex
	kind     string
	sendErr  error
	next     int
	requests []SendRequest
	numbers  []TransportNumber
}

func (t *stubTransport) Kind() string {
	if t == nil || t.kind == "" {
		return "test"
	}
	return t.kind
}

func (t *stubTransport) Send(_ context.Context, req SendRequest) (SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.sendErr != nil {
		return SendResult{}, t.sendErr
	}
	t.next++
	return SendResult{
		ProviderMessageID: fmt.Sprintf("SM_out_%d", t.next),
		Status:            "queued",
	}, nil
}

func (t *stubTransport) ListNumbers(_ context.Context, _ NumberFilter) ([]TransportNumber, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TransportNumber(nil), t.numbers...), nil
}

func (t *stubTransport) PurchaseNumber(_ context.Context, req PurchaseNumberRequest) (TransportNumber, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	number := req.Number
	if number == "" {
		number = "+1" + req.AreaCode + "5550100"
	}
	purchased := TransportNumber{Number: number, ProviderSID: "PN_test", FriendlyName: req.FriendlyName}
	t.numbers = append(t.numbers, purchased)
	return purchased, nil
}

func (t *stubTransport) Requests() []SendRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SendRequest(nil), t.requests...)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
