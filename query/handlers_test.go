package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

func TestListConversationQuery_QueryDelegates(t *testing.T) {
	expected := core.MessagePage{
		Items: []core.Message{
			{ID: "msg_1", BusinessID: "biz_1", Direction: core.DirectionInbound, Body: "Are you open?"},
		},
		Page:    1,
		PerPage: 20,
		Total:   1,
	}
	called := false
	reader := stubConversationReader{
		listFn: func(_ context.Context, filter core.ConversationFilter) (core.MessagePage, error) {
			called = true
			if filter.BusinessID != "biz_1" || filter.ClientID != "cli_1" {
				t.Fatalf("unexpected filter: %#v", filter)
			}
			return expected, nil
		},
	}

	qry := NewListConversationQuery(reader)
	result, err := qry.Query(context.Background(), ListConversationMessage{
		Filter: core.ConversationFilter{BusinessID: "biz_1", ClientID: "cli_1", Page: 1, PerPage: 20},
	})
	if err != nil {
		t.Fatalf("query conversation: %v", err)
	}
	if !called {
		t.Fatalf("expected conversation reader invocation")
	}
	if result.Total != expected.Total || len(result.Items) != 1 {
		t.Fatalf("unexpected conversation page: %#v", result)
	}
}

func TestListActivityQuery_QueryDelegates(t *testing.T) {
	expected := core.ActivityPage{
		Items: []core.ActivityEntry{
			{ID: "act_1", Action: "message.relayed", Status: core.ActivityStatusOK},
		},
		Page:    1,
		PerPage: 50,
		Total:   1,
	}
	called := false
	reader := stubActivityReader{
		listFn: func(_ context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
			called = true
			if filter.Action != "message.relayed" {
				t.Fatalf("unexpected activity filter: %#v", filter)
			}
			return expected, nil
		},
	}

	qry := NewListActivityQuery(reader)
	result, err := qry.Query(context.Background(), ListActivityMessage{
		Filter: core.ActivityFilter{Action: "message.relayed", Page: 1, PerPage: 50},
	})
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	if !called {
		t.Fatalf("expected activity reader invocation")
	}
	if result.Total != expected.Total {
		t.Fatalf("unexpected activity page: %#v", result)
	}
}

func TestLookupQueries_Delegate(t *testing.T) {
	t.Run("get message", func(t *testing.T) {
		called := false
		reader := stubConversationReader{
			getFn: func(_ context.Context, id string) (core.Message, error) {
				called = true
				if id != "msg_1" {
					t.Fatalf("unexpected message id %q", id)
				}
				return core.Message{ID: id, BusinessID: "biz_1", Status: core.MessageStatusRelayed}, nil
			},
		}
		result, err := NewGetMessageQuery(reader).Query(context.Background(), GetMessageMessage{
			MessageID: "msg_1",
		})
		if err != nil {
			t.Fatalf("query message: %v", err)
		}
		if !called || result.ID != "msg_1" {
			t.Fatalf("expected get message delegation, got %#v", result)
		}
	})

	t.Run("get business", func(t *testing.T) {
		called := false
		reader := stubDirectoryReader{
			getFn: func(_ context.Context, id string) (core.Business, error) {
				called = true
				if id != "biz_1" {
					t.Fatalf("unexpected business id %q", id)
				}
				return core.Business{ID: id, Name: "Bloom Floral"}, nil
			},
		}
		result, err := NewGetBusinessQuery(reader).Query(context.Background(), GetBusinessMessage{
			BusinessID: "biz_1",
		})
		if err != nil {
			t.Fatalf("query business: %v", err)
		}
		if !called || result.Name != "Bloom Floral" {
			t.Fatalf("expected get business delegation, got %#v", result)
		}
	})

	t.Run("list numbers", func(t *testing.T) {
		called := false
		reader := stubNumberReader{
			listFn: func(_ context.Context, filter core.NumberFilter) ([]core.TransportNumber, error) {
				called = true
				if filter.AreaCode != "415" {
					t.Fatalf("unexpected number filter: %#v", filter)
				}
				return []core.TransportNumber{{Number: "+14155550123", ProviderSID: "PN1"}}, nil
			},
		}
		result, err := NewListNumbersQuery(reader).Query(context.Background(), ListNumbersMessage{
			Filter: core.NumberFilter{AreaCode: "415"},
		})
		if err != nil {
			t.Fatalf("list numbers query: %v", err)
		}
		if !called || len(result) != 1 {
			t.Fatalf("expected list numbers delegation, got %#v", result)
		}
	})

	t.Run("reader errors pass through", func(t *testing.T) {
		wantErr := fmt.Errorf("store offline")
		reader := stubConversationReader{
			getFn: func(_ context.Context, _ string) (core.Message, error) {
				return core.Message{}, wantErr
			},
		}
		_, err := NewGetMessageQuery(reader).Query(context.Background(), GetMessageMessage{MessageID: "msg_1"})
		if err == nil || err.Error() != wantErr.Error() {
			t.Fatalf("expected reader error passthrough, got %v", err)
		}
	})
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name: "list conversation valid",
			msg: ListConversationMessage{Filter: core.ConversationFilter{
				BusinessID: "biz_1",
				Page:       1,
				PerPage:    20,
			}},
			wantErr: false,
		},
		{
			name:    "list conversation missing business",
			msg:     ListConversationMessage{},
			wantErr: true,
		},
		{
			name: "list conversation negative page",
			msg: ListConversationMessage{Filter: core.ConversationFilter{
				BusinessID: "biz_1",
				Page:       -1,
			}},
			wantErr: true,
		},
		{
			name:    "list activity valid",
			msg:     ListActivityMessage{Filter: core.ActivityFilter{Page: 1, PerPage: 50}},
			wantErr: false,
		},
		{
			name:    "list activity negative per page",
			msg:     ListActivityMessage{Filter: core.ActivityFilter{PerPage: -1}},
			wantErr: true,
		},
		{
			name:    "get message valid",
			msg:     GetMessageMessage{MessageID: "msg_1"},
			wantErr: false,
		},
		{
			name:    "get message missing id",
			msg:     GetMessageMessage{},
			wantErr: true,
		},
		{
			name:    "get business missing id",
			msg:     GetBusinessMessage{},
			wantErr: true,
		},
		{
			name:    "list numbers valid",
			msg:     ListNumbersMessage{Filter: core.NumberFilter{AreaCode: "415", Limit: 10}},
			wantErr: false,
		},
		{
			name:    "list numbers negative limit",
			msg:     ListNumbersMessage{Filter: core.NumberFilter{Limit: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubConversationReader struct {
	listFn func(ctx context.Context, filter core.ConversationFilter) (core.MessagePage, error)
	getFn  func(ctx context.Context, id string) (core.Message, error)
}

func (s stubConversationReader) ListConversation(
	ctx context.Context,
	filter core.ConversationFilter,
) (core.MessagePage, error) {
	if s.listFn == nil {
		return core.MessagePage{}, fmt.Errorf("list conversation not configured")
	}
	return s.listFn(ctx, filter)
}

func (s stubConversationReader) GetMessage(ctx context.Context, id string) (core.Message, error) {
	if s.getFn == nil {
		return core.Message{}, fmt.Errorf("get message not configured")
	}
	return s.getFn(ctx, id)
}

type stubActivityReader struct {
	listFn func(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

func (s stubActivityReader) ListActivity(
	ctx context.Context,
	filter core.ActivityFilter,
) (core.ActivityPage, error) {
	if s.listFn == nil {
		return core.ActivityPage{}, fmt.Errorf("list activity not configured")
	}
	return s.listFn(ctx, filter)
}

type stubDirectoryReader struct {
	getFn func(ctx context.Context, id string) (core.Business, error)
}

func (s stubDirectoryReader) GetBusiness(ctx context.Context, id string) (core.Business, error) {
	if s.getFn == nil {
		return core.Business{}, fmt.Errorf("get business not configured")
	}
	return s.getFn(ctx, id)
}

type stubNumberReader struct {
	listFn func(ctx context.Context, filter core.NumberFilter) ([]core.TransportNumber, error)
}

func (s stubNumberReader) ListNumbers(
	ctx context.Context,
	filter core.NumberFilter,
) ([]core.TransportNumber, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("list numbers not configured")
	}
	return s.listFn(ctx, filter)
}

var (
	_ ConversationReader = stubConversationReader{}
	_ ActivityReader     = stubActivityReader{}
	_ DirectoryReader    = stubDirectoryReader{}
	_ NumberReader       = stubNumberReader{}
)
