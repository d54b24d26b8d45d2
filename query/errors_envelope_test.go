package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

func TestQueryMessageValidation_EnvelopesFirstBadField(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		field string
	}{
		{
			name:  "conversation without business",
			err:   (ListConversationMessage{}).Validate(),
			field: "business_id",
		},
		{
			name: "conversation negative page",
			err: (ListConversationMessage{Filter: core.ConversationFilter{
				BusinessID: "biz_1",
				Page:       -1,
			}}).Validate(),
			field: "page",
		},
		{
			name:  "activity negative per_page",
			err:   (ListActivityMessage{Filter: core.ActivityFilter{PerPage: -5}}).Validate(),
			field: "per_page",
		},
		{
			name:  "message lookup without id",
			err:   (GetMessageMessage{}).Validate(),
			field: "message_id",
		},
		{
			name:  "business lookup without id",
			err:   (GetBusinessMessage{}).Validate(),
			field: "business_id",
		},
		{
			name:  "numbers negative limit",
			err:   (ListNumbersMessage{Filter: core.NumberFilter{Limit: -1}}).Validate(),
			field: "limit",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				t.Fatalf("expected validation error")
			}
			var rich *goerrors.Error
			if !goerrors.As(tc.err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", tc.err)
			}
			if rich.Category != goerrors.CategoryValidation {
				t.Fatalf("expected validation category, got %q", rich.Category)
			}
			if rich.TextCode != core.RelayErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.RelayErrorBadInput, rich.TextCode)
			}
			if rich.Code != http.StatusBadRequest {
				t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
			}
			fields := rich.AllValidationErrors()
			if len(fields) == 0 {
				t.Fatalf("expected validation detail in envelope")
			}
			if fields[0].Field != tc.field {
				t.Fatalf("expected %q validation field, got %q", tc.field, fields[0].Field)
			}
		})
	}
}

func TestQueryMessageValidation_OptionalFiltersPass(t *testing.T) {
	if err := (ListActivityMessage{}).Validate(); err != nil {
		t.Fatalf("activity filter fields are optional: %v", err)
	}
	if err := (ListNumbersMessage{}).Validate(); err != nil {
		t.Fatalf("number filter fields are optional: %v", err)
	}
	if err := (ListConversationMessage{Filter: core.ConversationFilter{BusinessID: "biz_1"}}).Validate(); err != nil {
		t.Fatalf("conversation filter with a business id should pass: %v", err)
	}
}

func TestQueries_MissingReaderReturnsInternalEnvelope(t *testing.T) {
	assertInternal := func(t *testing.T, err error) {
		t.Helper()
		if err == nil {
			t.Fatalf("expected dependency error")
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryInternal {
			t.Fatalf("expected internal category, got %q", rich.Category)
		}
		if rich.TextCode != core.RelayErrorInternal {
			t.Fatalf("expected %q text code, got %q", core.RelayErrorInternal, rich.TextCode)
		}
		if rich.Code != http.StatusInternalServerError {
			t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
		}
	}

	ctx := context.Background()

	var conversations *ListConversationQuery
	_, err := conversations.Query(ctx, ListConversationMessage{})
	assertInternal(t, err)

	var activity *ListActivityQuery
	_, err = activity.Query(ctx, ListActivityMessage{})
	assertInternal(t, err)

	var message *GetMessageQuery
	_, err = message.Query(ctx, GetMessageMessage{MessageID: "msg_1"})
	assertInternal(t, err)

	var business *GetBusinessQuery
	_, err = business.Query(ctx, GetBusinessMessage{BusinessID: "biz_1"})
	assertInternal(t, err)

	var numbers *ListNumbersQuery
	_, err = numbers.Query(ctx, ListNumbersMessage{})
	assertInternal(t, err)
}
