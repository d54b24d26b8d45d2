package query

import (
	"strings"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

const (
	TypeListConversation = "relay.query.conversation.list"
	TypeListActivity     = "relay.query.activity.list"
	TypeGetMessage       = "relay.query.message.get"
	TypeGetBusiness      = "relay.query.business.get"
	TypeListNumbers      = "relay.query.number.list"
)

type ListConversationMessage struct {
	Filter core.ConversationFilter
}

func (ListConversationMessage) Type() string { return TypeListConversation }

func (m ListConversationMessage) Validate() error {
	if strings.TrimSpace(m.Filter.BusinessID) == "" {
		return queryValidationError("business_id", "business id is required")
	}
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type GetMessageMessage struct {
	MessageID string
}

func (GetMessageMessage) Type() string { return TypeGetMessage }

func (m GetMessageMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return queryValidationError("message_id", "message id is required")
	}
	return nil
}

type GetBusinessMessage struct {
	BusinessID string
}

func (GetBusinessMessage) Type() string { return TypeGetBusiness }

func (m GetBusinessMessage) Validate() error {
	if strings.TrimSpace(m.BusinessID) == "" {
		return queryValidationError("business_id", "business id is required")
	}
	return nil
}

type ListNumbersMessage struct {
	Filter core.NumberFilter
}

func (ListNumbersMessage) Type() string { return TypeListNumbers }

func (m ListNumbersMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
