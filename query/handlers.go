package query

import (
	"context"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

// Reader interfaces cover the slices of the relay service each query needs;
// *core.Service satisfies all of them.

type ConversationReader interface {
	ListConversation(ctx context.Context, filter core.ConversationFilter) (core.MessagePage, error)
	GetMessage(ctx context.Context, id string) (core.Message, error)
}

type ActivityReader interface {
	ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

type DirectoryReader interface {
	GetBusiness(ctx context.Context, id string) (core.Business, error)
}

type NumberReader interface {
	ListNumbers(ctx context.Context, filter core.NumberFilter) ([]core.TransportNumber, error)
}

type ListConversationQuery struct {
	reader ConversationReader
}

func NewListConversationQuery(reader ConversationReader) *ListConversationQuery {
	return &ListConversationQuery{reader: reader}
}

func (q *ListConversationQuery) Query(
	ctx context.Context,
	msg ListConversationMessage,
) (core.MessagePage, error) {
	if q == nil || q.reader == nil {
		return core.MessagePage{}, queryDependencyError("query: conversation reader is required")
	}
	return q.reader.ListConversation(ctx, msg.Filter)
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(
	ctx context.Context,
	msg ListActivityMessage,
) (core.ActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.ListActivity(ctx, msg.Filter)
}

type GetMessageQuery struct {
	reader ConversationReader
}

func NewGetMessageQuery(reader ConversationReader) *GetMessageQuery {
	return &GetMessageQuery{reader: reader}
}

func (q *GetMessageQuery) Query(ctx context.Context, msg GetMessageMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, queryDependencyError("query: conversation reader is required")
	}
	return q.reader.GetMessage(ctx, msg.MessageID)
}

type GetBusinessQuery struct {
	reader DirectoryReader
}

func NewGetBusinessQuery(reader DirectoryReader) *GetBusinessQuery {
	return &GetBusinessQuery{reader: reader}
}

func (q *GetBusinessQuery) Query(ctx context.Context, msg GetBusinessMessage) (core.Business, error) {
	if q == nil || q.reader == nil {
		return core.Business{}, queryDependencyError("query: directory reader is required")
	}
	return q.reader.GetBusiness(ctx, msg.BusinessID)
}

type ListNumbersQuery struct {
	reader NumberReader
}

func NewListNumbersQuery(reader NumberReader) *ListNumbersQuery {
	return &ListNumbersQuery{reader: reader}
}

func (q *ListNumbersQuery) Query(
	ctx context.Context,
	msg ListNumbersMessage,
) ([]core.TransportNumber, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: number reader is required")
	}
	return q.reader.ListNumbers(ctx, msg.Filter)
}
