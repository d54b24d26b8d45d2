package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

var (
	_ gocmd.Querier[ListConversationMessage, core.MessagePage]  = (*ListConversationQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.ActivityPage]     = (*ListActivityQuery)(nil)
	_ gocmd.Querier[GetMessageMessage, core.Message]            = (*GetMessageQuery)(nil)
	_ gocmd.Querier[GetBusinessMessage, core.Business]          = (*GetBusinessQuery)(nil)
	_ gocmd.Querier[ListNumbersMessage, []core.TransportNumber] = (*ListNumbersQuery)(nil)
)
