package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessInboundMessage] = (*ProcessInboundCommand)(nil)
	_ gocmd.Commander[SweepContextsMessage]  = (*SweepContextsCommand)(nil)
	_ gocmd.Commander[UpsertBusinessMessage] = (*UpsertBusinessCommand)(nil)
	_ gocmd.Commander[UpsertClientMessage]   = (*UpsertClientCommand)(nil)
	_ gocmd.Commander[PurchaseNumberMessage] = (*PurchaseNumberCommand)(nil)
)
