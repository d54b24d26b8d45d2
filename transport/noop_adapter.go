package transport

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

const (
	KindMemory = "memory"
	KindNoop   = "noop"
	KindTwilio = "twilio"
)

// UnsupportedTransport stands in for a gateway kind that is known to the
// relay but not wired in this deployment. Every send fails with the kind
// and the wiring reason, so a receive-only install or a missing adapter
// surfaces as a clear operational error, not a nil dereference.
type UnsupportedTransport struct {
	kind   string
	reason string
}

func NewUnsupportedTransport(kind string, reason string) *UnsupportedTransport {
	return &UnsupportedTransport{
		kind:   normalizeKind(kind),
		reason: strings.TrimSpace(reason),
	}
}

func (t *UnsupportedTransport) Kind() string {
	if t == nil {
		return ""
	}
	return t.kind
}

func (t *UnsupportedTransport) Send(context.Context, core.SendRequest) (core.SendResult, error) {
	return core.SendResult{}, t.unavailable()
}

func (t *UnsupportedTransport) ListNumbers(context.Context, core.NumberFilter) ([]core.TransportNumber, error) {
	return nil, t.unavailable()
}

func (t *UnsupportedTransport) PurchaseNumber(context.Context, core.PurchaseNumberRequest) (core.TransportNumber, error) {
	return core.TransportNumber{}, t.unavailable()
}

func (t *UnsupportedTransport) unavailable() error {
	if t == nil {
		return transportError(
			"transport: transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	message := "transport: " + t.kind + " transport is not configured"
	if t.reason != "" {
		message += ": " + t.reason
	}
	return transportError(
		message,
		goerrors.CategoryOperation,
		http.StatusNotImplemented,
		map[string]any{"transport_kind": t.kind},
	)
}

var _ core.MessageTransport = (*UnsupportedTransport)(nil)
