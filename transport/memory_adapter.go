package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

// MemoryTransport delivers nowhere and remembers everything. It backs
// local development and tests; production wiring registers a real gateway
// adapter and leaves this one for smoke checks.
type MemoryTransport struct {
	mu        sync.Mutex
	sent      []core.SendRequest
	inventory []core.TransportNumber
	owned     []core.TransportNumber
	sendErr   error
	seq       int
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) Kind() string {
	return KindMemory
}

func (t *MemoryTransport) Send(_ context.Context, req core.SendRequest) (core.SendResult, error) {
	if t == nil {
		return core.SendResult{}, transportError(
			"transport: memory transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.From) == "" {
		return core.SendResult{}, transportError(
			"transport: send requires both to and from numbers",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if strings.TrimSpace(req.Body) == "" {
		return core.SendResult{}, transportError(
			"transport: send requires a message body",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return core.SendResult{}, t.sendErr
	}
	t.seq++
	stored := req
	stored.Metadata = cloneMap(req.Metadata)
	t.sent = append(t.sent, stored)
	return core.SendResult{
		ProviderMessageID: fmt.Sprintf("MM%08d", t.seq),
		Status:            "queued",
		Metadata:          map[string]any{"transport_kind": KindMemory},
	}, nil
}

func (t *MemoryTransport) ListNumbers(_ context.Context, filter core.NumberFilter) ([]core.TransportNumber, error) {
	if t == nil {
		return nil, transportError(
			"transport: memory transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]core.TransportNumber, 0, len(t.inventory))
	for _, number := range t.inventory {
		if !matchesNumberFilter(number.Number, filter) {
			continue
		}
		result = append(result, cloneTransportNumber(number))
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (t *MemoryTransport) PurchaseNumber(_ context.Context, req core.PurchaseNumberRequest) (core.TransportNumber, error) {
	if t == nil {
		return core.TransportNumber{}, transportError(
			"transport: memory transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	requested := strings.TrimSpace(req.Number)
	for _, number := range t.owned {
		if requested != "" && number.Number == requested {
			return core.TransportNumber{}, transportError(
				fmt.Sprintf("transport: number %s is already owned", requested),
				goerrors.CategoryBadInput,
				http.StatusBadRequest,
				map[string]any{"number": requested},
			)
		}
	}

	var purchased core.TransportNumber
	found := false
	for index, number := range t.inventory {
		if requested != "" && number.Number != requested {
			continue
		}
		if requested == "" && !matchesNumberFilter(number.Number, core.NumberFilter{AreaCode: req.AreaCode}) {
			continue
		}
		purchased = number
		t.inventory = append(t.inventory[:index], t.inventory[index+1:]...)
		found = true
		break
	}
	if !found {
		t.seq++
		purchased = core.TransportNumber{
			Number:       requested,
			ProviderSID:  fmt.Sprintf("PN%08d", t.seq),
			Capabilities: []string{"sms"},
		}
		if purchased.Number == "" {
			areaCode := strings.TrimSpace(req.AreaCode)
			if areaCode == "" {
				areaCode = "555"
			}
			purchased.Number = fmt.Sprintf("+1%s555%04d", areaCode, t.seq)
		}
	}
	purchased.FriendlyName = strings.TrimSpace(req.FriendlyName)
	if purchased.FriendlyName == "" {
		purchased.FriendlyName = purchased.Number
	}
	purchased.Metadata = cloneMap(req.Metadata)

	t.owned = append(t.owned, purchased)
	return cloneTransportNumber(purchased), nil
}

// StockNumbers seeds the purchasable inventory.
func (t *MemoryTransport) StockNumbers(numbers ...core.TransportNumber) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, number := range numbers {
		t.inventory = append(t.inventory, cloneTransportNumber(number))
	}
}

// FailSendsWith makes every following Send return err until reset with nil.
func (t *MemoryTransport) FailSendsWith(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Sent returns a copy of every request accepted so far.
func (t *MemoryTransport) Sent() []core.SendRequest {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]core.SendRequest, len(t.sent))
	copy(result, t.sent)
	return result
}

// OwnedNumbers returns a copy of the numbers purchased so far.
func (t *MemoryTransport) OwnedNumbers() []core.TransportNumber {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]core.TransportNumber, 0, len(t.owned))
	for _, number := range t.owned {
		result = append(result, cloneTransportNumber(number))
	}
	return result
}

func matchesNumberFilter(number string, filter core.NumberFilter) bool {
	if areaCode := strings.TrimSpace(filter.AreaCode); areaCode != "" {
		national := strings.TrimPrefix(number, "+1")
		if !strings.HasPrefix(national, areaCode) {
			return false
		}
	}
	if contains := strings.TrimSpace(filter.Contains); contains != "" {
		if !strings.Contains(number, contains) {
			return false
		}
	}
	return true
}

func cloneTransportNumber(number core.TransportNumber) core.TransportNumber {
	cloned := number
	if len(number.Capabilities) > 0 {
		cloned.Capabilities = append([]string(nil), number.Capabilities...)
	}
	cloned.Metadata = cloneMap(number.Metadata)
	return cloned
}

var _ core.MessageTransport = (*MemoryTransport)(nil)
