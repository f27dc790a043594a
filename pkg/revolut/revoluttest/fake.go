// Package revoluttest provides an in-memory Merchant API double.
package revoluttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
)

// UpdateCall records one PATCH issued against the fake.
type UpdateCall struct {
	OrderID string
	Request revolut.OrderRequest
}

// Gateway implements revolut.Gateway in memory. Error fields make the matching
// call fail.
type Gateway struct {
	mu sync.Mutex

	CreateErr   error
	UpdateErr   error
	CancelErr   error
	PaymentsErr error

	Created   []revolut.OrderRequest
	Updated   []UpdateCall
	Cancelled []string
	Payments  map[string][]revolut.Payment

	seq int
}

var _ revolut.Gateway = (*Gateway)(nil)

// New returns an empty fake gateway.
func New() *Gateway {
	return &Gateway{Payments: map[string][]revolut.Payment{}}
}

func (g *Gateway) CreateOrder(_ context.Context, req revolut.OrderRequest) (*revolut.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	g.Created = append(g.Created, req)
	return &revolut.Order{
		ID:          fmt.Sprintf("gw-order-%d", g.seq),
		Token:       fmt.Sprintf("gw-token-%d", g.seq),
		State:       "pending",
		Amount:      req.Amount,
		Currency:    req.Currency,
		CheckoutURL: fmt.Sprintf("https://checkout.test/%d", g.seq),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (g *Gateway) UpdateOrder(_ context.Context, orderID string, req revolut.OrderRequest) (*revolut.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.UpdateErr != nil {
		return nil, g.UpdateErr
	}
	g.Updated = append(g.Updated, UpdateCall{OrderID: orderID, Request: req})
	return &revolut.Order{ID: orderID, State: "pending", Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *Gateway) CancelOrder(_ context.Context, orderID string) (*revolut.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CancelErr != nil {
		return nil, g.CancelErr
	}
	g.Cancelled = append(g.Cancelled, orderID)
	return &revolut.Order{ID: orderID, State: "cancelled"}, nil
}

func (g *Gateway) GetOrder(_ context.Context, orderID string) (*revolut.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &revolut.Order{ID: orderID, State: "pending", Payments: g.Payments[orderID]}, nil
}

func (g *Gateway) ListOrderPayments(_ context.Context, orderID string) ([]revolut.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PaymentsErr != nil {
		return nil, g.PaymentsErr
	}
	return append([]revolut.Payment(nil), g.Payments[orderID]...), nil
}

func (g *Gateway) GetPayment(_ context.Context, paymentID string) (*revolut.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, payments := range g.Payments {
		for _, p := range payments {
			if p.ID == paymentID {
				payment := p
				return &payment, nil
			}
		}
	}
	return nil, &revolut.APIError{Status: 404, Message: "payment not found"}
}

// AddPayment registers a payment under a gateway order.
func (g *Gateway) AddPayment(orderID string, payment revolut.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Payments == nil {
		g.Payments = map[string][]revolut.Payment{}
	}
	g.Payments[orderID] = append(g.Payments[orderID], payment)
}

// CreatedCount returns how many orders were created.
func (g *Gateway) CreatedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Created)
}
