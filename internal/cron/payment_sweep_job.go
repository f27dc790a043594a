package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/alxgalache/kuadrat-backend/internal/payments"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
)

const (
	defaultSweepMinAge = 10 * time.Minute
	defaultSweepMaxAge = 72 * time.Hour
	defaultSweepBatch  = 100
)

type awaitingPaymentReader interface {
	FindAwaitingPayment(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Order, error)
}

type paymentConfirmer interface {
	LatestPayment(ctx context.Context, gatewayOrderID string) (*revolut.Payment, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentID string) (*payments.Confirmation, error)
}

type PaymentSweepJobParams struct {
	Logger   *logger.Logger
	Orders   awaitingPaymentReader
	Payments paymentConfirmer
	MinAge   time.Duration
	MaxAge   time.Duration
	Batch    int
}

// NewPaymentSweepJob builds the job that confirms orders whose buyer paid but
// never reached the confirm call.
func NewPaymentSweepJob(params PaymentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.MinAge <= 0 {
		params.MinAge = defaultSweepMinAge
	}
	if params.MaxAge <= 0 {
		params.MaxAge = defaultSweepMaxAge
	}
	if params.MaxAge <= params.MinAge {
		return nil, fmt.Errorf("sweep max age must exceed min age")
	}
	if params.Batch <= 0 {
		params.Batch = defaultSweepBatch
	}
	return &paymentSweepJob{
		logg:     params.Logger,
		orders:   params.Orders,
		payments: params.Payments,
		minAge:   params.MinAge,
		maxAge:   params.MaxAge,
		batch:    params.Batch,
		now:      time.Now,
	}, nil
}

type paymentSweepJob struct {
	logg     *logger.Logger
	orders   awaitingPaymentReader
	payments paymentConfirmer
	minAge   time.Duration
	maxAge   time.Duration
	batch    int
	now      func() time.Time
}

func (j *paymentSweepJob) Name() string { return "payment-sweep" }

func (j *paymentSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	candidates, err := j.orders.FindAwaitingPayment(ctx, now.Add(-j.maxAge), now.Add(-j.minAge), j.batch)
	if err != nil {
		return fmt.Errorf("load awaiting orders: %w", err)
	}

	var (
		errs      error
		confirmed int
	)
	for _, order := range candidates {
		ok, err := j.sweepOrder(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if ok {
			confirmed++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"confirmed":  confirmed,
		"failed":     len(multierr.Errors(errs)),
	}), "payment sweep complete")
	return errs
}

func (j *paymentSweepJob) sweepOrder(ctx context.Context, order models.Order) (bool, error) {
	if order.GatewayOrderID == nil || *order.GatewayOrderID == "" || !order.Status.AwaitingPayment() {
		return false, nil
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"gateway_order_id": *order.GatewayOrderID,
	})

	latest, err := j.payments.LatestPayment(ctx, *order.GatewayOrderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if !latest.Succeeded() {
		return false, nil
	}

	confirmation, err := j.payments.ConfirmPayment(ctx, order.ID, latest.ID)
	if err != nil {
		return false, err
	}
	if confirmation.Transitioned() {
		j.logg.Warn(j.logg.WithField(ctx, "payment_id", latest.ID), "sweep recovered unconfirmed payment")
	}
	return confirmation.Transitioned(), nil
}
