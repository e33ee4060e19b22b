package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tmnhat/platterly-backend/internal/payments"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/logger"
)

const (
	paymentReconcileAgeMinutes = 30
	paymentReconcileBatchSize  = 100
)

// PaymentReconcileJobParams configure the stale payment sweeper.
type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Reader     stalePaymentReader
	Reconciler paymentReconciler
	MinAge     time.Duration
	BatchSize  int
}

type stalePaymentReader interface {
	FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.CallbackOutcome, error)
}

// NewPaymentReconcileJob builds the job that re-queries the gateway for
// payments stuck in pending longer than the configured age.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("stale payment reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("payment reconciler required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = paymentReconcileAgeMinutes * time.Minute
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = paymentReconcileBatchSize
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		reader:     params.Reader,
		reconciler: params.Reconciler,
		minAge:     minAge,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	reader     stalePaymentReader
	reconciler paymentReconciler
	minAge     time.Duration
	batchSize  int
	now        func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	orders, err := j.reader.FindStalePendingPayments(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale pending payments: %w", err)
	}

	var errs []error
	reconciled := 0
	for _, order := range orders {
		outcome, err := j.reconciler.Reconcile(ctx, order.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile order %s: %w", order.ID, err))
			continue
		}
		if outcome.Applied {
			reconciled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(orders),
		"reconciled": reconciled,
		"failures":   len(errs),
	})
	j.logg.Info(logCtx, "payment reconcile sweep complete")
	return multierr.Combine(errs...)
}
