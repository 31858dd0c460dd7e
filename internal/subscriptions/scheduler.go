package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/orders"
	"github.com/bissquit/grocer/internal/pkg/ctxlog"
	"github.com/bissquit/grocer/internal/schedule"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SchedulerConfig contains tick configuration.
type SchedulerConfig struct {
	// BatchSize caps the number of due subscriptions loaded per tick.
	BatchSize int
	// Workers bounds concurrent per-subscription processing.
	Workers int
	// ItemTimeout bounds claim plus materialization of one subscription.
	ItemTimeout time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:   500,
		Workers:     8,
		ItemTimeout: 30 * time.Second,
	}
}

// TickResult summarises one tick.
type TickResult struct {
	Due int
	// Claimed firings are those this tick advanced; each ends up as an
	// order, a skip or a dropped (failed) materialization.
	Claimed       int
	Lost          int
	OrdersCreated int
	Skipped       int
	// Failed counts claim errors and dropped materializations.
	Failed int
	// Err is set when the due query failed and the tick ended early.
	Err error
}

// Scheduler turns due subscriptions into orders. It is safe to run any
// number of ticks concurrently, in one process or many: the conditional
// advance of next_run_at admits exactly one winner per firing.
type Scheduler struct {
	config  SchedulerConfig
	store   Store
	catalog ProductCatalog
	orders  OrderCreator
}

// NewScheduler creates a new scheduler.
func NewScheduler(config SchedulerConfig, store Store, catalog ProductCatalog, orders OrderCreator) *Scheduler {
	return &Scheduler{
		config:  config,
		store:   store,
		catalog: catalog,
		orders:  orders,
	}
}

type outcome int

const (
	outcomeLost outcome = iota
	outcomeOrdered
	outcomeSkipped
	outcomeFailed
	outcomeClaimFailed
)

// RunTick processes every subscription due at now. Per-subscription
// failures are logged and counted, never returned.
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) TickResult {
	start := time.Now()
	result := s.runTick(ctx, now)
	recordTick(result, time.Since(start))
	return result
}

func (s *Scheduler) runTick(ctx context.Context, now time.Time) TickResult {
	ctx = ctxlog.With(ctx, "tick_id", uuid.New().String())
	logger := ctxlog.FromContext(ctx)

	due, err := s.store.FindDue(ctx, now, s.config.BatchSize)
	if err != nil {
		logger.Error("failed to load due subscriptions", "now", now, "error", err)
		return TickResult{Err: fmt.Errorf("find due subscriptions: %w", err)}
	}

	result := TickResult{Due: len(due)}
	if len(due) == 0 {
		return result
	}

	var lost, ordered, skipped, failed, claimFailed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(max(s.config.Workers, 1))
	for i := range due {
		sub := &due[i]
		g.Go(func() error {
			switch s.process(ctx, sub, now) {
			case outcomeLost:
				lost.Add(1)
			case outcomeOrdered:
				ordered.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeClaimFailed:
				claimFailed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Lost = int(lost.Load())
	result.OrdersCreated = int(ordered.Load())
	result.Skipped = int(skipped.Load())
	result.Claimed = result.OrdersCreated + result.Skipped + int(failed.Load())
	result.Failed = int(failed.Load() + claimFailed.Load())

	logger.Info("scheduler tick finished",
		"due", result.Due,
		"claimed", result.Claimed,
		"lost", result.Lost,
		"orders", result.OrdersCreated,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result
}

// process claims one firing and materializes it. A claim error counts as
// failed without an advance; a materialization error after a successful
// claim is a dropped order.
func (s *Scheduler) process(ctx context.Context, sub *domain.Subscription, now time.Time) outcome {
	ctx, cancel := context.WithTimeout(ctx, s.config.ItemTimeout)
	defer cancel()

	logger := ctxlog.FromContext(ctx).With("subscription_id", sub.ID, "subscription_name", sub.Name)

	next := schedule.NextRunAt(schedule.FromSubscription(sub), now)
	affected, err := s.store.ConditionalAdvance(ctx, sub.ID, sub.NextRunAt, next)
	if err != nil {
		logger.Error("failed to claim subscription", "error", err)
		return outcomeClaimFailed
	}
	if affected == 0 {
		logger.Debug("subscription already claimed by another tick")
		return outcomeLost
	}

	order, err := s.materialize(ctx, sub)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("order materialization timed out, firing dropped",
				"next_run_at", next, "timeout", s.config.ItemTimeout)
		} else {
			logger.Error("order materialization failed, firing dropped",
				"next_run_at", next, "error", err)
		}
		return outcomeFailed
	}
	if order == nil {
		logger.Info("no orderable items, firing skipped", "next_run_at", next)
		return outcomeSkipped
	}

	logger.Info("subscription order created",
		"order_id", order.ID,
		"items", len(order.Items),
		"next_run_at", next,
	)
	return outcomeOrdered
}

// materialize creates the order for a claimed firing. It returns nil, nil
// when none of the subscription's products is currently available.
func (s *Scheduler) materialize(ctx context.Context, sub *domain.Subscription) (*domain.Order, error) {
	available, err := s.catalog.FindAvailable(ctx, sub.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("find available products: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(sub.Items))
	for _, item := range sub.Items {
		product, ok := available[item.ProductID]
		if !ok {
			continue
		}
		items = append(items, orders.LineFor(product, item.Quantity))
	}
	if len(items) == 0 {
		return nil, nil
	}

	subscriptionID := sub.ID
	order := &domain.Order{
		UserID:         sub.UserID,
		SubscriptionID: &subscriptionID,
		Status:         domain.OrderStatusPending,
		Items:          items,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}
