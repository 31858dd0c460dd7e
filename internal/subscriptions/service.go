// Package subscriptions manages recurring orders: owner CRUD, the tick that
// claims due subscriptions and the cron driver that runs it.
package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/schedule"
)

// Service implements subscription business logic for owners.
type Service struct {
	repo     Repository
	products ProductChecker
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a new subscriptions service. Schedules are interpreted
// in loc; now is the clock used for recomputing next_run_at.
func NewService(repo Repository, products ProductChecker, loc *time.Location, now func() time.Time) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, products: products, loc: loc, now: now}
}

// CreateInput holds data for creating a subscription.
type CreateInput struct {
	Name      string
	Frequency domain.Frequency
	DayOfWeek *int
	Hour      int
	Minute    int
	Items     []domain.SubscriptionItem
}

// UpdateInput holds optional subscription changes.
type UpdateInput struct {
	Name      *string
	Frequency *domain.Frequency
	DayOfWeek *int
	Hour      *int
	Minute    *int
	Active    *bool
	Items     []domain.SubscriptionItem
}

// Create validates and stores a new active subscription for the owner.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*domain.Subscription, error) {
	spec := schedule.Spec{
		Frequency: input.Frequency,
		Hour:      input.Hour,
		Minute:    input.Minute,
		DayOfWeek: input.DayOfWeek,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.Normalize()

	if err := s.validateItems(ctx, input.Items); err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		UserID:    userID,
		Name:      input.Name,
		Frequency: spec.Frequency,
		DayOfWeek: spec.DayOfWeek,
		Hour:      spec.Hour,
		Minute:    spec.Minute,
		Active:    true,
		NextRunAt: schedule.NextRunAt(spec, s.now().In(s.loc)),
		Items:     input.Items,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// Get returns a subscription owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrNotOwner
	}
	return sub, nil
}

// List returns the user's subscriptions, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Update applies a partial change. Any schedule field change, or
// re-activation of a paused subscription, recomputes next_run_at from now.
func (s *Service) Update(ctx context.Context, userID, id string, input UpdateInput) (*domain.Subscription, error) {
	sub, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	spec := schedule.FromSubscription(sub)
	scheduleChanged := false
	if input.Frequency != nil {
		spec.Frequency = *input.Frequency
		scheduleChanged = true
	}
	if input.Hour != nil {
		spec.Hour = *input.Hour
		scheduleChanged = true
	}
	if input.Minute != nil {
		spec.Minute = *input.Minute
		scheduleChanged = true
	}
	if input.DayOfWeek != nil {
		spec.DayOfWeek = input.DayOfWeek
		scheduleChanged = true
	}
	if scheduleChanged {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		spec = spec.Normalize()
	}

	replaceItems := input.Items != nil
	if replaceItems {
		if err := s.validateItems(ctx, input.Items); err != nil {
			return nil, err
		}
		sub.Items = input.Items
	}

	reactivated := input.Active != nil && *input.Active && !sub.Active
	if input.Active != nil {
		sub.Active = *input.Active
	}
	if input.Name != nil {
		sub.Name = *input.Name
	}

	sub.Frequency = spec.Frequency
	sub.Hour = spec.Hour
	sub.Minute = spec.Minute
	sub.DayOfWeek = spec.DayOfWeek
	if scheduleChanged || reactivated {
		sub.NextRunAt = schedule.NextRunAt(spec, s.now().In(s.loc))
	}

	fields := UpdateFields{ReplaceItems: replaceItems, Reschedule: scheduleChanged || reactivated}
	if err := s.repo.Update(ctx, sub, fields); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return sub, nil
}

// Delete removes a subscription owned by the user. Orders it already
// produced are kept.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validateItems(ctx context.Context, items []domain.SubscriptionItem) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if _, dup := seen[item.ProductID]; dup {
			return ErrDuplicateProduct
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	existing, err := s.products.FindExisting(ctx, ids)
	if err != nil {
		return fmt.Errorf("check products: %w", err)
	}
	for _, id := range ids {
		if !existing[id] {
			return ErrUnknownProducts
		}
	}
	return nil
}
