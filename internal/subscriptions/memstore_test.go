package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/grocer/internal/domain"
)

// memRepository is an in-memory Repository. ConditionalAdvance is atomic
// under the mutex, like the single-statement UPDATE in PostgreSQL.
type memRepository struct {
	mu     sync.Mutex
	subs   map[string]*domain.Subscription
	nextID int

	// findBarrier, when set, makes every FindDue caller wait until all
	// expected callers have taken their snapshot.
	findBarrier *sync.WaitGroup
	findErr     error
	advanceErr  map[string]error
	advances    map[string]int
	// afterGet, when set, runs after GetByID has taken its copy, e.g. to
	// interleave a tick with an owner edit.
	afterGet func()
}

func newMemRepository() *memRepository {
	return &memRepository{
		subs:       make(map[string]*domain.Subscription),
		advanceErr: make(map[string]error),
		advances:   make(map[string]int),
	}
}

func cloneSubscription(s *domain.Subscription) domain.Subscription {
	cp := *s
	cp.Items = append([]domain.SubscriptionItem(nil), s.Items...)
	if s.DayOfWeek != nil {
		d := *s.DayOfWeek
		cp.DayOfWeek = &d
	}
	return cp
}

func (m *memRepository) put(sub domain.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = &sub
}

func (m *memRepository) get(id string) domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSubscription(m.subs[id])
}

func (m *memRepository) Create(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub.ID = fmt.Sprintf("sub-%d", m.nextID)
	sub.CreatedAt = time.Unix(int64(m.nextID), 0)
	stored := cloneSubscription(sub)
	m.subs[sub.ID] = &stored
	return nil
}

func (m *memRepository) GetByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	s, ok := m.subs[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSubscriptionNotFound
	}
	cp := cloneSubscription(s)
	hook := m.afterGet
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (m *memRepository) ListByUser(_ context.Context, userID string) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Subscription, 0)
	for _, s := range m.subs {
		if s.UserID == userID {
			result = append(result, cloneSubscription(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *memRepository) Update(_ context.Context, sub *domain.Subscription, fields UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.subs[sub.ID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	stored := cloneSubscription(sub)
	if !fields.ReplaceItems {
		stored.Items = existing.Items
	}
	if !fields.Reschedule {
		stored.NextRunAt = existing.NextRunAt
	}
	m.subs[sub.ID] = &stored
	sub.NextRunAt = stored.NextRunAt
	return nil
}

func (m *memRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *memRepository) GetItems(_ context.Context, id string) ([]domain.SubscriptionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return append([]domain.SubscriptionItem(nil), s.Items...), nil
}

func (m *memRepository) FindDue(_ context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}

	m.mu.Lock()
	due := make([]domain.Subscription, 0)
	for _, s := range m.subs {
		if s.Active && !s.NextRunAt.After(now) {
			due = append(due, cloneSubscription(s))
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if len(due) > limit {
		due = due[:limit]
	}

	if m.findBarrier != nil {
		m.findBarrier.Done()
		m.findBarrier.Wait()
	}
	return due, nil
}

func (m *memRepository) ConditionalAdvance(_ context.Context, id string, expected, next time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.advanceErr[id]; err != nil {
		return 0, err
	}
	s, ok := m.subs[id]
	if !ok || !s.Active || !s.NextRunAt.Equal(expected) {
		return 0, nil
	}
	s.NextRunAt = next
	m.advances[id]++
	return 1, nil
}

// stubCatalog implements ProductCatalog and ProductChecker.
type stubCatalog struct {
	products map[string]domain.Product
	err      error
}

func (c *stubCatalog) FindAvailable(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok && p.Available {
			result[id] = p
		}
	}
	return result, nil
}

func (c *stubCatalog) FindExisting(_ context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for _, id := range ids {
		if _, ok := c.products[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

// memOrders implements OrderCreator.
type memOrders struct {
	mu     sync.Mutex
	orders []domain.Order
	// failFor makes Create fail for orders of the given subscription.
	failFor map[string]error
	// blockFor makes Create wait for ctx cancellation for the given subscription.
	blockFor map[string]bool
}

func newMemOrders() *memOrders {
	return &memOrders{failFor: make(map[string]error), blockFor: make(map[string]bool)}
}

func (o *memOrders) Create(ctx context.Context, order *domain.Order) error {
	subID := ""
	if order.SubscriptionID != nil {
		subID = *order.SubscriptionID
	}
	if err := o.failFor[subID]; err != nil {
		return err
	}
	if o.blockFor[subID] {
		<-ctx.Done()
		return ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	order.ID = fmt.Sprintf("order-%d", len(o.orders)+1)
	o.orders = append(o.orders, *order)
	return nil
}

func (o *memOrders) all() []domain.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Order(nil), o.orders...)
}

var errBoom = errors.New("boom")
