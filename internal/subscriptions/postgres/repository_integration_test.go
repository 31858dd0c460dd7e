//go:build integration

package postgres_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/subscriptions"
	"github.com/bissquit/grocer/internal/subscriptions/postgres"
	"github.com/bissquit/grocer/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	pool, cleanup, err := testutil.NewMigratedPool(context.Background(), "../../../migrations")
	if err != nil {
		log.Fatalf("setup database: %v", err)
	}
	testDB = pool

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func seedUserAndProduct(t *testing.T) (userID, productID string) {
	t.Helper()
	ctx := t.Context()

	err := testDB.QueryRow(ctx, `
		INSERT INTO users (name, phone, type, password)
		VALUES ('buyer', $1, 'personal', 'x') RETURNING id
	`, testutil.RandomPhone()).Scan(&userID)
	require.NoError(t, err)

	var sellerID string
	err = testDB.QueryRow(ctx, `
		INSERT INTO users (name, phone, type, password)
		VALUES ('seller', $1, 'seller', 'x') RETURNING id
	`, testutil.RandomPhone()).Scan(&sellerID)
	require.NoError(t, err)

	err = testDB.QueryRow(ctx, `
		INSERT INTO products (seller_id, name, price, unit)
		VALUES ($1, 'milk', 250, 'l') RETURNING id
	`, sellerID).Scan(&productID)
	require.NoError(t, err)
	return userID, productID
}

func newSubscription(userID, productID string, next time.Time) *domain.Subscription {
	return &domain.Subscription{
		UserID:    userID,
		Name:      "daily milk",
		Frequency: domain.FrequencyDaily,
		Hour:      8,
		Active:    true,
		NextRunAt: next,
		Items:     []domain.SubscriptionItem{{ProductID: productID, Quantity: 2}},
	}
}

func TestRepository_CRUD(t *testing.T) {
	repo := postgres.NewRepository(testDB)
	ctx := t.Context()
	userID, productID := seedUserAndProduct(t)
	next := time.Date(2030, 1, 2, 8, 0, 0, 0, time.UTC)

	sub := newSubscription(userID, productID, next)
	require.NoError(t, repo.Create(ctx, sub))
	require.NotEmpty(t, sub.ID)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "daily milk", got.Name)
	assert.True(t, got.NextRunAt.Equal(next))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	got.Name = "weekly milk"
	got.Frequency = domain.FrequencyWeekly
	day := 1
	got.DayOfWeek = &day
	got.Items = []domain.SubscriptionItem{{ProductID: productID, Quantity: 5}}
	got.NextRunAt = next.AddDate(0, 0, 6)
	require.NoError(t, repo.Update(ctx, got, subscriptions.UpdateFields{ReplaceItems: true, Reschedule: true}))
	rescheduled := next.AddDate(0, 0, 6)
	assert.True(t, got.NextRunAt.Equal(rescheduled))

	// A tick advances the firing; an edit holding the old value must not undo it.
	advanced := rescheduled.AddDate(0, 0, 7)
	n, err := repo.ConditionalAdvance(ctx, sub.ID, rescheduled, advanced)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got.Name = "renamed"
	require.NoError(t, repo.Update(ctx, got, subscriptions.UpdateFields{}))
	assert.True(t, got.NextRunAt.Equal(advanced), "read back %v", got.NextRunAt)

	stored, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
	assert.True(t, stored.NextRunAt.Equal(advanced), "stored %v", stored.NextRunAt)

	items, err := repo.GetItems(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	list, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.FrequencyWeekly, list[0].Frequency)
	require.NotNil(t, list[0].DayOfWeek)
	assert.Equal(t, 1, *list[0].DayOfWeek)

	require.NoError(t, repo.Delete(ctx, sub.ID))
	_, err = repo.GetByID(ctx, sub.ID)
	assert.ErrorIs(t, err, subscriptions.ErrSubscriptionNotFound)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, subscriptions.ErrSubscriptionNotFound)
}

func TestRepository_FindDue(t *testing.T) {
	repo := postgres.NewRepository(testDB)
	ctx := t.Context()
	userID, productID := seedUserAndProduct(t)

	base := time.Date(2031, 6, 1, 8, 0, 0, 0, time.UTC)
	due := newSubscription(userID, productID, base)
	later := newSubscription(userID, productID, base.Add(time.Hour))
	paused := newSubscription(userID, productID, base.Add(-time.Hour))
	paused.Active = false
	for _, s := range []*domain.Subscription{due, later, paused} {
		require.NoError(t, repo.Create(ctx, s))
	}

	found, err := repo.FindDue(ctx, base, 100)
	require.NoError(t, err)

	ids := make(map[string]bool, len(found))
	for _, s := range found {
		ids[s.ID] = true
	}
	assert.True(t, ids[due.ID], "boundary equality is due")
	assert.False(t, ids[later.ID])
	assert.False(t, ids[paused.ID])
}

func TestRepository_ConditionalAdvance_SingleWinner(t *testing.T) {
	repo := postgres.NewRepository(testDB)
	ctx := t.Context()
	userID, productID := seedUserAndProduct(t)

	expected := time.Date(2032, 3, 10, 8, 0, 0, 0, time.UTC)
	next := expected.Add(24 * time.Hour)
	sub := newSubscription(userID, productID, expected)
	require.NoError(t, repo.Create(ctx, sub))

	const contenders = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		start = make(chan struct{})
	)
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			n, err := repo.ConditionalAdvance(ctx, sub.ID, expected, next)
			assert.NoError(t, err)
			mu.Lock()
			wins += int(n)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextRunAt.Equal(next))
}

func TestRepository_ConditionalAdvance_Inactive(t *testing.T) {
	repo := postgres.NewRepository(testDB)
	ctx := t.Context()
	userID, productID := seedUserAndProduct(t)

	expected := time.Date(2033, 1, 1, 8, 0, 0, 0, time.UTC)
	sub := newSubscription(userID, productID, expected)
	sub.Active = false
	require.NoError(t, repo.Create(ctx, sub))

	n, err := repo.ConditionalAdvance(ctx, sub.ID, expected, expected.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
