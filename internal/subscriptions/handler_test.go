package subscriptions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const milkID = "0b6b8f5e-4c1a-4f7e-9d43-7a3c1e2b9f10"

func newTestRouter(t *testing.T, userID string) (http.Handler, *memRepository) {
	t.Helper()
	repo := newMemRepository()
	catalog := &stubCatalog{products: map[string]domain.Product{
		milkID: {ID: milkID, Price: 120, Available: true},
	}}
	service := NewService(repo, catalog, time.UTC, func() time.Time { return monday0800.Add(-time.Hour) })

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(httputil.WithUser(req.Context(), userID, domain.UserTypePersonal)))
		})
	})
	NewHandler(service).RegisterRoutes(r)
	return r, repo
}

func doRequest(r http.Handler, method, url, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	r.ServeHTTP(rec, httptest.NewRequest(method, url, reader))
	return rec
}

func TestHandler_Create(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{
			name:   "weekly upper-case frequency",
			body:   `{"name":"Weekly milk","frequency":"WEEKLY","day_of_week":1,"hour":8,"minute":0,"items":[{"product_id":"` + milkID + `","quantity":2}]}`,
			status: http.StatusCreated,
		},
		{
			name:   "weekly without day",
			body:   `{"name":"Weekly milk","frequency":"weekly","hour":8,"items":[{"product_id":"` + milkID + `","quantity":2}]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown frequency",
			body:   `{"name":"x","frequency":"monthly","hour":8,"items":[{"product_id":"` + milkID + `","quantity":2}]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "minute out of range",
			body:   `{"name":"x","frequency":"daily","hour":8,"minute":60,"items":[{"product_id":"` + milkID + `","quantity":2}]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "empty items",
			body:   `{"name":"x","frequency":"daily","hour":8,"items":[]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown product",
			body:   `{"name":"x","frequency":"daily","hour":8,"items":[{"product_id":"5a3f0c52-9e0e-4a53-8d0e-1f4f0e6f7a11","quantity":1}]}`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, "buyer-1")
			rec := doRequest(router, http.MethodPost, "/subscriptions", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_Lifecycle(t *testing.T) {
	router, repo := newTestRouter(t, "buyer-1")

	rec := doRequest(router, http.MethodPost, "/subscriptions",
		`{"name":"Daily milk","frequency":"daily","hour":8,"items":[{"product_id":"`+milkID+`","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data domain.Subscription `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Data.NextRunAt.Equal(monday0800))

	rec = doRequest(router, http.MethodPatch, "/subscriptions/"+created.Data.ID, `{"hour":9,"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := repo.get(created.Data.ID)
	assert.False(t, stored.Active)
	assert.Equal(t, 9, stored.Hour)

	rec = doRequest(router, http.MethodGet, "/subscriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []domain.Subscription `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)

	rec = doRequest(router, http.MethodDelete, "/subscriptions/"+created.Data.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodGet, "/subscriptions/"+created.Data.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_OtherOwner(t *testing.T) {
	router, repo := newTestRouter(t, "buyer-2")
	repo.put(weeklySubscription("sub-1", domain.SubscriptionItem{ProductID: milkID, Quantity: 1}))

	assert.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, "/subscriptions/sub-1", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(router, http.MethodDelete, "/subscriptions/sub-1", "").Code)
}
