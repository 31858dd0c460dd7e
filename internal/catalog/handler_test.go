package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, sellerID string) (http.Handler, *Service) {
	t.Helper()
	service := NewService(newMockRepository())
	handler := NewHandler(service)

	r := chi.NewRouter()
	handler.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := httputil.WithUser(req.Context(), sellerID, domain.UserTypeSeller)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		handler.RegisterSellerRoutes(r)
	})
	return r, service
}

func TestHandler_CreateProduct(t *testing.T) {
	router, _ := newTestRouter(t, "seller-1")

	t.Run("valid product", func(t *testing.T) {
		body := []byte(`{"name":"Milk","price":120,"cost":80,"unit":"l"}`)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/products", bytes.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Data domain.Product `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "seller-1", resp.Data.SellerID)
		assert.True(t, resp.Data.Available)
	})

	t.Run("missing unit", func(t *testing.T) {
		body := []byte(`{"name":"Milk","price":120}`)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/products", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative price", func(t *testing.T) {
		body := []byte(`{"name":"Milk","price":-1,"unit":"l"}`)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/products", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/seller/products", bytes.NewReader([]byte(`{`))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_ListProducts(t *testing.T) {
	router, service := newTestRouter(t, "seller-1")
	ctx := context.Background()

	_, err := service.CreateProduct(ctx, "seller-1", CreateProductInput{Name: "Milk", Price: 120, Unit: "l"})
	require.NoError(t, err)
	_, err = service.CreateProduct(ctx, "seller-1", CreateProductInput{Name: "Bread", Price: 50, Unit: "pc", Available: boolPtr(false)})
	require.NoError(t, err)

	tests := []struct {
		name  string
		url   string
		count int
	}{
		{"available only", "/products", 1},
		{"include unavailable", "/products?include_unavailable=true", 2},
		{"seller listing", "/seller/products", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp struct {
				Data []domain.Product `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Len(t, resp.Data, tt.count)
		})
	}
}

func TestHandler_UpdateProduct_NotOwner(t *testing.T) {
	router, service := newTestRouter(t, "seller-2")

	product, err := service.CreateProduct(context.Background(), "seller-1", CreateProductInput{Name: "Milk", Price: 120, Unit: "l"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/seller/products/"+product.ID, bytes.NewReader([]byte(`{"price":1}`)))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
