package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amourflorals/wishsync/pkg/errors"
	"github.com/amourflorals/wishsync/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewClient(httpclient.New(cfg), srv.URL, logger)
}

func TestFetchWishlist(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/wishlist", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"wishlist":[
			{"_id":"legacy-1","name":"Peony Bouquet","price":24.0},
			{"id":"rose-001","name":"Red Rose","price":12.5}
		]}}`))
	})

	ctx := WithToken(context.Background(), "tok-123")
	got, err := client.FetchWishlist(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	require.Len(t, got, 2)
	assert.Equal(t, "legacy-1", got[0].ID, "legacy _id normalized")
	assert.Equal(t, "rose-001", got[1].ID)
}

func TestFetchWishlistDeduplicates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"wishlist":[
			{"id":"a","name":"first"},{"id":"a","name":"dup"},{"id":"b"}
		]}}`))
	})

	got, err := client.FetchWishlist(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
}

func TestAddItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wishlist/rose-001", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Empty(t, body, "the product id travels in the path, not the body")

		_, _ = w.Write([]byte(`{"status":"success","data":{"wishlist":[{"id":"rose-001"}]}}`))
	})

	got, err := client.AddItem(context.Background(), "rose-001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rose-001", got[0].ID)
}

func TestRemoveItemNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/wishlist/missing", r.URL.Path)

		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Product not found in wishlist"}`))
	})

	_, err := client.RemoveItem(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClear(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/wishlist", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","data":{"wishlist":[]}}`))
	})

	got, err := client.Clear(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMoveToCart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/wishlist/rose-001/move-to-cart", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["quantity"])
		assert.EqualValues(t, 12.5, body["price"])

		_, _ = w.Write([]byte(`{"status":"success","data":{
			"wishlist":[{"id":"tulip-002"}],
			"cart":{"items":[{"productId":"rose-001","quantity":2}]},
			"transactionId":"txn-42"
		}}`))
	})

	res, err := client.MoveToCart(context.Background(), "rose-001", 2, 12.5)
	require.NoError(t, err)
	assert.Equal(t, "txn-42", res.TransactionID)
	require.Len(t, res.Wishlist, 1)
	assert.Equal(t, "tulip-002", res.Wishlist[0].ID)
	assert.Contains(t, string(res.Cart), "rose-001")
}

func TestMoveToCartUnsupported(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented} {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		_, err := client.MoveToCart(context.Background(), "rose-001", 1, 12.5)
		assert.ErrorIs(t, err, ErrAtomicMoveUnsupported, "status %d", status)
	}
}

func TestMoveToCartUpstreamRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"product out of stock"}`))
	})

	_, err := client.MoveToCart(context.Background(), "rose-001", 1, 12.5)
	assert.ErrorIs(t, err, apperrors.ErrMoveFailed)
}

func TestCartCalls(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	ctx := context.Background()
	require.NoError(t, client.AddCartItem(ctx, "rose-001", 1, 12.5))
	require.NoError(t, client.RemoveCartItem(ctx, "rose-001"))

	assert.Equal(t, []string{
		"POST /api/cart/rose-001",
		"DELETE /api/cart/rose-001",
	}, calls)
}

func TestGuestRequestsCarryNoAuthHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"wishlist":[]}}`))
	})

	_, err := client.FetchWishlist(context.Background())
	require.NoError(t, err)
}

func TestTokenFromContextDefaultsEmpty(t *testing.T) {
	assert.Empty(t, TokenFromContext(context.Background()))
	assert.Equal(t, "tok", TokenFromContext(WithToken(context.Background(), "tok")))
}
