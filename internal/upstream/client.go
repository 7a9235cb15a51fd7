// Package upstream is the HTTP client for the storefront API's wishlist and
// cart endpoints. The storefront is the system of record; every mutation
// returns the canonical wishlist, which callers adopt wholesale.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/pkg/httpclient"
)

const serviceName = "storefront"

// ErrAtomicMoveUnsupported is returned when the storefront does not expose
// the atomic move-to-cart endpoint. Callers fall back to the legacy
// two-call flow with compensation.
var ErrAtomicMoveUnsupported = errors.New("storefront: atomic move-to-cart endpoint not available")

// Doer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client calls the storefront API on behalf of a signed-in shopper.
type Client struct {
	http    Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a storefront client. baseURL is the API root without a
// trailing slash, e.g. "http://storefront:5000".
func NewClient(doer Doer, baseURL string, logger *slog.Logger) *Client {
	return &Client{http: doer, baseURL: baseURL, logger: logger}
}

// wishlistEnvelope is the storefront's standard success envelope for
// wishlist endpoints.
type wishlistEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Wishlist domain.Wishlist `json:"wishlist"`
	} `json:"data"`
}

// MoveResult is the outcome of an atomic move-to-cart call. Cart is kept
// opaque; the agent forwards it to the caller without interpreting it.
type MoveResult struct {
	Wishlist      domain.Wishlist
	Cart          json.RawMessage
	TransactionID string
}

type moveEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Wishlist      domain.Wishlist `json:"wishlist"`
		Cart          json.RawMessage `json:"cart"`
		TransactionID string          `json:"transactionId"`
	} `json:"data"`
}

// FetchWishlist returns the shopper's canonical wishlist.
func (c *Client) FetchWishlist(ctx context.Context) (domain.Wishlist, error) {
	return c.wishlistCall(ctx, http.MethodGet, "/api/wishlist", nil)
}

// AddItem adds a product to the wishlist and returns the canonical result.
// The storefront treats re-adding an existing product as a no-op.
func (c *Client) AddItem(ctx context.Context, productID string) (domain.Wishlist, error) {
	return c.wishlistCall(ctx, http.MethodPost, "/api/wishlist/"+productID, nil)
}

// RemoveItem removes a product from the wishlist.
func (c *Client) RemoveItem(ctx context.Context, productID string) (domain.Wishlist, error) {
	return c.wishlistCall(ctx, http.MethodDelete, "/api/wishlist/"+productID, nil)
}

// Clear empties the wishlist.
func (c *Client) Clear(ctx context.Context) (domain.Wishlist, error) {
	return c.wishlistCall(ctx, http.MethodDelete, "/api/wishlist", nil)
}

// MoveToCart invokes the storefront's atomic move endpoint. Returns
// ErrAtomicMoveUnsupported when the storefront version predates the
// endpoint, so the caller can fall back to the compensating two-call flow.
func (c *Client) MoveToCart(ctx context.Context, productID string, quantity int, price float64) (*MoveResult, error) {
	body := map[string]any{"quantity": quantity, "price": price}

	resp, err := c.do(ctx, http.MethodPost, "/api/wishlist/"+productID+"/move-to-cart", body)
	if err != nil {
		return nil, err
	}

	// An Express storefront without the route answers 404; older proxies
	// in front of it answer 405 or 501. All three mean "endpoint absent".
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		_ = resp.Body.Close()
		return nil, ErrAtomicMoveUnsupported
	}
	if resp.StatusCode >= 400 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope moveEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode move-to-cart response: %w", err)
	}

	return &MoveResult{
		Wishlist:      envelope.Data.Wishlist.Dedupe(),
		Cart:          envelope.Data.Cart,
		TransactionID: envelope.Data.TransactionID,
	}, nil
}

// AddCartItem adds a product to the shopper's cart. Used by the legacy move
// flow; the wishlist is untouched.
func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int, price float64) error {
	body := map[string]any{"quantity": quantity, "price": price}

	resp, err := c.do(ctx, http.MethodPost, "/api/cart/"+productID, body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	drainBody(resp)
	return nil
}

// RemoveCartItem removes a product from the shopper's cart. Used to undo a
// partially completed legacy move.
func (c *Client) RemoveCartItem(ctx context.Context, productID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/cart/"+productID, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	drainBody(resp)
	return nil
}

func (c *Client) wishlistCall(ctx context.Context, method, path string, body any) (domain.Wishlist, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope wishlistEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	return envelope.Data.Wishlist.Dedupe(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "storefront call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s %s %s: %w", serviceName, method, path, err)
	}
	return resp, nil
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
