package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/providers"
)

const defaultTimeoutSeconds = 30

// HTTPProvider talks to the commerce platform's REST API.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPProvider(baseURL, token string, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:  logger.With("module", "commerce_provider"),
	}
}

func (p *HTTPProvider) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer

	err := p.get(ctx, "/customers/"+url.PathEscape(customerID), nil, &customer)
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (p *HTTPProvider) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	var customers []*models.Customer

	err := p.get(ctx, "/customers", nil, &customers)
	if err != nil {
		return nil, err
	}

	return customers, nil
}

func (p *HTTPProvider) GetCustomerOrders(ctx context.Context, customerID string) ([]*models.Order, error) {
	var orders []*models.Order

	err := p.get(ctx, "/customers/"+url.PathEscape(customerID)+"/orders", nil, &orders)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (p *HTTPProvider) GetAbandonedCheckouts(ctx context.Context, filter CheckoutFilter) ([]*models.Checkout, error) {
	query := url.Values{}
	query.Set("status", "open")

	if filter.CustomerID != "" {
		query.Set("customer_id", filter.CustomerID)
	}

	if !filter.UpdatedBefore.IsZero() {
		query.Set("updated_before", filter.UpdatedBefore.UTC().Format(time.RFC3339))
	}

	var checkouts []*models.Checkout

	err := p.get(ctx, "/checkouts", query, &checkouts)
	if err != nil {
		return nil, err
	}

	return checkouts, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := p.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build commerce request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &providers.ProviderError{
			Provider:  "commerce",
			Code:      "network_error",
			Message:   err.Error(),
			Transient: true,
		}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return &providers.ProviderError{
			Provider:  "commerce",
			Code:      strconv.Itoa(resp.StatusCode),
			Message:   string(body),
			Transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode commerce response: %w", err)
	}

	return nil
}
