package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"scpulse/internal/config"
	"scpulse/pkg/contracts/domain"
)

// CatalogData holds the raw product batch and category list fetched
// from the store API.
type CatalogData struct {
	Products   []domain.RawRecord
	Categories []string
}

// CatalogClient fetches product and category data from the external
// store API. Requests are rate limited client-side so batch runs do
// not hammer the shared endpoint.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewCatalogClient creates a catalog client from ingest configuration.
func NewCatalogClient(cfg config.IngestConfig, logger *slog.Logger) *CatalogClient {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &CatalogClient{
		baseURL:    strings.TrimSuffix(cfg.CatalogBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.With("component", "catalog_client"),
	}
}

// Load fetches products and categories concurrently.
func (c *CatalogClient) Load(ctx context.Context) (*CatalogData, error) {
	data := &CatalogData{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := c.FetchProducts(gctx)
		if err != nil {
			return err
		}
		data.Products = products
		return nil
	})
	g.Go(func() error {
		categories, err := c.FetchCategories(gctx)
		if err != nil {
			return err
		}
		data.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "catalog loaded",
		"products", len(data.Products),
		"categories", len(data.Categories),
	)
	return data, nil
}

// FetchProducts retrieves the product list and remaps API field names
// to the canonical record fields the validator expects.
func (c *CatalogClient) FetchProducts(ctx context.Context) ([]domain.RawRecord, error) {
	var decoded []map[string]any
	if err := c.getJSON(ctx, "/products", &decoded); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(decoded))
	for _, item := range decoded {
		record := domain.RawRecord{}
		if id, ok := item["id"]; ok && id != nil {
			record["product_id"] = fmt.Sprintf("%v", id)
		}
		if title, ok := item["title"]; ok {
			record["title"] = title
		}
		if category, ok := item["category"]; ok {
			record["category"] = category
		}
		if price, ok := item["price"]; ok {
			record["unit_price"] = price
		}
		// Cost is only present on some catalog deployments.
		if cost, ok := item["cost"]; ok {
			record["unit_cost"] = cost
		}
		records = append(records, record)
	}
	return records, nil
}

// FetchCategories retrieves the category list.
func (c *CatalogClient) FetchCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.getJSON(ctx, "/products/categories", &categories); err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	return categories, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, path string, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
