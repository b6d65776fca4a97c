package product

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/telemetry"
)

const defaultTimeout = 5 * time.Second

// productResponse — карточка товара в формате сервиса каталога.
type productResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ArtistID      string          `json:"artistId"`
	ImageURL      string          `json:"imageUrl"`
	StockQuantity *int            `json:"stockQuantity"`
	Available     *bool           `json:"available"`
	IsAvailable   *bool           `json:"isAvailable"`
	Medium        string          `json:"medium"`
	Style         string          `json:"style"`
	Dimensions    *struct {
		Length *float64 `json:"length"`
		Width  *float64 `json:"width"`
		Unit   string   `json:"unit"`
	} `json:"dimensions"`
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

// Client реализует domain.InventoryGateway поверх HTTP API каталога.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.http = c
		}
	}
}

// WithLogger задает logger клиента.
func WithLogger(logger *log.Entry) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient создаёт клиента каталога. timeout ограничивает каждый запрос.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "product-client")
	}
	return c
}

// GetProduct загружает карточку товара.
func (c *Client) GetProduct(ctx context.Context, productID string) (p domain.Product, err error) {
	ctx, span := telemetry.StartSpan(ctx, "product.GetProduct")
	telemetry.AddSpanAttributes(span, attribute.String("product.id", productID))
	defer func() { telemetry.EndSpan(span, err) }()

	resp, err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return domain.Product{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, productID); err != nil {
		return domain.Product{}, err
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Product{}, fmt.Errorf("%w: decode product %s: %v", domain.ErrGatewayUnavailable, productID, err)
	}
	return body.toDomain(productID), nil
}

// Reserve снимает товар с продажи.
func (c *Client) Reserve(ctx context.Context, productID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "product.Reserve")
	telemetry.AddSpanAttributes(span, attribute.String("product.id", productID))
	defer func() { telemetry.EndSpan(span, err) }()

	_, err = c.setAvailability(ctx, productID, "reserve", false)
	return err
}

// Release возвращает товар в продажу. 409 от каталога означает, что резерв уже снят.
func (c *Client) Release(ctx context.Context, productID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "product.Release")
	telemetry.AddSpanAttributes(span, attribute.String("product.id", productID))
	defer func() { telemetry.EndSpan(span, err) }()

	status, err := c.setAvailability(ctx, productID, "release", true)
	if status == http.StatusConflict {
		c.logger.WithField("product_id", productID).Debug("product already released")
		return nil
	}
	return err
}

func (c *Client) setAvailability(ctx context.Context, productID, action string, available bool) (int, error) {
	resp, err := c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(productID)+"/"+action, availabilityRequest{Available: available})
	if err != nil {
		return 0, err
	}
	defer func() {
		// Дочитываем тело, чтобы соединение вернулось в пул.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return resp.StatusCode, checkStatus(resp, productID)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"method": method,
			"path":   path,
		}).Warn("product service request failed")
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrGatewayUnavailable, method, path, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response, productID string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: product %s: status %d", domain.ErrGatewayUnavailable, productID, resp.StatusCode)
	default:
		return nil
	}
}

func (r productResponse) toDomain(requestedID string) domain.Product {
	p := domain.Product{
		ID:       r.ID,
		Name:     r.Name,
		ArtistID: r.ArtistID,
		Price:    r.Price,
		ImageURL: r.ImageURL,
		Medium:   r.Medium,
		Style:    r.Style,
	}
	if p.ID == "" {
		p.ID = requestedID
	}
	if r.StockQuantity != nil {
		p.StockQuantity = *r.StockQuantity
	}
	switch {
	case r.IsAvailable != nil:
		p.Available = *r.IsAvailable
	case r.Available != nil:
		p.Available = *r.Available
	}
	if r.Dimensions != nil {
		p.Dimensions = &domain.ProductDimensions{
			Length: r.Dimensions.Length,
			Width:  r.Dimensions.Width,
			Unit:   r.Dimensions.Unit,
		}
	}
	return p
}

var _ domain.InventoryGateway = (*Client)(nil)
