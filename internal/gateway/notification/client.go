package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/telemetry"
)

const (
	sendPath       = "/api/notifications/send"
	defaultTimeout = 5 * time.Second
)

// Client отправляет уведомления в HTTP API сервиса уведомлений.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт HTTP клиента сервиса уведомлений.
func NewClient(baseURL string, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "notification-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Send публикует уведомление. Ответ сервиса игнорируется, кроме кода статуса.
func (c *Client) Send(ctx context.Context, n domain.Notification) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "notification.Send")
	telemetry.AddSpanAttributes(span,
		attribute.String("user.id", n.UserID),
		attribute.String("notification.type", string(n.Type)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send notification: %v", domain.ErrGatewayUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: send notification: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	c.logger.WithFields(log.Fields{
		"user_id": n.UserID,
		"type":    n.Type,
	}).Debug("notification sent")
	return nil
}

var _ domain.NotificationGateway = (*Client)(nil)
