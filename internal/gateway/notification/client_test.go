package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestClient_Send(t *testing.T) {
	var got domain.Notification
	var path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second, nil)
	n := domain.Notification{
		UserID:    "u1",
		Message:   "Your order #42 status has been updated to SHIPPED",
		Type:      domain.SeverityInfo,
		ActionURL: "http://localhost:5173/orders/42",
	}

	require.NoError(t, client.Send(context.Background(), n))
	assert.Equal(t, "/api/notifications/send", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, n, got)
}

func TestClient_SendWireFormat(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second, nil).Send(context.Background(), domain.Notification{
		UserID: "u1", Message: "m", Type: domain.SeverityWarning, ActionURL: "a",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"userId": "u1", "message": "m", "type": "WARNING", "actionUrl": "a"}, raw)
}

func TestClient_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second, nil).Send(context.Background(), domain.Notification{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	srv.Close()
	err = NewClient(srv.URL, time.Second, nil).Send(context.Background(), domain.Notification{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []publishedMessage
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitPublisher_Send(t *testing.T) {
	ch := &fakeChannel{}
	p := newRabbitPublisher(ch, "notifications", nil)

	require.NoError(t, p.Send(context.Background(), domain.Notification{
		UserID:  "u1",
		Message: "Your order #7 has expired due to incomplete payment.",
		Type:    domain.SeverityWarning,
	}))
	require.NoError(t, p.Send(context.Background(), domain.Notification{UserID: "u2", Type: domain.SeverityInfo}))

	require.Len(t, ch.published, 2)
	first := ch.published[0]
	assert.Equal(t, "notifications", first.exchange)
	assert.Equal(t, "notification.warning", first.key)
	assert.Equal(t, priorityWarning, first.msg.Priority)
	assert.Equal(t, amqp.Persistent, first.msg.DeliveryMode)
	assert.Equal(t, "u1", first.msg.Headers["user_id"])

	var body domain.Notification
	require.NoError(t, json.Unmarshal(first.msg.Body, &body))
	assert.Equal(t, domain.SeverityWarning, body.Type)

	assert.Equal(t, "notification.info", ch.published[1].key)
	assert.Equal(t, priorityInfo, ch.published[1].msg.Priority)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestRabbitPublisher_SendError(t *testing.T) {
	p := newRabbitPublisher(&fakeChannel{err: errors.New("channel closed")}, "notifications", nil)

	err := p.Send(context.Background(), domain.Notification{UserID: "u1", Type: domain.SeverityInfo})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
