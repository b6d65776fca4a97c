package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product — карточка товара из каталога.
type Product struct {
	ID            string
	Name          string
	ArtistID      string
	Price         decimal.Decimal
	Available     bool
	StockQuantity int
	ImageURL      string
	Medium        string
	Style         string
	Dimensions    *ProductDimensions
}

// InventoryGateway описывает взаимодействие с сервисом каталога и резервов.
type InventoryGateway interface {
	// GetProduct возвращает карточку товара или ErrProductNotFound.
	GetProduct(ctx context.Context, productID string) (Product, error)
	// Reserve резервирует товар.
	Reserve(ctx context.Context, productID string) error
	// Release снимает резерв; повторный вызов для уже снятого резерва не ошибка.
	Release(ctx context.Context, productID string) error
}

// Severity — тип уведомления для пользователя.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
)

// Notification — сообщение пользователю.
type Notification struct {
	UserID    string   `json:"userId"`
	Message   string   `json:"message"`
	Type      Severity `json:"type"`
	ActionURL string   `json:"actionUrl"`
}

// NotificationGateway отправляет уведомления (fire-and-forget для вызывающего).
type NotificationGateway interface {
	Send(ctx context.Context, n Notification) error
}

// OrderStore описывает требования к хранилищу заказов.
type OrderStore interface {
	// Create сохраняет новый заказ с версией 0 и возвращает его (с ID, если он был пуст).
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// ListByArtist возвращает заказы, в которых есть позиция автора.
	ListByArtist(ctx context.Context, artistID string) ([]Order, error)
	// ListByStatusCreatedBefore возвращает заказы в статусе status, созданные раньше cutoff.
	ListByStatusCreatedBefore(ctx context.Context, status OrderStatus, cutoff time.Time) ([]Order, error)
	// Save применяет обновления с учётом optimistic locking и возвращает заказ с новой версией.
	Save(ctx context.Context, order Order) (Order, error)
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(ctx context.Context, id string) error
}

// EventPublisher публикует доменные события заказа (best-effort).
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order Order, metadata map[string]any) error
}

// Типы доменных событий заказа.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderExpired       = "order.expired"
	EventOrderDeleted       = "order.deleted"
)
