package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, товары зарезервированы, ждём оплату.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed — оплата подтверждена.
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён, резерв снимается.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusExpired — заказ не оплачен в отведённое окно, резерв снимается.
	OrderStatusExpired OrderStatus = "EXPIRED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// ReleasesReservation сообщает, снимается ли резерв товаров при переходе в этот статус.
// Хранимого флага резерва нет: статус заказа и есть признак "резерв уже снят".
func (s OrderStatus) ReleasesReservation() bool {
	return s == OrderStatusCancelled || s == OrderStatusExpired
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// ProductDimensions — размеры работы на момент заказа.
type ProductDimensions struct {
	Length *float64 `json:"length,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Unit   string   `json:"unit,omitempty"`
}

// OrderLine — позиция заказа со снимком карточки товара.
// Снимок не обновляется после создания заказа.
type OrderLine struct {
	ProductID   string             `json:"productId"`
	ProductName string             `json:"productName"`
	ArtistID    string             `json:"artistId"`
	Quantity    int32              `json:"quantity"`
	Price       decimal.Decimal    `json:"price"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	Medium      string             `json:"medium,omitempty"`
	Style       string             `json:"style,omitempty"`
	Dimensions  *ProductDimensions `json:"dimensions,omitempty"`
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	Items               []OrderLine     `json:"items"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	Status              OrderStatus     `json:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	ShippingAddress     string          `json:"shippingAddress"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// NewOrderLine снимает снимок товара и считает subtotal = price * qty.
func NewOrderLine(product Product, qty int32) OrderLine {
	return OrderLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		ArtistID:    product.ArtistID,
		Quantity:    qty,
		Price:       product.Price,
		Subtotal:    product.Price.Mul(decimal.NewFromInt32(qty)),
		ImageURL:    product.ImageURL,
		Medium:      product.Medium,
		Style:       product.Style,
		Dimensions:  product.Dimensions,
	}
}

// SumLines возвращает сумму subtotal всех позиций.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// HasArtist сообщает, есть ли в заказе позиция указанного автора.
func (o *Order) HasArtist(artistID string) bool {
	for _, line := range o.Items {
		if line.ArtistID == artistID {
			return true
		}
	}
	return false
}

// ApplyStatus выставляет новый статус и побочный эффект на paymentStatus.
// UpdatedAt не уменьшается, даже если часы ушли назад.
func (o *Order) ApplyStatus(status OrderStatus, now time.Time) {
	o.Status = status
	switch status {
	case OrderStatusConfirmed:
		o.PaymentStatus = PaymentStatusCompleted
	case OrderStatusExpired:
		o.PaymentStatus = PaymentStatusFailed
	}
	if now.After(o.UpdatedAt) {
		o.UpdatedAt = now
	}
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !item.Subtotal.Equal(item.Price.Mul(decimal.NewFromInt32(item.Quantity))) {
			errs = append(errs, ErrSubtotalMismatch)
		}
		calc = calc.Add(item.Subtotal)
	}
	if !calc.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}
	if !o.TotalAmount.IsPositive() {
		errs = append(errs, ErrAmountNotPositive)
	}

	return errs
}
