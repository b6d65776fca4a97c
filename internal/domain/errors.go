package domain

import "errors"

var (
	// ErrValidation — общая категория ошибок валидации запроса (400).
	ErrValidation = errors.New("validation failed")
	// ErrUserRequired — не передан идентификатор пользователя.
	ErrUserRequired = errors.New("userId is required")
	// ErrItemsRequired — в заказе нет ни одной позиции.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrItemQtyInvalid — количество товара в позиции <= 0.
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// ErrItemPriceInvalid — отрицательная цена позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrSubtotalMismatch — subtotal позиции не равен price * quantity.
	ErrSubtotalMismatch = errors.New("item subtotal does not match price * quantity")
	// ErrAmountMismatch — сумма заказа не совпадает с суммой позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// ErrAmountNotPositive — сумма заказа должна быть положительной.
	ErrAmountNotPositive = errors.New("order amount must be positive")
	// ErrInvalidStatus — неизвестный статус заказа.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound — товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductUnavailable — товар есть, но недоступен для покупки.
	ErrProductUnavailable = errors.New("product is not available")
	// ErrInsufficientStock — на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReservationFailed — резерв не удался; уже выданные резервы сняты.
	ErrReservationFailed = errors.New("reservation failed")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrGatewayUnavailable — внешний сервис не ответил или ответил ошибкой.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет, что заказ или товар не найден.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrProductNotFound)
}

// IsValidation проверяет, относится ли ошибка к категории 400.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidStatus)
}
