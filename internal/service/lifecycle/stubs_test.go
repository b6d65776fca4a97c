package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// stubInventory — каталог в памяти, который записывает порядок вызовов.
type stubInventory struct {
	mu         sync.Mutex
	products   map[string]domain.Product
	reserveErr map[string]error
	releaseErr error
	getErr     error
	calls      []string

	// honorCtx включает проверку ctx.Err() в Reserve и Release.
	honorCtx  bool
	onReserve func(id string)
}

func newStubInventory() *stubInventory {
	return &stubInventory{
		products:   make(map[string]domain.Product),
		reserveErr: make(map[string]error),
	}
}

func (s *stubInventory) addProduct(id, price string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = domain.Product{
		ID:            id,
		Name:          "Artwork " + id,
		ArtistID:      "artist-" + id,
		Price:         decimal.RequireFromString(price),
		Available:     true,
		StockQuantity: stock,
		ImageURL:      "https://img.example/" + id,
		Medium:        "oil",
		Style:         "abstract",
	}
}

func (s *stubInventory) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "get:"+id)
	if s.getErr != nil {
		return domain.Product{}, s.getErr
	}
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *stubInventory) Reserve(ctx context.Context, id string) error {
	s.mu.Lock()
	hook := s.onReserve
	s.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.honorCtx && ctx.Err() != nil {
		s.calls = append(s.calls, "reserve-aborted:"+id)
		return ctx.Err()
	}
	s.calls = append(s.calls, "reserve:"+id)
	return s.reserveErr[id]
}

func (s *stubInventory) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.honorCtx && ctx.Err() != nil {
		s.calls = append(s.calls, "release-aborted:"+id)
		return ctx.Err()
	}
	s.calls = append(s.calls, "release:"+id)
	return s.releaseErr
}

// gatewayCalls возвращает вызовы резерва и снятия, без чтения каталога.
func (s *stubInventory) gatewayCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		if len(c) > 4 && c[:4] == "get:" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *stubInventory) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (s *stubNotifier) Send(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func (s *stubNotifier) all() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.sent...)
}

type recordedEvent struct {
	eventType string
	orderID   string
}

type stubPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *stubPublisher) PublishOrderEvent(_ context.Context, eventType string, order domain.Order, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{eventType: eventType, orderID: order.ID})
	return errors.New("broker down")
}

// conflictStore отдаёт конфликт версий на первые conflicts вызовов Save.
type conflictStore struct {
	domain.OrderStore
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (s *conflictStore) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	s.mu.Lock()
	s.saves++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return domain.Order{}, domain.ErrOrderVersionConflict
	}
	s.mu.Unlock()
	return s.OrderStore.Save(ctx, order)
}

type failingCreateStore struct {
	domain.OrderStore
}

func (failingCreateStore) Create(context.Context, domain.Order) (domain.Order, error) {
	return domain.Order{}, errors.New("disk full")
}

// manualClock — управляемые часы для проверки updatedAt.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
