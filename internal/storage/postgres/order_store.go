package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation = "23505"

	orderColumns = `o.id, o.user_id, o.total_amount, o.status, o.payment_status,
		o.shipping_address, o.special_instructions, o.version, o.created_at, o.updated_at`
)

type orderStore struct {
	db *sql.DB
}

// NewOrderStore создаёт PostgreSQL-реализацию OrderStore.
func NewOrderStore(store *Store) domain.OrderStore {
	return &orderStore{db: store.DB()}
}

func (r *orderStore) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Version = 0

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, total_amount, status, payment_status,
			shipping_address, special_instructions, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		order.ID, order.UserID, order.TotalAmount, string(order.Status), string(order.PaymentStatus),
		order.ShippingAddress, order.SpecialInstructions, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, domain.ErrOrderVersionConflict
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, line := range order.Items {
		var dims []byte
		dims, err = encodeDimensions(line.Dimensions)
		if err != nil {
			return domain.Order{}, err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, line_no, product_id, product_name, artist_id, quantity,
				price, subtotal, image_url, medium, style, dimensions
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`,
			order.ID, i+1, line.ProductID, line.ProductName, line.ArtistID, line.Quantity,
			line.Price, line.Subtotal, line.ImageURL, line.Medium, line.Style, dims,
		); err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return order, nil
}

func (r *orderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC
	`, userID)
}

func (r *orderStore) ListByArtist(ctx context.Context, artistID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM order_items i
			WHERE i.order_id = o.id AND i.artist_id = $1
		)
		ORDER BY o.created_at DESC, o.id DESC
	`, artistID)
}

func (r *orderStore) ListByStatusCreatedBefore(ctx context.Context, status domain.OrderStatus, cutoff time.Time) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.status = $1
		  AND o.created_at < $2
		ORDER BY o.created_at DESC, o.id DESC
	`, string(status), cutoff)
}

func (r *orderStore) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    shipping_address = $3,
		    special_instructions = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.Status),
		string(order.PaymentStatus),
		order.ShippingAddress,
		order.SpecialInstructions,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		exists, err = orderExistsTx(ctx, tx, order.ID)
		if err != nil {
			return domain.Order{}, err
		}
		if !exists {
			err = domain.ErrOrderNotFound
			return domain.Order{}, err
		}
		err = domain.ErrOrderVersionConflict
		return domain.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit save order: %w", err)
	}

	order.Version++
	return order, nil
}

func (r *orderStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// order_items удаляются каскадом.
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderStore) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	// Позиции грузим после закрытия курсора, чтобы не держать два соединения.
	rows.Close()

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderStore) loadItems(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_name, artist_id, quantity, price, subtotal,
		       image_url, medium, style, dimensions
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderLine, 0)
	for rows.Next() {
		var (
			line domain.OrderLine
			dims []byte
		)
		if err := rows.Scan(
			&line.ProductID, &line.ProductName, &line.ArtistID, &line.Quantity, &line.Price, &line.Subtotal,
			&line.ImageURL, &line.Medium, &line.Style, &dims,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if line.Dimensions, err = decodeDimensions(dims); err != nil {
			return nil, err
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentStatus string
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.TotalAmount, &status, &paymentStatus,
		&order.ShippingAddress, &order.SpecialInstructions, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return order, nil
}

func encodeDimensions(dims *domain.ProductDimensions) ([]byte, error) {
	if dims == nil {
		return nil, nil
	}
	raw, err := json.Marshal(dims)
	if err != nil {
		return nil, fmt.Errorf("encode dimensions: %w", err)
	}
	return raw, nil
}

func decodeDimensions(raw []byte) (*domain.ProductDimensions, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var dims domain.ProductDimensions
	if err := json.Unmarshal(raw, &dims); err != nil {
		return nil, fmt.Errorf("decode dimensions: %w", err)
	}
	return &dims, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var _ domain.OrderStore = (*orderStore)(nil)
