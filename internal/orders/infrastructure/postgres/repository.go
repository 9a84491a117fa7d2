package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vserve/ordersync/internal/orders/application"
	"github.com/vserve/ordersync/internal/orders/domain"
)

const orderColumns = `id, property_id, channel, guest_name, guest_locator, guest_phone,
	status, total_cents, notes, payment_method, payment_status, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) CreateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.PropertyID, o.Channel, o.Guest.Name, o.Guest.Locator, o.Guest.Phone,
		o.Status, o.TotalCents, o.Notes, o.PaymentMethod, o.PaymentStatus, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items
			(id, order_id, quantity, unit_price_cents, total_price_cents, notes,
			 catalog_item_id, name, description, ingredients, image_ref, weight)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			item.ID, o.ID, item.Quantity, item.UnitPriceCents, item.TotalPriceCents, item.Notes,
			item.Snapshot.CatalogItemID, item.Snapshot.Name, item.Snapshot.Description,
			item.Snapshot.Ingredients, item.Snapshot.ImageRef, item.Snapshot.Weight)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, o.ID, eventType, payload, headers, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return domain.Order{}, err
	}
	items, err := loadItems(ctx, r.pool, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repository) List(ctx context.Context, q application.ListQuery) ([]domain.Order, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders WHERE property_id=$1`)
	args = append(args, q.PropertyID)
	if q.Channel != "" {
		args = append(args, q.Channel)
		fmt.Fprintf(&sb, ` AND channel=$%d`, len(args))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, statuses)
		fmt.Fprintf(&sb, ` AND status = ANY($%d)`, len(args))
	}
	if q.Sort == application.SortNewestFirst {
		sb.WriteString(` ORDER BY created_at DESC`)
	} else {
		sb.WriteString(` ORDER BY created_at ASC`)
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) UpdateStatusWithOutbox(ctx context.Context, id string, next domain.Status, eventType string, makePayload application.StatusPayloadFunc, headers map[string]string, traceparent string) (domain.Order, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Row lock keeps the legality check and the write atomic against a
	// concurrent transition on the same order.
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
	prev, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, false, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return domain.Order{}, false, err
	}
	items, err := loadItems(ctx, tx, []string{id})
	if err != nil {
		return domain.Order{}, false, err
	}
	prev.Items = items[id]

	if prev.Status == next {
		return prev, false, nil
	}
	if !domain.CanTransition(prev.Status, next) {
		return domain.Order{}, false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, prev.Status, next)
	}

	updated := prev
	updated.Status = next
	updated.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, updated.Status, updated.UpdatedAt); err != nil {
		return domain.Order{}, false, err
	}

	payload, err := makePayload(prev, updated)
	if err != nil {
		return domain.Order{}, false, err
	}
	if err := insertOutbox(ctx, tx, id, eventType, payload, withScope(headers, updated.PropertyID, updated.Channel), traceparent); err != nil {
		return domain.Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, err
	}
	return updated, true, nil
}

func (r *Repository) MarkPaidWithOutbox(ctx context.Context, id string, eventType string, payload []byte, headers map[string]string, traceparent string) (domain.Order, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, false, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return domain.Order{}, false, err
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return o, false, nil
	}

	o.PaymentStatus = domain.PaymentPaid
	o.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE orders SET payment_status=$2, updated_at=$3 WHERE id=$1`, id, o.PaymentStatus, o.UpdatedAt); err != nil {
		return domain.Order{}, false, err
	}
	if err := insertOutbox(ctx, tx, id, eventType, payload, withScope(headers, o.PropertyID, o.Channel), traceparent); err != nil {
		return domain.Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

func (r *Repository) DeleteWithOutbox(ctx context.Context, id string, eventType string, headers map[string]string, traceparent string) (domain.Order, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, err
	}

	// Items go with the order via ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id); err != nil {
		return domain.Order{}, false, err
	}

	payload, err := json.Marshal(domain.OrderDeleted{OrderID: o.ID, PropertyID: o.PropertyID, Channel: o.Channel})
	if err != nil {
		return domain.Order{}, false, err
	}
	if err := insertOutbox(ctx, tx, id, eventType, payload, withScope(headers, o.PropertyID, o.Channel), traceparent); err != nil {
		return domain.Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

func (r *Repository) DeleteStatusesWithOutbox(ctx context.Context, propertyID string, ch domain.Channel, statuses []domain.Status, eventType string, headers map[string]string, traceparent string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	set := make([]string, 0, len(statuses))
	for _, st := range statuses {
		set = append(set, string(st))
	}
	ct, err := tx.Exec(ctx, `DELETE FROM orders WHERE property_id=$1 AND channel=$2 AND status = ANY($3)`,
		propertyID, ch, set)
	if err != nil {
		return 0, err
	}
	n := ct.RowsAffected()
	if n == 0 {
		return 0, tx.Commit(ctx)
	}

	payload, err := json.Marshal(domain.HistoryCleared{PropertyID: propertyID, Channel: ch, Deleted: n})
	if err != nil {
		return 0, err
	}
	if err := insertOutbox(ctx, tx, propertyID, eventType, payload, withScope(headers, propertyID, ch), traceparent); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", aggregateID, eventType, payload, headers, traceparent)
	return err
}

// withScope copies headers and stamps the property/channel so the relay can
// key messages by property without decoding payloads.
func withScope(headers map[string]string, propertyID string, ch domain.Channel) map[string]string {
	out := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		out[k] = v
	}
	out["property_id"] = propertyID
	out["channel"] = string(ch)
	return out
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.PropertyID, &o.Channel, &o.Guest.Name, &o.Guest.Locator, &o.Guest.Phone,
		&o.Status, &o.TotalCents, &o.Notes, &o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT order_id, id, quantity, unit_price_cents, total_price_cents, notes,
		catalog_item_id, name, description, ingredients, image_ref, weight
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem)
	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.Quantity, &item.UnitPriceCents, &item.TotalPriceCents, &item.Notes,
			&item.Snapshot.CatalogItemID, &item.Snapshot.Name, &item.Snapshot.Description,
			&item.Snapshot.Ingredients, &item.Snapshot.ImageRef, &item.Snapshot.Weight); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}
