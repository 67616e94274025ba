package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/domain"
)

// MySQLAdapter is the durable store behind the engine. Counter updates carry
// a belt-and-braces headroom guard even though the in-process ledger already
// serializes them.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateSession(ctx context.Context, s domain.FlashSaleSession) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO flash_sale_sessions
			(id, name, description, start_time, end_time, max_per_user, is_active, cancelled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Description, s.StartTime, s.EndTime,
		s.MaxPerUser, s.IsActive, s.Cancelled, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateSession(ctx context.Context, s domain.FlashSaleSession) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE flash_sale_sessions
		SET name = ?, description = ?, start_time = ?, end_time = ?,
			max_per_user = ?, is_active = ?, cancelled = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.Description, s.StartTime, s.EndTime,
		s.MaxPerUser, s.IsActive, s.Cancelled, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteSession(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM flash_sale_items WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM flash_sale_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ListSessions(ctx context.Context) ([]domain.FlashSaleSession, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, start_time, end_time, max_per_user,
			   is_active, cancelled, created_at, updated_at
		FROM flash_sale_sessions ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.FlashSaleSession
	for rows.Next() {
		var s domain.FlashSaleSession
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.StartTime, &s.EndTime,
			&s.MaxPerUser, &s.IsActive, &s.Cancelled, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (m *MySQLAdapter) CreateItem(ctx context.Context, it domain.FlashSaleItem) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO flash_sale_items
			(id, session_id, product_id, product_name, original_price, flash_sale_price,
			 total_quantity, sold_quantity, max_per_user, is_active, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.SessionID, it.ProductID, it.ProductName, it.OriginalPrice, it.FlashSalePrice,
		it.TotalQuantity, it.SoldQuantity, it.MaxPerUser, it.IsActive, it.SortOrder,
		it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// UpdateItem never writes sold_quantity: the durable counter moves only
// through the relative reservation writes, so an admin edit racing a queued
// persistence job cannot double-count it. The WHERE guard keeps the row's
// counter as the floor for the new total.
func (m *MySQLAdapter) UpdateItem(ctx context.Context, it domain.FlashSaleItem) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE flash_sale_items
		SET product_name = ?, original_price = ?, flash_sale_price = ?,
			total_quantity = ?, max_per_user = ?,
			is_active = ?, sort_order = ?, updated_at = ?
		WHERE id = ? AND ? >= sold_quantity`,
		it.ProductName, it.OriginalPrice, it.FlashSalePrice,
		it.TotalQuantity, it.MaxPerUser,
		it.IsActive, it.SortOrder, it.UpdatedAt, it.ID,
		it.TotalQuantity,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var sold int
		err := m.db.QueryRowContext(ctx,
			`SELECT sold_quantity FROM flash_sale_items WHERE id = ?`, it.ID,
		).Scan(&sold)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("inspect item counters: %w", err)
		}
		return domain.ErrQuantityBelowSold
	}
	return nil
}

func (m *MySQLAdapter) DeleteItem(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM flash_sale_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context) ([]domain.FlashSaleItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, session_id, product_id, product_name, original_price, flash_sale_price,
			   total_quantity, sold_quantity, max_per_user, is_active, sort_order,
			   created_at, updated_at
		FROM flash_sale_items ORDER BY sort_order, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.FlashSaleItem
	for rows.Next() {
		var it domain.FlashSaleItem
		if err := rows.Scan(&it.ID, &it.SessionID, &it.ProductID, &it.ProductName,
			&it.OriginalPrice, &it.FlashSalePrice, &it.TotalQuantity, &it.SoldQuantity,
			&it.MaxPerUser, &it.IsActive, &it.SortOrder, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) CreateReservation(ctx context.Context, r domain.Reservation) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations
			(id, session_id, item_id, user_id, quantity, unit_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.ItemID, r.UserID, r.Quantity, r.UnitPrice, r.Status, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE flash_sale_items
		SET sold_quantity = sold_quantity + ?, updated_at = NOW()
		WHERE id = ? AND sold_quantity + ? <= total_quantity`,
		r.Quantity, r.ItemID, r.Quantity,
	)
	if err != nil {
		return fmt.Errorf("update item counters: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrOutOfStock
	}

	return tx.Commit()
}

func (m *MySQLAdapter) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var releasedAt sql.NullTime
	if r.ReleasedAt != nil {
		releasedAt = sql.NullTime{Time: *r.ReleasedAt, Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE reservations SET status = ?, released_at = ? WHERE id = ?`,
		r.Status, releasedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrReservationNotFound
	}

	if r.Status == domain.ReservationReleased {
		_, err = tx.ExecContext(ctx, `
			UPDATE flash_sale_items
			SET sold_quantity = GREATEST(sold_quantity - ?, 0), updated_at = NOW()
			WHERE id = ?`,
			r.Quantity, r.ItemID,
		)
		if err != nil {
			return fmt.Errorf("restore item counters: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ListReservations(ctx context.Context) ([]domain.Reservation, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, session_id, item_id, user_id, quantity, unit_price, status, created_at, released_at
		FROM reservations`)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var r domain.Reservation
		var releasedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ItemID, &r.UserID,
			&r.Quantity, &r.UnitPrice, &r.Status, &r.CreatedAt, &releasedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if releasedAt.Valid {
			t := releasedAt.Time
			r.ReleasedAt = &t
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// GetProduct implements the catalog port against the storefront's products
// table; price is snapshotted from here at item-add time.
func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

// UserTotals sums a user's open reservations per item, used to rebuild the
// ledger after a restart.
func (m *MySQLAdapter) UserTotals(ctx context.Context, itemID string) (map[string]int, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT user_id, SUM(quantity)
		FROM reservations
		WHERE item_id = ? AND status = ?
		GROUP BY user_id`, itemID, domain.ReservationReserved)
	if err != nil {
		return nil, fmt.Errorf("query user totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var userID string
		var total int
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("scan user total: %w", err)
		}
		totals[userID] = total
	}
	return totals, rows.Err()
}
