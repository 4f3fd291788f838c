// repository/order/orderRepository.go
package orderrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"libraryrental/model"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrNoStock      = errors.New("no stock available")
)

type Repo interface {
	// Reserve creates a booked order and decrements the book's quantity in
	// one transaction. The decrement is guarded by quantity > 0, so two
	// concurrent reservations of the last copy cannot both succeed.
	Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error)

	Get(ctx context.Context, orderID int64) (*model.Order, error)
	GetOwned(ctx context.Context, orderID, userID int64) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)

	// MarkTaken flips booked -> taken. Reports false when the order is no
	// longer in the booked state (lost race or repeat call).
	MarkTaken(ctx context.Context, orderID int64) (bool, error)

	// MarkReturned flips taken -> returned and restores the book's quantity
	// in one transaction. Reports false when the order is not in the taken
	// state.
	MarkReturned(ctx context.Context, orderID int64) (bool, error)

	// SetRating stores the rating, guarded by ownership and returned state.
	SetRating(ctx context.Context, orderID, userID int64, rating int) (bool, error)

	// ListExpiredBooked returns ids of booked orders created before cutoff.
	ListExpiredBooked(ctx context.Context, cutoff time.Time) ([]int64, error)

	// CancelBooked flips booked -> cancelled and restores the book's
	// quantity in one transaction, guarded so an order accepted in the
	// meantime is left untouched.
	CancelBooked(ctx context.Context, orderID int64, cutoff time.Time) (bool, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const orderCols = `id, user_id, book_id, order_date, status, taken_at, returned_at, penalty, rating`

func scanOrder(row *sql.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.BookID, &o.OrderDate, &o.Status,
		&o.TakenAt, &o.ReturnedAt, &o.Penalty, &o.Rating)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func (r *repo) Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Guard: only decrement while stock remains.
	const dec = `
		UPDATE books
		SET quantity = quantity - 1
		WHERE id = $1
		AND quantity > 0`
	res, err := tx.ExecContext(ctx, dec, bookID)
	if err != nil {
		return nil, err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		var exists bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			err = ErrBookNotFound
		} else {
			err = ErrNoStock
		}
		return nil, err
	}

	const ins = `
		INSERT INTO orders (user_id, book_id, status)
		VALUES ($1, $2, 'booked')
		RETURNING ` + orderCols
	o := &model.Order{}
	if err = tx.QueryRowContext(ctx, ins, userID, bookID).Scan(
		&o.ID, &o.UserID, &o.BookID, &o.OrderDate, &o.Status,
		&o.TakenAt, &o.ReturnedAt, &o.Penalty, &o.Rating,
	); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repo) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id = $1`
	return scanOrder(r.db.QueryRowContext(ctx, q, orderID))
}

func (r *repo) GetOwned(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id = $1 AND user_id = $2`
	return scanOrder(r.db.QueryRowContext(ctx, q, orderID, userID))
}

func (r *repo) List(ctx context.Context) ([]model.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders ORDER BY order_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.BookID, &o.OrderDate, &o.Status,
			&o.TakenAt, &o.ReturnedAt, &o.Penalty, &o.Rating); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *repo) MarkTaken(ctx context.Context, orderID int64) (bool, error) {
	const q = `
		UPDATE orders
		SET status = 'taken',
			taken_at = NOW()
		WHERE id = $1
		AND status = 'booked'
		AND taken_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, orderID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) MarkReturned(ctx context.Context, orderID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `
		UPDATE orders
		SET status = 'returned',
			returned_at = NOW()
		WHERE id = $1
		AND status = 'taken'
		AND returned_at IS NULL
		RETURNING book_id`
	var bookID int64
	err = tx.QueryRowContext(ctx, q, orderID).Scan(&bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			_ = tx.Rollback()
			return false, nil
		}
		return false, err
	}

	const inc = `UPDATE books SET quantity = quantity + 1 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, inc, bookID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) SetRating(ctx context.Context, orderID, userID int64, rating int) (bool, error) {
	const q = `
		UPDATE orders
		SET rating = $3
		WHERE id = $1
		AND user_id = $2
		AND returned_at IS NOT NULL`
	res, err := r.db.ExecContext(ctx, q, orderID, userID, rating)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) ListExpiredBooked(ctx context.Context, cutoff time.Time) ([]int64, error) {
	const q = `
		SELECT id
		FROM orders
		WHERE status = 'booked'
		AND order_date < $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repo) CancelBooked(ctx context.Context, orderID int64, cutoff time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Re-check state inside the transaction: an accept that won the race
	// since the scan must leave the order alone.
	const q = `
		UPDATE orders
		SET status = 'cancelled'
		WHERE id = $1
		AND status = 'booked'
		AND taken_at IS NULL
		AND order_date < $2
		RETURNING book_id`
	var bookID int64
	err = tx.QueryRowContext(ctx, q, orderID, cutoff).Scan(&bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			_ = tx.Rollback()
			return false, nil
		}
		return false, err
	}

	const inc = `UPDATE books SET quantity = quantity + 1 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, inc, bookID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
