package rentals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kreisel-backend/internal/lending/items"
	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/db"
)

// Store 貸出トランザクションの境界。Tx付きメソッドは InTx のコールバック内で使う。
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error

	UserExistsForUpdateTx(ctx context.Context, tx db.DBTX, userID string) (bool, error)
	ItemForUpdateTx(ctx context.Context, tx db.DBTX, itemID string) (*items.Item, error)
	CountActiveByUserTx(ctx context.Context, tx db.DBTX, userID string) (int, error)
	InsertTx(ctx context.Context, tx db.DBTX, m *Rental) error
	GetForUpdateTx(ctx context.Context, tx db.DBTX, rentalID string) (*Rental, error)
	MarkReturnedTx(ctx context.Context, tx db.DBTX, rentalID string, returnedAt time.Time) error
	ExtendTx(ctx context.Context, tx db.DBTX, rentalID string, newEnd time.Time) error
	MarkItemAvailableTx(ctx context.Context, tx db.DBTX, itemID string) error
	MarkItemUnavailableTx(ctx context.Context, tx db.DBTX, itemID string) error
	ListOverdueForUpdateTx(ctx context.Context, tx db.DBTX, today time.Time) ([]Rental, error)

	Get(ctx context.Context, rentalID string) (*Rental, error)
	ListAll(ctx context.Context) ([]Rental, error)
	ListOverdue(ctx context.Context, today time.Time) ([]Rental, error)
	ListByUser(ctx context.Context, userID string) ([]Rental, error)
	ListActiveByUser(ctx context.Context, userID string) ([]Rental, error)
	ListHistoryByUser(ctx context.Context, userID string) ([]Rental, error)
}

const rentalColumns = `rental_id, user_id, item_id, start_date, end_date, returned, returned_at, extended, created_at`

type SQLStore struct{ db *sql.DB }

func NewStore(database *sql.DB) Store { return &SQLStore{db: database} }

func (s *SQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return db.RunInTx(ctx, s.db, nil, fn)
}

// UserExistsForUpdateTx 同一ユーザーの同時貸出で枠チェックがすり抜けないよう
// ユーザー行をロックする
func (s *SQLStore) UserExistsForUpdateTx(ctx context.Context, tx db.DBTX, userID string) (bool, error) {
	const q = `SELECT user_id FROM users WHERE user_id = ? LIMIT 1 FOR UPDATE`
	var id string
	err := tx.QueryRowContext(ctx, q, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) ItemForUpdateTx(ctx context.Context, tx db.DBTX, itemID string) (*items.Item, error) {
	return items.GetForUpdateTx(ctx, tx, itemID)
}

// CountActiveByUserTx 枠チェックは保持カウンタではなく履歴への射影で数える。
// カウンタ方式はズレたときに直せないため。
func (s *SQLStore) CountActiveByUserTx(ctx context.Context, tx db.DBTX, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM rentals WHERE user_id = ? AND returned = 0`
	var n int
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) InsertTx(ctx context.Context, tx db.DBTX, m *Rental) error {
	const q = `
INSERT INTO rentals
(rental_id, user_id, item_id, start_date, end_date, returned, returned_at, extended, created_at)
VALUES (?, ?, ?, ?, ?, 0, NULL, 0, CURRENT_TIMESTAMP)`
	_, err := tx.ExecContext(ctx, q,
		m.ID, m.UserID, m.ItemID,
		items.DateOnly(m.StartDate), items.DateOnly(m.EndDate),
	)
	return err
}

func (s *SQLStore) GetForUpdateTx(ctx context.Context, tx db.DBTX, rentalID string) (*Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals WHERE rental_id = ? LIMIT 1 FOR UPDATE`
	return scanRental(tx.QueryRowContext(ctx, q, rentalID))
}

func (s *SQLStore) MarkReturnedTx(ctx context.Context, tx db.DBTX, rentalID string, returnedAt time.Time) error {
	const q = `UPDATE rentals SET returned = 1, returned_at = ? WHERE rental_id = ? AND returned = 0`
	res, err := tx.ExecContext(ctx, q, items.DateOnly(returnedAt), rentalID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.New(apperr.CodeAlreadyReturned, "rental already returned")
	}
	return nil
}

func (s *SQLStore) ExtendTx(ctx context.Context, tx db.DBTX, rentalID string, newEnd time.Time) error {
	const q = `UPDATE rentals SET end_date = ?, extended = 1 WHERE rental_id = ? AND returned = 0 AND extended = 0`
	res, err := tx.ExecContext(ctx, q, items.DateOnly(newEnd), rentalID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.New(apperr.CodeExtensionAlreadyUsed, "extension already used")
	}
	return nil
}

func (s *SQLStore) MarkItemAvailableTx(ctx context.Context, tx db.DBTX, itemID string) error {
	return items.MarkAvailableTx(ctx, tx, itemID)
}

func (s *SQLStore) MarkItemUnavailableTx(ctx context.Context, tx db.DBTX, itemID string) error {
	return items.MarkUnavailableTx(ctx, tx, itemID)
}

// ListOverdueForUpdateTx スイープ対象の行ロック付き取得。
// returned=0 の条件が入っているので二度目のスイープでは何も拾わない。
func (s *SQLStore) ListOverdueForUpdateTx(ctx context.Context, tx db.DBTX, today time.Time) ([]Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals
WHERE returned = 0 AND end_date < ?
ORDER BY end_date ASC
FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, items.DateOnly(today))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRentals(rows)
}

// ===== 参照系 =====

func (s *SQLStore) Get(ctx context.Context, rentalID string) (*Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals WHERE rental_id = ? LIMIT 1`
	return scanRental(s.db.QueryRowContext(ctx, q, rentalID))
}

func (s *SQLStore) ListAll(ctx context.Context) ([]Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals ORDER BY created_at DESC`
	return s.queryRentals(ctx, q)
}

func (s *SQLStore) ListOverdue(ctx context.Context, today time.Time) ([]Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals
WHERE returned = 0 AND end_date < ? ORDER BY end_date ASC`
	return s.queryRentals(ctx, q, items.DateOnly(today))
}

func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals WHERE user_id = ? ORDER BY created_at DESC`
	return s.queryRentals(ctx, q, userID)
}

func (s *SQLStore) ListActiveByUser(ctx context.Context, userID string) ([]Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals
WHERE user_id = ? AND returned = 0 ORDER BY created_at DESC`
	return s.queryRentals(ctx, q, userID)
}

func (s *SQLStore) ListHistoryByUser(ctx context.Context, userID string) ([]Rental, error) {
	const q = `SELECT ` + rentalColumns + ` FROM rentals
WHERE user_id = ? AND returned = 1 ORDER BY created_at DESC`
	return s.queryRentals(ctx, q, userID)
}

// queryRentals 一覧系は読み取り専用Txで流す
func (s *SQLStore) queryRentals(ctx context.Context, q string, args ...any) ([]Rental, error) {
	var out []Rental
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectRentals(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func collectRentals(rows *sql.Rows) ([]Rental, error) {
	var out []Rental
	for rows.Next() {
		var m Rental
		var returnedAt sql.NullTime
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.ItemID, &m.StartDate, &m.EndDate,
			&m.Returned, &returnedAt, &m.Extended, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		if returnedAt.Valid {
			v := returnedAt.Time
			m.ReturnedAt = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRental(row rowScanner) (*Rental, error) {
	var m Rental
	var returnedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.UserID, &m.ItemID, &m.StartDate, &m.EndDate,
		&m.Returned, &returnedAt, &m.Extended, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("rental not found")
	}
	if err != nil {
		return nil, err
	}
	if returnedAt.Valid {
		v := returnedAt.Time
		m.ReturnedAt = &v
	}
	return &m, nil
}
