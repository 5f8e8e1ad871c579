package items

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"

	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/db"
)

var dialect = goqu.Dialect("mysql")

const itemColumns = `item_id, name, description, brand, image_url, size, gender, cond, status, location, available_from, created_at`

type ItemStore interface {
	Insert(ctx context.Context, m *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	Update(ctx context.Context, m *Item) error
	Delete(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, f Filter, today time.Time) ([]Item, error)
}

type Store struct{ db *sql.DB }

func NewStore(database *sql.DB) ItemStore { return &Store{db: database} }

func (s *Store) Insert(ctx context.Context, m *Item) error {
	const q = `
INSERT INTO items
(item_id, name, description, brand, image_url, size, gender, cond, status, location, available_from, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	_, err := s.db.ExecContext(ctx, q,
		m.ID, m.Name, m.Description, m.Brand, m.ImageURL,
		m.Size, m.Gender, m.Condition, m.Status, m.Location, DateOnly(m.AvailableFrom),
	)
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE item_id = ? LIMIT 1`
	return scanItem(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) Update(ctx context.Context, m *Item) error {
	const q = `
UPDATE items SET
 name = ?, description = ?, brand = ?, image_url = ?,
 size = ?, gender = ?, cond = ?, location = ?, available_from = ?
WHERE item_id = ?`
	res, err := s.db.ExecContext(ctx, q,
		m.Name, m.Description, m.Brand, m.ImageURL,
		m.Size, m.Gender, m.Condition, m.Location, DateOnly(m.AvailableFrom), m.ID,
	)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE item_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List 動的フィルタ。条件組み立ては goqu に寄せる（手組みの文字列連結は
// count 用と本体用で条件がずれる事故があったため）。
func (s *Store) List(ctx context.Context, f Filter, today time.Time) ([]Item, error) {
	ds := dialect.From("items").Select(
		"item_id", "name", "description", "brand", "image_url",
		"size", "gender", "cond", "status", "location", "available_from", "created_at",
	)

	if f.Location != nil {
		ds = ds.Where(goqu.C("location").Eq(string(*f.Location)))
	}
	if f.Size != nil {
		ds = ds.Where(goqu.C("size").Eq(string(*f.Size)))
	}
	if f.Gender != nil {
		ds = ds.Where(goqu.C("gender").Eq(string(*f.Gender)))
	}
	if f.Condition != nil {
		ds = ds.Where(goqu.C("cond").Eq(string(*f.Condition)))
	}
	if f.Status != nil {
		ds = ds.Where(goqu.C("status").Eq(string(*f.Status)))
	}
	if f.Name != "" {
		ds = ds.Where(goqu.C("name").Like("%" + f.Name + "%"))
	}
	if f.OnlyLoanable {
		ds = ds.Where(
			goqu.C("status").Eq(string(StatusAvailable)),
			goqu.C("available_from").Lte(DateOnly(today)),
		)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	ds = ds.Order(goqu.C("created_at").Desc()).Limit(uint(limit)).Offset(uint(offset))

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var m Item
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Description, &m.Brand, &m.ImageURL,
			&m.Size, &m.Gender, &m.Condition, &m.Status, &m.Location,
			&m.AvailableFrom, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ===== 他パッケージのTxから使う行ロック・状態遷移 =====

// GetForUpdateTx 貸出トランザクション内での在庫行ロック取得
func GetForUpdateTx(ctx context.Context, tx db.DBTX, id string) (*Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE item_id = ? LIMIT 1 FOR UPDATE`
	return scanItem(tx.QueryRowContext(ctx, q, id))
}

// MarkUnavailableTx 貸出時の状態遷移。既に UNAVAILABLE でも成功（冪等）。
func MarkUnavailableTx(ctx context.Context, tx db.DBTX, id string) error {
	return setStatusTx(ctx, tx, id, StatusUnavailable)
}

// MarkAvailableTx 返却・スイープ時の状態遷移。冪等。
func MarkAvailableTx(ctx context.Context, tx db.DBTX, id string) error {
	return setStatusTx(ctx, tx, id, StatusAvailable)
}

func setStatusTx(ctx context.Context, tx db.DBTX, id string, st Status) error {
	const q = `UPDATE items SET status = ? WHERE item_id = ? AND status <> ?`
	// RowsAffected=0 は許容（既に目的の状態）
	_, err := tx.ExecContext(ctx, q, st, id, st)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanItem(row rowScanner) (*Item, error) {
	var m Item
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Brand, &m.ImageURL,
		&m.Size, &m.Gender, &m.Condition, &m.Status, &m.Location,
		&m.AvailableFrom, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("item not found")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
