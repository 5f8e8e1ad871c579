package reviews

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"

	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/db"
)

var dialect = goqu.Dialect("mysql")

const reviewColumns = `review_id, rental_id, user_id, item_id, rating, comment, created_at, updated_at`

// TopRatedRow 集計クエリの生の行
type TopRatedRow struct {
	ItemID  string
	Average float64
	Count   int
}

type ReviewStore interface {
	Insert(ctx context.Context, m *Review) error
	Get(ctx context.Context, id string) (*Review, error)
	GetByRental(ctx context.Context, rentalID string) (*Review, error)
	ExistsByRental(ctx context.Context, rentalID string) (bool, error)
	ListByItem(ctx context.Context, itemID string) ([]Review, error)
	ListByUser(ctx context.Context, userID string) ([]Review, error)
	Update(ctx context.Context, m *Review) error
	Delete(ctx context.Context, id string) (int64, error)
	CountsByRating(ctx context.Context, itemID string) (map[int]int, error)
	TopRated(ctx context.Context, minReviews, limit int) ([]TopRatedRow, error)
}

type Store struct{ db *sql.DB }

func NewStore(database *sql.DB) ReviewStore { return &Store{db: database} }

func (s *Store) Insert(ctx context.Context, m *Review) error {
	const q = `
INSERT INTO reviews
(review_id, rental_id, user_id, item_id, rating, comment, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		m.ID, m.RentalID, m.UserID, m.ItemID, m.Rating, m.Comment, m.CreatedAt, m.UpdatedAt,
	)
	// rental_id のユニーク索引で1貸出1レビューを担保
	if db.IsDupKey(err) {
		return apperr.New(apperr.CodeDuplicateReview, "rental already has a review")
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*Review, error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE review_id = ? LIMIT 1`
	return scanReview(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) GetByRental(ctx context.Context, rentalID string) (*Review, error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE rental_id = ? LIMIT 1`
	return scanReview(s.db.QueryRowContext(ctx, q, rentalID))
}

func (s *Store) ExistsByRental(ctx context.Context, rentalID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM reviews WHERE rental_id = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, rentalID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListByItem(ctx context.Context, itemID string) ([]Review, error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE item_id = ? ORDER BY created_at DESC`
	return s.collect(ctx, q, itemID)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]Review, error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE user_id = ? ORDER BY created_at DESC`
	return s.collect(ctx, q, userID)
}

func (s *Store) Update(ctx context.Context, m *Review) error {
	const q = `UPDATE reviews SET rating = ?, comment = ?, updated_at = ? WHERE review_id = ?`
	res, err := s.db.ExecContext(ctx, q, m.Rating, m.Comment, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("review not found")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE review_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountsByRating(ctx context.Context, itemID string) (map[int]int, error) {
	const q = `SELECT rating, COUNT(*) FROM reviews WHERE item_id = ? GROUP BY rating`
	rows, err := s.db.QueryContext(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[int]int{}
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, err
		}
		counts[rating] = n
	}
	return counts, rows.Err()
}

// TopRated 平均降順。同点は item_id 昇順で安定させる。
func (s *Store) TopRated(ctx context.Context, minReviews, limit int) ([]TopRatedRow, error) {
	ds := dialect.From("reviews").
		Select(
			goqu.C("item_id"),
			goqu.AVG("rating").As("avg_rating"),
			goqu.COUNT(goqu.Star()).As("review_count"),
		).
		GroupBy(goqu.C("item_id")).
		Having(goqu.COUNT(goqu.Star()).Gte(minReviews)).
		Order(goqu.I("avg_rating").Desc(), goqu.C("item_id").Asc()).
		Limit(uint(limit))

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopRatedRow
	for rows.Next() {
		var r TopRatedRow
		if err := rows.Scan(&r.ItemID, &r.Average, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) collect(ctx context.Context, q string, args ...any) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var m Review
		if err := rows.Scan(
			&m.ID, &m.RentalID, &m.UserID, &m.ItemID,
			&m.Rating, &m.Comment, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanReview(row rowScanner) (*Review, error) {
	var m Review
	err := row.Scan(
		&m.ID, &m.RentalID, &m.UserID, &m.ItemID,
		&m.Rating, &m.Comment, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("review not found")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
