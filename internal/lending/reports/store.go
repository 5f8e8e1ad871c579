package reports

import (
	"context"
	"database/sql"
	"time"
)

// RentalRow CSV1行ぶん。貸出・利用者・備品を突き合わせた読み取り専用ビュー。
type RentalRow struct {
	RentalID   string
	UserEmail  string
	ItemName   string
	StartDate  time.Time
	EndDate    time.Time
	Returned   bool
	ReturnedAt sql.NullTime
}

type ReportStore interface {
	ListRentalRows(ctx context.Context) ([]RentalRow, error)
}

type Store struct{ db *sql.DB }

func NewStore(database *sql.DB) ReportStore { return &Store{db: database} }

func (s *Store) ListRentalRows(ctx context.Context) ([]RentalRow, error) {
	const q = `
SELECT r.rental_id, u.email, i.name, r.start_date, r.end_date, r.returned, r.returned_at
FROM rentals r
JOIN users u ON u.user_id = r.user_id
JOIN items i ON i.item_id = r.item_id
ORDER BY r.start_date DESC, r.rental_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RentalRow
	for rows.Next() {
		var m RentalRow
		if err := rows.Scan(
			&m.RentalID, &m.UserEmail, &m.ItemName,
			&m.StartDate, &m.EndDate, &m.Returned, &m.ReturnedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
