package reports

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"kreisel-backend/internal/lending/rentals"
)

var csvHeader = []string{"rental_id", "user_email", "item_name", "start_date", "end_date", "status", "returned_at"}

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store ReportStore
	clock Clock
}

func NewService(store ReportStore) *Service {
	return &Service{store: store, clock: realClock{}}
}

// WriteRentalsCSV 事務局のExcel向けにWindows-1252で書き出す。
// UTF-8のままだとウムラウトが化ける環境がまだ残っている。
func (s *Service) WriteRentalsCSV(ctx context.Context, out io.Writer) error {
	rows, err := s.store.ListRentalRows(ctx)
	if err != nil {
		return err
	}
	today := s.clock.Now()

	enc := charmap.Windows1252.NewEncoder()
	w := csv.NewWriter(transform.NewWriter(out, enc))

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		status := (&rentals.Rental{EndDate: r.EndDate, Returned: r.Returned}).StatusLabel(today)
		returnedAt := ""
		if r.ReturnedAt.Valid {
			returnedAt = r.ReturnedAt.Time.Format("2006-01-02")
		}
		rec := []string{
			r.RentalID,
			r.UserEmail,
			r.ItemName,
			r.StartDate.Format("2006-01-02"),
			r.EndDate.Format("2006-01-02"),
			status,
			returnedAt,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
