package rentals

import (
	"time"

	"kreisel-backend/internal/lending/items"
)

// ステータスは保存せず日付と returned から導出する。
// 保存すると end_date 側との二重管理になるため。
const (
	StatusActive   = "ACTIVE"
	StatusOverdue  = "OVERDUE"
	StatusReturned = "RETURNED"
)

type Rental struct {
	ID         string
	UserID     string
	ItemID     string
	StartDate  time.Time
	EndDate    time.Time
	Returned   bool
	ReturnedAt *time.Time
	Extended   bool
	CreatedAt  time.Time
}

// Overdue 未返却かつ返却期限超過
func (r *Rental) Overdue(today time.Time) bool {
	return !r.Returned && items.DateOnly(r.EndDate).Before(items.DateOnly(today))
}

func (r *Rental) StatusLabel(today time.Time) string {
	if r.Returned {
		return StatusReturned
	}
	if r.Overdue(today) {
		return StatusOverdue
	}
	return StatusActive
}

// ValidPeriod 貸出期間の妥当性。end > start かつ maxDays 日以内。
// ちょうど maxDays 日は可。
func ValidPeriod(start, end time.Time, maxDays int) bool {
	s := items.DateOnly(start)
	e := items.DateOnly(end)
	if !e.After(s) {
		return false
	}
	days := int(e.Sub(s) / (24 * time.Hour))
	return days <= maxDays
}
