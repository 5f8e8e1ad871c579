package reviews

import "time"

// Review 返却済み貸出1件につき1レビュー。user_id / item_id は
// 作成時に貸出行から写して持つ（統計クエリでJOINしないため）。
type Review struct {
	ID        string
	RentalID  string
	UserID    string
	ItemID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	RatingMin = 1
	RatingMax = 5
)

func ValidRating(r int) bool { return r >= RatingMin && r <= RatingMax }
