package reviews

type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

type UpdateReviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type ReviewResponse struct {
	ID        string `json:"review_id"`
	RentalID  string `json:"rental_id"`
	UserID    string `json:"user_id"`
	ItemID    string `json:"item_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// RatingStatsResponse 平均は小数第2位に丸める。Distribution は
// 1〜5すべてのキーを持ち、該当なしは0。
type RatingStatsResponse struct {
	ItemID       string      `json:"item_id"`
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"distribution"`
}

type TopRatedItemResponse struct {
	ItemID  string  `json:"item_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

func toResponse(m *Review) ReviewResponse {
	return ReviewResponse{
		ID:        m.ID,
		RentalID:  m.RentalID,
		UserID:    m.UserID,
		ItemID:    m.ItemID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toResponses(list []Review) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	return out
}
