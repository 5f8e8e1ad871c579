package rentals

import "time"

type CreateRentalRequest struct {
	ItemID    string `json:"item_id" binding:"required"`
	StartDate string `json:"start_date"` // "2006-01-02"、省略時は当日
	EndDate   string `json:"end_date" binding:"required"`
}

type RentalResponse struct {
	ID         string  `json:"rental_id"`
	UserID     string  `json:"user_id"`
	ItemID     string  `json:"item_id"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Returned   bool    `json:"returned"`
	ReturnedAt *string `json:"returned_at,omitempty"`
	Extended   bool    `json:"extended"`
	Status     string  `json:"status"`
}

func (s *Service) toResponse(r *Rental) RentalResponse {
	resp := RentalResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		ItemID:    r.ItemID,
		StartDate: r.StartDate.Format("2006-01-02"),
		EndDate:   r.EndDate.Format("2006-01-02"),
		Returned:  r.Returned,
		Extended:  r.Extended,
		Status:    r.StatusLabel(s.clock.Now()),
	}
	if r.ReturnedAt != nil {
		v := r.ReturnedAt.Format("2006-01-02")
		resp.ReturnedAt = &v
	}
	return resp
}

func (s *Service) toResponses(list []Rental) []RentalResponse {
	out := make([]RentalResponse, 0, len(list))
	for i := range list {
		out = append(out, s.toResponse(&list[i]))
	}
	return out
}

// parseDate DTOの日付文字列用
func parseDate(v string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
