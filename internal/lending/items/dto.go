package items

import "time"

type CreateItemRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	Brand         string `json:"brand"`
	ImageURL      string `json:"image_url"`
	Size          string `json:"size" binding:"required"`
	Gender        string `json:"gender" binding:"required"`
	Condition     string `json:"condition" binding:"required"`
	Location      string `json:"location" binding:"required"`
	AvailableFrom string `json:"available_from"` // "2006-01-02"、省略時は当日
}

type UpdateItemRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Brand         *string `json:"brand,omitempty"`
	ImageURL      *string `json:"image_url,omitempty"`
	Size          *string `json:"size,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	Condition     *string `json:"condition,omitempty"`
	Location      *string `json:"location,omitempty"`
	AvailableFrom *string `json:"available_from,omitempty"`
}

type ItemResponse struct {
	ID            string    `json:"item_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Brand         string    `json:"brand,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Size          string    `json:"size"`
	Gender        string    `json:"gender"`
	Condition     string    `json:"condition"`
	Status        string    `json:"status"`
	Location      string    `json:"location"`
	AvailableFrom string    `json:"available_from"`
	CreatedAt     time.Time `json:"created_at"`
}

// Filter 一覧検索条件。未指定の項目は絞り込まない。
type Filter struct {
	Location      *Location
	Size          *Size
	Gender        *Gender
	Condition     *Condition
	Status        *Status
	Name          string // 部分一致
	OnlyLoanable  bool
	Limit, Offset int
}

func toResponse(i *Item) ItemResponse {
	return ItemResponse{
		ID:            i.ID,
		Name:          i.Name,
		Description:   i.Description,
		Brand:         i.Brand,
		ImageURL:      i.ImageURL,
		Size:          string(i.Size),
		Gender:        string(i.Gender),
		Condition:     string(i.Condition),
		Status:        string(i.Status),
		Location:      string(i.Location),
		AvailableFrom: i.AvailableFrom.Format("2006-01-02"),
		CreatedAt:     i.CreatedAt,
	}
}
