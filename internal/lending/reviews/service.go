package reviews

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"kreisel-backend/internal/lending/rentals"
	"kreisel-backend/internal/platform/apperr"
)

type Clock interface{ Now() time.Time }
type IDGen interface{ NewULID(t time.Time) string }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// RentalSource レビュー資格判定に使う貸出の参照。rentals.Service が満たす。
type RentalSource interface {
	Get(ctx context.Context, rentalID string) (*rentals.RentalResponse, error)
}

type Service struct {
	store   ReviewStore
	rentals RentalSource
	clock   Clock
	id      IDGen
}

func NewService(store ReviewStore, src RentalSource) *Service {
	return &Service{store: store, rentals: src, clock: realClock{}, id: ulidGen{}}
}

// Eligibility 本人の返却済み貸出で、まだレビューしていなければ可。
// エラーにせず理由付きで返す（フロントがボタン表示の判定に使う）。
func (s *Service) Eligibility(ctx context.Context, userID, rentalID string) (*EligibilityResponse, error) {
	r, err := s.rentals.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return &EligibilityResponse{Eligible: false, Reason: "rental belongs to another user"}, nil
	}
	if !r.Returned {
		return &EligibilityResponse{Eligible: false, Reason: "rental not returned yet"}, nil
	}
	exists, err := s.store.ExistsByRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return &EligibilityResponse{Eligible: false, Reason: "rental already has a review"}, nil
	}
	return &EligibilityResponse{Eligible: true}, nil
}

func (s *Service) Create(ctx context.Context, userID, rentalID string, req CreateReviewRequest) (*ReviewResponse, error) {
	if !ValidRating(req.Rating) {
		return nil, apperr.New(apperr.CodeInvalidRating,
			fmt.Sprintf("rating must be between %d and %d", RatingMin, RatingMax))
	}

	r, err := s.rentals.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, apperr.Forbidden("cannot review another user's rental")
	}
	if !r.Returned {
		return nil, apperr.New(apperr.CodeRentalNotReturned, "rental must be returned before review")
	}

	now := s.clock.Now()
	m := &Review{
		ID:        s.id.NewULID(now),
		RentalID:  rentalID,
		UserID:    r.UserID,
		ItemID:    r.ItemID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// 重複はストア側のユニーク索引に任せる（先読みチェックだと競合が残る）
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, userID string, isAdmin bool, reviewID string, req UpdateReviewRequest) (*ReviewResponse, error) {
	m, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID && !isAdmin {
		return nil, apperr.Forbidden("cannot edit another user's review")
	}

	if req.Rating != nil {
		if !ValidRating(*req.Rating) {
			return nil, apperr.New(apperr.CodeInvalidRating,
				fmt.Sprintf("rating must be between %d and %d", RatingMin, RatingMax))
		}
		m.Rating = *req.Rating
	}
	if req.Comment != nil {
		m.Comment = *req.Comment
	}
	m.UpdatedAt = s.clock.Now()

	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, userID string, isAdmin bool, reviewID string) error {
	m, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if m.UserID != userID && !isAdmin {
		return apperr.Forbidden("cannot delete another user's review")
	}
	n, err := s.store.Delete(ctx, reviewID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("review not found")
	}
	return nil
}

func (s *Service) GetByRental(ctx context.Context, rentalID string) (*ReviewResponse, error) {
	m, err := s.store.GetByRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) ListByItem(ctx context.Context, itemID string) ([]ReviewResponse, error) {
	list, err := s.store.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return toResponses(list), nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]ReviewResponse, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toResponses(list), nil
}

// Stats レビュー0件でも average=0, 全バケット0 で返す（404にはしない）。
func (s *Service) Stats(ctx context.Context, itemID string) (*RatingStatsResponse, error) {
	counts, err := s.store.CountsByRating(ctx, itemID)
	if err != nil {
		return nil, err
	}

	resp := &RatingStatsResponse{ItemID: itemID, Distribution: map[int]int{}}
	sum := 0
	for r := RatingMin; r <= RatingMax; r++ {
		n := counts[r]
		resp.Distribution[r] = n
		resp.Count += n
		sum += r * n
	}
	if resp.Count > 0 {
		resp.Average = round2(float64(sum) / float64(resp.Count))
	}
	return resp, nil
}

func (s *Service) TopRated(ctx context.Context, minReviews, limit int) ([]TopRatedItemResponse, error) {
	if minReviews < 1 {
		minReviews = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.store.TopRated(ctx, minReviews, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TopRatedItemResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, TopRatedItemResponse{
			ItemID:  r.ItemID,
			Average: round2(r.Average),
			Count:   r.Count,
		})
	}
	return out, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
