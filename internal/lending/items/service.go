package items

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/db"
)

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

type Service struct {
	store ItemStore
	clock Clock
	id    IDGen
}

func NewService(store ItemStore) *Service {
	return &Service{store: store, clock: realClock{}, id: ulidGen{}}
}

func (s *Service) Create(ctx context.Context, req CreateItemRequest) (*ItemResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Invalid("name is required")
	}
	size, gender, cond, loc, err := parseEnums(req.Size, req.Gender, req.Condition, req.Location)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	availableFrom := DateOnly(now)
	if req.AvailableFrom != "" {
		t, err := time.Parse("2006-01-02", req.AvailableFrom)
		if err != nil {
			return nil, apperr.Invalid("invalid available_from format, expected YYYY-MM-DD")
		}
		availableFrom = t
	}

	m := &Item{
		ID:            s.id.NewULID(now),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Brand:         req.Brand,
		ImageURL:      req.ImageURL,
		Size:          size,
		Gender:        gender,
		Condition:     cond,
		Status:        StatusAvailable,
		Location:      loc,
		AvailableFrom: availableFrom,
		CreatedAt:     now,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ItemResponse, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateItemRequest) (*ItemResponse, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperr.Invalid("name must not be empty")
		}
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Brand != nil {
		m.Brand = *req.Brand
	}
	if req.ImageURL != nil {
		m.ImageURL = *req.ImageURL
	}
	if req.Size != nil {
		v := Size(strings.ToUpper(*req.Size))
		if !validSize(v) {
			return nil, apperr.Invalid("invalid size")
		}
		m.Size = v
	}
	if req.Gender != nil {
		v := Gender(strings.ToUpper(*req.Gender))
		if !validGender(v) {
			return nil, apperr.Invalid("invalid gender")
		}
		m.Gender = v
	}
	if req.Condition != nil {
		v := Condition(strings.ToUpper(*req.Condition))
		if !validCondition(v) {
			return nil, apperr.Invalid("invalid condition")
		}
		m.Condition = v
	}
	if req.Location != nil {
		v := Location(strings.ToUpper(*req.Location))
		if !validLocation(v) {
			return nil, apperr.Invalid("invalid location")
		}
		m.Location = v
	}
	if req.AvailableFrom != nil {
		t, err := time.Parse("2006-01-02", *req.AvailableFrom)
		if err != nil {
			return nil, apperr.Invalid("invalid available_from format, expected YYYY-MM-DD")
		}
		m.AvailableFrom = t
	}

	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		if db.IsFKViolation(err) {
			// 貸出履歴が付いた備品は消させない
			return apperr.Conflict("item has rental history")
		}
		return err
	}
	if n == 0 {
		return apperr.NotFound("item not found")
	}
	return nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]ItemResponse, error) {
	list, err := s.store.List(ctx, f, s.clock.Now())
	if err != nil {
		return nil, err
	}
	out := make([]ItemResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	return out, nil
}

func parseEnums(size, gender, cond, loc string) (Size, Gender, Condition, Location, error) {
	sz := Size(strings.ToUpper(size))
	if !validSize(sz) {
		return "", "", "", "", apperr.Invalid("invalid size, expected XS..XL")
	}
	g := Gender(strings.ToUpper(gender))
	if !validGender(g) {
		return "", "", "", "", apperr.Invalid("invalid gender, expected DAMEN or HERREN")
	}
	c := Condition(strings.ToUpper(cond))
	if !validCondition(c) {
		return "", "", "", "", apperr.Invalid("invalid condition, expected NEU or GEBRAUCHT")
	}
	l := Location(strings.ToUpper(loc))
	if !validLocation(l) {
		return "", "", "", "", apperr.Invalid("invalid location")
	}
	return sz, g, c, l, nil
}
