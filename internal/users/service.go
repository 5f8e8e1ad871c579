package users

import (
	"context"
	"strings"

	"kreisel-backend/internal/platform/apperr"
)

type Service struct{ store UserStore }

func NewService(store UserStore) *Service { return &Service{store: store} }

func (s *Service) List(ctx context.Context) ([]UserResponse, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(list), nil
}

func (s *Service) Get(ctx context.Context, id string) (*UserResponse, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Invalid("email is required")
	}
	m, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
