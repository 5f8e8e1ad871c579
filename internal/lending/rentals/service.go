package rentals

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"kreisel-backend/internal/lending/items"
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
	store Store
	cfg   db.RentalConfig
	clock Clock
	id    IDGen
}

func NewService(store Store, cfg db.RentalConfig) *Service {
	return &Service{store: store, cfg: cfg, clock: realClock{}, id: ulidGen{}}
}

// Create 貸出登録。枠チェック→在庫チェック→期間チェック→INSERT+状態遷移 を
// 1トランザクションで行う。ユーザー行と備品行をロックするので、同じ備品への
// 同時リクエストは片方だけが通る。ロック競合(1205/1213)は1回だけリトライ。
func (s *Service) Create(ctx context.Context, userID string, req CreateRentalRequest) (*RentalResponse, error) {
	if userID == "" {
		return nil, apperr.Invalid("user_id is required")
	}
	if req.ItemID == "" {
		return nil, apperr.Invalid("item_id is required")
	}

	now := s.clock.Now()
	startDate := items.DateOnly(now)
	if req.StartDate != "" {
		t, ok := parseDate(req.StartDate)
		if !ok {
			return nil, apperr.Invalid("invalid start_date format, expected YYYY-MM-DD")
		}
		startDate = t
	}
	endDate, ok := parseDate(req.EndDate)
	if !ok {
		return nil, apperr.Invalid("invalid end_date format, expected YYYY-MM-DD")
	}

	out, err := s.createOnce(ctx, userID, req.ItemID, startDate, endDate, now)
	if err != nil && db.IsLockError(err) {
		log.Printf("[WARN] rental create lock conflict, retrying once: user=%s item=%s", userID, req.ItemID)
		out, err = s.createOnce(ctx, userID, req.ItemID, startDate, endDate, now)
		if err != nil && db.IsLockError(err) {
			// リトライしても負けたら在庫競合として返す
			return nil, apperr.New(apperr.CodeItemUnavailable, "item is not available for rental")
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) createOnce(ctx context.Context, userID, itemID string, startDate, endDate, now time.Time) (*RentalResponse, error) {
	var created *Rental
	err := s.store.InTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		exists, err := s.store.UserExistsForUpdateTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("user not found")
		}

		it, err := s.store.ItemForUpdateTx(ctx, tx, itemID)
		if err != nil {
			return err
		}

		active, err := s.store.CountActiveByUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if active >= s.cfg.MaxActive {
			return apperr.New(apperr.CodeQuotaExceeded,
				fmt.Sprintf("user has reached maximum active rentals (%d)", s.cfg.MaxActive))
		}

		if !it.Loanable(now) {
			return apperr.New(apperr.CodeItemUnavailable, "item is not available for rental")
		}

		if !ValidPeriod(startDate, endDate, s.cfg.MaxDays) {
			return apperr.New(apperr.CodeInvalidPeriod,
				fmt.Sprintf("rental period must be positive and at most %d days", s.cfg.MaxDays))
		}

		m := &Rental{
			ID:        s.id.NewULID(now),
			UserID:    userID,
			ItemID:    itemID,
			StartDate: items.DateOnly(startDate),
			EndDate:   items.DateOnly(endDate),
			CreatedAt: now,
		}
		if err := s.store.InsertTx(ctx, tx, m); err != nil {
			return err
		}
		if err := s.store.MarkItemUnavailableTx(ctx, tx, itemID); err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(created)
	return &resp, nil
}

// Return 返却。Rental更新と備品の解放を同一Txで行う。
func (s *Service) Return(ctx context.Context, rentalID string) (*RentalResponse, error) {
	today := items.DateOnly(s.clock.Now())

	var returned *Rental
	err := s.store.InTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		m, err := s.store.GetForUpdateTx(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if m.Returned {
			return apperr.New(apperr.CodeAlreadyReturned, "rental already returned")
		}

		if err := s.store.MarkReturnedTx(ctx, tx, rentalID, today); err != nil {
			return err
		}
		if err := s.store.MarkItemAvailableTx(ctx, tx, m.ItemID); err != nil {
			return err
		}

		m.Returned = true
		m.ReturnedAt = &today
		returned = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(returned)
	return &resp, nil
}

// Extend 延長は1回まで。延長幅は設定値。
func (s *Service) Extend(ctx context.Context, rentalID string) (*RentalResponse, error) {
	var extended *Rental
	err := s.store.InTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		m, err := s.store.GetForUpdateTx(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if m.Returned {
			return apperr.New(apperr.CodeAlreadyReturned, "rental already returned")
		}
		if m.Extended {
			return apperr.New(apperr.CodeExtensionAlreadyUsed, "extension already used")
		}

		newEnd := items.DateOnly(m.EndDate).AddDate(0, 0, s.cfg.ExtensionDays)
		if err := s.store.ExtendTx(ctx, tx, rentalID, newEnd); err != nil {
			return err
		}

		m.EndDate = newEnd
		m.Extended = true
		extended = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(extended)
	return &resp, nil
}

// SweepOverdue 期限切れ貸出の一括クローズ。対象が無ければ空リスト。
// returned=0 を条件に拾うので同日の再実行は何もしない（冪等）。
func (s *Service) SweepOverdue(ctx context.Context) ([]RentalResponse, error) {
	today := items.DateOnly(s.clock.Now())

	var affected []Rental
	err := s.store.InTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		overdue, err := s.store.ListOverdueForUpdateTx(ctx, tx, today)
		if err != nil {
			return err
		}
		for i := range overdue {
			m := &overdue[i]
			if err := s.store.MarkReturnedTx(ctx, tx, m.ID, today); err != nil {
				return err
			}
			if err := s.store.MarkItemAvailableTx(ctx, tx, m.ItemID); err != nil {
				return err
			}
			m.Returned = true
			t := today
			m.ReturnedAt = &t
		}
		affected = overdue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toResponses(affected), nil
}

// ===== 参照系 =====

func (s *Service) Get(ctx context.Context, rentalID string) (*RentalResponse, error) {
	m, err := s.store.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(m)
	return &resp, nil
}

func (s *Service) ListAll(ctx context.Context) ([]RentalResponse, error) {
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.toResponses(list), nil
}

func (s *Service) ListOverdue(ctx context.Context) ([]RentalResponse, error) {
	list, err := s.store.ListOverdue(ctx, items.DateOnly(s.clock.Now()))
	if err != nil {
		return nil, err
	}
	return s.toResponses(list), nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]RentalResponse, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toResponses(list), nil
}

func (s *Service) ListActiveByUser(ctx context.Context, userID string) ([]RentalResponse, error) {
	list, err := s.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toResponses(list), nil
}

func (s *Service) ListHistoryByUser(ctx context.Context, userID string) ([]RentalResponse, error) {
	list, err := s.store.ListHistoryByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toResponses(list), nil
}
