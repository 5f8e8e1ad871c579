package rentals

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"kreisel-backend/internal/lending/items"
	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/db"
)

// ===== テスト用フェイク =====

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewULID(time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("RENTAL%020d", g.n)
}

// fakeStore インメモリ実装。InTx 全体を1つのミューテックスで直列化するので、
// 本物の行ロックと同じく同一備品への同時貸出は片方しか通らない。
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]bool
	items   map[string]*items.Item
	rentals map[string]*Rental
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]bool{},
		items:   map[string]*items.Item{},
		rentals: map[string]*Rental{},
	}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx, nil)
}

func (f *fakeStore) UserExistsForUpdateTx(_ context.Context, _ db.DBTX, userID string) (bool, error) {
	return f.users[userID], nil
}

func (f *fakeStore) ItemForUpdateTx(_ context.Context, _ db.DBTX, itemID string) (*items.Item, error) {
	it, ok := f.items[itemID]
	if !ok {
		return nil, apperr.NotFound("item not found")
	}
	cp := *it
	return &cp, nil
}

func (f *fakeStore) CountActiveByUserTx(_ context.Context, _ db.DBTX, userID string) (int, error) {
	n := 0
	for _, r := range f.rentals {
		if r.UserID == userID && !r.Returned {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertTx(_ context.Context, _ db.DBTX, m *Rental) error {
	cp := *m
	f.rentals[m.ID] = &cp
	return nil
}

func (f *fakeStore) GetForUpdateTx(_ context.Context, _ db.DBTX, rentalID string) (*Rental, error) {
	r, ok := f.rentals[rentalID]
	if !ok {
		return nil, apperr.NotFound("rental not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) MarkReturnedTx(_ context.Context, _ db.DBTX, rentalID string, returnedAt time.Time) error {
	r, ok := f.rentals[rentalID]
	if !ok || r.Returned {
		return apperr.New(apperr.CodeAlreadyReturned, "rental already returned")
	}
	t := returnedAt
	r.Returned = true
	r.ReturnedAt = &t
	return nil
}

func (f *fakeStore) ExtendTx(_ context.Context, _ db.DBTX, rentalID string, newEnd time.Time) error {
	r, ok := f.rentals[rentalID]
	if !ok || r.Returned || r.Extended {
		return apperr.New(apperr.CodeExtensionAlreadyUsed, "extension already used")
	}
	r.EndDate = newEnd
	r.Extended = true
	return nil
}

func (f *fakeStore) MarkItemAvailableTx(_ context.Context, _ db.DBTX, itemID string) error {
	if it, ok := f.items[itemID]; ok {
		it.Status = items.StatusAvailable
	}
	return nil
}

func (f *fakeStore) MarkItemUnavailableTx(_ context.Context, _ db.DBTX, itemID string) error {
	if it, ok := f.items[itemID]; ok {
		it.Status = items.StatusUnavailable
	}
	return nil
}

func (f *fakeStore) ListOverdueForUpdateTx(_ context.Context, _ db.DBTX, today time.Time) ([]Rental, error) {
	var out []Rental
	for _, r := range f.rentals {
		if !r.Returned && items.DateOnly(r.EndDate).Before(items.DateOnly(today)) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, rentalID string) (*Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rentals[rentalID]
	if !ok {
		return nil, apperr.NotFound("rental not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListAll(context.Context) ([]Rental, error) { return f.snapshot(nil), nil }

func (f *fakeStore) ListOverdue(_ context.Context, today time.Time) ([]Rental, error) {
	return f.snapshot(func(r *Rental) bool { return r.Overdue(today) }), nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]Rental, error) {
	return f.snapshot(func(r *Rental) bool { return r.UserID == userID }), nil
}

func (f *fakeStore) ListActiveByUser(_ context.Context, userID string) ([]Rental, error) {
	return f.snapshot(func(r *Rental) bool { return r.UserID == userID && !r.Returned }), nil
}

func (f *fakeStore) ListHistoryByUser(_ context.Context, userID string) ([]Rental, error) {
	return f.snapshot(func(r *Rental) bool { return r.UserID == userID && r.Returned }), nil
}

func (f *fakeStore) snapshot(keep func(*Rental) bool) []Rental {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Rental
	for _, r := range f.rentals {
		if keep == nil || keep(r) {
			out = append(out, *r)
		}
	}
	return out
}

// ===== ヘルパ =====

var testToday = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore) *Service {
	s := NewService(store, db.RentalConfig{
		MaxActive:     5,
		MaxDays:       120,
		ExtensionDays: 30,
	})
	s.clock = &fakeClock{now: testToday}
	s.id = &seqIDGen{}
	return s
}

func seedUserAndItem(store *fakeStore, userID, itemID string) {
	store.users[userID] = true
	store.items[itemID] = &items.Item{
		ID:            itemID,
		Name:          "Winterjacke",
		Status:        items.StatusAvailable,
		AvailableFrom: testToday.AddDate(0, 0, -1),
	}
}

func dateStr(daysFromToday int) string {
	return items.DateOnly(testToday).AddDate(0, 0, daysFromToday).Format("2006-01-02")
}

// ===== テスト =====

func TestCreate_Success(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	res, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if res.Status != StatusActive {
		t.Errorf("status = %s; want ACTIVE", res.Status)
	}
	if store.items["item-1"].Status != items.StatusUnavailable {
		t.Errorf("item should be UNAVAILABLE after create")
	}
}

func TestCreate_UserNotFound(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), "ghost", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("error = %v; want NOT_FOUND", err)
	}
}

func TestCreate_ItemNotFound(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "ghost",
		EndDate: dateStr(10),
	})
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("error = %v; want NOT_FOUND", err)
	}
}

func TestCreate_QuotaBoundary(t *testing.T) {
	store := newFakeStore()
	store.users["user-1"] = true
	svc := newTestService(store)

	// 5件目までは通る
	for i := 0; i < 5; i++ {
		itemID := fmt.Sprintf("item-%d", i)
		seedUserAndItem(store, "user-1", itemID)
		if _, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
			ItemID:  itemID,
			EndDate: dateStr(10),
		}); err != nil {
			t.Fatalf("create #%d failed: %v", i+1, err)
		}
	}

	// 6件目は枠超過
	seedUserAndItem(store, "user-1", "item-6")
	_, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-6",
		EndDate: dateStr(10),
	})
	if apperr.CodeOf(err) != apperr.CodeQuotaExceeded {
		t.Fatalf("error = %v; want QUOTA_EXCEEDED", err)
	}
}

func TestCreate_ItemUnavailable(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	store.items["item-1"].Status = items.StatusUnavailable
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if apperr.CodeOf(err) != apperr.CodeItemUnavailable {
		t.Fatalf("error = %v; want ITEM_UNAVAILABLE", err)
	}
}

func TestCreate_ItemNotYetAvailableFrom(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	store.items["item-1"].AvailableFrom = testToday.AddDate(0, 0, 7)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if apperr.CodeOf(err) != apperr.CodeItemUnavailable {
		t.Fatalf("error = %v; want ITEM_UNAVAILABLE", err)
	}
}

func TestCreate_PeriodBoundary(t *testing.T) {
	// ちょうど120日は可、121日は不可
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	if _, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:    "item-1",
		StartDate: dateStr(0),
		EndDate:   dateStr(120),
	}); err != nil {
		t.Fatalf("120 days should succeed: %v", err)
	}

	seedUserAndItem(store, "user-1", "item-2")
	_, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:    "item-2",
		StartDate: dateStr(0),
		EndDate:   dateStr(121),
	})
	if apperr.CodeOf(err) != apperr.CodeInvalidPeriod {
		t.Fatalf("error = %v; want INVALID_PERIOD", err)
	}
}

func TestCreate_EndBeforeStart(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:    "item-1",
		StartDate: dateStr(5),
		EndDate:   dateStr(5),
	})
	if apperr.CodeOf(err) != apperr.CodeInvalidPeriod {
		t.Fatalf("error = %v; want INVALID_PERIOD", err)
	}
}

func TestCreate_ConcurrentSameItem(t *testing.T) {
	// 同じ備品への同時リクエストは1件だけ成立する
	store := newFakeStore()
	store.users["user-1"] = true
	store.users["user-2"] = true
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []string{"user-1", "user-2"} {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), uid, CreateRentalRequest{
				ItemID:  "item-1",
				EndDate: dateStr(10),
			})
		}(i, uid)
	}
	wg.Wait()

	var okCount, unavailCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case apperr.CodeOf(err) == apperr.CodeItemUnavailable:
			unavailCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || unavailCount != 1 {
		t.Fatalf("got ok=%d unavailable=%d; want exactly 1 each", okCount, unavailCount)
	}
	if store.items["item-1"].Status != items.StatusUnavailable {
		t.Errorf("item should end UNAVAILABLE")
	}
	if len(store.rentals) != 1 {
		t.Errorf("rentals = %d; want exactly 1", len(store.rentals))
	}
}

func TestReturn_RoundTrip(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	returned, err := svc.Return(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if !returned.Returned || returned.ReturnedAt == nil {
		t.Errorf("returned flags not set: %+v", returned)
	}
	if returned.Status != StatusReturned {
		t.Errorf("status = %s; want RETURNED", returned.Status)
	}

	it := store.items["item-1"]
	if !it.Loanable(testToday) {
		t.Errorf("item should be loanable again after return")
	}

	// 二重返却は弾く
	if _, err := svc.Return(context.Background(), created.ID); apperr.CodeOf(err) != apperr.CodeAlreadyReturned {
		t.Fatalf("error = %v; want ALREADY_RETURNED", err)
	}
}

func TestReturn_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore())
	if _, err := svc.Return(context.Background(), "ghost"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("error = %v; want NOT_FOUND", err)
	}
}

func TestExtend_OnceOnly(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	extended, err := svc.Extend(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if !extended.Extended {
		t.Errorf("extended flag not set")
	}
	if want := dateStr(10 + 30); extended.EndDate != want {
		t.Errorf("end_date = %s; want %s", extended.EndDate, want)
	}

	if _, err := svc.Extend(context.Background(), created.ID); apperr.CodeOf(err) != apperr.CodeExtensionAlreadyUsed {
		t.Fatalf("error = %v; want EXTENSION_ALREADY_USED", err)
	}
}

func TestExtend_AfterReturn(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	svc := newTestService(store)

	created, _ := svc.Create(context.Background(), "user-1", CreateRentalRequest{
		ItemID:  "item-1",
		EndDate: dateStr(10),
	})
	if _, err := svc.Return(context.Background(), created.ID); err != nil {
		t.Fatalf("return failed: %v", err)
	}

	if _, err := svc.Extend(context.Background(), created.ID); apperr.CodeOf(err) != apperr.CodeAlreadyReturned {
		t.Fatalf("error = %v; want ALREADY_RETURNED", err)
	}
}

func TestSweepOverdue(t *testing.T) {
	store := newFakeStore()
	seedUserAndItem(store, "user-1", "item-1")
	seedUserAndItem(store, "user-1", "item-2")
	svc := newTestService(store)

	// 期限切れ1件、期限内1件
	overdueEnd := items.DateOnly(testToday).AddDate(0, 0, -1)
	store.rentals["r-overdue"] = &Rental{
		ID: "r-overdue", UserID: "user-1", ItemID: "item-1",
		StartDate: overdueEnd.AddDate(0, 0, -10), EndDate: overdueEnd,
	}
	store.items["item-1"].Status = items.StatusUnavailable
	store.rentals["r-current"] = &Rental{
		ID: "r-current", UserID: "user-1", ItemID: "item-2",
		StartDate: items.DateOnly(testToday), EndDate: items.DateOnly(testToday).AddDate(0, 0, 5),
	}
	store.items["item-2"].Status = items.StatusUnavailable

	affected, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(affected) != 1 || affected[0].ID != "r-overdue" {
		t.Fatalf("affected = %+v; want only r-overdue", affected)
	}
	if !store.rentals["r-overdue"].Returned {
		t.Errorf("overdue rental should be closed")
	}
	if store.rentals["r-overdue"].ReturnedAt == nil ||
		!store.rentals["r-overdue"].ReturnedAt.Equal(items.DateOnly(testToday)) {
		t.Errorf("returned_at should be today")
	}
	if store.items["item-1"].Status != items.StatusAvailable {
		t.Errorf("item should be freed by sweep")
	}
	if store.rentals["r-current"].Returned {
		t.Errorf("current rental must not be touched")
	}

	// 冪等性: 2回目は空
	again, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep = %d affected; want 0", len(again))
	}
}
