package reports

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRentalsCSV_Endpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeReportStore{rows: []RentalRow{
		{
			RentalID: "r-1", UserEmail: "a@hm.edu", ItemName: "Anzug",
			StartDate: date(2025, 6, 1), EndDate: date(2025, 6, 20),
		},
	}}
	svc := NewService(store)
	svc.clock = &fakeClock{now: date(2025, 6, 10)}

	r := gin.New()
	RegisterRoutes(r, svc)

	req := httptest.NewRequest(http.MethodGet, "/reports/rentals.csv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=windows-1252" {
		t.Errorf("content-type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "rentals.csv") {
		t.Errorf("content-disposition = %q; want attachment filename", cd)
	}
	if !strings.Contains(w.Body.String(), "r-1") {
		t.Errorf("body should contain the rental row: %q", w.Body.String())
	}
}
