package reports

import (
	"github.com/gin-gonic/gin"

	"kreisel-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

func RegisterRoutes(admin gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	admin.GET("/reports/rentals.csv", h.RentalsCSV)
}

// RentalsCSV godoc
// @Summary  貸出一覧のCSVエクスポート
// @Tags     reports
// @Produce  text/csv
// @Router   /reports/rentals.csv [get]
func (h *Handler) RentalsCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=windows-1252")
	c.Header("Content-Disposition", `attachment; filename="rentals.csv"`)
	if err := h.svc.WriteRentalsCSV(c.Request.Context(), c.Writer); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
}
