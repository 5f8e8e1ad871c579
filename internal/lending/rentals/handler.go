package rentals

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, admin gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/rentals/user/:user_id/rent", h.Create)
	r.POST("/rentals/:rental_id/return", h.Return)
	r.POST("/rentals/:rental_id/extend", h.Extend)
	r.GET("/rentals/user/:user_id", h.ListByUser)
	r.GET("/rentals/user/:user_id/active", h.ListActiveByUser)
	r.GET("/rentals/user/:user_id/history", h.ListHistoryByUser)

	admin.GET("/rentals", h.ListAll)
	admin.GET("/rentals/overdue", h.ListOverdue)
	admin.POST("/rentals/sweep", h.Sweep)
}

// Create godoc
// @Summary  備品を借りる
// @Tags     rentals
// @Accept   json
// @Produce  json
// @Success  201 {object} RentalResponse
// @Router   /rentals/user/{user_id}/rent [post]
func (h *Handler) Create(c *gin.Context) {
	userID := c.Param("user_id")
	// 本人かadminのみ
	if userID != auth.CurrentUserID(c) && !auth.IsAdmin(c) {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "cannot rent for another user"))
		return
	}

	var req CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.Create(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Header("Location", "/rentals/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Return(c *gin.Context) {
	rentalID := c.Param("rental_id")
	if !h.authorizeRentalAccess(c, rentalID) {
		return
	}

	res, err := h.svc.Return(c.Request.Context(), rentalID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Extend(c *gin.Context) {
	rentalID := c.Param("rental_id")
	if !h.authorizeRentalAccess(c, rentalID) {
		return
	}

	res, err := h.svc.Extend(c.Request.Context(), rentalID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListAll(c *gin.Context) {
	res, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListOverdue(c *gin.Context) {
	res, err := h.svc.ListOverdue(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// Sweep godoc
// @Summary  期限切れ貸出の手動スイープ
// @Tags     rentals
// @Produce  json
// @Success  200 {array} RentalResponse
// @Router   /rentals/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	res, err := h.svc.SweepOverdue(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListByUser(c *gin.Context) {
	h.listForUser(c, h.svc.ListByUser)
}

func (h *Handler) ListActiveByUser(c *gin.Context) {
	h.listForUser(c, h.svc.ListActiveByUser)
}

func (h *Handler) ListHistoryByUser(c *gin.Context) {
	h.listForUser(c, h.svc.ListHistoryByUser)
}

// listForUser 本人かadminのみ閲覧可
func (h *Handler) listForUser(c *gin.Context, fetch func(ctx context.Context, userID string) ([]RentalResponse, error)) {
	userID := c.Param("user_id")
	if userID != auth.CurrentUserID(c) && !auth.IsAdmin(c) {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "cannot view another user's rentals"))
		return
	}

	res, err := fetch(c.Request.Context(), userID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// authorizeRentalAccess 対象Rentalの持ち主本人かadminのみ操作可。
// 判定失敗時はレスポンス済み。
func (h *Handler) authorizeRentalAccess(c *gin.Context, rentalID string) bool {
	if auth.IsAdmin(c) {
		return true
	}
	r, err := h.svc.Get(c.Request.Context(), rentalID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return false
	}
	if r.UserID != auth.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "not the owner of this rental"))
		return false
	}
	return true
}
