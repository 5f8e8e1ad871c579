package reviews

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/rentals/:rental_id/review", h.Create)
	r.PUT("/reviews/:review_id", h.Update)
	r.DELETE("/reviews/:review_id", h.Delete)
	r.GET("/reviews/item/:item_id", h.ListByItem)
	r.GET("/reviews/user/:user_id", h.ListByUser)
	r.GET("/reviews/rental/:rental_id", h.GetByRental)
	r.GET("/reviews/rental/:rental_id/eligibility", h.Eligibility)
	r.GET("/reviews/top-items", h.TopRated)
	r.GET("/items/:item_id/rating-stats", h.Stats)
}

// Create godoc
// @Summary  返却済み貸出へのレビュー投稿
// @Tags     reviews
// @Accept   json
// @Produce  json
// @Success  201 {object} ReviewResponse
// @Router   /rentals/{rental_id}/review [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.Create(c.Request.Context(), auth.CurrentUserID(c), c.Param("rental_id"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Header("Location", "/reviews/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.Update(c.Request.Context(), auth.CurrentUserID(c), auth.IsAdmin(c), c.Param("review_id"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), auth.CurrentUserID(c), auth.IsAdmin(c), c.Param("review_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListByItem(c *gin.Context) {
	res, err := h.svc.ListByItem(c.Request.Context(), c.Param("item_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListByUser(c *gin.Context) {
	userID := c.Param("user_id")
	// 本人かadminのみ
	if userID != auth.CurrentUserID(c) && !auth.IsAdmin(c) {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "cannot list another user's reviews"))
		return
	}

	res, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetByRental(c *gin.Context) {
	res, err := h.svc.GetByRental(c.Request.Context(), c.Param("rental_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Eligibility(c *gin.Context) {
	res, err := h.svc.Eligibility(c.Request.Context(), auth.CurrentUserID(c), c.Param("rental_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// Stats godoc
// @Summary  備品の評価統計
// @Tags     reviews
// @Produce  json
// @Success  200 {object} RatingStatsResponse
// @Router   /items/{item_id}/rating-stats [get]
func (h *Handler) Stats(c *gin.Context) {
	res, err := h.svc.Stats(c.Request.Context(), c.Param("item_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) TopRated(c *gin.Context) {
	res, err := h.svc.TopRated(c.Request.Context(),
		queryInt(c, "minReviews", 1), queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
