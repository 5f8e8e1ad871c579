package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kreisel-backend/internal/platform/apperr"
	"kreisel-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, admin gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/users/:user_id", h.Get)

	admin.GET("/users", h.List)
	admin.GET("/users/email/:email", h.GetByEmail)
	admin.DELETE("/users/:user_id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	userID := c.Param("user_id")
	// 本人かadminのみ
	if userID != auth.CurrentUserID(c) && !auth.IsAdmin(c) {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "cannot view another user"))
		return
	}

	res, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetByEmail(c *gin.Context) {
	res, err := h.svc.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("user_id")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}
