package items

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kreisel-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// RegisterRoutes 検索系は認証のみ、登録・変更系は admin ルータに載せる
func RegisterRoutes(r gin.IRoutes, admin gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/items", h.List)
	r.GET("/items/:item_id", h.Get)

	admin.POST("/items", h.Create)
	admin.PUT("/items/:item_id", h.Update)
	admin.DELETE("/items/:item_id", h.Delete)
}

// Create godoc
// @Summary  備品登録
// @Tags     items
// @Accept   json
// @Produce  json
// @Success  201 {object} ItemResponse
// @Router   /items [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Header("Location", "/items/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("item_id"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.Update(c.Request.Context(), c.Param("item_id"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("item_id")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// List godoc
// @Summary  備品検索
// @Tags     items
// @Produce  json
// @Success  200 {array} ItemResponse
// @Router   /items [get]
func (h *Handler) List(c *gin.Context) {
	var f Filter
	if v := strings.ToUpper(c.Query("location")); v != "" {
		loc := Location(v)
		f.Location = &loc
	}
	if v := strings.ToUpper(c.Query("size")); v != "" {
		sz := Size(v)
		f.Size = &sz
	}
	if v := strings.ToUpper(c.Query("gender")); v != "" {
		g := Gender(v)
		f.Gender = &g
	}
	if v := strings.ToUpper(c.Query("condition")); v != "" {
		cd := Condition(v)
		f.Condition = &cd
	}
	if v := strings.ToUpper(c.Query("status")); v != "" {
		st := Status(v)
		f.Status = &st
	}
	f.Name = c.Query("name")
	if v := c.Query("loanable"); v == "true" || v == "1" {
		f.OnlyLoanable = true
	}
	f.Limit = parseIntDefault(c.Query("limit"), 50)
	f.Offset = parseIntDefault(c.Query("offset"), 0)

	res, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
