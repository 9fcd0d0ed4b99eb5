package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/apierr"
	"github.com/TETRIX8/anime/internal/kodik"
)

// statusClientClosed is nginx's code for a request the client abandoned.
const statusClientClosed = 499

type Handler struct {
	Service *Service
	Log     *logrus.Logger
}

func NewHandler(svc *Service, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Service: svc, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/list", h.list)     // GET /anime/list
	rg.GET("/search", h.search) // GET /anime/search?title=
	rg.GET("/recent", h.recent)
	rg.GET("/genres", h.genres)
	rg.GET("/:id", h.details)
}

func (h *Handler) list(c *gin.Context) {
	var p ListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		apierr.Unprocessable(c, err)
		return
	}
	page, err := h.Service.List(c.Request.Context(), p)
	h.respond(c, page, err)
}

func (h *Handler) search(c *gin.Context) {
	var p SearchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		apierr.Unprocessable(c, err)
		return
	}
	page, err := h.Service.Search(c.Request.Context(), p)
	h.respond(c, page, err)
}

func (h *Handler) recent(c *gin.Context) {
	var p RecentParams
	if err := c.ShouldBindQuery(&p); err != nil {
		apierr.Unprocessable(c, err)
		return
	}
	page, err := h.Service.Recent(c.Request.Context(), p)
	h.respond(c, page, err)
}

func (h *Handler) details(c *gin.Context) {
	page, err := h.Service.Details(c.Request.Context(), c.Param("id"))
	h.respond(c, page, err)
}

func (h *Handler) genres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genres": h.Service.Genres()})
}

func (h *Handler) respond(c *gin.Context, page *Page, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, page)
	case errors.Is(err, ErrInvalidQuery):
		apierr.Unprocessable(c, err)
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "anime not found"})
	case errors.Is(err, context.Canceled):
		h.Log.WithField("route", c.FullPath()).Debug("client went away")
		c.AbortWithStatus(statusClientClosed)
	case errors.Is(err, context.DeadlineExceeded):
		h.Log.WithError(err).WithField("route", c.FullPath()).Warn("catalog request timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "catalog request timed out"})
	case errors.Is(err, kodik.ErrUpstream):
		h.Log.WithError(err).WithField("route", c.FullPath()).Error("catalog upstream failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog provider request failed"})
	default:
		h.Log.WithError(err).WithField("route", c.FullPath()).Error("catalog request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
