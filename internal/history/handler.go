package history

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/apierr"
	"github.com/TETRIX8/anime/internal/auth"
	"github.com/TETRIX8/anime/internal/sync"
	"github.com/TETRIX8/anime/pkg/models"
)

type Handler struct {
	Repo  *Repo
	Hub   *sync.Hub
	Guard auth.Guard
	Log   *logrus.Logger
}

func NewHandler(repo *Repo, hub *sync.Hub, guard auth.Guard, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Repo: repo, Hub: hub, Guard: guard, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.upsert)                      // POST /history
	rg.GET("/:user_id", h.list)                // GET /history/:user_id
	rg.DELETE("/:user_id/:anime_id", h.remove) // DELETE /history/:user_id/:anime_id
}

type upsertReq struct {
	UserID     string `json:"user_id" binding:"required"`
	AnimeID    string `json:"anime_id" binding:"required"`
	AnimeTitle string `json:"anime_title"`
	AnimeImage string `json:"anime_image"`
	Progress   *int   `json:"progress" binding:"omitempty,min=0"`
	Season     *int   `json:"season" binding:"omitempty,min=0"`
	Episode    *int   `json:"episode" binding:"omitempty,min=0"`
}

func (h *Handler) upsert(c *gin.Context) {
	var req upsertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Unprocessable(c, err)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.AnimeID = strings.TrimSpace(req.AnimeID)
	if req.UserID == "" || req.AnimeID == "" {
		apierr.Unprocessable(c, errors.New("user_id and anime_id required"))
		return
	}
	if !h.Guard.Allow(c, req.UserID) {
		return
	}

	entry := models.HistoryEntry{
		UserID:     req.UserID,
		AnimeID:    req.AnimeID,
		AnimeTitle: req.AnimeTitle,
		AnimeImage: req.AnimeImage,
		Season:     req.Season,
		Episode:    req.Episode,
	}
	if req.Progress != nil {
		entry.Progress = *req.Progress
	}

	saved, err := h.Repo.Upsert(c.Request.Context(), entry)
	if err != nil {
		h.Log.WithError(err).WithField("user_id", req.UserID).Error("history upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	if h.Hub != nil {
		progress := saved.Progress
		h.Hub.Publish(sync.Event{
			Type:       sync.EventHistoryUpdate,
			UserID:     saved.UserID,
			AnimeID:    saved.AnimeID,
			AnimeTitle: saved.AnimeTitle,
			Progress:   &progress,
			Season:     saved.Season,
			Episode:    saved.Episode,
			At:         saved.WatchedAt,
		})
	}

	c.JSON(http.StatusOK, saved)
}

func (h *Handler) list(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if !h.Guard.Allow(c, userID) {
		return
	}

	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.Log.WithError(err).WithField("user_id", userID).Error("history list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) remove(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	animeID := strings.TrimSpace(c.Param("anime_id"))
	if !h.Guard.Allow(c, userID) {
		return
	}

	err := h.Repo.Delete(c.Request.Context(), userID, animeID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case err != nil:
		h.Log.WithError(err).WithField("user_id", userID).Error("history delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	if h.Hub != nil {
		h.Hub.Publish(sync.Event{Type: sync.EventHistoryDelete, UserID: userID, AnimeID: animeID})
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
