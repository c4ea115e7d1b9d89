package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"loan-sync/config"
	"loan-sync/models"
	"loan-sync/services"
)

// SyncController exposes the sync service over HTTP.
type SyncController struct {
	sync *services.SyncService
}

func NewSyncController(sync *services.SyncService) *SyncController {
	return &SyncController{sync: sync}
}

// Health is the liveness probe.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Status reports whether the store is configured and reachable. It always
// answers 200; connected:false carries the reason.
func (h *SyncController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status(c.Request.Context()))
}

// GetData returns the full snapshot: users, loans, notifications, budget
// and rankProfit.
func (h *SyncController) GetData(c *gin.Context) {
	snap, err := h.sync.Snapshot(c.Request.Context())
	if err != nil {
		config.Log.WithError(err).Error("Lỗi trong /api/data")
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SyncController) SaveUsers(c *gin.Context) {
	var users []models.User
	if err := c.ShouldBindJSON(&users); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.sync.SaveUsers(c.Request.Context(), users); err != nil {
		serverError(c, err)
		return
	}
	success(c)
}

func (h *SyncController) SaveLoans(c *gin.Context) {
	var loans []models.Loan
	if err := c.ShouldBindJSON(&loans); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.sync.SaveLoans(c.Request.Context(), loans); err != nil {
		serverError(c, err)
		return
	}
	success(c)
}

func (h *SyncController) SaveNotifications(c *gin.Context) {
	var notifications []models.Notification
	if err := c.ShouldBindJSON(&notifications); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.sync.SaveNotifications(c.Request.Context(), notifications); err != nil {
		serverError(c, err)
		return
	}
	success(c)
}

func (h *SyncController) SetBudget(c *gin.Context) {
	var req struct {
		Budget *float64 `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Budget == nil {
		badRequest(c, errors.New("thiếu trường budget"))
		return
	}
	if err := h.sync.SetBudget(c.Request.Context(), *req.Budget); err != nil {
		serverError(c, err)
		return
	}
	success(c)
}

func (h *SyncController) SetRankProfit(c *gin.Context) {
	var req struct {
		RankProfit *float64 `json:"rankProfit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.RankProfit == nil {
		badRequest(c, errors.New("thiếu trường rankProfit"))
		return
	}
	if err := h.sync.SetRankProfit(c.Request.Context(), *req.RankProfit); err != nil {
		serverError(c, err)
		return
	}
	success(c)
}

// DeleteUser deletes one user. Deleting an unknown id still succeeds.
func (h *SyncController) DeleteUser(c *gin.Context) {
	if err := h.sync.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		serverError(c, err)
		return
	}
	success(c)
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func badRequest(c *gin.Context, err error) {
	config.Log.WithError(err).WithField("path", c.FullPath()).Warn("Invalid request body")
	c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu gửi lên không hợp lệ: " + err.Error()})
}

func serverError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
