package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bio065/biobot/internal/middleware"
	"github.com/bio065/biobot/internal/service"
	"github.com/bio065/biobot/pkg/auth"
	"github.com/bio065/biobot/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type userRoutes struct {
	us service.UserServiceI
	a  *auth.TelegramAuth
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.TelegramAuth, adm *middleware.Authorization) {
	r := &userRoutes{us: us, a: a}
	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/:telegram_id", r.GetUserByTelegramID)
		h.GET("/:telegram_id/referrals", r.GetUserReferrals)
		h.GET("/leaderboard", r.GetLeaderboard)
		h.GET("/report", adm.AdminOnly(), r.GetReferralReport)
	}
}

func (r *userRoutes) GetUserByTelegramID(c *gin.Context) {
	log := logger.Logger()

	id, err := parseTelegramID(c)
	if err != nil {
		log.Error("failed to parse telegram_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return
	}

	user, err := r.us.GetUserByTelegramID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no user associated with the provided telegram_id"})
			return
		}
		log.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id":       user.TelegramID,
		"username":          user.Username,
		"handle":            user.Handle,
		"referrer_id":       user.ReferrerID,
		"referrals":         user.Referrals,
		"registration_date": user.RegistrationDate,
	})
}

type userReferral struct {
	TelegramID       int64  `json:"telegram_id"`
	TelegramUsername string `json:"telegram_username"`
	ReferralCount    int    `json:"referral_count"`
}

func (r *userRoutes) GetUserReferrals(c *gin.Context) {
	log := logger.Logger()

	id, err := parseTelegramID(c)
	if err != nil {
		log.Error("failed to parse telegram_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return
	}

	referrals, err := r.us.GetUserReferrals(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user referrals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user referrals"})
		return
	}

	out := make([]userReferral, len(referrals))
	for i, ref := range referrals {
		out[i] = userReferral{
			TelegramID:       ref.TelegramID,
			TelegramUsername: ref.TelegramUsername,
			ReferralCount:    ref.ReferralCount,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *userRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	users, err := r.us.GetLeaderboard(c.Request.Context())
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	var response []gin.H
	for _, user := range users {
		response = append(response, gin.H{
			"username":  user.Username,
			"handle":    user.Handle,
			"referrals": user.Referrals,
		})
	}

	c.JSON(http.StatusOK, response)
}

func (r *userRoutes) GetReferralReport(c *gin.Context) {
	log := logger.Logger()

	total, err := r.us.CountUsers(c.Request.Context())
	if err != nil {
		log.Error("failed to count users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	rows, err := r.us.GetReferralReport(c.Request.Context())
	if err != nil {
		log.Error("failed to get referral report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	out := make([]gin.H, len(rows))
	for i, row := range rows {
		out[i] = gin.H{
			"telegram_id":  row.TelegramID,
			"username":     row.Username,
			"handle":       row.Handle,
			"referrals":    row.Referrals,
			"referred_ids": row.ReferredIDs,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"users": out,
	})
}

func parseTelegramID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("telegram_id"), 10, 64)
}
