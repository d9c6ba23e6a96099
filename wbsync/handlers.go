package wbsync

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"github.com/gin-gonic/gin"
)

// HTTP surface for the chat-interface collaborator. Every response carries
// a success flag plus a human-readable reason on failure.

type registerRequest struct {
	ChatId      int64  `json:"chat_id" binding:"required"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
}

type requestCodeRequest struct {
	ChatId int64  `json:"chat_id" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
}

type verifyCodeRequest struct {
	ChatId int64  `json:"chat_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type chatIdRequest struct {
	ChatId int64 `json:"chat_id" binding:"required"`
}

type setStarsRequest struct {
	ChatId int64 `json:"chat_id" binding:"required"`
	Stars  int   `json:"stars" binding:"required,min=1,max=5"`
}

func RegisterUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &models.NewUser{
			ChatId:      req.ChatId,
			Username:    req.Username,
			PhoneNumber: req.PhoneNumber,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
	}
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":            true,
			"session_active":     user.HasSession(),
			"login_in_progress":  user.TempToken != nil,
			"notification":       user.Notification,
			"notification_stars": user.NotificationStars,
		})
	}
}

func RequestCodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requestCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		user, ok := userByChatId(c, req.ChatId)
		if !ok {
			return
		}
		if err := RequestCode(c.Request.Context(), user, req.Phone); err != nil {
			respondPortalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func VerifyCodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		user, ok := userByChatId(c, req.ChatId)
		if !ok {
			return
		}
		if err := VerifyCode(c.Request.Context(), user, req.Code); err != nil {
			respondPortalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func CancelLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatIdRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		user, ok := userByChatId(c, req.ChatId)
		if !ok {
			return
		}
		if err := Cancel(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatIdRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		user, ok := userByChatId(c, req.ChatId)
		if !ok {
			return
		}
		if err := Logout(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func SuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromQuery(c)
		if !ok {
			return
		}
		suppliers, err := ReconcileSuppliers(c.Request.Context(), user)
		if err != nil {
			respondPortalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "suppliers": suppliers})
	}
}

func SetStarsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setStarsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "stars must be between 1 and 5"})
			return
		}
		user, ok := userByChatId(c, req.ChatId)
		if !ok {
			return
		}
		if err := user.SetNotificationStars(c.Request.Context(), req.Stars); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func KickUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatIdRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		if err := models.MarkUnactive(c.Request.Context(), req.ChatId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerIngestHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatIdRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "invalid request"})
			return
		}
		user, ok := userByChatId(c, req.ChatId)
		if !ok {
			return
		}
		if err := engine.IngestForUser(c.Request.Context(), user); err != nil {
			respondPortalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerIngestAllHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := engine.IngestForAllEligibleUsers(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func userByChatId(c *gin.Context, chatId int64) (*models.User, bool) {
	user, err := models.GetUserByChatId(c.Request.Context(), chatId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": "user not found"})
		return nil, false
	}
	return user, true
}

func userFromQuery(c *gin.Context) (*models.User, bool) {
	chatId, err := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "reason": "chat_id is required"})
		return nil, false
	}
	return userByChatId(c, chatId)
}

func respondPortalError(c *gin.Context, err error) {
	var pe *portal.Error
	if !errors.As(err, &pe) {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "reason": err.Error()})
		return
	}

	status := http.StatusBadGateway
	switch pe.Kind {
	case portal.ErrorKindValidation:
		status = http.StatusBadRequest
	case portal.ErrorKindNotAuthenticated:
		status = http.StatusUnauthorized
	case portal.ErrorKindNotFound:
		status = http.StatusNotFound
	case portal.ErrorKindRejected:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"success": false, "reason": pe.Message, "kind": pe.Kind, "code": pe.Reason})
}
