package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the login endpoint on the public router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/login", handler.login)
}

type httpHandler struct {
	service *Service
}

type loginRequest struct {
	Password string `json:"pwd" form:"pwd" binding:"required"`
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	token, err := h.service.Login(req.Password)
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			h.service.logger.Warn("failed login attempt", "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}

	h.service.logger.Info("successful login", "ip", c.ClientIP())
	maxAge := int(h.service.TokenTTL().Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
