package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/server/http/dto"
	"github.com/polkiloo/ordercheckout/internal/server/http/middleware"
)

// AuthHandler opens sessions for order owners.
type AuthHandler struct {
	facade AuthFacade
}

// NewAuthHandler creates AuthHandler instance.
func NewAuthHandler(facade AuthFacade) *AuthHandler {
	return &AuthHandler{facade: facade}
}

type sessionOpener func(ctx context.Context, login, password string) (string, error)

// Register handles POST /api/user/register.
func (h *AuthHandler) Register(c *gin.Context) {
	h.openSession(c, h.facade.Register, func(err error) int {
		switch {
		case errors.Is(err, domainErrors.ErrInvalidCredentials):
			return http.StatusBadRequest
		case errors.Is(err, domainErrors.ErrAlreadyExists):
			return http.StatusConflict
		}
		return 0
	})
}

// Login handles POST /api/user/login.
func (h *AuthHandler) Login(c *gin.Context) {
	h.openSession(c, h.facade.Authenticate, func(err error) int {
		if errors.Is(err, domainErrors.ErrInvalidCredentials) {
			return http.StatusUnauthorized
		}
		return 0
	})
}

// openSession runs open with the posted credentials. statusOf maps expected
// failures to a status; zero means the failure is internal.
func (h *AuthHandler) openSession(c *gin.Context, open sessionOpener, statusOf func(error) int) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed credentials"})
		return
	}

	token, err := open(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if status := statusOf(err); status != 0 {
			c.JSON(status, dto.ErrorResponse{Error: err.Error()})
			return
		}
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}

	middleware.SetAuthCookie(c, token)
	c.JSON(http.StatusOK, dto.AuthResponse{Token: token})
}
