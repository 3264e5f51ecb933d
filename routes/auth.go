package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shift-staffing-client/auth"
	"shift-staffing-client/models"
)

func (s *MockServer) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("email", err.Error()))
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	var user models.User
	if ok {
		if n, found := s.nurses[acct.nurseID]; found {
			user = n.User
		}
	}
	s.mu.Unlock()

	if !ok || !auth.CheckPasswordHash(req.Password, acct.passwordHash) {
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, expiresIn, err := s.issuer.Issue(acct.userID, acct.nurseID)
	if err != nil {
		s.logger.Error("issue token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	s.logger.Info("user signed in", zap.Uint("user_id", acct.userID))
	respondData(c, http.StatusOK, models.LoginResponse{
		Success:   true,
		Token:     token,
		User:      user,
		NurseID:   acct.nurseID,
		ExpiresIn: expiresIn,
	})
}
